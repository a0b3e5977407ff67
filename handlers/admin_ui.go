package handlers

import (
	"crypto/rand"
	"embed"
	"encoding/hex"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"epgbridge/models"
	"epgbridge/services/dragdrop"
	"epgbridge/services/mapping"
	"epgbridge/services/store"
	"epgbridge/services/suggest"
)

//go:embed admin_templates/*
var adminTemplates embed.FS

const (
	adminSessionCookieName = "epgbridge_admin_session"
	adminSessionDuration   = 24 * time.Hour
)

// adminSessionStore manages admin session tokens
type adminSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]time.Time // token -> expiry
}

var adminSessions = &adminSessionStore{
	sessions: make(map[string]time.Time),
}

func (s *adminSessionStore) create() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := make([]byte, 32)
	rand.Read(b)
	token := hex.EncodeToString(b)

	s.sessions[token] = time.Now().Add(adminSessionDuration)

	// Cleanup expired sessions
	now := time.Now()
	for t, exp := range s.sessions {
		if exp.Before(now) {
			delete(s.sessions, t)
		}
	}

	return token
}

func (s *adminSessionStore) validate(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.sessions[token]
	if !ok {
		return false
	}
	return exp.After(time.Now())
}

func (s *adminSessionStore) revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// AdminUIHandler serves the mapping dashboard UI
type AdminUIHandler struct {
	dashboardTemplate *template.Template
	loginTemplate     *template.Template
	mappingService    *mapping.Service
	store             *store.Store
	dragController    *dragdrop.Controller
	suggestEngine     *suggest.Engine
	pinHash           string
}

// NewAdminUIHandler creates a new admin UI handler. pinHash is the bcrypt
// hash of the admin PIN; when empty, authentication is disabled.
func NewAdminUIHandler(ms *mapping.Service, st *store.Store, drag *dragdrop.Controller, sg *suggest.Engine, pinHash string) *AdminUIHandler {
	createPageTemplate := func(pageName string) *template.Template {
		baseContent, err := adminTemplates.ReadFile("admin_templates/base.html")
		if err != nil {
			fmt.Printf("Error reading base template: %v\n", err)
			return nil
		}
		pageContent, err := adminTemplates.ReadFile("admin_templates/" + pageName)
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", pageName, err)
			return nil
		}
		tmpl, err := template.New("page").Parse(string(baseContent))
		if err != nil {
			fmt.Printf("Error parsing base for %s: %v\n", pageName, err)
			return nil
		}
		tmpl, err = tmpl.Parse(string(pageContent))
		if err != nil {
			fmt.Printf("Error parsing %s: %v\n", pageName, err)
			return nil
		}
		return tmpl
	}

	// Login template is standalone, no base
	var loginTmpl *template.Template
	loginContent, err := adminTemplates.ReadFile("admin_templates/login.html")
	if err != nil {
		fmt.Printf("Error reading login.html: %v\n", err)
	} else {
		loginTmpl, err = template.New("login").Parse(string(loginContent))
		if err != nil {
			fmt.Printf("Error parsing login.html: %v\n", err)
		}
	}

	return &AdminUIHandler{
		dashboardTemplate: createPageTemplate("mapping.html"),
		loginTemplate:     loginTmpl,
		mappingService:    ms,
		store:             st,
		dragController:    drag,
		suggestEngine:     sg,
		pinHash:           strings.TrimSpace(pinHash),
	}
}

// DashboardData holds data for the mapping dashboard template
type DashboardData struct {
	Providers        []models.Provider
	SelectedProvider string
	Channels         []channelView
	EPGChannels      []models.EPGChannel
	Search           string
	Stats            models.MappingStats
	PendingDrag      *models.PendingMapping
}

// Dashboard serves the mapping dashboard page.
// GET /admin
func (h *AdminUIHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if h.dashboardTemplate == nil {
		http.Error(w, "Template not available", http.StatusInternalServerError)
		return
	}

	selected, _ := h.store.SelectedProvider()
	search := r.URL.Query().Get("search")

	data := DashboardData{
		Providers:        h.store.Providers(),
		SelectedProvider: selected,
		Channels:         buildChannelViews(h.store, h.suggestEngine),
		EPGChannels:      h.store.FilteredEPGChannels(search),
		Search:           search,
		Stats:            h.mappingService.Stats(),
	}
	if pm, ok := h.dragController.Pending(); ok {
		data.PendingDrag = &pm
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.dashboardTemplate.ExecuteTemplate(w, "base", data); err != nil {
		log.Printf("[admin] dashboard template error: %v", err)
	}
}

// LoginPageData holds data for the login template
type LoginPageData struct {
	Error string
}

// IsAuthenticated checks if the request has a valid admin session
func (h *AdminUIHandler) IsAuthenticated(r *http.Request) bool {
	// If no PIN is configured, allow access
	if h.pinHash == "" {
		return true
	}

	cookie, err := r.Cookie(adminSessionCookieName)
	if err != nil {
		return false
	}
	return adminSessions.validate(cookie.Value)
}

// RequireAuth is middleware that redirects to login if not authenticated
func (h *AdminUIHandler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.IsAuthenticated(r) {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// RequireAuthAPI is middleware that rejects unauthenticated API requests
// with a JSON 401 instead of a redirect.
func (h *AdminUIHandler) RequireAuthAPI(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.IsAuthenticated(r) {
			writeJSONError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// LoginPage serves the login page (GET)
func (h *AdminUIHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if h.pinHash == "" || h.IsAuthenticated(r) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.loginTemplate.ExecuteTemplate(w, "login", LoginPageData{}); err != nil {
		log.Printf("[admin] login template error: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

// LoginSubmit handles login form submission (POST)
func (h *AdminUIHandler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if h.pinHash == "" {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderLoginError(w, "Invalid request")
		return
	}

	submittedPIN := strings.TrimSpace(r.FormValue("pin"))
	if submittedPIN == "" {
		h.renderLoginError(w, "PIN is required")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(h.pinHash), []byte(submittedPIN)) != nil {
		h.renderLoginError(w, "Invalid PIN")
		return
	}

	token := adminSessions.create()
	http.SetCookie(w, &http.Cookie{
		Name:     adminSessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(adminSessionDuration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// Logout handles logout requests
func (h *AdminUIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(adminSessionCookieName)
	if err == nil {
		adminSessions.revoke(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     adminSessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

func (h *AdminUIHandler) renderLoginError(w http.ResponseWriter, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.loginTemplate.ExecuteTemplate(w, "login", LoginPageData{Error: errMsg}); err != nil {
		log.Printf("[admin] login template error: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

// HasPIN returns true if a PIN is configured
func (h *AdminUIHandler) HasPIN() bool {
	return h.pinHash != ""
}
