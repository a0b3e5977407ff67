package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"epgbridge/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Register mounts API endpoints onto the provided router. Mapping endpoints
// share the admin session, so an authenticated dashboard is the only caller.
func Register(r *mux.Router, mappingHandler *handlers.MappingHandler, adminUI *handlers.AdminUIHandler) {
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(corsMiddleware)

	apiRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	auth := adminUI.RequireAuthAPI

	m := apiRouter.PathPrefix("/mapping").Subrouter()
	m.HandleFunc("/state", auth(mappingHandler.GetState)).Methods(http.MethodGet, http.MethodOptions)
	m.HandleFunc("/providers", auth(mappingHandler.ListProviders)).Methods(http.MethodGet, http.MethodOptions)
	m.HandleFunc("/providers/{providerId}/select", auth(mappingHandler.SelectProvider)).Methods(http.MethodPost, http.MethodOptions)
	m.HandleFunc("/epg-channels", auth(mappingHandler.GetEPGChannels)).Methods(http.MethodGet, http.MethodOptions)
	m.HandleFunc("/refresh", auth(mappingHandler.Refresh)).Methods(http.MethodPost, http.MethodOptions)
	m.HandleFunc("/drag", auth(mappingHandler.BeginDrag)).Methods(http.MethodPost, http.MethodOptions)
	m.HandleFunc("/drag", auth(mappingHandler.CancelDrag)).Methods(http.MethodDelete)
	m.HandleFunc("/drop", auth(mappingHandler.Drop)).Methods(http.MethodPost, http.MethodOptions)
	m.HandleFunc("/unmap", auth(mappingHandler.RequestUnmap)).Methods(http.MethodPost, http.MethodOptions)
	m.HandleFunc("/unmap", auth(mappingHandler.CancelUnmap)).Methods(http.MethodDelete)
	m.HandleFunc("/unmap/confirm", auth(mappingHandler.ConfirmUnmap)).Methods(http.MethodPost, http.MethodOptions)
	m.HandleFunc("/suggestions", auth(mappingHandler.GetSuggestions)).Methods(http.MethodGet, http.MethodOptions)
	m.HandleFunc("/suggestions/{streamingId}/accept", auth(mappingHandler.AcceptSuggestion)).Methods(http.MethodPost, http.MethodOptions)
	m.HandleFunc("/stats", auth(mappingHandler.GetStats)).Methods(http.MethodGet, http.MethodOptions)
}

// RegisterAdminUI mounts the dashboard pages onto the root router.
func RegisterAdminUI(r *mux.Router, adminUI *handlers.AdminUIHandler) {
	r.HandleFunc("/admin/login", adminUI.LoginPage).Methods(http.MethodGet)
	r.HandleFunc("/admin/login", adminUI.LoginSubmit).Methods(http.MethodPost)
	r.HandleFunc("/admin/logout", adminUI.Logout).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/admin", adminUI.RequireAuth(adminUI.Dashboard)).Methods(http.MethodGet)
	r.HandleFunc("/admin/", adminUI.RequireAuth(adminUI.Dashboard)).Methods(http.MethodGet)

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	}).Methods(http.MethodGet)
}
