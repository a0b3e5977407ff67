package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"epgbridge/models"
	"epgbridge/services/dragdrop"
	"epgbridge/services/mapping"
	"epgbridge/services/store"
	"epgbridge/services/suggest"
	"epgbridge/services/upstream"
)

// MappingHandler handles mapping-related HTTP requests.
type MappingHandler struct {
	mappingService *mapping.Service
	store          *store.Store
	dragController *dragdrop.Controller
	suggestEngine  *suggest.Engine
}

// NewMappingHandler creates a new mapping handler.
func NewMappingHandler(ms *mapping.Service, st *store.Store, drag *dragdrop.Controller, sg *suggest.Engine) *MappingHandler {
	return &MappingHandler{
		mappingService: ms,
		store:          st,
		dragController: drag,
		suggestEngine:  sg,
	}
}

// channelView is the streaming channel as rendered on the dashboard, with its
// mapping state and suggestion folded in.
type channelView struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	LogoURL    string             `json:"logoUrl,omitempty"`
	Mapped     bool               `json:"mapped"`
	EPGID      string             `json:"epgChannelId,omitempty"`
	EPGName    string             `json:"epgName,omitempty"`
	Suggestion *models.Suggestion `json:"suggestion,omitempty"`
}

// buildChannelViews folds the store's mapping state and the current
// suggestions into the per-channel view the dashboard renders.
func buildChannelViews(st *store.Store, sg *suggest.Engine) []channelView {
	channels := st.StreamingChannels()
	suggestions := sg.All()

	views := make([]channelView, 0, len(channels))
	for _, ch := range channels {
		v := channelView{ID: ch.ID, Name: ch.Name, LogoURL: ch.LogoURL}
		if info, ok := st.AliasInfo(ch.ID); ok {
			v.Mapped = true
			v.EPGID = info.EPGChannelID
			if epg, ok := st.EPGChannel(info.EPGChannelID); ok {
				v.EPGName = epg.Label()
			}
		} else if sug, ok := suggestions[ch.ID]; ok {
			v.Suggestion = &sug
		}
		views = append(views, v)
	}
	return views
}

func (h *MappingHandler) channelViews() []channelView {
	return buildChannelViews(h.store, h.suggestEngine)
}

// GetState returns everything the dashboard needs in one response.
// GET /api/mapping/state?search=term
func (h *MappingHandler) GetState(w http.ResponseWriter, r *http.Request) {
	selected, _ := h.store.SelectedProvider()

	response := struct {
		Providers        []models.Provider      `json:"providers"`
		SelectedProvider string                 `json:"selectedProvider"`
		Channels         []channelView          `json:"channels"`
		EPGChannels      []models.EPGChannel    `json:"epgChannels"`
		Stats            models.MappingStats    `json:"stats"`
		PendingDrag      *models.PendingMapping `json:"pendingDrag,omitempty"`
		PendingUnmap     *models.PendingUnmap   `json:"pendingUnmap,omitempty"`
	}{
		Providers:        h.store.Providers(),
		SelectedProvider: selected,
		Channels:         h.channelViews(),
		EPGChannels:      h.store.FilteredEPGChannels(r.URL.Query().Get("search")),
		Stats:            h.mappingService.Stats(),
	}
	if pm, ok := h.dragController.Pending(); ok {
		response.PendingDrag = &pm
	}
	if pu, ok := h.mappingService.PendingUnmap(); ok {
		response.PendingUnmap = &pu
	}

	writeJSON(w, response)
}

// ListProviders returns the known providers.
// GET /api/mapping/providers
func (h *MappingHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	selected, _ := h.store.SelectedProvider()
	writeJSON(w, struct {
		Providers []models.Provider `json:"providers"`
		Selected  string            `json:"selected"`
	}{h.store.Providers(), selected})
}

// SelectProvider switches the active provider and loads its channels.
// POST /api/mapping/providers/{providerId}/select
func (h *MappingHandler) SelectProvider(w http.ResponseWriter, r *http.Request) {
	providerID := mux.Vars(r)["providerId"]
	if providerID == "" {
		http.Error(w, `{"error":"missing provider ID"}`, http.StatusBadRequest)
		return
	}

	if err := h.mappingService.SelectProvider(r.Context(), providerID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, struct {
		Channels []channelView       `json:"channels"`
		Stats    models.MappingStats `json:"stats"`
	}{h.channelViews(), h.mappingService.Stats()})
}

// GetEPGChannels returns the EPG channel list, optionally filtered.
// GET /api/mapping/epg-channels?search=term
func (h *MappingHandler) GetEPGChannels(w http.ResponseWriter, r *http.Request) {
	channels := h.store.FilteredEPGChannels(r.URL.Query().Get("search"))
	writeJSON(w, struct {
		Channels []models.EPGChannel `json:"channels"`
	}{channels})
}

// Refresh re-fetches providers, EPG channels and the selected provider's data.
// POST /api/mapping/refresh
func (h *MappingHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.mappingService.LoadAll(r.Context()); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, struct {
		Stats models.MappingStats `json:"stats"`
	}{h.mappingService.Stats()})
}

// BeginDrag starts a drag transaction for an EPG channel.
// POST /api/mapping/drag {"epgId": "..."}
func (h *MappingHandler) BeginDrag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EPGID string `json:"epgId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	req.EPGID = strings.TrimSpace(req.EPGID)
	if req.EPGID == "" {
		http.Error(w, `{"error":"epgId is required"}`, http.StatusBadRequest)
		return
	}

	epg, ok := h.store.EPGChannel(req.EPGID)
	if !ok {
		http.Error(w, `{"error":"unknown EPG channel"}`, http.StatusNotFound)
		return
	}

	pm := h.dragController.Begin(epg.ID, epg.Label(), epg.Name)
	writeJSON(w, pm)
}

// CancelDrag discards the pending drag transaction.
// DELETE /api/mapping/drag
func (h *MappingHandler) CancelDrag(w http.ResponseWriter, r *http.Request) {
	h.dragController.Cancel()
	writeJSON(w, map[string]bool{"cancelled": true})
}

// dropRequest carries a drop either by explicit target or by pointer
// coordinates plus the card layout to resolve against.
type dropRequest struct {
	StreamingID string              `json:"streamingId"`
	Point       *dragdrop.Point     `json:"point"`
	Cards       []dragdrop.CardRect `json:"cards"`
	Confirm     bool                `json:"confirm"`
}

// Drop completes the pending drag onto a streaming channel.
// POST /api/mapping/drop
func (h *MappingHandler) Drop(w http.ResponseWriter, r *http.Request) {
	var req dropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	targetID := strings.TrimSpace(req.StreamingID)
	if targetID == "" {
		if req.Point == nil {
			http.Error(w, `{"error":"streamingId or point is required"}`, http.StatusBadRequest)
			return
		}
		resolved, ok := h.dragController.Drop(*req.Point, req.Cards)
		if !ok {
			// Dropped on empty space. The transaction survives so the admin
			// can try again without re-dragging.
			writeJSON(w, map[string]interface{}{"dropped": false})
			return
		}
		targetID = resolved
	}

	info, err := h.mappingService.HandleMapping(r.Context(), targetID, req.Confirm)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, struct {
		Dropped bool             `json:"dropped"`
		Alias   models.AliasInfo `json:"alias"`
	}{true, info})
}

// RequestUnmap stages the removal of a channel's alias and returns what the
// confirmation dialog needs.
// POST /api/mapping/unmap {"streamingId": "..."}
func (h *MappingHandler) RequestUnmap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StreamingID string `json:"streamingId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.StreamingID == "" {
		http.Error(w, `{"error":"streamingId is required"}`, http.StatusBadRequest)
		return
	}

	pu, err := h.mappingService.RequestUnmap(req.StreamingID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, pu)
}

// ConfirmUnmap executes the staged unmap.
// POST /api/mapping/unmap/confirm
func (h *MappingHandler) ConfirmUnmap(w http.ResponseWriter, r *http.Request) {
	if err := h.mappingService.PerformUnmap(r.Context()); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, struct {
		Unmapped bool                `json:"unmapped"`
		Stats    models.MappingStats `json:"stats"`
	}{true, h.mappingService.Stats()})
}

// CancelUnmap discards the staged unmap.
// DELETE /api/mapping/unmap
func (h *MappingHandler) CancelUnmap(w http.ResponseWriter, r *http.Request) {
	h.mappingService.CancelUnmap()
	writeJSON(w, map[string]bool{"cancelled": true})
}

// GetSuggestions returns the current suggestion set.
// GET /api/mapping/suggestions
func (h *MappingHandler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, struct {
		Suggestions map[string]models.Suggestion `json:"suggestions"`
	}{h.suggestEngine.All()})
}

// AcceptSuggestion maps a channel to its suggested EPG channel.
// POST /api/mapping/suggestions/{streamingId}/accept
func (h *MappingHandler) AcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	streamingID := mux.Vars(r)["streamingId"]
	if streamingID == "" {
		http.Error(w, `{"error":"missing streaming channel ID"}`, http.StatusBadRequest)
		return
	}

	info, err := h.mappingService.AcceptSuggestion(r.Context(), streamingID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, struct {
		Mapped bool             `json:"mapped"`
		Alias  models.AliasInfo `json:"alias"`
	}{true, info})
}

// GetStats returns the dashboard counters.
// GET /api/mapping/stats
func (h *MappingHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.mappingService.Stats())
}

// writeServiceError translates orchestrator errors into HTTP responses. A
// confirmation requirement is not a failure; it gets a structured 409 payload
// the dashboard turns into a dialog.
func (h *MappingHandler) writeServiceError(w http.ResponseWriter, err error) {
	var confirmErr *mapping.ConfirmRequiredError
	if errors.As(err, &confirmErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(struct {
			Error           string `json:"error"`
			ConfirmRequired bool   `json:"confirmRequired"`
			StreamingID     string `json:"streamingId"`
			StreamingName   string `json:"streamingName"`
			ExistingEPG     string `json:"existingEpg"`
			ProposedEPG     string `json:"proposedEpg"`
		}{
			Error:           confirmErr.Error(),
			ConfirmRequired: true,
			StreamingID:     confirmErr.StreamingID,
			StreamingName:   confirmErr.StreamingName,
			ExistingEPG:     confirmErr.ExistingEPG,
			ProposedEPG:     confirmErr.ProposedEPG,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, mapping.ErrOperationInFlight), errors.Is(err, mapping.ErrLoadInProgress):
		status = http.StatusConflict
	case errors.Is(err, mapping.ErrNoPendingMapping),
		errors.Is(err, mapping.ErrNoPendingUnmap),
		errors.Is(err, mapping.ErrNotMapped),
		errors.Is(err, mapping.ErrNoSuggestion):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrUnknownChannel), errors.Is(err, store.ErrUnknownProvider):
		status = http.StatusNotFound
	default:
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) {
			status = http.StatusBadGateway
		}
	}

	log.Printf("[mapping] request failed (%d): %v", status, err)
	writeJSONError(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[mapping] JSON encode error: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
