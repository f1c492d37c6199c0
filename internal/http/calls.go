package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"call-translation-service/internal/models"
	"call-translation-service/internal/observability/logging"
	"call-translation-service/internal/registry"
)

// CallsHandler provisions and exposes call records. Provisioning happens
// when the surrounding platform originates or accepts a call, before the
// provider starts delivering webhooks for it.
type CallsHandler struct {
	registry registry.Store
}

// NewCallsHandler creates the call provisioning handler.
func NewCallsHandler(reg registry.Store) *CallsHandler {
	return &CallsHandler{registry: reg}
}

type createCallRequest struct {
	ID             string             `json:"id"`
	TenantID       string             `json:"tenantId"`
	ProviderCallID string             `json:"providerCallId"`
	Modulations    models.Modulations `json:"modulations"`
}

// Create handles POST /v1/calls.
func (h *CallsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.TenantID == "" || req.ProviderCallID == "" {
		http.Error(w, "id, tenantId and providerCallId are required", http.StatusBadRequest)
		return
	}

	call := models.Call{
		ID:             req.ID,
		TenantID:       req.TenantID,
		ProviderCallID: req.ProviderCallID,
		Status:         models.StatusInitiated,
		Modulations:    req.Modulations,
	}
	if err := h.registry.CreateCall(r.Context(), &call); err != nil {
		lg := logging.WithCall(req.ID, req.TenantID)
		lg.Warn().Err(err).Msg("Call provisioning failed")
		http.Error(w, "call already exists", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(call)
}

// Get handles GET /v1/calls/{callID}.
func (h *CallsHandler) Get(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")

	call, err := h.registry.GetCall(r.Context(), callID)
	if err != nil || call.TenantID != r.Header.Get("X-Tenant-ID") {
		if err != nil && !errors.Is(err, registry.ErrNotFound) {
			lg := logging.WithComponent("http")
			lg.Error().Err(err).Str("callId", callID).Msg("Call lookup failed")
		}
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(call)
}
