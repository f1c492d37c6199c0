package evidence

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"call-translation-service/internal/observability/logging"
	"call-translation-service/internal/registry"
)

// HeaderCallbackToken authenticates provider callbacks. The token is handed
// to the provider out of band.
const HeaderCallbackToken = "X-Callback-Token"

// callbackPayload is the provider's wire format for transcription results.
type callbackPayload struct {
	Status     string  `json:"status"` // completed, error
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

// CallbackHandler terminates the transcription provider's completion
// callback. The call is identified by the call_id query parameter carried on
// the callback URL the job was submitted with.
type CallbackHandler struct {
	pipeline *Pipeline
	token    string
}

// NewCallbackHandler creates the callback HTTP handler. An empty token
// disables callback authentication (dev mode).
func NewCallbackHandler(pipeline *Pipeline, token string) *CallbackHandler {
	return &CallbackHandler{pipeline: pipeline, token: token}
}

// ServeHTTP handles POST /v1/webhooks/transcription.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithComponent("evidence")

	if h.token != "" && r.Header.Get(HeaderCallbackToken) != h.token {
		logger.Warn().Msg("Rejecting transcription callback with invalid token")
		http.Error(w, "invalid callback token", http.StatusUnauthorized)
		return
	}

	callID := r.URL.Query().Get("call_id")
	if callID == "" {
		logger.Warn().Msg("Dropping transcription callback without call_id")
		h.ack(w)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read transcription callback body")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var p callbackPayload
	if err := json.Unmarshal(body, &p); err != nil {
		logger.Warn().Err(err).Str("callId", callID).Msg("Dropping malformed transcription callback")
		h.ack(w)
		return
	}

	switch p.Status {
	case "completed":
		err = h.pipeline.CompleteTranscription(r.Context(), callID, p.Text, p.Confidence)
	case "error":
		err = h.pipeline.FailTranscription(r.Context(), callID, p.Error)
	default:
		logger.Warn().Str("callId", callID).Str("status", p.Status).
			Msg("Dropping transcription callback with unknown status")
		h.ack(w)
		return
	}

	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			logger.Warn().Str("callId", callID).Msg("Dropping transcription callback for unknown call")
			h.ack(w)
			return
		}
		logger.Error().Err(err).Str("callId", callID).Msg("Transcription callback processing failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.ack(w)
}

func (h *CallbackHandler) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
