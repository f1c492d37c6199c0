package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"call-translation-service/internal/models"
	"call-translation-service/internal/observability/logging"
	"call-translation-service/internal/observability/metrics"
)

// Dispatcher receives normalized events. The live pipeline processor
// implements it.
type Dispatcher interface {
	HandleTranscription(ctx context.Context, ev models.Event)
	HandleLifecycle(ctx context.Context, ev models.Event)
}

// providerPayload is the provider's wire format for call webhooks.
type providerPayload struct {
	EventType    string  `json:"event_type"`
	CallID       string  `json:"call_id"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
	RecordingURL string  `json:"recording_url"`
	Timestamp    int64   `json:"timestamp"`
}

// Handler terminates the provider webhook endpoint: verify the signature,
// normalize the payload, dispatch, acknowledge.
//
// Only signature failures are rejected (401). Malformed or unresolvable
// payloads are acknowledged with 200 and dropped; the provider retries
// rejected deliveries, and retrying garbage would only amplify it.
type Handler struct {
	verifier   *Verifier
	dispatcher Dispatcher
	maxBodyLen int64
	metrics    *metrics.Metrics
}

// NewHandler creates the webhook HTTP handler.
func NewHandler(verifier *Verifier, dispatcher Dispatcher, maxBodyLen int64) *Handler {
	if maxBodyLen <= 0 {
		maxBodyLen = 64 * 1024
	}
	return &Handler{
		verifier:   verifier,
		dispatcher: dispatcher,
		maxBodyLen: maxBodyLen,
		metrics:    metrics.DefaultMetrics,
	}
}

// ServeHTTP handles POST /v1/webhooks/call.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithComponent("webhook")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyLen))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read webhook body")
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := h.verifier.Verify(r.Header.Get(HeaderTimestamp), body, r.Header.Get(HeaderSignature)); err != nil {
		h.metrics.RecordWebhookRejected()
		logger.Warn().Err(err).Msg("Rejecting webhook with invalid signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	ev, ok := h.normalize(body)
	if !ok {
		// Acknowledged and dropped; the delivery was authentic but unusable.
		h.metrics.RecordWebhookDropped("malformed")
		logger.Warn().Int("bodyLen", len(body)).Msg("Dropping malformed webhook payload")
		h.ack(w)
		return
	}

	h.metrics.RecordWebhookReceived(string(ev.Type))

	if ev.Type == models.EventTranscription {
		h.dispatcher.HandleTranscription(r.Context(), ev)
	} else {
		h.dispatcher.HandleLifecycle(r.Context(), ev)
	}

	h.ack(w)
}

// normalize maps a raw provider payload onto the internal event record.
func (h *Handler) normalize(body []byte) (models.Event, bool) {
	var p providerPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return models.Event{}, false
	}
	if p.CallID == "" {
		return models.Event{}, false
	}

	var eventType models.EventType
	switch p.EventType {
	case "call.initiated":
		eventType = models.EventCallInitiated
	case "call.answered":
		eventType = models.EventCallAnswered
	case "call.transcription":
		eventType = models.EventTranscription
	case "call.hangup":
		eventType = models.EventCallHangup
	case "call.failed":
		eventType = models.EventCallFailed
	default:
		return models.Event{}, false
	}

	if eventType == models.EventTranscription && p.Text == "" {
		return models.Event{}, false
	}

	return models.Event{
		Type:           eventType,
		ProviderCallID: p.CallID,
		Text:           p.Text,
		Confidence:     p.Confidence,
		RecordingURL:   p.RecordingURL,
		Timestamp:      p.Timestamp,
	}, true
}

func (h *Handler) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
