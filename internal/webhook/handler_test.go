package webhook

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"call-translation-service/internal/models"
)

type recordingDispatcher struct {
	transcriptions []models.Event
	lifecycles     []models.Event
}

func (d *recordingDispatcher) HandleTranscription(ctx context.Context, ev models.Event) {
	d.transcriptions = append(d.transcriptions, ev)
}

func (d *recordingDispatcher) HandleLifecycle(ctx context.Context, ev models.Event) {
	d.lifecycles = append(d.lifecycles, ev)
}

type handlerFixture struct {
	dispatcher *recordingDispatcher
	handler    *Handler
	priv       ed25519.PrivateKey
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	pubB64, priv := newKeyPair(t)
	v, err := NewVerifier(pubB64, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	d := &recordingDispatcher{}
	return &handlerFixture{
		dispatcher: d,
		handler:    NewHandler(v, d, 64*1024),
		priv:       priv,
	}
}

func (f *handlerFixture) post(t *testing.T, body []byte, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/call", bytes.NewReader(body))
	if sign {
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		req.Header.Set(HeaderTimestamp, ts)
		req.Header.Set(HeaderSignature, SignPayload(f.priv, ts, body))
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestHandler_TranscriptionDispatched(t *testing.T) {
	f := newHandlerFixture(t)

	body := []byte(`{"event_type":"call.transcription","call_id":"pcc-1","text":"Hello","confidence":0.93,"timestamp":1700000000000}`)
	w := f.post(t, body, true)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if len(f.dispatcher.transcriptions) != 1 {
		t.Fatalf("expected 1 transcription dispatched, got %d", len(f.dispatcher.transcriptions))
	}
	ev := f.dispatcher.transcriptions[0]
	if ev.ProviderCallID != "pcc-1" || ev.Text != "Hello" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Confidence != 0.93 {
		t.Errorf("expected confidence 0.93, got %f", ev.Confidence)
	}
	if len(f.dispatcher.lifecycles) != 0 {
		t.Errorf("transcription must not reach the lifecycle path")
	}
}

func TestHandler_LifecycleDispatched(t *testing.T) {
	f := newHandlerFixture(t)

	tests := []struct {
		eventType string
		want      models.EventType
	}{
		{"call.initiated", models.EventCallInitiated},
		{"call.answered", models.EventCallAnswered},
		{"call.hangup", models.EventCallHangup},
		{"call.failed", models.EventCallFailed},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			f.dispatcher.lifecycles = nil
			body := []byte(`{"event_type":"` + tt.eventType + `","call_id":"pcc-1"}`)
			w := f.post(t, body, true)

			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}
			if len(f.dispatcher.lifecycles) != 1 {
				t.Fatalf("expected 1 lifecycle dispatched, got %d", len(f.dispatcher.lifecycles))
			}
			if got := f.dispatcher.lifecycles[0].Type; got != tt.want {
				t.Errorf("expected event type %s, got %s", tt.want, got)
			}
		})
	}
}

func TestHandler_HangupCarriesRecordingURL(t *testing.T) {
	f := newHandlerFixture(t)

	body := []byte(`{"event_type":"call.hangup","call_id":"pcc-1","recording_url":"https://recordings/rec-1.wav"}`)
	f.post(t, body, true)

	if len(f.dispatcher.lifecycles) != 1 {
		t.Fatalf("expected 1 lifecycle dispatched, got %d", len(f.dispatcher.lifecycles))
	}
	if got := f.dispatcher.lifecycles[0].RecordingURL; got != "https://recordings/rec-1.wav" {
		t.Errorf("expected recording URL on normalized event, got %q", got)
	}
}

func TestHandler_InvalidSignature_Unauthorized(t *testing.T) {
	f := newHandlerFixture(t)

	body := []byte(`{"event_type":"call.answered","call_id":"pcc-1"}`)
	w := f.post(t, body, false)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
	if len(f.dispatcher.lifecycles)+len(f.dispatcher.transcriptions) != 0 {
		t.Error("rejected webhooks must not be dispatched")
	}
}

func TestHandler_TamperedBody_Unauthorized(t *testing.T) {
	f := newHandlerFixture(t)

	signed := []byte(`{"event_type":"call.answered","call_id":"pcc-1"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := SignPayload(f.priv, ts, signed)

	tampered := []byte(`{"event_type":"call.answered","call_id":"pcc-other"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/call", bytes.NewReader(tampered))
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, sig)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestHandler_Malformed_AckedAndDropped(t *testing.T) {
	f := newHandlerFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `this is not json`},
		{"missing call id", `{"event_type":"call.answered"}`},
		{"unknown event type", `{"event_type":"call.teleported","call_id":"pcc-1"}`},
		{"transcription without text", `{"event_type":"call.transcription","call_id":"pcc-1"}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.post(t, []byte(tt.body), true)

			// Authentic but unusable payloads are acknowledged, never retried.
			if w.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", w.Code)
			}
			if len(f.dispatcher.lifecycles)+len(f.dispatcher.transcriptions) != 0 {
				t.Error("malformed webhooks must not be dispatched")
			}
		})
	}
}

func TestHandler_OversizedBody_Rejected(t *testing.T) {
	pubB64, priv := newKeyPair(t)
	v, err := NewVerifier(pubB64, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	d := &recordingDispatcher{}
	h := NewHandler(v, d, 32)

	body := bytes.Repeat([]byte("a"), 64)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/call", bytes.NewReader(body))
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, SignPayload(priv, ts, body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", w.Code)
	}
}
