package stream

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"call-translation-service/internal/models"
	"call-translation-service/internal/registry"
	"call-translation-service/internal/store"
)

type streamFixture struct {
	registry *registry.Memory
	segments *store.Memory
	server   *httptest.Server
}

func newStreamFixture(t *testing.T, cfg Config) *streamFixture {
	t.Helper()
	f := &streamFixture{
		registry: registry.NewMemory(),
		segments: store.NewMemory(),
	}
	p := New(f.registry, f.segments, cfg)
	router := chi.NewRouter()
	router.Get("/v1/calls/{callID}/translations/stream", p.ServeHTTP)
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *streamFixture) createCall(t *testing.T, status models.CallStatus) {
	t.Helper()
	err := f.registry.CreateCall(context.Background(), &models.Call{
		ID:             "call-1",
		TenantID:       "tenant-1",
		ProviderCallID: "pcc-1",
		Status:         status,
		Modulations: models.Modulations{
			LiveTranslationEnabled: true,
			SourceLanguage:         "en",
			TargetLanguage:         "es",
		},
	})
	if err != nil {
		t.Fatalf("CreateCall failed: %v", err)
	}
}

func (f *streamFixture) appendSegment(t *testing.T, translated string) {
	t.Helper()
	_, err := f.segments.Append(context.Background(), &models.TranslatedSegment{
		CallID:         "call-1",
		TenantID:       "tenant-1",
		OriginalText:   "original",
		TranslatedText: translated,
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

// subscribe opens the stream and returns SSE event lines ("event: ..." and
// "data: ...") until the connection closes or the timeout elapses.
func (f *streamFixture) subscribe(t *testing.T, path string) []string {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("X-Tenant-ID", "tenant-1")

	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected Content-Type text/event-stream, got %q", ct)
	}

	var lines []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				lines = append(lines, line)
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close in time")
	}
	return lines
}

func events(lines []string) []string {
	var out []string
	for _, line := range lines {
		if strings.HasPrefix(line, "event: ") {
			out = append(out, strings.TrimPrefix(line, "event: "))
		}
	}
	return out
}

func TestStream_ReplayThenDone(t *testing.T) {
	f := newStreamFixture(t, Config{PollInterval: 10 * time.Millisecond})
	f.createCall(t, models.StatusCompleted)
	f.appendSegment(t, "Hola")
	f.appendSegment(t, "¿Cómo está usted?")
	f.appendSegment(t, "Buenos días")

	lines := f.subscribe(t, "/v1/calls/call-1/translations/stream")

	got := events(lines)
	want := []string{"segment", "segment", "segment", "done"}
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if !strings.Contains(lines[len(lines)-1], `"status":"completed"`) {
		t.Errorf("expected done payload with terminal status, got %q", lines[len(lines)-1])
	}
}

func TestStream_CursorSkipsDeliveredSegments(t *testing.T) {
	f := newStreamFixture(t, Config{PollInterval: 10 * time.Millisecond})
	f.createCall(t, models.StatusCompleted)
	f.appendSegment(t, "Hola")
	f.appendSegment(t, "¿Cómo está usted?")
	f.appendSegment(t, "Buenos días")

	lines := f.subscribe(t, "/v1/calls/call-1/translations/stream?cursor=2")

	got := events(lines)
	want := []string{"segment", "done"}
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "Buenos días") {
		t.Errorf("expected third segment after cursor 2, got %q", joined)
	}
	if strings.Contains(joined, "Hola\"") {
		t.Errorf("did not expect segments at or below the cursor, got %q", joined)
	}
}

func TestStream_InvalidCursor_ReplaysFromStart(t *testing.T) {
	f := newStreamFixture(t, Config{PollInterval: 10 * time.Millisecond})
	f.createCall(t, models.StatusCompleted)
	f.appendSegment(t, "Hola")

	lines := f.subscribe(t, "/v1/calls/call-1/translations/stream?cursor=abc")

	got := events(lines)
	want := []string{"segment", "done"}
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
}

func TestStream_LiveDelivery(t *testing.T) {
	f := newStreamFixture(t, Config{PollInterval: 10 * time.Millisecond})
	f.createCall(t, models.StatusInProgress)
	f.appendSegment(t, "Hola")

	// Append a segment and end the call while the subscriber is connected.
	go func() {
		time.Sleep(50 * time.Millisecond)
		f.appendSegment(t, "Buenos días")
		time.Sleep(50 * time.Millisecond)
		if _, err := f.registry.UpdateStatus(context.Background(), "pcc-1", models.StatusCompleted, ""); err != nil {
			t.Errorf("UpdateStatus failed: %v", err)
		}
	}()

	lines := f.subscribe(t, "/v1/calls/call-1/translations/stream")

	got := events(lines)
	want := []string{"segment", "segment", "done"}
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "Buenos días") {
		t.Errorf("expected live segment to be delivered, got %q", joined)
	}
}

func TestStream_MaxSubscriptionAge(t *testing.T) {
	f := newStreamFixture(t, Config{
		PollInterval:       10 * time.Millisecond,
		MaxSubscriptionAge: 100 * time.Millisecond,
	})
	f.createCall(t, models.StatusInProgress)

	start := time.Now()
	lines := f.subscribe(t, "/v1/calls/call-1/translations/stream")
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Errorf("expected stream to close at max age, took %v", elapsed)
	}
	if got := events(lines); len(got) != 0 {
		t.Errorf("expected no events for idle in-progress call, got %v", got)
	}
}

func TestStream_UnknownCall_NotFound(t *testing.T) {
	f := newStreamFixture(t, Config{PollInterval: 10 * time.Millisecond})

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/v1/calls/nope/translations/stream", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("X-Tenant-ID", "tenant-1")

	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", resp.StatusCode)
	}
}

func TestStream_TenantMismatch_NotFound(t *testing.T) {
	f := newStreamFixture(t, Config{PollInterval: 10 * time.Millisecond})
	f.createCall(t, models.StatusInProgress)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/v1/calls/call-1/translations/stream", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("X-Tenant-ID", "tenant-other")

	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404 for tenant mismatch, got %d", resp.StatusCode)
	}
}
