package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"call-translation-service/internal/registry"
)

func notImplemented() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	})
}

func newTestRouter(t *testing.T) (http.Handler, *registry.Memory) {
	t.Helper()
	reg := registry.NewMemory()
	router := NewRouter(Handlers{
		Webhook:               notImplemented(),
		Stream:                notImplemented(),
		TranscriptionCallback: notImplemented(),
		Calls:                 NewCallsHandler(reg),
	})
	return router, reg
}

func TestRouter_HealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/v1/liveness", "/v1/readiness"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, w.Code)
		}
	}
}

func TestCalls_Create(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{
		"id": "call-1",
		"tenantId": "tenant-1",
		"providerCallId": "pcc-1",
		"modulations": {
			"liveTranslationEnabled": true,
			"transcriptionEnabled": true,
			"sourceLanguage": "en",
			"targetLanguage": "es"
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/calls", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	// Provisioning twice conflicts.
	req = httptest.NewRequest(http.MethodPost, "/v1/calls", strings.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409 for duplicate call, got %d", w.Code)
	}
}

func TestCalls_Create_BadRequest(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `nope`},
		{"missing fields", `{"id": "call-1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/calls", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestCalls_Get(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"id":"call-1","tenantId":"tenant-1","providerCallId":"pcc-1","modulations":{}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/calls", strings.NewReader(body))
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/v1/calls/call-1", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"providerCallId":"pcc-1"`) {
		t.Errorf("expected call record in response, got %s", w.Body.String())
	}

	// Wrong tenant and unknown call both present as not found.
	for _, tc := range []struct{ path, tenant string }{
		{"/v1/calls/call-1", "tenant-other"},
		{"/v1/calls/nope", "tenant-1"},
	} {
		req = httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set("X-Tenant-ID", tc.tenant)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s as %s: expected status 404, got %d", tc.path, tc.tenant, w.Code)
		}
	}
}
