package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func decode(t *testing.T, resp *httptest.ResponseRecorder) Response {
	t.Helper()
	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	var h Response
	if err := json.Unmarshal(resp.Body.Bytes(), &h); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return h
}

func TestLiveness(t *testing.T) {
	resp := httptest.NewRecorder()
	Liveness(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", resp.Code)
	}
	if h := decode(t, resp); h.Status != "healthy" {
		t.Fatalf("expected status 'healthy', got %s", h.Status)
	}
}

func TestReadinessFollowsLifecycle(t *testing.T) {
	var state State
	handler := Readiness(&state)

	tests := []struct {
		name    string
		advance func()
		code    int
		status  string
	}{
		{"starting", func() {}, http.StatusServiceUnavailable, "starting"},
		{"listening", func() { state.MarkListening() }, http.StatusOK, "ready"},
		{"stopping", state.MarkStopping, http.StatusServiceUnavailable, "stopping"},
	}
	for _, tt := range tests {
		tt.advance()
		resp := httptest.NewRecorder()
		handler(resp, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if resp.Code != tt.code {
			t.Fatalf("%s: expected %d, got %d", tt.name, tt.code, resp.Code)
		}
		if h := decode(t, resp); h.Status != tt.status {
			t.Fatalf("%s: expected status %q, got %q", tt.name, tt.status, h.Status)
		}
	}
}

func TestMarkListeningOnlyFromStarting(t *testing.T) {
	var state State
	if state.Phase() != Starting {
		t.Fatalf("zero value should be Starting, got %v", state.Phase())
	}
	if !state.MarkListening() {
		t.Fatal("expected first transition to succeed")
	}
	if state.MarkListening() {
		t.Fatal("expected second transition to be rejected")
	}
	state.MarkStopping()
	if state.MarkListening() {
		t.Fatal("stopping must not return to listening")
	}
	if state.Phase() != Stopping {
		t.Fatalf("expected Stopping, got %v", state.Phase())
	}
}

func TestMarkListeningConcurrent(t *testing.T) {
	var state State
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 50 {
		wg.Go(func() {
			if state.MarkListening() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winning transition, got %d", wins)
	}
}

func TestPhaseString(t *testing.T) {
	if got := Phase(42).String(); got != "unknown" {
		t.Fatalf("expected unknown, got %s", got)
	}
}
