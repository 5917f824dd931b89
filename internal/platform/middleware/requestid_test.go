package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

func serveRequestID(t *testing.T, incoming string) (captured string, resp *httptest.ResponseRecorder) {
	t.Helper()
	resp = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set(chimiddleware.RequestIDHeader, incoming)
	}
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = chimiddleware.GetReqID(r.Context())
	}))
	h.ServeHTTP(resp, req)
	return captured, resp
}

func TestRequestIDGeneratesUUIDv4(t *testing.T) {
	captured, resp := serveRequestID(t, "")

	if captured == "" {
		t.Fatal("expected generated request ID")
	}
	if header := resp.Header().Get(chimiddleware.RequestIDHeader); header != captured {
		t.Fatalf("expected response header %q, got %q", captured, header)
	}
	parsed, err := uuid.Parse(captured)
	if err != nil {
		t.Fatalf("request ID %q is not a valid UUID: %v", captured, err)
	}
	if parsed.Version() != 4 {
		t.Fatalf("expected UUIDv4, got version %d", parsed.Version())
	}
}

func TestRequestIDIsUniquePerRequest(t *testing.T) {
	first, _ := serveRequestID(t, "")
	second, _ := serveRequestID(t, "")
	if first == second {
		t.Fatalf("expected distinct ids, got %q twice", first)
	}
}

func TestRequestIDHandlesIncomingHeader(t *testing.T) {
	tests := []struct {
		name    string
		inputID string
		keep    bool
	}{
		{"alphanumeric", "abc123-XYZ", true},
		{"uuid", "550e8400-e29b-41d4-a716-446655440000", true},
		{"printable punctuation", "trace:abc-123_def.456!@#$%", true},
		{"spaces", "trace id 123", true},
		{"exactly max length", strings.Repeat("x", maxRequestIDLength), true},
		{"too long", strings.Repeat("a", maxRequestIDLength+1), false},
		{"newline", "valid\ninjected-line", false},
		{"carriage return", "valid\rinjected", false},
		{"null byte", "valid\x00null", false},
		{"tab", "valid\ttab", false},
		{"DEL", "valid\x7Fdel", false},
		{"high byte", "valid\x80high", false},
		{"emoji", "deploy-🚀", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			captured, resp := serveRequestID(t, tc.inputID)

			if tc.keep {
				if captured != tc.inputID {
					t.Fatalf("expected %q, got %q", tc.inputID, captured)
				}
			} else {
				if captured == tc.inputID {
					t.Fatalf("expected replacement id, got original %q", captured)
				}
				if _, err := uuid.Parse(captured); err != nil {
					t.Fatalf("expected UUID replacement, got %q: %v", captured, err)
				}
			}
			if got := resp.Header().Get(chimiddleware.RequestIDHeader); got != captured {
				t.Fatalf("response header %q does not match context id %q", got, captured)
			}
		})
	}
}
