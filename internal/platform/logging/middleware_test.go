package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAccessLoggerUsesRequestLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	access := AccessLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/tea", nil)
	req = req.WithContext(WithLogger(req.Context(), zap.New(core)))
	access.ServeHTTP(httptest.NewRecorder(), req)

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Message != "request completed" {
		t.Fatalf("unexpected log message: %s", entries[0].Message)
	}
	fields := fieldMap(entries[0])
	if f, ok := fields["status"]; !ok || f.Integer != http.StatusTeapot {
		t.Fatalf("expected status 418, got %+v", f)
	}
	if f, ok := fields["method"]; !ok || f.String != http.MethodGet {
		t.Fatalf("expected method GET, got %+v", f)
	}
	if f, ok := fields["path"]; !ok || f.String != "/tea" {
		t.Fatalf("expected path '/tea', got %+v", f)
	}
	if f, ok := fields["bytes"]; !ok || f.Integer != int64(len("short and stout")) {
		t.Fatalf("unexpected bytes field: %+v", f)
	}
	if f, ok := fields["duration"]; !ok || time.Duration(f.Integer) < 5*time.Millisecond {
		t.Fatalf("unexpected duration field: %+v", f)
	}
}

func TestRequestLoggerStoresRequestIDAsTraceID(t *testing.T) {
	var traceID string
	var logger *zap.Logger
	handler := RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = TraceIDFromContext(r.Context())
		logger = LoggerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chimiddleware.RequestIDKey, "req-123"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if traceID != "req-123" {
		t.Fatalf("expected request id as trace id, got %q", traceID)
	}
	if logger == nil || logger == Logger() {
		t.Fatal("expected a request-scoped logger")
	}
}

func TestRequestLoggerPrefersTraceparent(t *testing.T) {
	var traceID string
	handler := RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(traceparentHeader, sampleTraceparent)
	req = req.WithContext(context.WithValue(req.Context(), chimiddleware.RequestIDKey, "req-456"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	tc, _ := parseTraceparent(sampleTraceparent)
	if want := traceResource(tc, resolveProjectID()); traceID != want {
		t.Fatalf("expected trace id %q, got %q", want, traceID)
	}
}

func TestRequestLoggerWithoutIdentifiers(t *testing.T) {
	var traceID string
	var logger *zap.Logger
	handler := RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = TraceIDFromContext(r.Context())
		logger = LoggerFromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if traceID != "" {
		t.Fatalf("expected no trace id, got %q", traceID)
	}
	if logger != Logger() {
		t.Fatal("expected shared logger when nothing enriches it")
	}
}
