// Package respond renders RFC 9457 problem details for responses produced
// outside huma operations: unknown routes, disallowed methods and panics.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/negotiation"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	applog "github.com/janisto/k8s-demo/internal/platform/logging"
)

const (
	contentTypeJSON        = "application/json"
	contentTypeCBOR        = "application/cbor"
	contentTypeProblemJSON = "application/problem+json"
	contentTypeProblemCBOR = "application/problem+cbor"

	msgNotFound            = "resource not found"
	msgInternalServerError = "internal server error"
)

// candidateMethods are probed against the route tree to build the Allow header.
var candidateMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

// NotFoundHandler emits a 404 problem.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteProblem(w, r, http.StatusNotFound, msgNotFound, nil)
	}
}

// MethodNotAllowedHandler emits a 405 problem and lists the methods the
// matched path does accept in the Allow header.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allow := allowedMethods(r); len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
		}
		WriteProblem(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method), nil)
	}
}

// Recoverer converts panics into 500 problems. http.ErrAbortHandler is
// re-panicked so net/http can abort the connection. A panic after the
// response has started is only logged; the partial response is left as is.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				stack := zap.ByteString("stack", debug.Stack())
				if ww.Status() != 0 || ww.BytesWritten() > 0 {
					applog.LogError(r.Context(), "panic after response started", err, stack,
						zap.Int("status", ww.Status()),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)
					return
				}
				WriteProblem(ww, r, http.StatusInternalServerError, msgInternalServerError, err, stack)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// WriteProblem logs the failure at a severity matching status and writes a
// problem document, CBOR encoded when the client prefers it.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string, cause error, fields ...zap.Field) {
	ctx := r.Context()
	fields = append(fields,
		zap.Int("status", status),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	if status >= http.StatusInternalServerError {
		applog.LogError(ctx, detail, cause, fields...)
	} else {
		if cause != nil {
			fields = append(fields, zap.Error(cause))
		}
		applog.LogWarn(ctx, detail, fields...)
	}

	problem := &huma.ErrorModel{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
	if err := encodeProblem(w, r, problem); err != nil {
		applog.LogError(ctx, "failed to render problem", err, zap.Int("status", status))
	}
}

func encodeProblem(w http.ResponseWriter, r *http.Request, problem *huma.ErrorModel) error {
	if wantsCBOR(r.Header.Get("Accept")) {
		body, err := cbor.Marshal(problem)
		if err != nil {
			return fmt.Errorf("encode cbor problem: %w", err)
		}
		w.Header().Set("Content-Type", contentTypeProblemCBOR)
		w.WriteHeader(problem.Status)
		_, err = w.Write(body)
		return err
	}
	w.Header().Set("Content-Type", contentTypeProblemJSON)
	w.WriteHeader(problem.Status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(problem)
}

// wantsCBOR picks the problem encoding from accept. Quality values rank
// first; on a tie the problem+ media types beat their base types and JSON
// beats CBOR. Wildcards and unsupported types fall back to JSON.
func wantsCBOR(accept string) bool {
	if accept == "" {
		return false
	}
	accept = strings.ToLower(accept)
	problem := negotiation.SelectQValueFast(accept, []string{contentTypeProblemJSON, contentTypeProblemCBOR})
	base := negotiation.SelectQValueFast(accept, []string{contentTypeJSON, contentTypeCBOR})
	best := problem
	switch {
	case problem == "":
		best = base
	case base != "":
		// The first allowed entry keeps ties, so base only wins on a higher q.
		best = negotiation.SelectQValueFast(accept, []string{problem, base})
	}
	return best == contentTypeProblemCBOR || best == contentTypeCBOR
}

// allowedMethods inspects chi's routing context to discover allowed methods.
func allowedMethods(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return nil
	}
	routePath := rctx.RoutePath
	if routePath == "" {
		routePath = r.URL.RawPath
		if routePath == "" {
			routePath = r.URL.Path
		}
		if routePath == "" {
			routePath = "/"
		}
	}
	allowed := make([]string, 0, len(candidateMethods))
	for _, method := range candidateMethods {
		if rctx.Routes.Match(chi.NewRouteContext(), method, routePath) {
			allowed = append(allowed, method)
		}
	}
	return allowed
}
