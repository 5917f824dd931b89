package middleware

import "net/http"

// Vary appends the given request header names to the Vary response header.
// With no arguments it adds Accept, since the JSON or CBOR representation is
// chosen from it. CORS adds Origin on its own.
func Vary(headers ...string) func(http.Handler) http.Handler {
	if len(headers) == 0 {
		headers = []string{"Accept"}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, h := range headers {
				w.Header().Add("Vary", h)
			}
			next.ServeHTTP(w, r)
		})
	}
}
