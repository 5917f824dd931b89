// Package health serves the Kubernetes liveness and readiness probes.
package health

import (
	"encoding/json"
	"net/http"
)

// Response is the payload for both probes.
type Response struct {
	Status string `json:"status"`
}

// Liveness reports healthy for as long as the process can answer.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	write(w, http.StatusOK, "healthy")
}

// Readiness returns a handler that is 200 only while state is Listening, so
// Kubernetes stops routing traffic as soon as shutdown begins.
func Readiness(state *State) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		phase := state.Phase()
		if phase != Listening {
			write(w, http.StatusServiceUnavailable, phase.String())
			return
		}
		write(w, http.StatusOK, "ready")
	}
}

func write(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Status: value})
}
