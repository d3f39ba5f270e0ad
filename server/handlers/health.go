package handlers

import (
	"encoding/json"
	"net/http"
)

// BreakerState reports the model circuit breaker.
type BreakerState interface {
	BreakerState() string
	Healthy() bool
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status         string   `json:"status"`
	CircuitBreaker string   `json:"circuit_breaker,omitempty"`
	Intents        []string `json:"intents,omitempty"`
}

// Health answers {"status":"ok"} while the model backend is usable and 503
// with status "degraded" while its breaker is open. breaker and intents
// may be nil.
func Health(breaker BreakerState, intents func() []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}
		code := http.StatusOK

		if breaker != nil {
			resp.CircuitBreaker = breaker.BreakerState()
			if !breaker.Healthy() {
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		if intents != nil {
			resp.Intents = intents()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(resp)
	}
}
