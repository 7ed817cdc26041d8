package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/drift/meet-app/internal/engine"
)

var errRateLimited = errors.New("rate limited")

// statsHandler serves the engine counters as JSON for dashboards and
// smoke checks. The same numbers are pushed to connected clients on the
// stats broadcast ticker.
func statsHandler(eng *engine.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(eng.Stats())
	})
}
