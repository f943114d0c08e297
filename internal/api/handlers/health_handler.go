package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports whether the service's dependencies are reachable.
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler creates a handler running checks by name.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Serve responds 200 when every check passes and 503 otherwise.
func (h *HealthHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	result := map[string]string{}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			log.Warn().Err(err).Str("check", name).Msg("Health check failed")
			result[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}

	writeJSON(w, status, result)
}
