package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/dittopad/pkg/store"
)

// HealthCheckTimeout bounds the store probe of the readiness endpoint.
const HealthCheckTimeout = 5 * time.Second

// Listener is the adapter state the readiness probe looks at.
type Listener interface {
	Protocol() string
	Port() int
	Listening() bool
}

// HealthHandler serves /health and /health/ready.
type HealthHandler struct {
	listener  Listener
	store     store.Store
	startTime time.Time
}

// NewHealthHandler creates a health handler. Either argument may be nil, in
// which case readiness reports unhealthy.
func NewHealthHandler(l Listener, st store.Store) *HealthHandler {
	return &HealthHandler{
		listener:  l,
		store:     st,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health. It succeeds whenever the HTTP server can
// answer.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "dittopad",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready: the notepad listener must be bound
// and the store must answer a health check.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.listener == nil || h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("server not initialized", nil))
		return
	}

	data := map[string]any{
		"adapter": map[string]any{
			"protocol":  h.listener.Protocol(),
			"port":      h.listener.Port(),
			"listening": h.listener.Listening(),
		},
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	storeErr := h.store.HealthCheck(ctx)
	storeHealth := map[string]any{
		"type":    h.store.Type(),
		"latency": time.Since(start).String(),
		"status":  "healthy",
	}
	if storeErr != nil {
		storeHealth["status"] = "unhealthy"
		storeHealth["error"] = storeErr.Error()
	}
	data["store"] = storeHealth

	switch {
	case !h.listener.Listening():
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("adapter not listening", data))
	case storeErr != nil:
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("store unhealthy", data))
	default:
		writeJSON(w, http.StatusOK, healthyResponse(data))
	}
}
