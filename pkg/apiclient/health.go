package apiclient

import (
	"context"
	"net/http"
	"time"
)

// Health is the envelope of /health and /health/ready.
type Health struct {
	Status    string     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Data      HealthData `json:"data"`
	Error     string     `json:"error,omitempty"`
}

// HealthData merges the liveness and readiness payloads; each endpoint
// fills its own fields.
type HealthData struct {
	Service   string `json:"service,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty"`
	UptimeSec int64  `json:"uptime_sec,omitempty"`

	Adapter *AdapterHealth `json:"adapter,omitempty"`
	Store   *StoreHealth   `json:"store,omitempty"`
}

// AdapterHealth describes the notepad listener.
type AdapterHealth struct {
	Protocol  string `json:"protocol"`
	Port      int    `json:"port"`
	Listening bool   `json:"listening"`
}

// StoreHealth is the result of the store probe.
type StoreHealth struct {
	Type    string `json:"type"`
	Latency string `json:"latency"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Healthy reports whether the server said "healthy".
func (h *Health) Healthy() bool {
	return h.Status == "healthy"
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if _, err := c.get(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Ready calls GET /health/ready. An unready server is not an error: the
// returned Health carries the reason.
func (c *Client) Ready(ctx context.Context) (*Health, error) {
	var h Health
	if _, err := c.get(ctx, "/health/ready", &h, http.StatusServiceUnavailable); err != nil {
		return nil, err
	}
	return &h, nil
}
