package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittopad/pkg/store/fs"
)

type listener struct{ up bool }

func (listener) Protocol() string  { return "notepad" }
func (listener) Port() int         { return 9000 }
func (l listener) Listening() bool { return l.up }

func serve(h http.HandlerFunc, path string) (*httptest.ResponseRecorder, Response) {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, path, nil))
	var resp Response
	_ = json.NewDecoder(w.Body).Decode(&resp)
	return w, resp
}

func TestLivenessReportsUptime(t *testing.T) {
	w, resp := serve(NewHealthHandler(nil, nil).Liveness, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	assert.Equal(t, "dittopad", data["service"])
	assert.Contains(t, data, "started_at")
	assert.Contains(t, data, "uptime_sec")
}

func TestReadinessStates(t *testing.T) {
	closed := fs.NewMemory()
	require.NoError(t, closed.Close())

	tests := []struct {
		name    string
		handler *HealthHandler
		code    int
		err     string
	}{
		{"uninitialized", NewHealthHandler(nil, fs.NewMemory()), http.StatusServiceUnavailable, "server not initialized"},
		{"not listening", NewHealthHandler(listener{}, fs.NewMemory()), http.StatusServiceUnavailable, "adapter not listening"},
		{"store closed", NewHealthHandler(listener{up: true}, closed), http.StatusServiceUnavailable, "store unhealthy"},
		{"ready", NewHealthHandler(listener{up: true}, fs.NewMemory()), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := serve(tt.handler.Readiness, "/health/ready")
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.err, resp.Error)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}
