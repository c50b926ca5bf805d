package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/dittopad/internal/logger"
	"github.com/marmos91/dittopad/pkg/api/handlers"
	"github.com/marmos91/dittopad/pkg/store"
)

// Dependencies are the running components the API reports on. Any field
// may be nil; the matching endpoints then answer 503.
type Dependencies struct {
	Adapter  handlers.Listener
	Sessions handlers.SessionSource
	Store    store.Store

	// Metrics is the registry served on /metrics. The route is not
	// mounted when it is nil.
	Metrics *prometheus.Registry
}

// NewRouter builds the chi router.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe (adapter listening, store healthy)
//   - GET /metrics - Prometheus scrape endpoint
//   - GET /api/v1/sessions - Active sessions
//   - GET /api/v1/users/{username}/files - Files of one user
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(deps.Adapter, deps.Store)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	sessionHandler := handlers.NewSessionHandler(deps.Sessions)
	fileHandler := handlers.NewFileHandler(deps.Store)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sessions", sessionHandler.List)
		r.Get("/users/{username}/files", fileHandler.List)
	})

	return r
}

// requestLogger logs each request through the internal logger. Probe and
// scrape traffic is logged at DEBUG.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}
		if isQuietPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}

func isQuietPath(path string) bool {
	return path == "/metrics" || path == "/health" || strings.HasPrefix(path, "/health/")
}
