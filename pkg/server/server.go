// Package server runs the notepad adapter and the monitoring API as one
// process and tears them down in order.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/dittopad/internal/logger"
	"github.com/marmos91/dittopad/pkg/adapter/notepad"
	"github.com/marmos91/dittopad/pkg/api"
	"github.com/marmos91/dittopad/pkg/config"
	"github.com/marmos91/dittopad/pkg/metrics"
	promMetrics "github.com/marmos91/dittopad/pkg/metrics/prometheus"
	"github.com/marmos91/dittopad/pkg/registry"
	"github.com/marmos91/dittopad/pkg/store"
)

// apiStopTimeout bounds the API drain after the adapter has stopped.
const apiStopTimeout = 5 * time.Second

// Server owns the components of a running notepad server. It takes
// ownership of the store and closes it when Serve returns.
type Server struct {
	config   *config.Config
	store    store.Store
	registry *registry.Registry
	adapter  *notepad.Adapter
	api      *api.Server

	serveOnce sync.Once
}

// New wires a server from cfg. reg is the Prometheus registry metrics are
// recorded on and served from; nil disables metrics.
func New(cfg *config.Config, st store.Store, reg *prometheus.Registry) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server requires a configuration")
	}
	if st == nil {
		return nil, errors.New("server requires a store")
	}

	s := &Server{
		config:   cfg,
		store:    st,
		registry: registry.New(),
	}

	var m metrics.NotepadMetrics
	if reg != nil {
		m = promMetrics.NewNotepadMetricsWith(reg)
	}

	if cfg.Adapters.Notepad.Enabled {
		a, err := notepad.New(cfg.Adapters.Notepad, s.registry, st, m)
		if err != nil {
			return nil, err
		}
		s.adapter = a
	}

	if cfg.API.Enabled {
		deps := api.Dependencies{
			Sessions: s.registry,
			Store:    st,
			Metrics:  reg,
		}
		// A nil *notepad.Adapter must not become a non-nil interface.
		if s.adapter != nil {
			deps.Adapter = s.adapter
		}
		s.api = api.NewServer(cfg.API, deps)
	}

	if s.adapter == nil && s.api == nil {
		return nil, errors.New("nothing to serve: the notepad adapter and the API are both disabled")
	}
	return s, nil
}

// Serve runs until ctx is cancelled or a component fails, then stops the
// adapter, the API and the store in that order. Cancellation is a clean
// stop and returns nil. Serve may only be called once.
func (s *Server) Serve(ctx context.Context) error {
	err := errors.New("server already served")
	s.serveOnce.Do(func() {
		err = s.serve(ctx)
	})
	return err
}

func (s *Server) serve(ctx context.Context) error {
	logger.Info("Starting DittoPad",
		logger.StoreType(s.store.Type()),
		"notepad", s.adapter != nil,
		"api", s.api != nil)

	if err := ctx.Err(); err != nil {
		logger.Info("Shutdown requested before start", logger.KeyReason, err)
		return s.closeStore(nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var adapterDone, apiDone chan error
	if s.adapter != nil {
		adapterDone = make(chan error, 1)
		go func() { adapterDone <- s.adapter.Serve(ctx) }()
	}
	if s.api != nil {
		apiDone = make(chan error, 1)
		go func() { apiDone <- s.api.Start(ctx) }()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", logger.KeyReason, ctx.Err())
	case err := <-adapterDone:
		adapterDone = nil
		if err != nil || ctx.Err() == nil {
			runErr = fmt.Errorf("notepad adapter stopped: %w", errOrStopped(err))
			logger.Error("Notepad adapter failed - initiating shutdown", logger.Err(runErr))
		}
	case err := <-apiDone:
		apiDone = nil
		if err != nil || ctx.Err() == nil {
			runErr = fmt.Errorf("API server stopped: %w", errOrStopped(err))
			logger.Error("API server failed - initiating shutdown", logger.Err(runErr))
		}
	}

	// The adapter drains on cancellation: listener closed, blocked reads
	// interrupted, then up to shutdown_timeout before force close.
	cancel()

	if adapterDone != nil {
		if err := <-adapterDone; err != nil {
			logger.Warn("Notepad adapter shutdown error", logger.Err(err))
			runErr = errors.Join(runErr, err)
		}
	}
	if apiDone != nil {
		select {
		case err := <-apiDone:
			if err != nil {
				logger.Warn("API server shutdown error", logger.Err(err))
				runErr = errors.Join(runErr, err)
			}
		case <-time.After(apiStopTimeout + time.Second):
			logger.Warn("API server did not stop in time")
		}
	}

	runErr = s.closeStore(runErr)
	logger.Info("DittoPad stopped", "active_usernames", s.registry.Count())
	return runErr
}

func (s *Server) closeStore(runErr error) error {
	if err := s.store.Close(); err != nil {
		logger.Warn("Failed to close store", logger.Err(err))
		return errors.Join(runErr, fmt.Errorf("close store: %w", err))
	}
	return runErr
}

func errOrStopped(err error) error {
	if err == nil {
		return errors.New("stopped unexpectedly")
	}
	return err
}

// NotepadAddr blocks until the notepad listener is bound and returns its
// address. It returns "" when the adapter is disabled or failed to bind.
func (s *Server) NotepadAddr() string {
	if s.adapter == nil {
		return ""
	}
	return s.adapter.Addr()
}

// APIAddr returns the bound API address, or "" before it listens.
func (s *Server) APIAddr() string {
	if s.api == nil {
		return ""
	}
	return s.api.Addr()
}

// Registry returns the session registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}
