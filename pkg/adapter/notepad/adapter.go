// Package notepad is the TCP adapter serving the virtual notepad protocol.
//
// Every connection runs a small state machine: it asks for a username,
// claims it in the shared registry, then edits an in-memory buffer that
// SAVE and LOAD move to and from the user's files in a store.Store. Socket
// handling, connection limits and shutdown come from adapter.BaseAdapter.
package notepad

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/marmos91/dittopad/internal/logger"
	"github.com/marmos91/dittopad/pkg/adapter"
	"github.com/marmos91/dittopad/pkg/bufpool"
	"github.com/marmos91/dittopad/pkg/metrics"
	"github.com/marmos91/dittopad/pkg/registry"
	"github.com/marmos91/dittopad/pkg/store"
)

// Protocol is the adapter's protocol name.
const Protocol = "notepad"

// Adapter serves notepad sessions.
type Adapter struct {
	*adapter.BaseAdapter

	config   Config
	registry *registry.Registry
	store    store.Store
	metrics  metrics.NotepadMetrics
	bufs     *bufpool.Pool
}

var (
	_ adapter.Adapter           = (*Adapter)(nil)
	_ adapter.ConnectionFactory = (*Adapter)(nil)
)

// New creates a stopped adapter. reg and st are required; m may be nil.
func New(cfg Config, reg *registry.Registry, st store.Store, m metrics.NotepadMetrics) (*Adapter, error) {
	if reg == nil {
		return nil, errors.New("notepad adapter requires a session registry")
	}
	if st == nil {
		return nil, errors.New("notepad adapter requires a store")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid notepad config: %w", err)
	}

	base := adapter.NewBaseAdapter(cfg.baseConfig(), Protocol)
	if m != nil {
		base.Metrics = m
	}

	return &Adapter{
		BaseAdapter: base,
		config:      cfg,
		registry:    reg,
		store:       st,
		metrics:     m,
		bufs:        bufpool.NewPool(&bufpool.Config{Sizes: []int{cfg.ReadBufferSize.Int()}}),
	}, nil
}

// Serve accepts connections until ctx is cancelled or Stop is called.
func (a *Adapter) Serve(ctx context.Context) error {
	logger.Info("Starting notepad server",
		logger.KeyAddress, a.config.baseConfig().ListenAddress(),
		logger.StoreType(a.store.Type()),
		"release_on_disconnect", a.config.ReleaseOnDisconnect)

	return a.ServeWithFactory(ctx, a, nil, nil)
}

// NewConnection implements adapter.ConnectionFactory.
func (a *Adapter) NewConnection(conn net.Conn) adapter.ConnectionHandler {
	return newConnection(a, conn)
}

// MapError implements adapter.Adapter.
func (a *Adapter) MapError(err error) adapter.ProtocolError {
	return MapError(err)
}

// Settings returns the effective configuration.
func (a *Adapter) Settings() Config {
	return a.config
}

// Registry returns the session registry shared by all connections.
func (a *Adapter) Registry() *registry.Registry {
	return a.registry
}
