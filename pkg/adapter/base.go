package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittopad/internal/logger"
)

// interruptGrace is the read deadline applied to live connections when
// shutdown begins, so handlers blocked in Read return promptly.
const interruptGrace = 100 * time.Millisecond

// Accept retry backoff bounds for temporary listener errors.
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// ConnectionHandler serves one accepted connection. Serve blocks until the
// peer disconnects, the protocol ends the session or ctx is cancelled.
type ConnectionHandler interface {
	Serve(ctx context.Context) error
}

// ConnectionFactory creates a ConnectionHandler for each accepted socket.
type ConnectionFactory interface {
	NewConnection(conn net.Conn) ConnectionHandler
}

// BaseConfig is the configuration shared by TCP adapters.
type BaseConfig struct {
	// BindAddress is the address to listen on. Empty or "0.0.0.0" means all
	// interfaces.
	BindAddress string

	// Port is the TCP port. 0 picks a free port (tests).
	Port int

	// MaxConnections caps concurrent connections. 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout bounds the graceful drain before connections are
	// force-closed.
	ShutdownTimeout time.Duration

	// MetricsLogInterval enables a periodic log line with the connection
	// count. 0 disables it.
	MetricsLogInterval time.Duration
}

// ListenAddress returns the host:port the adapter binds.
func (c BaseConfig) ListenAddress() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

// MetricsRecorder receives connection lifecycle events. A nil recorder
// disables recording.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

// OnConnectionClose runs after a connection's handler returns, with the
// handler's error.
type OnConnectionClose func(addr string, err error)

// BaseAdapter implements listener management, connection tracking and
// graceful shutdown. Protocol adapters embed it and supply a
// ConnectionFactory.
//
// All exported methods are safe for concurrent use.
type BaseAdapter struct {
	Config BaseConfig

	// Metrics is optional.
	Metrics MetricsRecorder

	protocolName string

	listenerMu sync.RWMutex
	listener   net.Listener

	// activeConns counts handler goroutines for the drain.
	activeConns sync.WaitGroup

	shutdownOnce sync.Once
	readyOnce    sync.Once

	// Shutdown is closed when shutdown begins.
	Shutdown chan struct{}

	// ListenerReady is closed once Serve has either bound its listener or
	// failed to.
	ListenerReady chan struct{}

	// ConnCount is the number of live connections.
	ConnCount atomic.Int32

	// connSemaphore is nil when MaxConnections is 0.
	connSemaphore chan struct{}

	// ShutdownCtx is handed to every connection handler and cancelled when
	// shutdown begins.
	ShutdownCtx    context.Context
	CancelRequests context.CancelFunc

	// ActiveConnections maps remote address to net.Conn for interruption
	// and forced closure.
	ActiveConnections sync.Map
}

// NewBaseAdapter creates a stopped BaseAdapter.
func NewBaseAdapter(config BaseConfig, protocol string) *BaseAdapter {
	var sem chan struct{}
	if config.MaxConnections > 0 {
		sem = make(chan struct{}, config.MaxConnections)
		logger.Debug(protocol+" connection limit", "max_connections", config.MaxConnections)
	} else {
		logger.Debug(protocol+" connection limit", "max_connections", "unlimited")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &BaseAdapter{
		Config:         config,
		protocolName:   protocol,
		Shutdown:       make(chan struct{}),
		ListenerReady:  make(chan struct{}),
		connSemaphore:  sem,
		ShutdownCtx:    ctx,
		CancelRequests: cancel,
	}
}

func (b *BaseAdapter) signalReady() {
	b.readyOnce.Do(func() { close(b.ListenerReady) })
}

func (b *BaseAdapter) shuttingDown() bool {
	select {
	case <-b.Shutdown:
		return true
	default:
		return false
	}
}

// ServeWithFactory binds the listener and runs the accept loop. Each
// accepted connection gets its own goroutine running the handler built by
// factory.
//
// preAccept, if set, may reject a connection before it is tracked. onClose,
// if set, runs after the handler returns. Handler errors are logged at warn.
//
// It returns nil after a clean drain and an error when binding fails or
// shutdown had to force-close connections.
func (b *BaseAdapter) ServeWithFactory(
	ctx context.Context,
	factory ConnectionFactory,
	preAccept func(net.Conn) bool,
	onClose OnConnectionClose,
) error {
	if b.shuttingDown() {
		b.signalReady()
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", b.Config.ListenAddress())
	if err != nil {
		b.signalReady()
		return fmt.Errorf("failed to create %s listener on %s: %w", b.protocolName, b.Config.ListenAddress(), err)
	}

	b.listenerMu.Lock()
	b.listener = ln
	b.listenerMu.Unlock()
	b.signalReady()

	logger.Info(b.protocolName+" server listening", logger.KeyAddress, ln.Addr().String())

	go func() {
		select {
		case <-ctx.Done():
			logger.Info(b.protocolName+" shutdown signal received", logger.KeyReason, ctx.Err())
			b.initiateShutdown()
		case <-b.Shutdown:
		}
	}()

	if b.Config.MetricsLogInterval > 0 {
		go b.logMetrics(ctx)
	}

	var backoff time.Duration
	for {
		if b.connSemaphore != nil {
			select {
			case b.connSemaphore <- struct{}{}:
			case <-b.Shutdown:
				return b.gracefulShutdown()
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			b.releaseSlot()
			if b.shuttingDown() {
				return b.gracefulShutdown()
			}

			// A failed accept never ends the loop.
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(backoff*2, maxAcceptBackoff)
			}
			logger.Warn("Error accepting "+b.protocolName+" connection", logger.Err(err), "retry_in", backoff)
			select {
			case <-time.After(backoff):
			case <-b.Shutdown:
				return b.gracefulShutdown()
			}
			continue
		}
		backoff = 0

		if tcp, ok := conn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("Failed to set TCP_NODELAY", logger.Err(err))
			}
		}

		if preAccept != nil && !preAccept(conn) {
			_ = conn.Close()
			b.releaseSlot()
			continue
		}

		b.track(conn, factory, onClose)
	}
}

func (b *BaseAdapter) releaseSlot() {
	if b.connSemaphore != nil {
		<-b.connSemaphore
	}
}

func (b *BaseAdapter) track(conn net.Conn, factory ConnectionFactory, onClose OnConnectionClose) {
	addr := conn.RemoteAddr().String()

	b.activeConns.Add(1)
	active := b.ConnCount.Add(1)
	b.ActiveConnections.Store(addr, conn)

	if b.Metrics != nil {
		b.Metrics.RecordConnectionAccepted()
		b.Metrics.SetActiveConnections(active)
	}
	logger.Debug(b.protocolName+" connection accepted", logger.KeyAddress, addr, logger.KeyActive, active)

	handler := factory.NewConnection(conn)

	go func() {
		var serveErr error
		defer func() {
			_ = conn.Close()
			if onClose != nil {
				onClose(addr, serveErr)
			}

			b.ActiveConnections.Delete(addr)
			remaining := b.ConnCount.Add(-1)
			b.releaseSlot()
			b.activeConns.Done()

			if b.Metrics != nil {
				b.Metrics.RecordConnectionClosed()
				b.Metrics.SetActiveConnections(remaining)
			}
			logger.Debug(b.protocolName+" connection closed", logger.KeyAddress, addr, logger.KeyActive, remaining)
		}()

		serveErr = handler.Serve(b.ShutdownCtx)
		if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
			logger.Warn("Error handling client", logger.KeyAddress, addr, logger.Err(serveErr))
		}
	}()
}

// initiateShutdown closes the listener, interrupts blocked reads and
// cancels ShutdownCtx. Only the first call has an effect.
func (b *BaseAdapter) initiateShutdown() {
	b.shutdownOnce.Do(func() {
		logger.Debug(b.protocolName + " shutdown initiated")
		close(b.Shutdown)

		b.listenerMu.Lock()
		if b.listener != nil {
			if err := b.listener.Close(); err != nil {
				logger.Debug("Error closing "+b.protocolName+" listener", logger.Err(err))
			}
		}
		b.listenerMu.Unlock()

		b.interruptBlockingReads()
		b.CancelRequests()
	})
}

func (b *BaseAdapter) interruptBlockingReads() {
	deadline := time.Now().Add(interruptGrace)
	b.ActiveConnections.Range(func(key, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			if err := conn.SetReadDeadline(deadline); err != nil {
				logger.Debug("Error setting shutdown deadline", logger.KeyAddress, key, logger.Err(err))
			}
		}
		return true
	})
}

// waitForConnections returns a channel closed once every handler returned.
func (b *BaseAdapter) waitForConnections() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		b.activeConns.Wait()
		close(done)
	}()
	return done
}

// gracefulShutdown waits up to ShutdownTimeout for handlers, then
// force-closes the rest.
func (b *BaseAdapter) gracefulShutdown() error {
	logger.Info(b.protocolName+" graceful shutdown: waiting for active connections",
		logger.KeyActive, b.ConnCount.Load(), "timeout", b.Config.ShutdownTimeout)

	done := b.waitForConnections()
	timer := time.NewTimer(b.Config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		logger.Info(b.protocolName + " graceful shutdown complete")
		return nil
	case <-timer.C:
		remaining := b.ConnCount.Load()
		logger.Warn(b.protocolName+" shutdown timeout exceeded, forcing closure",
			logger.KeyActive, remaining, "timeout", b.Config.ShutdownTimeout)
		b.forceCloseConnections()
		return fmt.Errorf("%s shutdown timeout: %d connections force-closed", b.protocolName, remaining)
	}
}

func (b *BaseAdapter) forceCloseConnections() {
	closed := 0
	b.ActiveConnections.Range(func(key, value any) bool {
		conn := value.(net.Conn)
		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection", logger.KeyAddress, key, logger.Err(err))
			return true
		}
		closed++
		if b.Metrics != nil {
			b.Metrics.RecordConnectionForceClosed()
		}
		return true
	})
	if closed > 0 {
		logger.Info("Force-closed connections", "count", closed)
	}
}

// Stop initiates shutdown and waits for handlers to return, bounded by ctx.
// With a nil ctx it waits up to ShutdownTimeout and then force-closes.
func (b *BaseAdapter) Stop(ctx context.Context) error {
	b.initiateShutdown()

	if ctx == nil {
		return b.gracefulShutdown()
	}

	select {
	case <-b.waitForConnections():
		return nil
	case <-ctx.Done():
		logger.Warn(b.protocolName+" shutdown context done", logger.KeyActive, b.ConnCount.Load(), logger.Err(ctx.Err()))
		b.forceCloseConnections()
		return ctx.Err()
	}
}

func (b *BaseAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(b.Config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.Shutdown:
			return
		case <-ticker.C:
			logger.Info(b.protocolName+" metrics", "active_connections", b.ConnCount.Load())
		}
	}
}

// ActiveConnectionCount returns the number of live connections.
func (b *BaseAdapter) ActiveConnectionCount() int32 {
	return b.ConnCount.Load()
}

// Addr blocks until Serve has tried to listen and returns the bound
// address, or "" if listening failed.
func (b *BaseAdapter) Addr() string {
	<-b.ListenerReady

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Listening reports whether the listener is bound and shutdown has not
// begun.
func (b *BaseAdapter) Listening() bool {
	if b.shuttingDown() {
		return false
	}
	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()
	return b.listener != nil
}

// Port returns the configured port.
func (b *BaseAdapter) Port() int {
	return b.Config.Port
}

// Protocol returns the protocol name.
func (b *BaseAdapter) Protocol() string {
	return b.protocolName
}

// MapError returns nil. Protocol adapters override it.
func (b *BaseAdapter) MapError(_ error) ProtocolError {
	return nil
}
