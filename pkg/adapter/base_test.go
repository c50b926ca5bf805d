package adapter

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	accepted, closed, forceClosed atomic.Int32
	active                        atomic.Int32
}

func (r *fakeRecorder) RecordConnectionAccepted()    { r.accepted.Add(1) }
func (r *fakeRecorder) RecordConnectionClosed()      { r.closed.Add(1) }
func (r *fakeRecorder) RecordConnectionForceClosed() { r.forceClosed.Add(1) }
func (r *fakeRecorder) SetActiveConnections(n int32) { r.active.Store(n) }

// echoHandler writes back whatever it reads until EOF.
type echoHandler struct{ conn net.Conn }

func (h echoHandler) Serve(context.Context) error {
	buf := make([]byte, 64)
	for {
		n, err := h.conn.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if _, err := h.conn.Write(buf[:n]); err != nil {
			return err
		}
	}
}

// stubbornHandler ignores read deadlines and only returns once the socket
// is closed.
type stubbornHandler struct{ conn net.Conn }

func (h stubbornHandler) Serve(context.Context) error {
	buf := make([]byte, 1)
	for {
		_, err := h.conn.Read(buf)
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			_ = h.conn.SetReadDeadline(time.Time{})
			continue
		}
		return err
	}
}

type factoryFunc func(net.Conn) ConnectionHandler

func (f factoryFunc) NewConnection(c net.Conn) ConnectionHandler { return f(c) }

var (
	echoFactory     = factoryFunc(func(c net.Conn) ConnectionHandler { return echoHandler{c} })
	stubbornFactory = factoryFunc(func(c net.Conn) ConnectionHandler { return stubbornHandler{c} })
)

type running struct {
	base   *BaseAdapter
	cancel context.CancelFunc
	errCh  chan error
}

func start(t *testing.T, cfg BaseConfig, f ConnectionFactory, pre func(net.Conn) bool, onClose OnConnectionClose) *running {
	t.Helper()
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}

	b := NewBaseAdapter(cfg, "test")
	b.Metrics = &fakeRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{base: b, cancel: cancel, errCh: make(chan error, 1)}

	go func() { r.errCh <- b.ServeWithFactory(ctx, f, pre, onClose) }()
	require.NotEmpty(t, b.Addr())
	t.Cleanup(func() {
		cancel()
		_ = b.Stop(context.Background())
	})
	return r
}

func (r *running) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
		return nil
	}
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServeAndCancel(t *testing.T) {
	var (
		mu       sync.Mutex
		closedBy []error
	)
	onClose := func(_ string, err error) {
		mu.Lock()
		closedBy = append(closedBy, err)
		mu.Unlock()
	}
	r := start(t, BaseConfig{}, echoFactory, nil, onClose)
	rec := r.base.Metrics.(*fakeRecorder)

	conn := dial(t, r.base.Addr())
	_, err := conn.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	assert.Equal(t, int32(1), r.base.ActiveConnectionCount())
	assert.True(t, r.base.Listening())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return r.base.ActiveConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Len(t, closedBy, 1)
	assert.NoError(t, closedBy[0])
	mu.Unlock()
	assert.Equal(t, int32(1), rec.accepted.Load())
	assert.Equal(t, int32(1), rec.closed.Load())
	assert.Equal(t, int32(0), rec.active.Load())

	r.cancel()
	assert.NoError(t, r.wait(t))
	assert.False(t, r.base.Listening())
}

func TestShutdownInterruptsBlockedReads(t *testing.T) {
	r := start(t, BaseConfig{}, echoFactory, nil, nil)
	dial(t, r.base.Addr())
	require.Eventually(t, func() bool { return r.base.ActiveConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	r.cancel()
	assert.NoError(t, r.wait(t))
	assert.Equal(t, int32(0), r.base.ActiveConnectionCount())
}

func TestShutdownTimeoutForceCloses(t *testing.T) {
	r := start(t, BaseConfig{ShutdownTimeout: 200 * time.Millisecond}, stubbornFactory, nil, nil)
	rec := r.base.Metrics.(*fakeRecorder)
	dial(t, r.base.Addr())
	require.Eventually(t, func() bool { return r.base.ActiveConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	r.cancel()
	err := r.wait(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "force-closed")
	assert.Equal(t, int32(1), rec.forceClosed.Load())
}

func TestStopWithContextDeadline(t *testing.T) {
	r := start(t, BaseConfig{ShutdownTimeout: 5 * time.Second}, stubbornFactory, nil, nil)
	dial(t, r.base.Addr())
	require.Eventually(t, func() bool { return r.base.ActiveConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.base.Stop(ctx), context.DeadlineExceeded)

	// Stop force-closed the socket, so the accept loop drains cleanly.
	assert.NoError(t, r.wait(t))
}

func TestPreAcceptRejects(t *testing.T) {
	r := start(t, BaseConfig{}, echoFactory, func(net.Conn) bool { return false }, nil)
	rec := r.base.Metrics.(*fakeRecorder)

	conn := dial(t, r.base.Addr())
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := conn.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Equal(t, int32(0), rec.accepted.Load())
}

func TestMaxConnections(t *testing.T) {
	r := start(t, BaseConfig{MaxConnections: 1}, echoFactory, nil, nil)

	first := dial(t, r.base.Addr())
	require.Eventually(t, func() bool { return r.base.ActiveConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// The second dial completes in the kernel backlog but is not served.
	second := dial(t, r.base.Addr())
	_, err := second.Write([]byte("x"))
	require.NoError(t, err)
	_ = second.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err = second.Read(make([]byte, 1))
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())

	require.NoError(t, first.Close())
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = io.ReadFull(second, buf)
	require.NoError(t, err)
	assert.Equal(t, "x", string(buf))
}

func TestListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port

	b := NewBaseAdapter(BaseConfig{BindAddress: "127.0.0.1", Port: port, ShutdownTimeout: time.Second}, "test")
	err = b.ServeWithFactory(context.Background(), echoFactory, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create test listener")
	assert.Empty(t, b.Addr())
	assert.False(t, b.Listening())
}

func TestStopBeforeServe(t *testing.T) {
	b := NewBaseAdapter(BaseConfig{BindAddress: "127.0.0.1", ShutdownTimeout: time.Second}, "test")
	require.NoError(t, b.Stop(context.Background()))
	require.NoError(t, b.Stop(context.Background()))
	assert.NoError(t, b.ServeWithFactory(context.Background(), echoFactory, nil, nil))
	assert.Empty(t, b.Addr())
}

func TestBaseConfigListenAddress(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8080", BaseConfig{BindAddress: "0.0.0.0", Port: 8080}.ListenAddress())
	assert.Equal(t, ":9000", BaseConfig{Port: 9000}.ListenAddress())
}
