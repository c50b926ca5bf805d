package notepad

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittopad/internal/logger"
	"github.com/marmos91/dittopad/internal/protocol/notepad"
	"github.com/marmos91/dittopad/internal/telemetry"
	"github.com/marmos91/dittopad/pkg/bufpool"
	"github.com/marmos91/dittopad/pkg/metrics"
	"github.com/marmos91/dittopad/pkg/registry"
)

// Connection is one client session. It is owned by the goroutine running
// Serve and is not safe for concurrent use.
type Connection struct {
	adapter   *Adapter
	conn      net.Conn
	sessionID string
	addr      string

	username   string
	registered bool

	// buffer is the document being edited.
	buffer  bytes.Buffer
	readBuf []byte
	out     *bytes.Buffer
}

func newConnection(a *Adapter, conn net.Conn) *Connection {
	return &Connection{
		adapter:   a,
		conn:      conn,
		sessionID: uuid.NewString(),
		addr:      conn.RemoteAddr().String(),
	}
}

// Serve runs the session until the client exits or disconnects. A nil
// return is a normal end; any error is a socket, storage or shutdown
// failure that ended the connection.
func (c *Connection) Serve(ctx context.Context) (err error) {
	c.readBuf = c.adapter.bufs.Get(c.adapter.config.ReadBufferSize.Int())
	c.out = bufpool.GetBuffer()
	defer func() {
		c.adapter.bufs.Put(c.readBuf)
		bufpool.PutBuffer(c.out)
		c.readBuf, c.out = nil, nil
	}()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in notepad connection",
				logger.KeyAddress, c.addr, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic in connection handler: %v", r)
		}
	}()

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanSession)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.SessionID(c.sessionID), telemetry.ClientAddr(c.addr))

	lc := logger.NewLogContext(c.sessionID, clientIP(c.addr)).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)
	logger.DebugCtx(ctx, "Notepad session started")

	err = c.serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		telemetry.RecordError(ctx, err)
	}
	return err
}

func (c *Connection) serve(ctx context.Context) error {
	ctx, err := c.register(ctx)
	if c.registered && c.adapter.config.ReleaseOnDisconnect {
		// No-op after EXIT, which already released the name.
		defer c.release(ctx, metrics.ReleaseDisconnect)
	}
	if err != nil || !c.registered {
		return err
	}

	for {
		message, err := c.readMessage(ctx)
		if errors.Is(err, errDisconnected) {
			logger.InfoCtx(ctx, "Client disconnected")
			return nil
		}
		if err != nil {
			return err
		}

		exit, err := c.dispatch(ctx, notepad.Parse(message))
		if err != nil || exit {
			return err
		}
	}
}

// register runs the AwaitingUsername state. On return c.registered tells
// whether a name was claimed, even when err is set.
func (c *Connection) register(ctx context.Context) (context.Context, error) {
	if err := c.write(notepad.PromptUsername); err != nil {
		return ctx, err
	}

	username, err := c.readMessage(ctx)
	if errors.Is(err, errDisconnected) {
		logger.DebugCtx(ctx, "Client disconnected before choosing a username")
		return ctx, nil
	}
	if err != nil {
		return ctx, err
	}

	_, span := telemetry.StartSpan(ctx, telemetry.SpanRegister)
	granted := c.adapter.registry.TryRegisterSession(registry.SessionInfo{
		Username:   username,
		ClientAddr: c.addr,
	})
	span.SetAttributes(telemetry.Username(username), telemetry.Outcome(registrationOutcome(granted)))
	span.End()

	if m := c.adapter.metrics; m != nil {
		m.RecordRegistration(granted)
		m.SetActiveSessions(c.adapter.registry.Count())
	}

	if !granted {
		logger.InfoCtx(ctx, "Username already taken", logger.Username(username))
		return ctx, c.write(notepad.UsernameTaken)
	}

	c.username = username
	c.registered = true
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithUsername(username))
	telemetry.SetAttributes(ctx, telemetry.Username(username))
	logger.InfoCtx(ctx, "Session registered")

	if err := c.adapter.store.EnsureDir(ctx, username); err != nil {
		return ctx, fmt.Errorf("prepare user directory: %w", err)
	}
	return ctx, c.write(notepad.Welcome)
}

func registrationOutcome(granted bool) string {
	if granted {
		return "granted"
	}
	return "taken"
}

// release frees the session's username. Only the first call has an effect.
func (c *Connection) release(ctx context.Context, reason string) {
	if !c.adapter.registry.Release(c.username) {
		return
	}
	if m := c.adapter.metrics; m != nil {
		m.RecordRelease(reason)
		m.SetActiveSessions(c.adapter.registry.Count())
	}
	logger.InfoCtx(ctx, "Session released", logger.KeyReason, reason)
}

// readMessage reads one chunk from the socket and decodes it. A zero-byte
// read yields errDisconnected. During shutdown the interrupted read is
// reported as the context error.
func (c *Connection) readMessage(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if idle := c.adapter.config.IdleTimeout; idle > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
				return "", fmt.Errorf("set idle deadline: %w", err)
			}
		}

		n, err := c.conn.Read(c.readBuf)
		if n > 0 {
			// Data before an error is still a message; the error resurfaces
			// on the next read.
			return notepad.Decode(c.readBuf[:n]), nil
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return "", errDisconnected
		case ctx.Err() != nil:
			return "", ctx.Err()
		default:
			return "", fmt.Errorf("read from client: %w", err)
		}
	}
}

func (c *Connection) write(s string) error {
	if s == "" {
		return nil
	}
	if _, err := io.WriteString(c.conn, s); err != nil {
		return fmt.Errorf("write to client: %w", err)
	}
	return nil
}

func (c *Connection) writeBytes(b []byte) error {
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("write to client: %w", err)
	}
	return nil
}

// dispatch executes one command. exit is true after EXIT.
func (c *Connection) dispatch(ctx context.Context, cmd notepad.Command) (exit bool, err error) {
	start := time.Now()
	name := cmd.Name()

	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithCommand(name))
	ctx, span := telemetry.StartCommandSpan(ctx, name, telemetry.Username(c.username))
	defer span.End()

	switch cmd := cmd.(type) {
	case notepad.Save:
		err = c.handleSave(ctx, cmd)
	case notepad.Load:
		err = c.handleLoad(ctx, cmd)
	case notepad.List:
		err = c.handleList(ctx)
	case notepad.Exit:
		c.handleExit(ctx)
		exit = true
	case notepad.Append:
		err = c.handleAppend(cmd)
	default:
		err = fmt.Errorf("unhandled command %T", cmd)
	}

	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
		telemetry.RecordError(ctx, err)
	}
	if m := c.adapter.metrics; m != nil {
		m.RecordCommand(name, status, time.Since(start))
	}
	logger.DebugCtx(ctx, "Command executed", logger.KeyStatus, status, logger.DurationMs(logger.Duration(start)))
	return exit, err
}

// Username returns the claimed username, or "" before registration.
func (c *Connection) Username() string {
	return c.username
}

func clientIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
