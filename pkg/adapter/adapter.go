// Package adapter holds the protocol-independent parts of a TCP server:
// the accept loop, connection tracking and graceful shutdown.
package adapter

import "context"

// Adapter is a protocol server managed by the server lifecycle.
type Adapter interface {
	// Serve listens and handles connections until ctx is cancelled or Stop
	// is called. It returns an error when the listener cannot be created or
	// when shutdown had to force-close connections.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown and waits for active connections to
	// finish, bounded by ctx. It is safe to call more than once.
	Stop(ctx context.Context) error

	// Protocol returns a short protocol name for logs ("notepad").
	Protocol() string

	// Port returns the configured TCP port.
	Port() int

	// Addr blocks until the listener is up and returns its address, or ""
	// when listening failed.
	Addr() string

	// Listening reports whether the adapter currently accepts connections.
	Listening() bool

	// MapError translates a domain error into a client-facing error, or nil
	// when the error has no protocol representation.
	MapError(err error) ProtocolError
}
