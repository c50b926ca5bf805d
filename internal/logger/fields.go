package logger

import "log/slog"

// Standard field keys. Use these consistently so log lines can be queried
// the same way regardless of which component emitted them.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Protocol
	KeyProtocol = "protocol"
	KeyCommand  = "command"
	KeyStatus   = "status"

	// Session & connection
	KeySessionID  = "session_id"
	KeyUsername   = "username"
	KeyClientIP   = "client_ip"
	KeyAddress    = "address"
	KeyActive     = "active"
	KeyReason     = "reason"
	KeyConnection = "connection"

	// Files
	KeyFilename     = "filename"
	KeyEntries      = "entries"
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"

	// Storage backend
	KeyStoreType = "store_type"
	KeyBucket    = "bucket"
	KeyKey       = "key"
	KeyPath      = "path"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyPort       = "port"
)

// Username returns a slog.Attr for a notepad username
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// SessionID returns a slog.Attr for a connection session id
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// Command returns a slog.Attr for a protocol command name
func Command(name string) slog.Attr {
	return slog.String(KeyCommand, name)
}

// Filename returns a slog.Attr for a notepad file name
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// StoreType returns a slog.Attr for the storage backend type
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// DurationMs returns a slog.Attr for a duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error. A nil error yields an empty attr,
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
