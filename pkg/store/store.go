// Package store defines the per-user storage used by notepad sessions.
//
// Every user owns a flat namespace of named text files. A Store maps
// (username, filename) pairs to a backend location: a directory tree on
// disk, object keys in a bucket, or keys in an embedded database. Files are
// always read and written whole.
//
// Stores do no cross-session locking. The session registry guarantees that
// at most one connection acts for a given username, so two writers never
// share a namespace.
package store

import "context"

// DefaultFilename is the file SAVE writes when no name is given.
const DefaultFilename = "notepad.txt"

// Store is the storage contract used by the notepad protocol handler.
type Store interface {
	// EnsureDir creates the user's namespace if it does not exist yet.
	// It is idempotent and never removes anything.
	EnsureDir(ctx context.Context, username string) error

	// WriteFile replaces the whole content of filename, creating it if
	// needed. Readers observe either the old or the new content, never a mix.
	WriteFile(ctx context.Context, username, filename string, contents []byte) error

	// ReadFile returns the whole content of filename, or ErrNotFound.
	ReadFile(ctx context.Context, username, filename string) ([]byte, error)

	// ListDir returns the entry names in the user's namespace. The list is
	// not recursive and carries no metadata. Order is backend-defined.
	ListDir(ctx context.Context, username string) ([]string, error)

	// HealthCheck reports whether the backend can serve requests.
	HealthCheck(ctx context.Context) error

	// Type returns a short backend name such as "filesystem" or "s3".
	Type() string

	// Close releases backend resources. Further calls return ErrStoreClosed.
	Close() error
}
