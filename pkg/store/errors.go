package store

import "errors"

var (
	// ErrNotFound is returned when a file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidName is returned for filenames that are not a single path
	// element.
	ErrInvalidName = errors.New("invalid file name")

	// ErrStoreClosed is returned once Close has been called.
	ErrStoreClosed = errors.New("store is closed")
)
