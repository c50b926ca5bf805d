package notepad

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittopad/internal/protocol/notepad"
	"github.com/marmos91/dittopad/pkg/adapter"
	"github.com/marmos91/dittopad/pkg/store"
)

// Status codes carried by mapped errors. They only appear in logs, span
// attributes and metrics; clients see the message text.
const (
	CodeBadRequest  uint32 = 400
	CodeNotFound    uint32 = 404
	CodeStoreFailed uint32 = 500
	CodeUnavailable uint32 = 503
)

var (
	// errDisconnected reports a zero-byte read: the client went away.
	errDisconnected = errors.New("client disconnected")

	// errNotText rejects LOAD of a file that is not valid UTF-8.
	errNotText = errors.New("file is not valid UTF-8 text")
)

// CommandError is a storage failure while executing a command. A failed
// SAVE ends the connection with one; LOAD and LS failures are turned into
// client messages through MapError.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// statusError is the adapter.ProtocolError for notepad commands.
type statusError struct {
	code    uint32
	message string
	err     error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("notepad status %d: %v", e.code, e.err)
}

func (e *statusError) Code() uint32    { return e.code }
func (e *statusError) Message() string { return e.message }
func (e *statusError) Unwrap() error   { return e.err }

// MapError translates a LOAD or LS CommandError into the message the client
// receives. Any LOAD failure reads as "file not found" and any LS failure
// as "could not list". It returns nil for errors without a client-facing
// form, which includes SAVE failures.
func MapError(err error) adapter.ProtocolError {
	if err == nil {
		return nil
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return nil
	}

	var message string
	switch cmdErr.Command {
	case notepad.NameLoad:
		message = notepad.FileNotFound
	case notepad.NameList:
		message = notepad.ListFailed
	default:
		return nil
	}

	return &statusError{code: codeFor(cmdErr.Err), message: message, err: err}
}

func codeFor(err error) uint32 {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, errNotText):
		return CodeBadRequest
	case errors.Is(err, store.ErrStoreClosed):
		return CodeUnavailable
	default:
		return CodeStoreFailed
	}
}
