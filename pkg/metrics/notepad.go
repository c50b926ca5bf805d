package metrics

import "time"

// Release reasons.
const (
	ReleaseExit       = "exit"
	ReleaseDisconnect = "disconnect"
)

// Command outcomes.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// NotepadMetrics observes the notepad adapter. A nil NotepadMetrics is
// valid everywhere one is accepted and records nothing.
type NotepadMetrics interface {
	// Connection lifecycle, called by the accept loop.
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)

	// RecordRegistration records a username claim. granted is false when
	// the name was already held.
	RecordRegistration(granted bool)

	// RecordRelease records a username release with its reason.
	RecordRelease(reason string)

	// SetActiveSessions updates the number of registered usernames.
	SetActiveSessions(count int)

	// RecordCommand records one handled command. status is StatusOK or
	// StatusError.
	RecordCommand(command, status string, duration time.Duration)

	// RecordBytesSaved and RecordBytesLoaded count file payload bytes.
	RecordBytesSaved(n int)
	RecordBytesLoaded(n int)
}
