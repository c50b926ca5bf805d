package adapter

// ProtocolError is an error with a protocol-level representation: a
// numeric code for logs and metrics and the message the client receives.
type ProtocolError interface {
	error

	// Code returns the protocol status code.
	Code() uint32

	// Message returns the text sent to the client.
	Message() string

	// Unwrap returns the underlying domain error.
	Unwrap() error
}
