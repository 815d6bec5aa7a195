package connection

import "errors"

// Sentinel errors. Wrapped errors add detail; match with errors.Is.
var (
	// ErrNotConnected is returned when publishing outside the Connected state.
	ErrNotConnected = errors.New("connection: not connected")

	// ErrConnectionFailed is returned when a session could not be established.
	ErrConnectionFailed = errors.New("connection: connection failed")

	// ErrPublishFailed is returned when the transport rejected a publish or
	// the session ended before the broker acknowledged it.
	ErrPublishFailed = errors.New("connection: publish failed")

	// ErrClosed is returned by Start and Connect after Disconnect.
	ErrClosed = errors.New("connection: manager closed")
)
