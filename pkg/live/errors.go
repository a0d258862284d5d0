package live

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice on a session.
	ErrAlreadyStarted = errors.New("live: session already started")

	// ErrClosed is returned by operations on a stopped session.
	ErrClosed = errors.New("live: session closed")

	// ErrNotStarted is returned by the manager when no session is active.
	ErrNotStarted = errors.New("live: not started")

	// ErrQueueFull is returned when the outbound queue cannot take a frame.
	ErrQueueFull = errors.New("live: outbound queue full")
)

// Kind classifies session-fatal errors.
type Kind string

const (
	// KindCredential means no credential could be obtained.
	KindCredential Kind = "credential"

	// KindTransport covers dial failures, socket errors and unexpected closes.
	KindTransport Kind = "transport"

	// KindDevice means the microphone or speaker could not be opened.
	KindDevice Kind = "device"
)

// Error is a session-fatal error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("live: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a session *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
