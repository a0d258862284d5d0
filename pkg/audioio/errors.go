package audioio

import "errors"

var (
	// ErrBackendUnavailable is returned when a backend was compiled out
	// or its native library could not be initialized.
	ErrBackendUnavailable = errors.New("audioio: backend unavailable")

	// ErrClosed is returned when using a closed source or output.
	ErrClosed = errors.New("audioio: closed")

	// ErrAlreadyStarted is returned when starting a running source.
	ErrAlreadyStarted = errors.New("audioio: already started")

	// ErrDeviceNotFound is returned when a named device does not exist.
	ErrDeviceNotFound = errors.New("audioio: device not found")
)
