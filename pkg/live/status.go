package live

import "fmt"

// Status is the presentation state of a session.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusReady
	StatusListening
	StatusSpeaking
	StatusMuted
	StatusError
	StatusClosed
)

var statusNames = [...]string{
	StatusIdle:       "idle",
	StatusConnecting: "connecting",
	StatusReady:      "ready",
	StatusListening:  "listening",
	StatusSpeaking:   "speaking",
	StatusMuted:      "muted",
	StatusError:      "error",
	StatusClosed:     "closed",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("live: unknown status %q", b)
}

// Open reports whether the protocol handshake has completed and the
// session has not ended.
func (s Status) Open() bool {
	switch s {
	case StatusReady, StatusListening, StatusSpeaking, StatusMuted:
		return true
	}
	return false
}

// Terminal reports whether the session has ended.
func (s Status) Terminal() bool {
	return s == StatusError || s == StatusClosed
}
