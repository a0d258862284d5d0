package live

import "github.com/teslashibe/go-livevoice/pkg/transcript"

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	ID           string `json:"id"`
	Status       Status `json:"status"`
	Muted        bool   `json:"muted"`
	ErrorKind    Kind   `json:"error_kind,omitempty"`
	Error        string `json:"error,omitempty"`
	UserPreview  string `json:"user_preview,omitempty"`
	ModelPreview string `json:"model_preview,omitempty"`
}

// Observer receives session events. Implementations must not block and
// must not call back into the session.
type Observer interface {
	StatusChanged(Snapshot)
	Error(*Error)
	Transcript(turns []transcript.Turn)
}

// Observers fans events out to every observer in order.
type Observers []Observer

func (o Observers) StatusChanged(s Snapshot) {
	for _, ob := range o {
		ob.StatusChanged(s)
	}
}

func (o Observers) Error(e *Error) {
	for _, ob := range o {
		ob.Error(e)
	}
}

func (o Observers) Transcript(turns []transcript.Turn) {
	for _, ob := range o {
		ob.Transcript(turns)
	}
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) StatusChanged(Snapshot) {}
func (NopObserver) Error(*Error) {}
func (NopObserver) Transcript([]transcript.Turn) {}
