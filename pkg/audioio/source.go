package audioio

import (
	"context"
)

// BlockFunc receives one mono block of captured samples in [-1, 1].
// It runs on the device clock and must not block. The slice is only
// valid for the duration of the call.
type BlockFunc func(block []float32)

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start opens the device and begins delivering blocks to fn.
	// Cancelling ctx stops capture.
	Start(ctx context.Context, fn BlockFunc) error

	// Stop halts capture and releases the device. It may wait for a
	// block callback in flight to return.
	// It is safe to call Stop multiple times.
	Stop() error

	// SampleRate returns the rate blocks are delivered at. It is only
	// meaningful after Start and must not block, since it may be called
	// from the block callback.
	SampleRate() int

	// Name returns the backend name (e.g., "portaudio", "mock").
	Name() string
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	// Blocks is the total number of blocks delivered.
	Blocks int64 `json:"blocks"`

	// Samples is the total number of samples delivered.
	Samples int64 `json:"samples"`

	// Running indicates if the source is currently capturing.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
