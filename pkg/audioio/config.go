// Package audioio provides microphone capture and scheduled audio output.
//
// Backends:
//   - PortAudio - cross-platform device I/O (default)
//   - Mock - CI/Testing without hardware
//
// Build with -tags noportaudio to compile without the cgo PortAudio backend.
package audioio

import (
	"fmt"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for cross-platform audio I/O.
	BackendPortAudio Backend = "portaudio"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// DefaultBlockSize is the number of frames delivered per capture callback.
const DefaultBlockSize = 4096

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend" mapstructure:"backend"`

	// SampleRate is the requested capture rate in Hz.
	// Zero uses the device's native rate.
	SampleRate int `yaml:"sample_rate" json:"sample_rate" mapstructure:"sample_rate"`

	// Channels is the number of capture channels. Blocks are always
	// delivered as mono; extra channels are averaged down.
	Channels int `yaml:"channels" json:"channels" mapstructure:"channels"`

	// BlockSize is the number of frames per capture callback.
	BlockSize int `yaml:"block_size" json:"block_size" mapstructure:"block_size"`

	// InputDevice and OutputDevice select devices by name.
	// Empty selects the system default.
	InputDevice  string `yaml:"input_device" json:"input_device" mapstructure:"input_device"`
	OutputDevice string `yaml:"output_device" json:"output_device" mapstructure:"output_device"`

	// Voice processing requests. Backends that cannot honor them
	// log and continue.
	EchoCancellation bool `yaml:"echo_cancellation" json:"echo_cancellation" mapstructure:"echo_cancellation"`
	NoiseSuppression bool `yaml:"noise_suppression" json:"noise_suppression" mapstructure:"noise_suppression"`
	AutoGainControl  bool `yaml:"auto_gain_control" json:"auto_gain_control" mapstructure:"auto_gain_control"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendAuto,
		SampleRate:       0, // device native
		Channels:         1,
		BlockSize:        DefaultBlockSize,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate < 0 {
		return fmt.Errorf("sample_rate must not be negative, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	}
	switch c.Backend {
	case BackendAuto, BackendPortAudio, BackendMock:
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}
	return nil
}
