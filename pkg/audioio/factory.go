package audioio

import (
	"fmt"
	"log/slog"
)

// DeviceInfo describes an audio device.
type DeviceInfo struct {
	Name              string  `json:"name"`
	HostAPI           string  `json:"host_api"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	DefaultInput      bool    `json:"default_input"`
	DefaultOutput     bool    `json:"default_output"`
}

// NewSource creates a new audio source with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := resolveBackend(cfg.Backend)
	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"block_size", cfg.BlockSize,
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendPortAudio:
		return newPortAudioSource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// NewOutputFactory returns a factory that opens output clocks on the
// configured backend.
func NewOutputFactory(cfg Config, logger *slog.Logger) (OutputFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := resolveBackend(cfg.Backend)
	logger.Info("creating audio output", "backend", backend)

	switch backend {
	case BackendMock:
		return NewMockOutputFactory().Open, nil
	case BackendPortAudio:
		return func(rate int) (Output, error) {
			return newPortAudioOutput(cfg, logger, rate)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

func resolveBackend(b Backend) Backend {
	if b != BackendAuto {
		return b
	}
	return detectBestBackend()
}

// detectBestBackend returns the best available backend for the current build.
func detectBestBackend() Backend {
	if portAudioAvailable() {
		return BackendPortAudio
	}
	return BackendMock
}
