//go:build noportaudio

package audioio

import "log/slog"

func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, ErrBackendUnavailable
}

func newPortAudioOutput(cfg Config, logger *slog.Logger, rate int) (Output, error) {
	return nil, ErrBackendUnavailable
}

// ListDevices is unavailable without PortAudio.
func ListDevices() ([]DeviceInfo, error) {
	return nil, ErrBackendUnavailable
}

func portAudioAvailable() bool {
	return false
}
