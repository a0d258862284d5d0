//go:build !noportaudio

package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// outputFramesPerBuffer keeps the output clock granularity near 10ms at 24kHz.
const outputFramesPerBuffer = 256

// PortAudio must be initialized once per process and terminated after the
// last stream closes.
var (
	paMu   sync.Mutex
	paRefs int
)

func paAcquire() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	paRefs++
	return nil
}

func paRelease() {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		return
	}
	paRefs--
	if paRefs == 0 {
		portaudio.Terminate()
	}
}

func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name != name {
			continue
		}
		if input && d.MaxInputChannels > 0 || !input && d.MaxOutputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

// paSource captures from a PortAudio input device.
type paSource struct {
	cfg    Config
	logger *slog.Logger

	rate atomic.Int32

	mu     sync.Mutex
	stream *portaudio.Stream
	stop   chan struct{}
}

func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	return &paSource{cfg: cfg, logger: logger}, nil
}

func (s *paSource) Start(ctx context.Context, fn BlockFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return ErrAlreadyStarted
	}
	if err := paAcquire(); err != nil {
		return err
	}

	dev, err := findDevice(s.cfg.InputDevice, true)
	if err != nil {
		paRelease()
		return fmt.Errorf("audioio: input device: %w", err)
	}

	channels := min(s.cfg.Channels, dev.MaxInputChannels)
	rate := s.cfg.SampleRate
	if rate == 0 {
		rate = int(dev.DefaultSampleRate)
	}

	// PortAudio exposes no voice processing; the host API's own
	// processing (if any) applies.
	if s.cfg.EchoCancellation || s.cfg.NoiseSuppression || s.cfg.AutoGainControl {
		s.logger.Debug("voice processing not available on portaudio backend, continuing",
			"echo_cancellation", s.cfg.EchoCancellation,
			"noise_suppression", s.cfg.NoiseSuppression,
			"auto_gain_control", s.cfg.AutoGainControl,
		)
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = channels
	params.SampleRate = float64(rate)
	params.FramesPerBuffer = s.cfg.BlockSize

	s.rate.Store(int32(rate))
	stream, err := portaudio.OpenStream(params, func(in []float32) {
		fn(Downmix(in, channels))
	})
	if err != nil {
		paRelease()
		return fmt.Errorf("audioio: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		paRelease()
		return fmt.Errorf("audioio: start input stream: %w", err)
	}

	s.stream = stream
	s.stop = make(chan struct{})
	go func(stop chan struct{}) {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stop:
		}
	}(s.stop)

	s.logger.Info("portaudio capture started",
		"device", dev.Name,
		"sample_rate", rate,
		"channels", channels,
		"block_size", s.cfg.BlockSize,
	)
	return nil
}

// Stop waits for the callback to return, so the stream is stopped
// outside mu.
func (s *paSource) Stop() error {
	s.mu.Lock()
	stream := s.stream
	if stream == nil {
		s.mu.Unlock()
		return nil
	}
	s.stream = nil
	close(s.stop)
	s.mu.Unlock()

	err := stream.Stop()
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	paRelease()

	s.logger.Info("portaudio capture stopped")
	return err
}

func (s *paSource) SampleRate() int {
	return int(s.rate.Load())
}

func (s *paSource) Name() string {
	return string(BackendPortAudio)
}

// paOutput plays a Mixer through a PortAudio output stream. The mixer's
// frame count is the output clock.
type paOutput struct {
	*Mixer

	logger *slog.Logger
	mu     sync.Mutex
	stream *portaudio.Stream
}

func newPortAudioOutput(cfg Config, logger *slog.Logger, rate int) (Output, error) {
	if err := paAcquire(); err != nil {
		return nil, err
	}

	dev, err := findDevice(cfg.OutputDevice, false)
	if err != nil {
		paRelease()
		return nil, fmt.Errorf("audioio: output device: %w", err)
	}

	o := &paOutput{Mixer: NewMixer(rate), logger: logger}

	params := portaudio.LowLatencyParameters(nil, dev)
	params.Output.Channels = 1
	params.SampleRate = float64(rate)
	params.FramesPerBuffer = outputFramesPerBuffer

	stream, err := portaudio.OpenStream(params, o.Render)
	if err != nil {
		paRelease()
		return nil, fmt.Errorf("audioio: open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		paRelease()
		return nil, fmt.Errorf("audioio: start output stream: %w", err)
	}
	o.stream = stream

	logger.Info("portaudio output opened", "device", dev.Name, "sample_rate", rate)
	return o, nil
}

func (o *paOutput) Schedule(samples []float32, at float64) (Voice, error) {
	return o.Mixer.Add(samples, at)
}

func (o *paOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.StopAll()
	if o.stream == nil {
		return nil
	}

	err := o.stream.Abort()
	if cerr := o.stream.Close(); err == nil {
		err = cerr
	}
	o.stream = nil
	paRelease()
	return err
}

func (o *paOutput) Name() string {
	return string(BackendPortAudio)
}

// ListDevices enumerates the PortAudio devices.
func ListDevices() ([]DeviceInfo, error) {
	if err := paAcquire(); err != nil {
		return nil, err
	}
	defer paRelease()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var defIn, defOut string
	if d, err := portaudio.DefaultInputDevice(); err == nil {
		defIn = d.Name
	}
	if d, err := portaudio.DefaultOutputDevice(); err == nil {
		defOut = d.Name
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		infos = append(infos, DeviceInfo{
			Name:              d.Name,
			HostAPI:           d.HostApi.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			DefaultInput:      d.Name == defIn,
			DefaultOutput:     d.Name == defOut,
		})
	}
	return infos, nil
}

func portAudioAvailable() bool {
	return true
}
