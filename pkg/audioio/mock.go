package audioio

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock audio source for testing.
// It generates synthetic blocks (silence or sine wave), either on a
// ticker or on demand through Emit.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	fn       BlockFunc
	stopCh   chan struct{}
	interval time.Duration
	startErr error

	// Stats
	blocks  atomic.Int64
	samples atomic.Int64

	// Synthetic audio generation
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithInterval makes the mock emit a block on every tick.
// Without it blocks are only produced by Emit.
func WithInterval(d time.Duration) MockSourceOption {
	return func(m *MockSource) {
		m.interval = d
	}
}

// WithStartError makes Start fail with err, simulating a denied microphone.
func WithStartError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.startErr = err
	}
}

// NewMockSource creates a new mock audio source. A zero cfg.SampleRate
// is reported as 48000, the common native rate of real microphones.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		frequency: 0, // Silence by default
		amplitude: 0.5,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins capture.
func (m *MockSource) Start(ctx context.Context, fn BlockFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return ErrAlreadyStarted
	}

	m.running = true
	m.fn = fn
	m.stopCh = make(chan struct{})

	go m.watch(ctx, m.stopCh)
	if m.interval > 0 {
		go m.generateLoop(m.stopCh)
	}

	m.logger.Info("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
	)

	return nil
}

func (m *MockSource) watch(ctx context.Context, stop chan struct{}) {
	select {
	case <-ctx.Done():
		m.Stop()
	case <-stop:
	}
}

func (m *MockSource) generateLoop(stop chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Emit()
		}
	}
}

// Emit synchronously delivers one block to the callback.
// It reports false when the source is not running.
func (m *MockSource) Emit() bool {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return false
	}
	fn := m.fn
	block := m.generateBlock()
	m.mu.Unlock()

	m.blocks.Add(1)
	m.samples.Add(int64(len(block)))
	if fn != nil {
		fn(block)
	}
	return true
}

func (m *MockSource) generateBlock() []float32 {
	block := make([]float32, m.cfg.BlockSize)
	if m.frequency <= 0 {
		return block
	}

	for i := range block {
		block[i] = float32(m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate)))
		m.phase++
		if m.phase >= float64(m.cfg.SampleRate) {
			m.phase = 0
		}
	}
	return block
}

// Stop halts capture.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false
	m.fn = nil
	close(m.stopCh)

	m.logger.Info("mock audio source stopped")
	return nil
}

// SampleRate returns the configured rate.
func (m *MockSource) SampleRate() int {
	return m.cfg.SampleRate
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		Blocks:  m.blocks.Load(),
		Samples: m.samples.Load(),
		Running: running,
		Backend: "mock",
	}
}

// Ensure MockSource implements SourceWithStats.
var _ SourceWithStats = (*MockSource)(nil)

// MockOutput is an Output whose clock only moves when Advance is called.
// Rendered audio is kept so tests can inspect what would have played.
type MockOutput struct {
	*Mixer

	mu       sync.Mutex
	closed   bool
	rendered []float32
}

// NewMockOutput creates a mock output at rate Hz.
func NewMockOutput(rate int) *MockOutput {
	return &MockOutput{Mixer: NewMixer(rate)}
}

// Schedule queues samples on the mixer.
func (o *MockOutput) Schedule(samples []float32, at float64) (Voice, error) {
	return o.Mixer.Add(samples, at)
}

// Advance renders d worth of audio, moving the clock forward.
func (o *MockOutput) Advance(d time.Duration) {
	frames := int(math.Round(d.Seconds() * float64(o.SampleRate())))
	buf := make([]float32, frames)
	o.Render(buf)

	o.mu.Lock()
	o.rendered = append(o.rendered, buf...)
	o.mu.Unlock()
}

// Rendered returns everything rendered so far.
func (o *MockOutput) Rendered() []float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]float32(nil), o.rendered...)
}

// Closed reports whether Close was called.
func (o *MockOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Close stops all voices.
func (o *MockOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.StopAll()
	return nil
}

// Name returns "mock".
func (o *MockOutput) Name() string {
	return "mock"
}

var _ Output = (*MockOutput)(nil)

// MockOutputFactory records every output it opens.
type MockOutputFactory struct {
	mu      sync.Mutex
	outputs []*MockOutput
	err     error
}

// NewMockOutputFactory creates a factory of MockOutputs.
func NewMockOutputFactory() *MockOutputFactory {
	return &MockOutputFactory{}
}

// Open implements OutputFactory.
func (f *MockOutputFactory) Open(rate int) (Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	o := NewMockOutput(rate)
	f.outputs = append(f.outputs, o)
	return o, nil
}

// FailWith makes subsequent opens fail.
func (f *MockOutputFactory) FailWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Outputs returns every output opened so far.
func (f *MockOutputFactory) Outputs() []*MockOutput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*MockOutput(nil), f.outputs...)
}

// Last returns the most recently opened output, or nil.
func (f *MockOutputFactory) Last() *MockOutput {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.outputs) == 0 {
		return nil
	}
	return f.outputs[len(f.outputs)-1]
}
