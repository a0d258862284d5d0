package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-livevoice/pkg/audioio"
	"github.com/teslashibe/go-livevoice/pkg/pcm"
)

type fakeTransport struct {
	mu       sync.Mutex
	frames   []string
	mimes    []string
	buffered atomic.Int64
	err      error
}

func (f *fakeTransport) SendAudio(data, mimeType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, data)
	f.mimes = append(f.mimes, mimeType)
	return nil
}

func (f *fakeTransport) Buffered() int { return int(f.buffered.Load()) }

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

type fakeGate struct {
	ready atomic.Bool
	muted atomic.Bool
}

func (g *fakeGate) Ready() bool { return g.ready.Load() }
func (g *fakeGate) Muted() bool { return g.muted.Load() }

func setup(t *testing.T) (*audioio.MockSource, *fakeTransport, *fakeGate, *Pipeline) {
	t.Helper()
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithSineWave(440, 0.5))
	tx := &fakeTransport{}
	gate := &fakeGate{}
	gate.ready.Store(true)

	p := New(src, tx, gate)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { p.Stop() })
	return src, tx, gate, p
}

func TestPipeline_SendsResampledFrames(t *testing.T) {
	src, tx, _, p := setup(t)

	src.Emit()
	src.Emit()

	if tx.count() != 2 {
		t.Fatalf("Expected 2 frames, got %d", tx.count())
	}
	if tx.mimes[0] != "audio/pcm;rate=16000" {
		t.Errorf("Unexpected MIME type %q", tx.mimes[0])
	}

	samples, err := pcm.DecodeAudio(tx.frames[0])
	if err != nil {
		t.Fatalf("DecodeAudio failed: %v", err)
	}
	// 4096 samples at 48 kHz averaged down to 16 kHz.
	if len(samples) != 1365 {
		t.Errorf("Expected 1365 samples, got %d", len(samples))
	}

	if stats := p.Stats(); stats.Blocks != 2 || stats.Sent != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestPipeline_Backpressure(t *testing.T) {
	src, tx, _, p := setup(t)

	src.Emit()
	tx.buffered.Store(DefaultMaxBuffered + 1)
	src.Emit()

	if tx.count() != 1 {
		t.Errorf("Expected frame count to stay at 1 under backpressure, got %d", tx.count())
	}
	if got := p.Stats().Dropped[DropBackpressure]; got != 1 {
		t.Errorf("Expected 1 backpressure drop, got %d", got)
	}

	// Exactly at the threshold still sends.
	tx.buffered.Store(DefaultMaxBuffered)
	src.Emit()
	if tx.count() != 2 {
		t.Errorf("Expected send at threshold, got %d frames", tx.count())
	}
}

func TestPipeline_Gates(t *testing.T) {
	tests := []struct {
		name   string
		ready  bool
		muted  bool
		reason DropReason
	}{
		{"muted", true, true, DropMuted},
		{"not ready", false, false, DropNotReady},
		{"muted and not ready", false, true, DropMuted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, tx, gate, p := setup(t)
			gate.ready.Store(tt.ready)
			gate.muted.Store(tt.muted)

			src.Emit()

			if tx.count() != 0 {
				t.Errorf("Expected no frames, got %d", tx.count())
			}
			if got := p.Stats().Dropped[tt.reason]; got != 1 {
				t.Errorf("Expected 1 drop for %s, got %d", tt.reason, got)
			}
		})
	}
}

func TestPipeline_UnmuteResumes(t *testing.T) {
	src, tx, gate, p := setup(t)

	gate.muted.Store(true)
	src.Emit()
	gate.muted.Store(false)
	src.Emit()

	if tx.count() != 1 {
		t.Errorf("Expected 1 frame after unmute, got %d", tx.count())
	}
	if !p.Active() {
		t.Error("Mute must not stop capture")
	}
}

func TestPipeline_SendFailure(t *testing.T) {
	src, tx, _, p := setup(t)
	tx.err = errors.New("closed")

	src.Emit()

	if got := p.Stats().Dropped[DropSendFailed]; got != 1 {
		t.Errorf("Expected send failure counted, got %d", got)
	}
}

func TestPipeline_DeviceError(t *testing.T) {
	denied := errors.New("permission denied")
	src := audioio.NewMockSource(audioio.DefaultConfig(), nil, audioio.WithStartError(denied))
	p := New(src, &fakeTransport{}, &fakeGate{})

	err := p.Start(context.Background())
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("Expected DeviceError, got %v", err)
	}
	if !errors.Is(err, denied) {
		t.Error("Expected DeviceError to unwrap to the device error")
	}
	if p.Active() {
		t.Error("Expected pipeline inactive after failed start")
	}
}

func TestPipeline_StopIdempotent(t *testing.T) {
	src, tx, _, p := setup(t)

	if err := p.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}

	p.Stop()
	p.Stop()

	if src.Emit() {
		t.Error("Expected source stopped")
	}
	if tx.count() != 0 {
		t.Errorf("Expected no frames after stop, got %d", tx.count())
	}
}

// lockingSource holds its lock while Stop waits for callbacks in flight,
// like a PortAudio stream does.
type lockingSource struct {
	mu       sync.Mutex
	fn       audioio.BlockFunc
	inflight sync.WaitGroup
	locked   chan struct{}
}

func (s *lockingSource) Start(_ context.Context, fn audioio.BlockFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
	return nil
}

func (s *lockingSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.locked)
	s.inflight.Wait()
	return nil
}

func (s *lockingSource) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return 48000
}

func (s *lockingSource) Name() string { return "locking" }

func (s *lockingSource) emit(block []float32) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		fn(block)
	}()
}

// stallTransport blocks Buffered until release is closed.
type stallTransport struct {
	fakeTransport
	entered chan struct{}
	release chan struct{}
}

func (s *stallTransport) Buffered() int {
	close(s.entered)
	<-s.release
	return 0
}

func TestPipeline_StopWhileCallbackInFlight(t *testing.T) {
	src := &lockingSource{locked: make(chan struct{})}
	tx := &stallTransport{entered: make(chan struct{}), release: make(chan struct{})}
	gate := &fakeGate{}
	gate.ready.Store(true)

	p := New(src, tx, gate)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src.emit(make([]float32, 480))
	<-tx.entered

	done := make(chan error, 1)
	go func() { done <- p.Stop() }()

	<-src.locked
	close(tx.release)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Stop to return while a block callback was in flight")
	}
	if tx.count() != 1 {
		t.Errorf("Expected the in-flight block to be sent, got %d frames", tx.count())
	}
}
