// Package playback schedules decoded model audio for gapless output.
//
// Chunks are placed back to back on a single output clock: each starts at
// max(now, nextFreeTime) and pushes nextFreeTime forward by its duration.
// Flush stops everything, releases the clock and bumps the epoch so chunks
// decoded before the flush are discarded.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-livevoice/pkg/audioio"
	"github.com/teslashibe/go-livevoice/pkg/pcm"
)

// SpeakingLead is how far nextFreeTime must be ahead of the clock for the
// model to still count as speaking with no voice registered.
const SpeakingLead = 0.05

// ErrStaleEpoch is returned by Enqueue for chunks decoded before the last Flush.
var ErrStaleEpoch = errors.New("playback: stale epoch")

// Chunk is one decoded piece of model audio.
type Chunk struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the chunk length in seconds.
func (c Chunk) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Metrics receives scheduler events. See metrics.Metrics.
type Metrics interface {
	ChunkScheduled(seconds float64)
	ChunkStale()
	PlaybackFlushed()
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics reports scheduling events.
func WithMetrics(m Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Mirror receives every chunk accepted for playback and is flushed
// together with the scheduler.
type Mirror interface {
	Forward(Chunk)
	Flush()
}

// MirrorFunc adapts a function to a Mirror that ignores flushes.
type MirrorFunc func(Chunk)

// Forward calls f.
func (f MirrorFunc) Forward(c Chunk) { f(c) }

// Flush does nothing.
func (MirrorFunc) Flush() {}

// WithMirror sets the mirror.
func WithMirror(m Mirror) Option {
	return func(s *Scheduler) { s.mirror = m }
}

// Scheduler owns the output clock and the in-flight voice registry.
type Scheduler struct {
	open    audioio.OutputFactory
	logger  *slog.Logger
	metrics Metrics
	mirror  Mirror

	mu       sync.Mutex
	out      audioio.Output
	rate     int
	nextFree float64
	epoch    uint64
	voices   map[uint64]audioio.Voice
	seq      uint64
	closed   bool
}

// New creates a scheduler that opens output clocks with open.
func New(open audioio.OutputFactory, opts ...Option) *Scheduler {
	s := &Scheduler{
		open:   open,
		logger: slog.Default(),
		voices: make(map[uint64]audioio.Voice),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Epoch returns the current flush generation. Decoders tag chunks with it.
func (s *Scheduler) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Enqueue schedules a chunk decoded during epoch. Chunks from an older
// epoch are dropped with ErrStaleEpoch.
func (s *Scheduler) Enqueue(epoch uint64, c Chunk) error {
	if len(c.Samples) == 0 {
		return nil
	}
	if c.SampleRate <= 0 {
		c.SampleRate = pcm.DefaultOutputRate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if epoch != s.epoch {
		if s.metrics != nil {
			s.metrics.ChunkStale()
		}
		return ErrStaleEpoch
	}

	if s.out == nil || s.rate != c.SampleRate {
		if err := s.reopenLocked(c.SampleRate); err != nil {
			return err
		}
	}

	now := s.out.Now()
	start := max(now, s.nextFree)

	v, err := s.out.Schedule(pcm.PCM16ToFloat(c.Samples), start)
	if err != nil {
		return fmt.Errorf("playback: schedule: %w", err)
	}
	// The output may place the voice later than start if it rendered
	// since Now was read.
	s.nextFree = v.Start() + c.Duration()

	s.seq++
	id := s.seq
	s.voices[id] = v
	go s.reap(id, v)

	if s.metrics != nil {
		s.metrics.ChunkScheduled(c.Duration())
	}
	if s.mirror != nil {
		s.mirror.Forward(c)
	}
	return nil
}

// reopenLocked replaces the output clock with one at rate.
func (s *Scheduler) reopenLocked(rate int) error {
	if s.out != nil {
		s.stopAllLocked()
		if err := s.out.Close(); err != nil {
			s.logger.Warn("closing output clock", "error", err)
		}
		s.out = nil
		s.nextFree = 0
	}

	out, err := s.open(rate)
	if err != nil {
		return fmt.Errorf("playback: open output at %d Hz: %w", rate, err)
	}
	s.out = out
	s.rate = rate
	s.logger.Debug("output clock opened", "backend", out.Name(), "sample_rate", rate)
	return nil
}

func (s *Scheduler) reap(id uint64, v audioio.Voice) {
	<-v.Done()
	s.mu.Lock()
	delete(s.voices, id)
	s.mu.Unlock()
}

func (s *Scheduler) stopAllLocked() {
	for id, v := range s.voices {
		v.Stop()
		delete(s.voices, id)
	}
}

// Flush stops every scheduled chunk, resets nextFreeTime, releases the
// output clock and starts a new epoch.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Scheduler) flushLocked() {
	s.stopAllLocked()
	s.nextFree = 0
	s.epoch++
	if s.out != nil {
		if err := s.out.Close(); err != nil {
			s.logger.Warn("closing output clock", "error", err)
		}
		s.out = nil
		s.rate = 0
	}
	if s.mirror != nil {
		s.mirror.Flush()
	}
	if s.metrics != nil {
		s.metrics.PlaybackFlushed()
	}
}

// Close flushes and refuses further chunks.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.flushLocked()
	s.closed = true
}

// Speaking reports whether audio is still playing or queued.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.voices) > 0 {
		return true
	}
	if s.out == nil {
		return false
	}
	return s.nextFree > s.out.Now()+SpeakingLead
}

// NextFreeTime returns the scheduling cursor in output clock seconds.
func (s *Scheduler) NextFreeTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextFree
}

// Active returns the number of registered voices.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.voices)
}

// Now returns the output clock time, or zero when no clock is open.
func (s *Scheduler) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return 0
	}
	return s.out.Now()
}
