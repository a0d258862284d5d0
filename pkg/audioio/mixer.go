package audioio

import (
	"math"
	"sync"
	"sync/atomic"
)

// Mixer renders scheduled voices into output buffers. Its clock is the
// number of frames rendered so far, so time only advances when the
// device pulls audio.
type Mixer struct {
	rate int

	frames atomic.Int64
	count  atomic.Int64

	mu     sync.Mutex
	voices []*voice
	closed bool
}

// NewMixer creates a mixer running at rate Hz.
func NewMixer(rate int) *Mixer {
	return &Mixer{rate: rate}
}

// Now returns the clock time in seconds.
func (m *Mixer) Now() float64 {
	return float64(m.frames.Load()) / float64(m.rate)
}

// SampleRate returns the mixer rate.
func (m *Mixer) SampleRate() int {
	return m.rate
}

// Add schedules samples to start at clock time at.
// A start already rendered is moved to the next unrendered frame; the
// returned Voice reports where it actually landed.
func (m *Mixer) Add(samples []float32, at float64) (Voice, error) {
	start := int64(math.Round(at * float64(m.rate)))

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if now := m.frames.Load(); start < now {
		start = now
	}

	v := &voice{
		rate:       m.rate,
		samples:    samples,
		startFrame: start,
		done:       make(chan struct{}),
	}
	m.voices = append(m.voices, v)
	m.count.Add(1)
	if len(samples) == 0 {
		v.finish()
	}
	return v, nil
}

// Render fills out with the next len(out) mono frames and advances the clock.
func (m *Mixer) Render(out []float32) {
	for i := range out {
		out[i] = 0
	}

	base := m.frames.Load()
	end := base + int64(len(out))

	m.mu.Lock()
	live := m.voices[:0]
	for _, v := range m.voices {
		if v.stopped.Load() {
			v.finish()
			continue
		}
		vs := v.startFrame
		ve := vs + int64(len(v.samples))

		from := max(vs, base)
		to := min(ve, end)
		for f := from; f < to; f++ {
			out[f-base] += v.samples[f-vs]
		}

		if ve <= end {
			v.finish()
			continue
		}
		live = append(live, v)
	}
	for i := len(live); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = live
	m.frames.Store(end)
	m.mu.Unlock()

	for i, s := range out {
		if s > 1 {
			out[i] = 1
		} else if s < -1 {
			out[i] = -1
		}
	}
}

// StopAll stops every voice and refuses new ones.
func (m *Mixer) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.voices {
		v.Stop()
		v.finish()
	}
	m.voices = nil
	m.closed = true
}

// Stats returns mixer statistics.
func (m *Mixer) Stats() OutputStats {
	m.mu.Lock()
	active := len(m.voices)
	m.mu.Unlock()
	return OutputStats{
		Frames: m.frames.Load(),
		Voices: m.count.Load(),
		Active: active,
	}
}

type voice struct {
	rate       int
	samples    []float32
	startFrame int64

	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func (v *voice) Start() float64 {
	return float64(v.startFrame) / float64(v.rate)
}

func (v *voice) Duration() float64 {
	return float64(len(v.samples)) / float64(v.rate)
}

func (v *voice) Stop() {
	v.stopped.Store(true)
	v.finish()
}

func (v *voice) Done() <-chan struct{} {
	return v.done
}

func (v *voice) finish() {
	v.once.Do(func() { close(v.done) })
}
