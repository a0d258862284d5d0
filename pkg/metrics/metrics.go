// Package metrics exposes Prometheus metrics for live voice sessions.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livevoice"

// Metrics contains all Prometheus metrics for the live voice client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsStarted prometheus.Counter
	StatusChanges   *prometheus.CounterVec
	SessionErrors   *prometheus.CounterVec
	Speaking        prometheus.Gauge

	// Capture metrics
	FramesSent    prometheus.Counter
	BytesSent     prometheus.Counter
	BlocksDropped *prometheus.CounterVec

	// Inbound metrics
	MalformedFrames prometheus.Counter
	Interruptions   prometheus.Counter
	TurnsFinalized  *prometheus.CounterVec

	// Playback metrics
	ChunksScheduled prometheus.Counter
	AudioScheduled  prometheus.Counter
	StaleChunks     prometheus.Counter
	Flushes         prometheus.Counter

	// Latency from the user's transcribed speech to the first model audio
	ResponseLatency prometheus.Histogram

	mu          sync.Mutex
	speechAt    time.Time
	awaitsAudio bool
	now         func() time.Time
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		now:      time.Now,

		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of live sessions started",
		}),
		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_changes_total",
			Help:      "Session status transitions by target status",
		}, []string{"status"}),
		SessionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Session-fatal errors by kind",
		}, []string{"kind"}),
		Speaking: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "speaking",
			Help:      "1 while model audio is playing or queued",
		}),

		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_sent_total",
			Help:      "Realtime audio frames handed to the socket",
		}),
		BytesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_sent_total",
			Help:      "Base64 audio bytes handed to the socket",
		}),
		BlocksDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_blocks_dropped_total",
			Help:      "Captured blocks dropped before sending, by reason",
		}, []string{"reason"}),

		MalformedFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_frames_total",
			Help:      "Inbound frames dropped because they could not be parsed",
		}),
		Interruptions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Model utterances cut off by the service",
		}),
		TurnsFinalized: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_finalized_total",
			Help:      "Finalized transcript turns by role",
		}, []string{"role"}),

		ChunksScheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_chunks_scheduled_total",
			Help:      "Model audio chunks scheduled for playback",
		}),
		AudioScheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_audio_seconds_total",
			Help:      "Seconds of model audio scheduled for playback",
		}),
		StaleChunks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_stale_chunks_total",
			Help:      "Chunks discarded because they predate the last flush",
		}),
		Flushes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_flushes_total",
			Help:      "Playback flushes (interruptions and teardown)",
		}),

		ResponseLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_latency_seconds",
			Help:      "Time from user transcription to first model audio",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5},
		}),
	}
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SessionStarted counts a new session.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

// StatusChanged counts a transition to status.
func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.StatusChanges.WithLabelValues(status).Inc()
}

// SessionError counts a session-fatal error.
func (m *Metrics) SessionError(kind string) {
	if m == nil {
		return
	}
	m.SessionErrors.WithLabelValues(kind).Inc()
}

// SetSpeaking records the speaking indicator.
func (m *Metrics) SetSpeaking(speaking bool) {
	if m == nil {
		return
	}
	if speaking {
		m.Speaking.Set(1)
	} else {
		m.Speaking.Set(0)
	}
}

// FrameSent counts an outbound audio frame.
func (m *Metrics) FrameSent(bytes int) {
	if m == nil {
		return
	}
	m.FramesSent.Inc()
	m.BytesSent.Add(float64(bytes))
}

// BlockDropped counts a dropped capture block.
func (m *Metrics) BlockDropped(reason string) {
	if m == nil {
		return
	}
	m.BlocksDropped.WithLabelValues(reason).Inc()
}

// MalformedFrame counts an unparseable inbound frame.
func (m *Metrics) MalformedFrame() {
	if m == nil {
		return
	}
	m.MalformedFrames.Inc()
}

// Interrupted counts an interruption.
func (m *Metrics) Interrupted() {
	if m == nil {
		return
	}
	m.Interruptions.Inc()
}

// TurnFinalized counts a finalized turn.
func (m *Metrics) TurnFinalized(role string) {
	if m == nil {
		return
	}
	m.TurnsFinalized.WithLabelValues(role).Inc()
}

// ChunkScheduled counts a scheduled playback chunk.
func (m *Metrics) ChunkScheduled(seconds float64) {
	if m == nil {
		return
	}
	m.ChunksScheduled.Inc()
	m.AudioScheduled.Add(seconds)
}

// ChunkStale counts a chunk discarded for its epoch.
func (m *Metrics) ChunkStale() {
	if m == nil {
		return
	}
	m.StaleChunks.Inc()
}

// PlaybackFlushed counts a playback flush.
func (m *Metrics) PlaybackFlushed() {
	if m == nil {
		return
	}
	m.Flushes.Inc()
}

// MarkUserSpeech records that the user's speech was transcribed.
// This is the reference point for the response latency.
func (m *Metrics) MarkUserSpeech() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speechAt = m.now()
	m.awaitsAudio = true
}

// MarkFirstAudio observes the response latency for the first model audio
// after MarkUserSpeech. Later chunks in the same turn are ignored.
func (m *Metrics) MarkFirstAudio() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.awaitsAudio {
		return
	}
	m.awaitsAudio = false
	m.ResponseLatency.Observe(m.now().Sub(m.speechAt).Seconds())
}
