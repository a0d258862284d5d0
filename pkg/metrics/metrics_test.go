package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.FrameSent(100)
	m.FrameSent(50)
	m.BlockDropped("backpressure")
	m.TurnFinalized("user")
	m.TurnFinalized("model")
	m.TurnFinalized("model")
	m.ChunkScheduled(0.5)

	if got := testutil.ToFloat64(m.FramesSent); got != 2 {
		t.Errorf("Expected 2 frames, got %v", got)
	}
	if got := testutil.ToFloat64(m.BytesSent); got != 150 {
		t.Errorf("Expected 150 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(m.BlocksDropped.WithLabelValues("backpressure")); got != 1 {
		t.Errorf("Expected 1 drop, got %v", got)
	}
	if got := testutil.ToFloat64(m.TurnsFinalized.WithLabelValues("model")); got != 2 {
		t.Errorf("Expected 2 model turns, got %v", got)
	}
	if got := testutil.ToFloat64(m.AudioScheduled); got != 0.5 {
		t.Errorf("Expected 0.5s scheduled, got %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.SessionStarted()
	m.FrameSent(1)
	m.MarkUserSpeech()
	m.MarkFirstAudio()
	m.SetSpeaking(true)
}

func TestMetrics_ResponseLatency(t *testing.T) {
	m := New()
	now := time.Unix(100, 0)
	m.now = func() time.Time { return now }

	m.MarkFirstAudio() // no speech yet, ignored
	m.MarkUserSpeech()
	now = now.Add(800 * time.Millisecond)
	m.MarkFirstAudio()
	m.MarkFirstAudio() // same turn, ignored

	if n := testutil.CollectAndCount(m.ResponseLatency); n != 1 {
		t.Fatalf("Expected 1 histogram series, got %d", n)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "livevoice_response_latency_seconds_count 1") {
		t.Errorf("Expected one latency observation in output:\n%s", body)
	}
}
