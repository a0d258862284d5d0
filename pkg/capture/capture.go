// Package capture turns microphone blocks into realtime audio frames.
//
// Blocks are shed rather than queued: when the session is muted, not yet
// ready, or the socket has too much unflushed data, the block is dropped.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-livevoice/pkg/audioio"
	"github.com/teslashibe/go-livevoice/pkg/pcm"
	"github.com/teslashibe/go-livevoice/pkg/protocol"
)

// DefaultMaxBuffered is the unflushed outbound byte count above which
// blocks are dropped.
const DefaultMaxBuffered = 1_000_000

// DropReason labels why a block was not sent.
type DropReason string

const (
	DropMuted        DropReason = "muted"
	DropNotReady     DropReason = "not_ready"
	DropBackpressure DropReason = "backpressure"
	DropSendFailed   DropReason = "send_failed"
)

// ErrAlreadyStarted is returned by Start on a running pipeline.
var ErrAlreadyStarted = errors.New("capture: already started")

// DeviceError wraps a microphone failure (permission denied, no device).
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture: microphone: %v", e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Transport accepts encoded audio. SendAudio must not block.
type Transport interface {
	SendAudio(data, mimeType string) error
	Buffered() int
}

// Gate reports session state to the capture callback.
type Gate interface {
	Ready() bool
	Muted() bool
}

// Metrics receives capture events. See metrics.Metrics.
type Metrics interface {
	FrameSent(bytes int)
	BlockDropped(reason string)
}

// Stats counts processed blocks.
type Stats struct {
	Blocks  int64                `json:"blocks"`
	Sent    int64                `json:"sent"`
	Dropped map[DropReason]int64 `json:"dropped"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTargetRate sets the outbound sample rate.
func WithTargetRate(rate int) Option {
	return func(p *Pipeline) { p.targetRate = rate }
}

// WithMaxBuffered sets the backpressure threshold in bytes.
func WithMaxBuffered(n int) Option {
	return func(p *Pipeline) { p.maxBuffered = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics reports capture events.
func WithMetrics(m Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline owns the microphone between Start and Stop.
type Pipeline struct {
	src         audioio.Source
	tx          Transport
	gate        Gate
	targetRate  int
	maxBuffered int
	logger      *slog.Logger
	metrics     Metrics

	mu      sync.Mutex
	running bool
	active  atomic.Bool
	// rate is the device rate, cached so the callback never calls into
	// the source while Stop holds it.
	rate atomic.Int64

	blocks  atomic.Int64
	sent    atomic.Int64
	dropped [4]atomic.Int64
}

// New creates a pipeline reading src and sending through tx.
func New(src audioio.Source, tx Transport, gate Gate, opts ...Option) *Pipeline {
	p := &Pipeline{
		src:         src,
		tx:          tx,
		gate:        gate,
		targetRate:  protocol.InputRate,
		maxBuffered: DefaultMaxBuffered,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start opens the microphone. Device failures are returned as *DeviceError.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyStarted
	}

	p.active.Store(true)
	if err := p.src.Start(ctx, p.handleBlock); err != nil {
		p.active.Store(false)
		return &DeviceError{Err: err}
	}
	p.running = true
	p.rate.Store(int64(p.src.SampleRate()))

	p.logger.Info("capture started",
		"backend", p.src.Name(),
		"device_rate", p.rate.Load(),
		"target_rate", p.targetRate,
	)
	return nil
}

// Stop closes the microphone. Blocks still in flight are discarded.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active.Store(false)
	if !p.running {
		return nil
	}
	p.running = false

	err := p.src.Stop()
	p.rate.Store(0)
	if err != nil {
		return fmt.Errorf("capture: stop: %w", err)
	}
	p.logger.Info("capture stopped")
	return nil
}

// Active reports whether capture is running.
func (p *Pipeline) Active() bool {
	return p.active.Load()
}

// handleBlock runs on the device clock.
func (p *Pipeline) handleBlock(block []float32) {
	if !p.active.Load() {
		return
	}
	p.blocks.Add(1)

	switch {
	case p.gate.Muted():
		p.drop(DropMuted)
		return
	case !p.gate.Ready():
		p.drop(DropNotReady)
		return
	case p.tx.Buffered() > p.maxBuffered:
		p.drop(DropBackpressure)
		return
	}

	rate := int(p.rate.Load())
	if rate == 0 {
		// Block delivered before Start returned.
		rate = p.src.SampleRate()
	}
	resampled := audioio.Downsample(block, rate, p.targetRate)
	data := pcm.EncodeFloat(resampled)

	if err := p.tx.SendAudio(data, pcm.MIMEType(p.targetRate)); err != nil {
		p.drop(DropSendFailed)
		p.logger.Debug("audio frame not sent", "error", err)
		return
	}

	p.sent.Add(1)
	if p.metrics != nil {
		p.metrics.FrameSent(len(data))
	}
}

func (p *Pipeline) drop(reason DropReason) {
	p.dropped[reasonIndex(reason)].Add(1)
	if p.metrics != nil {
		p.metrics.BlockDropped(string(reason))
	}
}

func reasonIndex(r DropReason) int {
	switch r {
	case DropMuted:
		return 0
	case DropNotReady:
		return 1
	case DropBackpressure:
		return 2
	default:
		return 3
	}
}

// Stats returns block counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Blocks: p.blocks.Load(),
		Sent:   p.sent.Load(),
		Dropped: map[DropReason]int64{
			DropMuted:        p.dropped[0].Load(),
			DropNotReady:     p.dropped[1].Load(),
			DropBackpressure: p.dropped[2].Load(),
			DropSendFailed:   p.dropped[3].Load(),
		},
	}
}
