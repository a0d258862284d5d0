// Package rtpout mirrors model audio to a UDP target as Opus over RTP,
// for speakers that are not attached to this machine.
package rtpout

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"gopkg.in/hraban/opus.v2"

	"github.com/teslashibe/go-livevoice/pkg/audioio"
	"github.com/teslashibe/go-livevoice/pkg/pcm"
	"github.com/teslashibe/go-livevoice/pkg/playback"
)

const (
	// DefaultPayloadType is the usual dynamic payload type for Opus.
	DefaultPayloadType = 111

	// rtpClock is the Opus RTP timestamp rate regardless of the encoded rate.
	rtpClock = 48000

	frameDuration = 20 * time.Millisecond
	maxPacketSize = 1500
	queueSize     = 64

	// idleGap between chunks starts a new talkspurt.
	idleGap = 250 * time.Millisecond
)

// ErrClosed is returned by Forward after Close.
var ErrClosed = errors.New("rtpout: closed")

var _ playback.Mirror = (*Forwarder)(nil)

// Config configures a Forwarder.
type Config struct {
	// Target is the UDP host:port receiving the stream.
	Target string

	PayloadType uint8

	// SSRC is random when zero.
	SSRC uint32
}

// Stats counts forwarded audio.
type Stats struct {
	Packets int64 `json:"packets"`
	Bytes   int64 `json:"bytes"`
	Dropped int64 `json:"dropped"`
}

// Forwarder encodes chunks into 20 ms Opus frames and sends one RTP packet
// per frame. Forward never blocks; chunks are dropped when the queue is full.
//
// Each talkspurt starts with the marker bit set, and its timestamp skips
// the wall-clock time the stream was silent.
type Forwarder struct {
	conn   net.Conn
	logger *slog.Logger
	pt     uint8
	ssrc   uint32

	queue chan queued
	done  chan struct{}
	gen   atomic.Uint64

	// Owned by the run goroutine.
	enc      *opus.Encoder
	encRate  int
	pending  []int16
	runGen   uint64
	seq      uint16
	ts       uint32
	first    bool
	lastSent time.Time
	frameBuf []byte

	mu        sync.Mutex
	closed    bool
	stats     Stats
	closeOnce sync.Once
}

// New dials the UDP target and starts the encoder goroutine.
func New(cfg Config, logger *slog.Logger) (*Forwarder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Target == "" {
		return nil, errors.New("rtpout: no target")
	}
	if cfg.PayloadType == 0 {
		cfg.PayloadType = DefaultPayloadType
	}
	if cfg.SSRC == 0 {
		cfg.SSRC = rand.Uint32()
	}

	conn, err := net.Dial("udp", cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("rtpout: dial %s: %w", cfg.Target, err)
	}

	f := &Forwarder{
		conn:     conn,
		logger:   logger.With("component", "rtpout", "target", cfg.Target),
		pt:       cfg.PayloadType,
		ssrc:     cfg.SSRC,
		queue:    make(chan queued, queueSize),
		done:     make(chan struct{}),
		seq:      uint16(rand.Uint32()),
		ts:       rand.Uint32(),
		first:    true,
		frameBuf: make([]byte, maxPacketSize),
	}
	go f.run()

	f.logger.Info("rtp mirror started", "ssrc", f.ssrc, "payload_type", f.pt)
	return f, nil
}

// Forward queues a chunk. It is safe to use as a playback mirror.
func (f *Forwarder) Forward(c playback.Chunk) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.queue <- queued{chunk: c, gen: f.gen.Load()}:
	default:
		f.stats.Dropped++
	}
}

// Flush discards audio queued or partly framed before the call. The
// scheduler calls it when playback is interrupted.
func (f *Forwarder) Flush() {
	f.gen.Add(1)
}

// Stats returns packet counters.
func (f *Forwarder) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Close drains the queue and closes the socket.
func (f *Forwarder) Close() error {
	var err error
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		close(f.queue)
		f.mu.Unlock()

		<-f.done
		err = f.conn.Close()
	})
	return err
}

type queued struct {
	chunk playback.Chunk
	gen   uint64
}

func (f *Forwarder) run() {
	defer close(f.done)
	for q := range f.queue {
		switch {
		case q.gen != f.gen.Load():
			continue
		case q.gen != f.runGen:
			f.runGen = q.gen
			f.pending = f.pending[:0]
			f.talkspurt()
		case len(f.pending) == 0 && !f.lastSent.IsZero() && time.Since(f.lastSent) > idleGap:
			f.talkspurt()
		}

		if err := f.encode(q.chunk); err != nil {
			f.logger.Warn("encoding mirrored audio", "error", err)
		}
	}
}

// talkspurt marks the next packet and moves the timestamp past the
// silence since the last one.
func (f *Forwarder) talkspurt() {
	f.first = true
	if f.lastSent.IsZero() {
		return
	}
	if idle := time.Since(f.lastSent); idle > 0 {
		f.ts += uint32(idle.Seconds() * rtpClock)
	}
}

// encode appends the chunk to the pending buffer and sends every full frame.
func (f *Forwarder) encode(c playback.Chunk) error {
	samples, rate := c.Samples, c.SampleRate
	if !opusRate(rate) {
		resampled := audioio.Resample(pcm.PCM16ToFloat(samples), rate, rtpClock)
		samples, rate = pcm.FloatToPCM16(resampled), rtpClock
	}

	if f.enc == nil || f.encRate != rate {
		enc, err := opus.NewEncoder(rate, 1, opus.AppVoIP)
		if err != nil {
			return fmt.Errorf("new encoder: %w", err)
		}
		f.enc, f.encRate = enc, rate
		f.pending = f.pending[:0]
	}

	f.pending = append(f.pending, samples...)
	frame := rate * int(frameDuration/time.Millisecond) / 1000

	for len(f.pending) >= frame {
		n, err := f.enc.Encode(f.pending[:frame], f.frameBuf)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		if err := f.send(f.frameBuf[:n]); err != nil {
			return err
		}
		f.pending = f.pending[frame:]
	}
	return nil
}

func (f *Forwarder) send(payload []byte) error {
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         f.first,
			PayloadType:    f.pt,
			SequenceNumber: f.seq,
			Timestamp:      f.ts,
			SSRC:           f.ssrc,
		},
		Payload: payload,
	}
	raw, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("marshal rtp: %w", err)
	}
	if _, err := f.conn.Write(raw); err != nil {
		return fmt.Errorf("send rtp: %w", err)
	}

	f.first = false
	f.lastSent = time.Now()
	f.seq++
	f.ts += rtpClock * uint32(frameDuration/time.Millisecond) / 1000

	f.mu.Lock()
	f.stats.Packets++
	f.stats.Bytes += int64(len(raw))
	f.mu.Unlock()
	return nil
}

func opusRate(rate int) bool {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	}
	return false
}
