// Package live runs full-duplex voice sessions against the Gemini Live
// websocket: microphone audio goes up, synthesized audio and transcripts
// come back and are played and reconciled into turns.
//
// A Session is used for exactly one connection. Start it, Stop it, and
// create a new one to reconnect.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-livevoice/pkg/audioio"
	"github.com/teslashibe/go-livevoice/pkg/auth"
	"github.com/teslashibe/go-livevoice/pkg/capture"
	"github.com/teslashibe/go-livevoice/pkg/metrics"
	"github.com/teslashibe/go-livevoice/pkg/pcm"
	"github.com/teslashibe/go-livevoice/pkg/playback"
	"github.com/teslashibe/go-livevoice/pkg/protocol"
	"github.com/teslashibe/go-livevoice/pkg/transcript"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	storeTimeout        = 5 * time.Second
)

// Option configures a Session.
type Option func(*Session)

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithModel selects the Live model.
func WithModel(model string) Option {
	return func(s *Session) { s.model = model }
}

// WithInstruction sets the system instruction sent in the setup frame.
func WithInstruction(text string) Option {
	return func(s *Session) { s.instruction = text }
}

// WithEndpoints overrides the websocket endpoints.
func WithEndpoints(e auth.Endpoints) Option {
	return func(s *Session) { s.endpoints = e }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithMaxBuffered sets the outbound backpressure threshold in bytes.
func WithMaxBuffered(n int) Option {
	return func(s *Session) { s.maxBuffered = n }
}

// WithStore receives finalized turns.
func WithStore(st transcript.Store) Option {
	return func(s *Session) { s.store = st }
}

// WithObserver receives status, error and transcript events.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics records session metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithMirror receives every chunk accepted for playback and every flush.
func WithMirror(m playback.Mirror) Option {
	return func(s *Session) { s.mirror = m }
}

// WithPollInterval sets how often derived status (speaking, listening)
// is re-evaluated for observers.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.pollInterval = d }
}

// Session is one Live connection with its capture, playback and
// transcript state.
type Session struct {
	id           string
	authn        auth.Authenticator
	model        string
	instruction  string
	endpoints    auth.Endpoints
	dialer       *websocket.Dialer
	maxBuffered  int
	store        transcript.Store
	observer     Observer
	logger       *slog.Logger
	metrics      *metrics.Metrics
	mirror       playback.Mirror
	pollInterval time.Duration

	capture *capture.Pipeline
	sched   *playback.Scheduler
	rec     *transcript.Reconciler

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	base    Status
	started bool
	closed  bool
	tx      *Transport
	lastErr *Error

	ready atomic.Bool
	muted atomic.Bool
	txp   atomic.Pointer[Transport]

	pubMu     sync.Mutex
	published *Snapshot
}

// New creates an idle session. src is the microphone; out opens the
// speaker clock for each output sample rate.
func New(authn auth.Authenticator, src audioio.Source, out audioio.OutputFactory, opts ...Option) *Session {
	s := &Session{
		id:           uuid.NewString(),
		authn:        authn,
		model:        protocol.DefaultModel,
		endpoints:    auth.DefaultEndpoints,
		observer:     NopObserver{},
		logger:       slog.Default(),
		pollInterval: defaultPollInterval,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	schedOpts := []playback.Option{playback.WithLogger(s.logger)}
	capOpts := []capture.Option{capture.WithLogger(s.logger)}
	recOpts := []transcript.Option{transcript.WithLogger(s.logger)}
	if s.metrics != nil {
		schedOpts = append(schedOpts, playback.WithMetrics(s.metrics))
		capOpts = append(capOpts, capture.WithMetrics(s.metrics))
	}
	if s.mirror != nil {
		schedOpts = append(schedOpts, playback.WithMirror(s.mirror))
	}
	if s.maxBuffered != 0 {
		capOpts = append(capOpts, capture.WithMaxBuffered(s.maxBuffered))
	}
	if s.store != nil {
		recOpts = append(recOpts, transcript.WithStore(s.store))
	}

	s.sched = playback.New(out, schedOpts...)
	s.capture = capture.New(src, link{s}, link{s}, capOpts...)
	s.rec = transcript.NewReconciler(s.id, recOpts...)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Start acquires a credential, dials and sends the setup frame. The
// session becomes ready when the service acknowledges the setup; capture
// starts at that point. Start returns a *Error on failure.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.started = true
	s.base = StatusConnecting
	s.mu.Unlock()

	s.metrics.SessionStarted()
	s.publish()

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	cred, err := s.authn.Credential(cctx)
	if err != nil {
		if s.isClosed() {
			return ErrClosed
		}
		if ctx.Err() != nil {
			return s.abandon(ctx)
		}
		return s.fail(KindCredential, err)
	}
	url, err := s.endpoints.URL(cred)
	if err != nil {
		return s.fail(KindCredential, err)
	}

	s.logger.Info("connecting to live service", "credential", cred.Kind(), "model", protocol.ModelName(s.model))

	tx, err := Dial(cctx, s.dialer, url, cred.Header(), s.logger)
	if err != nil {
		if s.isClosed() {
			return ErrClosed
		}
		if ctx.Err() != nil {
			return s.abandon(ctx)
		}
		return s.fail(KindTransport, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("discarding connection opened after stop")
		tx.Abort()
		return ErrClosed
	}
	s.tx = tx
	s.txp.Store(tx)
	s.mu.Unlock()

	tx.OnError(func(err error) { s.fail(KindTransport, err) })
	if err := tx.Send(protocol.NewSetup(s.model, s.instruction)); err != nil {
		return s.fail(KindTransport, err)
	}

	go s.readLoop(tx)
	go s.watch()
	return nil
}

// Stop ends the session. It is safe to call from any state and more
// than once; only the first call has an effect.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	tx := s.tx
	s.mu.Unlock()

	s.teardown(tx, true)

	s.mu.Lock()
	s.base = StatusClosed
	s.mu.Unlock()

	s.logger.Info("live session stopped")
	s.publish()
	close(s.done)
	return nil
}

// Done is closed when the session has stopped or failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// SetMuted gates the microphone. Muted blocks are dropped, never sent.
func (s *Session) SetMuted(muted bool) {
	if s.muted.Swap(muted) != muted {
		s.logger.Info("mute changed", "muted", muted)
	}
	s.publish()
}

// ToggleMute flips the mute state and returns the new value.
func (s *Session) ToggleMute() bool {
	for {
		old := s.muted.Load()
		if s.muted.CompareAndSwap(old, !old) {
			s.logger.Info("mute changed", "muted", !old)
			s.publish()
			return !old
		}
	}
}

// Muted reports whether the microphone is muted.
func (s *Session) Muted() bool {
	return s.muted.Load()
}

// Status returns the current presentation status.
func (s *Session) Status() Status {
	s.mu.Lock()
	base := s.base
	s.mu.Unlock()
	return s.derive(base)
}

// LastError returns the error that ended the session, if any.
func (s *Session) LastError() *Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Turns returns the conversation so far.
func (s *Session) Turns() []transcript.Turn {
	return s.rec.Turns()
}

// CaptureStats returns microphone block counters.
func (s *Session) CaptureStats() capture.Stats {
	return s.capture.Stats()
}

// Snapshot returns the externally visible state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	base, lastErr := s.base, s.lastErr
	s.mu.Unlock()

	snap := Snapshot{
		ID:     s.id,
		Status: s.derive(base),
		Muted:  s.muted.Load(),
	}
	if lastErr != nil {
		snap.ErrorKind = lastErr.Kind
		snap.Error = lastErr.Err.Error()
	}
	snap.UserPreview, snap.ModelPreview = s.rec.Preview()
	return snap
}

// derive maps the protocol state to speaking/muted/listening while ready.
func (s *Session) derive(base Status) Status {
	if base != StatusReady {
		return base
	}
	switch {
	case s.sched.Speaking():
		return StatusSpeaking
	case s.muted.Load():
		return StatusMuted
	case s.capture.Active():
		return StatusListening
	default:
		return StatusReady
	}
}

// abandon closes a session whose Start was cancelled by the caller.
func (s *Session) abandon(ctx context.Context) error {
	s.logger.Info("connect cancelled", "error", ctx.Err())
	s.Stop()
	return ctx.Err()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fail moves the session to error and tears it down without the end of
// stream frame. Only the first failure or stop wins.
func (s *Session) fail(kind Kind, err error) error {
	e := &Error{Kind: kind, Err: err}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return e
	}
	s.closed = true
	s.base = StatusError
	s.lastErr = e
	tx := s.tx
	s.mu.Unlock()

	s.logger.Error("live session failed", "kind", kind, "error", err)
	s.metrics.SessionError(string(kind))
	s.observer.Error(e)

	s.teardown(tx, false)
	s.publish()
	close(s.done)
	return e
}

func (s *Session) teardown(tx *Transport, graceful bool) {
	s.ready.Store(false)

	if tx != nil {
		if graceful {
			if err := tx.Send(protocol.NewAudioStreamEnd()); err != nil {
				s.logger.Debug("audio stream end not sent", "error", err)
			}
			if err := tx.Close(); err != nil {
				s.logger.Debug("closing live socket", "error", err)
			}
		} else {
			tx.Abort()
		}
	}

	if err := s.capture.Stop(); err != nil {
		s.logger.Warn("stopping capture", "error", err)
	}
	s.sched.Close()
	s.cancel()
}

func (s *Session) readLoop(tx *Transport) {
	for {
		data, err := tx.Read()
		if err != nil {
			if s.isClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = fmt.Errorf("closed by server: %w", err)
			}
			s.fail(KindTransport, err)
			return
		}

		msg, err := protocol.ParseServerMessage(data)
		if err != nil {
			s.logger.Debug("dropping malformed frame", "error", err, "bytes", len(data))
			s.metrics.MalformedFrame()
			continue
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg *protocol.ServerMessage) {
	if msg.SetupComplete {
		s.setupComplete()
	}

	if msg.Interrupted() {
		s.logger.Debug("model interrupted")
		s.sched.Flush()
		s.metrics.Interrupted()
	}

	changed := false
	if t := msg.InputTranscription; t != nil && t.Text != "" {
		s.rec.User(t.Text)
		s.metrics.MarkUserSpeech()
		changed = true
	}
	if t := msg.OutputTranscription; t != nil && t.Text != "" {
		s.rec.ModelTranscription(t.Text)
		changed = true
	}
	for _, part := range msg.Parts() {
		if part.HasAudio() {
			s.play(part)
		}
		if part.Text != "" {
			s.rec.ModelText(part.Text)
			changed = true
		}
	}
	if msg.TurnDone() {
		s.completeTurn()
		changed = true
	}

	if changed {
		s.observer.Transcript(s.rec.Turns())
	}
	s.publish()
}

func (s *Session) setupComplete() {
	s.mu.Lock()
	if s.closed || s.base != StatusConnecting {
		s.mu.Unlock()
		return
	}
	s.base = StatusReady
	s.mu.Unlock()

	s.ready.Store(true)
	s.logger.Info("live session ready")

	if err := s.capture.Start(s.ctx); err != nil {
		s.fail(KindDevice, err)
		return
	}

	// Stop may have torn down before capture started.
	if s.isClosed() {
		s.ready.Store(false)
		if err := s.capture.Stop(); err != nil {
			s.logger.Warn("stopping capture", "error", err)
		}
	}
}

func (s *Session) play(part protocol.Part) {
	epoch := s.sched.Epoch()
	samples, err := pcm.DecodeAudio(part.Audio)
	if err != nil {
		s.logger.Debug("dropping undecodable audio part", "error", err)
		s.metrics.MalformedFrame()
		return
	}

	chunk := playback.Chunk{
		Samples:    samples,
		SampleRate: pcm.RateFromMIME(part.MIMEType, pcm.DefaultOutputRate),
	}
	err = s.sched.Enqueue(epoch, chunk)
	switch {
	case errors.Is(err, playback.ErrStaleEpoch):
		s.logger.Debug("dropping audio from before interruption")
	case err != nil:
		if !s.isClosed() {
			s.fail(KindDevice, err)
		}
	default:
		s.metrics.MarkFirstAudio()
	}
}

func (s *Session) completeTurn() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	for _, t := range s.rec.Complete(ctx) {
		s.metrics.TurnFinalized(string(t.Role))
	}
}

// watch republishes derived status so observers see speaking end.
func (s *Session) watch() {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publish()
		}
	}
}

// publish notifies observers when the snapshot changed.
func (s *Session) publish() {
	snap := s.Snapshot()

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	if s.published != nil && *s.published == snap {
		return
	}
	if s.published == nil || s.published.Status != snap.Status {
		s.logger.Debug("status changed", "status", snap.Status)
		s.metrics.StatusChanged(snap.Status.String())
	}
	s.metrics.SetSpeaking(snap.Status == StatusSpeaking)
	s.published = &snap
	s.observer.StatusChanged(snap)
}

// link adapts the session to the capture pipeline's Transport and Gate.
type link struct{ s *Session }

func (l link) SendAudio(data, mimeType string) error {
	tx := l.s.txp.Load()
	if tx == nil {
		return ErrClosed
	}
	return tx.SendAudio(data, mimeType)
}

func (l link) Buffered() int {
	if tx := l.s.txp.Load(); tx != nil {
		return tx.Buffered()
	}
	return 0
}

func (l link) Ready() bool { return l.s.ready.Load() }
func (l link) Muted() bool { return l.s.muted.Load() }
