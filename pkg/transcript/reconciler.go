package transcript

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Reconciler maps transcript fragments onto turns. At most one user turn
// and one model turn are open at a time; Complete closes both.
type Reconciler struct {
	sessionID string
	store     Store
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	turns []Turn
	user  int // index of the open user turn, -1 when none
	model int // index of the open model turn, -1 when none

	// set once output transcription fed the open model turn; raw part
	// text is ignored from then on so the text is not doubled
	transcribed bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithStore sets the store finalized turns are pushed to.
func WithStore(s Store) Option {
	return func(r *Reconciler) { r.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithClock overrides time.Now for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler creates a reconciler for one session.
func NewReconciler(sessionID string, opts ...Option) *Reconciler {
	r := &Reconciler{
		sessionID: sessionID,
		logger:    slog.Default(),
		now:       time.Now,
		user:      -1,
		model:     -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// User applies an input transcription fragment. Each fragment is the
// full text so far, so it replaces the open user turn.
func (r *Reconciler) User(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsert(&r.user, RoleUser, text, false)
}

// ModelTranscription applies an output transcription fragment in replace
// mode and marks the open model turn as transcription-sourced.
func (r *Reconciler) ModelTranscription(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if text != "" {
		r.transcribed = true
	}
	r.upsert(&r.model, RoleModel, text, false)
}

// ModelText appends a raw text delta to the open model turn. It is ignored
// once output transcription is feeding the turn.
func (r *Reconciler) ModelText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transcribed {
		return
	}
	r.upsert(&r.model, RoleModel, text, true)
}

func (r *Reconciler) upsert(idx *int, role Role, text string, appendMode bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if *idx < 0 {
		r.turns = append(r.turns, Turn{
			ID:        uuid.NewString(),
			Role:      role,
			Text:      text,
			CreatedAt: r.now(),
		})
		*idx = len(r.turns) - 1
		return
	}

	t := &r.turns[*idx]
	if appendMode {
		t.Text += text
	} else {
		t.Text = text
	}
}

// Complete finalizes the open turns, clears both indices and pushes the
// finalized turns to the store. Store errors are logged, not returned.
func (r *Reconciler) Complete(ctx context.Context) []Turn {
	r.mu.Lock()
	var closed []Turn
	for _, idx := range []int{r.user, r.model} {
		if idx < 0 {
			continue
		}
		r.turns[idx].Finalized = true
		closed = append(closed, r.turns[idx])
	}
	r.user, r.model = -1, -1
	r.transcribed = false
	r.mu.Unlock()

	if len(closed) == 0 || r.store == nil {
		return closed
	}
	if err := r.store.SaveTurns(ctx, r.sessionID, closed); err != nil {
		r.logger.Error("saving turns", "session", r.sessionID, "error", err)
	}
	return closed
}

// Turns returns a copy of the conversation buffer.
func (r *Reconciler) Turns() []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Turn(nil), r.turns...)
}

// Preview returns the text of the open user and model turns.
func (r *Reconciler) Preview() (user, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user >= 0 {
		user = r.turns[r.user].Text
	}
	if r.model >= 0 {
		model = r.turns[r.model].Text
	}
	return user, model
}

// Open reports whether a user or model turn is in progress.
func (r *Reconciler) Open() (user, model bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.user >= 0, r.model >= 0
}
