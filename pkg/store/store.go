// Package store persists finalized conversation turns.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/teslashibe/go-livevoice/pkg/transcript"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("store: session not found")

// Store is a transcript.Store that can also read the history back.
type Store interface {
	transcript.Store

	// History returns the most recent limit turns across all sessions,
	// oldest first. A limit <= 0 returns everything.
	History(ctx context.Context, limit int) ([]Entry, error)

	// Session returns one session with its turns.
	Session(ctx context.Context, id string) (*Session, error)

	Close() error
}

// Session is a stored conversation.
type Session struct {
	ID        string            `json:"id"`
	StartedAt time.Time         `json:"started_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Turns     []transcript.Turn `json:"turns"`
}

// Entry is one turn with the session it belongs to.
type Entry struct {
	SessionID string `json:"session_id"`
	transcript.Turn
}
