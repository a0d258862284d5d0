// Package transcript reconciles streamed transcription fragments into
// conversation turns.
package transcript

import (
	"context"
	"sync"
	"time"
)

// Role identifies who spoke a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one utterance. Text is the reconciled text so far; Finalized is
// set once the protocol signals turn completion.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Finalized bool      `json:"finalized"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists finalized turns. It is the conversation store collaborator.
type Store interface {
	SaveTurns(ctx context.Context, sessionID string, turns []Turn) error
}

// MemoryStore keeps saved turns in memory, for tests and previews.
type MemoryStore struct {
	mu    sync.Mutex
	saved map[string][]Turn
	calls int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{saved: make(map[string][]Turn)}
}

// SaveTurns implements Store.
func (m *MemoryStore) SaveTurns(ctx context.Context, sessionID string, turns []Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[sessionID] = append(m.saved[sessionID], turns...)
	m.calls++
	return nil
}

// Turns returns the turns saved for a session.
func (m *MemoryStore) Turns(sessionID string) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Turn(nil), m.saved[sessionID]...)
}

// Calls returns how many times SaveTurns was invoked.
func (m *MemoryStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ Store = (*MemoryStore)(nil)
