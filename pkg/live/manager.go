package live

import (
	"context"
	"sync"
)

// Factory builds a fresh session.
type Factory func() *Session

// Manager keeps at most one active session.
type Manager struct {
	factory Factory

	mu      sync.Mutex
	current *Session
}

// NewManager creates a manager that builds sessions with factory.
func NewManager(factory Factory) *Manager {
	return &Manager{factory: factory}
}

// Start stops the current session, if any, and starts a new one. The new
// session is returned even when Start fails so callers can inspect it.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	prev := m.current
	s := m.factory()
	m.current = s
	m.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	return s, s.Start(ctx)
}

// Stop stops the current session.
func (m *Manager) Stop() error {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()

	if s == nil {
		return ErrNotStarted
	}
	return s.Stop()
}

// SetMuted mutes or unmutes the current session.
func (m *Manager) SetMuted(muted bool) error {
	s := m.Current()
	if s == nil {
		return ErrNotStarted
	}
	s.SetMuted(muted)
	return nil
}

// ToggleMute flips mute on the current session.
func (m *Manager) ToggleMute() (bool, error) {
	s := m.Current()
	if s == nil {
		return false, ErrNotStarted
	}
	return s.ToggleMute(), nil
}

// Current returns the most recent session, which may have ended.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Snapshot returns the state of the current session, or an idle
// snapshot when none was started.
func (m *Manager) Snapshot() Snapshot {
	if s := m.Current(); s != nil {
		return s.Snapshot()
	}
	return Snapshot{Status: StatusIdle}
}
