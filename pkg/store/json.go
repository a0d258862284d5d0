package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/teslashibe/go-livevoice/pkg/transcript"
)

const currentVersion = 1

// JSONStore keeps every session in a single JSON file.
type JSONStore struct {
	path     string
	sessions map[string]*Session
	mu       sync.RWMutex
	now      func() time.Time
}

// storeData is the on-disk layout.
type storeData struct {
	Version   int        `json:"version"`
	UpdatedAt string     `json:"updated_at"`
	Sessions  []*Session `json:"sessions"`
}

// NewJSONStore opens the store at path, creating the directory. The file
// itself is written on the first save.
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{
		path:     path,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("store: load %s: %w", path, err)
		}
	}

	return s, nil
}

// DefaultPath is ~/.livevoice/history.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: home directory: %w", err)
	}
	return filepath.Join(home, ".livevoice", "history.json"), nil
}

func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}

	for _, sess := range stored.Sessions {
		s.sessions[sess.ID] = sess
	}
	return nil
}

// save writes the file via a temp file and rename. Callers hold mu.
func (s *JSONStore) save() error {
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})

	data, err := json.MarshalIndent(storeData{
		Version:   currentVersion,
		UpdatedAt: s.now().Format(time.RFC3339),
		Sessions:  sessions,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: rename temp file: %w", err)
	}
	return nil
}

// SaveTurns implements transcript.Store. Turns already stored under the
// same ID are replaced.
func (s *JSONStore) SaveTurns(ctx context.Context, sessionID string, turns []transcript.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &Session{ID: sessionID, StartedAt: now}
		s.sessions[sessionID] = sess
	}
	sess.UpdatedAt = now

	for _, t := range turns {
		if i := indexOf(sess.Turns, t.ID); i >= 0 {
			sess.Turns[i] = t
			continue
		}
		sess.Turns = append(sess.Turns, t)
	}

	return s.save()
}

func indexOf(turns []transcript.Turn, id string) int {
	for i, t := range turns {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// History implements Store.
func (s *JSONStore) History(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []Entry
	for _, sess := range s.sessions {
		for _, t := range sess.Turns {
			entries = append(entries, Entry{SessionID: sess.ID, Turn: t})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Session implements Store.
func (s *JSONStore) Session(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *sess
	cp.Turns = append([]transcript.Turn(nil), sess.Turns...)
	return &cp, nil
}

// Count returns the number of stored sessions.
func (s *JSONStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close implements Store. Every save is already on disk.
func (s *JSONStore) Close() error {
	return nil
}

var _ Store = (*JSONStore)(nil)
