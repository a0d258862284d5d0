package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/teslashibe/go-livevoice/pkg/transcript"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PGStore keeps sessions in Postgres.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGStore connects to url and applies pending migrations.
func NewPGStore(ctx context.Context, url string, logger *slog.Logger) (*PGStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}

	return &PGStore{pool: pool, logger: logger}, nil
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	migrations, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return fmt.Errorf("store: migrations: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	for _, r := range results {
		logger.Info("applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// SaveTurns implements transcript.Store.
func (s *PGStore) SaveTurns(ctx context.Context, sessionID string, turns []transcript.Turn) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	_, err = tx.Exec(ctx, `
		INSERT INTO live_sessions (id, started_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		sessionID, now,
	)
	if err != nil {
		return fmt.Errorf("store: upsert session: %w", err)
	}

	batch := &pgx.Batch{}
	for _, t := range turns {
		batch.Queue(`
			INSERT INTO live_turns (id, session_id, role, text, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text`,
			t.ID, sessionID, string(t.Role), t.Text, t.CreatedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("store: insert turns: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// History implements Store.
func (s *PGStore) History(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT session_id, id, role, text, created_at FROM (
			SELECT session_id, id, role, text, created_at
			FROM live_turns
			ORDER BY created_at DESC
			LIMIT $1
		) recent
		ORDER BY created_at ASC`

	var arg any
	if limit > 0 {
		arg = limit
	}

	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	return entries, nil
}

// Session implements Store.
func (s *PGStore) Session(ctx context.Context, id string) (*Session, error) {
	sess := &Session{ID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT started_at, updated_at FROM live_sessions WHERE id = $1`, id,
	).Scan(&sess.StartedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: session: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT session_id, id, role, text, created_at
		FROM live_turns WHERE session_id = $1
		ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("store: session turns: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("store: session turns: %w", err)
	}
	for _, e := range entries {
		sess.Turns = append(sess.Turns, e.Turn)
	}
	return sess, nil
}

func scanEntry(row pgx.CollectableRow) (Entry, error) {
	var (
		e    Entry
		role string
	)
	err := row.Scan(&e.SessionID, &e.ID, &role, &e.Text, &e.CreatedAt)
	e.Role = transcript.Role(role)
	e.Finalized = true
	return e, err
}

// Close implements Store.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

var _ Store = (*PGStore)(nil)
