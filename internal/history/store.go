// Package history provides PostgreSQL-backed storage for call history. It is
// an external collaborator of the matchmaking core: it consumes the
// session-started and session-ended events and keeps one row per two-party
// call for later lookups (support, economy settlement). It never reaches
// back into core state.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// Store manages call history rows in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL with the given DSN, verifies the connection,
// and runs pending migrations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: postgres connection failed: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle (used by tests).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordStart inserts an open call row for a freshly bound pair.
func (s *Store) RecordStart(ctx context.Context, userA, userB string, startedAt time.Time) error {
	const query = `
		INSERT INTO call_history (user_a, user_b, started_at)
		VALUES ($1, $2, $3)`

	if _, err := s.db.ExecContext(ctx, query, userA, userB, startedAt); err != nil {
		return fmt.Errorf("history: record start: %w", err)
	}
	return nil
}

// RecordEnd closes the most recent open row for the pair. The pair may be
// reported in either order since unbind can originate from either side.
func (s *Store) RecordEnd(ctx context.Context, userA, userB, reason string, endedAt time.Time, durationMs int64) error {
	const query = `
		UPDATE call_history
		SET ended_at = $3, end_reason = $4, duration_ms = $5
		WHERE id = (
			SELECT id FROM call_history
			WHERE ((user_a = $1 AND user_b = $2) OR (user_a = $2 AND user_b = $1))
			  AND ended_at IS NULL
			ORDER BY started_at DESC
			LIMIT 1
		)`

	if _, err := s.db.ExecContext(ctx, query, userA, userB, endedAt, reason, durationMs); err != nil {
		return fmt.Errorf("history: record end: %w", err)
	}
	return nil
}

// CountRecent returns the number of calls a user participated in within the
// given window.
func (s *Store) CountRecent(ctx context.Context, userID string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM call_history
		WHERE (user_a = $1 OR user_b = $1)
		  AND started_at >= NOW() - make_interval(secs => $2)`

	var count int
	if err := s.db.QueryRowContext(ctx, query, userID, window.Seconds()).Scan(&count); err != nil {
		return 0, fmt.Errorf("history: count recent: %w", err)
	}
	return count, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
