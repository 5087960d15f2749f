package transcript

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/junghee-19/SignLink/internal/session"
)

// Compile-time interface assertion.
var _ Store = (*PostgresStore)(nil)

// PostgresStore persists transcripts in a PostgreSQL table. Message IDs are
// unique within a session, so replays of the same append are idempotent.
//
// All operations are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database at dsn and creates the transcript
// table if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("transcript: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript: ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript: migrate: %w", err)
	}
	return s, nil
}

// migrate creates the transcript table.
func (s *PostgresStore) migrate(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS chat_messages (
		    session_id TEXT   NOT NULL,
		    id         BIGINT NOT NULL,
		    sender     TEXT   NOT NULL,
		    text       TEXT   NOT NULL,
		    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		    PRIMARY KEY (session_id, id)
		)`
	_, err := s.pool.Exec(ctx, q)
	return err
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, sessionID string, msg session.Message) error {
	const q = `
		INSERT INTO chat_messages (session_id, id, sender, text)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, id) DO NOTHING`

	_, err := s.pool.Exec(ctx, q, sessionID, msg.ID, string(msg.Sender), msg.Text)
	if err != nil {
		return fmt.Errorf("transcript: append to %q: %w", sessionID, err)
	}
	return nil
}

// Messages implements Store.
func (s *PostgresStore) Messages(ctx context.Context, sessionID string) ([]session.Message, error) {
	const q = `
		SELECT id, sender, text
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY id`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("transcript: query %q: %w", sessionID, err)
	}
	defer rows.Close()

	var msgs []session.Message
	for rows.Next() {
		var (
			msg    session.Message
			sender string
		)
		if err := rows.Scan(&msg.ID, &sender, &msg.Text); err != nil {
			return nil, fmt.Errorf("transcript: scan message: %w", err)
		}
		msg.Sender = session.Sender(sender)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcript: query %q: %w", sessionID, err)
	}
	return msgs, nil
}

// Sessions implements Store.
func (s *PostgresStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT session_id FROM chat_messages ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("transcript: list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("transcript: scan session: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcript: list sessions: %w", err)
	}
	return ids, nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
