package landmarks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/junghee-19/SignLink/pkg/provider/landmark"
)

// Compile-time interface assertion.
var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps landmark templates in a PostgreSQL table. The averaged
// template is stored twice: as JSONB for serving, and flattened into a
// pgvector column so Classify is a single nearest-neighbour query.
//
// All operations are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
	dims int
}

// NewPostgresStore connects to the database at dsn, registers pgvector types
// on every connection, and creates the template table if needed.
//
// pointCount is the number of landmarks per template (21 for MediaPipe
// hands); the vector column is sized to pointCount*3 coordinates. Changing it
// after the first migration requires a manual schema change.
func NewPostgresStore(ctx context.Context, dsn string, pointCount int) (*PostgresStore, error) {
	if pointCount <= 0 {
		return nil, errors.New("landmarks: pointCount must be positive")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("landmarks: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("landmarks: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("landmarks: ping: %w", err)
	}

	s := &PostgresStore{pool: pool, dims: pointCount * 3}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("landmarks: migrate: %w", err)
	}
	return s, nil
}

// migrate creates the extension and the template table.
func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return err
	}
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS sign_templates (
		    alias          TEXT PRIMARY KEY,
		    sign           TEXT NOT NULL,
		    video          TEXT NOT NULL DEFAULT '',
		    frames_sampled INT  NOT NULL DEFAULT 0,
		    average        JSONB NOT NULL,
		    embedding      vector(%d)
		)`, s.dims)
	_, err := s.pool.Exec(ctx, q)
	return err
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, sign string) (*landmark.Template, error) {
	const q = `
		SELECT alias, sign, video, frames_sampled, average
		FROM sign_templates
		WHERE alias = $1`

	tpl := &landmark.Template{}
	err := s.pool.QueryRow(ctx, q, strings.ToLower(sign)).Scan(
		&tpl.Alias,
		&tpl.Sign,
		&tpl.Video,
		&tpl.FramesSampled,
		&tpl.Average,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, sign)
	}
	if err != nil {
		return nil, fmt.Errorf("landmarks: get %q: %w", sign, err)
	}
	return tpl, nil
}

// Put implements Store. Templates whose point count matches the configured
// dimension get an embedding and participate in Classify; others (including
// empty averages) are stored with a NULL embedding and are serve-only.
func (s *PostgresStore) Put(ctx context.Context, tpl *landmark.Template) error {
	key := tpl.Key()
	if key == "" {
		return errors.New("landmarks: template has neither alias nor sign")
	}

	var vec *pgvector.Vector
	if len(tpl.Average)*3 == s.dims {
		v := pgvector.NewVector(flatten(tpl.Average))
		vec = &v
	}

	const q = `
		INSERT INTO sign_templates (alias, sign, video, frames_sampled, average, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (alias) DO UPDATE SET
		    sign           = EXCLUDED.sign,
		    video          = EXCLUDED.video,
		    frames_sampled = EXCLUDED.frames_sampled,
		    average        = EXCLUDED.average,
		    embedding      = EXCLUDED.embedding`

	_, err := s.pool.Exec(ctx, q, key, tpl.Sign, tpl.Video, tpl.FramesSampled, tpl.Average, vec)
	if err != nil {
		return fmt.Errorf("landmarks: put %q: %w", key, err)
	}
	return nil
}

// Signs implements Store.
func (s *PostgresStore) Signs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT alias FROM sign_templates ORDER BY alias`)
	if err != nil {
		return nil, fmt.Errorf("landmarks: list signs: %w", err)
	}
	defer rows.Close()

	var signs []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("landmarks: scan sign: %w", err)
		}
		signs = append(signs, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("landmarks: list signs: %w", err)
	}
	return signs, nil
}

// Classify implements Store. Ordering uses L2 distance over the flattened
// coordinates; templates without an embedding (length mismatch) never match.
func (s *PostgresStore) Classify(ctx context.Context, points []landmark.Point) (string, error) {
	if len(points)*3 != s.dims {
		return "", ErrNoMatch
	}

	const q = `
		SELECT alias
		FROM sign_templates
		WHERE embedding IS NOT NULL
		ORDER BY embedding <-> $1
		LIMIT 1`

	var alias string
	err := s.pool.QueryRow(ctx, q, pgvector.NewVector(flatten(points))).Scan(&alias)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoMatch
	}
	if err != nil {
		return "", fmt.Errorf("landmarks: classify: %w", err)
	}
	return alias, nil
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

// flatten serializes points into x,y,z triples in slice order.
func flatten(points []landmark.Point) []float32 {
	out := make([]float32, 0, len(points)*3)
	for _, p := range points {
		out = append(out, float32(p.X), float32(p.Y), float32(p.Z))
	}
	return out
}
