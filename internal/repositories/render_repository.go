package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"cardrender/internal/models"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const schema = `
CREATE TABLE IF NOT EXISTS renders (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	template    TEXT NOT NULL,
	object_key  TEXT NOT NULL,
	url         TEXT NOT NULL,
	width       INTEGER NOT NULL,
	height      INTEGER NOT NULL,
	bytes       BIGINT NOT NULL,
	duration_ms BIGINT NOT NULL,
	request_id  TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS renders_created_at_idx ON renders (created_at DESC);
`

type RenderRepository struct {
	db DB
}

func NewRenderRepository(db DB) *RenderRepository {
	return &RenderRepository{db: db}
}

// EnsureSchema creates the renders table when it is missing.
func (r *RenderRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

func (r *RenderRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *RenderRepository) Record(ctx context.Context, m *models.Render) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO renders (id, kind, template, object_key, url, width, height, bytes, duration_ms, request_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at
	`,
		m.ID,
		m.Kind,
		m.Template,
		m.ObjectKey,
		m.URL,
		m.Width,
		m.Height,
		m.Bytes,
		m.DurationMS,
		nullIfEmpty(m.RequestID),
	).Scan(&m.CreatedAt)
}

// List returns the most recent renders first. limit is clamped to
// [1, MaxListLimit]; zero means DefaultListLimit.
func (r *RenderRepository) List(ctx context.Context, limit int) ([]models.Render, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, kind, template, object_key, url, width, height, bytes, duration_ms,
		       COALESCE(request_id, ''), created_at
		FROM renders
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Render{}
	for rows.Next() {
		var m models.Render
		if err := rows.Scan(
			&m.ID,
			&m.Kind,
			&m.Template,
			&m.ObjectKey,
			&m.URL,
			&m.Width,
			&m.Height,
			&m.Bytes,
			&m.DurationMS,
			&m.RequestID,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
