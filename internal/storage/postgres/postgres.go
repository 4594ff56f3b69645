package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/sourcer/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	subject TEXT NOT NULL,
	status TEXT NOT NULL,
	duration_ms BIGINT NOT NULL,
	payload JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	error TEXT
);
CREATE INDEX IF NOT EXISTS audit_records_run_idx ON audit_records (run_id, created_at);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, r *storage.Record) error {
	query := `
	INSERT INTO audit_records (
		id, run_id, kind, subject, status, duration_ms, payload, created_at, error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	// JSONB rejects an empty document, so a missing payload is stored as NULL.
	var payload any
	if len(r.Payload) > 0 {
		payload = string(r.Payload)
	}

	_, err := b.pool.Exec(ctx, query,
		r.ID,
		r.RunID,
		string(r.Kind),
		r.Subject,
		r.Status,
		r.Duration.Milliseconds(),
		payload,
		r.CreatedAt,
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert record %s: %w", r.ID, err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT id, run_id, kind, subject, status, duration_ms, payload, created_at, error FROM audit_records WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, paramCount)
		args = append(args, filter.RunID)
		paramCount++
	}
	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, paramCount)
		args = append(args, string(filter.Kind))
		paramCount++
	}
	if filter.Subject != "" {
		query += fmt.Sprintf(` AND subject = $%d`, paramCount)
		args = append(args, filter.Subject)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query records: %w", err)
	}
	defer rows.Close()

	var results []*storage.Record
	for rows.Next() {
		var r storage.Record
		var kind string
		var durationMs int64
		var payload *string
		var errText *string

		err := rows.Scan(
			&r.ID, &r.RunID, &kind, &r.Subject, &r.Status,
			&durationMs, &payload, &r.CreatedAt, &errText,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan record: %w", err)
		}

		r.Kind = storage.Kind(kind)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		if payload != nil {
			r.Payload = []byte(*payload)
		}
		if errText != nil {
			r.Error = *errText
		}
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate records: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
