package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/ledger-notify/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ledger_objects (
	id          TEXT PRIMARY KEY,
	space       SMALLINT NOT NULL,
	type        SMALLINT NOT NULL,
	instance    BIGINT NOT NULL,
	value       JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres is an ObjectStore backed by the ledger_objects table.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres wraps an open pool. The pool is closed by Close.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates ledger_objects if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create ledger_objects: %w", err)
	}
	return nil
}

func (p *Postgres) Fetch(ctx context.Context, id model.ObjectID) (json.RawMessage, error) {
	var value []byte
	err := p.db.QueryRow(ctx, `SELECT value FROM ledger_objects WHERE id = $1`, id.String()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", id, err)
	}
	return value, nil
}

func (p *Postgres) FetchMany(ctx context.Context, ids []model.ObjectID) ([]json.RawMessage, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	rows, err := p.db.Query(ctx, `SELECT id, value FROM ledger_objects WHERE id = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("select objects: %w", err)
	}
	defer rows.Close()

	found := make(map[string]json.RawMessage, len(ids))
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		found[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objects: %w", err)
	}

	out := make([]json.RawMessage, len(ids))
	for i, key := range keys {
		out[i] = found[key]
	}
	return out, nil
}

// Apply upserts and deletes in one transaction using pgx.Batch.
func (p *Postgres) Apply(ctx context.Context, upserts []Object, removals []model.ObjectID) error {
	if len(upserts) == 0 && len(removals) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, o := range upserts {
		batch.Queue(`
			INSERT INTO ledger_objects (id, space, type, instance, value)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		`, o.ID.String(), int16(o.ID.Space), int16(o.ID.Type), int64(o.ID.Instance), string(o.Value))
	}
	for _, id := range removals {
		batch.Queue(`DELETE FROM ledger_objects WHERE id = $1`, id.String())
	}

	return pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("apply statement %d: %w", i, err)
			}
		}
		return results.Close()
	})
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
