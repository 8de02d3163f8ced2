package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"apply-codes/internal/database"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres stores documents in the documents table (see migrations/V1__documents.sql).
type Postgres struct {
	db database.DB
}

func NewPostgres(db database.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.db == nil {
		return database.ErrNilDB
	}
	return p.db.Ping(ctx)
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := validKey(collection, id); err != nil {
		return Document{}, err
	}
	row := p.db.QueryRow(ctx,
		`SELECT data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)

	doc := Document{Collection: collection, ID: id}
	var raw []byte
	if err := row.Scan(&raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (p *Postgres) Set(ctx context.Context, collection, id string, data any) error {
	return p.upsert(ctx, collection, id, data, `data = EXCLUDED.data`)
}

func (p *Postgres) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	return p.upsert(ctx, collection, id, fields, `data = documents.data || EXCLUDED.data`)
}

func (p *Postgres) upsert(ctx context.Context, collection, id string, data any, set string) error {
	if err := validKey(collection, id); err != nil {
		return err
	}
	b, err := marshalObject(data)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO UPDATE SET `+set+`, updated_at = now()`,
		collection, id, b,
	)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

func (p *Postgres) Create(ctx context.Context, collection, id string, data any) error {
	if err := validKey(collection, id); err != nil {
		return err
	}
	b, err := marshalObject(data)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`,
		collection, id, b,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	return nil
}

func (p *Postgres) Add(ctx context.Context, collection string, data any) (string, error) {
	id := uuid.NewString()
	if err := p.Create(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validKey(collection, id); err != nil {
		return err
	}
	b, err := marshalObject(fields)
	if err != nil {
		return err
	}
	n, err := p.db.Exec(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`,
		collection, id, b,
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if err := validKey(collection, id); err != nil {
		return err
	}
	path, err := splitField(field)
	if err != nil {
		return err
	}

	// jsonb_set only creates the leaf, so the parent object is ensured first.
	base := `data`
	args := []any{collection, id, path, delta}
	if len(path) == 2 {
		base = `jsonb_set(data, ARRAY[$5::text], COALESCE(data -> $5::text, '{}'::jsonb), true)`
		args = append(args, path[0])
	}
	n, err := p.db.Exec(ctx,
		`UPDATE documents
SET data = jsonb_set(`+base+`, $3::text[], to_jsonb(COALESCE((data #>> $3::text[])::numeric, 0) + $4), true),
	updated_at = now()
WHERE collection = $1 AND id = $2`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("increment %s/%s.%s: %w", collection, id, field, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Find(ctx context.Context, collection string, q Query) ([]Document, error) {
	where, err := marshalObject(q.Where)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := p.db.Query(ctx,
		`SELECT id, data, created_at, updated_at FROM documents
WHERE collection = $1 AND data @> $2::jsonb AND created_at >= $3
ORDER BY created_at DESC
LIMIT $4`,
		collection, where, q.Since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc := Document{Collection: collection}
		var raw []byte
		if err := rows.Scan(&doc.ID, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &doc.Data); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, doc.ID, err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (p *Postgres) Count(ctx context.Context, collection string, q Query) (int64, error) {
	where, err := marshalObject(q.Where)
	if err != nil {
		return 0, err
	}
	var n int64
	err = p.db.QueryRow(ctx,
		`SELECT count(*) FROM documents WHERE collection = $1 AND data @> $2::jsonb AND created_at >= $3`,
		collection, where, q.Since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func marshalObject(data any) (string, error) {
	m, err := toMap(data)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return string(b), nil
}
