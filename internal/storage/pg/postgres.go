package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

// Connect opens a pool for dsn and makes sure the schema exists.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg pool: %w", err)
	}
	r := New(pool)
	if err := r.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg schema: %w", err)
	}
	return r, nil
}

func (r *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS wasi_kv (
  key        TEXT PRIMARY KEY,
  value      BYTEA NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	_, err := r.pool.Exec(ctx, ddl)
	return err
}

func (r *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var value []byte
	err := r.pool.QueryRow(cctx, `SELECT value FROM wasi_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r *Postgres) Set(ctx context.Context, key string, value []byte) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	q := `
INSERT INTO wasi_kv(key, value) VALUES ($1, $2)
ON CONFLICT(key) DO UPDATE SET
  value      = EXCLUDED.value,
  updated_at = now()
`
	_, err := r.pool.Exec(cctx, q, key, value)
	return err
}

func (r *Postgres) Delete(ctx context.Context, key string) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := r.pool.Exec(cctx, `DELETE FROM wasi_kv WHERE key = $1`, key)
	return err
}

// Keys matches the prefix with left() so '_' and '%' in keys stay literal.
func (r *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(cctx,
		`SELECT key FROM wasi_kv WHERE left(key, char_length($1)) = $1 ORDER BY key`,
		prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return out, nil
}

func (r *Postgres) Close() error {
	r.pool.Close()
	return nil
}

func (r *Postgres) String() string { return fmt.Sprintf("pgkv(%p)", r.pool) }
