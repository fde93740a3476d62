//go:build integration

package pg_test

import (
	"context"
	"os"
	"testing"

	"github.com/pvzzle/wasi/internal/storage"
	"github.com/pvzzle/wasi/internal/storage/pg"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestRepo_KV(t *testing.T) {
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		dsn = os.Getenv("POSTGRES_URL")
	}
	if dsn == "" {
		t.Skip("TEST_PG_DSN/POSTGRES_URL is not set")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	repo := pg.New(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	_, _ = pool.Exec(ctx, "TRUNCATE wasi_kv")

	var kv storage.KV = repo

	if err := kv.Set(ctx, "wasi_transactions_0x1", []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set(ctx, "wasi_transactions_0x1", []byte(`[{"hash":"0x1"}]`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	// '_' must not act as a LIKE wildcard
	_ = kv.Set(ctx, "wasiXtransactions_0x5", []byte(`[]`))

	v, ok, err := kv.Get(ctx, "wasi_transactions_0x1")
	if err != nil || !ok || string(v) != `[{"hash":"0x1"}]` {
		t.Fatalf("unexpected value %q ok=%v err=%v", v, ok, err)
	}

	keys, err := kv.Keys(ctx, "wasi_transactions_")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got=%v", keys)
	}

	if err := kv.Delete(ctx, "wasi_transactions_0x1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "wasi_transactions_0x1"); ok {
		t.Fatal("expected key to be deleted")
	}
}
