//go:build integration

package mysqlkv_test

import (
	"context"
	"os"
	"testing"

	"github.com/pvzzle/wasi/internal/storage/mysqlkv"

	"github.com/rs/zerolog"
)

func TestStore_KV(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		dsn = os.Getenv("MYSQL_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN/MYSQL_DSN is not set")
	}

	ctx := context.Background()
	s, err := mysqlkv.Open(ctx, dsn, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	_ = s.Delete(ctx, "wasi_transactions_0x1")
	_ = s.Delete(ctx, "wasiXtransactions_0x5")

	if err := s.Set(ctx, "wasi_transactions_0x1", []byte(`[]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "wasi_transactions_0x1", []byte(`[1]`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	_ = s.Set(ctx, "wasiXtransactions_0x5", []byte(`[]`))

	v, ok, err := s.Get(ctx, "wasi_transactions_0x1")
	if err != nil || !ok || string(v) != `[1]` {
		t.Fatalf("unexpected value %q ok=%v err=%v", v, ok, err)
	}

	keys, err := s.Keys(ctx, "wasi_transactions_")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	for _, k := range keys {
		if k == "wasiXtransactions_0x5" {
			t.Fatalf("prefix matched a wildcard: %v", keys)
		}
	}
}
