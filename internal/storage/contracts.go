package storage

import "context"

// KV is the key/value port every persisted component writes through. Values
// are opaque bytes; callers store JSON.
type KV interface {
	// Get returns ok=false when key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists keys starting with prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Schema is implemented by SQL backends that create their table on startup.
type Schema interface {
	EnsureSchema(ctx context.Context) error
}
