package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorrupt is returned by GetJSON when the stored value does not decode.
var ErrCorrupt = errors.New("corrupt value")

// GetJSON decodes the value under key into out. A missing key leaves out
// untouched and returns ok=false.
func GetJSON(ctx context.Context, kv KV, key string, out any) (bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("%w under %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, kv KV, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, raw)
}
