// Package storage provides key-addressed object storage for job configs,
// raw model artifacts, reports, and logs. Puts are idempotent overwrites
// by key, so retrying a write is always safe.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// ObjectStore is the key-addressed put/get interface consumed by the
// pipeline. Implementations: FilesystemStore and S3Store.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// PutJSON marshals v with indentation and writes it at key.
func PutJSON(ctx context.Context, store ObjectStore, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return store.Put(ctx, key, data)
}

// GetJSON fetches key and unmarshals it into v.
func GetJSON(ctx context.Context, store ObjectStore, key string, v any) error {
	data, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
