// Package storage persists per-chunk records keyed by chunk coordinate and
// field name.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("storage: not found")

// Key addresses one chunk's records. Prefix scopes keys so several worlds
// can share a backend.
type Key struct {
	Prefix string
	X, Z   int
}

func (k Key) String() string {
	if k.Prefix == "" {
		return fmt.Sprintf("(%d,%d)", k.X, k.Z)
	}
	return fmt.Sprintf("%s/(%d,%d)", k.Prefix, k.X, k.Z)
}

// Store is a persistence backend holding opaque blobs.
type Store interface {
	Put(ctx context.Context, key Key, field string, data []byte) error
	// Get returns ErrNotFound when no blob is stored under key and field.
	Get(ctx context.Context, key Key, field string) ([]byte, error)
	// Fields lists the fields stored for key in ascending order.
	Fields(ctx context.Context, key Key) ([]string, error)
	// Delete removes every field of key.
	Delete(ctx context.Context, key Key) error
	Close() error
}

// Save encodes v and stores it under key and field.
func Save[T any](ctx context.Context, s Store, key Key, field string, v T) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("storage: save %s %s: %w", key, field, err)
	}
	return s.Put(ctx, key, field, data)
}

// Load fetches and decodes the record under key and field.
func Load[T any](ctx context.Context, s Store, key Key, field string) (T, error) {
	var v T
	data, err := s.Get(ctx, key, field)
	if err != nil {
		return v, err
	}
	if err := Decode(data, &v); err != nil {
		return v, fmt.Errorf("storage: load %s %s: %w", key, field, err)
	}
	return v, nil
}
