// Package store defines the durable blob storage interface and implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey is returned for keys that are empty or contain path separators.
var ErrInvalidKey = errors.New("store: invalid key")

// Store is the interface that all durable backends must implement.
// It holds opaque blobs addressed by a flat string key, the way a browser
// profile's local storage does.
type Store interface {
	// Get returns the blob stored under key, or nil if there is none.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set inserts or replaces the blob stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes the blob. Returns true if it existed.
	Remove(ctx context.Context, key string) (bool, error)

	// Keys returns every key that holds a blob, sorted.
	Keys(ctx context.Context) ([]string, error)
}

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
