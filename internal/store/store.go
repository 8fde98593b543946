// Package store provides the flat key/value object store the orchestrator
// reads and writes: run artifacts, per-config summaries, and the fleet-wide
// aggregate objects.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested key does not exist.
var ErrNotFound = errors.New("object not found")

// Content types used for stored objects.
const (
	// ContentTypeJSON is the content type for all summary and artifact objects.
	ContentTypeJSON = "application/json"
)

// ObjectInfo describes one object returned from a prefix listing.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// Store is a flat key/value object store with prefix listing. No
// transactions and no conditional writes are assumed; each Put atomically
// replaces the object at its key.
type Store interface {
	// Get returns the object bytes, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores the object bytes under the key.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// ListPrefix returns all objects whose key starts with the prefix.
	ListPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// GetJSON reads a key and decodes it into out. Returns ErrNotFound when the
// key is absent; the caller decides whether absence is an error.
func GetJSON(ctx context.Context, s Store, key string, out any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	return decodeJSON(key, data, out)
}

// PutJSON encodes v and stores it under the key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := encodeJSON(key, v)
	if err != nil {
		return err
	}

	return s.Put(ctx, key, data, ContentTypeJSON)
}
