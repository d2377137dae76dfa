package store

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("store: value not found")

// Event is one change notification delivered to a subscriber.
// Value is nil when the path was removed.
type Event struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// UnsubscribeFunc cancels a watch established by Subscribe.
type UnsubscribeFunc func()

// Store is the shared realtime document store every room participant talks
// to. Values are JSON documents keyed by slash-separated paths. All writes
// are last-writer-wins per field; no multi-path atomicity is provided.
type Store interface {
	// Get returns the document at path, or ErrNotFound.
	Get(ctx context.Context, path string) (json.RawMessage, error)
	// Set replaces the document at path.
	Set(ctx context.Context, path string, value any) error
	// Update merges fields into the object at path, creating it if absent.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Remove deletes the document at path and everything beneath it.
	Remove(ctx context.Context, path string) error
	// Append stores value under a generated key inside collectionPath and
	// returns the key.
	Append(ctx context.Context, collectionPath string, value any) (string, error)
	// List returns every document strictly under collectionPath, keyed by
	// the path remainder. Missing collections yield an empty map.
	List(ctx context.Context, collectionPath string) (map[string]json.RawMessage, error)
	// Subscribe watches every path at or under pathPrefix. The current
	// state is replayed first, then changes as they happen.
	Subscribe(ctx context.Context, pathPrefix string, fn func(Event)) (UnsubscribeFunc, error)
}
