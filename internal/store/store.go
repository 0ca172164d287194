package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when no document exists at a path.
	ErrNotFound = errors.New("store: not found")
	// ErrUnavailable wraps transient infrastructure failures. Callers may
	// retry; the booking orchestrator falls back to the spool on it.
	ErrUnavailable = errors.New("store: unavailable")
)

// Directory is the key-path document store backing the service: trees of
// JSON documents addressed by slash-separated paths (users/{id},
// availability/{doctorId}/{date}/slots/{time}, consultations/{id}).
//
// The parent of a path addresses a flat collection; GetAll enumerates its
// immediate children. CompareAndSet is the single conditional write the
// booking path relies on: it replaces the document at path only if the
// current document equals expect, atomically in the backing store.
type Directory interface {
	// Get unmarshals the document at path into out. ErrNotFound if absent.
	Get(ctx context.Context, path string, out interface{}) error
	// GetAll returns the immediate children of path keyed by name.
	GetAll(ctx context.Context, path string) (map[string]json.RawMessage, error)
	// Set replaces the document at path.
	Set(ctx context.Context, path string, value interface{}) error
	// SetAll replaces the whole collection at path with the given children.
	SetAll(ctx context.Context, path string, values map[string]interface{}) error
	// Update merges fields into the document at path, creating it if absent.
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	// Delete removes the document at path. No error if already absent.
	Delete(ctx context.Context, path string) error
	// CompareAndSet replaces the document at path with value iff the stored
	// document currently equals expect. Returns false on mismatch or absence.
	CompareAndSet(ctx context.Context, path string, expect, value interface{}) (bool, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Join builds a slash-separated path from segments.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

// Split separates a path into its collection and child name.
func Split(path string) (parent, name string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
