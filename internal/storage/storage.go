// Package storage abstracts the durable blob store backing conversation
// history, session backups, and media uploads.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no object exists at the requested key.
var ErrNotFound = errors.New("storage: object not found")

// Provider abstracts object storage operations. Keys are namespaced by
// purpose: "history/{userId}.json", "backups/{userId}/{ts}.json",
// "uploads/{yyyy}/{mm}/{userId}/{uuid}.{ext}".
type Provider interface {
	// Put writes data to storage under the given key.
	Put(ctx context.Context, key string, reader io.Reader) error
	// Open returns a reader for the given storage key.
	// Returns ErrNotFound when the key does not exist.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns all keys under the given prefix, sorted ascending.
	List(ctx context.Context, prefix string) ([]string, error)
}

// GetBytes reads the whole object at key.
func GetBytes(ctx context.Context, p Provider, key string) ([]byte, error) {
	rc, err := p.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()
	return io.ReadAll(rc)
}
