// Package database is the document store behind build locks and receipts.
//
// Documents are JSON blobs addressed by hierarchical slash-separated paths
// (for example "orgs/acme/verticalBuildLocks/gym"). The only coordination
// primitive is RunTransaction: reads inside the callback and the writes it
// buffers commit atomically, or the whole callback is retried/failed. Both the
// lock manager and the receipt recorder go through this one contract.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Store.Get when no document exists at the path.
var ErrNotFound = errors.New("document not found")

// Document is a stored document and its path.
type Document struct {
	Path string
	Data []byte
}

// Tx is the view of the store inside a transaction. Writes are buffered and
// applied at commit; reads observe committed state only.
type Tx interface {
	// Get returns the document at path; ok is false when it does not exist.
	Get(ctx context.Context, path string) (data []byte, ok bool, err error)
	// Set replaces the document at path.
	Set(path string, data []byte) error
	// Delete removes the document at path. Deleting a missing document is not an error.
	Delete(path string) error
}

// Store is a transactional document store.
type Store interface {
	// RunTransaction executes fn atomically. fn may be invoked more than once
	// when the backend retries on contention, so it must be free of side effects
	// beyond the Tx it receives.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Get reads a single document outside a transaction.
	Get(ctx context.Context, path string) ([]byte, error)
	// List returns the documents whose path starts with prefix, ordered by path.
	List(ctx context.Context, prefix string) ([]Document, error)
	Close() error
}

// Path joins segments into a document path. Segments must not contain "/".
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}

// Set writes a single document in its own transaction.
func Set(ctx context.Context, s Store, path string, data []byte) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Set(path, data)
	})
}

// Delete removes a single document in its own transaction.
func Delete(ctx context.Context, s Store, path string) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Delete(path)
	})
}

// Config selects and addresses a Store backend.
type Config struct {
	Provider string

	ProjectID string
	Instance  string
	Database  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewStore creates a Store for the configured provider.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Provider {
	case "spanner":
		return NewClient(ctx, cfg.ProjectID, cfg.Instance, cfg.Database)
	case "redis":
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported database provider: %s", cfg.Provider)
	}
}
