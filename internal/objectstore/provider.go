// Package objectstore lists and downloads exported snapshot objects.
//
// Concrete providers live in subpackages and register themselves from init,
// so a binary only links the clients it blank-imports.
package objectstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Provider is the read side of an object store.
type Provider interface {
	// List returns the names of all objects whose name starts with prefix.
	List(ctx context.Context, bucket, prefix string) ([]string, error)

	// Download writes the object's bytes to destPath. The parent directory
	// must already exist.
	Download(ctx context.Context, bucket, object, destPath string) error

	Close() error
}

// ProviderConfig contains configuration for initializing a provider.
type ProviderConfig struct {
	// Provider is the registered provider name ("gcs", "minio", "local").
	Provider string

	// Endpoint, AccessKey, SecretKey and UseSSL address an S3-compatible server.
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// LocalRoot is the directory treated as the parent of all buckets by the
	// local provider.
	LocalRoot string
}

// Constructor builds a Provider from its configuration.
type Constructor func(context.Context, ProviderConfig) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register makes a provider constructor available under name.
func Register(name string, fn Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Registered returns the names of all registered providers.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewProvider creates the provider selected by config.Provider.
func NewProvider(ctx context.Context, config ProviderConfig) (Provider, error) {
	registryMu.RLock()
	fn, ok := registry[config.Provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage provider: %s", config.Provider)
	}
	return fn(ctx, config)
}
