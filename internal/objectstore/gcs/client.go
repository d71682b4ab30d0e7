package gcs

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/alphauslabs/verticalbuilder/internal/objectstore"
)

func init() {
	objectstore.Register("gcs", NewGCSProvider)
}

// GCSProvider implements objectstore.Provider for Google Cloud Storage.
type GCSProvider struct {
	client *storage.Client
}

// NewGCSProvider creates a provider using application default credentials.
func NewGCSProvider(ctx context.Context, _ objectstore.ProviderConfig) (objectstore.Provider, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSProvider{client: client}, nil
}

// List enumerates objects under prefix.
func (p *GCSProvider) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := p.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// Download streams one object into destPath.
func (p *GCSProvider) Download(ctx context.Context, bucket, object, destPath string) error {
	r, err := p.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to download gs://%s/%s: %w", bucket, object, err)
	}
	return f.Close()
}

func (p *GCSProvider) Close() error {
	return p.client.Close()
}
