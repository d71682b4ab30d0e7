package minio

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/alphauslabs/verticalbuilder/internal/objectstore"
)

func init() {
	objectstore.Register("minio", NewMinIOProvider)
}

// MinIOProvider implements objectstore.Provider for MinIO and other
// S3-compatible servers.
type MinIOProvider struct {
	client *minio.Client
}

// NewMinIOProvider creates a provider for config.Endpoint.
func NewMinIOProvider(_ context.Context, config objectstore.ProviderConfig) (objectstore.Provider, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for MinIO provider")
	}
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinIOProvider{client: client}, nil
}

// List enumerates objects under prefix recursively.
func (p *MinIOProvider) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var names []string
	for obj := range p.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, obj.Err)
		}
		names = append(names, obj.Key)
	}
	return names, nil
}

// Download writes one object to destPath.
func (p *MinIOProvider) Download(ctx context.Context, bucket, object, destPath string) error {
	if err := p.client.FGetObject(ctx, bucket, object, destPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("failed to download s3://%s/%s: %w", bucket, object, err)
	}
	return nil
}

func (p *MinIOProvider) Close() error { return nil }
