// Package local serves snapshot exports from a directory tree, one
// subdirectory per bucket. It backs local development and tests.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/alphauslabs/verticalbuilder/internal/objectstore"
)

func init() {
	objectstore.Register("local", NewLocalProvider)
}

// Provider reads objects from Root/<bucket>/<object>.
type Provider struct {
	Root string
}

// NewLocalProvider creates a provider rooted at config.LocalRoot.
func NewLocalProvider(_ context.Context, config objectstore.ProviderConfig) (objectstore.Provider, error) {
	if config.LocalRoot == "" {
		return nil, fmt.Errorf("local root is required for local provider")
	}
	return &Provider{Root: config.LocalRoot}, nil
}

// List walks the bucket directory and returns slash-separated object names
// starting with prefix. Empty directories are reported with a trailing "/".
func (p *Provider) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	bucketRoot := filepath.Join(p.Root, bucket)
	var names []string
	err := filepath.WalkDir(bucketRoot, func(fpath string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && fpath == bucketRoot {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(bucketRoot, fpath)
		if err != nil || rel == "." {
			return err
		}
		name := filepath.ToSlash(rel)
		if d.IsDir() {
			entries, err := os.ReadDir(fpath)
			if err != nil {
				return err
			}
			if len(entries) > 0 {
				return nil
			}
			name += "/"
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list file://%s/%s: %w", bucket, prefix, err)
	}
	return names, nil
}

// Download copies one object to destPath.
func (p *Provider) Download(ctx context.Context, bucket, object, destPath string) error {
	src, err := os.Open(filepath.Join(p.Root, bucket, filepath.FromSlash(path.Clean(object))))
	if err != nil {
		return fmt.Errorf("failed to open file://%s/%s: %w", bucket, object, err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy file://%s/%s: %w", bucket, object, err)
	}
	return dst.Close()
}

func (p *Provider) Close() error { return nil }
