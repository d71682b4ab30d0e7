// Package snapshot stages an exported content snapshot on local disk and
// checks that it is structurally complete.
package snapshot

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/logfields"
	"github.com/alphauslabs/verticalbuilder/internal/objectstore"
)

// RequiredDirs are the top-level directories every export carries.
var RequiredDirs = []string{"content", "data", "static"}

const sampleSize = 10

// Acquirer downloads snapshots through an object store provider.
type Acquirer struct {
	store  objectstore.Provider
	logger *slog.Logger
}

// NewAcquirer returns an Acquirer reading from store.
func NewAcquirer(store objectstore.Provider, logger *slog.Logger) *Acquirer {
	return &Acquirer{store: store, logger: logfields.OrDiscard(logger)}
}

// Download mirrors every object under loc into dest, keeping relative paths.
// Names ending in "/" are created as directories.
func (a *Acquirer) Download(ctx context.Context, loc Location, dest string) error {
	prefix := loc.Prefix + "/"
	names, err := a.store.List(ctx, loc.Bucket, prefix)
	if err != nil {
		return berrors.WrapError(err, berrors.CategoryInternal, "failed to list snapshot objects").
			WithContext("location", loc.String()).
			Build()
	}
	a.logger.Info("Downloading snapshot",
		slog.String("bucket", loc.Bucket),
		slog.String("prefix", loc.Prefix),
		logfields.Count(len(names)))
	if len(names) == 0 {
		return berrors.NotFound("No snapshot files found at %s. Verify export bucket/env/path and exportId.", loc)
	}
	a.logger.Info("Snapshot object sample", slog.Any("names", names[:min(sampleSize, len(names))]))

	for _, name := range names {
		rel := strings.TrimPrefix(name, prefix)
		if rel == "" {
			continue
		}
		if !fs.ValidPath(path.Clean(rel)) {
			return berrors.Invalid("snapshot object %q escapes the export prefix", name)
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return berrors.WrapError(err, berrors.CategoryInternal, "failed to create snapshot directory").Build()
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return berrors.WrapError(err, berrors.CategoryInternal, "failed to create snapshot directory").Build()
		}
		if err := a.store.Download(ctx, loc.Bucket, name, target); err != nil {
			return berrors.WrapError(err, berrors.CategoryInternal, "failed to download snapshot object").
				WithContext("object", name).
				Build()
		}
	}
	return nil
}

// ValidateLayout checks that content/, data/ and static/ exist under root and
// that each holds at least one regular file.
func ValidateLayout(root string, logger *slog.Logger) error {
	logger = logfields.OrDiscard(logger)

	var missing []string
	for _, name := range RequiredDirs {
		info, err := os.Stat(filepath.Join(root, name))
		if err != nil || !info.IsDir() {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return berrors.Invalid("Snapshot missing required directories: %s. Expected content/, data/, static/.",
			strings.Join(missing, ", "))
	}

	var empty []string
	for _, name := range RequiredDirs {
		n, err := CountFiles(filepath.Join(root, name))
		if err != nil {
			return berrors.WrapError(err, berrors.CategoryInternal, "failed to scan snapshot").Build()
		}
		logger.Info("Snapshot directory scanned", logfields.Path(name), logfields.Count(n))
		if n == 0 {
			empty = append(empty, name)
		}
	}
	if len(empty) > 0 {
		return berrors.Invalid("Snapshot directories are empty: %s. Export appears incomplete.",
			strings.Join(empty, ", "))
	}
	return nil
}

// CountFiles returns the number of regular files under dir.
func CountFiles(dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	})
	return n, err
}
