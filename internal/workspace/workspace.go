// Package workspace composes a build-ready tree from a validated snapshot, a
// template bundle and the base site configuration.
package workspace

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/job"
	"github.com/alphauslabs/verticalbuilder/internal/logfields"
)

// Layout of an assembled workspace.
const (
	ThemesDir  = "themes"
	ConfigFile = "config.yaml"
	PublicDir  = "public"
)

// SnapshotDirs are copied from the snapshot into the workspace.
var SnapshotDirs = []string{"content", "data", "static"}

// Assembler builds workspaces.
type Assembler struct {
	ThemesRoot     string
	BaseConfigPath string
	Logger         *slog.Logger
}

// Assemble copies the snapshot subtrees, the template bundle selected by
// d.TemplateKey and the base configuration into workspaceDir. Absent snapshot
// subtrees become empty directories. workspaceDir is expected to be freshly
// cleared; the result is a function of the inputs only.
func (a *Assembler) Assemble(d *job.Description, snapshotRoot, workspaceDir string) error {
	logger := logfields.OrDiscard(a.Logger)

	themeSrc, err := ResolveTemplate(a.ThemesRoot, d.TemplateKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return fsError(err, "failed to create workspace", workspaceDir)
	}

	for _, name := range SnapshotDirs {
		src := filepath.Join(snapshotRoot, name)
		dst := filepath.Join(workspaceDir, name)
		if info, err := os.Stat(src); err == nil && info.IsDir() {
			if err := os.CopyFS(dst, os.DirFS(src)); err != nil {
				return fsError(err, "failed to copy snapshot directory", src)
			}
			continue
		}
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return fsError(err, "failed to create workspace directory", dst)
		}
	}

	themeDst := filepath.Join(workspaceDir, ThemesDir, d.TemplateKey)
	if err := os.CopyFS(themeDst, os.DirFS(themeSrc)); err != nil {
		return fsError(err, "failed to copy template bundle", themeSrc)
	}
	if err := copyFile(a.BaseConfigPath, filepath.Join(workspaceDir, ConfigFile)); err != nil {
		return fsError(err, "failed to copy base config", a.BaseConfigPath)
	}

	contentCount, _ := countFiles(filepath.Join(workspaceDir, "content"))
	dataCount, _ := countFiles(filepath.Join(workspaceDir, "data"))
	logger.Info("Assembled workspace",
		logfields.Path(workspaceDir),
		slog.Int("content_files", contentCount),
		slog.Int("data_files", dataCount))
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func countFiles(dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
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

func fsError(err error, message, path string) error {
	return berrors.WrapError(err, berrors.CategoryInternal, message).
		WithContext("path", path).
		Build()
}
