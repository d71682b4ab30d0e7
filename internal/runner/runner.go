// Package runner invokes the external site generator and hosting deploy tool
// and exports local builds.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/logfields"
	"github.com/alphauslabs/verticalbuilder/internal/workspace"
)

// DeployConfigFile is written into the workspace before deploying.
const DeployConfigFile = "firebase.json"

const outputTailBytes = 2048

// Runner runs build subprocesses. Every call is bounded by Timeout.
type Runner struct {
	Exec         Executor
	GeneratorBin string
	DeployBin    string
	Timeout      time.Duration
	Logger       *slog.Logger
}

// New returns a Runner using os/exec.
func New(generatorBin, deployBin string, timeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		Exec:         ExecExecutor{},
		GeneratorBin: generatorBin,
		DeployBin:    deployBin,
		Timeout:      timeout,
		Logger:       logger,
	}
}

func (r *Runner) logger() *slog.Logger { return logfields.OrDiscard(r.Logger) }

// run executes one command under the fixed timeout. A non-zero exit or a
// timeout becomes an external tool error; the combined output is attached as
// context, never to the message.
func (r *Runner) run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	command := strings.Join(append([]string{name}, args...), " ")
	r.logger().Info("Running command", logfields.Command(command), logfields.Path(dir))

	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	out, err := r.Exec.Run(runCtx, dir, name, args...)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return out, berrors.NewErrorf(berrors.CategoryExternalTool, "%s timed out after %s", command, r.Timeout).
			WithContext("command", command).
			Build()
	}
	if err != nil {
		return out, berrors.WrapError(err, berrors.CategoryExternalTool, command+" failed").
			WithContext("command", command).
			WithContext("output", tail(out)).
			Build()
	}
	return out, nil
}

// Generate runs the static-site generator in workspaceDir.
func (r *Runner) Generate(ctx context.Context, workspaceDir string) error {
	_, err := r.run(ctx, workspaceDir, r.GeneratorBin, "--minify")
	return err
}

// Publish ensures the hosting site exists, writes the deploy configuration
// scoped to site, and deploys workspaceDir/public to hostingProject.
func (r *Runner) Publish(ctx context.Context, workspaceDir, site, hostingProject string) error {
	if err := r.ensureSite(ctx, workspaceDir, site, hostingProject); err != nil {
		return err
	}
	configPath, err := WriteDeployConfig(workspaceDir, site)
	if err != nil {
		return err
	}
	_, err = r.run(ctx, workspaceDir, r.DeployBin,
		"deploy", "--only", "hosting",
		"--project", hostingProject,
		"--config", configPath,
		"--non-interactive")
	return err
}

func (r *Runner) ensureSite(ctx context.Context, dir, site, hostingProject string) error {
	r.logger().Info("Ensuring hosting site exists", logfields.Site(site))
	out, err := r.run(ctx, dir, r.DeployBin,
		"hosting:sites:create", site,
		"--project", hostingProject,
		"--non-interactive")
	if err == nil {
		r.logger().Info("Hosting site ready", logfields.Site(site))
		return nil
	}
	if berrors.IsExternalTool(err) && strings.Contains(strings.ToLower(string(out)), "already exists") {
		return nil
	}
	return err
}

type deployConfig struct {
	Hosting hostingConfig `json:"hosting"`
}

type hostingConfig struct {
	Site   string   `json:"site"`
	Public string   `json:"public"`
	Ignore []string `json:"ignore"`
}

// WriteDeployConfig writes the hosting deploy configuration into workspaceDir
// and returns its path.
func WriteDeployConfig(workspaceDir, site string) (string, error) {
	cfg := deployConfig{Hosting: hostingConfig{
		Site:   site,
		Public: workspace.PublicDir,
		Ignore: []string{DeployConfigFile, "**/.*", "**/node_modules/**"},
	}}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", berrors.WrapError(err, berrors.CategoryInternal, "failed to encode deploy config").Build()
	}
	path := filepath.Join(workspaceDir, DeployConfigFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", berrors.WrapError(err, berrors.CategoryInternal, "failed to write deploy config").Build()
	}
	return path, nil
}

// ExportLocal replaces dest with a copy of the generator output.
func (r *Runner) ExportLocal(workspaceDir, dest string) error {
	public := filepath.Join(workspaceDir, workspace.PublicDir)
	if info, err := os.Stat(public); err != nil || !info.IsDir() {
		return berrors.NewErrorf(berrors.CategoryExternalTool, "generator produced no %s/ directory", workspace.PublicDir).
			WithContext("path", public).
			Build()
	}
	if err := os.RemoveAll(dest); err != nil {
		return berrors.WrapError(err, berrors.CategoryInternal, "failed to clear local output").Build()
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return berrors.WrapError(err, berrors.CategoryInternal, "failed to create local output root").Build()
	}
	if err := os.CopyFS(dest, os.DirFS(public)); err != nil {
		return berrors.WrapError(err, berrors.CategoryInternal, "failed to copy local output").Build()
	}
	r.logger().Info("Local build output written", logfields.Path(dest))
	return nil
}

func tail(out []byte) string {
	if len(out) > outputTailBytes {
		out = out[len(out)-outputTailBytes:]
	}
	return strings.TrimSpace(string(out))
}

// String describes the runner's tools for logs.
func (r *Runner) String() string {
	return fmt.Sprintf("generator=%s deploy=%s timeout=%s", r.GeneratorBin, r.DeployBin, r.Timeout)
}
