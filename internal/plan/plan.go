// Package plan resolves an accepted job into everything the pipeline needs
// to execute it: where the export lives, where it is staged, and where the
// result goes.
//
//	job.Description
//	    ↓
//	plan.Resolve()        ← build target check, no I/O
//	    ↓
//	Plan.Prepare()        ← clears and recreates the per-job run root
//	    ↓
//	snapshot → manifest → workspace → runner
//
// Resolve is stateless so it is safe to call from any goroutine and runs
// before any storage or network access.
package plan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alphauslabs/verticalbuilder/internal/config"
	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/job"
	"github.com/alphauslabs/verticalbuilder/internal/snapshot"
)

// Destination is where a build's output ends up.
type Destination int

const (
	DestinationUnspecified Destination = iota
	// DestinationHosting publishes through the hosting deploy tool.
	DestinationHosting
	// DestinationLocal copies the output into the local export root.
	DestinationLocal
)

// String returns a human-readable label for the destination.
func (d Destination) String() string {
	switch d {
	case DestinationHosting:
		return "HOSTING"
	case DestinationLocal:
		return "LOCAL"
	default:
		return "UNSPECIFIED"
	}
}

// Run directory names under the per-job run root.
const (
	SnapshotDirName  = "snapshot"
	WorkspaceDirName = "workspace"
)

// Plan is the resolved execution plan for one job attempt.
type Plan struct {
	Destination    Destination
	Site           string
	HostingProject string

	// Snapshot addresses the export to download.
	Snapshot snapshot.Location

	// RunRoot is keyed by job id; SnapshotDir and WorkspaceDir live under it.
	RunRoot      string
	SnapshotDir  string
	WorkspaceDir string

	// ExportDir receives the generated site for local destinations.
	ExportDir string

	// Summary is a one-line description for logs.
	Summary string
}

// Resolve checks the build target against cfg and computes the plan.
func Resolve(d *job.Description, cfg *config.Config) (*Plan, error) {
	if d == nil {
		return nil, berrors.Invalid("job must not be nil")
	}
	bt := d.BuildTarget
	if bt.HostingProject == "" {
		return nil, berrors.Invalid("buildTarget must include hostingProject")
	}
	if bt.Site == "" {
		return nil, berrors.Invalid("buildTarget must include site")
	}
	if bt.HostingProject != cfg.HostingProject && !bt.IsLocal() {
		return nil, berrors.NewErrorf(berrors.CategoryMismatch,
			"buildTarget.hostingProject must match runtime hosting project: buildTarget=%s runtime=%s",
			bt.HostingProject, cfg.HostingProject).
			WithContext("field", "buildTarget.hostingProject").
			Build()
	}

	runRoot := filepath.Join(cfg.WorkspaceRoot, d.JobID)
	p := &Plan{
		Destination:    DestinationHosting,
		Site:           bt.Site,
		HostingProject: bt.HostingProject,
		Snapshot:       snapshot.ExportLocation(cfg.ObjectStore.Scheme(), cfg.ExportBucket, d.OrgID, d.VerticalKey, d.ExportID),
		RunRoot:        runRoot,
		SnapshotDir:    filepath.Join(runRoot, SnapshotDirName),
		WorkspaceDir:   filepath.Join(runRoot, WorkspaceDirName),
	}
	if bt.IsLocal() {
		p.Destination = DestinationLocal
		p.ExportDir = filepath.Join(cfg.LocalOutputRoot, d.JobID)
	}
	p.Summary = fmt.Sprintf("job=%s destination=%s site=%s snapshot=%s", d.JobID, p.Destination, p.Site, p.Snapshot)
	return p, nil
}

// Prepare removes anything left by a previous attempt with the same job id
// and recreates the snapshot and workspace directories.
func (p *Plan) Prepare() error {
	if err := os.RemoveAll(p.RunRoot); err != nil {
		return berrors.WrapError(err, berrors.CategoryInternal, "failed to clear run root").
			WithContext("path", p.RunRoot).
			Build()
	}
	for _, dir := range []string{p.SnapshotDir, p.WorkspaceDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return berrors.WrapError(err, berrors.CategoryInternal, "failed to create run directory").
				WithContext("path", dir).
				Build()
		}
	}
	return nil
}
