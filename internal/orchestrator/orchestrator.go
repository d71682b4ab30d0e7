// Package orchestrator drives one build job through its lifecycle:
//
//	queued → building → deployed | failed
//
// Every error raised while building is caught once, here, and recorded in
// the job's final receipt. Nothing is returned to the caller; the receipt is
// the only observable outcome.
package orchestrator

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/alphauslabs/verticalbuilder/internal/config"
	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/job"
	"github.com/alphauslabs/verticalbuilder/internal/logfields"
	"github.com/alphauslabs/verticalbuilder/internal/manifest"
	"github.com/alphauslabs/verticalbuilder/internal/metrics"
	"github.com/alphauslabs/verticalbuilder/internal/plan"
	"github.com/alphauslabs/verticalbuilder/internal/receipt"
	"github.com/alphauslabs/verticalbuilder/internal/snapshot"
)

// Locker is the build lock the orchestrator serializes on.
type Locker interface {
	Acquire(ctx context.Context, d *job.Description, ttl time.Duration) error
	Release(ctx context.Context, orgID, verticalKey string) error
}

// Receipts persists lifecycle records.
type Receipts interface {
	WriteStatus(ctx context.Context, d *job.Description, status receipt.Status, startedAt time.Time, errMsg *string) error
	WriteFinal(ctx context.Context, d *job.Description, f receipt.Final) error
}

// SnapshotSource stages an export on local disk.
type SnapshotSource interface {
	Download(ctx context.Context, loc snapshot.Location, dest string) error
}

// Assembler composes a workspace from a staged snapshot.
type Assembler interface {
	Assemble(d *job.Description, snapshotRoot, workspaceDir string) error
}

// Builder runs the generator and delivers its output.
type Builder interface {
	Generate(ctx context.Context, workspaceDir string) error
	Publish(ctx context.Context, workspaceDir, site, hostingProject string) error
	ExportLocal(workspaceDir, dest string) error
}

// Pipeline stage names used in logs and metrics.
const (
	StagePlan     = "plan"
	StagePrepare  = "prepare"
	StageDownload = "download"
	StageLayout   = "layout"
	StageManifest = "manifest"
	StageAssemble = "assemble"
	StageGenerate = "generate"
	StagePublish  = "publish"
	StageExport   = "export"
)

// Deps are the orchestrator's collaborators.
type Deps struct {
	Locks     Locker
	Receipts  Receipts
	Snapshots SnapshotSource
	Assembler Assembler
	Builder   Builder
	Recorder  metrics.Recorder
	Logger    *slog.Logger
}

// Orchestrator runs build jobs.
type Orchestrator struct {
	cfg  *config.Config
	deps Deps

	// Now is the clock for receipt timestamps.
	Now func() time.Time
}

// New returns an Orchestrator. cfg must not be modified afterwards.
func New(cfg *config.Config, deps Deps) *Orchestrator {
	deps.Recorder = metrics.OrNoop(deps.Recorder)
	deps.Logger = logfields.OrDiscard(deps.Logger)
	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		Now:  func() time.Time { return time.Now().UTC() },
	}
}

type step struct {
	name string
	fn   func() error
}

type outcome struct {
	status     receipt.Status
	deployedAt *time.Time
	err        error
}

// Run executes d to completion. It ignores cancellation of ctx: once a job
// has started it finishes and always attempts to release its lock.
func (o *Orchestrator) Run(ctx context.Context, d *job.Description) {
	ctx = context.WithoutCancel(ctx)
	logger := o.deps.Logger.With(
		logfields.JobID(d.JobID),
		logfields.OrgID(d.OrgID),
		logfields.VerticalKey(d.VerticalKey),
		logfields.TemplateKey(d.TemplateKey),
		logfields.ExportID(d.ExportID),
	)

	startedAt := o.Now()
	out := outcome{status: receipt.StatusFailed}
	acquired := false

	// Deferred in reverse: recover, then release, then the final receipt.
	defer o.finish(ctx, d, logger, startedAt, &out)
	defer func() {
		if acquired {
			o.release(ctx, d, logger)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			out = outcome{status: receipt.StatusFailed, err: panicError(r)}
			logger.Error("Build panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
	}()

	o.writeStatus(ctx, d, logger, receipt.StatusQueued, startedAt)

	if err := o.deps.Locks.Acquire(ctx, d, o.cfg.LockTTL); err != nil {
		out.err = err
		return
	}
	acquired = true

	o.writeStatus(ctx, d, logger, receipt.StatusBuilding, startedAt)

	deployedAt, err := o.build(ctx, d, logger)
	if err != nil {
		out.err = err
		return
	}
	out = outcome{status: receipt.StatusDeployed, deployedAt: &deployedAt}
}

// build runs the sub-pipeline. The returned time is when the artifact was
// finalized, which for local destinations is the end of the export.
func (o *Orchestrator) build(ctx context.Context, d *job.Description, logger *slog.Logger) (time.Time, error) {
	var p *plan.Plan
	err := o.stage(logger, StagePlan, func() (err error) {
		p, err = plan.Resolve(d, o.cfg)
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	logger.Info("Build planned", slog.String("plan", p.Summary), logfields.Path(p.RunRoot))

	steps := []step{
		{StagePrepare, p.Prepare},
		{StageDownload, func() error { return o.deps.Snapshots.Download(ctx, p.Snapshot, p.SnapshotDir) }},
		{StageLayout, func() error { return snapshot.ValidateLayout(p.SnapshotDir, logger) }},
		{StageManifest, func() error {
			m, err := manifest.Load(p.SnapshotDir)
			if err != nil {
				return err
			}
			return manifest.Validate(m, d)
		}},
		{StageAssemble, func() error { return o.deps.Assembler.Assemble(d, p.SnapshotDir, p.WorkspaceDir) }},
		{StageGenerate, func() error { return o.deps.Builder.Generate(ctx, p.WorkspaceDir) }},
	}
	if p.Destination == plan.DestinationLocal {
		steps = append(steps, step{StageExport, func() error { return o.deps.Builder.ExportLocal(p.WorkspaceDir, p.ExportDir) }})
	} else {
		steps = append(steps, step{StagePublish, func() error { return o.deps.Builder.Publish(ctx, p.WorkspaceDir, p.Site, p.HostingProject) }})
	}

	for _, s := range steps {
		if err := o.stage(logger, s.name, s.fn); err != nil {
			return time.Time{}, err
		}
	}
	return o.Now(), nil
}

func (o *Orchestrator) stage(logger *slog.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	o.deps.Recorder.ObserveStageDuration(name, elapsed)
	if err != nil {
		logger.Warn("Stage failed", logfields.Stage(name), logfields.DurationMS(elapsed.Milliseconds()), logfields.Error(err))
		return err
	}
	logger.Debug("Stage complete", logfields.Stage(name), logfields.DurationMS(elapsed.Milliseconds()))
	return nil
}

// writeStatus records an intermediate status. Failures are logged and
// absorbed so they never mask the build's real outcome.
func (o *Orchestrator) writeStatus(ctx context.Context, d *job.Description, logger *slog.Logger, status receipt.Status, startedAt time.Time) {
	if err := o.deps.Receipts.WriteStatus(ctx, d, status, startedAt, nil); err != nil {
		logger.Warn("Receipt status write failed", logfields.Status(string(status)), logfields.Error(err))
	}
}

func (o *Orchestrator) release(ctx context.Context, d *job.Description, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Lock release panicked", slog.Any("panic", r))
		}
	}()
	if err := o.deps.Locks.Release(ctx, d.OrgID, d.VerticalKey); err != nil {
		logger.Error("Lock release failed", logfields.Error(err))
	}
}

func (o *Orchestrator) finish(ctx context.Context, d *job.Description, logger *slog.Logger, startedAt time.Time, out *outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Final receipt write panicked", slog.Any("panic", r))
		}
	}()

	finishedAt := o.Now()
	final := receipt.Final{
		Status:     out.status,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		DeployedAt: out.deployedAt,
	}
	if out.err != nil {
		msg := berrors.Message(out.err)
		final.Error = &msg
		logger.Error("Build failed",
			logfields.Error(out.err),
			slog.String("category", string(berrors.CategoryOf(out.err))))
	}

	o.deps.Recorder.ObserveBuildDuration(final.Duration())
	o.deps.Recorder.IncBuildOutcome(string(final.Status))

	if err := o.deps.Receipts.WriteFinal(ctx, d, final); err != nil {
		logger.Error("Final receipt write failed", logfields.Error(err))
	}
	logger.Info("Build result",
		logfields.DurationMS(final.Duration().Milliseconds()),
		logfields.Status(string(final.Status)))
}

func panicError(r any) error {
	return berrors.NewErrorf(berrors.CategoryInternal, "internal error: %v", r).Build()
}
