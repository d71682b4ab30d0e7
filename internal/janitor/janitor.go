// Package janitor prunes per-job run roots that outlived their retention.
package janitor

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/alphauslabs/verticalbuilder/internal/logfields"
)

// Guard runs remove only while jobID is neither queued nor running, keeping
// the job from being admitted until remove returns. It reports whether remove
// ran.
type Guard func(jobID string, remove func()) bool

// Janitor periodically removes run roots under Root whose last modification
// is older than Retention. Removal happens under Guard, so roots of active
// jobs are kept.
type Janitor struct {
	Root      string
	Retention time.Duration
	Guard     Guard
	Now       func() time.Time

	logger    *slog.Logger
	scheduler gocron.Scheduler
}

// New creates a Janitor. guard may be nil, in which case every stale root
// is removed.
func New(root string, retention time.Duration, guard Guard, logger *slog.Logger) (*Janitor, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if guard == nil {
		guard = func(_ string, remove func()) bool {
			remove()
			return true
		}
	}
	return &Janitor{
		Root:      root,
		Retention: retention,
		Guard:     guard,
		Now:       time.Now,
		logger:    logfields.OrDiscard(logger),
		scheduler: s,
	}, nil
}

// Start schedules Prune every interval and starts the scheduler.
func (j *Janitor) Start(interval time.Duration) error {
	_, err := j.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(j.sweep),
		gocron.WithName("prune-run-roots"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}
	j.logger.Info("Starting janitor",
		logfields.Path(j.Root),
		slog.Duration("interval", interval),
		slog.Duration("retention", j.Retention))
	j.scheduler.Start()
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep.
func (j *Janitor) Stop() error {
	j.logger.Info("Stopping janitor")
	return j.scheduler.Shutdown()
}

func (j *Janitor) sweep() {
	removed, err := j.Prune()
	if err != nil {
		j.logger.Error("Janitor sweep failed", logfields.Error(err))
		return
	}
	if removed > 0 {
		j.logger.Info("Janitor removed stale run roots", logfields.Count(removed))
	}
}

// Prune removes stale run roots once and returns how many were removed.
func (j *Janitor) Prune() (int, error) {
	entries, err := os.ReadDir(j.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := j.Now().Add(-j.Retention)
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		var rmErr error
		ran := j.Guard(e.Name(), func() {
			rmErr = os.RemoveAll(filepath.Join(j.Root, e.Name()))
		})
		if !ran {
			continue
		}
		if rmErr != nil {
			errs = append(errs, rmErr)
			continue
		}
		j.logger.Debug("Removed run root", logfields.JobID(e.Name()))
		removed++
	}
	return removed, errors.Join(errs...)
}
