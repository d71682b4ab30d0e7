// Package service is the worker's intake transport. Every intake path (Pub/Sub
// push, Connect RPC, NATS) funnels through BuildService.Accept, so a job is
// validated the same way no matter how it arrives.
package service

import (
	"context"
	"errors"
	"log/slog"

	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/job"
	"github.com/alphauslabs/verticalbuilder/internal/logfields"
	"github.com/alphauslabs/verticalbuilder/internal/queue"
	"github.com/alphauslabs/verticalbuilder/internal/receipt"
)

// Submitter enqueues accepted jobs.
type Submitter interface {
	Submit(d *job.Description) error
}

// ReceiptReader reads build receipts.
type ReceiptReader interface {
	Get(ctx context.Context, orgID, jobID string) (*receipt.Receipt, error)
	Transitions(ctx context.Context, orgID, jobID string) ([]receipt.Transition, error)
}

// ErrRejected is returned by Accept when a valid job cannot be queued.
var ErrRejected = errors.New("build rejected")

// BuildService accepts build jobs and answers receipt queries.
type BuildService struct {
	intake   job.Intake
	queue    Submitter
	receipts ReceiptReader
	logger   *slog.Logger
}

// NewBuildService creates a new BuildService with the given dependencies.
func NewBuildService(intake job.Intake, queue Submitter, receipts ReceiptReader, logger *slog.Logger) *BuildService {
	return &BuildService{
		intake:   intake,
		queue:    queue,
		receipts: receipts,
		logger:   logfields.OrDiscard(logger),
	}
}

// Accept decodes and validates payload and hands the job to the queue.
// Validation failures are InvalidInput errors; a full or stopping queue
// yields an error wrapping ErrRejected. Resubmitting a job that is still
// queued or running is accepted without queueing it twice, so redelivered
// push messages are acknowledged.
func (s *BuildService) Accept(payload []byte) (*job.Description, error) {
	d, err := job.Decode(payload)
	if err != nil {
		return nil, err
	}
	if err := s.intake.Validate(d); err != nil {
		s.logger.Warn("Job rejected at intake", logfields.JobID(d.JobID), logfields.Error(err))
		return nil, err
	}

	switch err := s.queue.Submit(d); {
	case err == nil:
		s.logger.Info("Job accepted", logfields.JobID(d.JobID), logfields.OrgID(d.OrgID), logfields.VerticalKey(d.VerticalKey))
		return d, nil
	case errors.Is(err, queue.ErrDuplicate):
		s.logger.Info("Job already queued", logfields.JobID(d.JobID))
		return d, nil
	default:
		s.logger.Warn("Job not queued", logfields.JobID(d.JobID), logfields.Error(err))
		return nil, errors.Join(ErrRejected, err)
	}
}

// Receipt returns the receipt for (orgID, jobID) and its transition trail.
func (s *BuildService) Receipt(ctx context.Context, orgID, jobID string) (*receipt.Receipt, []receipt.Transition, error) {
	if orgID == "" || jobID == "" {
		return nil, nil, berrors.Invalid("orgId and jobId are required")
	}
	rec, err := s.receipts.Get(ctx, orgID, jobID)
	if err != nil {
		return nil, nil, err
	}
	transitions, err := s.receipts.Transitions(ctx, orgID, jobID)
	if err != nil {
		return nil, nil, err
	}
	return rec, transitions, nil
}
