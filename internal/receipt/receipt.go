// Package receipt records the lifecycle of each build job.
//
// A receipt is one document per job holding the current projection of its
// status. Every status write also appends a transition document under the
// receipt so the full history stays queryable.
package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alphauslabs/verticalbuilder/internal/database"
	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/job"
	"github.com/alphauslabs/verticalbuilder/internal/logfields"
)

// Status is a job lifecycle status.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusBuilding Status = "building"
	StatusDeployed Status = "deployed"
	StatusFailed   Status = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s Status) Terminal() bool {
	return s == StatusDeployed || s == StatusFailed
}

// Receipt is the stored receipt document.
type Receipt struct {
	JobID       string     `json:"jobId"`
	ExportID    string     `json:"exportId"`
	VerticalKey string     `json:"verticalKey"`
	TemplateKey string     `json:"templateKey"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	DeployedAt  *time.Time `json:"deployedAt"`
	Error       *string    `json:"error"`
	DurationMS  *int64     `json:"durationMs,omitempty"`
	Result      Status     `json:"result,omitempty"`
}

// Transition is one recorded status change.
type Transition struct {
	ID    string    `json:"id"`
	From  Status    `json:"from,omitempty"`
	To    Status    `json:"to"`
	At    time.Time `json:"at"`
	Error *string   `json:"error,omitempty"`
}

// Final is the outcome written when a job finishes.
type Final struct {
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
	DeployedAt *time.Time
	Error      *string
}

// Duration returns FinishedAt minus StartedAt.
func (f Final) Duration() time.Duration {
	return f.FinishedAt.Sub(f.StartedAt)
}

// Recorder writes and reads receipts.
type Recorder struct {
	store  database.Store
	logger *slog.Logger

	// Now and NewID are the clock and transition id source.
	Now   func() time.Time
	NewID func() string
}

// NewRecorder returns a Recorder over store.
func NewRecorder(store database.Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logfields.OrDiscard(logger),
		Now:    func() time.Time { return time.Now().UTC() },
		NewID:  uuid.NewString,
	}
}

// WriteStatus merges status into the job's receipt, leaving fields it does
// not own untouched.
func (r *Recorder) WriteStatus(ctx context.Context, d *job.Description, status Status, startedAt time.Time, errMsg *string) error {
	fields := map[string]any{
		"jobId":       d.JobID,
		"exportId":    d.ExportID,
		"verticalKey": d.VerticalKey,
		"templateKey": d.TemplateKey,
		"status":      status,
		"startedAt":   startedAt,
		"error":       errMsg,
	}
	return r.write(ctx, d, status, errMsg, func(existing map[string]any) (any, error) {
		if existing == nil {
			existing = make(map[string]any, len(fields))
		}
		for k, v := range fields {
			existing[k] = v
		}
		return existing, nil
	})
}

// WriteFinal replaces the job's receipt with its final outcome.
func (r *Recorder) WriteFinal(ctx context.Context, d *job.Description, f Final) error {
	durationMS := f.Duration().Milliseconds()
	finishedAt := f.FinishedAt
	rec := Receipt{
		JobID:       d.JobID,
		ExportID:    d.ExportID,
		VerticalKey: d.VerticalKey,
		TemplateKey: d.TemplateKey,
		Status:      f.Status,
		StartedAt:   f.StartedAt,
		FinishedAt:  &finishedAt,
		DeployedAt:  f.DeployedAt,
		Error:       f.Error,
		DurationMS:  &durationMS,
		Result:      f.Status,
	}
	return r.write(ctx, d, f.Status, f.Error, func(map[string]any) (any, error) {
		return rec, nil
	})
}

// write applies update to the receipt document and appends a transition in
// one transaction. An error from update or from encoding its result aborts
// the transaction.
func (r *Recorder) write(ctx context.Context, d *job.Description, to Status, errMsg *string, update func(map[string]any) (any, error)) error {
	path := database.ReceiptPath(d.OrgID, d.JobID)
	transition := Transition{ID: r.NewID(), To: to, At: r.Now(), Error: errMsg}

	err := r.store.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		var existing map[string]any
		data, ok, err := tx.Get(ctx, path)
		if err != nil {
			return err
		}
		if ok {
			if err := json.Unmarshal(data, &existing); err != nil {
				existing = nil
			}
		}

		t := transition
		if prev, _ := existing["status"].(string); prev != "" {
			t.From = Status(prev)
		}

		next, err := update(existing)
		if err != nil {
			return err
		}
		doc, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode receipt: %w", err)
		}
		if err := tx.Set(path, doc); err != nil {
			return err
		}
		tdoc, err := json.Marshal(t)
		if err != nil {
			return err
		}
		return tx.Set(database.TransitionPath(d.OrgID, d.JobID, t.ID), tdoc)
	})
	if err != nil {
		return berrors.WrapError(err, berrors.CategoryBackingStore, "failed to write receipt").
			WithContext("path", path).
			WithContext("status", string(to)).
			Build()
	}
	r.logger.Info("Receipt written", logfields.JobID(d.JobID), logfields.Status(string(to)))
	return nil
}

// Get reads the receipt for (orgID, jobID).
func (r *Recorder) Get(ctx context.Context, orgID, jobID string) (*Receipt, error) {
	data, err := r.store.Get(ctx, database.ReceiptPath(orgID, jobID))
	if errors.Is(err, database.ErrNotFound) {
		return nil, berrors.NotFound("no receipt for org=%s job=%s", orgID, jobID)
	}
	if err != nil {
		return nil, berrors.BackingStore(err, "failed to read receipt")
	}
	var rec Receipt
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, berrors.BackingStore(err, "failed to decode receipt")
	}
	return &rec, nil
}

// Transitions returns the recorded transitions for (orgID, jobID), oldest first.
func (r *Recorder) Transitions(ctx context.Context, orgID, jobID string) ([]Transition, error) {
	docs, err := r.store.List(ctx, database.Path(database.ReceiptPath(orgID, jobID), database.TransitionsSubpath)+"/")
	if err != nil {
		return nil, berrors.BackingStore(err, "failed to list receipt transitions")
	}
	out := make([]Transition, 0, len(docs))
	for _, doc := range docs {
		var t Transition
		if err := json.Unmarshal(doc.Data, &t); err != nil {
			r.logger.Warn("Skipping undecodable transition", logfields.Path(doc.Path), logfields.Error(err))
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}
