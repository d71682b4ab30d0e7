// Package lock serializes builds per (organization, vertical) with a
// TTL-bounded record in the document store.
//
// Locks are not renewed. A holder that crashes leaves a record that blocks
// further builds until its expiry passes, after which the next acquire
// replaces it. The TTL therefore has to exceed the slowest expected build.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alphauslabs/verticalbuilder/internal/database"
	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/job"
	"github.com/alphauslabs/verticalbuilder/internal/logfields"
	"github.com/alphauslabs/verticalbuilder/internal/metrics"
)

// Record is the stored lock document.
type Record struct {
	JobID       string     `json:"jobId"`
	ExportID    string     `json:"exportId"`
	TemplateKey string     `json:"templateKey"`
	Env         string     `json:"env"`
	AcquiredAt  time.Time  `json:"acquiredAt"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// Live reports whether the record still blocks other builds at now. A record
// without an expiry never expires.
func (r *Record) Live(now time.Time) bool {
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

var errHeld = errors.New("lock held")

// Manager acquires and releases build locks.
type Manager struct {
	store    database.Store
	recorder metrics.Recorder
	logger   *slog.Logger

	// Now is the clock used for acquisition and expiry checks.
	Now func() time.Time
}

// NewManager returns a Manager over store.
func NewManager(store database.Store, recorder metrics.Recorder, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		recorder: metrics.OrNoop(recorder),
		logger:   logfields.OrDiscard(logger),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Acquire takes the lock for d's organization and vertical in one
// transaction. It fails with a conflict error while a live record exists and
// with a backing store error when the store cannot be reached.
func (m *Manager) Acquire(ctx context.Context, d *job.Description, ttl time.Duration) error {
	path := database.LockPath(d.OrgID, d.VerticalKey)
	now := m.Now()
	expires := now.Add(ttl)

	var holder *Record
	err := m.store.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		holder = nil
		data, ok, err := tx.Get(ctx, path)
		if err != nil {
			return err
		}
		if ok {
			var existing Record
			if err := json.Unmarshal(data, &existing); err != nil {
				return err
			}
			if existing.Live(now) {
				holder = &existing
				return errHeld
			}
		}

		rec, err := json.Marshal(Record{
			JobID:       d.JobID,
			ExportID:    d.ExportID,
			TemplateKey: d.TemplateKey,
			Env:         d.Env,
			AcquiredAt:  now,
			ExpiresAt:   &expires,
		})
		if err != nil {
			return err
		}
		return tx.Set(path, rec)
	})

	switch {
	case holder != nil:
		m.recorder.IncLockResult(metrics.LockConflict)
		return berrors.NewErrorf(berrors.CategoryConflict,
			"Concurrent publish blocked by active lock for org=%s vertical=%s", d.OrgID, d.VerticalKey).
			WithContext("holder_job_id", holder.JobID).
			Build()
	case err != nil:
		m.recorder.IncLockResult(metrics.LockError)
		return berrors.WrapError(err, berrors.CategoryBackingStore,
			fmt.Sprintf("failed to acquire build lock for org=%s vertical=%s", d.OrgID, d.VerticalKey)).
			WithContext("path", path).
			Build()
	}

	m.recorder.IncLockResult(metrics.LockAcquired)
	m.logger.Info("Build lock acquired",
		logfields.OrgID(d.OrgID),
		logfields.VerticalKey(d.VerticalKey),
		logfields.JobID(d.JobID),
		slog.Time("expires_at", expires))
	return nil
}

// Release deletes the lock record unconditionally. Callers release only
// locks they acquired in the same run.
func (m *Manager) Release(ctx context.Context, orgID, verticalKey string) error {
	if err := database.Delete(ctx, m.store, database.LockPath(orgID, verticalKey)); err != nil {
		return berrors.BackingStore(err, "failed to release build lock")
	}
	m.logger.Info("Build lock released", logfields.OrgID(orgID), logfields.VerticalKey(verticalKey))
	return nil
}

// Get returns the current lock record, or nil when none exists.
func (m *Manager) Get(ctx context.Context, orgID, verticalKey string) (*Record, error) {
	data, err := m.store.Get(ctx, database.LockPath(orgID, verticalKey))
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, berrors.BackingStore(err, "failed to read build lock")
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, berrors.BackingStore(err, "failed to decode build lock")
	}
	return &rec, nil
}
