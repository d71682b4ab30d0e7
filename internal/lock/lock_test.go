package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphauslabs/verticalbuilder/internal/database"
	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/job"
	"github.com/alphauslabs/verticalbuilder/internal/metrics"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type countingRecorder struct {
	metrics.NoopRecorder
	mu      sync.Mutex
	results map[string]int
}

func (r *countingRecorder) IncLockResult(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]int{}
	}
	r.results[result]++
}

type failingStore struct{ database.Store }

func (failingStore) RunTransaction(context.Context, func(context.Context, database.Tx) error) error {
	return errors.New("store unavailable")
}

func newManager(store database.Store, rec metrics.Recorder) *Manager {
	m := NewManager(store, rec, nil)
	m.Now = func() time.Time { return fixedNow }
	return m
}

func jobFor(id string) *job.Description {
	return &job.Description{JobID: id, Env: "prod", OrgID: "acme", VerticalKey: "gymnastics", TemplateKey: "gymnastics", ExportID: "e1"}
}

func TestAcquire_ConcurrentExactlyOneWins(t *testing.T) {
	store := database.NewMemoryStore()
	rec := &countingRecorder{}
	m := newManager(store, rec)

	const attempts = 2
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = m.Acquire(context.Background(), jobFor([]string{"j1", "j2"}[i]), 15*time.Minute)
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case berrors.IsConflict(err):
			conflicts++
			assert.Equal(t, "Concurrent publish blocked by active lock for org=acme vertical=gymnastics", err.Error())
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, rec.results[metrics.LockAcquired])
	assert.Equal(t, 1, rec.results[metrics.LockConflict])
}

func TestAcquire_WritesRecord(t *testing.T) {
	store := database.NewMemoryStore()
	m := newManager(store, nil)
	require.NoError(t, m.Acquire(context.Background(), jobFor("j1"), 10*time.Second))

	rec, err := m.Get(context.Background(), "acme", "gymnastics")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "j1", rec.JobID)
	assert.Equal(t, "e1", rec.ExportID)
	assert.Equal(t, "gymnastics", rec.TemplateKey)
	assert.Equal(t, "prod", rec.Env)
	assert.True(t, rec.AcquiredAt.Equal(fixedNow))
	require.NotNil(t, rec.ExpiresAt)
	assert.True(t, rec.ExpiresAt.Equal(fixedNow.Add(10*time.Second)))
}

func TestAcquire_ExpiredRecordDoesNotBlock(t *testing.T) {
	store := database.NewMemoryStore()
	m := newManager(store, nil)
	require.NoError(t, m.Acquire(context.Background(), jobFor("crashed"), time.Minute))

	m.Now = func() time.Time { return fixedNow.Add(2 * time.Minute) }
	require.NoError(t, m.Acquire(context.Background(), jobFor("j2"), time.Minute))

	rec, err := m.Get(context.Background(), "acme", "gymnastics")
	require.NoError(t, err)
	assert.Equal(t, "j2", rec.JobID)
}

func TestAcquire_ExpiryEqualToNowHasLapsed(t *testing.T) {
	store := database.NewMemoryStore()
	m := newManager(store, nil)
	require.NoError(t, m.Acquire(context.Background(), jobFor("j1"), time.Minute))

	m.Now = func() time.Time { return fixedNow.Add(time.Minute) }
	assert.NoError(t, m.Acquire(context.Background(), jobFor("j2"), time.Minute))
}

func TestAcquire_RecordWithoutExpiryBlocksForever(t *testing.T) {
	store := database.NewMemoryStore()
	require.NoError(t, database.Set(context.Background(), store,
		database.LockPath("acme", "gymnastics"), []byte(`{"jobId":"legacy","expiresAt":null}`)))

	m := newManager(store, nil)
	m.Now = func() time.Time { return fixedNow.Add(100 * 365 * 24 * time.Hour) }
	err := m.Acquire(context.Background(), jobFor("j1"), time.Minute)
	assert.True(t, berrors.IsConflict(err))
}

func TestReleaseThenAcquire(t *testing.T) {
	store := database.NewMemoryStore()
	m := newManager(store, nil)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, jobFor("j1"), time.Hour))
	require.True(t, berrors.IsConflict(m.Acquire(ctx, jobFor("j2"), time.Hour)))

	require.NoError(t, m.Release(ctx, "acme", "gymnastics"))
	rec, err := m.Get(ctx, "acme", "gymnastics")
	require.NoError(t, err)
	assert.Nil(t, rec)

	assert.NoError(t, m.Acquire(ctx, jobFor("j2"), time.Hour))
}

func TestRelease_MissingRecordIsNotAnError(t *testing.T) {
	m := newManager(database.NewMemoryStore(), nil)
	assert.NoError(t, m.Release(context.Background(), "acme", "gymnastics"))
}

func TestAcquire_BackingStoreFailure(t *testing.T) {
	rec := &countingRecorder{}
	m := newManager(failingStore{database.NewMemoryStore()}, rec)
	err := m.Acquire(context.Background(), jobFor("j1"), time.Minute)
	require.Error(t, err)
	assert.True(t, berrors.IsBackingStore(err))
	assert.False(t, berrors.IsConflict(err))
	assert.Equal(t, "failed to acquire build lock for org=acme vertical=gymnastics: store unavailable", err.Error())
	assert.Equal(t, 1, rec.results[metrics.LockError])
}
