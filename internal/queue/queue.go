// Package queue feeds accepted jobs to a fixed pool of workers through a
// bounded queue.
//
// Jobs are partitioned across workers by consistent hashing of their
// (organization, vertical) key, so jobs for the same vertical queue behind
// each other on one worker instead of racing for the build lock. Exclusion
// itself is still the lock's job; the partitioning only avoids needless
// conflicts within one process.
package queue

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"

	"github.com/buraksezer/consistent"

	"github.com/alphauslabs/verticalbuilder/internal/job"
	"github.com/alphauslabs/verticalbuilder/internal/logfields"
	"github.com/alphauslabs/verticalbuilder/internal/metrics"
)

var (
	// ErrQueueFull is returned by Submit when Depth jobs are already waiting.
	ErrQueueFull = errors.New("build queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("build queue is stopped")
	// ErrDuplicate is returned when a job with the same id is queued or running.
	ErrDuplicate = errors.New("job is already queued or running")
)

// Handler executes one job.
type Handler func(ctx context.Context, d *job.Description)

type worker string

func (w worker) String() string { return string(w) }

type fnvHasher struct{}

func (fnvHasher) Sum64(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// Dispatcher is a bounded work queue in front of a worker pool.
type Dispatcher struct {
	depth    int
	handler  Handler
	ring     *consistent.Consistent
	inboxes  map[string]chan *job.Description
	recorder metrics.Recorder
	logger   *slog.Logger

	mu      sync.Mutex
	pending int
	active  map[string]struct{}
	stopped bool

	wg sync.WaitGroup
}

// New starts workers goroutines that run handler. At most depth jobs wait
// across all workers; running jobs do not count against depth.
func New(depth, workers int, handler Handler, recorder metrics.Recorder, logger *slog.Logger) *Dispatcher {
	if depth < 1 {
		depth = 1
	}
	if workers < 1 {
		workers = 1
	}

	members := make([]consistent.Member, workers)
	inboxes := make(map[string]chan *job.Description, workers)
	for i := range workers {
		w := worker("worker-" + strconv.Itoa(i))
		members[i] = w
		inboxes[w.String()] = make(chan *job.Description, depth)
	}
	ring := consistent.New(members, consistent.Config{
		PartitionCount:    271,
		ReplicationFactor: 20,
		Load:              1.25,
		Hasher:            fnvHasher{},
	})

	d := &Dispatcher{
		depth:    depth,
		handler:  handler,
		ring:     ring,
		inboxes:  inboxes,
		recorder: metrics.OrNoop(recorder),
		logger:   logfields.OrDiscard(logger),
		active:   make(map[string]struct{}),
	}
	for name, inbox := range inboxes {
		d.wg.Add(1)
		go d.work(name, inbox)
	}
	return d
}

// Owner returns the worker that runs jobs for key.
func (d *Dispatcher) Owner(key string) string {
	return d.ring.LocateKey([]byte(key)).String()
}

// Submit enqueues j without blocking.
func (d *Dispatcher) Submit(j *job.Description) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.stopped:
		return ErrStopped
	case d.pending >= d.depth:
		d.recorder.IncQueueRejected()
		return ErrQueueFull
	}
	if _, ok := d.active[j.JobID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, j.JobID)
	}

	owner := d.Owner(j.LockKey())
	d.active[j.JobID] = struct{}{}
	d.pending++
	d.recorder.SetQueueDepth(d.pending)
	// Never blocks: every inbox holds depth and pending <= depth.
	d.inboxes[owner] <- j

	d.logger.Info("Job queued", logfields.JobID(j.JobID), slog.String("worker", owner), slog.Int("pending", d.pending))
	return nil
}

// Active reports whether jobID is queued or running.
func (d *Dispatcher) Active(jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.active[jobID]
	return ok
}

// IfIdle runs fn unless jobID is queued or running and reports whether fn
// ran. Submissions are held off until fn returns, so no job with that id can
// start while fn works on its files.
func (d *Dispatcher) IfIdle(jobID string, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.active[jobID]; ok {
		return false
	}
	fn()
	return true
}

// Pending returns the number of waiting jobs.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Dispatcher) work(name string, inbox <-chan *job.Description) {
	defer d.wg.Done()
	for j := range inbox {
		d.mu.Lock()
		d.pending--
		d.recorder.SetQueueDepth(d.pending)
		d.mu.Unlock()

		d.logger.Info("Job started", logfields.JobID(j.JobID), slog.String("worker", name))
		d.handler(context.Background(), j)

		d.mu.Lock()
		delete(d.active, j.JobID)
		d.mu.Unlock()
	}
}

// Stop rejects further submissions and waits for queued and running jobs to
// finish, or for ctx to be done.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for _, inbox := range d.inboxes {
			close(inbox)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
