package metrics

import "time"

// Lock acquisition results.
const (
	LockAcquired = "acquired"
	LockConflict = "conflict"
	LockError    = "error"
)

// Recorder defines observability hooks for the build pipeline. Implementations
// may forward to Prometheus; NoopRecorder is the default when metrics are not configured.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(status string)
	IncLockResult(result string)
	IncQueueRejected()
	SetQueueDepth(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) IncLockResult(string)                       {}
func (NoopRecorder) IncQueueRejected()                          {}
func (NoopRecorder) SetQueueDepth(int)                          {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
