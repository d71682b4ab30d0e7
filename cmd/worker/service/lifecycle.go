package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alphauslabs/verticalbuilder/internal/logfields"
)

type stopper struct {
	name string
	stop func(ctx context.Context) error
}

// Lifecycle stops the worker's background components (intake, queue,
// janitor, stores) in reverse registration order. Stop runs at most once.
type Lifecycle struct {
	mu       sync.Mutex
	stoppers []stopper
	stopOnce sync.Once
	err      error
	logger   *slog.Logger
}

// NewLifecycle returns an empty Lifecycle.
func NewLifecycle(logger *slog.Logger) *Lifecycle {
	return &Lifecycle{logger: logfields.OrDiscard(logger)}
}

// Add registers stop under name.
func (l *Lifecycle) Add(name string, stop func(ctx context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stoppers = append(l.stoppers, stopper{name: name, stop: stop})
}

// AddCloser registers a component that stops with Close.
func (l *Lifecycle) AddCloser(name string, closer interface{ Close() error }) {
	l.Add(name, func(context.Context) error { return closer.Close() })
}

// Stop runs every registered stop function, newest first, and joins their
// errors. A failing component does not prevent the rest from stopping.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		stoppers := append([]stopper(nil), l.stoppers...)
		l.mu.Unlock()

		var errs []error
		for i := len(stoppers) - 1; i >= 0; i-- {
			s := stoppers[i]
			start := time.Now()
			if err := s.stop(ctx); err != nil {
				l.logger.Error("Failed to stop component", slog.String("component", s.name), logfields.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
				continue
			}
			l.logger.Info("Component stopped", slog.String("component", s.name),
				logfields.DurationMS(time.Since(start).Milliseconds()))
		}
		l.err = errors.Join(errs...)
	})
	return l.err
}
