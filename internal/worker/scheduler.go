// Package worker runs periodic maintenance tasks in the background.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrShutdownTimeout is returned when tasks don't stop within timeout.
var ErrShutdownTimeout = errors.New("scheduler shutdown timed out")

// Task is a unit of periodic work.
type Task struct {
	Name     string
	Interval time.Duration
	// RunAtStart runs the task once before the first interval elapses.
	RunAtStart bool
	Run        func(ctx context.Context) error
}

// Scheduler runs each task on its own ticker. Runs of one task never
// overlap; a failed run is logged and retried at the next tick.
type Scheduler struct {
	tasks  []Task
	logger *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. Tasks without a Run func or with a
// non-positive interval are ignored.
func NewScheduler(logger *slog.Logger, tasks ...Task) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		logger: logger.With("component", "scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, t := range tasks {
		if t.Run == nil || t.Interval <= 0 {
			s.logger.Warn("ignoring invalid task", "task", t.Name)
			continue
		}
		s.tasks = append(s.tasks, t)
	}
	return s
}

// Start launches one goroutine per task.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", "tasks", len(s.tasks))
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(t)
	}
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (s *Scheduler) loop(t Task) {
	defer s.wg.Done()

	logger := s.logger.With("task", t.Name)
	if t.RunAtStart {
		s.run(logger, t)
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.run(logger, t)
		}
	}
}

func (s *Scheduler) run(logger *slog.Logger, t Task) {
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := t.Run(s.ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("task failed", "error", err)
		}
		return
	}
	logger.Debug("task finished", "duration", time.Since(start))
}
