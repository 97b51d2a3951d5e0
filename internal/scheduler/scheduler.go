// Package scheduler runs submitted tasks on a fixed pool of workers.
//
// Submit never blocks: tasks wait in an unbounded FIFO queue until a worker
// is free. Tasks for unrelated callers run in parallel with no ordering
// between them. Shutdown stops intake and lets the workers drain the queue.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work.
type Task func()

// Scheduler is a fixed-size worker pool.
type Scheduler struct {
	queue   *taskQueue
	group   *errgroup.Group
	workers int
	logger  *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// New starts workers goroutines. A non-positive count uses GOMAXPROCS.
func New(workers int, opts ...Option) *Scheduler {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	s := &Scheduler{
		queue:   newTaskQueue(),
		group:   new(errgroup.Group),
		workers: workers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for i := range workers {
		s.group.Go(func() error {
			s.work(i)
			return nil
		})
	}
	s.logger.Debug("scheduler started", "workers", workers)
	return s
}

// Submit queues t. It returns false once Shutdown has begun.
func (s *Scheduler) Submit(t Task) bool {
	if t == nil {
		return false
	}
	return s.queue.Enqueue(t)
}

// Workers returns the pool size.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Pending returns the number of queued tasks not yet picked up.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// Shutdown stops intake and waits for queued tasks to finish. If ctx ends
// first, Shutdown returns its error and the workers keep draining in the
// background.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.queue.Close()

	done := make(chan error, 1)
	go func() {
		done <- s.group.Wait()
	}()

	select {
	case err := <-done:
		s.logger.Debug("scheduler stopped")
		return err
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

func (s *Scheduler) work(id int) {
	for {
		if t, ok := s.queue.TryDequeue(); ok {
			s.run(id, t)
			continue
		}
		if s.queue.Drained() {
			return
		}
		<-s.queue.Wait()
	}
}

func (s *Scheduler) run(id int, t Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "worker", id, "panic", r)
		}
	}()
	t()
}
