// Package supervisor starts the core tasks in dependency order, restarts
// any that die unexpectedly with exponential backoff, and drives graceful
// shutdown on cancellation: cancel, wait up to shutdown_grace for in-flight
// work, sweep-cancel all open orders, then return.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"perpmm/infrastructure/logger"
	"perpmm/metrics"
)

const (
	minRestartBackoff = 1 * time.Second
	maxRestartBackoff = 60 * time.Second
)

// Task is one core component's long-running loop. Run should block until
// ctx is cancelled or the task fails; a nil error on ctx cancellation is
// treated as a clean stop, any other return (error or not) while ctx is
// still live is treated as an unexpected death and triggers a restart.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor owns the Task set for one process and its restart/shutdown
// policy.
type Supervisor struct {
	Log           *logger.Logger
	Sweep         func(ctx context.Context) error // REST cancel-all on unexpected death or shutdown
	ShutdownGrace time.Duration

	mu    sync.Mutex
	tasks []Task
}

func New(log *logger.Logger, sweep func(ctx context.Context) error, shutdownGrace time.Duration) *Supervisor {
	if shutdownGrace <= 0 {
		shutdownGrace = 5 * time.Second
	}
	return &Supervisor{Log: log, Sweep: sweep, ShutdownGrace: shutdownGrace}
}

// Register adds a task, started in registration order; dependency order is
// expressed simply by registering dependencies first (feed before quote
// loop before order manager before fill handler).
func (s *Supervisor) Register(name string, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, Task{Name: name, Run: run})
}

// Run starts every registered task under a monitored, auto-restarting
// goroutine and blocks until parentCtx is cancelled, then performs graceful
// shutdown: stop accepting new work, wait up to ShutdownGrace for tasks to
// exit on their own, sweep-cancel all open orders, and return.
func (s *Supervisor) Run(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	var wg sync.WaitGroup
	s.mu.Lock()
	tasks := append([]Task(nil), s.tasks...)
	s.mu.Unlock()

	for _, t := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			s.superviseTask(ctx, t)
		}(t)
	}

	<-parentCtx.Done()
	s.logInfo("shutdown signal received, waiting for tasks")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.ShutdownGrace):
		s.logInfo("shutdown grace period elapsed, proceeding to sweep")
	}

	if s.Sweep != nil {
		sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer sweepCancel()
		metrics.SweepsTotal.Inc()
		if err := s.Sweep(sweepCtx); err != nil {
			s.logError("shutdown sweep failed", err)
		}
	}
	return nil
}

// superviseTask runs one task, restarting it with exponential backoff
// (1s -> 60s) on every unexpected termination while ctx is still live.
func (s *Supervisor) superviseTask(ctx context.Context, t Task) {
	backoff := minRestartBackoff
	for {
		err := t.Run(ctx)
		if ctx.Err() != nil {
			return
		}

		s.logError(fmt.Sprintf("task %s terminated unexpectedly, sweeping and restarting in %s", t.Name, backoff), err)
		if s.Sweep != nil {
			sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 10*time.Second)
			metrics.SweepsTotal.Inc()
			if sweepErr := s.Sweep(sweepCtx); sweepErr != nil {
				s.logError("post-death sweep failed", sweepErr)
			}
			sweepCancel()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxRestartBackoff {
			backoff = maxRestartBackoff
		}
	}
}

func (s *Supervisor) logInfo(msg string) {
	if s.Log == nil {
		return
	}
	s.Log.Info(msg)
}

func (s *Supervisor) logError(msg string, err error) {
	if s.Log == nil {
		return
	}
	if err == nil {
		err = fmt.Errorf("%s", msg)
	}
	s.Log.LogError(err, map[string]interface{}{"context": msg})
}
