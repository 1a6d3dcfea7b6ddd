package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler owns the delayed and periodic tasks of one lifecycle
// (a dashboard session, a local channel).
// Each task runs in its own goroutine. A panic inside a task is recovered
// and logged, it never takes the owner down.
// Once Stop has returned, no task is running and none will start.
type Scheduler struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *slog.Logger
	stopped bool
}

func NewScheduler(ctx context.Context, log *slog.Logger) *Scheduler {
	schedulerCtx, cancel := context.WithCancel(ctx)
	return &Scheduler{ctx: schedulerCtx, cancel: cancel, log: log}
}

// After runs fn once, after delay.
// It returns false when the scheduler is already stopped.
func (s *Scheduler) After(name string, delay time.Duration, fn func(ctx context.Context)) bool {
	return s.spawn(func(ctx context.Context) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		s.invoke(ctx, name, fn)
	})
}

// Every runs fn each interval until the scheduler stops.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context)) bool {
	return s.spawn(func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.invoke(ctx, name, fn)
			}
		}
	})
}

// Stop cancels pending tasks and waits for the in-flight ones.
// Calling Stop twice is harmless.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// Context is cancelled when the scheduler stops.
func (s *Scheduler) Context() context.Context {
	return s.ctx
}

func (s *Scheduler) spawn(task func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		task(s.ctx)
	}()
	return true
}

func (s *Scheduler) invoke(ctx context.Context, name string, fn func(ctx context.Context)) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Scheduled task panicked", "task", name, "panic", r)
		}
	}()
	fn(ctx)
}
