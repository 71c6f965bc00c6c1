package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DemoResetter is what the scheduler runs; *DemoService implements it.
type DemoResetter interface {
	Reset(ctx context.Context) (DemoResult, error)
}

// DemoSchedulerConfig holds configuration for the demo scheduler
type DemoSchedulerConfig struct {
	// RunOnStart resets once before waiting for the first midnight.
	RunOnStart bool

	// Location decides when midnight is (default: time.Local).
	Location *time.Location
}

// DemoScheduler resets the demo account every day at midnight.
type DemoScheduler struct {
	demo   DemoResetter
	config DemoSchedulerConfig
	now    Clock

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewDemoScheduler(demo DemoResetter, config DemoSchedulerConfig, now Clock) *DemoScheduler {
	if config.Location == nil {
		config.Location = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &DemoScheduler{demo: demo, config: config, now: now}
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *DemoScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("demo scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Demo scheduler started",
		"next_reset", nextMidnight(s.now(), s.config.Location),
		"run_on_start", s.config.RunOnStart)

	return nil
}

// Stop gracefully stops the scheduler and waits for an in-flight reset.
func (s *DemoScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		slog.InfoContext(ctx, "Demo scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Demo scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *DemoScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *DemoScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	if s.config.RunOnStart {
		s.reset(ctx)
	}

	for {
		now := s.now()
		timer := time.NewTimer(nextMidnight(now, s.config.Location).Sub(now))
		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.reset(ctx)
		}
	}
}

func (s *DemoScheduler) reset(ctx context.Context) {
	res, err := s.demo.Reset(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Demo reset failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Demo reset complete",
		"expenses", res.Expenses,
		"payments", res.Payments)
}

// nextMidnight returns the first midnight in loc strictly after now.
func nextMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}
