package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_RunsTasksOnInterval(t *testing.T) {
	var runs atomic.Int64

	s := NewScheduler()
	err := s.Register(Task{
		Name:     "counter",
		Interval: 20 * time.Millisecond,
		Run: func(ctx context.Context) {
			runs.Add(1)
		},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	time.Sleep(110 * time.Millisecond)
	s.Stop()

	// Immediate run plus several ticks
	if got := runs.Load(); got < 3 {
		t.Errorf("expected at least 3 runs, got %d", got)
	}
}

func TestScheduler_SkipsOverlappingCycles(t *testing.T) {
	var concurrent atomic.Int64
	var peak atomic.Int64

	s := NewScheduler()
	err := s.Register(Task{
		Name:     "slow",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) {
			current := concurrent.Add(1)
			defer concurrent.Add(-1)

			for {
				prev := peak.Load()
				if current <= prev || peak.CompareAndSwap(prev, current) {
					break
				}
			}

			select {
			case <-time.After(60 * time.Millisecond):
			case <-ctx.Done():
			}
		},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if got := peak.Load(); got > 1 {
		t.Errorf("cycles overlapped: peak concurrency %d", got)
	}
}

func TestScheduler_StartErrors(t *testing.T) {
	s := NewScheduler()
	if err := s.Start(); err == nil {
		t.Error("start with no tasks should fail")
	}

	err := s.Register(Task{
		Name:     "noop",
		Interval: time.Hour,
		Run:      func(ctx context.Context) {},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	if err := s.Start(); err == nil {
		t.Error("second start should fail")
	}

	if err := s.Register(Task{Name: "late", Interval: time.Hour, Run: func(ctx context.Context) {}}); err == nil {
		t.Error("register while running should fail")
	}
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := NewScheduler()

	if err := s.Register(Task{Interval: time.Second, Run: func(ctx context.Context) {}}); err == nil {
		t.Error("task without a name should be rejected")
	}
	if err := s.Register(Task{Name: "no-run", Interval: time.Second}); err == nil {
		t.Error("task without a run function should be rejected")
	}
	if err := s.Register(Task{Name: "no-interval", Run: func(ctx context.Context) {}}); err == nil {
		t.Error("task without an interval should be rejected")
	}
}

func TestScheduler_StopWaitsForInFlightCycle(t *testing.T) {
	done := make(chan struct{})

	s := NewScheduler()
	err := s.Register(Task{
		Name:     "finisher",
		Interval: time.Hour,
		Run: func(ctx context.Context) {
			time.Sleep(30 * time.Millisecond)
			close(done)
		},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	s.Stop()

	select {
	case <-done:
	default:
		t.Error("stop returned before the in-flight cycle completed")
	}
}
