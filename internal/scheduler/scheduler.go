// Package scheduler drives the periodic background tasks: the
// monitoring cycle, cost collection, and synthetic check runs each get
// their own cadence.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nawedy/vigil/internal/config"
)

// Task is one named periodic job
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Scheduler runs registered tasks on their intervals. Each task gets an
// immediate first run, then ticks. A cycle that is still running when
// its next tick fires is skipped rather than overlapped.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []Task
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Register adds a task. Must be called before Start.
func (s *Scheduler) Register(task Task) error {
	if task.Name == "" || task.Run == nil || task.Interval <= 0 {
		return fmt.Errorf("invalid task: name, interval, and run function are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("cannot register task %s while running", task.Name)
	}

	s.tasks = append(s.tasks, task)
	return nil
}

// Start begins all registered task loops
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}

	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no tasks registered")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	tasks := s.tasks
	s.mu.Unlock()

	for _, task := range tasks {
		s.wg.Add(1)
		go s.taskLoop(ctx, task)
		log.Printf("Scheduled %s every %s", task.Name, config.FormatDuration(task.Interval))
	}

	log.Printf("Started scheduler with %d tasks", len(tasks))
	return nil
}

// Stop stops the scheduler and waits for in-flight cycles to complete
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	s.cancel()
	s.running = false
	s.mu.Unlock()

	log.Println("Stopping scheduler...")
	s.wg.Wait()
	log.Println("Scheduler stopped")
}

// Running reports whether the scheduler is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// taskLoop runs one task on its cadence
func (s *Scheduler) taskLoop(ctx context.Context, task Task) {
	defer s.wg.Done()

	// Gate so a slow cycle is skipped, never overlapped
	inFlight := make(chan struct{}, 1)

	runOnce := func() {
		select {
		case inFlight <- struct{}{}:
		default:
			log.Printf("Warning: skipping %s cycle, previous run still in progress", task.Name)
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-inFlight }()
			task.Run(ctx)
		}()
	}

	runOnce()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
