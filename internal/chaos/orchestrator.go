package chaos

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nawedy/vigil/internal/loadgen"
	"github.com/nawedy/vigil/internal/metrics"
)

// ErrAlreadyRunning is returned when a chaos test is started while one
// is in progress. Only one global run is allowed at a time.
var ErrAlreadyRunning = errors.New("chaos test already running")

// ErrNotRunning is returned when stopping with no test in progress
var ErrNotRunning = errors.New("no chaos test running")

// defaultRecoveryTimeout bounds each experiment's teardown so a hung
// recovery cannot wedge the stop sequence
const defaultRecoveryTimeout = 30 * time.Second

// Config configures one chaos run
type Config struct {
	Intensity Intensity        `json:"intensity"`
	Load      *loadgen.Profile `json:"load,omitempty"`
}

// HealthSnapshot returns the current service health view, used to
// observe system behavior while faults are active
type HealthSnapshot func(ctx context.Context) []metrics.ServiceHealth

// Report summarizes a chaos run
type Report struct {
	Running     bool                    `json:"running"`
	StartedAt   time.Time               `json:"startedAt"`
	Duration    time.Duration           `json:"duration"`
	Experiments []Experiment            `json:"experiments"`
	Load        *loadgen.Summary        `json:"load,omitempty"`
	Health      []metrics.ServiceHealth `json:"health,omitempty"`
}

// Orchestrator owns the chaos experiment lifecycle. It exclusively owns
// the active-experiments map; experiments auto-recover when their
// duration elapses, and Stop tears down whatever is still active.
type Orchestrator struct {
	mu              sync.Mutex
	injectors       map[string]Injector // keyed by target
	active          map[string]*Experiment
	completed       []Experiment
	running         bool
	startedAt       time.Time
	stoppedAt       time.Time
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	generator       *loadgen.Generator
	loadSummary     *loadgen.Summary
	events          EventStore
	snapshot        HealthSnapshot
	recoveryTimeout time.Duration
	now             func() time.Time
}

// NewOrchestrator creates a chaos orchestrator over the given injectors.
// events and snapshot may be nil; generator may be nil if runs carry no
// load profile.
func NewOrchestrator(injectors []Injector, generator *loadgen.Generator, events EventStore, snapshot HealthSnapshot, recoveryTimeout time.Duration) *Orchestrator {
	if recoveryTimeout <= 0 {
		recoveryTimeout = defaultRecoveryTimeout
	}

	byTarget := make(map[string]Injector, len(injectors))
	for _, injector := range injectors {
		byTarget[targetOf(injector)] = injector
	}

	return &Orchestrator{
		injectors:       byTarget,
		active:          make(map[string]*Experiment),
		generator:       generator,
		events:          events,
		snapshot:        snapshot,
		recoveryTimeout: recoveryTimeout,
		now:             time.Now,
	}
}

// targetOf resolves an injector's target name. Injectors exposing a
// Target method (like the service-failure injector) get a specific
// target; others are keyed by category.
func targetOf(injector Injector) string {
	if t, ok := injector.(interface{ Target() string }); ok {
		return t.Target()
	}
	return string(injector.Category())
}

// SetClock overrides the orchestrator's clock (for testing only)
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// StartChaosTest begins a chaos run: one experiment per injector plus an
// optional parallel load run. Refuses to start while a run is active.
func (o *Orchestrator) StartChaosTest(cfg Config) error {
	if !cfg.Intensity.Valid() {
		return fmt.Errorf("invalid intensity %q", cfg.Intensity)
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	o.running = true
	o.startedAt = o.now()
	o.stoppedAt = time.Time{}
	o.completed = nil
	o.loadSummary = nil

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.mu.Unlock()

	duration := cfg.Intensity.Duration()

	for target, injector := range o.injectors {
		target := target
		impact, err := injector.Inject(ctx, cfg.Intensity)
		if err != nil {
			log.Printf("Warning: failed to inject %s fault on %s: %v", injector.Category(), target, err)
			continue
		}

		experiment := &Experiment{
			ID:        uuid.NewString(),
			Type:      injector.Category(),
			Target:    target,
			State:     StateActive,
			Timestamp: o.now(),
			Duration:  duration,
			Impact:    impact,
		}

		o.mu.Lock()
		o.active[target] = experiment
		o.mu.Unlock()

		o.recordEvent(experiment)

		// Auto-recover when the experiment's duration elapses; Stop
		// handles teardown if it comes first.
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			select {
			case <-ctx.Done():
			case <-time.After(duration):
				o.recoverExperiment(target)
			}
		}()
	}

	if cfg.Load != nil && o.generator != nil {
		profile := *cfg.Load
		if profile.Duration <= 0 {
			profile.Duration = duration
		}

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			summary, err := o.generator.Run(ctx, profile)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Warning: load generation failed: %v", err)
			}
			o.mu.Lock()
			o.loadSummary = summary
			o.mu.Unlock()
		}()
	}

	log.Printf("Started chaos test: intensity=%s, experiments=%d", cfg.Intensity, len(o.injectors))
	return nil
}

// StopChaosTest tears down the run. Every remaining experiment's
// recovery is attempted even if an earlier one fails or hangs; failures
// are recorded per-experiment and the active set is always cleared.
func (o *Orchestrator) StopChaosTest() ([]Experiment, error) {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil, ErrNotRunning
	}

	cancel := o.cancel
	targets := make([]string, 0, len(o.active))
	for target := range o.active {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	o.mu.Unlock()

	cancel()

	for _, target := range targets {
		o.recoverExperiment(target)
	}

	o.wg.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
	o.stoppedAt = o.now()
	completed := make([]Experiment, len(o.completed))
	copy(completed, o.completed)

	log.Printf("Stopped chaos test: %d experiments torn down", len(completed))
	return completed, nil
}

// recoverExperiment removes one experiment from the active set and runs
// its category recovery, bounded by the recovery timeout. Safe to call
// from both the duration timer and the stop path; whichever gets there
// first wins.
func (o *Orchestrator) recoverExperiment(target string) {
	o.mu.Lock()
	experiment, exists := o.active[target]
	if !exists {
		o.mu.Unlock()
		return
	}
	delete(o.active, target)
	injector := o.injectors[target]
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), o.recoveryTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- injector.Recover(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("recovery timed out after %v", o.recoveryTimeout)
	}

	if err != nil {
		experiment.State = StateRecoveryFailed
		experiment.Recovery = err.Error()
		log.Printf("Warning: recovery failed for %s experiment on %s: %v", experiment.Type, target, err)
	} else {
		experiment.State = StateRecovered
		experiment.Recovery = "ok"
	}

	o.mu.Lock()
	o.completed = append(o.completed, *experiment)
	o.mu.Unlock()

	o.recordEvent(experiment)
}

// recordEvent mirrors an experiment state into the durable store
func (o *Orchestrator) recordEvent(experiment *Experiment) {
	if o.events == nil {
		return
	}

	event := Event{
		ExperimentID: experiment.ID,
		Type:         experiment.Type,
		Target:       experiment.Target,
		State:        experiment.State,
		Timestamp:    o.now(),
		Duration:     experiment.Duration,
		Impact:       experiment.Impact,
		Recovery:     experiment.Recovery,
	}

	if err := o.events.StoreChaosEvent(event); err != nil {
		log.Printf("Warning: failed to store chaos event for %s: %v", experiment.Target, err)
	}
}

// Running reports whether a chaos test is in progress
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// GenerateReport summarizes the current (or most recent) run alongside
// the live health view
func (o *Orchestrator) GenerateReport(ctx context.Context) Report {
	o.mu.Lock()

	report := Report{
		Running:   o.running,
		StartedAt: o.startedAt,
		Load:      o.loadSummary,
	}

	if o.running {
		report.Duration = o.now().Sub(o.startedAt)
	} else if !o.stoppedAt.IsZero() {
		report.Duration = o.stoppedAt.Sub(o.startedAt)
	}

	report.Experiments = make([]Experiment, 0, len(o.active)+len(o.completed))
	for _, experiment := range o.active {
		report.Experiments = append(report.Experiments, *experiment)
	}
	report.Experiments = append(report.Experiments, o.completed...)

	snapshot := o.snapshot
	o.mu.Unlock()

	sort.Slice(report.Experiments, func(i, j int) bool {
		return report.Experiments[i].Target < report.Experiments[j].Target
	})

	if snapshot != nil {
		report.Health = snapshot(ctx)
	}

	return report
}
