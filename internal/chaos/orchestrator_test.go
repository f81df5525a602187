package chaos

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeInjector records inject/recover calls and can be made to fail
type fakeInjector struct {
	mu          sync.Mutex
	category    Category
	injected    int
	recovered   int
	injectErr   error
	recoverErr  error
	recoverHang time.Duration
}

func (f *fakeInjector) Category() Category { return f.category }

func (f *fakeInjector) Inject(ctx context.Context, intensity Intensity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.injectErr != nil {
		return "", f.injectErr
	}
	f.injected++
	return "fault applied", nil
}

func (f *fakeInjector) Recover(ctx context.Context) error {
	if f.recoverHang > 0 {
		select {
		case <-time.After(f.recoverHang):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recoverErr != nil {
		return f.recoverErr
	}
	f.recovered++
	return nil
}

func (f *fakeInjector) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.injected, f.recovered
}

func newTestOrchestrator(injectors ...Injector) *Orchestrator {
	return NewOrchestrator(injectors, nil, nil, nil, time.Second)
}

func TestStartChaosTest_RefusesSecondRun(t *testing.T) {
	injector := &fakeInjector{category: CategoryCPU}
	orch := newTestOrchestrator(injector)

	if err := orch.StartChaosTest(Config{Intensity: IntensityLow}); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	defer orch.StopChaosTest()

	err := orch.StartChaosTest(Config{Intensity: IntensityLow})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	// The second start must not have scheduled a second experiment set
	if injected, _ := injector.counts(); injected != 1 {
		t.Errorf("expected 1 injection, got %d", injected)
	}
}

func TestStartChaosTest_InvalidIntensity(t *testing.T) {
	orch := newTestOrchestrator(&fakeInjector{category: CategoryCPU})
	if err := orch.StartChaosTest(Config{Intensity: "extreme"}); err == nil {
		t.Fatal("expected error for unknown intensity")
	}
	if orch.Running() {
		t.Error("orchestrator should not be running after rejected start")
	}
}

func TestStopChaosTest_RecoversAllExperiments(t *testing.T) {
	network := &fakeInjector{category: CategoryNetwork}
	memory := &fakeInjector{category: CategoryMemory}
	cpu := &fakeInjector{category: CategoryCPU}

	orch := newTestOrchestrator(network, memory, cpu)
	if err := orch.StartChaosTest(Config{Intensity: IntensityLow}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	completed, err := orch.StopChaosTest()
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if len(completed) != 3 {
		t.Fatalf("expected 3 torn-down experiments, got %d", len(completed))
	}
	for _, experiment := range completed {
		if experiment.State != StateRecovered {
			t.Errorf("%s: expected recovered, got %s", experiment.Target, experiment.State)
		}
	}

	for _, injector := range []*fakeInjector{network, memory, cpu} {
		if _, recovered := injector.counts(); recovered != 1 {
			t.Errorf("%s: expected 1 recovery, got %d", injector.category, recovered)
		}
	}

	if orch.Running() {
		t.Error("orchestrator still marked running after stop")
	}
}

func TestStopChaosTest_FailedRecoveryDoesNotShortCircuit(t *testing.T) {
	broken := &fakeInjector{category: CategoryMemory, recoverErr: errors.New("allocations pinned")}
	healthy1 := &fakeInjector{category: CategoryNetwork}
	healthy2 := &fakeInjector{category: CategoryCPU}

	orch := newTestOrchestrator(healthy1, broken, healthy2)
	if err := orch.StartChaosTest(Config{Intensity: IntensityLow}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	completed, err := orch.StopChaosTest()
	if err != nil {
		t.Fatalf("stop must not fail on recovery errors: %v", err)
	}

	states := make(map[string]State)
	for _, experiment := range completed {
		states[experiment.Target] = experiment.State
	}

	if states["memory"] != StateRecoveryFailed {
		t.Errorf("expected memory recovery_failed, got %s", states["memory"])
	}
	if states["network"] != StateRecovered || states["cpu"] != StateRecovered {
		t.Errorf("sibling experiments must still be recovered: %v", states)
	}

	// The active set is always cleared, even on failure
	report := orch.GenerateReport(context.Background())
	for _, experiment := range report.Experiments {
		if experiment.State == StateActive {
			t.Errorf("experiment %s still active after stop", experiment.Target)
		}
	}
	if orch.Running() {
		t.Error("running flag must clear even when a recovery fails")
	}

	// A fresh run is allowed after teardown
	if err := orch.StartChaosTest(Config{Intensity: IntensityLow}); err != nil {
		t.Fatalf("restart after failed recovery should work: %v", err)
	}
	orch.StopChaosTest()
}

func TestStopChaosTest_HungRecoveryTimesOut(t *testing.T) {
	hung := &fakeInjector{category: CategoryNetwork, recoverHang: 10 * time.Second}
	orch := NewOrchestrator([]Injector{hung}, nil, nil, nil, 50*time.Millisecond)

	if err := orch.StartChaosTest(Config{Intensity: IntensityLow}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	started := time.Now()
	completed, err := orch.StopChaosTest()
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("teardown not bounded: took %v", elapsed)
	}

	if len(completed) != 1 {
		t.Fatalf("expected 1 experiment, got %d", len(completed))
	}
	if completed[0].State != StateRecoveryFailed {
		t.Errorf("expected recovery_failed for hung recovery, got %s", completed[0].State)
	}
	if completed[0].Recovery == "" {
		t.Error("expected recovery failure detail")
	}
}

func TestStopChaosTest_NotRunning(t *testing.T) {
	orch := newTestOrchestrator(&fakeInjector{category: CategoryCPU})
	if _, err := orch.StopChaosTest(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestGenerateReport(t *testing.T) {
	injector := &fakeInjector{category: CategoryCPU}
	orch := newTestOrchestrator(injector)

	if err := orch.StartChaosTest(Config{Intensity: IntensityLow}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	report := orch.GenerateReport(context.Background())
	if !report.Running {
		t.Error("report should show running")
	}
	if len(report.Experiments) != 1 {
		t.Fatalf("expected 1 experiment, got %d", len(report.Experiments))
	}
	if report.Experiments[0].State != StateActive {
		t.Errorf("expected active experiment, got %s", report.Experiments[0].State)
	}
	if report.Experiments[0].Duration != 60*time.Second {
		t.Errorf("low intensity should map to 60s, got %v", report.Experiments[0].Duration)
	}

	orch.StopChaosTest()

	report = orch.GenerateReport(context.Background())
	if report.Running {
		t.Error("report should show idle after stop")
	}
	if report.Experiments[0].State != StateRecovered {
		t.Errorf("expected recovered, got %s", report.Experiments[0].State)
	}
}

func TestIntensityDurations(t *testing.T) {
	tests := []struct {
		intensity Intensity
		want      time.Duration
	}{
		{IntensityLow, 60 * time.Second},
		{IntensityMedium, 300 * time.Second},
		{IntensityHigh, 900 * time.Second},
	}

	for _, tt := range tests {
		if got := tt.intensity.Duration(); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.intensity, tt.want, got)
		}
	}
}

func TestCPUInjector_InjectAndRecover(t *testing.T) {
	injector := NewCPUInjector()

	impact, err := injector.Inject(context.Background(), IntensityLow)
	if err != nil {
		t.Fatalf("inject failed: %v", err)
	}
	if impact == "" {
		t.Error("expected impact description")
	}

	if _, err := injector.Inject(context.Background(), IntensityLow); err == nil {
		t.Error("double inject should fail")
	}

	if err := injector.Recover(context.Background()); err != nil {
		t.Fatalf("recover failed: %v", err)
	}

	// Recover is idempotent
	if err := injector.Recover(context.Background()); err != nil {
		t.Fatalf("second recover failed: %v", err)
	}
}

func TestMemoryInjector_InjectAndRecover(t *testing.T) {
	injector := NewMemoryInjector()

	if _, err := injector.Inject(context.Background(), IntensityLow); err != nil {
		t.Fatalf("inject failed: %v", err)
	}
	if err := injector.Recover(context.Background()); err != nil {
		t.Fatalf("recover failed: %v", err)
	}
}
