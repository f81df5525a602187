package chaos

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// CPUInjector saturates CPU by spinning worker goroutines. Recovery
// halts the workers.
type CPUInjector struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCPUInjector creates a CPU fault injector
func NewCPUInjector() *CPUInjector {
	return &CPUInjector{}
}

func (c *CPUInjector) Category() Category { return CategoryCPU }

func (c *CPUInjector) Inject(ctx context.Context, intensity Intensity) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return "", fmt.Errorf("cpu fault already active")
	}

	workers := workersFor(intensity)
	spinCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				select {
				case <-spinCtx.Done():
					return
				default:
					// Busy loop with a yield so the scheduler stays responsive
					runtime.Gosched()
				}
			}
		}()
	}

	return fmt.Sprintf("spinning %d cpu workers", workers), nil
}

func (c *CPUInjector) Recover(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	c.wg.Wait()
	return nil
}

func workersFor(intensity Intensity) int {
	cpus := runtime.NumCPU()
	switch intensity {
	case IntensityHigh:
		return cpus
	case IntensityMedium:
		return (cpus + 1) / 2
	default:
		return 1
	}
}

// MemoryInjector allocates ballast to apply memory pressure. Recovery
// drops the ballast and forces a collection.
type MemoryInjector struct {
	mu      sync.Mutex
	ballast [][]byte
}

// NewMemoryInjector creates a memory fault injector
func NewMemoryInjector() *MemoryInjector {
	return &MemoryInjector{}
}

func (m *MemoryInjector) Category() Category { return CategoryMemory }

func (m *MemoryInjector) Inject(ctx context.Context, intensity Intensity) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ballast != nil {
		return "", fmt.Errorf("memory fault already active")
	}

	blocks := ballastBlocksFor(intensity)
	m.ballast = make([][]byte, 0, blocks)
	for i := 0; i < blocks; i++ {
		block := make([]byte, 1<<20)
		// Touch each page so the allocation is resident
		for j := 0; j < len(block); j += 4096 {
			block[j] = 1
		}
		m.ballast = append(m.ballast, block)
	}

	return fmt.Sprintf("allocated %d MiB of ballast", blocks), nil
}

func (m *MemoryInjector) Recover(ctx context.Context) error {
	m.mu.Lock()
	m.ballast = nil
	m.mu.Unlock()

	runtime.GC()
	return nil
}

func ballastBlocksFor(intensity Intensity) int {
	switch intensity {
	case IntensityHigh:
		return 512
	case IntensityMedium:
		return 128
	default:
		return 32
	}
}

// Shaper applies network degradation to outbound traffic. Production
// deployments back this with tc/netem or a service-mesh fault policy.
type Shaper interface {
	SetLatency(ctx context.Context, delay time.Duration) error
	Reset(ctx context.Context) error
}

// NetworkInjector degrades the network via an injected Shaper
type NetworkInjector struct {
	shaper Shaper
}

// NewNetworkInjector creates a network fault injector
func NewNetworkInjector(shaper Shaper) *NetworkInjector {
	return &NetworkInjector{shaper: shaper}
}

func (n *NetworkInjector) Category() Category { return CategoryNetwork }

func (n *NetworkInjector) Inject(ctx context.Context, intensity Intensity) (string, error) {
	delay := latencyFor(intensity)
	if err := n.shaper.SetLatency(ctx, delay); err != nil {
		return "", fmt.Errorf("failed to apply network latency: %w", err)
	}
	return fmt.Sprintf("added %v outbound latency", delay), nil
}

func (n *NetworkInjector) Recover(ctx context.Context) error {
	return n.shaper.Reset(ctx)
}

func latencyFor(intensity Intensity) time.Duration {
	switch intensity {
	case IntensityHigh:
		return 2 * time.Second
	case IntensityMedium:
		return 500 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

// ServiceController stops and restarts managed service instances
type ServiceController interface {
	Stop(ctx context.Context, service string) error
	Restart(ctx context.Context, service string) error
}

// ServiceFailureInjector kills a service instance via the controller
// and restarts it on recovery
type ServiceFailureInjector struct {
	controller ServiceController
	service    string
}

// NewServiceFailureInjector creates a service-failure injector for one
// target service
func NewServiceFailureInjector(controller ServiceController, service string) *ServiceFailureInjector {
	return &ServiceFailureInjector{
		controller: controller,
		service:    service,
	}
}

func (s *ServiceFailureInjector) Category() Category { return CategoryServiceFailure }

// Target identifies the service this injector acts on
func (s *ServiceFailureInjector) Target() string { return s.service }

func (s *ServiceFailureInjector) Inject(ctx context.Context, intensity Intensity) (string, error) {
	if err := s.controller.Stop(ctx, s.service); err != nil {
		return "", fmt.Errorf("failed to stop %s: %w", s.service, err)
	}
	return fmt.Sprintf("stopped service %s", s.service), nil
}

func (s *ServiceFailureInjector) Recover(ctx context.Context) error {
	if err := s.controller.Restart(ctx, s.service); err != nil {
		return fmt.Errorf("failed to restart %s: %w", s.service, err)
	}
	return nil
}
