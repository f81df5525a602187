// Package monitor wires the metric collector, health classifier, issue
// reactor, store, and dashboard sink into one monitoring cycle.
package monitor

import (
	"context"
	"log"
	"sync"

	"github.com/nawedy/vigil/internal/health"
	"github.com/nawedy/vigil/internal/metrics"
)

// SnapshotStore persists the readings of each monitoring cycle
type SnapshotStore interface {
	StoreHealthSnapshot(batch []metrics.ServiceHealth) error
}

// Reactor handles non-healthy classifications
type Reactor interface {
	React(ctx context.Context, batch []metrics.ServiceHealth)
}

// Sink publishes the latest health view for dashboards
type Sink interface {
	Publish(batch []metrics.ServiceHealth)
}

// Monitor runs the collect -> classify -> react -> persist -> publish
// pipeline and caches the latest classification for API reads.
type Monitor struct {
	collector  *metrics.Collector
	classifier *health.Classifier
	reactor    Reactor
	store      SnapshotStore
	sink       Sink

	mu     sync.RWMutex
	latest []metrics.ServiceHealth
}

// NewMonitor creates a monitor. reactor, store, and sink may be nil; the
// corresponding pipeline stage is skipped.
func NewMonitor(collector *metrics.Collector, classifier *health.Classifier, reactor Reactor, store SnapshotStore, sink Sink) *Monitor {
	return &Monitor{
		collector:  collector,
		classifier: classifier,
		reactor:    reactor,
		store:      store,
		sink:       sink,
	}
}

// RunCycle performs one full monitoring pass. Persistence and publish
// failures are logged; the cycle itself never fails so the scheduler
// keeps its cadence.
func (m *Monitor) RunCycle(ctx context.Context) []metrics.ServiceHealth {
	readings := m.collector.CollectAll(ctx)
	batch := m.classifier.Classify(readings)

	m.mu.Lock()
	m.latest = batch
	m.mu.Unlock()

	if m.reactor != nil {
		m.reactor.React(ctx, batch)
	}

	if m.store != nil {
		if err := m.store.StoreHealthSnapshot(batch); err != nil {
			log.Printf("Warning: failed to persist health snapshot: %v", err)
		}
	}

	if m.sink != nil {
		m.sink.Publish(batch)
	}

	return batch
}

// Snapshot returns the most recent classification batch
func (m *Monitor) Snapshot() []metrics.ServiceHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	batch := make([]metrics.ServiceHealth, len(m.latest))
	copy(batch, m.latest)
	return batch
}

// ServiceSnapshot returns the latest health for one service, or false if
// the service has not been observed
func (m *Monitor) ServiceSnapshot(service string) (metrics.ServiceHealth, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, health := range m.latest {
		if health.Service == service {
			return health, true
		}
	}
	return metrics.ServiceHealth{}, false
}
