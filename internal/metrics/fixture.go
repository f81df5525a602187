package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FixtureSource serves readings from JSON fixture files instead of live
// systems. It implements every accessor interface, which makes it usable
// both as the demo-mode source set and as a deterministic test double.
type FixtureSource struct {
	mu     sync.RWMutex
	values map[string]float64 // keyed "service/metric"
}

// NewFixtureSource creates an empty fixture source
func NewFixtureSource() *FixtureSource {
	return &FixtureSource{
		values: make(map[string]float64),
	}
}

// fixtureFile is the on-disk format: {"api": {"response_time": 120, ...}, ...}
type fixtureFile map[string]map[string]float64

// LoadDirectory loads every *.json fixture in a directory
func (f *FixtureSource) LoadDirectory(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read fixture directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := f.LoadFile(filepath.Join(dirPath, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

// LoadFile loads a single fixture file
func (f *FixtureSource) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}

	var fixture fixtureFile
	if err := json.Unmarshal(data, &fixture); err != nil {
		return fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for service, values := range fixture {
		for metric, value := range values {
			f.values[service+"/"+metric] = value
		}
	}

	return nil
}

// Set directly sets a value (useful for testing)
func (f *FixtureSource) Set(service, metric string, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[service+"/"+metric] = value
}

func (f *FixtureSource) get(service, metric string) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	value, exists := f.values[service+"/"+metric]
	if !exists {
		return 0, fmt.Errorf("no fixture value for %s/%s", service, metric)
	}
	return value, nil
}

// Sources returns a Sources bundle backed entirely by the fixture
func (f *FixtureSource) Sources() Sources {
	return Sources{API: f, Database: f, Cache: f, Network: f}
}

func (f *FixtureSource) ResponseTime(context.Context) (float64, error) {
	return f.get("api", "response_time")
}

func (f *FixtureSource) ErrorRate(context.Context) (float64, error) {
	return f.get("api", "error_rate")
}

func (f *FixtureSource) RequestRate(context.Context) (float64, error) {
	return f.get("api", "request_rate")
}

func (f *FixtureSource) QueryTime(context.Context) (float64, error) {
	return f.get("database", "query_time")
}

func (f *FixtureSource) Connections(context.Context) (float64, error) {
	return f.get("database", "connections")
}

func (f *FixtureSource) DiskUsage(context.Context) (float64, error) {
	return f.get("database", "disk_usage")
}

func (f *FixtureSource) HitRate(context.Context) (float64, error) {
	return f.get("cache", "hit_rate")
}

func (f *FixtureSource) MemoryUsage(context.Context) (float64, error) {
	return f.get("cache", "memory_usage")
}

func (f *FixtureSource) EvictionRate(context.Context) (float64, error) {
	return f.get("cache", "eviction_rate")
}

func (f *FixtureSource) Latency(context.Context) (float64, error) {
	return f.get("network", "latency")
}

func (f *FixtureSource) BandwidthUtilization(context.Context) (float64, error) {
	return f.get("network", "bandwidth_utilization")
}

func (f *FixtureSource) PacketLoss(context.Context) (float64, error) {
	return f.get("network", "packet_loss")
}
