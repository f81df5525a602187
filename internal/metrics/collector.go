package metrics

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// APISource exposes point-in-time readings for the API tier
type APISource interface {
	ResponseTime(ctx context.Context) (float64, error)
	ErrorRate(ctx context.Context) (float64, error)
	RequestRate(ctx context.Context) (float64, error)
}

// DatabaseSource exposes point-in-time readings for the database tier
type DatabaseSource interface {
	QueryTime(ctx context.Context) (float64, error)
	Connections(ctx context.Context) (float64, error)
	DiskUsage(ctx context.Context) (float64, error)
}

// CacheSource exposes point-in-time readings for the cache tier
type CacheSource interface {
	HitRate(ctx context.Context) (float64, error)
	MemoryUsage(ctx context.Context) (float64, error)
	EvictionRate(ctx context.Context) (float64, error)
}

// NetworkSource exposes point-in-time readings for the network tier
type NetworkSource interface {
	Latency(ctx context.Context) (float64, error)
	BandwidthUtilization(ctx context.Context) (float64, error)
	PacketLoss(ctx context.Context) (float64, error)
}

// Sources bundles the per-service accessors the collector pulls from
type Sources struct {
	API      APISource
	Database DatabaseSource
	Cache    CacheSource
	Network  NetworkSource
}

// ThresholdTable maps "service/metric" to its warning/critical boundaries
type ThresholdTable map[string]Thresholds

// DefaultThresholds returns the built-in threshold table.
// All metrics are higher-is-worse; the cache hit rate is recorded as a
// miss rate so it compares the same way as everything else.
func DefaultThresholds() ThresholdTable {
	return ThresholdTable{
		"api/response_time":             {Warning: 200, Critical: 500},
		"api/error_rate":                {Warning: 1, Critical: 5},
		"api/request_rate":              {Warning: 5000, Critical: 10000},
		"database/query_time":           {Warning: 100, Critical: 300},
		"database/connections":          {Warning: 80, Critical: 95},
		"database/disk_usage":           {Warning: 75, Critical: 90},
		"cache/miss_rate":               {Warning: 20, Critical: 50},
		"cache/memory_usage":            {Warning: 75, Critical: 90},
		"cache/eviction_rate":           {Warning: 100, Critical: 500},
		"network/latency":               {Warning: 50, Critical: 150},
		"network/bandwidth_utilization": {Warning: 70, Critical: 90},
		"network/packet_loss":           {Warning: 0.5, Critical: 2},
	}
}

// probe is one named accessor call
type probe struct {
	name string
	fn   func(ctx context.Context) (float64, error)
}

// Collector pulls readings from the configured sources. A failed accessor
// is logged and skipped so sibling metrics still come back; total failure
// yields an empty slice, never an error.
type Collector struct {
	sources    Sources
	thresholds ThresholdTable
	now        func() time.Time
}

// NewCollector creates a collector over the given sources
func NewCollector(sources Sources, thresholds ThresholdTable) *Collector {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	return &Collector{
		sources:    sources,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// SetClock overrides the collector's clock (for testing only)
func (c *Collector) SetClock(now func() time.Time) {
	c.now = now
}

// Services returns the service names the collector has sources for
func (c *Collector) Services() []string {
	var services []string
	if c.sources.API != nil {
		services = append(services, "api")
	}
	if c.sources.Database != nil {
		services = append(services, "database")
	}
	if c.sources.Cache != nil {
		services = append(services, "cache")
	}
	if c.sources.Network != nil {
		services = append(services, "network")
	}
	return services
}

// Collect pulls all readings for one service. Accessor calls fan out
// concurrently since they have no ordering dependency.
func (c *Collector) Collect(ctx context.Context, service string) []Reading {
	probes := c.probesFor(service)
	if len(probes) == 0 {
		return nil
	}

	var mu sync.Mutex
	var readings []Reading

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range probes {
		p := p
		g.Go(func() error {
			value, err := p.fn(ctx)
			if err != nil {
				log.Printf("Warning: failed to collect %s/%s: %v", service, p.name, err)
				return nil
			}

			reading := Reading{
				Name:       p.name,
				Value:      value,
				Timestamp:  c.now(),
				Tags:       map[string]string{"service": service},
				Thresholds: c.thresholds[service+"/"+p.name],
			}

			mu.Lock()
			readings = append(readings, reading)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	// Stable output order regardless of which probe finished first
	sort.Slice(readings, func(i, j int) bool {
		return readings[i].Name < readings[j].Name
	})

	return readings
}

// CollectAll pulls readings for every configured service
func (c *Collector) CollectAll(ctx context.Context) []Reading {
	var all []Reading
	for _, service := range c.Services() {
		all = append(all, c.Collect(ctx, service)...)
	}
	return all
}

func (c *Collector) probesFor(service string) []probe {
	switch service {
	case "api":
		if c.sources.API == nil {
			return nil
		}
		return []probe{
			{"response_time", c.sources.API.ResponseTime},
			{"error_rate", c.sources.API.ErrorRate},
			{"request_rate", c.sources.API.RequestRate},
		}
	case "database":
		if c.sources.Database == nil {
			return nil
		}
		return []probe{
			{"query_time", c.sources.Database.QueryTime},
			{"connections", c.sources.Database.Connections},
			{"disk_usage", c.sources.Database.DiskUsage},
		}
	case "cache":
		if c.sources.Cache == nil {
			return nil
		}
		return []probe{
			{"miss_rate", c.missRate},
			{"memory_usage", c.sources.Cache.MemoryUsage},
			{"eviction_rate", c.sources.Cache.EvictionRate},
		}
	case "network":
		if c.sources.Network == nil {
			return nil
		}
		return []probe{
			{"latency", c.sources.Network.Latency},
			{"bandwidth_utilization", c.sources.Network.BandwidthUtilization},
			{"packet_loss", c.sources.Network.PacketLoss},
		}
	default:
		return nil
	}
}

// missRate inverts the cache hit rate so the metric is higher-is-worse
func (c *Collector) missRate(ctx context.Context) (float64, error) {
	hitRate, err := c.sources.Cache.HitRate(ctx)
	if err != nil {
		return 0, err
	}
	return 100 - hitRate, nil
}
