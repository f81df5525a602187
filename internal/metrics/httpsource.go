package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HTTPSource pulls a metrics snapshot document from a monitored target.
// The endpoint serves the same shape as fixture files:
// {"api": {"response_time": 120, ...}, ...}. One snapshot is shared by
// all accessor calls within a refresh window so a collection cycle does
// not re-fetch per metric.
type HTTPSource struct {
	url    string
	client *http.Client
	maxAge time.Duration

	mu        sync.Mutex
	values    map[string]float64
	fetchedAt time.Time
	now       func() time.Time
}

// NewHTTPSource creates a source polling the given snapshot URL
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
		maxAge: time.Second,
		now:    time.Now,
	}
}

// Sources returns a Sources bundle backed entirely by this endpoint
func (h *HTTPSource) Sources() Sources {
	return Sources{API: h, Database: h, Cache: h, Network: h}
}

// SetClock overrides the source's clock (for testing only)
func (h *HTTPSource) SetClock(now func() time.Time) {
	h.now = now
}

// SetTransport overrides the HTTP transport used for snapshot fetches.
// The chaos network injector routes fetches through its shaper so
// injected latency shows up in collected metrics.
func (h *HTTPSource) SetTransport(rt http.RoundTripper) {
	h.client.Transport = rt
}

func (h *HTTPSource) get(ctx context.Context, service, metric string) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.values == nil || h.now().Sub(h.fetchedAt) > h.maxAge {
		if err := h.refresh(ctx); err != nil {
			return 0, err
		}
	}

	value, exists := h.values[service+"/"+metric]
	if !exists {
		return 0, fmt.Errorf("target does not report %s/%s", service, metric)
	}
	return value, nil
}

// refresh fetches a new snapshot; caller holds the lock
func (h *HTTPSource) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build snapshot request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch metrics snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metrics snapshot returned status %d", resp.StatusCode)
	}

	var snapshot map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to parse metrics snapshot: %w", err)
	}

	values := make(map[string]float64)
	for service, serviceValues := range snapshot {
		for metric, value := range serviceValues {
			values[service+"/"+metric] = value
		}
	}

	h.values = values
	h.fetchedAt = h.now()
	return nil
}

func (h *HTTPSource) ResponseTime(ctx context.Context) (float64, error) {
	return h.get(ctx, "api", "response_time")
}

func (h *HTTPSource) ErrorRate(ctx context.Context) (float64, error) {
	return h.get(ctx, "api", "error_rate")
}

func (h *HTTPSource) RequestRate(ctx context.Context) (float64, error) {
	return h.get(ctx, "api", "request_rate")
}

func (h *HTTPSource) QueryTime(ctx context.Context) (float64, error) {
	return h.get(ctx, "database", "query_time")
}

func (h *HTTPSource) Connections(ctx context.Context) (float64, error) {
	return h.get(ctx, "database", "connections")
}

func (h *HTTPSource) DiskUsage(ctx context.Context) (float64, error) {
	return h.get(ctx, "database", "disk_usage")
}

func (h *HTTPSource) HitRate(ctx context.Context) (float64, error) {
	return h.get(ctx, "cache", "hit_rate")
}

func (h *HTTPSource) MemoryUsage(ctx context.Context) (float64, error) {
	return h.get(ctx, "cache", "memory_usage")
}

func (h *HTTPSource) EvictionRate(ctx context.Context) (float64, error) {
	return h.get(ctx, "cache", "eviction_rate")
}

func (h *HTTPSource) Latency(ctx context.Context) (float64, error) {
	return h.get(ctx, "network", "latency")
}

func (h *HTTPSource) BandwidthUtilization(ctx context.Context) (float64, error) {
	return h.get(ctx, "network", "bandwidth_utilization")
}

func (h *HTTPSource) PacketLoss(ctx context.Context) (float64, error) {
	return h.get(ctx, "network", "packet_loss")
}
