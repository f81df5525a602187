package cost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/semaphore"
)

// BillingConfig holds cloud billing client configuration
type BillingConfig struct {
	URL            string
	Timeout        time.Duration
	MaxConcurrency int64
	RetryCount     int
	RetryDelay     time.Duration
}

// DefaultBillingConfig returns default configuration
func DefaultBillingConfig(billingURL string) BillingConfig {
	return BillingConfig{
		URL:            billingURL,
		Timeout:        10 * time.Second,
		MaxConcurrency: 5,
		RetryCount:     1,
		RetryDelay:     100 * time.Millisecond,
	}
}

// CloudBillingSource queries a cloud billing API for cost-and-usage data
type CloudBillingSource struct {
	config BillingConfig
	client *http.Client
	sem    *semaphore.Weighted
}

// NewCloudBillingSource creates a billing source over an HTTP cost API
func NewCloudBillingSource(config BillingConfig) *CloudBillingSource {
	return &CloudBillingSource{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		sem: semaphore.NewWeighted(config.MaxConcurrency),
	}
}

func (s *CloudBillingSource) Name() string { return "cloud-billing" }

// billingResponse is the cost-and-usage API response body
type billingResponse struct {
	Results []struct {
		Service string  `json:"service"`
		Amount  float64 `json:"amount"`
		Unit    string  `json:"unit"`
	} `json:"results"`
}

// Collect queries the billing API for the given period, retrying once on
// transient failure
func (s *CloudBillingSource) Collect(ctx context.Context, start, end time.Time) ([]Breakdown, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("semaphore acquire: %w", err)
	}
	defer s.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt <= s.config.RetryCount; attempt++ {
		if attempt > 0 {
			time.Sleep(s.config.RetryDelay)
		}

		resp, err := s.query(ctx, start, end)
		if err != nil {
			lastErr = err
			continue
		}

		entries := make([]Breakdown, 0, len(resp.Results))
		for _, r := range resp.Results {
			entries = append(entries, Breakdown{
				Service:   r.Service,
				Amount:    r.Amount,
				Unit:      r.Unit,
				StartDate: start,
				EndDate:   end,
				Tags:      map[string]string{"source": s.Name()},
			})
		}
		return entries, nil
	}

	return nil, fmt.Errorf("billing query failed after %d attempts: %w", s.config.RetryCount+1, lastErr)
}

func (s *CloudBillingSource) query(ctx context.Context, start, end time.Time) (*billingResponse, error) {
	params := url.Values{}
	params.Set("start", start.UTC().Format(time.RFC3339))
	params.Set("end", end.UTC().Format(time.RFC3339))
	params.Set("granularity", "DAILY")

	reqURL := fmt.Sprintf("%s/v1/cost-and-usage?%s", s.config.URL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("billing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("billing API returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed billingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode billing response: %w", err)
	}

	return &parsed, nil
}

// DatabaseSizer reports the current database size in gigabytes
type DatabaseSizer interface {
	SizeGB(ctx context.Context) (float64, error)
}

// StorageCostSource computes storage cost from database size at a flat
// $/GB/month rate, prorated over the collection period
type StorageCostSource struct {
	sizer         DatabaseSizer
	ratePerGBHour float64
}

// NewStorageCostSource creates a storage cost source.
// ratePerGBMonth is the billed $/GB/month.
func NewStorageCostSource(sizer DatabaseSizer, ratePerGBMonth float64) *StorageCostSource {
	return &StorageCostSource{
		sizer:         sizer,
		ratePerGBHour: ratePerGBMonth / (30 * 24),
	}
}

func (s *StorageCostSource) Name() string { return "storage" }

func (s *StorageCostSource) Collect(ctx context.Context, start, end time.Time) ([]Breakdown, error) {
	sizeGB, err := s.sizer.SizeGB(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read database size: %w", err)
	}

	hours := end.Sub(start).Hours()
	return []Breakdown{{
		Service:   "database",
		Amount:    sizeGB * s.ratePerGBHour * hours,
		Unit:      "USD",
		StartDate: start,
		EndDate:   end,
		Tags:      map[string]string{"source": s.Name()},
	}}, nil
}

// MemoryReporter reports current cache memory usage as a percentage of capacity
type MemoryReporter interface {
	MemoryUsagePercent(ctx context.Context) (float64, error)
}

// CacheCostSource computes cache cost from used memory at a $/GB-hour rate
type CacheCostSource struct {
	reporter      MemoryReporter
	capacityGB    float64
	ratePerGBHour float64
}

// NewCacheCostSource creates a cache cost source
func NewCacheCostSource(reporter MemoryReporter, capacityGB, ratePerGBHour float64) *CacheCostSource {
	return &CacheCostSource{
		reporter:      reporter,
		capacityGB:    capacityGB,
		ratePerGBHour: ratePerGBHour,
	}
}

func (s *CacheCostSource) Name() string { return "cache" }

func (s *CacheCostSource) Collect(ctx context.Context, start, end time.Time) ([]Breakdown, error) {
	usedPercent, err := s.reporter.MemoryUsagePercent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache memory usage: %w", err)
	}

	usedGB := s.capacityGB * usedPercent / 100
	hours := end.Sub(start).Hours()

	return []Breakdown{{
		Service:   "cache",
		Amount:    usedGB * s.ratePerGBHour * hours,
		Unit:      "USD",
		StartDate: start,
		EndDate:   end,
		Tags:      map[string]string{"source": s.Name()},
	}}, nil
}

// TransferReporter reports bytes transferred over a period
type TransferReporter interface {
	BytesTransferred(ctx context.Context, start, end time.Time) (float64, error)
}

// CDNCostSource computes CDN cost from bytes transferred at a $/GB rate
type CDNCostSource struct {
	reporter  TransferReporter
	ratePerGB float64
}

// NewCDNCostSource creates a CDN cost source
func NewCDNCostSource(reporter TransferReporter, ratePerGB float64) *CDNCostSource {
	return &CDNCostSource{
		reporter:  reporter,
		ratePerGB: ratePerGB,
	}
}

func (s *CDNCostSource) Name() string { return "cdn" }

func (s *CDNCostSource) Collect(ctx context.Context, start, end time.Time) ([]Breakdown, error) {
	bytes, err := s.reporter.BytesTransferred(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to read transfer volume: %w", err)
	}

	gb := bytes / (1 << 30)
	return []Breakdown{{
		Service:   "cdn",
		Amount:    gb * s.ratePerGB,
		Unit:      "USD",
		StartDate: start,
		EndDate:   end,
		Tags:      map[string]string{"source": s.Name()},
	}}, nil
}
