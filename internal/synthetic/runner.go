package synthetic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nawedy/vigil/internal/config"
	"github.com/nawedy/vigil/internal/secrets"
)

// defaultTimeout applies to checks that do not declare their own
const defaultTimeout = 10 * time.Second

// statsWindow is the look-back period for check statistics
const statsWindow = 24 * time.Hour

var templatePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// History is the durable result store the runner appends to.
// Implemented by the sqlite store.
type History interface {
	StoreCheckResult(result Result) error
	CheckResultsSince(name string, since time.Time) ([]Result, error)
}

// Runner executes registered checks against the live system. Checks run
// with bounded concurrency (1 by default, to bound load on the target);
// a check's failure is recorded in its result and never aborts the run.
type Runner struct {
	registry    *Registry
	client      *http.Client
	secrets     *secrets.Cache
	latest      LatestCache
	history     History
	concurrency int64
	now         func() time.Time
}

// NewRunner creates a check runner. A concurrency below 1 is treated as
// sequential.
func NewRunner(registry *Registry, secretCache *secrets.Cache, latest LatestCache, history History, concurrency int64) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		registry: registry,
		client: &http.Client{
			// Per-check timeouts are applied via request contexts
			Timeout: 0,
		},
		secrets:     secretCache,
		latest:      latest,
		history:     history,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// SetClock overrides the runner's clock (for testing only)
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// SetTransport overrides the HTTP transport used for probes. The chaos
// network injector routes probes through its shaper so injected latency
// degrades check durations like real traffic would.
func (r *Runner) SetTransport(rt http.RoundTripper) {
	r.client.Transport = rt
}

// RunChecks executes every registered check and returns all results.
// One result is produced per check, failures included.
func (r *Runner) RunChecks(ctx context.Context) []Result {
	checks := r.registry.List()
	results := make([]Result, len(checks))

	sem := semaphore.NewWeighted(r.concurrency)
	var wg sync.WaitGroup
	for i, check := range checks {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled mid-run; record the remaining checks as failed
			results[i] = Result{
				Name:      check.Name,
				Success:   false,
				Error:     fmt.Sprintf("run cancelled: %v", err),
				Timestamp: r.now(),
			}
			r.record(results[i])
			continue
		}

		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = r.runCheck(ctx, check)
			r.record(results[i])
		}(i, check)
	}
	wg.Wait()

	return results
}

// RunCheck executes a single named check immediately
func (r *Runner) RunCheck(ctx context.Context, name string) (Result, error) {
	check, exists := r.registry.Get(name)
	if !exists {
		return Result{}, fmt.Errorf("%w: %s", ErrCheckNotFound, name)
	}

	result := r.runCheck(ctx, check)
	r.record(result)
	return result, nil
}

// runCheck issues one probe. Every failure mode (bad definition,
// timeout, network error, status or body mismatch) produces a failed
// Result rather than an error.
func (r *Runner) runCheck(ctx context.Context, check Check) Result {
	started := r.now()
	result := Result{
		Name:      check.Name,
		Timestamp: started,
	}

	fail := func(format string, args ...interface{}) Result {
		result.Success = false
		result.Error = fmt.Sprintf(format, args...)
		result.Duration = r.now().Sub(started)
		return result
	}

	timeout := defaultTimeout
	if check.Timeout != "" {
		parsed, err := config.ParseDuration(check.Timeout)
		if err != nil {
			return fail("invalid timeout %q: %v", check.Timeout, err)
		}
		timeout = parsed
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := check.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if check.Body != "" {
		body = strings.NewReader(check.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, check.Endpoint, body)
	if err != nil {
		return fail("failed to create request: %v", err)
	}

	for key, value := range check.Headers {
		resolved, err := r.resolveTemplate(ctx, value)
		if err != nil {
			return fail("failed to resolve header %s: %v", key, err)
		}
		req.Header.Set(key, resolved)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fail("request failed: %v", err)
	}
	defer resp.Body.Close()

	result.Duration = r.now().Sub(started)

	if resp.StatusCode != check.ExpectedStatus {
		return fail("unexpected status: got %d, want %d", resp.StatusCode, check.ExpectedStatus)
	}

	if check.ExpectedResponse != nil {
		var actual interface{}
		if err := json.NewDecoder(resp.Body).Decode(&actual); err != nil {
			return fail("failed to decode response body: %v", err)
		}
		if err := MatchResponse(check.ExpectedResponse, actual); err != nil {
			return fail("response mismatch: %v", err)
		}
	}

	result.Success = true
	return result
}

// resolveTemplate substitutes {{name}} placeholders from the secret cache
func (r *Runner) resolveTemplate(ctx context.Context, value string) (string, error) {
	if r.secrets == nil || !strings.Contains(value, "{{") {
		return value, nil
	}

	var resolveErr error
	resolved := templatePattern.ReplaceAllStringFunc(value, func(placeholder string) string {
		name := templatePattern.FindStringSubmatch(placeholder)[1]
		secret, err := r.secrets.Get(ctx, name)
		if err != nil {
			resolveErr = err
			return placeholder
		}
		return secret
	})

	return resolved, resolveErr
}

// record writes a result to the latest cache and durable history.
// Both writes are best effort on the monitoring cadence.
func (r *Runner) record(result Result) {
	if r.latest != nil {
		r.latest.Set(result)
	}
	if r.history != nil {
		if err := r.history.StoreCheckResult(result); err != nil {
			log.Printf("Warning: failed to store check result %s: %v", result.Name, err)
		}
	}
}

// LatestResult returns the cached latest result for a check
func (r *Runner) LatestResult(name string) (Result, bool) {
	if r.latest == nil {
		return Result{}, false
	}
	return r.latest.Get(name)
}

// CachedResults returns every unexpired cached result
func (r *Runner) CachedResults() []Result {
	if r.latest == nil {
		return nil
	}
	return r.latest.All()
}

// GetCheckStats aggregates a check's results over the trailing 24 hours
func (r *Runner) GetCheckStats(name string) (Stats, error) {
	if _, exists := r.registry.Get(name); !exists {
		return Stats{}, fmt.Errorf("%w: %s", ErrCheckNotFound, name)
	}

	results, err := r.history.CheckResultsSince(name, r.now().Add(-statsWindow))
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load check history: %w", err)
	}

	stats := Stats{Name: name, Total: len(results)}
	if len(results) == 0 {
		return stats, nil
	}

	var sum time.Duration
	stats.MinDuration = results[0].Duration
	for _, result := range results {
		if result.Success {
			stats.Successes++
		}
		sum += result.Duration
		if result.Duration < stats.MinDuration {
			stats.MinDuration = result.Duration
		}
		if result.Duration > stats.MaxDuration {
			stats.MaxDuration = result.Duration
		}
	}
	stats.AvgDuration = sum / time.Duration(len(results))

	return stats, nil
}
