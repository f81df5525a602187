package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

// Target is one HTTP endpoint hit during a load run
type Target struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    string            `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Profile configures a load-generation run
type Profile struct {
	RatePerSecond int           `json:"ratePerSecond"`
	Duration      time.Duration `json:"duration"`
	Targets       []Target      `json:"targets"`
}

// Summary aggregates the outcome of a load run
type Summary struct {
	Requests     uint64        `json:"requests"`
	SuccessRatio float64       `json:"successRatio"`
	MeanLatency  time.Duration `json:"meanLatency"`
	P95Latency   time.Duration `json:"p95Latency"`
	P99Latency   time.Duration `json:"p99Latency"`
	MaxLatency   time.Duration `json:"maxLatency"`
	Errors       []string      `json:"errors,omitempty"`
}

// Generator drives synthetic load against the system under test
type Generator struct {
	attacker *vegeta.Attacker
}

// NewGenerator creates a load generator
func NewGenerator(timeout time.Duration) *Generator {
	return &Generator{
		attacker: vegeta.NewAttacker(
			vegeta.Timeout(timeout),
			vegeta.KeepAlive(true),
		),
	}
}

// Run executes one load profile, honoring context cancellation. It
// blocks until the attack completes or the context is cancelled.
func (g *Generator) Run(ctx context.Context, profile Profile) (*Summary, error) {
	if profile.RatePerSecond <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d", profile.RatePerSecond)
	}
	if profile.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %v", profile.Duration)
	}
	if len(profile.Targets) == 0 {
		return nil, fmt.Errorf("at least one target is required")
	}

	targets := make([]vegeta.Target, 0, len(profile.Targets))
	for _, t := range profile.Targets {
		method := t.Method
		if method == "" {
			method = http.MethodGet
		}

		header := make(http.Header, len(t.Headers))
		for key, value := range t.Headers {
			header.Set(key, value)
		}

		targets = append(targets, vegeta.Target{
			Method: method,
			URL:    t.URL,
			Body:   []byte(t.Body),
			Header: header,
		})
	}

	targeter := vegeta.NewStaticTargeter(targets...)
	rate := vegeta.Rate{Freq: profile.RatePerSecond, Per: time.Second}

	var metrics vegeta.Metrics
	results := g.attacker.Attack(targeter, rate, profile.Duration, "vigil-chaos-load")

	for {
		select {
		case <-ctx.Done():
			g.attacker.Stop()
			// Drain remaining results so the attacker can shut down
			for res := range results {
				metrics.Add(res)
			}
			metrics.Close()
			summary := summarize(&metrics)
			return summary, ctx.Err()

		case res, ok := <-results:
			if !ok {
				metrics.Close()
				return summarize(&metrics), nil
			}
			metrics.Add(res)
		}
	}
}

func summarize(m *vegeta.Metrics) *Summary {
	return &Summary{
		Requests:     m.Requests,
		SuccessRatio: m.Success,
		MeanLatency:  m.Latencies.Mean,
		P95Latency:   m.Latencies.P95,
		P99Latency:   m.Latencies.P99,
		MaxLatency:   m.Latencies.Max,
		Errors:       m.Errors,
	}
}
