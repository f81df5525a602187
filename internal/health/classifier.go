package health

import (
	"fmt"
	"sort"

	"github.com/nawedy/vigil/internal/metrics"
)

// Classifier derives per-service health from a batch of readings.
// Classification is pure computation: identical inputs always produce
// identical output, and there is no failure mode.
type Classifier struct {
	recommendations map[string]string
}

// NewClassifier creates a classifier with the built-in recommendation table
func NewClassifier() *Classifier {
	return &Classifier{
		recommendations: defaultRecommendations(),
	}
}

// defaultRecommendations maps "service/metric" to remediation advice
func defaultRecommendations() map[string]string {
	return map[string]string{
		"api/response_time":             "scale out API instances or enable response caching",
		"api/error_rate":                "inspect recent deployments and roll back if error rate spiked after release",
		"api/request_rate":              "enable rate limiting and review traffic sources for abuse",
		"database/query_time":           "optimize slow queries and add indexes",
		"database/connections":          "increase the connection pool limit or add read replicas",
		"database/disk_usage":           "archive old data or expand storage volume",
		"cache/miss_rate":               "review cache key TTLs and warm frequently accessed keys",
		"cache/memory_usage":            "increase cache memory limit or tune eviction policy",
		"cache/eviction_rate":           "increase cache capacity; working set exceeds available memory",
		"network/latency":               "check for routing anomalies and enable a CDN for static assets",
		"network/bandwidth_utilization": "provision additional bandwidth or enable compression",
		"network/packet_loss":           "investigate network hardware and congested links",
	}
}

// SetRecommendation overrides the advice for a service/metric pair
func (c *Classifier) SetRecommendation(service, metric, advice string) {
	c.recommendations[service+"/"+metric] = advice
}

// Classify groups readings by their service tag and derives one
// ServiceHealth per service. Output is sorted by service name.
func (c *Classifier) Classify(readings []metrics.Reading) []metrics.ServiceHealth {
	groups := make(map[string][]metrics.Reading)
	for _, r := range readings {
		service := r.Service()
		if service == "" {
			continue
		}
		groups[service] = append(groups[service], r)
	}

	services := make([]string, 0, len(groups))
	for service := range groups {
		services = append(services, service)
	}
	sort.Strings(services)

	result := make([]metrics.ServiceHealth, 0, len(services))
	for _, service := range services {
		result = append(result, c.classifyService(service, groups[service]))
	}

	return result
}

// classifyService evaluates every reading for one service.
// The critical threshold is checked before the warning threshold so a
// critical breach is never reported as merely a warning.
func (c *Classifier) classifyService(service string, readings []metrics.Reading) metrics.ServiceHealth {
	health := metrics.ServiceHealth{
		Service: service,
		Status:  metrics.StatusHealthy,
		Metrics: readings,
		Issues:  []string{},
	}

	seen := make(map[string]bool)
	var recommendations []string

	for _, r := range readings {
		// Unthresholded readings are informational only
		if r.Thresholds.Warning == 0 && r.Thresholds.Critical == 0 {
			continue
		}

		var breached bool

		switch {
		case r.Value >= r.Thresholds.Critical:
			health.Issues = append(health.Issues,
				fmt.Sprintf("Critical: %s is %g (threshold: %g)", r.Name, r.Value, r.Thresholds.Critical))
			health.Status = metrics.StatusUnhealthy
			breached = true

		case r.Value >= r.Thresholds.Warning:
			health.Issues = append(health.Issues,
				fmt.Sprintf("Warning: %s is %g (threshold: %g)", r.Name, r.Value, r.Thresholds.Warning))
			if health.Status != metrics.StatusUnhealthy {
				health.Status = metrics.StatusDegraded
			}
			breached = true
		}

		if breached {
			advice := c.recommendationFor(service, r.Name)
			if !seen[advice] {
				seen[advice] = true
				recommendations = append(recommendations, advice)
			}
		}
	}

	health.Recommendations = recommendations
	return health
}

// recommendationFor looks up advice for a breached metric, falling back
// to generic advice for metric names not in the table
func (c *Classifier) recommendationFor(service, metric string) string {
	if advice, ok := c.recommendations[service+"/"+metric]; ok {
		return advice
	}
	return fmt.Sprintf("investigate elevated %s on %s", metric, service)
}
