package metrics

import (
	"time"
)

// Status represents the derived health of a service
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Severity orders statuses for aggregation (unhealthy > degraded > healthy)
func (s Status) Severity() int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Thresholds holds the warning and critical boundaries for a metric
type Thresholds struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
}

// Reading is a single point-in-time metric observation.
// Readings are immutable once recorded. The "service" tag is mandatory
// and used for grouping by the classifier.
type Reading struct {
	Name       string            `json:"name"`
	Value      float64           `json:"value"`
	Timestamp  time.Time         `json:"timestamp"`
	Tags       map[string]string `json:"tags"`
	Thresholds Thresholds        `json:"thresholds"`
}

// Service returns the owning service tag
func (r Reading) Service() string {
	return r.Tags["service"]
}

// ServiceHealth is the derived health of one service, recomputed each
// monitoring cycle from the current batch of readings.
type ServiceHealth struct {
	Service         string    `json:"service"`
	Status          Status    `json:"status"`
	Metrics         []Reading `json:"metrics"`
	Issues          []string  `json:"issues"`
	Recommendations []string  `json:"recommendations"`
}
