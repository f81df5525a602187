package chaos

import (
	"context"
	"time"
)

// Category is a fault-injection category
type Category string

const (
	CategoryNetwork        Category = "network"
	CategoryMemory         Category = "memory"
	CategoryCPU            Category = "cpu"
	CategoryServiceFailure Category = "service_failure"
)

// AllCategories lists every built-in experiment category
func AllCategories() []Category {
	return []Category{CategoryNetwork, CategoryMemory, CategoryCPU, CategoryServiceFailure}
}

// Intensity controls how long each experiment runs
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// Duration maps an intensity to its experiment duration
func (i Intensity) Duration() time.Duration {
	switch i {
	case IntensityHigh:
		return 900 * time.Second
	case IntensityMedium:
		return 300 * time.Second
	default:
		return 60 * time.Second
	}
}

// Valid reports whether the intensity is a known value
func (i Intensity) Valid() bool {
	switch i {
	case IntensityLow, IntensityMedium, IntensityHigh:
		return true
	}
	return false
}

// State is an experiment's lifecycle state:
// scheduled -> active -> recovered | recovery_failed
type State string

const (
	StateScheduled      State = "scheduled"
	StateActive         State = "active"
	StateRecovered      State = "recovered"
	StateRecoveryFailed State = "recovery_failed"
)

// Experiment is one scheduled fault injection against a single target.
// Recovery holds the failure detail when recovery did not succeed.
type Experiment struct {
	ID        string        `json:"id"`
	Type      Category      `json:"type"`
	Target    string        `json:"target"`
	State     State         `json:"state"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Impact    string        `json:"impact"`
	Recovery  string        `json:"recovery,omitempty"`
}

// Event mirrors an experiment state transition into the durable store
type Event struct {
	ExperimentID string        `json:"experimentId"`
	Type         Category      `json:"type"`
	Target       string        `json:"target"`
	State        State         `json:"state"`
	Timestamp    time.Time     `json:"timestamp"`
	Duration     time.Duration `json:"duration"`
	Impact       string        `json:"impact"`
	Recovery     string        `json:"recovery,omitempty"`
}

// EventStore persists chaos events. Implemented by the sqlite store.
type EventStore interface {
	StoreChaosEvent(event Event) error
}

// Injector applies and reverts one category of fault
type Injector interface {
	Category() Category

	// Inject applies the fault and describes its impact
	Inject(ctx context.Context, intensity Intensity) (impact string, err error)

	// Recover reverts the fault
	Recover(ctx context.Context) error
}
