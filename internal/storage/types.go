package storage

import (
	"time"

	"github.com/nawedy/vigil/internal/chaos"
	"github.com/nawedy/vigil/internal/cost"
	"github.com/nawedy/vigil/internal/metrics"
	"github.com/nawedy/vigil/internal/reactor"
	"github.com/nawedy/vigil/internal/synthetic"
)

// Store is the durable persistence surface for the monitoring pipeline.
// It unions the narrow interfaces the domain packages consume
// (cost.Ledger, synthetic.History, reactor.IncidentStore,
// chaos.EventStore) with metric history and its query methods.
type Store interface {
	// Metric history
	StoreHealthSnapshot(batch []metrics.ServiceHealth) error
	MetricRows(filter MetricFilter) ([]MetricRow, error)

	// Cost ledger
	StoreCostEntries(entries []cost.Breakdown) error
	CostEntriesBetween(service string, start, end time.Time) ([]cost.Breakdown, error)
	AllCostEntriesBetween(start, end time.Time) ([]cost.Breakdown, error)
	StoreCostAlert(alert cost.Alert) error
	CostAlertsSince(since time.Time) ([]cost.Alert, error)

	// Synthetic check history
	StoreCheckResult(result synthetic.Result) error
	CheckResultsSince(name string, since time.Time) ([]synthetic.Result, error)

	// Incidents
	StoreIncident(incident reactor.Incident) error
	IncidentsSince(since time.Time) ([]reactor.Incident, error)

	// Chaos events
	StoreChaosEvent(event chaos.Event) error
	ChaosEventsSince(since time.Time) ([]chaos.Event, error)

	Close() error
}

// MetricFilter defines filtering options for metric history queries
type MetricFilter struct {
	Service   string
	Metric    string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// MetricRow is one persisted metric observation
type MetricRow struct {
	ID        int64
	Service   string
	Metric    string
	Value     float64
	Timestamp time.Time
	Tags      map[string]string
	CreatedAt time.Time
}
