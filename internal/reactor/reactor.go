package reactor

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/nawedy/vigil/internal/metrics"
)

// Incident is a persisted record of a non-healthy service observation
type Incident struct {
	ID              string         `json:"id"`
	Service         string         `json:"service"`
	Status          metrics.Status `json:"status"`
	Issues          []string       `json:"issues"`
	Recommendations []string       `json:"recommendations"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// IncidentStore persists incident records. Implemented by the sqlite store.
type IncidentStore interface {
	StoreIncident(incident Incident) error
}

// Notifier dispatches alerts to an external channel
type Notifier interface {
	Notify(ctx context.Context, incident Incident) error
}

// Remediator is the auto-remediation hook invoked for non-healthy services
type Remediator interface {
	Remediate(ctx context.Context, health metrics.ServiceHealth) error
}

// RemediatorFunc adapts a function to the Remediator interface
type RemediatorFunc func(ctx context.Context, health metrics.ServiceHealth) error

func (f RemediatorFunc) Remediate(ctx context.Context, health metrics.ServiceHealth) error {
	return f(ctx, health)
}

// Reactor turns degraded and unhealthy classifications into incident
// records, alerts, and remediation attempts. The three actions are
// independent: a failure in one is logged and never blocks the others,
// since this runs on a best-effort monitoring cadence.
type Reactor struct {
	incidents  IncidentStore
	notifier   Notifier
	remediator Remediator
	now        func() time.Time
}

// NewReactor creates a reactor. Any collaborator may be nil, in which
// case the corresponding action is skipped.
func NewReactor(incidents IncidentStore, notifier Notifier, remediator Remediator) *Reactor {
	return &Reactor{
		incidents:  incidents,
		notifier:   notifier,
		remediator: remediator,
		now:        time.Now,
	}
}

// SetClock overrides the reactor's clock (for testing only)
func (r *Reactor) SetClock(now func() time.Time) {
	r.now = now
}

// React processes the current classification batch. Only non-healthy
// services produce actions.
func (r *Reactor) React(ctx context.Context, batch []metrics.ServiceHealth) {
	for _, health := range batch {
		if health.Status == metrics.StatusHealthy {
			continue
		}

		incident := Incident{
			ID:              uuid.NewString(),
			Service:         health.Service,
			Status:          health.Status,
			Issues:          health.Issues,
			Recommendations: health.Recommendations,
			CreatedAt:       r.now(),
		}

		if r.incidents != nil {
			if err := r.incidents.StoreIncident(incident); err != nil {
				log.Printf("Warning: failed to store incident for %s: %v", health.Service, err)
			}
		}

		if r.notifier != nil {
			if err := r.notifier.Notify(ctx, incident); err != nil {
				log.Printf("Warning: failed to dispatch alert for %s: %v", health.Service, err)
			}
		}

		if r.remediator != nil {
			if err := r.remediator.Remediate(ctx, health); err != nil {
				log.Printf("Warning: remediation failed for %s: %v", health.Service, err)
			}
		}
	}
}
