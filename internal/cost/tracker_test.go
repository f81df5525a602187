package cost

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

// memoryLedger is an in-memory Ledger for tracker tests
type memoryLedger struct {
	entries []Breakdown
	alerts  []Alert
}

func (m *memoryLedger) StoreCostEntries(entries []Breakdown) error {
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memoryLedger) CostEntriesBetween(service string, start, end time.Time) ([]Breakdown, error) {
	var out []Breakdown
	for _, e := range m.entries {
		if e.Service != service {
			continue
		}
		if !e.StartDate.Before(start) && e.StartDate.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryLedger) AllCostEntriesBetween(start, end time.Time) ([]Breakdown, error) {
	var out []Breakdown
	for _, e := range m.entries {
		if !e.StartDate.Before(start) && !e.StartDate.After(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryLedger) StoreCostAlert(alert Alert) error {
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *memoryLedger) CostAlertsSince(since time.Time) ([]Alert, error) {
	return m.alerts, nil
}

// staticSource returns a fixed entry for a service
type staticSource struct {
	name    string
	service string
	amount  float64
	err     error
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Collect(ctx context.Context, start, end time.Time) ([]Breakdown, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []Breakdown{{
		Service:   s.service,
		Amount:    s.amount,
		Unit:      "USD",
		StartDate: start,
		EndDate:   end,
	}}, nil
}

// seedHistory writes seven daily entries of the given amount ending just
// before "day" for the service
func seedHistory(ledger *memoryLedger, service string, amount float64, day time.Time) {
	for i := 7; i >= 1; i-- {
		start := day.Add(-time.Duration(i) * 24 * time.Hour)
		ledger.entries = append(ledger.entries, Breakdown{
			Service:   service,
			Amount:    amount,
			Unit:      "USD",
			StartDate: start,
			EndDate:   start.Add(24 * time.Hour),
		})
	}
}

func TestTrackCosts_AnomalyDetection(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		newAmount    float64
		wantAlert    bool
		wantIncrease float64
	}{
		{
			name:         "60 percent jump triggers alert",
			newAmount:    160,
			wantAlert:    true,
			wantIncrease: 60,
		},
		{
			name:      "40 percent jump stays quiet",
			newAmount: 140,
			wantAlert: false,
		},
		{
			name:      "exactly 1.5x does not trigger",
			newAmount: 150,
			wantAlert: false,
		},
		{
			name:      "just above 1.5x triggers",
			newAmount: 150.01,
			wantAlert: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &memoryLedger{}
			seedHistory(ledger, "api", 100, day)

			source := &staticSource{name: "billing", service: "api", amount: tt.newAmount}
			tracker := NewTracker([]Source{source}, ledger, 1.5)
			tracker.SetClock(func() time.Time { return day.Add(24 * time.Hour) })

			alerts, err := tracker.TrackCosts(context.Background(), 24*time.Hour)
			if err != nil {
				t.Fatalf("TrackCosts failed: %v", err)
			}

			if tt.wantAlert {
				if len(alerts) != 1 {
					t.Fatalf("expected 1 alert, got %d", len(alerts))
				}
				alert := alerts[0]
				if alert.Service != "api" {
					t.Errorf("expected service api, got %s", alert.Service)
				}
				if alert.CurrentAmount != tt.newAmount {
					t.Errorf("expected current amount %g, got %g", tt.newAmount, alert.CurrentAmount)
				}
				if tt.wantIncrease != 0 && math.Abs(alert.PercentageIncrease-tt.wantIncrease) > 0.01 {
					t.Errorf("expected increase ~%g%%, got %g%%", tt.wantIncrease, alert.PercentageIncrease)
				}
				if len(ledger.alerts) != 1 {
					t.Errorf("alert not persisted to ledger")
				}
			} else if len(alerts) != 0 {
				t.Fatalf("expected no alerts, got %v", alerts)
			}
		})
	}
}

func TestTrackCosts_NoHistoryNoAlert(t *testing.T) {
	ledger := &memoryLedger{}
	source := &staticSource{name: "billing", service: "api", amount: 10000}
	tracker := NewTracker([]Source{source}, ledger, 1.5)

	alerts, err := tracker.TrackCosts(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("TrackCosts failed: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("first-ever entry should not alert, got %v", alerts)
	}
	if len(ledger.entries) != 1 {
		t.Errorf("entry should still be persisted, got %d", len(ledger.entries))
	}
}

func TestTrackCosts_SourceFailureIsolated(t *testing.T) {
	ledger := &memoryLedger{}
	healthy := &staticSource{name: "billing", service: "api", amount: 50}
	broken := &staticSource{name: "cdn", err: errors.New("billing API unreachable")}

	tracker := NewTracker([]Source{healthy, broken}, ledger, 1.5)

	if _, err := tracker.TrackCosts(context.Background(), 24*time.Hour); err != nil {
		t.Fatalf("TrackCosts should tolerate a failed source: %v", err)
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("expected 1 entry from the healthy source, got %d", len(ledger.entries))
	}
	if ledger.entries[0].Service != "api" {
		t.Errorf("unexpected entry: %+v", ledger.entries[0])
	}
}

func TestGetCostReport(t *testing.T) {
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	ledger := &memoryLedger{}
	seedHistory(ledger, "api", 100, day.Add(7*24*time.Hour))
	seedHistory(ledger, "database", 40, day.Add(7*24*time.Hour))

	tracker := NewTracker(nil, ledger, 1.5)
	report, err := tracker.GetCostReport(day.Add(-time.Hour), day.Add(8*24*time.Hour))
	if err != nil {
		t.Fatalf("GetCostReport failed: %v", err)
	}

	if report.Total != 7*100+7*40 {
		t.Errorf("expected total %d, got %g", 7*100+7*40, report.Total)
	}
	if len(report.Services) != 2 {
		t.Fatalf("expected 2 services, got %d", len(report.Services))
	}

	api := report.Services[0]
	if api.Service != "api" || api.Total != 700 || api.Average != 100 || api.Min != 100 || api.Max != 100 {
		t.Errorf("unexpected api aggregate: %+v", api)
	}

	if len(report.Daily) != 7 {
		t.Errorf("expected 7 daily buckets, got %d", len(report.Daily))
	}
	for _, d := range report.Daily {
		if d.Total != 140 {
			t.Errorf("expected daily total 140, got %g on %v", d.Total, d.Date)
		}
	}
}

func TestGetOptimizationRecommendations(t *testing.T) {
	tracker := NewTracker(nil, &memoryLedger{}, 1.5)
	tracker.SetUtilizationSource(utilizationFunc(func(ctx context.Context) ([]Utilization, error) {
		return []Utilization{
			{Service: "api", CPUPercent: 20, MemoryPercent: 25},
			{Service: "database", CPUPercent: 60, MemoryPercent: 55},
			{Service: "cache", CPUPercent: 90, MemoryPercent: 70},
		}, nil
	}))

	advice, err := tracker.GetOptimizationRecommendations(context.Background())
	if err != nil {
		t.Fatalf("GetOptimizationRecommendations failed: %v", err)
	}

	// api underutilized, cache running hot, database in the normal band
	if len(advice) != 2 {
		t.Fatalf("expected 2 recommendations, got %d: %v", len(advice), advice)
	}
}

type utilizationFunc func(ctx context.Context) ([]Utilization, error)

func (f utilizationFunc) Current(ctx context.Context) ([]Utilization, error) {
	return f(ctx)
}
