package cost

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// defaultAlertFactor is the trailing-average multiple above which an
// alert fires. Configurable; the strict inequality is not.
const defaultAlertFactor = 1.5

// trailingWindow is the look-back period for the anomaly baseline
const trailingWindow = 7 * 24 * time.Hour

// Source produces cost entries for one billing concern
type Source interface {
	Name() string
	Collect(ctx context.Context, start, end time.Time) ([]Breakdown, error)
}

// Ledger is the append-only persistence the tracker writes to.
// Implemented by the sqlite store.
type Ledger interface {
	StoreCostEntries(entries []Breakdown) error
	CostEntriesBetween(service string, start, end time.Time) ([]Breakdown, error)
	AllCostEntriesBetween(start, end time.Time) ([]Breakdown, error)
	StoreCostAlert(alert Alert) error
	CostAlertsSince(since time.Time) ([]Alert, error)
}

// Forecaster projects future spend, typically backed by a cloud
// billing forecast API
type Forecaster interface {
	Forecast(ctx context.Context, days int) ([]ForecastPoint, error)
}

// Utilization is a point-in-time resource utilization snapshot used for
// optimization advice
type Utilization struct {
	Service       string
	CPUPercent    float64
	MemoryPercent float64
}

// UtilizationSource reports current resource utilization per service
type UtilizationSource interface {
	Current(ctx context.Context) ([]Utilization, error)
}

// Tracker runs the billing pipeline: collect entries from every source
// concurrently, persist them, then compare each against its service's
// trailing average.
type Tracker struct {
	sources     []Source
	ledger      Ledger
	forecaster  Forecaster
	utilization UtilizationSource
	alertFactor float64
	now         func() time.Time
}

// NewTracker creates a cost tracker. A factor <= 1 falls back to the default.
func NewTracker(sources []Source, ledger Ledger, alertFactor float64) *Tracker {
	if alertFactor <= 1 {
		alertFactor = defaultAlertFactor
	}
	return &Tracker{
		sources:     sources,
		ledger:      ledger,
		alertFactor: alertFactor,
		now:         time.Now,
	}
}

// SetForecaster sets the external forecasting backend (optional)
func (t *Tracker) SetForecaster(f Forecaster) {
	t.forecaster = f
}

// SetUtilizationSource sets the utilization backend for optimization advice (optional)
func (t *Tracker) SetUtilizationSource(u UtilizationSource) {
	t.utilization = u
}

// SetClock overrides the tracker's clock (for testing only)
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// TrackCosts runs one collection cycle covering the preceding interval.
// Source failures are logged and skipped; entries from healthy sources
// are still persisted and checked for anomalies.
func (t *Tracker) TrackCosts(ctx context.Context, interval time.Duration) ([]Alert, error) {
	end := t.now()
	start := end.Add(-interval)

	entries := t.collect(ctx, start, end)
	if len(entries) == 0 {
		return nil, nil
	}

	if err := t.ledger.StoreCostEntries(entries); err != nil {
		return nil, fmt.Errorf("failed to persist cost entries: %w", err)
	}

	var alerts []Alert
	for _, entry := range entries {
		alert, ok := t.checkAnomaly(entry)
		if !ok {
			continue
		}

		if err := t.ledger.StoreCostAlert(alert); err != nil {
			log.Printf("Warning: failed to store cost alert for %s: %v", alert.Service, err)
		}
		alerts = append(alerts, alert)
	}

	return alerts, nil
}

// collect fans out to every billing source concurrently
func (t *Tracker) collect(ctx context.Context, start, end time.Time) []Breakdown {
	var mu sync.Mutex
	var entries []Breakdown
	var wg sync.WaitGroup

	for _, source := range t.sources {
		source := source
		wg.Add(1)
		go func() {
			defer wg.Done()

			collected, err := source.Collect(ctx, start, end)
			if err != nil {
				log.Printf("Warning: cost source %s failed: %v", source.Name(), err)
				return
			}

			mu.Lock()
			entries = append(entries, collected...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Stable order regardless of source completion order
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Service < entries[j].Service
	})

	return entries
}

// checkAnomaly compares an entry against its service's trailing average.
// The alert fires only on a strict "greater than" so an entry exactly at
// factor x average does not trigger.
func (t *Tracker) checkAnomaly(entry Breakdown) (Alert, bool) {
	history, err := t.ledger.CostEntriesBetween(entry.Service, entry.StartDate.Add(-trailingWindow), entry.StartDate)
	if err != nil {
		log.Printf("Warning: failed to load cost history for %s: %v", entry.Service, err)
		return Alert{}, false
	}

	if len(history) == 0 {
		return Alert{}, false
	}

	var sum float64
	for _, h := range history {
		sum += h.Amount
	}
	average := sum / float64(len(history))
	if average <= 0 {
		return Alert{}, false
	}

	threshold := t.alertFactor * average
	if entry.Amount <= threshold {
		return Alert{}, false
	}

	return Alert{
		Service:            entry.Service,
		Threshold:          threshold,
		CurrentAmount:      entry.Amount,
		PercentageIncrease: (entry.Amount - average) / average * 100,
		Timestamp:          t.now(),
	}, true
}

// GetCostReport aggregates persisted entries over a time range
func (t *Tracker) GetCostReport(start, end time.Time) (*Report, error) {
	entries, err := t.ledger.AllCostEntriesBetween(start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load cost entries: %w", err)
	}

	report := &Report{
		StartDate: start,
		EndDate:   end,
	}

	perService := make(map[string]*ServiceCosts)
	perDay := make(map[time.Time]float64)

	for _, entry := range entries {
		report.Total += entry.Amount

		sc, ok := perService[entry.Service]
		if !ok {
			sc = &ServiceCosts{
				Service: entry.Service,
				Min:     entry.Amount,
				Max:     entry.Amount,
			}
			perService[entry.Service] = sc
		}
		sc.Total += entry.Amount
		sc.Entries++
		if entry.Amount < sc.Min {
			sc.Min = entry.Amount
		}
		if entry.Amount > sc.Max {
			sc.Max = entry.Amount
		}

		day := entry.StartDate.UTC().Truncate(24 * time.Hour)
		perDay[day] += entry.Amount
	}

	for _, sc := range perService {
		sc.Average = sc.Total / float64(sc.Entries)
		report.Services = append(report.Services, *sc)
	}
	sort.Slice(report.Services, func(i, j int) bool {
		return report.Services[i].Service < report.Services[j].Service
	})

	for day, total := range perDay {
		report.Daily = append(report.Daily, DailyCost{Date: day, Total: total})
	}
	sort.Slice(report.Daily, func(i, j int) bool {
		return report.Daily[i].Date.Before(report.Daily[j].Date)
	})

	return report, nil
}

// GetForecastedCosts delegates to the external forecasting backend
func (t *Tracker) GetForecastedCosts(ctx context.Context, days int) ([]ForecastPoint, error) {
	if t.forecaster == nil {
		return nil, fmt.Errorf("no forecaster configured")
	}
	if days <= 0 {
		return nil, fmt.Errorf("forecast days must be positive, got %d", days)
	}
	return t.forecaster.Forecast(ctx, days)
}

// GetOptimizationRecommendations returns advisory strings keyed on
// current resource utilization
func (t *Tracker) GetOptimizationRecommendations(ctx context.Context) ([]string, error) {
	if t.utilization == nil {
		return nil, fmt.Errorf("no utilization source configured")
	}

	snapshots, err := t.utilization.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read utilization: %w", err)
	}

	var advice []string
	for _, u := range snapshots {
		switch {
		case u.CPUPercent < 30 && u.MemoryPercent < 30:
			advice = append(advice,
				fmt.Sprintf("%s: CPU %.0f%% and memory %.0f%% utilized; consider downsizing the instance class", u.Service, u.CPUPercent, u.MemoryPercent))
		case u.CPUPercent < 30:
			advice = append(advice,
				fmt.Sprintf("%s: CPU %.0f%% utilized; consider a smaller CPU allocation", u.Service, u.CPUPercent))
		case u.MemoryPercent < 30:
			advice = append(advice,
				fmt.Sprintf("%s: memory %.0f%% utilized; consider reducing reserved memory", u.Service, u.MemoryPercent))
		case u.CPUPercent > 85 || u.MemoryPercent > 85:
			advice = append(advice,
				fmt.Sprintf("%s: running hot (CPU %.0f%%, memory %.0f%%); upsizing may reduce error-driven retries", u.Service, u.CPUPercent, u.MemoryPercent))
		}
	}

	return advice, nil
}

// CostAlertsSince returns alerts recorded after the given time
func (t *Tracker) CostAlertsSince(since time.Time) ([]Alert, error) {
	return t.ledger.CostAlertsSince(since)
}
