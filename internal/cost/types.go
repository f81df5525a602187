package cost

import (
	"time"
)

// Breakdown is one append-only cost ledger entry, written once per
// collection cycle per service. Historical entries are never mutated.
type Breakdown struct {
	Service   string            `json:"service"`
	Amount    float64           `json:"amount"`
	Unit      string            `json:"unit"`
	StartDate time.Time         `json:"startDate"`
	EndDate   time.Time         `json:"endDate"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Alert is a write-once anomaly record, created when a cost entry
// exceeds the configured multiple of the trailing average.
type Alert struct {
	Service            string    `json:"service"`
	Threshold          float64   `json:"threshold"`
	CurrentAmount      float64   `json:"currentAmount"`
	PercentageIncrease float64   `json:"percentageIncrease"`
	Timestamp          time.Time `json:"timestamp"`
}

// ServiceCosts aggregates one service's entries over a report range
type ServiceCosts struct {
	Service string  `json:"service"`
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Entries int     `json:"entries"`
}

// DailyCost is the total cost for one calendar day
type DailyCost struct {
	Date  time.Time `json:"date"`
	Total float64   `json:"total"`
}

// Report summarizes costs over a time range
type Report struct {
	StartDate time.Time      `json:"startDate"`
	EndDate   time.Time      `json:"endDate"`
	Total     float64        `json:"total"`
	Services  []ServiceCosts `json:"services"`
	Daily     []DailyCost    `json:"daily"`
}

// ForecastPoint is one day of forecasted spend
type ForecastPoint struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}
