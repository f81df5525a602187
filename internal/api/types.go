package api

import (
	"time"

	"github.com/nawedy/vigil/internal/chaos"
	"github.com/nawedy/vigil/internal/cost"
	"github.com/nawedy/vigil/internal/metrics"
	"github.com/nawedy/vigil/internal/storage"
	"github.com/nawedy/vigil/internal/synthetic"
)

// HealthResponse is the response for /healthz
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for /readyz
type ReadyResponse struct {
	Ready            bool     `json:"ready"`
	ServicesObserved int      `json:"servicesObserved"`
	ChecksLoaded     int      `json:"checksLoaded"`
	ResultsCached    int      `json:"resultsCached"`
	Reasons          []string `json:"reasons,omitempty"`
}

// OverviewResponse is the response for /v1/health
type OverviewResponse struct {
	Status   metrics.Status          `json:"status"`
	Services []metrics.ServiceHealth `json:"services"`
}

// MetricHistoryResponse is the response for /v1/metrics/history
type MetricHistoryResponse struct {
	Rows  []storage.MetricRow `json:"rows"`
	Total int                 `json:"total"`
}

// CostReportResponse wraps a cost report with its query range
type CostReportResponse struct {
	Report *cost.Report `json:"report"`
}

// CostAlertsResponse is the response for /v1/costs/alerts
type CostAlertsResponse struct {
	Alerts []cost.Alert `json:"alerts"`
	Total  int          `json:"total"`
}

// ForecastResponse is the response for /v1/costs/forecast
type ForecastResponse struct {
	Days     int                  `json:"days"`
	Forecast []cost.ForecastPoint `json:"forecast"`
}

// RecommendationsResponse is the response for /v1/costs/recommendations
type RecommendationsResponse struct {
	Recommendations []string `json:"recommendations"`
}

// CheckSummary is one registered check in /v1/checks
type CheckSummary struct {
	Name       string            `json:"name"`
	Endpoint   string            `json:"endpoint"`
	Method     string            `json:"method"`
	LastResult *synthetic.Result `json:"lastResult,omitempty"`
}

// CheckListResponse is the response for /v1/checks
type CheckListResponse struct {
	Checks []CheckSummary `json:"checks"`
	Total  int            `json:"total"`
}

// CheckRunResponse is the response for POST /v1/checks/run
type CheckRunResponse struct {
	Results []synthetic.Result `json:"results"`
	Total   int                `json:"total"`
}

// ChaosStartRequest is the request body for POST /v1/chaos/start
type ChaosStartRequest struct {
	Intensity string       `json:"intensity"`
	Load      *LoadRequest `json:"load,omitempty"`
}

// LoadRequest configures optional load generation during a chaos run
type LoadRequest struct {
	URL             string `json:"url"`
	Method          string `json:"method,omitempty"`
	RatePerSecond   int    `json:"ratePerSecond"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// ChaosStartResponse is the response for POST /v1/chaos/start
type ChaosStartResponse struct {
	Started   bool      `json:"started"`
	Intensity string    `json:"intensity"`
	StartedAt time.Time `json:"startedAt"`
}

// ChaosStopResponse is the response for POST /v1/chaos/stop
type ChaosStopResponse struct {
	Stopped     bool               `json:"stopped"`
	Experiments []chaos.Experiment `json:"experiments"`
}

// ErrorResponse is the standard error body
type ErrorResponse struct {
	Error string `json:"error"`
}
