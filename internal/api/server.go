package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nawedy/vigil/internal/chaos"
	"github.com/nawedy/vigil/internal/cost"
	"github.com/nawedy/vigil/internal/loadgen"
	"github.com/nawedy/vigil/internal/metrics"
	"github.com/nawedy/vigil/internal/monitor"
	"github.com/nawedy/vigil/internal/storage"
	"github.com/nawedy/vigil/internal/synthetic"
)

// Server is the HTTP API server
type Server struct {
	monitor      *monitor.Monitor
	tracker      *cost.Tracker
	registry     *synthetic.Registry
	runner       *synthetic.Runner
	orchestrator *chaos.Orchestrator
	store        storage.Store
	server       *http.Server
}

// NewServer creates a new API server. tracker, runner, orchestrator, and
// store are optional; their endpoints report 503 when absent.
func NewServer(mon *monitor.Monitor, tracker *cost.Tracker, registry *synthetic.Registry, runner *synthetic.Runner, orchestrator *chaos.Orchestrator, store storage.Store, addr string) *Server {
	s := &Server{
		monitor:      mon,
		tracker:      tracker,
		registry:     registry,
		runner:       runner,
		orchestrator: orchestrator,
		store:        store,
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	// Service health endpoints
	mux.HandleFunc("/v1/health", s.handleHealthOverview)
	mux.HandleFunc("/v1/health/", s.handleServiceHealth)
	mux.HandleFunc("/v1/metrics/history", s.handleMetricHistory)

	// Cost endpoints
	mux.HandleFunc("/v1/costs/report", s.handleCostReport)
	mux.HandleFunc("/v1/costs/alerts", s.handleCostAlerts)
	mux.HandleFunc("/v1/costs/forecast", s.handleCostForecast)
	mux.HandleFunc("/v1/costs/recommendations", s.handleCostRecommendations)

	// Synthetic check endpoints
	mux.HandleFunc("/v1/checks", s.handleCheckList)
	mux.HandleFunc("/v1/checks/run", s.handleCheckRun)
	mux.HandleFunc("/v1/checks/", s.handleCheckStats)

	// Chaos endpoints
	mux.HandleFunc("/v1/chaos/start", s.handleChaosStart)
	mux.HandleFunc("/v1/chaos/stop", s.handleChaosStop)
	mux.HandleFunc("/v1/chaos/report", s.handleChaosReport)

	// Prometheus exposition
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.server.Shutdown(ctx)
}

// Handler exposes the configured handler (for testing)
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady handles GET /readyz
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := s.monitor.Snapshot()

	ready := len(snapshot) > 0
	reasons := []string{}
	if !ready {
		reasons = append(reasons, "no monitoring cycle completed yet")
	}

	response := ReadyResponse{
		Ready:            ready,
		ServicesObserved: len(snapshot),
		Reasons:          reasons,
	}
	if s.registry != nil {
		response.ChecksLoaded = s.registry.Size()
	}
	if s.runner != nil {
		response.ResultsCached = len(s.runner.CachedResults())
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, response)
}

// handleHealthOverview handles GET /v1/health
func (s *Server) handleHealthOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := s.monitor.Snapshot()

	// Overall status is the worst observed service status
	overall := metrics.StatusHealthy
	for _, health := range snapshot {
		if health.Status.Severity() > overall.Severity() {
			overall = health.Status
		}
	}

	respondJSON(w, http.StatusOK, OverviewResponse{
		Status:   overall,
		Services: snapshot,
	})
}

// handleServiceHealth handles GET /v1/health/{service}
func (s *Server) handleServiceHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	service := strings.TrimPrefix(r.URL.Path, "/v1/health/")
	if service == "" {
		respondError(w, http.StatusBadRequest, "service name required")
		return
	}

	health, ok := s.monitor.ServiceSnapshot(service)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("service not found: %s", service))
		return
	}

	respondJSON(w, http.StatusOK, health)
}

// handleMetricHistory handles GET /v1/metrics/history
func (s *Server) handleMetricHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "metric history storage not configured")
		return
	}

	query := r.URL.Query()
	filter := storage.MetricFilter{
		Service: query.Get("service"),
		Metric:  query.Get("metric"),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	if startTimeStr := query.Get("startTime"); startTimeStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			filter.StartTime = &startTime
		}
	}

	if endTimeStr := query.Get("endTime"); endTimeStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			filter.EndTime = &endTime
		}
	}

	rows, err := s.store.MetricRows(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query metrics: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, MetricHistoryResponse{Rows: rows, Total: len(rows)})
}

// handleCostReport handles GET /v1/costs/report
func (s *Server) handleCostReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.tracker == nil {
		respondError(w, http.StatusServiceUnavailable, "cost tracking not configured")
		return
	}

	// Default to the trailing 30 days
	end := time.Now()
	start := end.AddDate(0, 0, -30)

	query := r.URL.Query()
	if startStr := query.Get("startDate"); startStr != "" {
		parsed, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid startDate: %v", err))
			return
		}
		start = parsed
	}
	if endStr := query.Get("endDate"); endStr != "" {
		parsed, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid endDate: %v", err))
			return
		}
		end = parsed
	}

	report, err := s.tracker.GetCostReport(start, end)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build cost report: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, CostReportResponse{Report: report})
}

// handleCostAlerts handles GET /v1/costs/alerts
func (s *Server) handleCostAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.tracker == nil {
		respondError(w, http.StatusServiceUnavailable, "cost tracking not configured")
		return
	}

	since := time.Now().AddDate(0, 0, -7)
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid since: %v", err))
			return
		}
		since = parsed
	}

	alerts, err := s.tracker.CostAlertsSince(since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query cost alerts: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, CostAlertsResponse{Alerts: alerts, Total: len(alerts)})
}

// handleCostForecast handles GET /v1/costs/forecast
func (s *Server) handleCostForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.tracker == nil {
		respondError(w, http.StatusServiceUnavailable, "cost tracking not configured")
		return
	}

	days := 7
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	forecast, err := s.tracker.GetForecastedCosts(r.Context(), days)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to forecast costs: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, ForecastResponse{Days: days, Forecast: forecast})
}

// handleCostRecommendations handles GET /v1/costs/recommendations
func (s *Server) handleCostRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.tracker == nil {
		respondError(w, http.StatusServiceUnavailable, "cost tracking not configured")
		return
	}

	recommendations, err := s.tracker.GetOptimizationRecommendations(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build recommendations: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, RecommendationsResponse{Recommendations: recommendations})
}

// handleCheckList handles GET /v1/checks
func (s *Server) handleCheckList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.registry == nil {
		respondError(w, http.StatusServiceUnavailable, "synthetic checks not configured")
		return
	}

	checks := s.registry.List()
	summaries := make([]CheckSummary, 0, len(checks))
	for _, check := range checks {
		summary := CheckSummary{
			Name:     check.Name,
			Endpoint: check.Endpoint,
			Method:   check.Method,
		}
		if s.runner != nil {
			if result, ok := s.runner.LatestResult(check.Name); ok {
				summary.LastResult = &result
			}
		}
		summaries = append(summaries, summary)
	}

	respondJSON(w, http.StatusOK, CheckListResponse{Checks: summaries, Total: len(summaries)})
}

// handleCheckRun handles POST /v1/checks/run
func (s *Server) handleCheckRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "synthetic checks not configured")
		return
	}

	results := s.runner.RunChecks(r.Context())
	respondJSON(w, http.StatusOK, CheckRunResponse{Results: results, Total: len(results)})
}

// handleCheckStats handles GET /v1/checks/{name}/stats
func (s *Server) handleCheckStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "synthetic checks not configured")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/checks/")
	name, ok := strings.CutSuffix(path, "/stats")
	if !ok || name == "" {
		respondError(w, http.StatusBadRequest, "invalid path format, expected /v1/checks/{name}/stats")
		return
	}

	stats, err := s.runner.GetCheckStats(name)
	if err != nil {
		if errors.Is(err, synthetic.ErrCheckNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("check not found: %s", name))
			return
		}
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to compute stats: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// handleChaosStart handles POST /v1/chaos/start
func (s *Server) handleChaosStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.orchestrator == nil {
		respondError(w, http.StatusServiceUnavailable, "chaos testing not configured")
		return
	}

	var req ChaosStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	cfg := chaos.Config{Intensity: chaos.Intensity(req.Intensity)}
	if req.Load != nil {
		if req.Load.URL == "" || req.Load.RatePerSecond <= 0 {
			respondError(w, http.StatusBadRequest, "load requires url and a positive ratePerSecond")
			return
		}

		method := req.Load.Method
		if method == "" {
			method = http.MethodGet
		}

		cfg.Load = &loadgen.Profile{
			RatePerSecond: req.Load.RatePerSecond,
			Duration:      time.Duration(req.Load.DurationSeconds) * time.Second,
			Targets:       []loadgen.Target{{Method: method, URL: req.Load.URL}},
		}
	}

	if err := s.orchestrator.StartChaosTest(cfg); err != nil {
		if errors.Is(err, chaos.ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, ChaosStartResponse{
		Started:   true,
		Intensity: req.Intensity,
		StartedAt: time.Now(),
	})
}

// handleChaosStop handles POST /v1/chaos/stop
func (s *Server) handleChaosStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.orchestrator == nil {
		respondError(w, http.StatusServiceUnavailable, "chaos testing not configured")
		return
	}

	experiments, err := s.orchestrator.StopChaosTest()
	if err != nil {
		if errors.Is(err, chaos.ErrNotRunning) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, ChaosStopResponse{Stopped: true, Experiments: experiments})
}

// handleChaosReport handles GET /v1/chaos/report
func (s *Server) handleChaosReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.orchestrator == nil {
		respondError(w, http.StatusServiceUnavailable, "chaos testing not configured")
		return
	}

	respondJSON(w, http.StatusOK, s.orchestrator.GenerateReport(r.Context()))
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
