// Package dashboard exports the latest health view to Prometheus so an
// external dashboard can graph it. Gauges always reflect the most
// recent monitoring cycle.
package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nawedy/vigil/internal/metrics"
)

// Sink publishes service health to a Prometheus registry
type Sink struct {
	metricValue *prometheus.GaugeVec
	status      *prometheus.GaugeVec
	issueCount  *prometheus.GaugeVec
}

// NewSink creates a sink and registers its collectors. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func NewSink(registerer prometheus.Registerer) *Sink {
	s := &Sink{
		metricValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vigil_service_metric_value",
			Help: "Latest observed value for a service metric.",
		}, []string{"service", "metric"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vigil_service_status",
			Help: "Derived service status: 0=healthy, 1=degraded, 2=unhealthy.",
		}, []string{"service"}),
		issueCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vigil_service_issues",
			Help: "Number of open issues detected for a service.",
		}, []string{"service"}),
	}

	registerer.MustRegister(s.metricValue, s.status, s.issueCount)
	return s
}

// Publish replaces the exported view with the given classification
// batch. Services absent from the batch are removed so stale series do
// not linger after a source disappears.
func (s *Sink) Publish(batch []metrics.ServiceHealth) {
	s.metricValue.Reset()
	s.status.Reset()
	s.issueCount.Reset()

	for _, health := range batch {
		s.status.WithLabelValues(health.Service).Set(float64(health.Status.Severity()))
		s.issueCount.WithLabelValues(health.Service).Set(float64(len(health.Issues)))

		for _, reading := range health.Metrics {
			s.metricValue.WithLabelValues(health.Service, reading.Name).Set(reading.Value)
		}
	}
}
