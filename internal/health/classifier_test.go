package health

import (
	"reflect"
	"testing"
	"time"

	"github.com/nawedy/vigil/internal/metrics"
)

func reading(service, name string, value float64, warning, critical float64) metrics.Reading {
	return metrics.Reading{
		Name:      name,
		Value:     value,
		Timestamp: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Tags:      map[string]string{"service": service},
		Thresholds: metrics.Thresholds{
			Warning:  warning,
			Critical: critical,
		},
	}
}

func TestClassify_StatusDerivation(t *testing.T) {
	tests := []struct {
		name       string
		readings   []metrics.Reading
		wantStatus metrics.Status
		wantIssues int
	}{
		{
			name: "all below warning is healthy",
			readings: []metrics.Reading{
				reading("api", "response_time", 100, 200, 500),
				reading("api", "error_rate", 0.1, 1, 5),
			},
			wantStatus: metrics.StatusHealthy,
			wantIssues: 0,
		},
		{
			name: "warning breach is degraded",
			readings: []metrics.Reading{
				reading("api", "response_time", 250, 200, 500),
			},
			wantStatus: metrics.StatusDegraded,
			wantIssues: 1,
		},
		{
			name: "critical breach is unhealthy regardless of siblings",
			readings: []metrics.Reading{
				reading("api", "response_time", 100, 200, 500),
				reading("api", "error_rate", 7, 1, 5),
				reading("api", "request_rate", 100, 5000, 10000),
			},
			wantStatus: metrics.StatusUnhealthy,
			wantIssues: 1,
		},
		{
			name: "critical after warning still wins",
			readings: []metrics.Reading{
				reading("api", "response_time", 250, 200, 500),
				reading("api", "error_rate", 7, 1, 5),
			},
			wantStatus: metrics.StatusUnhealthy,
			wantIssues: 2,
		},
		{
			name: "value at warning boundary is degraded",
			readings: []metrics.Reading{
				reading("api", "response_time", 200, 200, 500),
			},
			wantStatus: metrics.StatusDegraded,
			wantIssues: 1,
		},
		{
			name: "value at critical boundary is unhealthy",
			readings: []metrics.Reading{
				reading("api", "response_time", 500, 200, 500),
			},
			wantStatus: metrics.StatusUnhealthy,
			wantIssues: 1,
		},
	}

	classifier := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifier.Classify(tt.readings)
			if len(result) != 1 {
				t.Fatalf("expected 1 service health, got %d", len(result))
			}

			if result[0].Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, result[0].Status)
			}
			if len(result[0].Issues) != tt.wantIssues {
				t.Errorf("expected %d issues, got %d: %v", tt.wantIssues, len(result[0].Issues), result[0].Issues)
			}
		})
	}
}

func TestClassify_CriticalNotReportedAsWarning(t *testing.T) {
	classifier := NewClassifier()
	result := classifier.Classify([]metrics.Reading{
		reading("api", "response_time", 600, 200, 500),
	})

	if len(result) != 1 {
		t.Fatalf("expected 1 service health, got %d", len(result))
	}

	want := "Critical: response_time is 600 (threshold: 500)"
	if len(result[0].Issues) != 1 || result[0].Issues[0] != want {
		t.Errorf("expected issue %q, got %v", want, result[0].Issues)
	}
	if result[0].Status != metrics.StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", result[0].Status)
	}
	if result[0].Service != "api" {
		t.Errorf("expected service api, got %s", result[0].Service)
	}
}

func TestClassify_GroupsByServiceTag(t *testing.T) {
	classifier := NewClassifier()
	result := classifier.Classify([]metrics.Reading{
		reading("database", "query_time", 400, 100, 300),
		reading("api", "response_time", 100, 200, 500),
		reading("cache", "miss_rate", 30, 20, 50),
	})

	if len(result) != 3 {
		t.Fatalf("expected 3 services, got %d", len(result))
	}

	// Sorted by service name
	wantOrder := []string{"api", "cache", "database"}
	wantStatus := []metrics.Status{metrics.StatusHealthy, metrics.StatusDegraded, metrics.StatusUnhealthy}
	for i := range result {
		if result[i].Service != wantOrder[i] {
			t.Errorf("position %d: expected %s, got %s", i, wantOrder[i], result[i].Service)
		}
		if result[i].Status != wantStatus[i] {
			t.Errorf("%s: expected %s, got %s", result[i].Service, wantStatus[i], result[i].Status)
		}
	}
}

func TestClassify_Recommendations(t *testing.T) {
	classifier := NewClassifier()

	t.Run("known metric uses table entry", func(t *testing.T) {
		result := classifier.Classify([]metrics.Reading{
			reading("database", "query_time", 400, 100, 300),
		})
		want := []string{"optimize slow queries and add indexes"}
		if !reflect.DeepEqual(result[0].Recommendations, want) {
			t.Errorf("expected %v, got %v", want, result[0].Recommendations)
		}
	})

	t.Run("unknown metric falls back to generic advice", func(t *testing.T) {
		result := classifier.Classify([]metrics.Reading{
			reading("api", "goroutine_count", 9000, 1000, 5000),
		})
		if len(result[0].Recommendations) != 1 {
			t.Fatalf("expected 1 recommendation, got %v", result[0].Recommendations)
		}
		if result[0].Recommendations[0] != "investigate elevated goroutine_count on api" {
			t.Errorf("unexpected fallback: %q", result[0].Recommendations[0])
		}
	})

	t.Run("recommendations deduplicated per service", func(t *testing.T) {
		classifier := NewClassifier()
		classifier.SetRecommendation("api", "response_time", "scale out")
		classifier.SetRecommendation("api", "error_rate", "scale out")

		result := classifier.Classify([]metrics.Reading{
			reading("api", "response_time", 600, 200, 500),
			reading("api", "error_rate", 7, 1, 5),
		})
		if len(result[0].Recommendations) != 1 {
			t.Errorf("expected deduplicated recommendations, got %v", result[0].Recommendations)
		}
	})
}

func TestClassify_Deterministic(t *testing.T) {
	classifier := NewClassifier()
	input := []metrics.Reading{
		reading("api", "response_time", 600, 200, 500),
		reading("database", "query_time", 150, 100, 300),
		reading("cache", "memory_usage", 40, 75, 90),
	}

	first := classifier.Classify(input)
	for i := 0; i < 10; i++ {
		if got := classifier.Classify(input); !reflect.DeepEqual(got, first) {
			t.Fatalf("classification not deterministic: run %d differs", i)
		}
	}
}

func TestClassify_IgnoresUntaggedAndUnthresholded(t *testing.T) {
	classifier := NewClassifier()

	untagged := metrics.Reading{Name: "response_time", Value: 600}
	unthresholded := reading("api", "uptime", 123456, 0, 0)

	result := classifier.Classify([]metrics.Reading{untagged, unthresholded})
	if len(result) != 1 {
		t.Fatalf("expected 1 service (untagged dropped), got %d", len(result))
	}
	if result[0].Status != metrics.StatusHealthy || len(result[0].Issues) != 0 {
		t.Errorf("unthresholded reading should not breach: %+v", result[0])
	}
}
