package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPSource_SharedSnapshot(t *testing.T) {
	var fetches atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Write([]byte(`{"api": {"response_time": 120, "error_rate": 0.2}, "cache": {"hit_rate": 92}}`))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, 5*time.Second)
	fixed := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	source.SetClock(func() time.Time { return fixed })

	ctx := context.Background()

	value, err := source.ResponseTime(ctx)
	if err != nil {
		t.Fatalf("response time failed: %v", err)
	}
	if value != 120 {
		t.Errorf("expected 120, got %g", value)
	}

	if _, err := source.ErrorRate(ctx); err != nil {
		t.Fatalf("error rate failed: %v", err)
	}
	if value, err = source.HitRate(ctx); err != nil || value != 92 {
		t.Fatalf("hit rate: value=%g err=%v", value, err)
	}

	// All reads within the refresh window share one fetch
	if got := fetches.Load(); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}

	// A read past the window re-fetches
	fixed = fixed.Add(2 * time.Second)
	if _, err := source.ResponseTime(ctx); err != nil {
		t.Fatalf("refresh read failed: %v", err)
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("expected 2 fetches after window expiry, got %d", got)
	}
}

func TestHTTPSource_MissingMetric(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"api": {"response_time": 120}}`))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, 5*time.Second)
	if _, err := source.QueryTime(context.Background()); err == nil {
		t.Error("expected error for unreported metric")
	}
}

func TestHTTPSource_TargetFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, 5*time.Second)
	if _, err := source.ResponseTime(context.Background()); err == nil {
		t.Error("expected error for failing target")
	}
}
