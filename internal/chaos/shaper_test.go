package chaos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTransportShaper_AppliesAndClearsLatency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	shaper := NewTransportShaper(nil)
	client := &http.Client{Transport: shaper}

	if err := shaper.SetLatency(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("SetLatency failed: %v", err)
	}

	started := time.Now()
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if elapsed := time.Since(started); elapsed < 50*time.Millisecond {
		t.Errorf("expected at least 50ms of added latency, took %v", elapsed)
	}

	if err := shaper.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	started = time.Now()
	resp, err = client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed after reset: %v", err)
	}
	resp.Body.Close()
	if elapsed := time.Since(started); elapsed >= 50*time.Millisecond {
		t.Errorf("expected latency cleared after reset, took %v", elapsed)
	}
}

func TestTransportShaper_DelayHonorsCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	shaper := NewTransportShaper(nil)
	shaper.SetLatency(context.Background(), 10*time.Second)
	client := &http.Client{Transport: shaper}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	started := time.Now()
	if _, err := client.Do(req); err == nil {
		t.Fatal("expected cancellation error during delay")
	}
	if elapsed := time.Since(started); elapsed >= time.Second {
		t.Errorf("cancellation should interrupt the delay, took %v", elapsed)
	}
}

func TestNetworkInjector_UsesShaper(t *testing.T) {
	shaper := NewTransportShaper(nil)
	injector := NewNetworkInjector(shaper)

	if _, err := injector.Inject(context.Background(), IntensityLow); err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	shaper.mu.Lock()
	delay := shaper.delay
	shaper.mu.Unlock()
	if delay != 100*time.Millisecond {
		t.Errorf("expected 100ms latency at low intensity, got %v", delay)
	}

	if err := injector.Recover(context.Background()); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	shaper.mu.Lock()
	delay = shaper.delay
	shaper.mu.Unlock()
	if delay != 0 {
		t.Errorf("expected latency cleared on recovery, got %v", delay)
	}
}
