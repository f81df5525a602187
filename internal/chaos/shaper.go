package chaos

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// TransportShaper is the in-process Shaper backend. It wraps an HTTP
// transport and delays every request routed through it while a latency
// fault is active. Deployments with real traffic control (tc/netem, a
// service-mesh fault policy) substitute their own Shaper.
type TransportShaper struct {
	mu    sync.Mutex
	delay time.Duration
	next  http.RoundTripper
}

// NewTransportShaper wraps the given transport. A nil transport falls
// back to http.DefaultTransport.
func NewTransportShaper(next http.RoundTripper) *TransportShaper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &TransportShaper{next: next}
}

// SetLatency applies the given delay to subsequent requests
func (t *TransportShaper) SetLatency(ctx context.Context, delay time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = delay
	return nil
}

// Reset removes any active delay
func (t *TransportShaper) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = 0
	return nil
}

// RoundTrip delays the request by the active latency, then delegates.
// The delay honors request cancellation.
func (t *TransportShaper) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	delay := t.delay
	t.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	return t.next.RoundTrip(req)
}
