package reactor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// WebhookNotifier posts incident alerts to an HTTP webhook. Dispatch
// runs behind a circuit breaker so a dead alerting endpoint stops
// consuming request timeouts on every monitoring cycle.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewWebhookNotifier creates a webhook notifier for the given URL
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "alert-webhook",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// alertPayload is the webhook body
type alertPayload struct {
	IncidentID string   `json:"incidentId"`
	Service    string   `json:"service"`
	Status     string   `json:"status"`
	Issues     []string `json:"issues"`
	Timestamp  string   `json:"timestamp"`
}

// Notify dispatches one alert. Returns the breaker's error when the
// circuit is open.
func (n *WebhookNotifier) Notify(ctx context.Context, incident Incident) error {
	payload := alertPayload{
		IncidentID: incident.ID,
		Service:    incident.Service,
		Status:     string(incident.Status),
		Issues:     incident.Issues,
		Timestamp:  incident.CreatedAt.UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	_, err = n.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("webhook request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("webhook returned %d", resp.StatusCode)
		}
		return nil, nil
	})

	return err
}
