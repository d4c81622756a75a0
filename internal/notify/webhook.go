package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/DelicateHug/DMaker-sub000/internal/reconciler"
)

// WebhookPayload is the JSON structure sent to webhook endpoints
type WebhookPayload struct {
	Severity  string    `json:"severity"`
	Kind      string    `json:"kind"`
	FeatureID string    `json:"featureId"`
	Project   string    `json:"project,omitempty"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

// Webhook posts notifications to an HTTP endpoint as JSON
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook sender with default HTTP client
func NewWebhook(url string) *Webhook {
	return NewWebhookWithClient(url, &http.Client{Timeout: 10 * time.Second})
}

// NewWebhookWithClient creates a Webhook sender with custom HTTP client
func NewWebhookWithClient(url string, client *http.Client) *Webhook {
	return &Webhook{url: url, client: client}
}

// Send posts the notification as JSON to the webhook URL
func (w *Webhook) Send(ctx context.Context, n reconciler.Notification) error {
	return postJSON(ctx, w.client, w.url, WebhookPayload{
		Severity:  string(SeverityOf(n.Kind)),
		Kind:      string(n.Kind),
		FeatureID: n.FeatureID,
		Project:   n.Project,
		Title:     n.Title,
		Message:   n.Message,
		Time:      n.Time,
	})
}

// Name returns "webhook"
func (w *Webhook) Name() string {
	return "webhook"
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}
