package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/DelicateHug/DMaker-sub000/internal/reconciler"
)

// Slack posts notifications to a Slack incoming webhook
type Slack struct {
	webhookURL string
	client     *http.Client
}

// NewSlack creates a Slack sender with default HTTP client
func NewSlack(webhookURL string) *Slack {
	return NewSlackWithClient(webhookURL, &http.Client{Timeout: 10 * time.Second})
}

// NewSlackWithClient creates a Slack sender with custom HTTP client
func NewSlackWithClient(webhookURL string, client *http.Client) *Slack {
	return &Slack{webhookURL: webhookURL, client: client}
}

var slackEmoji = map[Severity]string{
	SeverityInfo:     ":information_source:",
	SeverityWarning:  ":warning:",
	SeverityCritical: ":rotating_light:",
	SeverityBlocking: ":octagonal_sign:",
}

// Send posts the notification to Slack
func (s *Slack) Send(ctx context.Context, n reconciler.Notification) error {
	blocks := []map[string]any{
		{
			"type": "section",
			"text": map[string]string{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*%s*\n%s", label(n), n.Message),
			},
		},
	}

	var fields []map[string]any
	if n.Project != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": "*project:* " + n.Project})
	}
	fields = append(fields, map[string]any{"type": "mrkdwn", "text": "*feature:* " + n.FeatureID})
	blocks = append(blocks, map[string]any{
		"type":     "context",
		"elements": fields,
	})

	payload := map[string]any{
		"text":   fmt.Sprintf("%s *[%s]* %s", slackEmoji[SeverityOf(n.Kind)], n.Kind, label(n)),
		"blocks": blocks,
	}

	if err := postJSON(ctx, s.client, s.webhookURL, payload); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	return nil
}

// Name returns "slack"
func (s *Slack) Name() string {
	return "slack"
}
