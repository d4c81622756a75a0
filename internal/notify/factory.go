package notify

import (
	"fmt"
	"io"

	"github.com/DelicateHug/DMaker-sub000/internal/config"
	"github.com/DelicateHug/DMaker-sub000/internal/reconciler"
)

// FromConfig creates a Sender from configuration. Terminal output goes
// to out using format.
func FromConfig(cfg config.NotifyConfig, out io.Writer, format func(reconciler.Notification) string) (Sender, error) {
	var senders []Sender

	for _, backend := range cfg.Backends {
		switch backend {
		case "terminal":
			senders = append(senders, NewTerminal(out, format))
		case "slack":
			if cfg.SlackWebhook == "" {
				return nil, fmt.Errorf("slack backend requires webhook URL")
			}
			senders = append(senders, NewSlack(cfg.SlackWebhook))
		case "webhook":
			if cfg.WebhookURL == "" {
				return nil, fmt.Errorf("webhook backend requires URL")
			}
			senders = append(senders, NewWebhook(cfg.WebhookURL))
		default:
			return nil, fmt.Errorf("unknown notification backend: %s", backend)
		}
	}

	switch len(senders) {
	case 0:
		return NewTerminal(out, format), nil
	case 1:
		return senders[0], nil
	default:
		return NewMulti(senders...), nil
	}
}
