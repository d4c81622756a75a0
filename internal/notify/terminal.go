package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/DelicateHug/DMaker-sub000/internal/reconciler"
)

// Terminal writes notifications to a writer, one line each
type Terminal struct {
	mu     sync.Mutex // Serializes writes
	w      io.Writer
	format func(reconciler.Notification) string
}

// NewTerminal creates a terminal sender. A nil format uses a plain line
// with a severity prefix.
func NewTerminal(w io.Writer, format func(reconciler.Notification) string) *Terminal {
	if format == nil {
		format = plainLine
	}
	return &Terminal{w: w, format: format}
}

// Send writes the notification
func (t *Terminal) Send(ctx context.Context, n reconciler.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := fmt.Fprintln(t.w, t.format(n))
	return err
}

// Name returns "terminal"
func (t *Terminal) Name() string {
	return "terminal"
}

func plainLine(n reconciler.Notification) string {
	prefix := ""
	switch SeverityOf(n.Kind) {
	case SeverityCritical, SeverityBlocking:
		prefix = "🚨 "
	case SeverityWarning:
		prefix = "⚠️  "
	default:
		prefix = "ℹ️  "
	}
	return fmt.Sprintf("%s[%s] %s: %s", prefix, SeverityOf(n.Kind), label(n), n.Message)
}
