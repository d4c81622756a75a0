package events

import "github.com/go-logr/logr"

// LogConfig configures the logging handler
type LogConfig struct {
	// Logger receives one line per event
	Logger logr.Logger

	// IncludePayload includes event payload in log output
	IncludePayload bool

	// ProgressVerbosity is the V-level used for progress events, which
	// arrive far more often than anything else (default: 1)
	ProgressVerbosity int
}

// LogHandler returns a handler that logs events to the configured logger
func LogHandler(cfg LogConfig) Handler {
	if cfg.ProgressVerbosity <= 0 {
		cfg.ProgressVerbosity = 1
	}

	return func(e Event) {
		kv := []any{"type", string(e.Type), "project", e.Project, "feature", e.Feature}
		if e.Step != "" {
			kv = append(kv, "step", e.Step)
		}
		if e.ErrorKind != "" {
			kv = append(kv, "errorKind", string(e.ErrorKind))
		}
		if e.Error != "" {
			kv = append(kv, "error", e.Error)
		}
		if cfg.IncludePayload && e.Payload != nil {
			kv = append(kv, "payload", e.Payload)
		}

		if e.IsProgressOnly() {
			cfg.Logger.V(cfg.ProgressVerbosity).Info("event", kv...)
			return
		}
		cfg.Logger.Info("event", kv...)
	}
}
