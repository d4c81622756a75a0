package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ValidationError contains details about what failed validation.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// validateConfig checks all config values for validity.
// Returns nil if valid, or joined errors for all validation failures.
func validateConfig(cfg *Config) error {
	var errs []error

	// ServerURL must be an absolute http(s) URL
	if u, err := url.Parse(cfg.ServerURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, &ValidationError{
			Field:   "server_url",
			Value:   cfg.ServerURL,
			Message: "must be an http or https URL",
		})
	}

	if cfg.ListenAddr == "" {
		errs = append(errs, &ValidationError{
			Field:   "listen_addr",
			Value:   cfg.ListenAddr,
			Message: "must not be empty",
		})
	}

	// Projects must name at least one non-empty project
	if len(cfg.Projects) == 0 {
		errs = append(errs, &ValidationError{
			Field:   "projects",
			Value:   cfg.Projects,
			Message: "must name at least one project",
		})
	}
	for i, p := range cfg.Projects {
		if p == "" {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("projects[%d]", i),
				Value:   p,
				Message: "must not be empty",
			})
		}
	}

	// Scheduler.MaxConcurrency must be >= 1
	if cfg.Scheduler.MaxConcurrency < 1 {
		errs = append(errs, &ValidationError{
			Field:   "scheduler.max_concurrency",
			Value:   cfg.Scheduler.MaxConcurrency,
			Message: "must be at least 1",
		})
	}

	if cfg.Scheduler.PrimaryBranch == "" {
		errs = append(errs, &ValidationError{
			Field:   "scheduler.primary_branch",
			Value:   cfg.Scheduler.PrimaryBranch,
			Message: "must not be empty",
		})
	}

	if cfg.Loader.MaxParallelFetches < 1 {
		errs = append(errs, &ValidationError{
			Field:   "loader.max_parallel_fetches",
			Value:   cfg.Loader.MaxParallelFetches,
			Message: "must be at least 1",
		})
	}

	// Durations: positive unless zero is meaningful
	durations := []struct {
		field     string
		value     string
		allowZero bool
	}{
		{"scheduler.tick_interval", cfg.Scheduler.TickInterval, false},
		{"scheduler.pending_timeout", cfg.Scheduler.PendingTimeout, true},
		{"loader.poll_interval", cfg.Loader.PollInterval, false},
		{"protection.ttl", cfg.Protection.TTL, false},
		{"reconcile.progress_delay", cfg.Reconcile.ProgressDelay, false},
		{"reconcile.structural_delay", cfg.Reconcile.StructuralDelay, false},
		{"executor.cache_ttl", cfg.Executor.CacheTTL, true},
		{"executor.run_duration", cfg.Executor.RunDuration, false},
		{"executor.progress_interval", cfg.Executor.ProgressInterval, false},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		switch {
		case err != nil:
			errs = append(errs, &ValidationError{
				Field:   d.field,
				Value:   d.value,
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		case v < 0 || (v == 0 && !d.allowZero):
			errs = append(errs, &ValidationError{
				Field:   d.field,
				Value:   d.value,
				Message: "must be positive",
			})
		}
	}

	// Protection must outlive the executor's read cache, otherwise a
	// cached pre-write read can land after protection expired
	ttl, ttlErr := time.ParseDuration(cfg.Protection.TTL)
	cacheTTL, cacheErr := time.ParseDuration(cfg.Executor.CacheTTL)
	if ttlErr == nil && cacheErr == nil && ttl <= cacheTTL {
		errs = append(errs, &ValidationError{
			Field:   "protection.ttl",
			Value:   cfg.Protection.TTL,
			Message: fmt.Sprintf("must exceed executor.cache_ttl (%s)", cfg.Executor.CacheTTL),
		})
	}

	if cfg.Executor.DBPath == "" {
		errs = append(errs, &ValidationError{
			Field:   "executor.db_path",
			Value:   cfg.Executor.DBPath,
			Message: "must not be empty",
		})
	}

	for i, step := range cfg.Executor.PipelineSteps {
		if step == "" {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("executor.pipeline_steps[%d]", i),
				Value:   step,
				Message: "must not be empty",
			})
		}
	}

	for i, backend := range cfg.Notify.Backends {
		switch backend {
		case "terminal":
		case "webhook":
			if cfg.Notify.WebhookURL == "" {
				errs = append(errs, &ValidationError{
					Field:   "notify.webhook_url",
					Value:   cfg.Notify.WebhookURL,
					Message: "required by the webhook backend",
				})
			}
		case "slack":
			if cfg.Notify.SlackWebhook == "" {
				errs = append(errs, &ValidationError{
					Field:   "notify.slack_webhook",
					Value:   cfg.Notify.SlackWebhook,
					Message: "required by the slack backend",
				})
			}
		default:
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("notify.backends[%d]", i),
				Value:   backend,
				Message: "must be one of: terminal, webhook, slack",
			})
		}
	}

	// LogLevel must be one of: debug, info, warn, error (case-sensitive)
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, &ValidationError{
			Field:   "log_level",
			Value:   cfg.LogLevel,
			Message: "must be one of: debug, info, warn, error",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
