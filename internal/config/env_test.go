package config

import (
	"testing"
)

func TestEnvOverrides_ServerURL(t *testing.T) {
	cfg := &Config{ServerURL: "http://original"}
	t.Setenv("DMAKER_SERVER_URL", "http://override:9000")

	applyEnvOverrides(cfg)

	if cfg.ServerURL != "http://override:9000" {
		t.Errorf("expected ServerURL to be 'http://override:9000', got '%s'", cfg.ServerURL)
	}
}

func TestEnvOverrides_Projects(t *testing.T) {
	cfg := &Config{Projects: []string{"original"}}
	t.Setenv("DMAKER_PROJECTS", " web, ,api ")

	applyEnvOverrides(cfg)

	if len(cfg.Projects) != 2 || cfg.Projects[0] != "web" || cfg.Projects[1] != "api" {
		t.Errorf("expected Projects [web api], got %v", cfg.Projects)
	}
}

func TestEnvOverrides_MaxConcurrency(t *testing.T) {
	cfg := &Config{Scheduler: SchedulerConfig{MaxConcurrency: 1}}
	t.Setenv("DMAKER_MAX_CONCURRENCY", "4")

	applyEnvOverrides(cfg)

	if cfg.Scheduler.MaxConcurrency != 4 {
		t.Errorf("expected MaxConcurrency 4, got %d", cfg.Scheduler.MaxConcurrency)
	}
}

func TestEnvOverrides_MaxConcurrencyInvalid(t *testing.T) {
	cfg := &Config{Scheduler: SchedulerConfig{MaxConcurrency: 1}}
	t.Setenv("DMAKER_MAX_CONCURRENCY", "lots")

	applyEnvOverrides(cfg)

	if cfg.Scheduler.MaxConcurrency != 0 {
		t.Errorf("expected unparsable value to read as 0 for validation, got %d", cfg.Scheduler.MaxConcurrency)
	}
}

func TestEnvOverrides_LogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "info"}
	t.Setenv("DMAKER_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel to be 'debug', got '%s'", cfg.LogLevel)
	}
}

func TestEnvOverrides_EmptyNoChange(t *testing.T) {
	cfg := &Config{ListenAddr: "127.0.0.1:1", Executor: ExecutorConfig{DBPath: "a.db"}}
	t.Setenv("DMAKER_LISTEN_ADDR", "")
	t.Setenv("DMAKER_DB_PATH", "")

	applyEnvOverrides(cfg)

	if cfg.ListenAddr != "127.0.0.1:1" || cfg.Executor.DBPath != "a.db" {
		t.Errorf("empty env vars should not override, got %+v", cfg)
	}
}

func TestEnvOverrides_NotifyWebhooks(t *testing.T) {
	cfg := &Config{}
	t.Setenv("DMAKER_NOTIFY_WEBHOOK", "http://hooks.local/board")
	t.Setenv("DMAKER_SLACK_WEBHOOK", "https://hooks.slack.com/services/T/B/X")

	applyEnvOverrides(cfg)

	if cfg.Notify.WebhookURL != "http://hooks.local/board" {
		t.Errorf("expected WebhookURL override, got '%s'", cfg.Notify.WebhookURL)
	}
	if cfg.Notify.SlackWebhook != "https://hooks.slack.com/services/T/B/X" {
		t.Errorf("expected SlackWebhook override, got '%s'", cfg.Notify.SlackWebhook)
	}
}
