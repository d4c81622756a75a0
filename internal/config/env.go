package config

import (
	"os"
	"strconv"
	"strings"
)

// envOverrides maps environment variables to config field setters.
var envOverrides = []struct {
	envVar string
	apply  func(*Config, string)
}{
	{
		envVar: "DMAKER_SERVER_URL",
		apply: func(c *Config, v string) {
			c.ServerURL = v
		},
	},
	{
		envVar: "DMAKER_LISTEN_ADDR",
		apply: func(c *Config, v string) {
			c.ListenAddr = v
		},
	},
	{
		envVar: "DMAKER_PROJECTS",
		apply: func(c *Config, v string) {
			var projects []string
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					projects = append(projects, p)
				}
			}
			c.Projects = projects
		},
	},
	{
		envVar: "DMAKER_MAX_CONCURRENCY",
		apply: func(c *Config, v string) {
			// unparsable values fall through to validation as 0
			n, _ := strconv.Atoi(v)
			c.Scheduler.MaxConcurrency = n
		},
	},
	{
		envVar: "DMAKER_DB_PATH",
		apply: func(c *Config, v string) {
			c.Executor.DBPath = v
		},
	},
	{
		envVar: "DMAKER_NOTIFY_WEBHOOK",
		apply: func(c *Config, v string) {
			c.Notify.WebhookURL = v
		},
	},
	{
		envVar: "DMAKER_SLACK_WEBHOOK",
		apply: func(c *Config, v string) {
			c.Notify.SlackWebhook = v
		},
	},
	{
		envVar: "DMAKER_LOG_LEVEL",
		apply: func(c *Config, v string) {
			c.LogLevel = v
		},
	},
}

// applyEnvOverrides modifies config in place with environment variable values.
func applyEnvOverrides(cfg *Config) {
	for _, override := range envOverrides {
		if val := os.Getenv(override.envVar); val != "" {
			override.apply(cfg, val)
		}
	}
}
