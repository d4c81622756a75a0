package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the per-workspace config file
const FileName = ".dmaker.yaml"

// Config holds all configuration for dmaker.
// It is immutable after creation via LoadConfig().
type Config struct {
	// ServerURL is the executor API the board talks to
	ServerURL string `yaml:"server_url"`

	// ListenAddr is where `dmaker serve` listens
	ListenAddr string `yaml:"listen_addr"`

	// Projects is the active scope; more than one enables aggregation
	Projects []string `yaml:"projects"`

	// Branch selects the isolation context the scheduler prefers.
	// Empty selects the primary context.
	Branch string `yaml:"branch"`

	// Scheduler contains auto mode settings
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Loader contains polling and fetch settings
	Loader LoaderConfig `yaml:"loader"`

	// Protection contains optimistic-write protection settings
	Protection ProtectionConfig `yaml:"protection"`

	// Reconcile contains push-event reload settings
	Reconcile ReconcileConfig `yaml:"reconcile"`

	// Executor contains settings for the local executor run by `dmaker serve`
	Executor ExecutorConfig `yaml:"executor"`

	// Notify selects where board notifications are delivered
	Notify NotifyConfig `yaml:"notify"`

	// LogLevel controls log verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
}

// SchedulerConfig controls auto mode.
type SchedulerConfig struct {
	// MaxConcurrency is the budget for running plus pending features
	MaxConcurrency int `yaml:"max_concurrency"`

	// DependencyBlocking keeps features with unfinished dependencies waiting
	DependencyBlocking bool `yaml:"dependency_blocking"`

	// SkipVerification ignores dependency blocking
	SkipVerification bool `yaml:"skip_verification"`

	// TickInterval is how often auto mode looks for work
	TickInterval string `yaml:"tick_interval"`

	// PendingTimeout evicts unconfirmed starts ("0s" disables)
	PendingTimeout string `yaml:"pending_timeout"`

	// PrimaryBranch is assigned to features without a branch
	PrimaryBranch string `yaml:"primary_branch"`
}

// LoaderConfig controls background loading.
type LoaderConfig struct {
	// PollInterval is how often a full load runs in the background
	PollInterval string `yaml:"poll_interval"`

	// ExcludeCompleted drops completed features from the working view
	ExcludeCompleted bool `yaml:"exclude_completed"`

	// MaxParallelFetches bounds per-project fetches in aggregation mode
	MaxParallelFetches int `yaml:"max_parallel_fetches"`
}

// ProtectionConfig controls the protection ledger.
type ProtectionConfig struct {
	// TTL is how long a local write is shielded from stale reads.
	// Must exceed the executor's read-cache TTL.
	TTL string `yaml:"ttl"`
}

// ReconcileConfig controls debounced reloads after push events.
type ReconcileConfig struct {
	ProgressDelay   string `yaml:"progress_delay"`
	StructuralDelay string `yaml:"structural_delay"`
}

// ExecutorConfig controls the local executor.
type ExecutorConfig struct {
	// DBPath is the SQLite database file.
	// Relative paths are resolved from the workspace root.
	DBPath string `yaml:"db_path"`

	// CacheTTL is how long list results are served from cache
	CacheTTL string `yaml:"cache_ttl"`

	// RunDuration is how long a simulated run takes
	RunDuration string `yaml:"run_duration"`

	// ProgressInterval is the period between progress events
	ProgressInterval string `yaml:"progress_interval"`

	// PipelineSteps are entered in order before a run completes
	PipelineSteps []string `yaml:"pipeline_steps"`

	// RequirePlanApproval emits plan_approval_required at run start
	RequirePlanApproval bool `yaml:"require_plan_approval"`
}

// NotifyConfig controls notification delivery.
type NotifyConfig struct {
	// Backends lists delivery targets: terminal, webhook, slack.
	// Empty means terminal only.
	Backends []string `yaml:"backends"`

	// WebhookURL receives notifications as JSON (webhook backend)
	WebhookURL string `yaml:"webhook_url"`

	// SlackWebhook is a Slack incoming webhook URL (slack backend)
	SlackWebhook string `yaml:"slack_webhook"`
}

// TickIntervalDuration returns the scheduler tick interval.
func (c *Config) TickIntervalDuration() time.Duration {
	return mustDuration(c.Scheduler.TickInterval)
}

// PendingTimeoutDuration returns the pending-start timeout (0 = never).
func (c *Config) PendingTimeoutDuration() time.Duration {
	return mustDuration(c.Scheduler.PendingTimeout)
}

// PollIntervalDuration returns the background load interval.
func (c *Config) PollIntervalDuration() time.Duration {
	return mustDuration(c.Loader.PollInterval)
}

// ProtectionTTLDuration returns the protection window.
func (c *Config) ProtectionTTLDuration() time.Duration {
	return mustDuration(c.Protection.TTL)
}

// ProgressDelayDuration returns the reload delay after progress events.
func (c *Config) ProgressDelayDuration() time.Duration {
	return mustDuration(c.Reconcile.ProgressDelay)
}

// StructuralDelayDuration returns the reload delay after structural events.
func (c *Config) StructuralDelayDuration() time.Duration {
	return mustDuration(c.Reconcile.StructuralDelay)
}

// CacheTTLDuration returns the executor read-cache TTL.
func (c *Config) CacheTTLDuration() time.Duration {
	return mustDuration(c.Executor.CacheTTL)
}

// RunDurationValue returns the simulated run length.
func (c *Config) RunDurationValue() time.Duration {
	return mustDuration(c.Executor.RunDuration)
}

// ProgressIntervalDuration returns the period between progress events.
func (c *Config) ProgressIntervalDuration() time.Duration {
	return mustDuration(c.Executor.ProgressInterval)
}

// mustDuration parses a duration already checked by validateConfig.
// Invalid values read as zero, which every consumer treats as "use default".
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// LoadConfig loads configuration for a workspace directory.
// It applies defaults, then the user config, then the workspace file,
// then environment overrides, then validates.
//
// Parameters:
//   - root: absolute path to the workspace directory
//
// Returns the validated Config or an error if validation fails.
func LoadConfig(root string) (*Config, error) {
	cfg := DefaultConfig()

	if path, err := GlobalConfigPath(); err == nil {
		if err := mergeFile(cfg, path); err != nil {
			return nil, fmt.Errorf("parse user config: %w", err)
		}
	}

	if err := mergeFile(cfg, filepath.Join(root, FileName)); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(cfg, root)
}

// LoadConfigFile loads configuration from an explicit file path.
// Relative paths inside the file are resolved from the file's directory.
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(cfg, filepath.Dir(path))
}

// mergeFile overlays a YAML file onto cfg. A missing file is not an error.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func finish(cfg *Config, root string) (*Config, error) {
	applyEnvOverrides(cfg)

	if cfg.Executor.DBPath != "" && !filepath.IsAbs(cfg.Executor.DBPath) {
		cfg.Executor.DBPath = filepath.Join(root, cfg.Executor.DBPath)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
