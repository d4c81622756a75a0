package config

const (
	DefaultServerURL          = "http://127.0.0.1:7420"
	DefaultListenAddr         = "127.0.0.1:7420"
	DefaultProject            = "default"
	DefaultMaxConcurrency     = 3
	DefaultTickInterval       = "2s"
	DefaultPendingTimeout     = "0s" // never evict
	DefaultPrimaryBranch      = "main"
	DefaultPollInterval       = "30s"
	DefaultMaxParallelFetches = 4
	DefaultProtectionTTL      = "12s"
	DefaultProgressDelay      = "500ms"
	DefaultStructuralDelay    = "300ms"
	DefaultDBPath             = ".dmaker/features.db"
	DefaultCacheTTL           = "10s"
	DefaultRunDuration        = "5s"
	DefaultProgressInterval   = "1s"
	DefaultLogLevel           = "info"
)

// DefaultSchedulerConfig returns auto mode defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrency:     DefaultMaxConcurrency,
		DependencyBlocking: true,
		TickInterval:       DefaultTickInterval,
		PendingTimeout:     DefaultPendingTimeout,
		PrimaryBranch:      DefaultPrimaryBranch,
	}
}

// DefaultExecutorConfig returns local executor defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DBPath:           DefaultDBPath,
		CacheTTL:         DefaultCacheTTL,
		RunDuration:      DefaultRunDuration,
		ProgressInterval: DefaultProgressInterval,
	}
}

// DefaultConfig returns a Config with all default values applied.
func DefaultConfig() *Config {
	return &Config{
		ServerURL:  DefaultServerURL,
		ListenAddr: DefaultListenAddr,
		Projects:   []string{DefaultProject},
		Scheduler:  DefaultSchedulerConfig(),
		Loader: LoaderConfig{
			PollInterval:       DefaultPollInterval,
			ExcludeCompleted:   true,
			MaxParallelFetches: DefaultMaxParallelFetches,
		},
		Protection: ProtectionConfig{
			TTL: DefaultProtectionTTL,
		},
		Reconcile: ReconcileConfig{
			ProgressDelay:   DefaultProgressDelay,
			StructuralDelay: DefaultStructuralDelay,
		},
		Executor: DefaultExecutorConfig(),
		LogLevel: DefaultLogLevel,
	}
}
