package cli

import (
	"github.com/DelicateHug/DMaker-sub000/internal/board"
	"github.com/DelicateHug/DMaker-sub000/internal/config"
	"github.com/DelicateHug/DMaker-sub000/internal/executor"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
	"github.com/DelicateHug/DMaker-sub000/internal/loader"
	"github.com/DelicateHug/DMaker-sub000/internal/reconciler"
	"github.com/DelicateHug/DMaker-sub000/internal/scheduler"
)

// boardConfig maps file configuration onto the board's components
func boardConfig(cfg *config.Config) board.Config {
	return board.Config{
		Loader: loader.Config{
			Filter:      gateway.StatusFilter{ExcludeCompleted: cfg.Loader.ExcludeCompleted},
			MaxParallel: cfg.Loader.MaxParallelFetches,
		},
		Scheduler: scheduler.Config{
			MaxConcurrency:     cfg.Scheduler.MaxConcurrency,
			DependencyBlocking: cfg.Scheduler.DependencyBlocking,
			SkipVerification:   cfg.Scheduler.SkipVerification,
			TickInterval:       cfg.TickIntervalDuration(),
			PendingTimeout:     cfg.PendingTimeoutDuration(),
			PrimaryBranch:      cfg.Scheduler.PrimaryBranch,
		},
		Reconcile: reconciler.Config{
			ProgressDelay:   cfg.ProgressDelayDuration(),
			StructuralDelay: cfg.StructuralDelayDuration(),
		},
		ProtectionTTL: cfg.ProtectionTTLDuration(),
		PollInterval:  cfg.PollIntervalDuration(),
	}
}

// schedulerOptions extracts the settings that can change while running
func schedulerOptions(cfg *config.Config) scheduler.Options {
	return scheduler.Options{
		MaxConcurrency:     cfg.Scheduler.MaxConcurrency,
		DependencyBlocking: cfg.Scheduler.DependencyBlocking,
		SkipVerification:   cfg.Scheduler.SkipVerification,
	}
}

// executorConfig maps file configuration onto the local executor
func executorConfig(cfg *config.Config) executor.Config {
	return executor.Config{
		CacheTTL:            cfg.CacheTTLDuration(),
		RunDuration:         cfg.RunDurationValue(),
		ProgressInterval:    cfg.ProgressIntervalDuration(),
		PipelineSteps:       cfg.Executor.PipelineSteps,
		RequirePlanApproval: cfg.Executor.RequirePlanApproval,
	}
}
