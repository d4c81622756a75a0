// Package metrics defines the Prometheus instruments shared by the board
// core and the executor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Load outcomes
const (
	LoadApplied   = "applied"
	LoadDiscarded = "discarded"
)

var (
	// LoadsTotal counts loader passes by kind (summary, full) and outcome
	LoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmaker_loads_total",
		Help: "Loader passes by kind and outcome",
	}, []string{"kind", "outcome"})

	// LoadFetchErrors counts per-project sub-fetch failures
	LoadFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmaker_load_fetch_errors_total",
		Help: "Per-project fetch failures degraded to empty results",
	}, []string{"kind"})

	// FullLoadsCoalesced counts full-load requests folded into a retry
	FullLoadsCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dmaker_full_loads_coalesced_total",
		Help: "Full-load requests recorded as a pending retry",
	})

	// SchedulerStarts counts start attempts by result
	SchedulerStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmaker_scheduler_starts_total",
		Help: "Scheduler start attempts by result",
	}, []string{"result"})

	// SchedulerPending tracks the size of the pending-start set
	SchedulerPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dmaker_scheduler_pending",
		Help: "Starts issued but not yet confirmed",
	})

	// EventsHandled counts push events processed by the reconciler
	EventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmaker_events_handled_total",
		Help: "Push events applied by the reconciler",
	}, []string{"type"})

	// ExecutorCacheLookups counts executor read-cache hits and misses
	ExecutorCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmaker_executor_cache_lookups_total",
		Help: "Executor list-cache lookups by result",
	}, []string{"result"})
)
