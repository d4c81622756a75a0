package scheduler

// TickResult represents the outcome of one scheduler tick
type TickResult struct {
	// Started lists features whose start was accepted, in start order
	Started []string

	// Available is the free budget computed at the start of the tick
	Available int

	// Reason explains why fewer starts than available happened
	Reason SkipReason
}

// SkipReason explains why a tick started nothing (or stopped early)
type SkipReason string

const (
	ReasonNone         SkipReason = ""
	ReasonBusy         SkipReason = "tick_in_progress"
	ReasonDisabled     SkipReason = "disabled"
	ReasonNoScope      SkipReason = "no_scope"
	ReasonAtCapacity   SkipReason = "at_capacity"
	ReasonNoCandidates SkipReason = "no_candidates"
	ReasonAllBlocked   SkipReason = "all_blocked"
	ReasonAborted      SkipReason = "aborted"
)

// Start attempt results, used as the metrics label
const (
	startAccepted = "accepted"
	startRefused  = "refused"
	startFailed   = "failed"
)
