package feature

import (
	"encoding/json"
	"strings"
)

// Status is the board column a feature currently sits in.
// Pipeline steps are open-ended: any "pipeline_<stepId>" value is valid.
type Status string

const (
	StatusBacklog         Status = "backlog"
	StatusInProgress      Status = "in_progress"
	StatusWaitingApproval Status = "waiting_approval"
	StatusCompleted       Status = "completed"
)

// pipelinePrefix marks user-defined intermediate steps
const pipelinePrefix = "pipeline_"

// PipelineStep returns the status for the given pipeline step ID
func PipelineStep(stepID string) Status {
	return Status(pipelinePrefix + stepID)
}

// ParseStatus converts a wire value to a Status.
// Unrecognized values (including the empty string) read as backlog.
func ParseStatus(s string) Status {
	switch st := Status(s); st {
	case StatusBacklog, StatusInProgress, StatusWaitingApproval, StatusCompleted:
		return st
	}
	if step, ok := strings.CutPrefix(s, pipelinePrefix); ok && step != "" {
		return Status(s)
	}
	return StatusBacklog
}

// StepID returns the pipeline step ID and true if s is a pipeline step
func (s Status) StepID() (string, bool) {
	step, ok := strings.CutPrefix(string(s), pipelinePrefix)
	if !ok || step == "" {
		return "", false
	}
	return step, true
}

// IsPipelineStep returns true if s is a user-defined pipeline step
func (s Status) IsPipelineStep() bool {
	_, ok := s.StepID()
	return ok
}

// IsRunning returns true if an agent is working on a feature in this status.
// Running features consume a concurrency slot.
func (s Status) IsRunning() bool {
	return s == StatusInProgress || s.IsPipelineStep()
}

// IsTerminalSuccess returns true if dependents may proceed
func (s Status) IsTerminalSuccess() bool {
	return s == StatusCompleted
}

// UnmarshalJSON applies the backlog fallback to unknown wire values
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStatus(raw)
	return nil
}
