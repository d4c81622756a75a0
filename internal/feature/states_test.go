package feature

import (
	"encoding/json"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Status
	}{
		{"backlog", "backlog", StatusBacklog},
		{"in progress", "in_progress", StatusInProgress},
		{"waiting approval", "waiting_approval", StatusWaitingApproval},
		{"completed", "completed", StatusCompleted},
		{"pipeline step", "pipeline_review", Status("pipeline_review")},
		{"empty pipeline step falls back", "pipeline_", StatusBacklog},
		{"unknown falls back", "verified", StatusBacklog},
		{"empty falls back", "", StatusBacklog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseStatus(tt.input); got != tt.expected {
				t.Errorf("ParseStatus(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStatus_StepID(t *testing.T) {
	step, ok := PipelineStep("lint").StepID()
	if !ok || step != "lint" {
		t.Errorf("StepID() = (%q, %v), expected (lint, true)", step, ok)
	}

	if _, ok := StatusInProgress.StepID(); ok {
		t.Error("in_progress should not be a pipeline step")
	}
}

func TestStatus_IsRunning(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusBacklog, false},
		{StatusInProgress, true},
		{PipelineStep("test"), true},
		{StatusWaitingApproval, false},
		{StatusCompleted, false},
	}

	for _, tt := range tests {
		if got := tt.status.IsRunning(); got != tt.expected {
			t.Errorf("%q.IsRunning() = %v, expected %v", tt.status, got, tt.expected)
		}
	}
}

func TestStatus_UnmarshalJSON_Fallback(t *testing.T) {
	var f Feature
	if err := json.Unmarshal([]byte(`{"id":"a","status":"bogus"}`), &f); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if f.Status != StatusBacklog {
		t.Errorf("Status = %q, expected backlog", f.Status)
	}

	if err := json.Unmarshal([]byte(`{"id":"a","status":"pipeline_qa"}`), &f); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if f.Status != PipelineStep("qa") {
		t.Errorf("Status = %q, expected pipeline_qa", f.Status)
	}
}
