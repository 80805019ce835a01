// Package runtime drives workflow execution and owns all run state.
package runtime

import (
	"time"

	"github.com/stepflow-ai/stepflow/pkg/assertions"
)

// Step statuses. Aborted marks the step whose result the operator
// rejected; steps after it simply stay pending.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusAborted   = "aborted"
)

// Run statuses. A run is "running" until it reaches exactly one of the
// terminal states.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
	RunAborted   = "aborted"
)

// StepState tracks the live status of a single step within a run.
type StepState struct {
	StepID    string    `json:"step_id"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// StepRecord is the immutable record of one step attempt, appended to
// history and the trace. Data holds the result values the step produced.
type StepRecord struct {
	RunID     string                        `json:"run_id"`
	StepID    string                        `json:"step_id"`
	StepType  string                        `json:"step_type"`
	Attempt   int                           `json:"attempt"`
	Status    string                        `json:"status"`
	Data      map[string]any                `json:"data,omitempty"`
	Criteria  []*assertions.CriterionResult `json:"criteria,omitempty"`
	Error     string                        `json:"error,omitempty"`
	Edited    bool                          `json:"edited,omitempty"`
	StartedAt time.Time                     `json:"started_at"`
	EndedAt   time.Time                     `json:"ended_at"`
}

// RunState is the complete execution state at a point in time.
// Serialized to JSON for snapshot persistence.
type RunState struct {
	RunID        string                    `json:"run_id"`
	WorkflowName string                    `json:"workflow_name"`
	WorkflowPath string                    `json:"workflow_path,omitempty"`
	Mode         string                    `json:"mode"` // interactive, auto, dry-run
	Status       string                    `json:"status"`
	Error        string                    `json:"error,omitempty"`
	StartedAt    time.Time                 `json:"started_at"`
	Current      string                    `json:"current,omitempty"` // next step to execute
	Steps        map[string]*StepState     `json:"steps"`
	Results      map[string]map[string]any `json:"results"`
	History      []*StepRecord             `json:"history"`
}

// Lookup returns a recorded result value by step id and key.
// Implements condition.Context.
func (s *RunState) Lookup(stepID, key string) (any, bool) {
	data, ok := s.Results[stepID]
	if !ok {
		return nil, false
	}
	v, ok := data[key]
	return v, ok
}

// SetResult records a step's result data, replacing any earlier entry
// for the same step (loop iterations and retries overwrite).
func (s *RunState) SetResult(stepID string, data map[string]any) {
	if s.Results == nil {
		s.Results = make(map[string]map[string]any)
	}
	s.Results[stepID] = data
}

// TraceEvent is one line of the JSONL trace. step_result events carry
// a Record; the run_finished event carries Status and, when the run
// did not succeed, Error.
type TraceEvent struct {
	Type      string      `json:"type"` // step_result | run_finished
	Timestamp time.Time   `json:"timestamp"`
	RunID     string      `json:"run_id"`
	Record    *StepRecord `json:"record,omitempty"`
	Status    string      `json:"status,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// RunManifest records the complete metadata for a workflow execution.
// Written as run.yaml after a run completes (or fails).
type RunManifest struct {
	RunID        string       `yaml:"run_id"          json:"run_id"`
	Workflow     string       `yaml:"workflow"        json:"workflow"`
	WorkflowPath string       `yaml:"workflow_path,omitempty" json:"workflow_path,omitempty"`
	Mode         string       `yaml:"mode"            json:"mode"`
	Status       string       `yaml:"status"          json:"status"`
	Error        string       `yaml:"error,omitempty" json:"error,omitempty"`
	FinalStep    string       `yaml:"final_step,omitempty" json:"final_step,omitempty"`
	StartedAt    string       `yaml:"started_at"      json:"started_at"`
	EndedAt      string       `yaml:"ended_at"        json:"ended_at"`
	StepsSummary StepsSummary `yaml:"steps_summary"   json:"steps_summary"`
}

// StepsSummary counts step attempts by status.
type StepsSummary struct {
	Total     int `yaml:"total"     json:"total"`
	Succeeded int `yaml:"succeeded" json:"succeeded"`
	Failed    int `yaml:"failed"    json:"failed"`
	Skipped   int `yaml:"skipped"   json:"skipped"`
}
