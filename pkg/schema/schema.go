// Package schema defines the Go struct types for the workflow definition
// document and provides strict YAML/JSON parsing.
package schema

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Step type tags. Dispatch goes through the handler registry; adding a
// type means adding one registry entry.
const (
	StepGeneration     = "generation"
	StepEditing        = "editing"
	StepReview         = "review"
	StepRefactor       = "refactor"
	StepTestGeneration = "test-generation"
	StepDocumentation  = "documentation"
	StepUserInput      = "user-input"
	StepFileOperation  = "file-operation"
	StepConditional    = "conditional"
	StepLoop           = "loop"
)

// StepTypes lists every known step type tag.
var StepTypes = []string{
	StepGeneration, StepEditing, StepReview, StepRefactor,
	StepTestGeneration, StepDocumentation, StepUserInput,
	StepFileOperation, StepConditional, StepLoop,
}

// Workflow is the top-level document: an immutable, validated graph of
// steps plus its entry point.
type Workflow struct {
	Name        string           `yaml:"name"        json:"name"        jsonschema:"required"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	StartStep   string           `yaml:"start_step"  json:"start_step"  jsonschema:"required"`
	Steps       map[string]*Step `yaml:"steps"       json:"steps"       jsonschema:"required"`
}

// Step is a named unit of work with a type, arguments, and transition
// targets. The ID mirrors the step's key in Workflow.Steps and is filled
// in by the loader.
type Step struct {
	ID            string         `yaml:"-"                 json:"-"`
	StepType      string         `yaml:"step_type"         json:"step_type" jsonschema:"required,enum=generation,enum=editing,enum=review,enum=refactor,enum=test-generation,enum=documentation,enum=user-input,enum=file-operation,enum=conditional,enum=loop"`
	Description   string         `yaml:"description,omitempty"     json:"description,omitempty"`
	Arguments     map[string]any `yaml:"arguments,omitempty"       json:"arguments,omitempty"`
	NextOnSuccess string         `yaml:"next_on_success,omitempty" json:"next_on_success,omitempty"`
	NextOnFailure string         `yaml:"next_on_failure,omitempty" json:"next_on_failure,omitempty"`
	Dependencies  []string       `yaml:"dependencies,omitempty"    json:"dependencies,omitempty"`
	Condition     string         `yaml:"condition,omitempty"       json:"condition,omitempty"`
	MaxRetries    int            `yaml:"max_retries,omitempty"     json:"max_retries,omitempty" jsonschema:"minimum=0"`
	Loop          *LoopConfig    `yaml:"loop,omitempty"            json:"loop,omitempty"`
	Criteria      []Criterion    `yaml:"criteria,omitempty"        json:"criteria,omitempty"`
}

// LoopConfig bounds a loop step: re-enter the sub-sequence starting at
// Body while Condition holds, at most MaxIterations times. The guard is
// mandatory — exceeding it fails the step, never spins.
type LoopConfig struct {
	Body          string `yaml:"body"           json:"body"           jsonschema:"required"`
	Condition     string `yaml:"condition"      json:"condition"      jsonschema:"required"`
	MaxIterations int    `yaml:"max_iterations" json:"max_iterations" jsonschema:"required,minimum=1"`
}

// Criterion is a post-execution check on one key of a step's recorded
// result. Exactly one of the check fields must be set.
type Criterion struct {
	Key      string `yaml:"key"                 json:"key" jsonschema:"required"`
	Contains string `yaml:"contains,omitempty"  json:"contains,omitempty"`
	Equals   string `yaml:"equals,omitempty"    json:"equals,omitempty"`
	Matches  string `yaml:"matches,omitempty"   json:"matches,omitempty"`
	NotEmpty bool   `yaml:"not_empty,omitempty" json:"not_empty,omitempty"`
}

// LoadFile reads and parses a workflow definition with strict
// unknown-field rejection. YAML and JSON documents both parse (JSON is a
// YAML subset, and planner output is JSON).
func LoadFile(path string) (*Workflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workflow: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a workflow definition from an io.Reader with strict
// unknown-field rejection.
func Load(r io.Reader) (*Workflow, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var wf Workflow
	if err := dec.Decode(&wf); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	for id, step := range wf.Steps {
		if step == nil {
			return nil, fmt.Errorf("decode workflow: step %q has no body", id)
		}
		step.ID = id
	}
	return &wf, nil
}

// StepIDs returns the step ids in sorted order, for deterministic
// reporting and diagram output.
func (wf *Workflow) StepIDs() []string {
	ids := make([]string, 0, len(wf.Steps))
	for id := range wf.Steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AddStep inserts a step into the in-memory definition. Callers must
// re-validate before routing to it; the engine does this for
// runtime-generated steps.
func (wf *Workflow) AddStep(id string, step *Step) error {
	if _, exists := wf.Steps[id]; exists {
		return fmt.Errorf("step %q already defined", id)
	}
	step.ID = id
	if wf.Steps == nil {
		wf.Steps = make(map[string]*Step)
	}
	wf.Steps[id] = step
	return nil
}

// Save writes the workflow definition as YAML.
func (wf *Workflow) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(wf); err != nil {
		return fmt.Errorf("encode workflow: %w", err)
	}
	return enc.Close()
}
