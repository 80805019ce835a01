// Package handlers defines the Handler contract, the step-type registry,
// and the built-in handlers for every step type. Handlers receive fully
// substituted arguments plus resolved dependency results and return a
// uniform StepResult envelope; only the engine writes execution state.
package handlers

import (
	"context"
	"fmt"

	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// ValidationResult is returned by Handler.Validate.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Request carries a handler's input: the step definition, its arguments
// with {step_id.key} references already substituted, and the recorded
// results of every declared dependency.
type Request struct {
	Step         *schema.Step
	Arguments    map[string]any
	Dependencies map[string]map[string]any
}

// StepResult is the outcome of executing a single step: success flag,
// opaque result data, and an error message when Success is false.
type StepResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Handler executes one kind of step.
type Handler interface {
	// Validate checks step-type-specific fields during definition
	// validation. MUST NOT perform side effects.
	Validate(step *schema.Step) ValidationResult

	// Execute runs the step and returns the result.
	// MUST NOT mutate engine state — only the engine records state,
	// after Execute returns.
	// MUST return a result for every invocation that is not an
	// infrastructure error.
	Execute(ctx context.Context, req *Request) (*StepResult, error)
}

// Generator is the narrow collaborator for the generation family of
// steps. Real implementations call a text-generation service; the engine
// never does, and never retries on its behalf.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Prompter is the narrow collaborator for user-input steps.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

// Registry maps a step_type tag to its Handler. Purely a lookup table:
// adding a step type means adding one entry.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a step type tag, replacing any previous
// binding.
func (r *Registry) Register(stepType string, h Handler) {
	r.handlers[stepType] = h
}

// Lookup returns the handler for a step type.
func (r *Registry) Lookup(stepType string) (Handler, error) {
	h, ok := r.handlers[stepType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for step type %q", stepType)
	}
	return h, nil
}

// Types returns the registered step type tags.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

// DefaultRegistry builds a registry with every built-in handler wired to
// the given collaborators.
func DefaultRegistry(gen Generator, prompter Prompter) *Registry {
	r := NewRegistry()
	for _, kind := range []string{
		schema.StepGeneration, schema.StepEditing, schema.StepReview,
		schema.StepRefactor, schema.StepTestGeneration, schema.StepDocumentation,
	} {
		r.Register(kind, &GenerateHandler{Kind: kind, Generator: gen})
	}
	r.Register(schema.StepFileOperation, &FileOperationHandler{})
	r.Register(schema.StepUserInput, &UserInputHandler{Prompter: prompter})
	// Conditional and loop steps carry no work of their own; routing and
	// iteration belong to the engine.
	r.Register(schema.StepConditional, &PassHandler{})
	r.Register(schema.StepLoop, &PassHandler{})
	return r
}

// PassHandler succeeds without doing anything. Used for flow-control
// steps whose behavior lives in the engine.
type PassHandler struct{}

func (h *PassHandler) Validate(step *schema.Step) ValidationResult {
	return ValidationResult{Valid: true}
}

func (h *PassHandler) Execute(ctx context.Context, req *Request) (*StepResult, error) {
	return &StepResult{Success: true, Data: map[string]any{}}, nil
}

// argString fetches a string argument, tolerating missing keys.
func argString(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}
