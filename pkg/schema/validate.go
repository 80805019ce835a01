package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/stepflow-ai/stepflow/pkg/condition"
)

// ValidationError represents a single definition error with location
// context. Any error here is fatal at load time: no step executes
// against a malformed graph.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // location (e.g. "steps.build.next_on_success")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile performs the full 3-phase validation pipeline on a
// workflow definition file.
// Phase 1: Structural (strict YAML decode; duplicate step ids fail here)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (graph rules)
func ValidateFile(path string) (*Workflow, []*ValidationError) {
	wf, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	errs := Validate(wf)
	if len(errs) > 0 {
		return wf, errs
	}
	return wf, nil
}

// Validate runs the semantic and domain phases against an in-memory
// definition. The engine reuses this for runtime-inserted steps, so a
// dynamically grown graph passes exactly the load-time checks.
func Validate(wf *Workflow) []*ValidationError {
	var allErrors []*ValidationError
	allErrors = append(allErrors, validateSemantic(wf)...)
	allErrors = append(allErrors, ValidateDomain(wf)...)
	return allErrors
}

// validateSemantic validates the workflow against the JSON Schema
// generated from the Go types.
func validateSemantic(wf *Workflow) []*ValidationError {
	data, err := json.Marshal(wf)
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("marshal for schema validation: %v", err))}
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("generate schema: %v", err))}
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("unmarshal schema: %v", err))}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("workflow-v0.json", schemaDoc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("add schema resource: %v", err))}
	}
	sch, err := c.Compile("workflow-v0.json")
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("compile schema: %v", err))}
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("unmarshal document: %v", err))}
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "."),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = append(errs, semanticErr(err.Error()))
		}
		return errs
	}
	return nil
}

func semanticErr(msg string) *ValidationError {
	return &ValidationError{Phase: "semantic", Message: msg, Severity: "error"}
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

var knownStepTypes = func() map[string]bool {
	m := make(map[string]bool, len(StepTypes))
	for _, t := range StepTypes {
		m[t] = true
	}
	return m
}()

// ValidateDomain performs Phase 3 graph validation: entry point and
// reference resolution, per-type field rules, condition parseability, and
// the bounded-cycle rule. Returns a slice of errors; empty means valid.
func ValidateDomain(wf *Workflow) []*ValidationError {
	var errs []*ValidationError
	domainErr := func(path, msg string) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "error"})
	}

	if wf.Name == "" {
		domainErr("name", "workflow requires a name")
	}
	if len(wf.Steps) == 0 {
		domainErr("steps", "workflow must contain at least one step")
		return errs
	}

	if wf.StartStep == "" {
		domainErr("start_step", "workflow requires a start_step")
	} else if _, ok := wf.Steps[wf.StartStep]; !ok {
		domainErr("start_step", fmt.Sprintf("start_step %q is not a defined step", wf.StartStep))
	}

	for _, id := range wf.StepIDs() {
		step := wf.Steps[id]
		path := "steps." + id

		if !knownStepTypes[step.StepType] {
			domainErr(path+".step_type", fmt.Sprintf("unknown step_type %q", step.StepType))
		}

		for field, ref := range map[string]string{
			"next_on_success": step.NextOnSuccess,
			"next_on_failure": step.NextOnFailure,
		} {
			if ref == "" {
				continue
			}
			if _, ok := wf.Steps[ref]; !ok {
				domainErr(path+"."+field, fmt.Sprintf("step %q routes %s to undefined step %q", id, field, ref))
			}
		}

		seen := make(map[string]bool)
		for _, dep := range step.Dependencies {
			if dep == id {
				domainErr(path+".dependencies", fmt.Sprintf("step %q depends on itself", id))
				continue
			}
			if seen[dep] {
				domainErr(path+".dependencies", fmt.Sprintf("step %q declares dependency %q twice", id, dep))
				continue
			}
			seen[dep] = true
			if _, ok := wf.Steps[dep]; !ok {
				domainErr(path+".dependencies", fmt.Sprintf("step %q depends on undefined step %q", id, dep))
			}
		}

		if step.MaxRetries < 0 {
			domainErr(path+".max_retries", fmt.Sprintf("step %q has negative max_retries", id))
		}

		switch step.StepType {
		case StepConditional:
			if step.Condition == "" {
				domainErr(path+".condition", fmt.Sprintf("conditional step %q requires a condition", id))
			}
		case StepLoop:
			errs = append(errs, validateLoop(wf, id, step)...)
		}
		if step.Condition != "" && step.StepType != StepConditional {
			domainErr(path+".condition", fmt.Sprintf("step %q has a condition but is not conditional", id))
		}
		if step.Loop != nil && step.StepType != StepLoop {
			domainErr(path+".loop", fmt.Sprintf("step %q has loop configuration but is not a loop step", id))
		}
		if step.Condition != "" {
			if _, err := condition.Parse(step.Condition); err != nil {
				domainErr(path+".condition", fmt.Sprintf("step %q condition: %v", id, err))
			}
		}

		for i, c := range step.Criteria {
			errs = append(errs, validateCriterion(id, i, c)...)
		}
	}

	errs = append(errs, validateCycles(wf)...)
	return errs
}

func validateLoop(wf *Workflow, id string, step *Step) []*ValidationError {
	var errs []*ValidationError
	path := "steps." + id + ".loop"
	domainErr := func(p, msg string) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: p, Message: msg, Severity: "error"})
	}

	if step.Loop == nil {
		domainErr(path, fmt.Sprintf("loop step %q requires loop configuration", id))
		return errs
	}
	if step.Loop.Body == "" {
		domainErr(path+".body", fmt.Sprintf("loop step %q requires a body step", id))
	} else if _, ok := wf.Steps[step.Loop.Body]; !ok {
		domainErr(path+".body", fmt.Sprintf("loop step %q references undefined body step %q", id, step.Loop.Body))
	}
	if step.Loop.MaxIterations < 1 {
		domainErr(path+".max_iterations", fmt.Sprintf("loop step %q requires max_iterations >= 1", id))
	}
	if step.Loop.Condition == "" {
		domainErr(path+".condition", fmt.Sprintf("loop step %q requires a loop condition", id))
	} else if _, err := condition.Parse(step.Loop.Condition); err != nil {
		domainErr(path+".condition", fmt.Sprintf("loop step %q condition: %v", id, err))
	}
	return errs
}

func validateCriterion(stepID string, idx int, c Criterion) []*ValidationError {
	var errs []*ValidationError
	path := fmt.Sprintf("steps.%s.criteria[%d]", stepID, idx)
	domainErr := func(p, msg string) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: p, Message: msg, Severity: "error"})
	}

	if c.Key == "" {
		domainErr(path+".key", "criterion requires a result key")
	}
	set := 0
	if c.Contains != "" {
		set++
	}
	if c.Equals != "" {
		set++
	}
	if c.Matches != "" {
		set++
		if _, err := regexp.Compile(c.Matches); err != nil {
			domainErr(path+".matches", fmt.Sprintf("invalid pattern: %v", err))
		}
	}
	if c.NotEmpty {
		set++
	}
	if set != 1 {
		domainErr(path, "exactly one of contains, equals, matches, not_empty must be set")
	}
	return errs
}

// validateCycles enforces the bounded-cycle rule: a cycle through
// next_on_success/next_on_failure edges must pass through a loop step or
// through at least one step carrying a retry bound. Anything else is an
// unbounded implicit cycle and the definition is rejected before any
// step runs.
func validateCycles(wf *Workflow) []*ValidationError {
	var errs []*ValidationError
	for _, scc := range stronglyConnected(wf) {
		if !isCycle(wf, scc) {
			continue
		}
		bounded := false
		for _, id := range scc {
			step := wf.Steps[id]
			if step.StepType == StepLoop || step.MaxRetries > 0 {
				bounded = true
				break
			}
		}
		if !bounded {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     "steps." + scc[0],
				Message:  fmt.Sprintf("unbounded implicit cycle through steps %s: add a loop step or a max_retries bound", strings.Join(scc, " → ")),
				Severity: "error",
			})
		}
	}
	return errs
}

// isCycle reports whether a strongly connected component actually
// contains a cycle: more than one step, or a step routing to itself.
func isCycle(wf *Workflow, scc []string) bool {
	if len(scc) > 1 {
		return true
	}
	id := scc[0]
	step := wf.Steps[id]
	return step.NextOnSuccess == id || step.NextOnFailure == id
}

// stronglyConnected computes the strongly connected components of the
// transition graph (Tarjan, iterative to keep deep graphs off the Go
// stack). Components come back in sorted-member order for deterministic
// error text.
func stronglyConnected(wf *Workflow) [][]string {
	edges := func(id string) []string {
		step := wf.Steps[id]
		var out []string
		for _, ref := range []string{step.NextOnSuccess, step.NextOnFailure} {
			if ref != "" {
				if _, ok := wf.Steps[ref]; ok {
					out = append(out, ref)
				}
			}
		}
		return out
	}

	index := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var sccs [][]string
	counter := 0

	type frame struct {
		id   string
		succ []string
		next int
	}

	for _, start := range wf.StepIDs() {
		if _, visited := index[start]; visited {
			continue
		}
		frames := []frame{{id: start, succ: edges(start)}}
		index[start] = counter
		lowlink[start] = counter
		counter++
		stack = append(stack, start)
		onStack[start] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			if f.next < len(f.succ) {
				w := f.succ[f.next]
				f.next++
				if _, visited := index[w]; !visited {
					index[w] = counter
					lowlink[w] = counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, frame{id: w, succ: edges(w)})
				} else if onStack[w] {
					if index[w] < lowlink[f.id] {
						lowlink[f.id] = index[w]
					}
				}
				continue
			}

			// Frame complete: pop an SCC if this is its root.
			if lowlink[f.id] == index[f.id] {
				var scc []string
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == f.id {
						break
					}
				}
				sort.Strings(scc)
				sccs = append(sccs, scc)
			}
			done := *f
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := &frames[len(frames)-1]
				if lowlink[done.id] < lowlink[parent.id] {
					lowlink[parent.id] = lowlink[done.id]
				}
			}
		}
	}
	return sccs
}
