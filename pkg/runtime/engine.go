package runtime

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/stepflow-ai/stepflow/pkg/assertions"
	"github.com/stepflow-ai/stepflow/pkg/condition"
	"github.com/stepflow-ai/stepflow/pkg/handlers"
	"github.com/stepflow-ai/stepflow/pkg/schema"

	"gopkg.in/yaml.v3"
)

// GenerateRunID creates a run ID in format YYYYMMDDTHHmmss-xxxx.
func GenerateRunID() string {
	ts := time.Now().Format("20060102T150405")
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("%s-%x", ts, suffix)
}

// DefaultRunsRoot is where run artifact directories are created.
const DefaultRunsRoot = ".stepflow/runs"

// Config controls how an Engine executes a workflow.
type Config struct {
	Mode         string // interactive, auto, dry-run (default auto)
	Gate         Gate   // default: ConsoleGate when interactive, else AutoGate
	RunsRoot     string // default DefaultRunsRoot
	WorkflowPath string // recorded in snapshots and the manifest
	Out          io.Writer

	// GateOncePerLoop suppresses the gate for loop body steps after the
	// first iteration, letting the iteration bound govern silently.
	GateOncePerLoop bool
}

// Engine is the runtime controller that drives workflow execution. It
// is the only component that mutates run state.
type Engine struct {
	Workflow *schema.Workflow
	Registry *handlers.Registry
	Gate     Gate
	State    *RunState
	Trace    *TraceWriter
	BaseDir  string // <runs root>/<run_id>/
	Out      io.Writer

	gateOncePerLoop bool
	suppressGate    bool
	stepCounts      StepsSummary
	snapshotSeq     int
}

// NewEngine creates an engine for executing a workflow.
func NewEngine(wf *schema.Workflow, registry *handlers.Registry, cfg Config) (*Engine, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = "auto"
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	gate := cfg.Gate
	if gate == nil {
		if mode == "interactive" {
			gate = NewConsoleGate(os.Stdin, out)
		} else {
			gate = AutoGate{}
		}
	}
	runsRoot := cfg.RunsRoot
	if runsRoot == "" {
		runsRoot = DefaultRunsRoot
	}

	runID := GenerateRunID()
	baseDir := filepath.Join(runsRoot, runID)
	if err := os.MkdirAll(filepath.Join(baseDir, "snapshots"), 0755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	trace, err := NewTraceWriter(filepath.Join(baseDir, "trace.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("create trace writer: %w", err)
	}

	state := &RunState{
		RunID:        runID,
		WorkflowName: wf.Name,
		WorkflowPath: cfg.WorkflowPath,
		Mode:         mode,
		Status:       RunRunning,
		StartedAt:    time.Now(),
		Current:      wf.StartStep,
		Steps:        make(map[string]*StepState, len(wf.Steps)),
		Results:      make(map[string]map[string]any),
	}
	for id := range wf.Steps {
		state.Steps[id] = &StepState{StepID: id, Status: StatusPending}
	}

	return &Engine{
		Workflow:        wf,
		Registry:        registry,
		Gate:            gate,
		State:           state,
		Trace:           trace,
		BaseDir:         baseDir,
		Out:             out,
		gateOncePerLoop: cfg.GateOncePerLoop,
	}, nil
}

// Execute validates the workflow and runs it from start_step to a
// terminal status. Returns an error only when the run failed; an
// operator rejection leaves the run aborted with a nil error.
func (e *Engine) Execute(ctx context.Context) error {
	defer e.Trace.Close()

	if err := e.preflight(); err != nil {
		e.failRun(err.Error())
		e.finish()
		return err
	}

	if err := e.runFrom(ctx, e.Workflow.StartStep, ""); err != nil {
		e.failRun(err.Error())
		e.finish()
		return err
	}

	e.finish()
	if e.State.Status == RunFailed {
		return fmt.Errorf("%s", e.State.Error)
	}
	return nil
}

// preflight re-validates the definition and runs handler-level
// validation before any step executes. No step runs against a
// definition that would fail validation.
func (e *Engine) preflight() error {
	if errs := schema.Validate(e.Workflow); len(errs) > 0 {
		return fmt.Errorf("workflow validation failed: %v", errs[0])
	}
	for _, id := range e.Workflow.StepIDs() {
		step := e.Workflow.Steps[id]
		if step.StepType == schema.StepConditional || step.StepType == schema.StepLoop {
			continue
		}
		h, err := e.Registry.Lookup(step.StepType)
		if err != nil {
			return fmt.Errorf("step %q: %w", id, err)
		}
		if vr := h.Validate(step); !vr.Valid {
			return fmt.Errorf("step %q invalid: %v", id, vr.Errors)
		}
	}
	return nil
}

// runFrom drives steps from startID until the path ends, the run
// reaches a terminal status, or the path routes to stopAt. Loop bodies
// pass their own step id as stopAt so a body edge pointing back at the
// loop step ends the iteration instead of re-entering the loop.
func (e *Engine) runFrom(ctx context.Context, startID, stopAt string) error {
	id := startID
	for id != "" && e.State.Status == RunRunning {
		if stopAt != "" && id == stopAt {
			return nil
		}
		step, ok := e.Workflow.Steps[id]
		if !ok {
			return fmt.Errorf("routed to undefined step %q", id)
		}
		e.State.Current = id
		next, err := e.executeOne(ctx, step)
		if err != nil {
			return err
		}
		id = next
	}
	return nil
}

// executeOne runs a single step, records the attempt, applies the gate,
// and returns the id of the next step to execute ("" ends the path).
func (e *Engine) executeOne(ctx context.Context, step *schema.Step) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	st := e.State.Steps[step.ID]
	if st == nil {
		st = &StepState{StepID: step.ID, Status: StatusPending}
		e.State.Steps[step.ID] = st
	}
	st.Attempts++
	if step.MaxRetries > 0 && st.Attempts > step.MaxRetries {
		e.failRun(fmt.Sprintf("step %q exhausted its %d allowed attempts: %s", step.ID, step.MaxRetries, st.Error))
		return "", nil
	}

	start := time.Now()
	st.Status = StatusRunning
	st.StartedAt = start
	if st.Attempts > 1 {
		fmt.Fprintf(e.Out, "\n▶ Step %q [%s] (attempt %d)\n", step.ID, step.StepType, st.Attempts)
	} else {
		fmt.Fprintf(e.Out, "\n▶ Step %q [%s]\n", step.ID, step.StepType)
	}

	record := &StepRecord{
		RunID:     e.State.RunID,
		StepID:    step.ID,
		StepType:  step.StepType,
		Attempt:   st.Attempts,
		StartedAt: start,
	}

	// Dependencies gate every step type. A conditional or loop guarded
	// by a dependency must not evaluate against a failed step's results.
	deps, ok := e.dependencyResults(step, record)
	if ok {
		switch step.StepType {
		case schema.StepLoop:
			e.executeLoop(ctx, step, record)
		case schema.StepConditional:
			e.executeConditional(step, record)
		default:
			e.executeHandler(ctx, step, record, deps)
		}
	}
	record.EndedAt = time.Now()
	st.EndedAt = record.EndedAt

	return e.completeStep(step, st, record)
}

// completeStep evaluates completion criteria, records the attempt, runs
// the gate, and picks the outgoing edge.
func (e *Engine) completeStep(step *schema.Step, st *StepState, record *StepRecord) (string, error) {
	// A nested step (inside a loop body) may already have finalized the
	// run. Record the interrupted attempt and stop routing.
	if e.State.Status != RunRunning {
		st.Status = record.Status
		st.Error = record.Error
		return "", e.persist(record)
	}

	if record.Status != StatusFailed && len(step.Criteria) > 0 {
		results, ok := assertions.EvaluateAll(step.Criteria, record.Data)
		record.Criteria = results
		if !ok {
			record.Status = StatusFailed
			for _, r := range results {
				if !r.Passed {
					record.Error = fmt.Sprintf("completion criterion failed: %s", r.Message)
					break
				}
			}
		}
	}

	if record.Status == StatusFailed {
		st.Status = StatusFailed
		st.Error = record.Error
		e.stepCounts.Failed++
		e.stepCounts.Total++
		fmt.Fprintf(e.Out, "  ✗ Step %q failed: %s\n", step.ID, record.Error)
		next := step.NextOnFailure
		if next == "" {
			e.failRun(fmt.Sprintf("step %q failed: %s", step.ID, record.Error))
		}
		e.State.Current = next
		if err := e.persist(record); err != nil {
			return "", err
		}
		return next, nil
	}

	st.Status = StatusSucceeded
	st.Error = ""
	e.State.SetResult(step.ID, record.Data)
	fmt.Fprintf(e.Out, "  ✓ Step %q succeeded\n", step.ID)

	if e.gateApplies(step) {
		resp, err := e.Gate.Review(step, record)
		if err != nil {
			return "", fmt.Errorf("gate for step %q: %w", step.ID, err)
		}
		switch resp.Decision {
		case DecisionReject:
			st.Status = StatusAborted
			st.Error = "result rejected by operator"
			record.Status = StatusAborted
			record.Error = st.Error
			e.stepCounts.Total++
			e.abortRun(step.ID)
			e.State.Current = ""
			if err := e.persist(record); err != nil {
				return "", err
			}
			return "", nil
		case DecisionEdit:
			if record.Data == nil {
				record.Data = make(map[string]any)
			}
			key := applyEdit(record.Data, resp.Edited)
			if key == "" {
				record.Data["text"] = resp.Edited
				key = "text"
			}
			record.Edited = true
			e.State.SetResult(step.ID, record.Data)
			fmt.Fprintf(e.Out, "  ✎ Replaced %q with operator edit\n", key)
		}
	}
	e.stepCounts.Succeeded++
	e.stepCounts.Total++

	next := step.NextOnSuccess
	if step.StepType == schema.StepConditional {
		if matched, _ := record.Data["matched"].(bool); !matched {
			next = step.NextOnFailure
		}
	}
	e.State.Current = next
	if err := e.persist(record); err != nil {
		return "", err
	}
	return next, nil
}

// dependencyResults verifies every declared dependency has succeeded
// and collects their recorded results. A missing or unsucceeded
// dependency marks the attempt failed.
func (e *Engine) dependencyResults(step *schema.Step, record *StepRecord) (map[string]map[string]any, bool) {
	deps := make(map[string]map[string]any, len(step.Dependencies))
	for _, dep := range step.Dependencies {
		ds := e.State.Steps[dep]
		if ds == nil || ds.Status != StatusSucceeded {
			record.Status = StatusFailed
			record.Error = fmt.Sprintf("dependency %q has not succeeded", dep)
			return nil, false
		}
		deps[dep] = e.State.Results[dep]
	}
	return deps, true
}

// executeHandler runs a handler-backed step: argument resolution, then
// the handler itself with the resolved dependency results.
func (e *Engine) executeHandler(ctx context.Context, step *schema.Step, record *StepRecord, deps map[string]map[string]any) {
	args, err := ResolveArguments(step.Arguments, e.State)
	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		return
	}

	h, err := e.Registry.Lookup(step.StepType)
	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		return
	}

	res, err := h.Execute(ctx, &handlers.Request{Step: step, Arguments: args, Dependencies: deps})
	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		return
	}
	record.Data = res.Data
	if !res.Success {
		record.Status = StatusFailed
		record.Error = res.Error
		if record.Error == "" {
			record.Error = "handler reported failure"
		}
		return
	}
	record.Status = StatusSucceeded
}

// executeConditional evaluates the step's condition; the boolean picks
// the outgoing edge in completeStep.
func (e *Engine) executeConditional(step *schema.Step, record *StepRecord) {
	matched, err := condition.Evaluate(step.Condition, e.State)
	if err != nil {
		record.Status = StatusFailed
		record.Error = fmt.Sprintf("condition %q: %v", step.Condition, err)
		return
	}
	record.Status = StatusSucceeded
	record.Data = map[string]any{"condition": step.Condition, "matched": matched}
}

// executeLoop re-runs the body sub-sequence while the guard condition
// holds, bounded by max_iterations. The guard is evaluated before every
// entry, so a condition that is false up front means zero iterations.
func (e *Engine) executeLoop(ctx context.Context, step *schema.Step, record *StepRecord) {
	cfg := step.Loop
	if cfg == nil {
		record.Status = StatusFailed
		record.Error = "loop step has no loop configuration"
		return
	}

	iterations := 0
	for {
		matched, err := condition.Evaluate(cfg.Condition, e.State)
		if err != nil {
			record.Status = StatusFailed
			record.Error = fmt.Sprintf("loop condition %q: %v", cfg.Condition, err)
			return
		}
		if !matched {
			break
		}
		if iterations >= cfg.MaxIterations {
			record.Status = StatusFailed
			record.Error = fmt.Sprintf("loop condition still true after %d iterations", cfg.MaxIterations)
			record.Data = map[string]any{"iterations": iterations}
			return
		}
		iterations++
		fmt.Fprintf(e.Out, "\n↻ Loop %q iteration %d/%d\n", step.ID, iterations, cfg.MaxIterations)

		// Restore rather than clear after the body: this loop may
		// itself be a suppressed body step of an outer loop.
		prevSuppress := e.suppressGate
		if e.gateOncePerLoop && iterations > 1 {
			e.suppressGate = true
		}
		err = e.runFrom(ctx, cfg.Body, step.ID)
		e.suppressGate = prevSuppress
		if err != nil {
			record.Status = StatusFailed
			record.Error = fmt.Sprintf("loop body: %v", err)
			record.Data = map[string]any{"iterations": iterations}
			return
		}
		if e.State.Status != RunRunning {
			record.Status = StatusSkipped
			record.Error = "loop interrupted: run reached a terminal status in the body"
			record.Data = map[string]any{"iterations": iterations}
			return
		}
	}

	record.Status = StatusSucceeded
	record.Data = map[string]any{"iterations": iterations}
}

// gateApplies reports whether the operator gate reviews this step.
// User-input steps are never gated: the operator just typed the value.
func (e *Engine) gateApplies(step *schema.Step) bool {
	if step.StepType == schema.StepUserInput {
		return false
	}
	return !e.suppressGate
}

// persist appends the record to history, the trace, and a snapshot.
func (e *Engine) persist(record *StepRecord) error {
	e.State.History = append(e.State.History, record)
	if err := e.Trace.Write(record); err != nil {
		return fmt.Errorf("write trace for step %q: %w", record.StepID, err)
	}
	snapshotPath := filepath.Join(e.BaseDir, "snapshots", fmt.Sprintf("step-%04d.json", e.snapshotSeq))
	e.snapshotSeq++
	if err := SaveSnapshot(e.State, snapshotPath); err != nil {
		return fmt.Errorf("save snapshot for step %q: %w", record.StepID, err)
	}
	return nil
}

func (e *Engine) failRun(msg string) {
	if e.State.Status != RunRunning {
		return
	}
	e.State.Status = RunFailed
	e.State.Error = msg
}

func (e *Engine) abortRun(stepID string) {
	if e.State.Status != RunRunning {
		return
	}
	e.State.Status = RunAborted
	e.State.Error = fmt.Sprintf("operator rejected result of step %q", stepID)
	fmt.Fprintf(e.Out, "\n■ Run aborted: %s\n", e.State.Error)
}

// finish settles the terminal status, prints the summary, and writes
// the manifest.
func (e *Engine) finish() {
	if e.State.Status == RunRunning {
		e.State.Status = RunSucceeded
	}
	e.State.Current = ""

	switch e.State.Status {
	case RunSucceeded:
		fmt.Fprintf(e.Out, "\n✓ Workflow completed successfully (%d step attempts)\n", e.stepCounts.Total)
	case RunFailed:
		fmt.Fprintf(e.Out, "\n✗ Workflow failed: %s\n", e.State.Error)
	}
	fmt.Fprintf(e.Out, "  Artifacts: %s\n", e.BaseDir)

	if err := e.Trace.WriteFinished(e.State.RunID, e.State.Status, e.State.Error); err != nil {
		fmt.Fprintf(os.Stderr, "warning: write trace: %v\n", err)
	}
	if err := e.WriteManifest(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: write manifest: %v\n", err)
	}
}

// Step executes the single step the run is positioned on and advances.
// Returns done=true once the run has reached a terminal status. This is
// the entry point used by the debugger and the TUI.
func (e *Engine) Step(ctx context.Context) (bool, error) {
	if e.State.Status != RunRunning || e.State.Current == "" {
		return true, nil
	}
	step, ok := e.Workflow.Steps[e.State.Current]
	if !ok {
		return true, fmt.Errorf("routed to undefined step %q", e.State.Current)
	}
	next, err := e.executeOne(ctx, step)
	if err != nil {
		e.failRun(err.Error())
		e.finish()
		return true, err
	}
	e.State.Current = next
	if next == "" || e.State.Status != RunRunning {
		e.finish()
		return true, nil
	}
	return false, nil
}

// InsertStep adds a step to the workflow mid-run. The whole definition
// is re-validated before the step becomes routable; a rejected step
// leaves the workflow unchanged.
func (e *Engine) InsertStep(id string, step *schema.Step) error {
	if err := e.Workflow.AddStep(id, step); err != nil {
		return err
	}
	if errs := schema.Validate(e.Workflow); len(errs) > 0 {
		delete(e.Workflow.Steps, id)
		return fmt.Errorf("inserted step %q rejected: %v", id, errs[0])
	}
	if step.StepType != schema.StepConditional && step.StepType != schema.StepLoop {
		h, err := e.Registry.Lookup(step.StepType)
		if err != nil {
			delete(e.Workflow.Steps, id)
			return fmt.Errorf("inserted step %q: %w", id, err)
		}
		if vr := h.Validate(step); !vr.Valid {
			delete(e.Workflow.Steps, id)
			return fmt.Errorf("inserted step %q invalid: %v", id, vr.Errors)
		}
	}
	e.State.Steps[id] = &StepState{StepID: id, Status: StatusPending}
	return nil
}

// RunID returns the current run ID.
func (e *Engine) RunID() string {
	return e.State.RunID
}

// BuildManifest produces a RunManifest from the current engine state.
func (e *Engine) BuildManifest() *RunManifest {
	finalStep := ""
	if n := len(e.State.History); n > 0 {
		finalStep = e.State.History[n-1].StepID
	}
	return &RunManifest{
		RunID:        e.State.RunID,
		Workflow:     e.State.WorkflowName,
		WorkflowPath: e.State.WorkflowPath,
		Mode:         e.State.Mode,
		Status:       e.State.Status,
		Error:        e.State.Error,
		FinalStep:    finalStep,
		StartedAt:    e.State.StartedAt.UTC().Format(time.RFC3339),
		EndedAt:      time.Now().UTC().Format(time.RFC3339),
		StepsSummary: e.stepCounts,
	}
}

// WriteManifest writes run.yaml to the run artifacts directory.
func (e *Engine) WriteManifest() error {
	m := e.BuildManifest()
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(e.BaseDir, "run.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
