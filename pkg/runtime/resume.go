package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/stepflow-ai/stepflow/pkg/handlers"
	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// ResumeEngine creates an Engine that resumes a run from its most
// recent snapshot. Execution continues at the step the snapshot
// recorded as current.
func ResumeEngine(wf *schema.Workflow, registry *handlers.Registry, cfg Config, runID string) (*Engine, error) {
	runsRoot := cfg.RunsRoot
	if runsRoot == "" {
		runsRoot = DefaultRunsRoot
	}
	baseDir := filepath.Join(runsRoot, runID)

	snapshotDir := filepath.Join(baseDir, "snapshots")
	dirEntries, err := os.ReadDir(snapshotDir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}
	var entries []os.DirEntry
	for _, e := range dirEntries {
		// Skip temp files from interrupted snapshot writes.
		if filepath.Ext(e.Name()) == ".json" {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no snapshots found for run %s", runID)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	lastSnapshot := entries[len(entries)-1]

	state, err := LoadSnapshot(filepath.Join(snapshotDir, lastSnapshot.Name()))
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if state.Status != RunRunning {
		return nil, fmt.Errorf("run %s already finished with status %s", runID, state.Status)
	}
	if state.Current == "" {
		return nil, fmt.Errorf("run %s has no current step to resume from", runID)
	}
	if _, ok := wf.Steps[state.Current]; !ok {
		return nil, fmt.Errorf("snapshot step %q not present in workflow %q", state.Current, wf.Name)
	}

	// Re-open trace for append
	trace, err := NewTraceWriter(filepath.Join(baseDir, "trace.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("reopen trace: %w", err)
	}

	var out io.Writer = os.Stdout
	if cfg.Out != nil {
		out = cfg.Out
	}
	gate := cfg.Gate
	if gate == nil {
		if state.Mode == "interactive" {
			gate = NewConsoleGate(os.Stdin, out)
		} else {
			gate = AutoGate{}
		}
	}

	fmt.Fprintf(out, "Resuming run %s at step %q\n", runID, state.Current)

	e := &Engine{
		Workflow:        wf,
		Registry:        registry,
		Gate:            gate,
		State:           state,
		Trace:           trace,
		BaseDir:         baseDir,
		Out:             out,
		gateOncePerLoop: cfg.GateOncePerLoop,
		snapshotSeq:     len(entries),
	}
	e.RestoreStepCounts()
	return e, nil
}

// Resume continues execution from the restored current step to a
// terminal status. Same contract as Execute.
func (e *Engine) Resume(ctx context.Context) error {
	defer e.Trace.Close()

	if err := e.preflight(); err != nil {
		e.failRun(err.Error())
		e.finish()
		return err
	}
	if err := e.runFrom(ctx, e.State.Current, ""); err != nil {
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

// RestoreStepCounts rebuilds the step counters from the engine's
// history. Called after resume so the manifest reports correct totals.
func (e *Engine) RestoreStepCounts() {
	e.stepCounts = StepsSummary{}
	for _, h := range e.State.History {
		switch h.Status {
		case StatusSucceeded:
			e.stepCounts.Succeeded++
		case StatusFailed:
			e.stepCounts.Failed++
		case StatusSkipped:
			e.stepCounts.Skipped++
		}
		e.stepCounts.Total++
	}
}
