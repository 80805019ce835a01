package debugger

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stepflow-ai/stepflow/pkg/handlers"
	"github.com/stepflow-ai/stepflow/pkg/runtime"
	"github.com/stepflow-ai/stepflow/pkg/schema"
)

func testWorkflow(t *testing.T) *schema.Workflow {
	t.Helper()
	wf := &schema.Workflow{Name: "debug-test", StartStep: "gen", Steps: map[string]*schema.Step{}}
	steps := map[string]*schema.Step{
		"gen": {
			StepType:      schema.StepGeneration,
			Arguments:     map[string]any{"task": "write a function"},
			NextOnSuccess: "check",
		},
		"check": {
			StepType:  schema.StepReview,
			Arguments: map[string]any{"task": "review it", "content": "{gen.code}"},
		},
	}
	for id, s := range steps {
		if err := wf.AddStep(id, s); err != nil {
			t.Fatal(err)
		}
	}
	return wf
}

func testDebugger(t *testing.T, wf *schema.Workflow) (*Debugger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	registry := handlers.DefaultRegistry(&handlers.DryRunGenerator{}, &handlers.DryRunPrompter{})
	d, err := New(wf, registry, runtime.Config{
		Mode:     "auto",
		RunsRoot: t.TempDir(),
		Out:      io.Discard,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	d.output = &buf
	return d, &buf
}

// TestDebuggerCommandHelp verifies help output lists all commands.
func TestDebuggerCommandHelp(t *testing.T) {
	var buf bytes.Buffer
	d := &Debugger{
		output: &buf,
	}
	d.handleHelp()
	out := buf.String()
	cmds := []string{"next", "continue", "print", "history", "insert", "dump", "help", "quit"}
	for _, cmd := range cmds {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output missing command %q", cmd)
		}
	}
}

// TestDebuggerNextAdvances verifies single stepping moves the run forward.
func TestDebuggerNextAdvances(t *testing.T) {
	d, buf := testDebugger(t, testWorkflow(t))

	if err := d.handleNext(context.Background()); err != nil {
		t.Fatalf("handleNext() error: %v", err)
	}
	if d.state.Current != "check" {
		t.Errorf("current = %q, want %q", d.state.Current, "check")
	}
	if d.state.Steps["gen"].Status != runtime.StatusSucceeded {
		t.Errorf("gen status = %q, want succeeded", d.state.Steps["gen"].Status)
	}

	if err := d.handleNext(context.Background()); err != nil {
		t.Fatalf("handleNext() error: %v", err)
	}
	if d.state.Status != runtime.RunSucceeded {
		t.Errorf("run status = %q, want succeeded", d.state.Status)
	}
	if !strings.Contains(buf.String(), "Run finished") {
		t.Errorf("missing finish message, got:\n%s", buf.String())
	}
}

// TestDebuggerContinueRunsToEnd verifies continue drains the run.
func TestDebuggerContinueRunsToEnd(t *testing.T) {
	d, _ := testDebugger(t, testWorkflow(t))

	if err := d.handleContinue(context.Background()); err != nil {
		t.Fatalf("handleContinue() error: %v", err)
	}
	if d.state.Status != runtime.RunSucceeded {
		t.Errorf("run status = %q, want succeeded", d.state.Status)
	}
	if len(d.state.History) != 2 {
		t.Errorf("history length = %d, want 2", len(d.state.History))
	}
}

// TestDebuggerPrintResults verifies print results output.
func TestDebuggerPrintResults(t *testing.T) {
	var buf bytes.Buffer
	d := &Debugger{
		output: &buf,
		state: &runtime.RunState{
			Results: map[string]map[string]any{
				"gen": {"code": "def fib(n): ..."},
			},
		},
	}
	d.handlePrint([]string{"print", "results"})
	out := buf.String()
	if !strings.Contains(out, "gen.code") || !strings.Contains(out, "fib") {
		t.Errorf("print results missing expected content: %s", out)
	}
}

// TestDebuggerPrintSteps verifies print steps marks the current position.
func TestDebuggerPrintSteps(t *testing.T) {
	d, buf := testDebugger(t, testWorkflow(t))
	d.handlePrint([]string{"print", "steps"})
	out := buf.String()
	if !strings.Contains(out, "> gen") {
		t.Errorf("expected current-step marker on gen, got:\n%s", out)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("expected pending statuses, got:\n%s", out)
	}
}

// TestDebuggerHistory verifies history output.
func TestDebuggerHistory(t *testing.T) {
	var buf bytes.Buffer
	d := &Debugger{
		output: &buf,
		state: &runtime.RunState{
			History: []*runtime.StepRecord{
				{StepID: "gen", Attempt: 1, Status: runtime.StatusSucceeded},
				{StepID: "check", Attempt: 2, Status: runtime.StatusFailed, Error: "criteria not met"},
			},
		},
	}
	d.handleHistory()
	out := buf.String()
	if !strings.Contains(out, "gen") || !strings.Contains(out, "succeeded") {
		t.Errorf("history missing expected content: %s", out)
	}
	if !strings.Contains(out, "criteria not met") {
		t.Errorf("history missing error detail: %s", out)
	}
}

// TestDebuggerInsertStep verifies mid-run step insertion through the REPL.
func TestDebuggerInsertStep(t *testing.T) {
	d, buf := testDebugger(t, testWorkflow(t))

	d.handleInsert(`insert extra {"step_type":"review","arguments":{"task":"double-check"}}`)
	if !strings.Contains(buf.String(), `Step "extra" inserted`) {
		t.Fatalf("insert failed: %s", buf.String())
	}
	if _, ok := d.workflow.Steps["extra"]; !ok {
		t.Error("inserted step missing from workflow")
	}

	buf.Reset()
	d.handleInsert(`insert bad {"step_type":"review","next_on_success":"ghost"}`)
	if !strings.Contains(buf.String(), "Error") {
		t.Errorf("expected rejection of dangling edge, got: %s", buf.String())
	}
	if _, ok := d.workflow.Steps["bad"]; ok {
		t.Error("rejected step should not remain in workflow")
	}
}

// TestDebuggerPromptFormat verifies prompt shows run position.
func TestDebuggerPromptFormat(t *testing.T) {
	d, _ := testDebugger(t, testWorkflow(t))
	prompt := d.buildPrompt()
	if !strings.Contains(prompt, "gen") || !strings.Contains(prompt, "running") {
		t.Errorf("prompt format unexpected: %q", prompt)
	}

	d.state.Status = runtime.RunSucceeded
	d.state.Current = ""
	if got := d.buildPrompt(); !strings.Contains(got, "succeeded") {
		t.Errorf("terminal prompt unexpected: %q", got)
	}
}
