package debugger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/stepflow-ai/stepflow/pkg/runtime"
	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// handleNext executes the step the run is positioned on and advances.
func (d *Debugger) handleNext(ctx context.Context) error {
	if d.state.Status != runtime.RunRunning || d.state.Current == "" {
		fmt.Fprintf(d.output, "Run already finished: %s\n", d.state.Status)
		return nil
	}

	done, err := d.engine.Step(ctx)
	if err != nil {
		return err
	}
	if done {
		fmt.Fprintf(d.output, "Run finished: %s\n", d.state.Status)
	}
	return nil
}

// handleContinue executes all remaining steps.
func (d *Debugger) handleContinue(ctx context.Context) error {
	for d.state.Status == runtime.RunRunning && d.state.Current != "" {
		done, err := d.engine.Step(ctx)
		if err != nil {
			return err
		}
		if done {
			break
		}
	}
	fmt.Fprintf(d.output, "Run finished: %s\n", d.state.Status)
	return nil
}

// handlePrint displays step results or statuses.
func (d *Debugger) handlePrint(parts []string) {
	if len(parts) < 2 {
		fmt.Fprintf(d.output, "Usage: print results|steps\n")
		return
	}
	switch parts[1] {
	case "results":
		if len(d.state.Results) == 0 {
			fmt.Fprintf(d.output, "No results recorded.\n")
			return
		}
		ids := make([]string, 0, len(d.state.Results))
		for id := range d.state.Results {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			keys := make([]string, 0, len(d.state.Results[id]))
			for k := range d.state.Results[id] {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				display := fmt.Sprintf("%v", d.state.Results[id][k])
				if len(display) > 200 {
					display = display[:200] + "..."
				}
				fmt.Fprintf(d.output, "  %s.%s = %q\n", id, k, display)
			}
		}
	case "steps":
		ids := d.workflow.StepIDs()
		for _, id := range ids {
			status := runtime.StatusPending
			if st, ok := d.state.Steps[id]; ok {
				status = st.Status
			}
			marker := " "
			if id == d.state.Current {
				marker = ">"
			}
			fmt.Fprintf(d.output, "  %s %-24s %s\n", marker, id, status)
		}
	default:
		fmt.Fprintf(d.output, "Unknown print target: %q. Use 'results' or 'steps'.\n", parts[1])
	}
}

// handleHistory shows completed step records.
func (d *Debugger) handleHistory() {
	if len(d.state.History) == 0 {
		fmt.Fprintf(d.output, "No steps executed yet.\n")
		return
	}
	for _, r := range d.state.History {
		glyph := "✓"
		switch r.Status {
		case runtime.StatusFailed:
			glyph = "✗"
		case runtime.StatusSkipped:
			glyph = "⊘"
		case runtime.StatusAborted:
			glyph = "■"
		}
		fmt.Fprintf(d.output, "  %s %s (attempt %d) — %s\n", glyph, r.StepID, r.Attempt, r.Status)
		if r.Error != "" {
			fmt.Fprintf(d.output, "       error: %s\n", r.Error)
		}
	}
}

// handleInsert adds a step to the workflow mid-run:
// insert <id> <step JSON>
func (d *Debugger) handleInsert(line string) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		fmt.Fprintf(d.output, "Usage: insert <id> <step JSON>\n")
		fmt.Fprintf(d.output, `Example: insert extra '{"step_type":"review","arguments":{"task":"check"},"next_on_success":"done"}'`+"\n")
		return
	}
	id := parts[1]
	raw := strings.Trim(strings.TrimSpace(parts[2]), "'")

	var step schema.Step
	if err := json.Unmarshal([]byte(raw), &step); err != nil {
		fmt.Fprintf(d.output, "  Error: parse step JSON: %v\n", err)
		return
	}
	if err := d.engine.InsertStep(id, &step); err != nil {
		fmt.Fprintf(d.output, "  Error: %v\n", err)
		return
	}
	fmt.Fprintf(d.output, "  Step %q inserted (%s)\n", id, step.StepType)
}

// handleDump outputs the full current state as JSON.
func (d *Debugger) handleDump() {
	data, err := json.MarshalIndent(d.state, "", "  ")
	if err != nil {
		fmt.Fprintf(d.output, "  Error marshaling state: %v\n", err)
		return
	}
	fmt.Fprintln(d.output, string(data))
}

// handleHelp displays available commands.
func (d *Debugger) handleHelp() {
	fmt.Fprintln(d.output, "Available commands:")
	fmt.Fprintln(d.output, "  next (n)         Execute the current step and advance")
	fmt.Fprintln(d.output, "  continue (c)     Execute all remaining steps")
	fmt.Fprintln(d.output, "  print results    Show recorded step results")
	fmt.Fprintln(d.output, "  print steps      Show step statuses and the current position")
	fmt.Fprintln(d.output, "  history          Show executed step records")
	fmt.Fprintln(d.output, "  insert           Add a step mid-run: insert <id> <step JSON>")
	fmt.Fprintln(d.output, "  dump             Output full run state as JSON")
	fmt.Fprintln(d.output, "  help (?)         Show this help")
	fmt.Fprintln(d.output, "  quit (q)         Exit debugger")
}
