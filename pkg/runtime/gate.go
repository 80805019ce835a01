package runtime

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// Gate decisions.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionEdit    = "edit"
)

// GateResponse is the operator's verdict on a completed step.
type GateResponse struct {
	Decision string
	Edited   string // replacement text when Decision is edit
}

// Gate reviews a succeeded step before the run moves on.
type Gate interface {
	Review(step *schema.Step, record *StepRecord) (*GateResponse, error)
}

// AutoGate approves every step without prompting. Used in auto and
// dry-run modes.
type AutoGate struct{}

func (AutoGate) Review(step *schema.Step, record *StepRecord) (*GateResponse, error) {
	return &GateResponse{Decision: DecisionApprove}, nil
}

// ConsoleGate prompts the operator on the terminal for y/n/e after
// each step. An edit reads replacement lines until a line containing
// only END.
type ConsoleGate struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// NewConsoleGate creates a gate reading decisions from in and writing
// prompts to out.
func NewConsoleGate(in io.Reader, out io.Writer) *ConsoleGate {
	return &ConsoleGate{In: in, Out: out, reader: bufio.NewReader(in)}
}

func (g *ConsoleGate) Review(step *schema.Step, record *StepRecord) (*GateResponse, error) {
	g.printRecord(step, record)

	for {
		fmt.Fprintf(g.Out, "Accept this result? (y/n/e to edit): ")
		line, err := g.reader.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("read gate decision: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return &GateResponse{Decision: DecisionApprove}, nil
		case "n", "no":
			return &GateResponse{Decision: DecisionReject}, nil
		case "e", "edit":
			edited, err := g.readEdit()
			if err != nil {
				return nil, err
			}
			return &GateResponse{Decision: DecisionEdit, Edited: edited}, nil
		default:
			fmt.Fprintf(g.Out, "Please answer y, n, or e.\n")
		}
	}
}

// readEdit collects replacement lines until a line containing only END.
func (g *ConsoleGate) readEdit() (string, error) {
	fmt.Fprintf(g.Out, "Enter replacement text. Finish with a line containing only END:\n")
	var lines []string
	for {
		line, err := g.reader.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(trimmed) == "END" {
			break
		}
		if err != nil {
			if err == io.EOF {
				// Treat EOF like END so piped input still works.
				if trimmed != "" {
					lines = append(lines, trimmed)
				}
				break
			}
			return "", fmt.Errorf("read edit: %w", err)
		}
		lines = append(lines, trimmed)
	}
	return strings.Join(lines, "\n"), nil
}

// printRecord shows the step's result data so the operator can judge it.
func (g *ConsoleGate) printRecord(step *schema.Step, record *StepRecord) {
	fmt.Fprintf(g.Out, "\n── Result of step %q [%s] ──\n", step.ID, step.StepType)
	if record.Data == nil {
		fmt.Fprintf(g.Out, "  (no result data)\n")
		return
	}
	keys := make([]string, 0, len(record.Data))
	for k := range record.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprintf("%v", record.Data[k])
		if strings.Contains(v, "\n") {
			fmt.Fprintf(g.Out, "  %s:\n", k)
			for _, line := range strings.Split(v, "\n") {
				fmt.Fprintf(g.Out, "    %s\n", line)
			}
		} else {
			fmt.Fprintf(g.Out, "  %s: %s\n", k, v)
		}
	}
}

// editableKeys lists result keys an edit may replace, in priority order.
var editableKeys = []string{"code", "text", "review", "content", "input", "response"}

// applyEdit replaces the first editable key present in data with the
// operator's text. Returns the key replaced, or "" if none matched.
func applyEdit(data map[string]any, edited string) string {
	for _, k := range editableKeys {
		if _, ok := data[k]; ok {
			data[k] = edited
			return k
		}
	}
	return ""
}
