// Package diagram generates visual diagrams from parsed workflows.
// Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram string from a parsed workflow.
func Generate(wf *schema.Workflow, format Format) (string, error) {
	if wf == nil {
		return "", fmt.Errorf("nil workflow")
	}
	switch format {
	case FormatMermaid:
		return generateMermaid(wf), nil
	case FormatASCII:
		return generateASCII(wf), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

func generateMermaid(wf *schema.Workflow) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	order := walkOrder(wf)
	if len(order) == 0 {
		return b.String()
	}

	b.WriteString("    START([Start]) --> " + safeID(wf.StartStep) + "\n")

	needDone := false
	for _, id := range order {
		s := wf.Steps[id]
		b.WriteString("    " + nodeDefinition(s) + "\n")

		switch {
		case s.StepType == schema.StepConditional:
			if s.NextOnSuccess != "" {
				b.WriteString(fmt.Sprintf("    %s -->|\"true\"| %s\n", safeID(id), safeID(s.NextOnSuccess)))
			}
			if s.NextOnFailure != "" {
				b.WriteString(fmt.Sprintf("    %s -->|\"false\"| %s\n", safeID(id), safeID(s.NextOnFailure)))
			}
		case s.StepType == schema.StepLoop && s.Loop != nil:
			b.WriteString(fmt.Sprintf("    %s -->|\"iterate\"| %s\n", safeID(id), safeID(s.Loop.Body)))
			if s.NextOnSuccess != "" {
				b.WriteString(fmt.Sprintf("    %s -->|\"done\"| %s\n", safeID(id), safeID(s.NextOnSuccess)))
			}
			if s.NextOnFailure != "" {
				b.WriteString(fmt.Sprintf("    %s -.->|\"failure\"| %s\n", safeID(id), safeID(s.NextOnFailure)))
			}
		default:
			if s.NextOnSuccess != "" {
				b.WriteString(fmt.Sprintf("    %s --> %s\n", safeID(id), safeID(s.NextOnSuccess)))
			}
			if s.NextOnFailure != "" {
				b.WriteString(fmt.Sprintf("    %s -.->|\"failure\"| %s\n", safeID(id), safeID(s.NextOnFailure)))
			}
		}

		if s.NextOnSuccess == "" && s.StepType != schema.StepConditional {
			needDone = true
			b.WriteString(fmt.Sprintf("    %s --> DONE\n", safeID(id)))
		}
	}

	if needDone {
		b.WriteString("    DONE([Done])\n")
		b.WriteString("    style DONE fill:#0d6,stroke:#0a5,color:#fff\n")
	}

	// Style interactive steps
	for _, id := range order {
		if wf.Steps[id].StepType == schema.StepUserInput {
			b.WriteString(fmt.Sprintf("    style %s fill:#1a3a4a,stroke:#0af\n", safeID(id)))
		}
	}

	return b.String()
}

// --- ASCII ---

func generateASCII(wf *schema.Workflow) string {
	var b strings.Builder

	name := wf.Name
	if name == "" {
		name = "Workflow"
	}

	main, rest := successPath(wf)
	if len(main) == 0 {
		b.WriteString(name + " (empty)\n")
		return b.String()
	}

	// Compute uniform box width so every box and connector aligns.
	const indent = 8
	boxWidth := computeUniformBoxWidth(wf, main, name)
	connCol := indent + 1 + boxWidth/2 // +1 accounts for the border character
	pad := strings.Repeat(" ", indent)
	connPad := strings.Repeat(" ", connCol)

	// Header, same width as body boxes, name centered.
	headerText := centerPad(name, boxWidth)
	mid := boxWidth / 2
	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + headerText + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")
	b.WriteString(connPad + "│\n")

	for i, id := range main {
		writeASCIIStep(&b, wf.Steps[id], indent, boxWidth)
		if i < len(main)-1 {
			b.WriteString(connPad + "│\n")
		}
	}

	if len(rest) > 0 {
		b.WriteString("\n" + pad + "off the main path:\n")
		for _, id := range rest {
			s := wf.Steps[id]
			b.WriteString(pad + "  " + stepIcon(s.StepType) + " " + id + edgeSummary(s) + "\n")
		}
	}

	return b.String()
}

// computeUniformBoxWidth returns the widest interior width needed
// across the main-path steps and the header name.
func computeUniformBoxWidth(wf *schema.Workflow, main []string, name string) int {
	minWidth := 22
	w := minWidth

	// Header name with padding
	nameWidth := runewidth.StringWidth(name) + 4 // "  name  "
	if nameWidth > w {
		w = nameWidth
	}

	for _, id := range main {
		if sw := stepContentWidth(wf.Steps[id]); sw > w {
			w = sw
		}
	}
	return w
}

// stepContentWidth returns the interior width a single step box needs.
func stepContentWidth(s *schema.Step) int {
	content := fmt.Sprintf(" %s %s ", stepIcon(s.StepType), s.ID)
	w := runewidth.StringWidth(content)
	if edge := edgeSummary(s); edge != "" {
		if ew := runewidth.StringWidth(" " + edge + " "); ew > w {
			w = ew
		}
	}
	return w
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

func writeASCIIStep(b *strings.Builder, s *schema.Step, indent, boxWidth int) {
	content := fmt.Sprintf(" %s %s ", stepIcon(s.StepType), s.ID)
	contentWidth := runewidth.StringWidth(content)

	pad := strings.Repeat(" ", indent)
	topBot := strings.Repeat("─", boxWidth)
	mid := boxWidth / 2

	b.WriteString(pad + "┌" + topBot + "┐\n")
	b.WriteString(pad + "│" + content + strings.Repeat(" ", boxWidth-contentWidth) + "│\n")
	if edge := edgeSummary(s); edge != "" {
		line := " " + edge + " "
		lw := runewidth.StringWidth(line)
		b.WriteString(pad + "│" + line + strings.Repeat(" ", boxWidth-lw) + "│\n")
	}
	b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
}

// edgeSummary renders the non-sequential edges of a step, if any.
func edgeSummary(s *schema.Step) string {
	var parts []string
	if s.StepType == schema.StepLoop && s.Loop != nil {
		parts = append(parts, "↻ "+s.Loop.Body)
	}
	if s.StepType == schema.StepConditional && s.NextOnFailure != "" {
		parts = append(parts, "false → "+s.NextOnFailure)
	} else if s.NextOnFailure != "" {
		parts = append(parts, "on failure → "+s.NextOnFailure)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ", ")
}

func stepIcon(stepType string) string {
	switch stepType {
	case schema.StepUserInput:
		return "🧑"
	case schema.StepFileOperation:
		return "📄"
	case schema.StepConditional:
		return "◆"
	case schema.StepLoop:
		return "↻"
	case schema.StepReview:
		return "🔍"
	default:
		return "⚡"
	}
}

// --- graph walking helpers ---

// walkOrder visits steps depth-first from the start step following success,
// failure, and loop-body edges, then appends unreachable steps sorted by id.
func walkOrder(wf *schema.Workflow) []string {
	var order []string
	seen := make(map[string]bool)

	var visit func(id string)
	visit = func(id string) {
		if id == "" || seen[id] {
			return
		}
		s, ok := wf.Steps[id]
		if !ok {
			return
		}
		seen[id] = true
		order = append(order, id)
		if s.Loop != nil {
			visit(s.Loop.Body)
		}
		visit(s.NextOnSuccess)
		visit(s.NextOnFailure)
	}
	visit(wf.StartStep)

	var rest []string
	for id := range wf.Steps {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// successPath follows next_on_success from the start step until the path
// ends or revisits a step. Everything else lands in rest, sorted by id.
func successPath(wf *schema.Workflow) (main, rest []string) {
	seen := make(map[string]bool)
	id := wf.StartStep
	for id != "" && !seen[id] {
		s, ok := wf.Steps[id]
		if !ok {
			break
		}
		seen[id] = true
		main = append(main, id)
		id = s.NextOnSuccess
	}
	for sid := range wf.Steps {
		if !seen[sid] {
			rest = append(rest, sid)
		}
	}
	sort.Strings(rest)
	return main, rest
}

// --- string helpers ---

func nodeDefinition(s *schema.Step) string {
	id := safeID(s.ID)
	label := s.ID
	if s.Description != "" {
		label = s.ID + "<br/>" + truncate(s.Description, 40)
	}

	switch s.StepType {
	case schema.StepConditional:
		return fmt.Sprintf(`%s{"◆ %s"}`, id, escMermaid(label))
	case schema.StepLoop:
		return fmt.Sprintf(`%s[["↻ %s"]]`, id, escMermaid(label))
	case schema.StepUserInput:
		return fmt.Sprintf(`%s{{"🧑 %s"}}`, id, escMermaid(label))
	case schema.StepFileOperation:
		return fmt.Sprintf(`%s[/"📄 %s"/]`, id, escMermaid(label))
	default:
		return fmt.Sprintf(`%s["%s %s"]`, id, stepIcon(s.StepType), escMermaid(label))
	}
}

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	return r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
