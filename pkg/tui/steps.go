package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/stepflow-ai/stepflow/pkg/runtime"
	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// stepStatus tracks the display state of each step.
type stepStatus int

const (
	statusPending stepStatus = iota
	statusCurrent
	statusPassed
	statusFailed
	statusSkipped
)

// stepInfo holds the display state for a single step.
type stepInfo struct {
	ID       string
	Type     string
	Status   stepStatus
	Error    string
	Attempts int
	Edited   bool
}

// stepsPanel renders the scrollable step list.
type stepsPanel struct {
	steps  []stepInfo
	cursor int // highlighted step (for browsing)
	width  int
	height int
	offset int // scroll offset
}

func newStepsPanel() stepsPanel {
	return stepsPanel{
		cursor: -1,
	}
}

// SetSteps initializes the step list from the workflow graph, success
// path first so the list reads in execution order.
func (p *stepsPanel) SetSteps(wf *schema.Workflow) {
	p.steps = p.steps[:0]
	for _, id := range displayOrder(wf) {
		p.steps = append(p.steps, stepInfo{
			ID:     id,
			Type:   wf.Steps[id].StepType,
			Status: statusPending,
		})
	}
}

// AddStep appends a dynamically inserted step that wasn't in the
// initial definition.
func (p *stepsPanel) AddStep(id, typ string) {
	p.steps = append(p.steps, stepInfo{
		ID:     id,
		Type:   typ,
		Status: statusPending,
	})
}

// HasStep returns true if a step with the given ID is already tracked.
func (p *stepsPanel) HasStep(id string) bool {
	for _, s := range p.steps {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Apply updates a step's display state from an executed record.
func (p *stepsPanel) Apply(record *runtime.StepRecord) {
	for i := range p.steps {
		if p.steps[i].ID != record.StepID {
			continue
		}
		switch record.Status {
		case runtime.StatusSucceeded:
			p.steps[i].Status = statusPassed
		case runtime.StatusFailed:
			p.steps[i].Status = statusFailed
		case runtime.StatusSkipped:
			p.steps[i].Status = statusSkipped
		case runtime.StatusAborted:
			p.steps[i].Status = statusFailed
		}
		p.steps[i].Error = record.Error
		p.steps[i].Attempts = record.Attempt
		p.steps[i].Edited = record.Edited
		return
	}
}

// SetCurrent marks the step the run is positioned on.
func (p *stepsPanel) SetCurrent(stepID string) {
	for i := range p.steps {
		if p.steps[i].ID == stepID {
			p.steps[i].Status = statusCurrent
			p.cursor = i
			p.ensureVisible()
			return
		}
	}
}

// CursorUp moves the browsing cursor up.
func (p *stepsPanel) CursorUp() {
	if p.cursor > 0 {
		p.cursor--
		p.ensureVisible()
	}
}

// CursorDown moves the browsing cursor down.
func (p *stepsPanel) CursorDown() {
	if p.cursor < len(p.steps)-1 {
		p.cursor++
		p.ensureVisible()
	}
}

// SelectedID returns the step ID at the cursor position.
func (p *stepsPanel) SelectedID() string {
	if p.cursor >= 0 && p.cursor < len(p.steps) {
		return p.steps[p.cursor].ID
	}
	return ""
}

func (p *stepsPanel) ensureVisible() {
	visible := p.height - 2 // account for border/title
	if visible < 1 {
		visible = 1
	}
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+visible {
		p.offset = p.cursor - visible + 1
	}
}

// View renders the step list panel.
func (p *stepsPanel) View() string {
	if len(p.steps) == 0 {
		return panelBorder.Width(p.width).Height(p.height).Render("  No steps loaded")
	}

	visible := p.height - 2
	if visible < 1 {
		visible = 1
	}

	var lines []string
	end := p.offset + visible
	if end > len(p.steps) {
		end = len(p.steps)
	}

	for i := p.offset; i < end; i++ {
		step := p.steps[i]

		glyph := GlyphPending
		switch step.Status {
		case statusCurrent:
			glyph = GlyphCurrent
		case statusPassed:
			glyph = GlyphPassed
		case statusFailed:
			glyph = GlyphFailed
		case statusSkipped:
			glyph = GlyphSkipped
		}
		if step.Edited {
			glyph = GlyphEdited
		}

		label := step.ID
		maxLabel := p.width - 10 // glyph + padding + number + type tag
		if maxLabel < 4 {
			maxLabel = 4
		}
		label = runewidth.Truncate(label, maxLabel, "…")

		num := fmt.Sprintf("%d.", i+1)
		line := fmt.Sprintf(" %s %s %s", glyph, num, label)
		if step.Attempts > 1 {
			line += fmt.Sprintf(" (attempt %d)", step.Attempts)
		}

		style := styleFor(step.Status)
		if i == p.cursor {
			line = style.Reverse(true).Render(line)
		} else {
			line = style.Render(line)
		}

		lines = append(lines, line)
	}

	// Pad remaining height
	for len(lines) < visible {
		lines = append(lines, "")
	}

	content := strings.Join(lines, "\n")

	title := panelTitle.Render("Steps")
	return panelBorder.Width(p.width).Height(p.height).Render(
		title + "\n" + content,
	)
}

// Stats returns counts of steps by status.
func (p *stepsPanel) Stats() (total, passed, failed, skipped int) {
	total = len(p.steps)
	for _, s := range p.steps {
		switch s.Status {
		case statusPassed:
			passed++
		case statusFailed:
			failed++
		case statusSkipped:
			skipped++
		}
	}
	return
}

// displayOrder lists step ids success-path first, then the remaining
// steps in sorted order.
func displayOrder(wf *schema.Workflow) []string {
	var order []string
	seen := make(map[string]bool)

	id := wf.StartStep
	for id != "" && !seen[id] {
		s, ok := wf.Steps[id]
		if !ok {
			break
		}
		seen[id] = true
		order = append(order, id)
		id = s.NextOnSuccess
	}
	for _, sid := range wf.StepIDs() {
		if !seen[sid] {
			order = append(order, sid)
		}
	}
	return order
}
