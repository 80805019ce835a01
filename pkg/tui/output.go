package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/stepflow-ai/stepflow/pkg/runtime"
)

// resultPanel renders the scrollable result of each executed step.
type resultPanel struct {
	viewport viewport.Model

	// rendered stores the glamour-rendered result per step ID.
	rendered map[string]string

	// activeStep is the step ID whose result is currently displayed.
	activeStep string

	width  int
	height int
	ready  bool
}

func newResultPanel() resultPanel {
	return resultPanel{
		rendered: make(map[string]string),
	}
}

// SetSize updates the viewport dimensions.
func (p *resultPanel) SetSize(width, height int) {
	p.width = width
	p.height = height

	contentW := width - 4  // border padding
	contentH := height - 3 // title + border

	if contentW < 1 {
		contentW = 1
	}
	if contentH < 1 {
		contentH = 1
	}

	if !p.ready {
		p.viewport = viewport.New(contentW, contentH)
		p.ready = true
	} else {
		p.viewport.Width = contentW
		p.viewport.Height = contentH
	}

	if content, ok := p.rendered[p.activeStep]; ok {
		p.viewport.SetContent(content)
	}
}

// Record renders and stores a step record, showing it if active.
func (p *resultPanel) Record(record *runtime.StepRecord) {
	p.rendered[record.StepID] = renderMarkdown(recordMarkdown(record))
	if record.StepID == p.activeStep && p.ready {
		p.viewport.SetContent(p.rendered[record.StepID])
		p.viewport.GotoBottom()
	}
}

// ShowStep switches the displayed result to the given step.
func (p *resultPanel) ShowStep(stepID string) {
	p.activeStep = stepID
	if p.ready {
		p.viewport.SetContent(p.rendered[stepID])
		p.viewport.GotoTop()
	}
}

// Update handles viewport-specific messages (mouse scroll, etc.).
func (p *resultPanel) Update(msg tea.Msg) {
	if p.ready {
		p.viewport, _ = p.viewport.Update(msg)
	}
}

// PageUp scrolls the viewport up.
func (p *resultPanel) PageUp() {
	if p.ready {
		p.viewport.HalfViewUp()
	}
}

// PageDown scrolls the viewport down.
func (p *resultPanel) PageDown() {
	if p.ready {
		p.viewport.HalfViewDown()
	}
}

// View renders the result panel.
func (p *resultPanel) View() string {
	title := panelTitle.Render("Result")

	var content string
	if p.ready {
		content = p.viewport.View()
	} else {
		content = "  Waiting for execution..."
	}

	// Scroll indicator
	scrollInfo := ""
	if p.ready && p.viewport.TotalLineCount() > p.viewport.VisibleLineCount() {
		pct := p.viewport.ScrollPercent() * 100
		scrollInfo = fmt.Sprintf(" %3.0f%%", pct)
	}

	header := title
	if scrollInfo != "" {
		padding := p.width - 4 - len("Result") - len(scrollInfo)
		if padding < 0 {
			padding = 0
		}
		header = title + strings.Repeat(" ", padding) + keyDescStyle.Render(scrollInfo)
	}

	return panelBorder.Width(p.width).Height(p.height).Render(
		header + "\n" + content,
	)
}
