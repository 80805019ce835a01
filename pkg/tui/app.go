package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stepflow-ai/stepflow/pkg/handlers"
	"github.com/stepflow-ai/stepflow/pkg/runtime"
	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// --- Tea messages ---

// stepDoneMsg is sent after an engine step completes.
type stepDoneMsg struct {
	done bool
	err  error
}

// gateMsg delivers a pending operator review to the model.
type gateMsg struct {
	req gateRequest
}

// --- Model ---

// Model is the top-level Bubble Tea model for the TUI.
type Model struct {
	workflow *schema.Workflow
	engine   *runtime.Engine

	// Components
	steps     stepsPanel
	result    resultPanel
	spinner   spinner.Model
	editInput textinput.Model

	// Gate state
	gate    *uiGate
	pending *gateRequest
	editing bool

	mode        string
	running     bool // an engine step is in flight
	autorun     bool
	finished    bool
	err         error
	lastHistory int

	width  int
	height int

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the TUI model and its engine. Interactive mode routes the
// approval gate through the UI instead of the console.
func New(wf *schema.Workflow, registry *handlers.Registry, cfg runtime.Config) (*Model, error) {
	var gate *uiGate
	if cfg.Mode == "interactive" {
		gate = newUIGate()
		cfg.Gate = gate
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}

	eng, err := runtime.NewEngine(wf, registry, cfg)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	ti := textinput.New()
	ti.Prompt = "edit> "

	m := &Model{
		workflow:  wf,
		engine:    eng,
		steps:     newStepsPanel(),
		result:    newResultPanel(),
		spinner:   sp,
		editInput: ti,
		gate:      gate,
		mode:      eng.State.Mode,
		ctx:       ctx,
		cancel:    cancel,
	}
	m.steps.SetSteps(wf)
	m.steps.SetCurrent(wf.StartStep)
	return m, nil
}

// Engine returns the underlying runtime engine.
func (m *Model) Engine() *runtime.Engine {
	return m.engine
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.gate != nil {
		cmds = append(cmds, m.waitGate())
	}
	return tea.Batch(cmds...)
}

// doStep runs one engine step in a goroutine.
func (m *Model) doStep() tea.Cmd {
	return func() tea.Msg {
		done, err := m.engine.Step(m.ctx)
		return stepDoneMsg{done: done, err: err}
	}
}

// waitGate listens for the next pending review.
func (m *Model) waitGate() tea.Cmd {
	return func() tea.Msg {
		req, ok := <-m.gate.requests
		if !ok {
			return nil
		}
		return gateMsg{req: req}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case stepDoneMsg:
		m.running = false
		if msg.err != nil {
			m.err = msg.err
		}
		m.syncFromEngine()
		if msg.done {
			m.finished = true
			m.autorun = false
			return m, nil
		}
		if m.autorun {
			m.running = true
			return m, m.doStep()
		}

	case gateMsg:
		req := msg.req
		m.pending = &req
		m.result.Record(req.record)
		m.result.ShowStep(req.record.StepID)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		m.result.Update(msg)
	}

	return m, nil
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Edit overlay consumes everything except its own submit/cancel keys.
	if m.editing {
		switch msg.String() {
		case "enter":
			m.pending.reply <- &runtime.GateResponse{
				Decision: runtime.DecisionEdit,
				Edited:   m.editInput.Value(),
			}
			m.editing = false
			m.pending = nil
			return m, m.waitGate()
		case "esc":
			m.editing = false
			return m, nil
		default:
			var cmd tea.Cmd
			m.editInput, cmd = m.editInput.Update(msg)
			return m, cmd
		}
	}

	if m.pending != nil {
		switch {
		case key.Matches(msg, keys.Approve):
			m.pending.reply <- &runtime.GateResponse{Decision: runtime.DecisionApprove}
			m.pending = nil
			return m, m.waitGate()
		case key.Matches(msg, keys.Reject):
			m.pending.reply <- &runtime.GateResponse{Decision: runtime.DecisionReject}
			m.pending = nil
			return m, m.waitGate()
		case key.Matches(msg, keys.Edit):
			m.editing = true
			m.editInput.SetValue(primaryText(m.pending.record))
			m.editInput.CursorEnd()
			return m, textinput.Blink
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, keys.Advance):
		if !m.running && !m.finished {
			m.running = true
			return m, m.doStep()
		}

	case key.Matches(msg, keys.AutoRun):
		if !m.running && !m.finished {
			m.autorun = true
			m.running = true
			return m, m.doStep()
		}

	case key.Matches(msg, keys.Up):
		m.steps.CursorUp()
		m.result.ShowStep(m.steps.SelectedID())

	case key.Matches(msg, keys.Down):
		m.steps.CursorDown()
		m.result.ShowStep(m.steps.SelectedID())

	case key.Matches(msg, keys.PgUp):
		m.result.PageUp()

	case key.Matches(msg, keys.PgDown):
		m.result.PageDown()
	}

	return m, nil
}

// syncFromEngine applies newly persisted records to the panels and
// repositions the current-step marker.
func (m *Model) syncFromEngine() {
	history := m.engine.State.History
	for ; m.lastHistory < len(history); m.lastHistory++ {
		record := history[m.lastHistory]
		if !m.steps.HasStep(record.StepID) {
			m.steps.AddStep(record.StepID, record.StepType)
		}
		m.steps.Apply(record)
		m.result.Record(record)
	}
	if n := len(history); n > 0 {
		m.result.ShowStep(history[n-1].StepID)
	}
	if cur := m.engine.State.Current; cur != "" {
		m.steps.SetCurrent(cur)
	}
}

// layout distributes the window between the two panels.
func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	panelH := m.height - 4 // header + status + key bar
	if panelH < 3 {
		panelH = 3
	}
	stepsW := m.width / 3
	if stepsW < 24 {
		stepsW = 24
	}
	m.steps.width = stepsW
	m.steps.height = panelH
	m.result.SetSize(m.width-stepsW-2, panelH)
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	// Header
	header := headerStyle.Render("stepflow: " + m.workflow.Name)
	if m.mode != "" {
		header += " " + modeBadgeStyle.Render(m.mode)
	}
	b.WriteString(header + "\n")

	// Panels
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.steps.View(), " ", m.result.View()))
	b.WriteString("\n")

	// Status line
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("  ✗ " + m.err.Error()))
	case m.finished:
		total, passed, failed, skipped := m.steps.Stats()
		banner := fmt.Sprintf("%s — %d steps: %d passed, %d failed, %d skipped",
			m.engine.State.Status, total, passed, failed, skipped)
		b.WriteString(outcomeBannerStyle.Render(banner))
	case m.running && m.pending == nil:
		b.WriteString("  " + m.spinner.View() + " running...")
	default:
		b.WriteString(keyDescStyle.Render("  Ready"))
	}
	b.WriteString("\n")

	// Gate overlay
	if m.pending != nil {
		var overlay string
		if m.editing {
			overlay = gateQuestionStyle.Render("Replace result text:") + "\n" + m.editInput.View()
		} else {
			overlay = gateQuestionStyle.Render(
				fmt.Sprintf("Accept result of %q?", m.pending.record.StepID))
		}
		b.WriteString(gatePromptStyle.Render(overlay))
		b.WriteString("\n")
	}

	// Key bar
	b.WriteString(keyBarStyle.Render(keyBarText(m.running, m.finished, m.pending != nil, m.editing)))

	return b.String()
}

// primaryText picks the text an edit should start from: the first
// editable key present in the record data.
func primaryText(record *runtime.StepRecord) string {
	for _, k := range []string{"code", "text", "review", "content", "input", "response"} {
		if v, ok := record.Data[k]; ok {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}
