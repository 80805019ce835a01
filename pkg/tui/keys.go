package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds all TUI key bindings.
type keyMap struct {
	Advance key.Binding
	AutoRun key.Binding
	Up      key.Binding
	Down    key.Binding
	Approve key.Binding
	Reject  key.Binding
	Edit    key.Binding
	Quit    key.Binding
	Help    key.Binding
	PgUp    key.Binding
	PgDown  key.Binding
}

var keys = keyMap{
	Advance: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "run step"),
	),
	AutoRun: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "run to end"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "browse up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "browse down"),
	),
	Approve: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "accept"),
	),
	Reject: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "reject"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	PgUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("PgUp", "scroll up"),
	),
	PgDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("PgDn", "scroll down"),
	),
}

// keyBarText renders the context-sensitive key hint string.
func keyBarText(running, completed, gating, editing bool) string {
	if editing {
		return keyStyle.Render("Enter") + keyDescStyle.Render(":submit") + "  " +
			keyStyle.Render("Esc") + keyDescStyle.Render(":cancel")
	}
	if gating {
		return keyStyle.Render("y") + keyDescStyle.Render(":accept") + "  " +
			keyStyle.Render("n") + keyDescStyle.Render(":reject") + "  " +
			keyStyle.Render("e") + keyDescStyle.Render(":edit")
	}
	if completed {
		return keyStyle.Render("↑↓") + keyDescStyle.Render(":browse") + "  " +
			keyStyle.Render("PgUp/Dn") + keyDescStyle.Render(":scroll") + "  " +
			keyStyle.Render("q") + keyDescStyle.Render(":quit")
	}
	if running {
		return keyStyle.Render("↑↓") + keyDescStyle.Render(":browse") + "  " +
			keyStyle.Render("PgUp/Dn") + keyDescStyle.Render(":scroll")
	}
	return keyStyle.Render("enter") + keyDescStyle.Render(":run step") + "  " +
		keyStyle.Render("a") + keyDescStyle.Render(":run to end") + "  " +
		keyStyle.Render("↑↓") + keyDescStyle.Render(":browse") + "  " +
		keyStyle.Render("q") + keyDescStyle.Render(":quit") + "  " +
		keyStyle.Render("?") + keyDescStyle.Render(":help")
}
