// Package tui implements a terminal user interface for workflow execution.
// It drives the stepflow engine directly, rendering an interactive Bubble Tea
// app with a live step list, a result panel, and an approval gate overlay.
package tui

import "github.com/charmbracelet/lipgloss"

// Step status glyphs — convey meaning without relying on color alone.
const (
	GlyphPending   = "○"
	GlyphCurrent   = "▸"
	GlyphPassed    = "✓"
	GlyphFailed    = "✗"
	GlyphSkipped   = "⊘"
	GlyphIterating = "↻"
	GlyphEdited    = "✎"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

// --- Header styles ---

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan).
	Padding(0, 1)

var modeBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("0")).
	Background(colorYellow).
	Padding(0, 1)

// --- Step list styles ---

var (
	stepNormal = lipgloss.NewStyle().
			Foreground(colorWhite)

	stepCurrent = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	stepPassed = lipgloss.NewStyle().
			Foreground(colorGreen)

	stepFailed = lipgloss.NewStyle().
			Foreground(colorRed)

	stepSkipped = lipgloss.NewStyle().
			Faint(true)
)

// --- Panel styles ---

var (
	panelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim)

	panelTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			Padding(0, 1)
)

// --- Gate overlay styles ---

var (
	gatePromptStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorYellow).
			Padding(0, 2)

	gateQuestionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorYellow)
)

// --- Key bar styles ---

var (
	keyStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	keyBarStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

// --- Outcome banner ---

var outcomeBannerStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(colorCyan).
	Foreground(colorCyan).
	Bold(true).
	Padding(0, 2).
	Align(lipgloss.Center)

// --- Error style ---

var errorStyle = lipgloss.NewStyle().
	Foreground(colorRed).
	Bold(true)

// --- Spinner style ---

var spinnerStyle = lipgloss.NewStyle().
	Foreground(colorYellow)

// styleFor maps a step display status to its list style.
func styleFor(status stepStatus) lipgloss.Style {
	switch status {
	case statusCurrent:
		return stepCurrent
	case statusPassed:
		return stepPassed
	case statusFailed:
		return stepFailed
	case statusSkipped:
		return stepSkipped
	default:
		return stepNormal
	}
}
