package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/stepflow-ai/stepflow/pkg/runtime"
)

// renderer is a package-level glamour renderer (auto style, no word-wrap —
// the viewport handles wrapping).
var renderer *glamour.TermRenderer

func init() {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(0), // let the viewport/panel handle wrapping
	)
	if err == nil {
		renderer = r
	}
}

// renderMarkdown converts a markdown string to styled terminal output.
// Falls back to the raw input if glamour is unavailable or rendering fails.
func renderMarkdown(md string) string {
	if renderer == nil || strings.TrimSpace(md) == "" {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	// Glamour adds trailing newlines; trim for inline use
	return strings.TrimRight(out, "\n")
}

// recordMarkdown formats a step record as markdown for the result panel:
// code-ish keys become fenced blocks, everything else a definition line.
func recordMarkdown(record *runtime.StepRecord) string {
	if record == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## %s (attempt %d)\n\n", record.StepID, record.Attempt)
	if record.Error != "" {
		fmt.Fprintf(&b, "**error:** %s\n\n", record.Error)
	}

	keys := make([]string, 0, len(record.Data))
	for k := range record.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprintf("%v", record.Data[k])
		if k == "code" || k == "original_code" || strings.ContainsRune(v, '\n') {
			fmt.Fprintf(&b, "**%s:**\n\n```\n%s\n```\n\n", k, v)
		} else {
			fmt.Fprintf(&b, "**%s:** %s\n\n", k, v)
		}
	}

	for _, c := range record.Criteria {
		mark := "✓"
		if !c.Passed {
			mark = "✗"
		}
		fmt.Fprintf(&b, "- %s %s `%s`\n", mark, c.Type, c.Key)
	}
	return b.String()
}
