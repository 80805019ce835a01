package replay

import (
	"context"
	"fmt"
	"strings"
)

// ScriptedGenerator implements handlers.Generator by matching prompts against
// pre-recorded scenario responses. Fail-closed: returns an error if no match.
type ScriptedGenerator struct {
	scenario *Scenario
	used     []bool // track which responses have been used
}

// NewScriptedGenerator creates a ScriptedGenerator from a loaded scenario.
func NewScriptedGenerator(s *Scenario) *ScriptedGenerator {
	return &ScriptedGenerator{
		scenario: s,
		used:     make([]bool, len(s.Responses)),
	}
}

// Generate returns the first unused response whose match string appears in
// the prompt. Entries with an empty match act as positional fallbacks.
// Returns an error if no matching entry is found.
func (g *ScriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for i, r := range g.scenario.Responses {
		if g.used[i] {
			continue
		}
		if r.Match == "" || strings.Contains(prompt, r.Match) {
			g.used[i] = true
			return r.Text, nil
		}
	}
	return "", fmt.Errorf("replay: no matching scenario response for prompt: %s", firstLine(prompt))
}

// Exhausted reports whether every recorded response has been consumed.
func (g *ScriptedGenerator) Exhausted() bool {
	for _, u := range g.used {
		if !u {
			return false
		}
	}
	return true
}

// ScriptedPrompter implements handlers.Prompter from pre-recorded answers.
// Same matching rules as ScriptedGenerator, same fail-closed behavior.
type ScriptedPrompter struct {
	scenario *Scenario
	used     []bool
}

// NewScriptedPrompter creates a ScriptedPrompter from a loaded scenario.
func NewScriptedPrompter(s *Scenario) *ScriptedPrompter {
	return &ScriptedPrompter{
		scenario: s,
		used:     make([]bool, len(s.Inputs)),
	}
}

// Prompt returns the first unused answer whose match string appears in the
// prompt text. Returns an error if no matching entry is found.
func (p *ScriptedPrompter) Prompt(prompt string) (string, error) {
	for i, in := range p.scenario.Inputs {
		if p.used[i] {
			continue
		}
		if in.Match == "" || strings.Contains(prompt, in.Match) {
			p.used[i] = true
			return in.Text, nil
		}
	}
	return "", fmt.Errorf("replay: no matching scenario input for prompt: %s", firstLine(prompt))
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
