// Package recorder captures live model responses and user answers during a
// run so they can be saved as a replay scenario.
package recorder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stepflow-ai/stepflow/pkg/handlers"
	"github.com/stepflow-ai/stepflow/pkg/replay"
)

// Recorder accumulates scenario entries as the wrapped collaborators are
// used. Entries are stored in call order; replay consumes them the same way.
type Recorder struct {
	responses []replay.ScenarioResponse
	inputs    []replay.ScenarioInput
	secrets   []string // env var names whose values should be redacted
}

// New creates an empty recorder.
func New() *Recorder {
	return &Recorder{}
}

// SetSecrets configures secret env var names whose values are redacted in
// captured text.
func (r *Recorder) SetSecrets(envVars []string) {
	r.secrets = envVars
}

// Generator wraps a handlers.Generator so every response is captured.
func (r *Recorder) Generator(inner handlers.Generator) handlers.Generator {
	return &recordingGenerator{inner: inner, rec: r}
}

// Prompter wraps a handlers.Prompter so every answer is captured.
func (r *Recorder) Prompter(inner handlers.Prompter) handlers.Prompter {
	return &recordingPrompter{inner: inner, rec: r}
}

// Scenario builds a replay scenario from everything captured so far.
func (r *Recorder) Scenario() *replay.Scenario {
	return &replay.Scenario{
		Responses: append([]replay.ScenarioResponse(nil), r.responses...),
		Inputs:    append([]replay.ScenarioInput(nil), r.inputs...),
	}
}

// Save writes the captured scenario as YAML.
func (r *Recorder) Save(path string) error {
	if len(r.responses) == 0 && len(r.inputs) == 0 {
		return fmt.Errorf("nothing recorded")
	}
	data, err := yaml.Marshal(r.Scenario())
	if err != nil {
		return fmt.Errorf("marshal scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write scenario: %w", err)
	}
	return nil
}

// redact replaces secret values with <REDACTED>.
func (r *Recorder) redact(s string) string {
	for _, envVar := range r.secrets {
		val := os.Getenv(envVar)
		if val != "" {
			s = strings.ReplaceAll(s, val, "<REDACTED>")
		}
	}
	return s
}

type recordingGenerator struct {
	inner handlers.Generator
	rec   *Recorder
}

func (g *recordingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := g.inner.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	// Entries are positional: no match string, consumed in call order.
	g.rec.responses = append(g.rec.responses, replay.ScenarioResponse{
		Text: g.rec.redact(out),
	})
	return out, nil
}

type recordingPrompter struct {
	inner handlers.Prompter
	rec   *Recorder
}

func (p *recordingPrompter) Prompt(prompt string) (string, error) {
	answer, err := p.inner.Prompt(prompt)
	if err != nil {
		return "", err
	}
	p.rec.inputs = append(p.rec.inputs, replay.ScenarioInput{
		Text: p.rec.redact(answer),
	})
	return answer, nil
}
