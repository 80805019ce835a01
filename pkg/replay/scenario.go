// Package replay implements scripted collaborators for deterministic offline
// workflow execution using pre-recorded model responses and user answers.
package replay

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario represents a replay scenario file containing pre-recorded
// generator responses and user-input answers.
type Scenario struct {
	Responses []ScenarioResponse `yaml:"responses"`
	Inputs    []ScenarioInput    `yaml:"inputs"`
}

// ScenarioResponse is a pre-recorded model response. An empty Match makes
// the entry a positional fallback consumed in file order.
type ScenarioResponse struct {
	Match string `yaml:"match"` // substring the prompt must contain
	Text  string `yaml:"text"`
}

// ScenarioInput is a pre-recorded answer to a user-input prompt.
type ScenarioInput struct {
	Match string `yaml:"match"`
	Text  string `yaml:"text"`
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML bytes.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(s.Responses) == 0 && len(s.Inputs) == 0 {
		return nil, fmt.Errorf("scenario must have at least one response or input entry")
	}
	return &s, nil
}
