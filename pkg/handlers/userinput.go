package handlers

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// UserInputHandler executes user-input steps through the Prompter
// collaborator. The collected text becomes the step's recorded result
// under the "input" key.
type UserInputHandler struct {
	Prompter Prompter
}

func (h *UserInputHandler) Validate(step *schema.Step) ValidationResult {
	if argString(step.Arguments, "prompt") == "" {
		return ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("user-input step %q requires argument \"prompt\"", step.ID)},
		}
	}
	return ValidationResult{Valid: true}
}

func (h *UserInputHandler) Execute(ctx context.Context, req *Request) (*StepResult, error) {
	if h.Prompter == nil {
		return &StepResult{Success: false, Error: "no prompter configured"}, nil
	}
	input, err := h.Prompter.Prompt(argString(req.Arguments, "prompt"))
	if err != nil {
		return &StepResult{Success: false, Error: fmt.Sprintf("collect input: %v", err)}, nil
	}
	return &StepResult{Success: true, Data: map[string]any{"input": input}}, nil
}

// InteractivePrompter reads user input from stdin.
type InteractivePrompter struct {
	reader *bufio.Reader
}

// NewInteractivePrompter creates a prompter that reads from stdin.
func NewInteractivePrompter() *InteractivePrompter {
	return &InteractivePrompter{reader: bufio.NewReader(os.Stdin)}
}

func (p *InteractivePrompter) Prompt(prompt string) (string, error) {
	fmt.Printf("\n? %s ", prompt)
	text, err := p.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// DryRunPrompter returns placeholder input without prompting.
type DryRunPrompter struct{}

func (p *DryRunPrompter) Prompt(prompt string) (string, error) {
	return "<dry-run>", nil
}

// DryRunGenerator returns a placeholder response without calling any
// service. Used by dry-run mode and the MCP run tool's default.
type DryRunGenerator struct{}

func (g *DryRunGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "```\n<dry-run>\n```", nil
}
