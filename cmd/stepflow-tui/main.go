// Command stepflow-tui runs a workflow in a full-screen terminal UI
// with a live step panel, rendered results, and an approval overlay.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stepflow-ai/stepflow/pkg/handlers"
	"github.com/stepflow-ai/stepflow/pkg/planner"
	"github.com/stepflow-ai/stepflow/pkg/replay"
	"github.com/stepflow-ai/stepflow/pkg/runtime"
	"github.com/stepflow-ai/stepflow/pkg/schema"
	"github.com/stepflow-ai/stepflow/pkg/tui"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: stepflow-tui <workflow.yaml> [--mode interactive|auto|dry-run] [--scenario file.yaml]")
		os.Exit(1)
	}

	filePath := os.Args[1]
	mode := "interactive"
	scenarioPath := ""

	for i := 2; i < len(os.Args); i++ {
		switch {
		case os.Args[i] == "--mode" && i+1 < len(os.Args):
			i++
			mode = os.Args[i]
		case os.Args[i] == "--scenario" && i+1 < len(os.Args):
			i++
			scenarioPath = os.Args[i]
		}
	}

	wf, errs := schema.ValidateFile(filePath)
	failed := false
	for _, e := range errs {
		if e.Severity != "warning" {
			fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
			failed = true
		}
	}
	if failed {
		fmt.Fprintln(os.Stderr, "Validation failed")
		os.Exit(1)
	}

	var gen handlers.Generator
	var prompter handlers.Prompter
	switch {
	case scenarioPath != "":
		scenario, err := replay.LoadScenario(scenarioPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading scenario: %v\n", err)
			os.Exit(1)
		}
		gen = replay.NewScriptedGenerator(scenario)
		prompter = replay.NewScriptedPrompter(scenario)
	case mode == "dry-run":
		gen = &handlers.DryRunGenerator{}
		prompter = &handlers.DryRunPrompter{}
	default:
		client, err := planner.NewAzureOpenAIClientFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Azure OpenAI setup: %v\n(use --mode dry-run to run without an LLM)\n", err)
			os.Exit(1)
		}
		gen = &planner.ClientGenerator{Client: client}
		// Terminal is owned by the TUI; scripted input would be needed
		// for user_input steps in a live session.
		prompter = &handlers.DryRunPrompter{}
	}

	m, err := tui.New(wf, handlers.DefaultRegistry(gen, prompter), runtime.Config{
		Mode:         mode,
		WorkflowPath: filePath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
