package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stepflow-ai/stepflow/pkg/debugger"
	"github.com/stepflow-ai/stepflow/pkg/handlers"
	"github.com/stepflow-ai/stepflow/pkg/planner"
	"github.com/stepflow-ai/stepflow/pkg/replay"
	"github.com/stepflow-ai/stepflow/pkg/runtime"
	"github.com/stepflow-ai/stepflow/pkg/schema"
)

var (
	debugMode     string
	debugScenario string
	debugRunsRoot string
)

var debugCmd = &cobra.Command{
	Use:   "debug [workflow.yaml]",
	Short: "Step through a workflow in an interactive REPL",
	Long: `Open a debugger REPL on a workflow: advance one step at a time,
inspect results and history, insert steps mid-run, and dump state.

Defaults to dry-run collaborators so a debugging session never calls
an LLM unless --mode auto is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runDebug,
}

func runDebug(cmd *cobra.Command, args []string) error {
	path := args[0]
	wf, errs := schema.ValidateFile(path)
	if hasValidationErrors(errs) {
		return fmt.Errorf("workflow validation failed: %s", formatValidationErrors(errs))
	}
	printValidationWarnings(errs)

	var gen handlers.Generator
	var prompter handlers.Prompter
	switch {
	case debugScenario != "":
		scenario, err := replay.LoadScenario(debugScenario)
		if err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
		gen = replay.NewScriptedGenerator(scenario)
		prompter = replay.NewScriptedPrompter(scenario)
	case debugMode == "auto":
		client, err := planner.NewAzureOpenAIClientFromEnv()
		if err != nil {
			return fmt.Errorf("Azure OpenAI setup: %w", err)
		}
		gen = &planner.ClientGenerator{Client: client}
		prompter = handlers.NewInteractivePrompter()
	default:
		gen = &handlers.DryRunGenerator{}
		prompter = &handlers.DryRunPrompter{}
	}

	d, err := debugger.New(wf, handlers.DefaultRegistry(gen, prompter), runtime.Config{
		Mode:         debugMode,
		RunsRoot:     debugRunsRoot,
		WorkflowPath: path,
	})
	if err != nil {
		return err
	}
	return d.Run(context.Background())
}

func init() {
	debugCmd.Flags().StringVar(&debugMode, "mode", "dry-run", "Execution mode: auto or dry-run")
	debugCmd.Flags().StringVar(&debugScenario, "scenario", "", "Replay scenario file with scripted responses")
	debugCmd.Flags().StringVar(&debugRunsRoot, "runs-root", "", "Directory for run artifacts")

	rootCmd.AddCommand(debugCmd)
}
