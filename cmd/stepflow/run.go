package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stepflow-ai/stepflow/pkg/ecosystem/recorder"
	"github.com/stepflow-ai/stepflow/pkg/handlers"
	"github.com/stepflow-ai/stepflow/pkg/planner"
	"github.com/stepflow-ai/stepflow/pkg/replay"
	"github.com/stepflow-ai/stepflow/pkg/runtime"
	"github.com/stepflow-ai/stepflow/pkg/schema"
)

var (
	runMode         string
	runScenario     string
	runResume       string
	runRecord       string
	runRunsRoot     string
	runGateOncePerL bool
)

var runCmd = &cobra.Command{
	Use:   "run [workflow.yaml]",
	Short: "Execute a workflow",
	Long: `Execute a workflow from its start step to a terminal status.

Modes:
  auto         run every step without stopping; LLM steps call Azure OpenAI
  interactive  pause at each gated step for y/n/e approval
  dry-run      no LLM calls, no side effects; placeholder results

A scenario file (--scenario) replaces LLM and user-input collaborators
with scripted responses, making the run fully deterministic. Recording
a run (--record) writes such a scenario file from live responses.

Exit codes: 0 success, 1 run failed, 2 operator aborted.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	wf, errs := schema.ValidateFile(path)
	if hasValidationErrors(errs) {
		return fmt.Errorf("workflow validation failed: %s", formatValidationErrors(errs))
	}
	printValidationWarnings(errs)

	registry, rec, err := buildRunRegistry()
	if err != nil {
		return err
	}

	cfg := runtime.Config{
		Mode:            runMode,
		RunsRoot:        runRunsRoot,
		WorkflowPath:    path,
		GateOncePerLoop: runGateOncePerL,
	}

	var engine *runtime.Engine
	if runResume != "" {
		engine, err = runtime.ResumeEngine(wf, registry, cfg, runResume)
		if err != nil {
			return err
		}
		err = engine.Resume(context.Background())
	} else {
		engine, err = runtime.NewEngine(wf, registry, cfg)
		if err != nil {
			return err
		}
		err = engine.Execute(context.Background())
	}

	if rec != nil {
		if saveErr := rec.Save(runRecord); saveErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save scenario: %v\n", saveErr)
		} else {
			fmt.Printf("Scenario recorded to %s\n", runRecord)
		}
	}

	fmt.Printf("\nRun %s finished: %s\n", engine.RunID(), engine.State.Status)
	fmt.Printf("Artifacts: %s\n", engine.BaseDir)

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	switch engine.State.Status {
	case runtime.RunFailed:
		os.Exit(1)
	case runtime.RunAborted:
		os.Exit(2)
	}
	return nil
}

// buildRunRegistry wires the generator and prompter for the selected
// mode. A scenario file takes precedence over everything else; a
// recorder, when requested, wraps whatever collaborators were chosen.
func buildRunRegistry() (*handlers.Registry, *recorder.Recorder, error) {
	var gen handlers.Generator
	var prompter handlers.Prompter

	switch {
	case runScenario != "":
		scenario, err := replay.LoadScenario(runScenario)
		if err != nil {
			return nil, nil, fmt.Errorf("load scenario: %w", err)
		}
		gen = replay.NewScriptedGenerator(scenario)
		prompter = replay.NewScriptedPrompter(scenario)
	case runMode == "dry-run":
		gen = &handlers.DryRunGenerator{}
		prompter = &handlers.DryRunPrompter{}
	default:
		client, err := planner.NewAzureOpenAIClientFromEnv()
		if err != nil {
			return nil, nil, fmt.Errorf("Azure OpenAI setup: %w (use --mode dry-run to execute without an LLM)", err)
		}
		gen = &planner.ClientGenerator{Client: client}
		prompter = handlers.NewInteractivePrompter()
	}

	var rec *recorder.Recorder
	if runRecord != "" {
		if runScenario != "" {
			return nil, nil, fmt.Errorf("--record and --scenario are mutually exclusive")
		}
		rec = recorder.New()
		rec.SetSecrets([]string{"AZURE_OPENAI_API_KEY"})
		gen = rec.Generator(gen)
		prompter = rec.Prompter(prompter)
	}

	return handlers.DefaultRegistry(gen, prompter), rec, nil
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "auto", "Execution mode: auto, interactive, or dry-run")
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "Replay scenario file with scripted responses")
	runCmd.Flags().StringVar(&runResume, "resume", "", "Resume the given run id from its last snapshot")
	runCmd.Flags().StringVar(&runRecord, "record", "", "Record responses to a scenario file at this path")
	runCmd.Flags().StringVar(&runRunsRoot, "runs-root", "", "Directory for run artifacts (default "+runtime.DefaultRunsRoot+")")
	runCmd.Flags().BoolVar(&runGateOncePerL, "gate-once-per-loop", false, "Gate loop body steps only on the first iteration")

	rootCmd.AddCommand(runCmd)
}
