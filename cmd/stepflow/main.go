package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stepflow-ai/stepflow/pkg/diagram"
	"github.com/stepflow-ai/stepflow/pkg/planner"
	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets
// any variables that aren't already set in the environment.
// Lines are KEY=VALUE (or KEY="VALUE"). Comments (#) and blanks are skipped.
// The .env file is gitignored so secrets never end up in source control.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return // no .env file — that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		// Remove surrounding quotes
		val = strings.Trim(val, `"'`)
		// Don't overwrite existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "stepflow",
	Short: "LLM workflow execution engine",
	Long:  "stepflow — define multi-step LLM workflows as YAML step graphs and execute them with retries, completion criteria, and operator gates.",
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [workflow.yaml]",
	Short: "Validate a workflow YAML file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	wf, errs := schema.ValidateFile(args[0])
	if len(errs) > 0 {
		var errors []*schema.ValidationError
		var warnings []*schema.ValidationError
		for _, e := range errs {
			if e.Severity == "warning" {
				warnings = append(warnings, e)
			} else {
				errors = append(errors, e)
			}
		}
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
			if w.Path != "" {
				fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
			}
		}
		if len(errors) > 0 {
			fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", len(errors))
			for i, e := range errors {
				fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
				if e.Path != "" {
					fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
				}
			}
			return fmt.Errorf("workflow validation failed")
		}
	}
	fmt.Printf("✓ %s is valid (%d steps, start: %s)\n", wf.Name, len(wf.Steps), wf.StartStep)
	return nil
}

// --- plan ---

var (
	planOut        string
	planEndpoint   string
	planAPIKey     string
	planDeployment string
	planAPIVersion string
)

var planCmd = &cobra.Command{
	Use:   "plan [goal]",
	Short: "Generate a workflow from a natural-language goal using Azure OpenAI",
	Long: `Generate a schema-valid workflow.yaml from a one-line goal.

Uses an Azure OpenAI deployment to design the step graph, then
validates the output against the workflow JSON Schema.

Credentials are read from (in priority order):
  1. CLI flags (--endpoint, --api-key, --deployment)
  2. Environment variables
  3. A .env file in the current directory (gitignored)

Create a .env file:
  AZURE_OPENAI_ENDPOINT=https://<resource>.openai.azure.com
  AZURE_OPENAI_API_KEY=<your-key>
  AZURE_OPENAI_DEPLOYMENT=<deployment-name>`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	goal := args[0]

	// Flags override env vars
	cfg := planner.AzureOpenAIConfig{
		Endpoint:   firstNonEmpty(planEndpoint, os.Getenv("AZURE_OPENAI_ENDPOINT")),
		APIKey:     firstNonEmpty(planAPIKey, os.Getenv("AZURE_OPENAI_API_KEY")),
		Deployment: firstNonEmpty(planDeployment, os.Getenv("AZURE_OPENAI_DEPLOYMENT")),
		APIVersion: firstNonEmpty(planAPIVersion, os.Getenv("AZURE_OPENAI_API_VERSION")),
	}

	client, err := planner.NewAzureOpenAIClient(cfg)
	if err != nil {
		return fmt.Errorf("Azure OpenAI setup: %w\n\nCreate a .env file in the project root with:\n  AZURE_OPENAI_ENDPOINT=https://<resource>.openai.azure.com\n  AZURE_OPENAI_API_KEY=<your-key>\n  AZURE_OPENAI_DEPLOYMENT=<deployment-name>", err)
	}

	fmt.Printf("Planning workflow via Azure OpenAI (%s)...\n", cfg.Deployment)
	result, err := planner.Plan(context.Background(), goal, client)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	fmt.Printf("%d steps designed (start: %s)\n", result.StepCount, result.Workflow.StartStep)
	for _, w := range result.Warnings {
		fmt.Printf("  ⚠ %s\n", w)
	}

	out, err := os.Create(planOut)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()
	if err := result.Workflow.Save(out); err != nil {
		return fmt.Errorf("write workflow: %w", err)
	}
	fmt.Printf("Wrote %s\n", planOut)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// --- diagram ---

var diagramFormat string

var diagramCmd = &cobra.Command{
	Use:   "diagram [workflow.yaml]",
	Short: "Render the step graph as a Mermaid or ASCII diagram",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagram,
}

func runDiagram(cmd *cobra.Command, args []string) error {
	wf, errs := schema.ValidateFile(args[0])
	if hasValidationErrors(errs) {
		return fmt.Errorf("workflow validation failed: %s", formatValidationErrors(errs))
	}
	out, err := diagram.Generate(wf, diagram.Format(diagramFormat))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// --- schema export ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export JSON Schema to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	// Pretty-print the JSON
	var out json.RawMessage = data
	formatted, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		// fallback to raw
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(string(formatted))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stepflow %s (build: %s)\n", version, commit)
	},
}

// --- shared validation helpers ---

func hasValidationErrors(errs []*schema.ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

func formatValidationErrors(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity != "warning" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func printValidationWarnings(errs []*schema.ValidationError) {
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", e.Phase, e.Message)
		}
	}
}

func init() {
	planCmd.Flags().StringVar(&planOut, "out", "workflow.yaml", "Output path for the generated workflow")
	planCmd.Flags().StringVar(&planEndpoint, "endpoint", "", "Azure OpenAI endpoint (overrides AZURE_OPENAI_ENDPOINT)")
	planCmd.Flags().StringVar(&planAPIKey, "api-key", "", "Azure OpenAI API key (overrides AZURE_OPENAI_API_KEY)")
	planCmd.Flags().StringVar(&planDeployment, "deployment", "", "Azure OpenAI deployment name (overrides AZURE_OPENAI_DEPLOYMENT)")
	planCmd.Flags().StringVar(&planAPIVersion, "api-version", "", "Azure OpenAI API version (overrides AZURE_OPENAI_API_VERSION)")

	diagramCmd.Flags().StringVar(&diagramFormat, "format", "mermaid", "Diagram format: mermaid or ascii")

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}
