package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stepflow-ai/stepflow/pkg/diagram"
	"github.com/stepflow-ai/stepflow/pkg/handlers"
	"github.com/stepflow-ai/stepflow/pkg/planner"
	"github.com/stepflow-ai/stepflow/pkg/replay"
	"github.com/stepflow-ai/stepflow/pkg/runtime"
	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// HandleValidate implements the stepflow/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	wf, errs := schema.ValidateFile(path)
	if hasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	return textResult(fmt.Sprintf("✓ %s is valid (%d steps)", wf.Name, len(wf.Steps))), nil
}

// HandleRun implements the stepflow/run MCP tool.
func HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	mode, _ := args["mode"].(string)
	if mode == "" {
		mode = "dry-run" // safe default for AI agents
	}

	wf, errs := schema.ValidateFile(path)
	if hasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	registry, err := buildRegistry(args, mode)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	runsRoot, err := os.MkdirTemp("", "stepflow-mcp-*")
	if err != nil {
		return errorResult(fmt.Sprintf("create runs dir: %s", err)), nil
	}

	var out bytes.Buffer
	eng, err := runtime.NewEngine(wf, registry, runtime.Config{
		Mode:         mode,
		RunsRoot:     runsRoot,
		WorkflowPath: path,
		Out:          &out,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("create engine: %s", err)), nil
	}

	runErr := eng.Execute(ctx)

	response := map[string]any{
		"run_id":    eng.RunID(),
		"status":    eng.State.Status,
		"mode":      mode,
		"artifacts": eng.BaseDir,
	}
	if eng.State.Error != "" {
		response["error"] = eng.State.Error
	} else if runErr != nil {
		response["error"] = runErr.Error()
	}
	if n := len(eng.State.History); n > 0 {
		response["final_step"] = eng.State.History[n-1].StepID
	}
	if out.Len() > 0 {
		response["output"] = out.String()
	}

	data, _ := json.MarshalIndent(response, "", "  ")

	isErr := eng.State.Status == runtime.RunFailed
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}, nil
}

// buildRegistry picks collaborators for the requested mode. A scenario
// file scripts both the generator and the prompter; auto mode needs the
// Azure OpenAI environment configured.
func buildRegistry(args map[string]any, mode string) (*handlers.Registry, error) {
	scenarioPath, _ := args["scenario"].(string)
	if scenarioPath != "" {
		sc, err := replay.LoadScenario(scenarioPath)
		if err != nil {
			return nil, err
		}
		return handlers.DefaultRegistry(replay.NewScriptedGenerator(sc), replay.NewScriptedPrompter(sc)), nil
	}

	if mode == "auto" {
		client, err := planner.NewAzureOpenAIClientFromEnv()
		if err != nil {
			return nil, fmt.Errorf("auto mode: %w", err)
		}
		return handlers.DefaultRegistry(&planner.ClientGenerator{Client: client}, &handlers.DryRunPrompter{}), nil
	}

	return handlers.DefaultRegistry(&handlers.DryRunGenerator{}, &handlers.DryRunPrompter{}), nil
}

// HandlePlan implements the stepflow/plan MCP tool.
func HandlePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	goal, _ := args["goal"].(string)
	if goal == "" {
		return errorResult("goal argument is required"), nil
	}

	client, err := planner.NewAzureOpenAIClientFromEnv()
	if err != nil {
		return errorResult(err.Error()), nil
	}

	result, err := planner.Plan(ctx, goal, client)
	if err != nil {
		return errorResult(fmt.Sprintf("plan: %s", err)), nil
	}

	var buf bytes.Buffer
	if err := result.Workflow.Save(&buf); err != nil {
		return errorResult(fmt.Sprintf("encode workflow: %s", err)), nil
	}
	return textResult(buf.String()), nil
}

// HandleDiagram implements the stepflow/diagram MCP tool.
func HandleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	format, _ := args["format"].(string)
	if format == "" {
		format = string(diagram.FormatMermaid)
	}

	wf, errs := schema.ValidateFile(path)
	if hasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	out, err := diagram.Generate(wf, diagram.Format(format))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(out), nil
}

// HandleSchema implements the stepflow/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func hasErrors(errs []*schema.ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

func formatErrors(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
