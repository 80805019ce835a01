package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with stepflow tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"stepflow",
		version,
		server.WithToolCapabilities(true),
	)

	// Register tools
	s.AddTool(
		mcp.NewTool("stepflow/validate",
			mcp.WithDescription("Validate a stepflow workflow definition YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow YAML file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("stepflow/run",
			mcp.WithDescription("Execute a stepflow workflow (defaults to dry-run mode for safety)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow YAML file")),
			mcp.WithString("mode", mcp.Description("Execution mode: auto or dry-run")),
			mcp.WithString("scenario", mcp.Description("Replay scenario YAML with pre-recorded responses (optional)")),
		),
		HandleRun,
	)

	s.AddTool(
		mcp.NewTool("stepflow/plan",
			mcp.WithDescription("Generate a workflow definition from a natural-language goal"),
			mcp.WithString("goal", mcp.Required(), mcp.Description("The task the workflow should accomplish")),
		),
		HandlePlan,
	)

	s.AddTool(
		mcp.NewTool("stepflow/diagram",
			mcp.WithDescription("Render a workflow step graph as a diagram"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow YAML file")),
			mcp.WithString("format", mcp.Description("Diagram format: mermaid (default) or ascii")),
		),
		HandleDiagram,
	)

	s.AddTool(
		mcp.NewTool("stepflow/schema",
			mcp.WithDescription("Export the workflow definition JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
