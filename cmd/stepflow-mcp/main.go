// Command stepflow-mcp exposes workflow operations as MCP tools over
// stdio, so AI agents can validate, plan, diagram, and execute
// workflows without shelling out to the CLI.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	stepflowmcp "github.com/stepflow-ai/stepflow/pkg/ecosystem/mcp"
)

var version = "dev"

func main() {
	s := stepflowmcp.NewServer(version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
