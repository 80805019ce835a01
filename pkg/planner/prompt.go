package planner

import (
	"fmt"
	"strings"
)

// planSystemPrompt tells the model what a workflow definition looks
// like. The format mirrors the YAML schema exactly so the planned
// document survives the strict decoder.
const planSystemPrompt = `You design executable workflows for a step-based engine.
Respond with exactly one workflow definition in a fenced json code block and nothing else.

The definition format:

{
  "name": "workflow name",
  "description": "what the workflow achieves",
  "start_step": "id of the first step",
  "steps": {
    "step_id": {
      "step_type": "one of the types below",
      "description": "what this step does",
      "arguments": { },
      "next_on_success": "next step id (omit to end the run)",
      "next_on_failure": "step id to route failures to (optional)",
      "dependencies": ["earlier step ids whose results this step needs"],
      "max_retries": 0
    }
  }
}

Available step types:
- generation: write code; arguments: task, language
- editing: change existing code; arguments: instructions, code
- review: review code; arguments: code, focus
- refactor: restructure code; arguments: code, goal
- test-generation: write tests; arguments: code, framework
- documentation: write docs; arguments: code, doc_type
- user-input: ask the operator; arguments: prompt
- file-operation: touch the filesystem; arguments: operation (read/write/append/delete), path, content
- conditional: branch on a condition; set "condition" to an expression like "{step.key} == 5"
- loop: repeat a sub-sequence; set "loop": {"body": "first body step id", "condition": "...", "max_iterations": N}

Use {step_id.key} references in arguments to pass one step's result to another.
Every next_on_success/next_on_failure must name a defined step. Cycles must be
bounded with max_retries or expressed as a loop step.`

// buildUserPrompt wraps the operator's goal.
func buildUserPrompt(goal string) string {
	var b strings.Builder
	b.WriteString("Design a workflow for the following task.\n")
	fmt.Fprintf(&b, "Task: %s\n", strings.TrimSpace(goal))
	return b.String()
}
