package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// PlanResult holds the outputs of a planning call.
type PlanResult struct {
	Workflow  *schema.Workflow
	Raw       string // the extracted definition document
	Model     string
	PlannedAt string
	Warnings  []string
	StepCount int
}

var (
	jsonFenceRe = regexp.MustCompile("(?s)```(?:json|yaml)?\\s*\n(.*?)```")
	bareObjRe   = regexp.MustCompile(`(?s)(\{.*\})`)
)

// Plan asks the LLM to produce a workflow definition for the goal,
// extracts the definition document from the response, and loads it
// through the same strict decode and validation as a file from disk.
// A plan that fails validation is rejected, never executed.
func Plan(ctx context.Context, goal string, client LLMClient) (*PlanResult, error) {
	response, err := client.Complete(ctx, planSystemPrompt, buildUserPrompt(goal))
	if err != nil {
		return nil, fmt.Errorf("plan request: %w", err)
	}

	doc, err := ExtractDefinition(response)
	if err != nil {
		return nil, err
	}

	wf, err := schema.Load(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse planned workflow: %w", err)
	}
	if errs := schema.Validate(wf); len(errs) > 0 {
		var b strings.Builder
		for _, e := range errs {
			fmt.Fprintf(&b, "\n  %v", e)
		}
		return nil, fmt.Errorf("planned workflow failed validation:%s", b.String())
	}

	return &PlanResult{
		Workflow:  wf,
		Raw:       doc,
		Model:     client.ModelName(),
		PlannedAt: time.Now().UTC().Format(time.RFC3339),
		StepCount: len(wf.Steps),
	}, nil
}

// ExtractDefinition pulls the definition document out of a model
// response: a json/yaml code fence if present, otherwise the outermost
// brace-delimited object.
func ExtractDefinition(response string) (string, error) {
	if m := jsonFenceRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	if m := bareObjRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	return "", fmt.Errorf("no workflow definition found in model response")
}
