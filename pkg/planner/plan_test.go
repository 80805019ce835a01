package planner

import (
	"context"
	"strings"
	"testing"
)

// fakeClient replays a canned response and records the prompts.
type fakeClient struct {
	response string
	system   string
	user     string
}

func (c *fakeClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.system = systemPrompt
	c.user = userPrompt
	return c.response, nil
}

func (c *fakeClient) ModelName() string { return "fake-model" }

const plannedJSON = `{
  "name": "hello",
  "description": "generate and review a program",
  "start_step": "gen",
  "steps": {
    "gen": {
      "step_type": "generation",
      "description": "write the program",
      "arguments": {"task": "hello world"},
      "next_on_success": "check"
    },
    "check": {
      "step_type": "review",
      "description": "review it",
      "arguments": {"code": "{gen.code}"}
    }
  }
}`

func TestPlanLoadsAndValidates(t *testing.T) {
	client := &fakeClient{response: "Here is the workflow:\n```json\n" + plannedJSON + "\n```\nDone."}

	result, err := Plan(context.Background(), "write hello world", client)
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if result.Workflow.StartStep != "gen" || result.StepCount != 2 {
		t.Errorf("unexpected plan: start=%s steps=%d", result.Workflow.StartStep, result.StepCount)
	}
	if result.Workflow.Steps["gen"].ID != "gen" {
		t.Error("loaded steps should carry their map key as id")
	}
	if result.Model != "fake-model" {
		t.Errorf("model = %q", result.Model)
	}
	if !strings.Contains(client.user, "write hello world") {
		t.Error("goal should appear in the user prompt")
	}
}

func TestPlanBareObjectFallback(t *testing.T) {
	client := &fakeClient{response: "Sure! " + plannedJSON}
	if _, err := Plan(context.Background(), "x", client); err != nil {
		t.Fatalf("Plan error: %v", err)
	}
}

func TestPlanRejectsInvalidWorkflow(t *testing.T) {
	bad := strings.Replace(plannedJSON, `"next_on_success": "check"`, `"next_on_success": "ghost"`, 1)
	client := &fakeClient{response: "```json\n" + bad + "\n```"}

	_, err := Plan(context.Background(), "x", client)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(err.Error(), "validation") {
		t.Errorf("error should mention validation: %v", err)
	}
}

func TestPlanNoDefinitionInResponse(t *testing.T) {
	client := &fakeClient{response: "I cannot help with that."}
	if _, err := Plan(context.Background(), "x", client); err == nil {
		t.Fatal("expected extraction failure")
	}
}

func TestExtractDefinitionPrefersFence(t *testing.T) {
	doc, err := ExtractDefinition("prose {not it}\n```json\n{\"name\": \"x\"}\n```")
	if err != nil {
		t.Fatalf("ExtractDefinition error: %v", err)
	}
	if doc != `{"name": "x"}` {
		t.Errorf("doc = %q", doc)
	}
}
