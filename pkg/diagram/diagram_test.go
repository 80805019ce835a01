package diagram

import (
	"strings"
	"testing"

	"github.com/stepflow-ai/stepflow/pkg/schema"
)

func buildWorkflow(t *testing.T, name, start string, steps map[string]*schema.Step) *schema.Workflow {
	t.Helper()
	wf := &schema.Workflow{Name: name, StartStep: start, Steps: map[string]*schema.Step{}}
	for id, s := range steps {
		if err := wf.AddStep(id, s); err != nil {
			t.Fatalf("AddStep(%s): %v", id, err)
		}
	}
	return wf
}

func TestGenerateMermaid_LinearFlow(t *testing.T) {
	wf := buildWorkflow(t, "linear-test", "fetch", map[string]*schema.Step{
		"fetch":  {StepType: schema.StepGeneration, NextOnSuccess: "verify"},
		"verify": {StepType: schema.StepReview},
	})

	out, err := Generate(wf, FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "flowchart TD") {
		t.Error("missing flowchart header")
	}
	if !strings.Contains(out, "START([Start]) --> fetch") {
		t.Errorf("missing start edge, got:\n%s", out)
	}
	if !strings.Contains(out, "fetch --> verify") {
		t.Errorf("missing sequential edge, got:\n%s", out)
	}
	if !strings.Contains(out, "verify --> DONE") {
		t.Errorf("missing terminal edge, got:\n%s", out)
	}
}

func TestGenerateMermaid_ConditionalEdges(t *testing.T) {
	wf := buildWorkflow(t, "branch-test", "check", map[string]*schema.Step{
		"check": {
			StepType:      schema.StepConditional,
			Condition:     "{gen.score} > 5",
			NextOnSuccess: "ship",
			NextOnFailure: "rework",
		},
		"ship":   {StepType: schema.StepFileOperation},
		"rework": {StepType: schema.StepEditing},
	})

	out, err := Generate(wf, FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `check -->|"true"| ship`) {
		t.Errorf("missing true edge, got:\n%s", out)
	}
	if !strings.Contains(out, `check -->|"false"| rework`) {
		t.Errorf("missing false edge, got:\n%s", out)
	}
}

func TestGenerateMermaid_LoopEdges(t *testing.T) {
	wf := buildWorkflow(t, "loop-test", "work", map[string]*schema.Step{
		"work": {StepType: schema.StepGeneration, NextOnSuccess: "again"},
		"again": {
			StepType:      schema.StepLoop,
			Loop:          &schema.LoopConfig{Body: "work", Condition: "{work.more} == true", MaxIterations: 5},
			NextOnSuccess: "finish",
		},
		"finish": {StepType: schema.StepDocumentation},
	})

	out, err := Generate(wf, FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `again -->|"iterate"| work`) {
		t.Errorf("missing iterate edge, got:\n%s", out)
	}
	if !strings.Contains(out, `again -->|"done"| finish`) {
		t.Errorf("missing done edge, got:\n%s", out)
	}
}

func TestGenerateMermaid_FailureEdgeDashed(t *testing.T) {
	wf := buildWorkflow(t, "failure-test", "gen", map[string]*schema.Step{
		"gen":      {StepType: schema.StepGeneration, NextOnFailure: "fallback"},
		"fallback": {StepType: schema.StepUserInput},
	})

	out, err := Generate(wf, FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `gen -.->|"failure"| fallback`) {
		t.Errorf("missing failure edge, got:\n%s", out)
	}
	if !strings.Contains(out, "style fallback") {
		t.Errorf("missing user-input style, got:\n%s", out)
	}
}

func TestGenerateMermaid_SanitizesIDs(t *testing.T) {
	wf := buildWorkflow(t, "id-test", "gen-code", map[string]*schema.Step{
		"gen-code": {StepType: schema.StepGeneration},
	})

	out, err := Generate(wf, FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "gen_code") {
		t.Errorf("expected sanitized node id, got:\n%s", out)
	}
}

func TestGenerateASCII(t *testing.T) {
	wf := buildWorkflow(t, "ascii-test", "gen", map[string]*schema.Step{
		"gen":      {StepType: schema.StepGeneration, NextOnSuccess: "check", NextOnFailure: "fallback"},
		"check":    {StepType: schema.StepReview},
		"fallback": {StepType: schema.StepUserInput},
	})

	out, err := Generate(wf, FormatASCII)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "ascii-test") {
		t.Error("missing workflow name header")
	}
	if !strings.Contains(out, "gen") || !strings.Contains(out, "check") {
		t.Errorf("missing main path boxes, got:\n%s", out)
	}
	if !strings.Contains(out, "on failure → fallback") {
		t.Errorf("missing failure annotation, got:\n%s", out)
	}
	if !strings.Contains(out, "off the main path:") {
		t.Errorf("missing off-path section, got:\n%s", out)
	}
}

func TestGenerateUnknownFormat(t *testing.T) {
	wf := buildWorkflow(t, "x", "a", map[string]*schema.Step{
		"a": {StepType: schema.StepGeneration},
	})
	if _, err := Generate(wf, Format("png")); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if _, err := Generate(nil, FormatMermaid); err == nil {
		t.Fatal("expected error for nil workflow")
	}
}
