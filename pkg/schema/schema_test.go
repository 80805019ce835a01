package schema

import (
	"strings"
	"testing"
)

const linearWorkflowYAML = `
name: build-and-test
description: generate code then test it
start_step: gen
steps:
  gen:
    step_type: generation
    description: generate the module
    arguments:
      task: "a sorting function"
      language: go
    next_on_success: test
  test:
    step_type: test-generation
    arguments:
      source_step: gen
    dependencies: [gen]
    next_on_success: save
  save:
    step_type: file-operation
    arguments:
      operation: write
      path: out/sort.go
      content: "{gen.code}"
`

func TestLoadFillsStepIDs(t *testing.T) {
	wf, err := Load(strings.NewReader(linearWorkflowYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if wf.StartStep != "gen" {
		t.Errorf("StartStep = %q, want gen", wf.StartStep)
	}
	if len(wf.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3", len(wf.Steps))
	}
	for id, step := range wf.Steps {
		if step.ID != id {
			t.Errorf("step %q has ID %q", id, step.ID)
		}
	}
	if wf.Steps["test"].Dependencies[0] != "gen" {
		t.Errorf("test dependencies = %v", wf.Steps["test"].Dependencies)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	doc := `
name: bad
start_step: a
steps:
  a:
    step_type: generation
    surprise_field: true
`
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Fatal("expected unknown-field error, got nil")
	}
}

func TestLoadRejectsDuplicateStepID(t *testing.T) {
	doc := `
name: dup
start_step: a
steps:
  a:
    step_type: generation
  a:
    step_type: review
`
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Fatal("expected duplicate-key error, got nil")
	}
}

func TestStepIDsSorted(t *testing.T) {
	wf, err := Load(strings.NewReader(linearWorkflowYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	ids := wf.StepIDs()
	want := []string{"gen", "save", "test"}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("StepIDs() = %v, want %v", ids, want)
		}
	}
}

func TestAddStepRejectsDuplicate(t *testing.T) {
	wf, err := Load(strings.NewReader(linearWorkflowYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := wf.AddStep("gen", &Step{StepType: StepReview}); err == nil {
		t.Fatal("expected duplicate step error, got nil")
	}
	if err := wf.AddStep("review", &Step{StepType: StepReview, Dependencies: []string{"gen"}}); err != nil {
		t.Fatalf("AddStep error: %v", err)
	}
	if wf.Steps["review"].ID != "review" {
		t.Errorf("inserted step ID = %q", wf.Steps["review"].ID)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	wf, err := Load(strings.NewReader(linearWorkflowYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	var buf strings.Builder
	if err := wf.Save(&buf); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	again, err := Load(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if len(again.Steps) != len(wf.Steps) || again.StartStep != wf.StartStep {
		t.Errorf("round trip changed the definition: %+v", again)
	}
}
