package schema

import (
	"strings"
	"testing"
)

// hasError reports whether any validation error message contains the
// given fragment.
func hasError(errs []*ValidationError, fragment string) bool {
	for _, e := range errs {
		if strings.Contains(e.Message, fragment) || strings.Contains(e.Path, fragment) {
			return true
		}
	}
	return false
}

func validLinear() *Workflow {
	return &Workflow{
		Name:      "linear",
		StartStep: "a",
		Steps: map[string]*Step{
			"a": {ID: "a", StepType: StepGeneration, NextOnSuccess: "b"},
			"b": {ID: "b", StepType: StepReview, NextOnSuccess: "c", Dependencies: []string{"a"}},
			"c": {ID: "c", StepType: StepFileOperation, Arguments: map[string]any{"operation": "write", "path": "out.go"}},
		},
	}
}

func TestValidLinearWorkflow(t *testing.T) {
	if errs := Validate(validLinear()); len(errs) > 0 {
		t.Fatalf("unexpected validation errors: %v", errs[0])
	}
}

func TestMissingStartStep(t *testing.T) {
	wf := validLinear()
	wf.StartStep = ""
	if errs := Validate(wf); !hasError(errs, "start_step") {
		t.Error("expected start_step error")
	}

	wf.StartStep = "ghost"
	if errs := Validate(wf); !hasError(errs, `start_step "ghost" is not a defined step`) {
		t.Error("expected undefined start_step error")
	}
}

func TestUnresolvedNextReference(t *testing.T) {
	wf := validLinear()
	wf.Steps["b"].NextOnFailure = "nowhere"
	errs := Validate(wf)
	if !hasError(errs, `undefined step "nowhere"`) {
		t.Errorf("expected unresolved reference error, got %v", errs)
	}
}

func TestUndefinedDependencyFailsAtLoad(t *testing.T) {
	wf := validLinear()
	wf.Steps["b"].Dependencies = []string{"a", "phantom"}
	errs := Validate(wf)
	if !hasError(errs, `depends on undefined step "phantom"`) {
		t.Errorf("expected dependency error, got %v", errs)
	}
}

func TestSelfDependencyRejected(t *testing.T) {
	wf := validLinear()
	wf.Steps["b"].Dependencies = []string{"b"}
	if errs := Validate(wf); !hasError(errs, "depends on itself") {
		t.Error("expected self-dependency error")
	}
}

func TestConditionalRequiresCondition(t *testing.T) {
	wf := validLinear()
	wf.Steps["b"].StepType = StepConditional
	if errs := Validate(wf); !hasError(errs, "requires a condition") {
		t.Error("expected missing-condition error")
	}
}

func TestConditionOnlyOnConditionalSteps(t *testing.T) {
	wf := validLinear()
	wf.Steps["a"].Condition = `{a.x} == 1`
	if errs := Validate(wf); !hasError(errs, "is not conditional") {
		t.Error("expected stray-condition error")
	}
}

func TestUnparseableConditionFailsAtLoad(t *testing.T) {
	wf := validLinear()
	wf.Steps["b"].StepType = StepConditional
	wf.Steps["b"].Condition = `exec("rm")`
	if errs := Validate(wf); !hasError(errs, "condition") {
		t.Error("expected condition parse error at load time")
	}
}

func TestLoopRequiresGuard(t *testing.T) {
	wf := validLinear()
	wf.Steps["b"].StepType = StepLoop
	wf.Steps["b"].Loop = &LoopConfig{Body: "a", Condition: `{a.done} == false`}
	if errs := Validate(wf); !hasError(errs, "max_iterations") {
		t.Error("expected max_iterations error")
	}

	wf.Steps["b"].Loop.MaxIterations = 3
	wf.Steps["b"].Loop.Body = "ghost"
	if errs := Validate(wf); !hasError(errs, `undefined body step "ghost"`) {
		t.Error("expected undefined body error")
	}
}

func TestUnboundedImplicitCycleRejected(t *testing.T) {
	wf := &Workflow{
		Name:      "cyclic",
		StartStep: "a",
		Steps: map[string]*Step{
			"a": {ID: "a", StepType: StepGeneration, NextOnSuccess: "b"},
			"b": {ID: "b", StepType: StepReview, NextOnSuccess: "a"},
		},
	}
	errs := Validate(wf)
	if !hasError(errs, "unbounded implicit cycle") {
		t.Fatalf("expected unbounded cycle error, got %v", errs)
	}

	// The same cycle with a retry bound on one member is legal.
	wf.Steps["b"].MaxRetries = 2
	if errs := Validate(wf); len(errs) > 0 {
		t.Errorf("bounded cycle rejected: %v", errs[0])
	}
}

func TestSelfRetryLoopNeedsBound(t *testing.T) {
	wf := validLinear()
	wf.Steps["b"].NextOnFailure = "b"
	if errs := Validate(wf); !hasError(errs, "unbounded implicit cycle") {
		t.Error("expected unbounded cycle error for self-routing failure")
	}

	wf.Steps["b"].MaxRetries = 3
	if errs := Validate(wf); len(errs) > 0 {
		t.Errorf("bounded self-retry rejected: %v", errs[0])
	}
}

func TestCycleThroughLoopStepAllowed(t *testing.T) {
	wf := &Workflow{
		Name:      "looped",
		StartStep: "refine",
		Steps: map[string]*Step{
			"refine": {
				ID: "refine", StepType: StepLoop,
				Loop:          &LoopConfig{Body: "gen", Condition: `{gen.score} < 8`, MaxIterations: 5},
				NextOnSuccess: "done",
				NextOnFailure: "gen",
			},
			"gen":  {ID: "gen", StepType: StepGeneration, NextOnSuccess: "refine"},
			"done": {ID: "done", StepType: StepDocumentation},
		},
	}
	if errs := Validate(wf); len(errs) > 0 {
		t.Fatalf("loop-bounded cycle rejected: %v", errs[0])
	}
}

func TestCriterionShapeChecked(t *testing.T) {
	wf := validLinear()
	wf.Steps["a"].Criteria = []Criterion{{Key: "code"}}
	if errs := Validate(wf); !hasError(errs, "exactly one of") {
		t.Error("expected criterion shape error")
	}

	wf.Steps["a"].Criteria = []Criterion{{Key: "code", Matches: "("}}
	if errs := Validate(wf); !hasError(errs, "invalid pattern") {
		t.Error("expected pattern error")
	}

	wf.Steps["a"].Criteria = []Criterion{{Key: "code", Contains: "func"}}
	if errs := Validate(wf); len(errs) > 0 {
		t.Errorf("valid criterion rejected: %v", errs[0])
	}
}

func TestValidateFileReportsStructuralPhase(t *testing.T) {
	_, errs := ValidateFile("testdata/does-not-exist.yaml")
	if len(errs) != 1 || errs[0].Phase != "structural" {
		t.Fatalf("errs = %v, want one structural error", errs)
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatalf("GenerateJSONSchema error: %v", err)
	}
	for _, fragment := range []string{"start_step", "step_type", "max_iterations"} {
		if !strings.Contains(string(data), fragment) {
			t.Errorf("schema missing %q", fragment)
		}
	}
}
