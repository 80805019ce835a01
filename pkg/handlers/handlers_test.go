package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// fakeGenerator records prompts and replays canned responses.
type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

type fakePrompter struct {
	answer string
	asked  []string
}

func (p *fakePrompter) Prompt(prompt string) (string, error) {
	p.asked = append(p.asked, prompt)
	return p.answer, nil
}

func TestExtractFenced(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"plain fence", "```\nfunc main() {}\n```", "func main() {}"},
		{"language tag", "Here you go:\n```go\npackage main\n```\nenjoy", "package main"},
		{"no fence", "  just text  ", "just text"},
		{"first of several", "```go\none\n```\n```go\ntwo\n```", "one"},
	}
	for _, tc := range cases {
		if got := ExtractFenced(tc.in); got != tc.want {
			t.Errorf("%s: ExtractFenced = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestGenerateHandlerExecute(t *testing.T) {
	gen := &fakeGenerator{response: "```go\npackage main\n```"}
	h := &GenerateHandler{Kind: schema.StepGeneration, Generator: gen}

	res, err := h.Execute(context.Background(), &Request{Arguments: map[string]any{"task": "hello world"}})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	if res.Data["code"] != "package main" {
		t.Errorf("code = %q", res.Data["code"])
	}
	if res.Data["response"] != gen.response {
		t.Error("raw response should be recorded")
	}
	if !strings.Contains(gen.prompts[0], "hello world") {
		t.Errorf("prompt should carry the task: %q", gen.prompts[0])
	}
}

func TestGenerateHandlerDataKeysPerKind(t *testing.T) {
	cases := []struct {
		kind string
		args map[string]any
		key  string
	}{
		{schema.StepReview, map[string]any{"code": "x"}, "review"},
		{schema.StepDocumentation, map[string]any{"code": "x"}, "text"},
		{schema.StepEditing, map[string]any{"instructions": "fix", "code": "x"}, "code"},
		{schema.StepTestGeneration, map[string]any{"code": "x"}, "code"},
	}
	for _, tc := range cases {
		h := &GenerateHandler{Kind: tc.kind, Generator: &fakeGenerator{response: "out"}}
		res, err := h.Execute(context.Background(), &Request{Arguments: tc.args})
		if err != nil || !res.Success {
			t.Fatalf("%s: Execute failed: %v %v", tc.kind, err, res)
		}
		if _, ok := res.Data[tc.key]; !ok {
			t.Errorf("%s: result should carry key %q, got %v", tc.kind, tc.key, res.Data)
		}
	}
}

func TestGenerateHandlerEditingKeepsOriginal(t *testing.T) {
	h := &GenerateHandler{Kind: schema.StepEditing, Generator: &fakeGenerator{response: "```\nnew\n```"}}
	res, err := h.Execute(context.Background(), &Request{Arguments: map[string]any{"instructions": "fix", "code": "old"}})
	if err != nil || !res.Success {
		t.Fatalf("Execute failed: %v %v", err, res)
	}
	if res.Data["code"] != "new" || res.Data["original_code"] != "old" {
		t.Errorf("unexpected data: %v", res.Data)
	}
}

func TestGenerateHandlerGeneratorErrorFailsStep(t *testing.T) {
	h := &GenerateHandler{Kind: schema.StepGeneration, Generator: &fakeGenerator{err: errors.New("unavailable")}}
	res, err := h.Execute(context.Background(), &Request{Arguments: map[string]any{"task": "x"}})
	if err != nil {
		t.Fatalf("generator errors are step failures, not infrastructure errors: %v", err)
	}
	if res.Success || !strings.Contains(res.Error, "unavailable") {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestGenerateHandlerValidateRequiredArgs(t *testing.T) {
	h := &GenerateHandler{Kind: schema.StepGeneration}
	vr := h.Validate(&schema.Step{ID: "g", StepType: schema.StepGeneration})
	if vr.Valid {
		t.Error("generation step without task should be invalid")
	}
	vr = h.Validate(&schema.Step{ID: "g", Arguments: map[string]any{"task": "x"}})
	if !vr.Valid {
		t.Errorf("unexpected errors: %v", vr.Errors)
	}
}

func TestFileOperationWriteReadAppendDelete(t *testing.T) {
	h := &FileOperationHandler{}
	path := filepath.Join(t.TempDir(), "sub", "out.txt")
	ctx := context.Background()

	res, err := h.Execute(ctx, &Request{Arguments: map[string]any{"operation": "write", "path": path, "content": "one\n"}})
	if err != nil || !res.Success {
		t.Fatalf("write failed: %v %v", err, res)
	}
	if res.Data["written"] != 4 {
		t.Errorf("written = %v, want 4", res.Data["written"])
	}

	res, err = h.Execute(ctx, &Request{Arguments: map[string]any{"operation": "append", "path": path, "content": "two\n"}})
	if err != nil || !res.Success {
		t.Fatalf("append failed: %v %v", err, res)
	}

	res, err = h.Execute(ctx, &Request{Arguments: map[string]any{"operation": "read", "path": path}})
	if err != nil || !res.Success {
		t.Fatalf("read failed: %v %v", err, res)
	}
	if res.Data["content"] != "one\ntwo\n" {
		t.Errorf("content = %q", res.Data["content"])
	}

	res, err = h.Execute(ctx, &Request{Arguments: map[string]any{"operation": "delete", "path": path}})
	if err != nil || !res.Success {
		t.Fatalf("delete failed: %v %v", err, res)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("file should be gone after delete")
	}
}

func TestFileOperationReadMissingFails(t *testing.T) {
	h := &FileOperationHandler{}
	res, err := h.Execute(context.Background(), &Request{Arguments: map[string]any{
		"operation": "read", "path": filepath.Join(t.TempDir(), "nope.txt"),
	}})
	if err != nil {
		t.Fatalf("missing file is a step failure, not an infrastructure error: %v", err)
	}
	if res.Success {
		t.Error("expected failure")
	}
}

func TestFileOperationValidate(t *testing.T) {
	h := &FileOperationHandler{}
	if vr := h.Validate(&schema.Step{ID: "f", Arguments: map[string]any{"operation": "chmod", "path": "x"}}); vr.Valid {
		t.Error("unknown operation should be invalid")
	}
	if vr := h.Validate(&schema.Step{ID: "f", Arguments: map[string]any{"operation": "write"}}); vr.Valid {
		t.Error("missing path should be invalid")
	}
	if vr := h.Validate(&schema.Step{ID: "f", Arguments: map[string]any{"operation": "write", "path": "x"}}); !vr.Valid {
		t.Errorf("unexpected errors: %v", vr.Errors)
	}
}

func TestUserInputHandler(t *testing.T) {
	p := &fakePrompter{answer: "yes"}
	h := &UserInputHandler{Prompter: p}

	res, err := h.Execute(context.Background(), &Request{Arguments: map[string]any{"prompt": "continue?"}})
	if err != nil || !res.Success {
		t.Fatalf("Execute failed: %v %v", err, res)
	}
	if res.Data["input"] != "yes" {
		t.Errorf("input = %v", res.Data["input"])
	}
	if len(p.asked) != 1 || p.asked[0] != "continue?" {
		t.Errorf("prompter asked %v", p.asked)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry(&DryRunGenerator{}, &DryRunPrompter{})
	for _, stepType := range schema.StepTypes {
		if _, err := r.Lookup(stepType); err != nil {
			t.Errorf("no handler for built-in type %q: %v", stepType, err)
		}
	}
	if _, err := r.Lookup("teleport"); err == nil {
		t.Error("unknown type should error")
	}
}

func TestDryRunCollaborators(t *testing.T) {
	out, err := (&DryRunGenerator{}).Generate(context.Background(), "anything")
	if err != nil || ExtractFenced(out) != "<dry-run>" {
		t.Errorf("dry-run generator: %q %v", out, err)
	}
	in, err := (&DryRunPrompter{}).Prompt("anything")
	if err != nil || in != "<dry-run>" {
		t.Errorf("dry-run prompter: %q %v", in, err)
	}
}
