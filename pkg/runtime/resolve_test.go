package runtime

import (
	"strings"
	"testing"
)

func stateWithResults() *RunState {
	return &RunState{
		Results: map[string]map[string]any{
			"gen":  {"code": "package main", "score": 8},
			"ask":  {"input": "y"},
			"plan": {"files": []any{"a.go", "b.go"}},
		},
	}
}

func TestResolveWholeStringKeepsType(t *testing.T) {
	args, err := ResolveArguments(map[string]any{
		"score": "{gen.score}",
		"files": "{plan.files}",
	}, stateWithResults())
	if err != nil {
		t.Fatalf("ResolveArguments error: %v", err)
	}
	if args["score"] != 8 {
		t.Errorf("score = %v (%T), want int 8", args["score"], args["score"])
	}
	if _, ok := args["files"].([]any); !ok {
		t.Errorf("files should keep its slice type, got %T", args["files"])
	}
}

func TestResolveEmbeddedReferenceStringifies(t *testing.T) {
	args, err := ResolveArguments(map[string]any{
		"task": "review this (scored {gen.score}): {gen.code}",
	}, stateWithResults())
	if err != nil {
		t.Fatalf("ResolveArguments error: %v", err)
	}
	if args["task"] != "review this (scored 8): package main" {
		t.Errorf("task = %q", args["task"])
	}
}

func TestResolveNestedValues(t *testing.T) {
	args, err := ResolveArguments(map[string]any{
		"options": map[string]any{"answer": "{ask.input}", "extra": []any{"{gen.score}", "plain"}},
	}, stateWithResults())
	if err != nil {
		t.Fatalf("ResolveArguments error: %v", err)
	}
	opts := args["options"].(map[string]any)
	if opts["answer"] != "y" {
		t.Errorf("nested answer = %v", opts["answer"])
	}
	extra := opts["extra"].([]any)
	if extra[0] != 8 || extra[1] != "plain" {
		t.Errorf("nested slice = %v", extra)
	}
}

func TestResolveMissingReferenceErrors(t *testing.T) {
	_, err := ResolveArguments(map[string]any{"task": "{ghost.code}"}, stateWithResults())
	if err == nil {
		t.Fatal("expected error for unresolved reference")
	}
	if !strings.Contains(err.Error(), "{ghost.code}") {
		t.Errorf("error should name the reference: %v", err)
	}

	_, err = ResolveArguments(map[string]any{"task": "use {gen.missing} here"}, stateWithResults())
	if err == nil {
		t.Fatal("expected error for unresolved embedded reference")
	}
}

func TestResolveLeavesPlainValuesAlone(t *testing.T) {
	args, err := ResolveArguments(map[string]any{
		"path":  "out/{not a ref}.go",
		"count": 3,
	}, stateWithResults())
	if err != nil {
		t.Fatalf("ResolveArguments error: %v", err)
	}
	if args["path"] != "out/{not a ref}.go" || args["count"] != 3 {
		t.Errorf("plain values changed: %v", args)
	}
}

func TestResolveNilArguments(t *testing.T) {
	args, err := ResolveArguments(nil, stateWithResults())
	if err != nil || args != nil {
		t.Errorf("nil args should resolve to nil, got %v (%v)", args, err)
	}
}
