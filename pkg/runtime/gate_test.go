package runtime

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stepflow-ai/stepflow/pkg/schema"
)

func consoleReview(t *testing.T, input string) (*GateResponse, string) {
	t.Helper()
	var out bytes.Buffer
	g := NewConsoleGate(strings.NewReader(input), &out)
	step := &schema.Step{ID: "gen", StepType: schema.StepGeneration}
	record := &StepRecord{StepID: "gen", Data: map[string]any{"code": "package main"}}
	resp, err := g.Review(step, record)
	if err != nil {
		t.Fatalf("Review error: %v", err)
	}
	return resp, out.String()
}

func TestConsoleGateApprove(t *testing.T) {
	resp, out := consoleReview(t, "y\n")
	if resp.Decision != DecisionApprove {
		t.Errorf("decision = %q, want approve", resp.Decision)
	}
	if !strings.Contains(out, "package main") {
		t.Error("gate should show the result data")
	}
}

func TestConsoleGateReject(t *testing.T) {
	resp, _ := consoleReview(t, "n\n")
	if resp.Decision != DecisionReject {
		t.Errorf("decision = %q, want reject", resp.Decision)
	}
}

func TestConsoleGateRepromptOnGarbage(t *testing.T) {
	resp, out := consoleReview(t, "maybe\nYES\n")
	if resp.Decision != DecisionApprove {
		t.Errorf("decision = %q, want approve after reprompt", resp.Decision)
	}
	if !strings.Contains(out, "answer y, n, or e") {
		t.Error("expected a reprompt message")
	}
}

func TestConsoleGateEditUntilEND(t *testing.T) {
	resp, _ := consoleReview(t, "e\nline one\nline two\nEND\n")
	if resp.Decision != DecisionEdit {
		t.Fatalf("decision = %q, want edit", resp.Decision)
	}
	if resp.Edited != "line one\nline two" {
		t.Errorf("edited = %q", resp.Edited)
	}
}

func TestConsoleGateEditEOFActsAsEND(t *testing.T) {
	resp, _ := consoleReview(t, "e\nonly line")
	if resp.Decision != DecisionEdit {
		t.Fatalf("decision = %q, want edit", resp.Decision)
	}
	if resp.Edited != "only line" {
		t.Errorf("edited = %q", resp.Edited)
	}
}

func TestApplyEditPriority(t *testing.T) {
	data := map[string]any{"response": "raw", "code": "old"}
	if key := applyEdit(data, "new"); key != "code" {
		t.Errorf("replaced key = %q, want code", key)
	}
	if data["code"] != "new" || data["response"] != "raw" {
		t.Errorf("unexpected data after edit: %v", data)
	}

	if key := applyEdit(map[string]any{"iterations": 3}, "new"); key != "" {
		t.Errorf("no editable key should yield empty, got %q", key)
	}
}
