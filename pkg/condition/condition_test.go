package condition

import (
	"errors"
	"strings"
	"testing"
)

// TestEvaluateAgainstContext covers the comparison and connective set
// against recorded step results.
func TestEvaluateAgainstContext(t *testing.T) {
	ctx := MapContext{
		"a":      {"x": float64(5)},
		"b":      {"y": float64(2)},
		"review": {"verdict": "approved", "score": "8"},
		"tests":  {"passed": true},
	}

	cases := []struct {
		expr string
		want bool
	}{
		{`{a.x} == 5 and {b.y} != 3`, true},
		{`{a.x} == 4`, false},
		{`{a.x} > 3 and {b.y} < 3`, true},
		{`{a.x} >= 5 and {a.x} <= 5`, true},
		{`{review.verdict} == "approved"`, true},
		{`{review.verdict} == 'rejected' or {b.y} == 2`, true},
		{`not {tests.passed}`, false},
		{`{tests.passed} == true`, true},
		{`({a.x} == 5 or {a.x} == 6) and not ({b.y} > 10)`, true},
		// Numeric strings captured from model output compare numerically.
		{`{review.score} > 5`, true},
		{`true`, true},
		{`false or {tests.passed}`, true},
	}

	for _, tc := range cases {
		got, err := Evaluate(tc.expr, ctx)
		if err != nil {
			t.Errorf("Evaluate(%q) error: %v", tc.expr, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

// TestRejectsCodeShapedInput verifies that call syntax, attribute
// traversal and bare identifiers never parse.
func TestRejectsCodeShapedInput(t *testing.T) {
	exprs := []string{
		`os.system("rm -rf /")`,
		`__import__('os')`,
		`{a.x}.bit_length()`,
		`len({a.x}) > 0`,
		`{a.x.y} == 1`,
		`{a.x} == 5; true`,
		`x == 5`,
		`{a.x} = 5`,
		`{a.x} == 5 5`,
		`(`,
		`{a.x`,
		`"unterminated`,
	}
	for _, e := range exprs {
		_, err := Parse(e)
		if err == nil {
			t.Errorf("Parse(%q): expected ParseError, got nil", e)
			continue
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q): error type %T, want *ParseError", e, err)
		}
	}
}

// TestParseErrorPosition verifies the reported offset points at the
// offending token.
func TestParseErrorPosition(t *testing.T) {
	_, err := Parse(`{a.x} == 5 and $bad`)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error type %T, want *ParseError", err)
	}
	if pe.Pos != 15 {
		t.Errorf("Pos = %d, want 15", pe.Pos)
	}
}

// TestMissingReference verifies an unrecorded reference is an EvalError
// naming the reference, not a parse failure or a silent false.
func TestMissingReference(t *testing.T) {
	ctx := MapContext{"a": {"x": float64(1)}}

	_, err := Evaluate(`{ghost.out} == 1`, ctx)
	var ee *EvalError
	if !errors.As(err, &ee) {
		t.Fatalf("error type %T, want *EvalError", err)
	}
	if ee.Ref != "{ghost.out}" {
		t.Errorf("Ref = %q, want %q", ee.Ref, "{ghost.out}")
	}

	// Known step, missing key.
	_, err = Evaluate(`{a.missing} == 1`, ctx)
	if !errors.As(err, &ee) {
		t.Fatalf("error type %T, want *EvalError", err)
	}
	if !strings.Contains(ee.Ref, "a.missing") {
		t.Errorf("Ref = %q, want it to name a.missing", ee.Ref)
	}
}

// TestTypeMismatchIsError verifies mixed-type comparisons surface an
// error instead of evaluating false.
func TestTypeMismatchIsError(t *testing.T) {
	ctx := MapContext{"a": {"ok": true, "name": "x"}}

	if _, err := Evaluate(`{a.ok} > 1`, ctx); err == nil {
		t.Error("bool > number: expected EvalError, got nil")
	}
	if _, err := Evaluate(`{a.name} == 5`, ctx); err == nil {
		t.Error("string == number: expected EvalError, got nil")
	}
	if _, err := Evaluate(`{a.name} and true`, ctx); err == nil {
		t.Error("string as logical operand: expected EvalError, got nil")
	}
}

// TestShortCircuit verifies the right side of and/or is not resolved when
// the left side decides the result.
func TestShortCircuit(t *testing.T) {
	ctx := MapContext{"a": {"x": float64(1)}}

	got, err := Evaluate(`{a.x} == 2 and {ghost.out} == 1`, ctx)
	if err != nil {
		t.Fatalf("short-circuit and resolved missing reference: %v", err)
	}
	if got {
		t.Error("false and ... = true")
	}

	got, err = Evaluate(`{a.x} == 1 or {ghost.out} == 1`, ctx)
	if err != nil {
		t.Fatalf("short-circuit or resolved missing reference: %v", err)
	}
	if !got {
		t.Error("true or ... = false")
	}
}

// TestPrecedence verifies and binds tighter than or.
func TestPrecedence(t *testing.T) {
	got, err := Evaluate(`true or false and false`, MapContext{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if !got {
		t.Error("true or (false and false) should be true")
	}
}
