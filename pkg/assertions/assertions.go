// Package assertions evaluates completion criteria against step result data.
package assertions

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// CriterionResult records the outcome of a single criterion check.
type CriterionResult struct {
	Type     string `json:"type"`
	Key      string `json:"key"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
}

// Evaluate runs a single criterion against a step's result data.
// The criterion's key selects which result value to check; a missing
// key fails the criterion rather than erroring.
func Evaluate(c schema.Criterion, data map[string]any) *CriterionResult {
	raw, ok := data[c.Key]
	if !ok {
		return &CriterionResult{
			Type:    criterionType(c),
			Key:     c.Key,
			Passed:  false,
			Message: fmt.Sprintf("result has no key %q", c.Key),
		}
	}
	actual := stringify(raw)

	switch {
	case c.Contains != "":
		return EvalContains(c.Key, actual, c.Contains)
	case c.Equals != "":
		return EvalEquals(c.Key, actual, c.Equals)
	case c.Matches != "":
		return EvalMatches(c.Key, actual, c.Matches)
	case c.NotEmpty:
		return EvalNotEmpty(c.Key, actual)
	}
	return &CriterionResult{
		Type:    "unknown",
		Key:     c.Key,
		Passed:  false,
		Message: "no criterion field set",
	}
}

// EvaluateAll runs every criterion and reports whether all passed.
func EvaluateAll(criteria []schema.Criterion, data map[string]any) ([]*CriterionResult, bool) {
	results := make([]*CriterionResult, 0, len(criteria))
	allPassed := true
	for _, c := range criteria {
		r := Evaluate(c, data)
		results = append(results, r)
		if !r.Passed {
			allPassed = false
		}
	}
	return results, allPassed
}

// EvalContains checks that the value contains the expected substring.
func EvalContains(key, actual, expected string) *CriterionResult {
	passed := strings.Contains(actual, expected)
	msg := fmt.Sprintf("%s contains %q", key, expected)
	if !passed {
		msg = fmt.Sprintf("%s does not contain %q", key, expected)
	}
	return &CriterionResult{
		Type:     "contains",
		Key:      key,
		Expected: expected,
		Actual:   truncate(actual, 200),
		Passed:   passed,
		Message:  msg,
	}
}

// EvalEquals checks that the value exactly equals expected.
func EvalEquals(key, actual, expected string) *CriterionResult {
	passed := actual == expected
	msg := fmt.Sprintf("%s equals %q", key, expected)
	if !passed {
		msg = fmt.Sprintf("%s %q != %q", key, truncate(actual, 100), expected)
	}
	return &CriterionResult{
		Type:     "equals",
		Key:      key,
		Expected: expected,
		Actual:   truncate(actual, 200),
		Passed:   passed,
		Message:  msg,
	}
}

// EvalMatches checks the value against a regex pattern.
func EvalMatches(key, actual, pattern string) *CriterionResult {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return &CriterionResult{
			Type:     "matches",
			Key:      key,
			Expected: pattern,
			Actual:   truncate(actual, 200),
			Passed:   false,
			Message:  fmt.Sprintf("invalid regex: %v", err),
		}
	}
	passed := re.MatchString(actual)
	msg := fmt.Sprintf("%s matches /%s/", key, pattern)
	if !passed {
		msg = fmt.Sprintf("%s does not match /%s/", key, pattern)
	}
	return &CriterionResult{
		Type:     "matches",
		Key:      key,
		Expected: pattern,
		Actual:   truncate(actual, 200),
		Passed:   passed,
		Message:  msg,
	}
}

// EvalNotEmpty checks that the value is non-empty after trimming whitespace.
func EvalNotEmpty(key, actual string) *CriterionResult {
	passed := strings.TrimSpace(actual) != ""
	msg := fmt.Sprintf("%s is non-empty", key)
	if !passed {
		msg = fmt.Sprintf("%s is empty", key)
	}
	return &CriterionResult{
		Type:    "not_empty",
		Key:     key,
		Actual:  truncate(actual, 200),
		Passed:  passed,
		Message: msg,
	}
}

func criterionType(c schema.Criterion) string {
	switch {
	case c.Contains != "":
		return "contains"
	case c.Equals != "":
		return "equals"
	case c.Matches != "":
		return "matches"
	case c.NotEmpty:
		return "not_empty"
	}
	return "unknown"
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
