package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// codeFenceRe extracts the first fenced block from a model response.
var codeFenceRe = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\n(.*?)```")

// ExtractFenced returns the contents of the first fenced code block, or
// the trimmed response when no fence is present. Models fence their code
// most of the time, but not always.
func ExtractFenced(response string) string {
	if m := codeFenceRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(response)
}

// requiredArgs lists the argument keys each generation-family step type
// must carry. Checked at validation time, before substitution.
var requiredArgs = map[string][]string{
	schema.StepGeneration:     {"task"},
	schema.StepEditing:        {"instructions"},
	schema.StepReview:         {"code"},
	schema.StepRefactor:       {"code"},
	schema.StepTestGeneration: {"code"},
	schema.StepDocumentation:  {"code"},
}

// GenerateHandler executes one of the generation-family step types
// (generation, editing, review, refactor, test-generation,
// documentation) by building a prompt from the substituted arguments and
// sending it through the Generator collaborator.
type GenerateHandler struct {
	Kind      string
	Generator Generator
}

func (h *GenerateHandler) Validate(step *schema.Step) ValidationResult {
	var errs []string
	for _, key := range requiredArgs[h.Kind] {
		if _, ok := step.Arguments[key]; !ok {
			errs = append(errs, fmt.Sprintf("%s step %q requires argument %q", h.Kind, step.ID, key))
		}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (h *GenerateHandler) Execute(ctx context.Context, req *Request) (*StepResult, error) {
	if h.Generator == nil {
		return &StepResult{Success: false, Error: "no generator configured"}, nil
	}

	prompt := h.buildPrompt(req.Arguments)
	response, err := h.Generator.Generate(ctx, prompt)
	if err != nil {
		return &StepResult{Success: false, Error: fmt.Sprintf("generate: %v", err)}, nil
	}

	data := map[string]any{"response": response}
	switch h.Kind {
	case schema.StepReview:
		data["review"] = strings.TrimSpace(response)
	case schema.StepDocumentation:
		data["text"] = ExtractFenced(response)
	case schema.StepEditing, schema.StepRefactor:
		data["code"] = ExtractFenced(response)
		data["original_code"] = argString(req.Arguments, "code")
	default:
		data["code"] = ExtractFenced(response)
	}
	return &StepResult{Success: true, Data: data}, nil
}

// buildPrompt assembles the instruction sent to the generator. Arguments
// arrive with {step_id.key} references already substituted, so prior
// results flow in as plain text.
func (h *GenerateHandler) buildPrompt(args map[string]any) string {
	language := argString(args, "language")
	if language == "" {
		language = "Go"
	}

	var b strings.Builder
	switch h.Kind {
	case schema.StepGeneration:
		fmt.Fprintf(&b, "Write %s code that implements the following task.\n", language)
		fmt.Fprintf(&b, "Task: %s\n", argString(args, "task"))
		b.WriteString("Return the code in a fenced code block.\n")
	case schema.StepEditing:
		fmt.Fprintf(&b, "Edit the following %s code.\n", language)
		fmt.Fprintf(&b, "Instructions: %s\n", argString(args, "instructions"))
		fmt.Fprintf(&b, "Code:\n```\n%s\n```\n", argString(args, "code"))
		b.WriteString("Return the complete edited code in a fenced code block.\n")
	case schema.StepReview:
		fmt.Fprintf(&b, "Review the following %s code.\n", language)
		if focus := argString(args, "focus"); focus != "" {
			fmt.Fprintf(&b, "Focus on: %s\n", focus)
		}
		fmt.Fprintf(&b, "Code:\n```\n%s\n```\n", argString(args, "code"))
	case schema.StepRefactor:
		fmt.Fprintf(&b, "Refactor the following %s code.\n", language)
		if goal := argString(args, "goal"); goal != "" {
			fmt.Fprintf(&b, "Goal: %s\n", goal)
		}
		fmt.Fprintf(&b, "Code:\n```\n%s\n```\n", argString(args, "code"))
		b.WriteString("Return the complete refactored code in a fenced code block.\n")
	case schema.StepTestGeneration:
		fmt.Fprintf(&b, "Write tests for the following %s code.\n", language)
		if fw := argString(args, "framework"); fw != "" {
			fmt.Fprintf(&b, "Test framework: %s\n", fw)
		}
		fmt.Fprintf(&b, "Code:\n```\n%s\n```\n", argString(args, "code"))
		b.WriteString("Return the test code in a fenced code block.\n")
	case schema.StepDocumentation:
		doctype := argString(args, "doc_type")
		if doctype == "" {
			doctype = "reference documentation"
		}
		fmt.Fprintf(&b, "Write %s for the following %s code.\n", doctype, language)
		fmt.Fprintf(&b, "Code:\n```\n%s\n```\n", argString(args, "code"))
	}
	return b.String()
}
