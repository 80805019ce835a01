package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// FileOperationHandler executes file-operation steps: read, write,
// append, delete. Write and append create parent directories.
type FileOperationHandler struct{}

var fileOperations = map[string]bool{
	"read": true, "write": true, "append": true, "delete": true,
}

func (h *FileOperationHandler) Validate(step *schema.Step) ValidationResult {
	var errs []string
	op := argString(step.Arguments, "operation")
	if op == "" {
		errs = append(errs, fmt.Sprintf("file-operation step %q requires argument \"operation\"", step.ID))
	} else if !fileOperations[op] {
		errs = append(errs, fmt.Sprintf("file-operation step %q has unknown operation %q", step.ID, op))
	}
	if argString(step.Arguments, "path") == "" {
		errs = append(errs, fmt.Sprintf("file-operation step %q requires argument \"path\"", step.ID))
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (h *FileOperationHandler) Execute(ctx context.Context, req *Request) (*StepResult, error) {
	op := argString(req.Arguments, "operation")
	path := argString(req.Arguments, "path")
	if path == "" {
		return &StepResult{Success: false, Error: "no path given"}, nil
	}

	switch op {
	case "read":
		data, err := os.ReadFile(path)
		if err != nil {
			return &StepResult{Success: false, Error: fmt.Sprintf("read %s: %v", path, err)}, nil
		}
		return &StepResult{Success: true, Data: map[string]any{
			"path":    path,
			"content": string(data),
		}}, nil

	case "write", "append":
		content := argString(req.Arguments, "content")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return &StepResult{Success: false, Error: fmt.Sprintf("create directory for %s: %v", path, err)}, nil
		}
		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if op == "append" {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		f, err := os.OpenFile(path, flags, 0644)
		if err != nil {
			return &StepResult{Success: false, Error: fmt.Sprintf("open %s: %v", path, err)}, nil
		}
		defer f.Close()
		n, err := f.WriteString(content)
		if err != nil {
			return &StepResult{Success: false, Error: fmt.Sprintf("%s %s: %v", op, path, err)}, nil
		}
		return &StepResult{Success: true, Data: map[string]any{
			"path":    path,
			"written": n,
		}}, nil

	case "delete":
		if err := os.Remove(path); err != nil {
			return &StepResult{Success: false, Error: fmt.Sprintf("delete %s: %v", path, err)}, nil
		}
		return &StepResult{Success: true, Data: map[string]any{
			"path":    path,
			"deleted": true,
		}}, nil

	default:
		return &StepResult{Success: false, Error: fmt.Sprintf("unknown file operation %q", op)}, nil
	}
}
