// Package debugger implements the interactive REPL debugger for workflows.
package debugger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/stepflow-ai/stepflow/pkg/handlers"
	"github.com/stepflow-ai/stepflow/pkg/runtime"
	"github.com/stepflow-ai/stepflow/pkg/schema"
)

// Debugger provides an interactive REPL for stepping through workflow execution.
type Debugger struct {
	workflow *schema.Workflow
	engine   *runtime.Engine
	state    *runtime.RunState
	output   io.Writer
	rl       *readline.Instance
}

// New creates a new debugger for the given workflow.
func New(wf *schema.Workflow, registry *handlers.Registry, cfg runtime.Config) (*Debugger, error) {
	eng, err := runtime.NewEngine(wf, registry, cfg)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	d := &Debugger{
		workflow: wf,
		engine:   eng,
		state:    eng.State,
		output:   os.Stdout,
	}
	if cfg.Out != nil {
		d.output = cfg.Out
	}
	return d, nil
}

// Engine returns the underlying runtime engine for external configuration.
func (d *Debugger) Engine() *runtime.Engine {
	return d.engine
}

// Run starts the interactive REPL loop.
func (d *Debugger) Run(ctx context.Context) error {
	commands := []string{"next", "continue", "print results", "print steps",
		"history", "insert", "dump", "help", "quit"}

	var completer = readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children,
			readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          d.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	d.rl = rl
	defer rl.Close()

	fmt.Fprintf(d.output, "stepflow debugger — %d steps, mode=%s\n", len(d.workflow.Steps), d.state.Mode)
	fmt.Fprintf(d.output, "Type 'help' for available commands, 'next' to execute next step.\n\n")

	for {
		rl.SetPrompt(d.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]

		switch cmd {
		case "next", "n":
			if err := d.handleNext(ctx); err != nil {
				fmt.Fprintf(d.output, "Error: %v\n", err)
			}
		case "continue", "c":
			if err := d.handleContinue(ctx); err != nil {
				fmt.Fprintf(d.output, "Error: %v\n", err)
			}
		case "print", "p":
			d.handlePrint(parts)
		case "history", "h":
			d.handleHistory()
		case "insert":
			d.handleInsert(line)
		case "dump":
			d.handleDump()
		case "help", "?":
			d.handleHelp()
		case "quit", "q":
			fmt.Fprintf(d.output, "Exiting debugger.\n")
			return nil
		default:
			fmt.Fprintf(d.output, "Unknown command: %q. Type 'help' for available commands.\n", cmd)
		}
	}
}

// buildPrompt creates the prompt string: stepflow[step_id | status]>
func (d *Debugger) buildPrompt() string {
	if d.state.Status != runtime.RunRunning || d.state.Current == "" {
		return fmt.Sprintf("stepflow[%s]> ", d.state.Status)
	}
	return fmt.Sprintf("stepflow[%s | %s]> ", d.state.Current, d.state.Status)
}
