package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stepflow-ai/stepflow/pkg/runtime"
)

var (
	runsRoot   string
	runsStatus string
	runsJSON   bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect past run artifacts",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs with their outcomes",
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	manifests, err := loadManifests(runsRoot)
	if err != nil {
		return err
	}
	if runsStatus != "" {
		filtered := manifests[:0]
		for _, m := range manifests {
			if m.Status == runsStatus {
				filtered = append(filtered, m)
			}
		}
		manifests = filtered
	}
	if len(manifests) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	if runsJSON {
		return json.NewEncoder(os.Stdout).Encode(manifests)
	}

	tally := make(map[string]int)
	fmt.Printf("  %-28s %-20s %-12s %-10s %s\n", "RUN", "WORKFLOW", "MODE", "STATUS", "STEPS")
	for _, m := range manifests {
		tally[m.Status]++
		fmt.Printf("  %-28s %-20s %-12s %s %-8s %d/%d ok\n",
			m.RunID, m.Workflow, m.Mode, runStatusIcon(m.Status), m.Status,
			m.StepsSummary.Succeeded, m.StepsSummary.Total)
	}
	fmt.Printf("\n  %d run(s)", len(manifests))
	var statuses []string
	for s := range tally {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Printf("  %s: %d", s, tally[s])
	}
	fmt.Println()
	return nil
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show a run's manifest and step history",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	root := runsRoot
	if root == "" {
		root = runtime.DefaultRunsRoot
	}
	baseDir := filepath.Join(root, args[0])

	data, err := os.ReadFile(filepath.Join(baseDir, "run.yaml"))
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var m runtime.RunManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}

	fmt.Printf("Run:      %s\n", m.RunID)
	fmt.Printf("Workflow: %s", m.Workflow)
	if m.WorkflowPath != "" {
		fmt.Printf(" (%s)", m.WorkflowPath)
	}
	fmt.Println()
	fmt.Printf("Mode:     %s\n", m.Mode)
	fmt.Printf("Status:   %s %s\n", runStatusIcon(m.Status), m.Status)
	if m.Error != "" {
		fmt.Printf("Error:    %s\n", m.Error)
	}
	fmt.Printf("Steps:    %d total, %d succeeded, %d failed, %d skipped\n",
		m.StepsSummary.Total, m.StepsSummary.Succeeded, m.StepsSummary.Failed, m.StepsSummary.Skipped)
	fmt.Printf("Started:  %s\nEnded:    %s\n", m.StartedAt, m.EndedAt)

	events, err := readTrace(filepath.Join(baseDir, "trace.jsonl"))
	if err != nil {
		return nil // manifest alone is still useful
	}
	if len(events) > 0 {
		fmt.Println("\nHistory:")
		for _, ev := range events {
			r := ev.Record
			if r == nil {
				continue
			}
			line := fmt.Sprintf("  %s %-24s %s", stepGlyph(r.Status), r.StepID, r.Status)
			if r.Attempt > 1 {
				line += fmt.Sprintf(" (attempt %d)", r.Attempt)
			}
			if r.Error != "" {
				line += "  " + r.Error
			}
			fmt.Println(line)
		}
	}
	return nil
}

func loadManifests(root string) ([]*runtime.RunManifest, error) {
	if root == "" {
		root = runtime.DefaultRunsRoot
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read runs root: %w", err)
	}
	var manifests []*runtime.RunManifest
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, e.Name(), "run.yaml"))
		if err != nil {
			continue // run never finished; no manifest
		}
		var m runtime.RunManifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			continue
		}
		manifests = append(manifests, &m)
	}
	// Run ids start with a timestamp so lexical order is chronological.
	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].RunID < manifests[j].RunID
	})
	return manifests, nil
}

func readTrace(path string) ([]*runtime.TraceEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []*runtime.TraceEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev runtime.TraceEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("malformed trace line: %w", err)
		}
		events = append(events, &ev)
	}
	return events, scanner.Err()
}

func runStatusIcon(status string) string {
	switch status {
	case runtime.RunSucceeded:
		return "✓"
	case runtime.RunFailed:
		return "✗"
	case runtime.RunAborted:
		return "■"
	default:
		return "…"
	}
}

func stepGlyph(status string) string {
	switch status {
	case runtime.StatusSucceeded:
		return "✓"
	case runtime.StatusFailed:
		return "✗"
	case runtime.StatusSkipped:
		return "⊘"
	case runtime.StatusAborted:
		return "■"
	default:
		return "·"
	}
}

func init() {
	runsCmd.PersistentFlags().StringVar(&runsRoot, "runs-root", "", "Directory holding run artifacts (default "+runtime.DefaultRunsRoot+")")
	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "Only show runs with this status")
	runsListCmd.Flags().BoolVar(&runsJSON, "json", false, "JSON output")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
