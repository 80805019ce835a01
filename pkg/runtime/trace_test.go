package runtime

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTraceWriterAppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	tw, err := NewTraceWriter(path)
	if err != nil {
		t.Fatalf("NewTraceWriter error: %v", err)
	}

	records := []*StepRecord{
		{RunID: "r1", StepID: "a", Status: StatusSucceeded, Attempt: 1, StartedAt: time.Now(), EndedAt: time.Now()},
		{RunID: "r1", StepID: "b", Status: StatusFailed, Attempt: 1, Error: "boom"},
	}
	for _, r := range records {
		if err := tw.Write(r); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer f.Close()

	var events []TraceEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev TraceEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad JSONL line: %v", err)
		}
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != "step_result" || events[0].Record.StepID != "a" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Record.Error != "boom" {
		t.Errorf("second event should carry the step error")
	}
}

func TestTraceWriterReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")

	for i := 0; i < 2; i++ {
		tw, err := NewTraceWriter(path)
		if err != nil {
			t.Fatalf("NewTraceWriter error: %v", err)
		}
		if err := tw.Write(&StepRecord{RunID: "r1", StepID: "a", Attempt: i + 1}); err != nil {
			t.Fatalf("Write error: %v", err)
		}
		tw.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("expected 2 lines after reopen, got %d", lines)
	}
}
