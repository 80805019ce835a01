package runtime

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSnapshotRoundTrip(t *testing.T) {
	state := &RunState{
		RunID:        "20250101T120000-abcd1234",
		WorkflowName: "demo",
		Mode:         "auto",
		Status:       RunRunning,
		StartedAt:    time.Now().UTC(),
		Current:      "b",
		Steps: map[string]*StepState{
			"a": {StepID: "a", Status: StatusSucceeded, Attempts: 1},
			"b": {StepID: "b", Status: StatusPending},
		},
		Results: map[string]map[string]any{
			"a": {"code": "package main", "score": float64(8)},
		},
		History: []*StepRecord{
			{RunID: "20250101T120000-abcd1234", StepID: "a", Status: StatusSucceeded, Attempt: 1},
		},
	}

	path := filepath.Join(t.TempDir(), "step-0000.json")
	if err := SaveSnapshot(state, path); err != nil {
		t.Fatalf("SaveSnapshot error: %v", err)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot error: %v", err)
	}
	if loaded.RunID != state.RunID || loaded.Current != "b" {
		t.Errorf("loaded state mismatch: %+v", loaded)
	}
	if loaded.Steps["a"].Status != StatusSucceeded {
		t.Errorf("step state lost: %+v", loaded.Steps["a"])
	}
	if v, ok := loaded.Lookup("a", "code"); !ok || v != "package main" {
		t.Errorf("result lost: %v %v", v, ok)
	}
	if len(loaded.History) != 1 {
		t.Errorf("history lost: %d entries", len(loaded.History))
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing snapshot")
	}
}
