package runtime

import (
	"encoding/json"
	"fmt"
	"os"
)

// SaveSnapshot persists RunState to a JSON file. The write goes through
// a temp file and rename so a crash mid-write never leaves a torn
// snapshot: resume reads the newest snapshot and must be able to trust
// it.
func SaveSnapshot(state *RunState, path string) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a RunState from a JSON file.
func LoadSnapshot(path string) (*RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &state, nil
}
