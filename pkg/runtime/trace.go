package runtime

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TraceWriter appends run events to a JSONL trace file. Two event
// types exist: step_result (one per step attempt, carrying the full
// StepRecord) and run_finished (once, carrying the terminal status).
// The file is flushed and synced at every event so the trace survives
// a crash up to the last completed step.
type TraceWriter struct {
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
}

// NewTraceWriter creates a trace writer that appends to the given file.
// Resume reopens the same file, so a resumed run extends its trace
// rather than starting over.
func NewTraceWriter(path string) (*TraceWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	w := bufio.NewWriter(f)
	return &TraceWriter{
		file:   f,
		writer: w,
		enc:    json.NewEncoder(w),
	}, nil
}

// Write appends a step_result event.
func (tw *TraceWriter) Write(record *StepRecord) error {
	return tw.emit(TraceEvent{
		Type:      "step_result",
		Timestamp: time.Now(),
		RunID:     record.RunID,
		Record:    record,
	})
}

// WriteFinished appends the run_finished event with the terminal
// status. Error is empty unless the run failed or was aborted.
func (tw *TraceWriter) WriteFinished(runID, status, errMsg string) error {
	return tw.emit(TraceEvent{
		Type:      "run_finished",
		Timestamp: time.Now(),
		RunID:     runID,
		Status:    status,
		Error:     errMsg,
	})
}

func (tw *TraceWriter) emit(event TraceEvent) error {
	if err := tw.enc.Encode(event); err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("flush trace: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("sync trace: %w", err)
	}
	return nil
}

// Close flushes and closes the trace file.
func (tw *TraceWriter) Close() error {
	if err := tw.writer.Flush(); err != nil {
		return err
	}
	return tw.file.Close()
}
