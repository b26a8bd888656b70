// Package evidence persists a per-run audit trail: run metadata, one
// record per step with its attempts, and the ordered transition log.
package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunRecord captures run-level metadata.
type RunRecord struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Pipeline      string    `json:"pipeline"`
	ProjectID     string    `json:"project_id"`
	RepositoryURL string    `json:"repository_url,omitempty"`
	Workspace     string    `json:"workspace,omitempty"`
}

// StepRecord captures evidence for a single step.
type StepRecord struct {
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	Attempts       []AttemptRecord `json:"attempts,omitempty"`
	OutputHash     string          `json:"output_hash,omitempty"`
	Error          string          `json:"error,omitempty"`
	DurationMillis int64           `json:"duration_ms"`
}

// AttemptRecord captures one attempt inside a step's retry loop.
type AttemptRecord struct {
	Attempt        int    `json:"attempt"`
	Succeeded      bool   `json:"succeeded"`
	Error          string `json:"error,omitempty"`
	DurationMillis int64  `json:"duration_ms"`
}

// TransitionRecord is one entry of the ordered step transition log.
type TransitionRecord struct {
	StepID    string    `json:"stepId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Writer writes evidence bundles to disk.
type Writer struct {
	baseDir string
	runDir  string
}

// NewWriter creates a new evidence writer rooted at baseDir/runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(filepath.Join(runDir, "steps"), 0755); err != nil {
		return nil, err
	}

	return &Writer{baseDir: baseDir, runDir: runDir}, nil
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun writes run metadata to run.json.
func (w *Writer) WriteRun(record RunRecord) error {
	return writeJSON(filepath.Join(w.runDir, "run.json"), record)
}

// WriteStep writes a step record to steps/<step>.json.
func (w *Writer) WriteStep(record StepRecord) error {
	if record.Name == "" {
		return fmt.Errorf("step name is required")
	}
	path := filepath.Join(w.runDir, "steps", fmt.Sprintf("%s.json", record.Name))
	return writeJSON(path, record)
}

// WriteTransitions writes the ordered transition log to transitions.json.
func (w *Writer) WriteTransitions(records []TransitionRecord) error {
	return writeJSON(filepath.Join(w.runDir, "transitions.json"), records)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
