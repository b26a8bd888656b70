package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zen-systems/repoflow/pkg/notify"
)

// RunContext is the shared context record threaded through every step
// of one pipeline run. Typed core fields are the only ones consumers
// read; Extra is opaque cargo from the caller, forwarded unchanged.
type RunContext struct {
	RunID         string
	ProjectID     string
	RepositoryURL string

	// Set by steps as the run progresses.
	ContainerID string
	RepoPath    string
	ContextPath string

	// Extra carries caller-supplied metadata with no declared shape.
	Extra map[string]any

	Logger   *zap.Logger
	Notifier notify.Notifier

	toolCalls   atomic.Int64
	mu          sync.Mutex
	transitions []Transition
	attempts    []Attempt
}

// Transition is one entry in the ordered step transition log.
type Transition struct {
	StepID    string        `json:"stepId"`
	Status    notify.Status `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error,omitempty"`
}

// Attempt is one outcome of a step's retry loop.
type Attempt struct {
	StepID    string
	Attempt   int
	Succeeded bool
	Error     string
	Duration  time.Duration
}

// NewRunContext creates a run context with a fresh run identifier.
func NewRunContext(projectID string) *RunContext {
	return &RunContext{
		RunID:     uuid.NewString(),
		ProjectID: projectID,
		Extra:     make(map[string]any),
		Logger:    zap.NewNop(),
		Notifier:  notify.NopNotifier{},
	}
}

// CountToolCall increments the shared tool-invocation counter and
// returns the new total. Safe for concurrent use from parallel steps.
func (rc *RunContext) CountToolCall() int64 {
	return rc.toolCalls.Add(1)
}

// ToolCallCount returns the current tool-invocation total.
func (rc *RunContext) ToolCallCount() int64 {
	return rc.toolCalls.Load()
}

// RecordAttempt appends one retry-loop outcome for a step. Safe for
// concurrent use from parallel steps.
func (rc *RunContext) RecordAttempt(stepID string, attempt int, duration time.Duration, err error) {
	a := Attempt{StepID: stepID, Attempt: attempt, Succeeded: err == nil, Duration: duration}
	if err != nil {
		a.Error = err.Error()
	}
	rc.mu.Lock()
	rc.attempts = append(rc.attempts, a)
	rc.mu.Unlock()
}

// Attempts returns a copy of the recorded attempt log.
func (rc *RunContext) Attempts() []Attempt {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]Attempt, len(rc.attempts))
	copy(out, rc.attempts)
	return out
}

// Transitions returns a copy of the ordered transition log.
func (rc *RunContext) Transitions() []Transition {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]Transition, len(rc.transitions))
	copy(out, rc.transitions)
	return out
}

func (rc *RunContext) recordTransition(stepID string, status notify.Status, err error) {
	t := Transition{StepID: stepID, Status: status, Timestamp: time.Now().UTC()}
	if err != nil {
		t.Error = err.Error()
	}
	rc.mu.Lock()
	rc.transitions = append(rc.transitions, t)
	rc.mu.Unlock()
}

func (rc *RunContext) notifyStep(stepID, title string, status notify.Status, level notify.Level, subtitle string) {
	rc.Notifier.Send(notify.Alert{
		StepID:        stepID,
		Status:        status,
		RunID:         rc.RunID,
		ContainerID:   rc.ContainerID,
		Title:         title,
		Subtitle:      subtitle,
		Level:         level,
		ToolCallCount: rc.ToolCallCount(),
	})
}
