package steps

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/zen-systems/repoflow/pkg/evidence"
	"github.com/zen-systems/repoflow/pkg/notify"
	"github.com/zen-systems/repoflow/pkg/pipeline"
	"github.com/zen-systems/repoflow/pkg/sandbox"
)

// RunInput parameterizes one analysis run. Exactly one of RepositoryURL
// and RepositoryPath should be set; a URL run can publish a pull
// request, a local-path run stops at publication.
type RunInput struct {
	ProjectID      string
	RepositoryURL  string
	RepositoryPath string
	ContextData    map[string]any
}

// RunOutput is the exit record of a run. Failed runs are reported here
// with Success false rather than as an error; only defects in the
// pipeline definition itself surface as errors.
type RunOutput struct {
	Result        string `json:"result"`
	Success       bool   `json:"success"`
	ToolCallCount int64  `json:"toolCallCount"`
	ContainerID   string `json:"containerId"`
	ContextPath   string `json:"contextPath,omitempty"`
	ProjectID     string `json:"projectId"`
	PRURL         string `json:"prUrl"`
}

// countingSandbox ties sandbox invocations to the run's shared
// tool-call counter. Start and Exec each count as one tool call;
// best-effort removal does not.
type countingSandbox struct {
	inner SandboxEngine
	rc    *pipeline.RunContext
}

func (s *countingSandbox) Start(ctx context.Context, image, repoPath string) (*sandbox.Container, error) {
	s.rc.CountToolCall()
	return s.inner.Start(ctx, image, repoPath)
}

func (s *countingSandbox) Exec(ctx context.Context, c *sandbox.Container, argv ...string) (string, error) {
	s.rc.CountToolCall()
	return s.inner.Exec(ctx, c, argv...)
}

func (s *countingSandbox) Remove(ctx context.Context, c *sandbox.Container) {
	s.inner.Remove(ctx, c)
}

// Run executes the analysis pipeline end to end: builds the
// composition, runs it, persists the evidence bundle, and tears the
// sandbox container down.
func Run(ctx context.Context, deps *Deps, in RunInput) (*RunOutput, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	rc := pipeline.NewRunContext(in.ProjectID)
	rc.Logger = deps.Logger
	rc.Notifier = deps.Notifier
	rc.RepositoryURL = in.RepositoryURL
	if in.RepositoryPath != "" {
		rc.Extra["repositoryPath"] = in.RepositoryPath
	}

	counted := *deps
	counted.Sandbox = &countingSandbox{inner: deps.Sandbox, rc: rc}
	p, err := Build(&counted)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rc.ContainerID != "" {
			deps.Sandbox.Remove(context.WithoutCancel(ctx), &sandbox.Container{ID: rc.ContainerID, Image: deps.SandboxImage})
		}
		// A cloned checkout is ephemeral: the published branch carries
		// the context file. Local-path workspaces are kept so the caller
		// can inspect the result.
		if in.RepositoryURL != "" && rc.RepoPath != "" {
			os.RemoveAll(rc.RepoPath)
		}
	}()

	input := pipeline.Values{"projectId": in.ProjectID}
	if in.RepositoryURL != "" {
		input["repositoryUrl"] = in.RepositoryURL
	}
	if in.ContextData != nil {
		input["contextData"] = in.ContextData
	}

	acc, runErr := p.Run(ctx, rc, input)
	writeEvidence(deps, p, rc, in)

	if runErr != nil {
		var defect *pipeline.ContractDefectError
		if errors.As(runErr, &defect) {
			return nil, runErr
		}
		deps.Logger.Warn("run failed", zap.String("run", rc.RunID), zap.Error(runErr))
		return &RunOutput{
			Result:        runErr.Error(),
			Success:       false,
			ToolCallCount: rc.ToolCallCount(),
			ContainerID:   rc.ContainerID,
			ContextPath:   rc.ContextPath,
			ProjectID:     in.ProjectID,
		}, nil
	}

	out := &RunOutput{
		Success:       true,
		ToolCallCount: rc.ToolCallCount(),
		ContainerID:   rc.ContainerID,
		ContextPath:   rc.ContextPath,
		ProjectID:     in.ProjectID,
	}
	if s, ok := acc["result"].(string); ok {
		out.Result = s
	}
	if s, ok := acc["prUrl"].(string); ok {
		out.PRURL = s
	}
	return out, nil
}

// writeEvidence persists the run record, per-step records, and the
// transition log. Evidence is advisory; failures are logged, never
// propagated into the run result.
func writeEvidence(deps *Deps, p *pipeline.Pipeline, rc *pipeline.RunContext, in RunInput) {
	if deps.EvidenceDir == "" {
		return
	}

	w, err := evidence.NewWriter(deps.EvidenceDir, rc.RunID)
	if err != nil {
		deps.Logger.Warn("evidence writer unavailable", zap.String("run", rc.RunID), zap.Error(err))
		return
	}

	if err := w.WriteRun(evidence.RunRecord{
		ID:            rc.RunID,
		Timestamp:     time.Now().UTC(),
		Pipeline:      p.Name(),
		ProjectID:     in.ProjectID,
		RepositoryURL: in.RepositoryURL,
		Workspace:     rc.RepoPath,
	}); err != nil {
		deps.Logger.Warn("evidence run record failed", zap.String("run", rc.RunID), zap.Error(err))
	}

	transitions := rc.Transitions()
	records := make([]evidence.TransitionRecord, len(transitions))
	for i, t := range transitions {
		records[i] = evidence.TransitionRecord{
			StepID:    t.StepID,
			Status:    string(t.Status),
			Timestamp: t.Timestamp,
			Error:     t.Error,
		}
	}
	if err := w.WriteTransitions(records); err != nil {
		deps.Logger.Warn("evidence transition log failed", zap.String("run", rc.RunID), zap.Error(err))
	}

	for _, record := range stepRecords(transitions, rc.Attempts()) {
		if err := w.WriteStep(record); err != nil {
			deps.Logger.Warn("evidence step record failed",
				zap.String("run", rc.RunID), zap.String("step", record.Name), zap.Error(err))
		}
	}
}

// stepRecords folds the transition log into one record per step: the
// terminal status, the error if any, the wall time between the
// starting and terminal transitions, and the step's retry attempt log.
func stepRecords(transitions []pipeline.Transition, attempts []pipeline.Attempt) []evidence.StepRecord {
	byStep := map[string][]evidence.AttemptRecord{}
	for _, a := range attempts {
		byStep[a.StepID] = append(byStep[a.StepID], evidence.AttemptRecord{
			Attempt:        a.Attempt,
			Succeeded:      a.Succeeded,
			Error:          a.Error,
			DurationMillis: a.Duration.Milliseconds(),
		})
	}

	started := map[string]time.Time{}
	index := map[string]int{}
	var records []evidence.StepRecord

	for _, t := range transitions {
		if t.Status == notify.StatusStarting {
			started[t.StepID] = t.Timestamp
			if _, ok := index[t.StepID]; !ok {
				index[t.StepID] = len(records)
				records = append(records, evidence.StepRecord{Name: t.StepID, Status: string(t.Status)})
			}
			continue
		}

		i, ok := index[t.StepID]
		if !ok {
			continue
		}
		records[i].Status = string(t.Status)
		records[i].Error = t.Error
		if begin, ok := started[t.StepID]; ok {
			records[i].DurationMillis = t.Timestamp.Sub(begin).Milliseconds()
		}
	}

	for i := range records {
		records[i].Attempts = byStep[records[i].Name]
	}
	return records
}
