package steps

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zen-systems/repoflow/pkg/adapter"
	"github.com/zen-systems/repoflow/pkg/gitops"
	"github.com/zen-systems/repoflow/pkg/normalize"
	"github.com/zen-systems/repoflow/pkg/notify"
	"github.com/zen-systems/repoflow/pkg/pipeline"
	"github.com/zen-systems/repoflow/pkg/retry"
	"github.com/zen-systems/repoflow/pkg/sandbox"
	"github.com/zen-systems/repoflow/pkg/schema"
)

// SandboxEngine is the container shim the steps run commands through.
type SandboxEngine interface {
	Start(ctx context.Context, image, repoPath string) (*sandbox.Container, error)
	Exec(ctx context.Context, c *sandbox.Container, argv ...string) (string, error)
	Remove(ctx context.Context, c *sandbox.Container)
}

// SourceControl is the clone/commit/push/PR shim.
type SourceControl interface {
	Clone(ctx context.Context, url, dest string) error
	CommitAndPush(ctx context.Context, dir, branch, message string) error
	OpenPullRequest(ctx context.Context, coords gitops.Coordinates, branch, title, body string) (string, error)
}

// Deps wires the external collaborators into the steps.
type Deps struct {
	Agent        adapter.Adapter
	Model        string
	MaxAttempts  int
	MaxSteps     int
	Sandbox      SandboxEngine
	Git          SourceControl
	SandboxImage string
	EvidenceDir  string
	Logger       *zap.Logger
	Notifier     notify.Notifier
}

func (d *Deps) validate() error {
	if d.Agent == nil {
		return fmt.Errorf("agent adapter is required")
	}
	if d.Model == "" {
		return fmt.Errorf("model is required")
	}
	if d.Sandbox == nil {
		return fmt.Errorf("sandbox engine is required")
	}
	if d.Git == nil {
		return fmt.Errorf("source control client is required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.NopNotifier{}
	}
	if d.SandboxImage == "" {
		d.SandboxImage = "ubuntu:24.04"
	}
	return nil
}

func (d *Deps) retryPolicy(title string) retry.Policy {
	return retry.Policy{MaxAttempts: d.MaxAttempts, Title: title}
}

// generateStructured asks the collaborator for a document satisfying
// the target contract, retrying with a repair hint when the response
// cannot be parsed, normalized, and validated. Each non-final failure
// emits a warning alert.
func (d *Deps) generateStructured(
	ctx context.Context,
	rc *pipeline.RunContext,
	stepID string,
	prompt string,
	target *schema.Schema,
	rules []normalize.FieldRule,
) (map[string]any, error) {
	var lastErr error

	attempt := func(ctx context.Context, n int) (value map[string]any, err error) {
		start := time.Now()
		defer func() {
			rc.RecordAttempt(stepID, n, time.Since(start), err)
		}()

		p := prompt
		if n > 1 && lastErr != nil {
			p += repairHint(lastErr)
		}

		resp, err := d.Agent.Generate(ctx, d.Model, p, adapter.GenerateOptions{
			MaxSteps:   d.MaxSteps,
			MaxRetries: 0,
		})
		if err != nil {
			lastErr = err
			if !adapter.IsTransient(err) {
				return nil, retry.Abort(err)
			}
			return nil, err
		}

		value, err = schema.ParseStructuredResponse(resp.Text, target, schema.ParseOptions{Rules: rules})
		if err != nil {
			lastErr = err
			return nil, err
		}
		return value, nil
	}

	onRetry := func(n int, err error) {
		d.Logger.Warn("structured response attempt failed",
			zap.String("step", stepID), zap.Int("attempt", n), zap.Error(err))
		rc.Notifier.Send(notify.Alert{
			StepID:        stepID,
			Status:        notify.StatusInProgress,
			RunID:         rc.RunID,
			ContainerID:   rc.ContainerID,
			Title:         stepID,
			Subtitle:      fmt.Sprintf("retrying after attempt %d: %v", n, err),
			Level:         notify.LevelWarning,
			ToolCallCount: rc.ToolCallCount(),
		})
	}

	return retry.Do(ctx, d.retryPolicy(stepID), attempt, onRetry)
}
