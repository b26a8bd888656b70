// Package steps defines the repository-analysis pipeline: workspace
// setup, three concurrent analysis passes, context synthesis, and
// publication of the result as a pull request.
package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/zen-systems/repoflow/pkg/adapter"
	"github.com/zen-systems/repoflow/pkg/gitops"
	"github.com/zen-systems/repoflow/pkg/normalize"
	"github.com/zen-systems/repoflow/pkg/pipeline"
	"github.com/zen-systems/repoflow/pkg/retry"
	"github.com/zen-systems/repoflow/pkg/sandbox"
	"github.com/zen-systems/repoflow/pkg/schema"
)

const (
	// PipelineName identifies the composed analysis pipeline.
	PipelineName = "repository-analysis"

	contextFileName = "ANALYSIS.md"
	listingLimit    = "200"
)

// Build composes the analysis pipeline against the given dependencies.
func Build(deps *Deps) (*pipeline.Pipeline, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	return pipeline.New(PipelineName, PipelineInput, PipelineOutput).
		Then(initWorkspaceStep(deps)).
		Parallel(
			analysisStep(deps, StepAnalyzeRepository, RepositoryAnalysis, normalize.RepositoryRules, repositoryPrompt, fallbackRepositoryAnalysis),
			analysisStep(deps, StepAnalyzeCodebase, CodebaseAnalysis, normalize.CodebaseRules, codebasePrompt, fallbackCodebaseAnalysis),
			analysisStep(deps, StepAnalyzeBuild, BuildAnalysis, normalize.BuildRules, buildPrompt, fallbackBuildAnalysis),
		).
		Then(synthesizeStep(deps)).
		Then(publishStep(deps)).
		Then(finalizeStep()).
		Commit()
}

// initWorkspaceStep materializes the repository and starts the sandbox
// container the analysis steps run commands in. A repository URL is
// cloned; a local path carried in the run context is copied instead, so
// offline runs still reach the analysis phase.
func initWorkspaceStep(deps *Deps) *pipeline.Step {
	return &pipeline.Step{
		ID:     StepInitWorkspace,
		Input:  initInput,
		Output: initOutput,
		Execute: func(ctx context.Context, rc *pipeline.RunContext, input pipeline.Values) (pipeline.Values, error) {
			repoPath, err := materializeRepository(ctx, deps, rc, input)
			if err != nil {
				return nil, err
			}

			container, err := deps.Sandbox.Start(ctx, deps.SandboxImage, repoPath)
			if err != nil {
				return nil, err
			}

			rc.ContainerID = container.ID
			rc.RepoPath = repoPath
			deps.Logger.Info("workspace ready",
				zap.String("run", rc.RunID),
				zap.String("container", container.ID),
				zap.String("repo", repoPath))

			return pipeline.Values{
				"containerId": container.ID,
				"repoPath":    repoPath,
			}, nil
		},
	}
}

func materializeRepository(ctx context.Context, deps *Deps, rc *pipeline.RunContext, input pipeline.Values) (string, error) {
	if url, ok := input["repositoryUrl"].(string); ok && url != "" {
		rc.RepositoryURL = url
		dest, err := os.MkdirTemp("", "repoflow-checkout-*")
		if err != nil {
			return "", err
		}
		if err := deps.Git.Clone(ctx, url, dest); err != nil {
			return "", err
		}
		return dest, nil
	}

	if local, ok := rc.Extra["repositoryPath"].(string); ok && local != "" {
		// The workspace is kept after the run so the caller can inspect
		// the context file; its path lands in the evidence record.
		dir, _, err := gitops.MaterializeLocal(local)
		return dir, err
	}

	return "", &gitops.MissingRepositoryCoordinatesError{}
}

// analysisStep builds one member of the fan-out phase. The collaborator
// is asked for a document satisfying the contract; when the retry
// budget is exhausted a conservative fallback document stands in, so a
// single flaky analysis does not sink the whole run.
func analysisStep(
	deps *Deps,
	id string,
	contract *schema.Schema,
	rules []normalize.FieldRule,
	prompt func(listing string) string,
	fallback func() map[string]any,
) *pipeline.Step {
	return &pipeline.Step{
		ID:     id,
		Input:  analysisInput,
		Output: contract,
		Execute: func(ctx context.Context, rc *pipeline.RunContext, input pipeline.Values) (pipeline.Values, error) {
			listing, err := listFiles(ctx, deps, rc)
			if err != nil {
				return nil, err
			}

			doc, err := deps.generateStructured(ctx, rc, id, prompt(listing), contract, rules)
			if err != nil {
				var exhausted *retry.ExhaustedError
				if !errors.As(err, &exhausted) {
					return nil, err
				}
				deps.Logger.Warn("analysis exhausted retries, using fallback document",
					zap.String("run", rc.RunID), zap.String("step", id), zap.Error(err))
				doc = fallback()
			}
			return pipeline.Values(doc), nil
		},
	}
}

func listFiles(ctx context.Context, deps *Deps, rc *pipeline.RunContext) (string, error) {
	container := &sandbox.Container{ID: rc.ContainerID, Image: deps.SandboxImage}
	return deps.Sandbox.Exec(ctx, container, "sh", "-c",
		"find . -maxdepth 3 -not -path './.git*' | sort | head -"+listingLimit)
}

// synthesizeStep combines the three analysis documents into a single
// context file written into the workspace.
func synthesizeStep(deps *Deps) *pipeline.Step {
	return &pipeline.Step{
		ID:     StepSynthesize,
		Input:  synthesizeInput,
		Output: synthesizeOutput,
		Execute: func(ctx context.Context, rc *pipeline.RunContext, input pipeline.Values) (pipeline.Values, error) {
			repoDoc, err := marshalDoc(input[StepAnalyzeRepository])
			if err != nil {
				return nil, err
			}
			codeDoc, err := marshalDoc(input[StepAnalyzeCodebase])
			if err != nil {
				return nil, err
			}
			buildDoc, err := marshalDoc(input[StepAnalyzeBuild])
			if err != nil {
				return nil, err
			}

			prompt := synthesizePrompt(repoDoc, codeDoc, buildDoc)
			summary, err := retry.Do(ctx, deps.retryPolicy(StepSynthesize),
				func(ctx context.Context, n int) (text string, err error) {
					start := time.Now()
					defer func() {
						rc.RecordAttempt(StepSynthesize, n, time.Since(start), err)
					}()

					resp, err := deps.Agent.Generate(ctx, deps.Model, prompt, adapter.GenerateOptions{MaxSteps: deps.MaxSteps})
					if err != nil {
						if !adapter.IsTransient(err) {
							return "", retry.Abort(err)
						}
						return "", err
					}
					return resp.Text, nil
				},
				func(n int, err error) {
					deps.Logger.Warn("synthesis attempt failed",
						zap.String("run", rc.RunID), zap.Int("attempt", n), zap.Error(err))
				})
			if err != nil {
				return nil, err
			}

			contextPath := filepath.Join(rc.RepoPath, contextFileName)
			if err := os.WriteFile(contextPath, []byte(summary), 0644); err != nil {
				return nil, fmt.Errorf("write context file: %w", err)
			}

			rc.ContextPath = contextPath
			return pipeline.Values{"contextPath": contextPath}, nil
		},
	}
}

func marshalDoc(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal analysis document: %w", err)
	}
	return string(data), nil
}

// publishStep commits the context file on a new branch and opens a pull
// request. There is no fallback here: publishing against guessed
// coordinates would be worse than failing the run.
func publishStep(deps *Deps) *pipeline.Step {
	return &pipeline.Step{
		ID:     StepPublish,
		Input:  publishInput,
		Output: publishOutput,
		Execute: func(ctx context.Context, rc *pipeline.RunContext, input pipeline.Values) (pipeline.Values, error) {
			coords, err := gitops.ParseCoordinates(rc.RepositoryURL)
			if err != nil {
				return nil, err
			}

			branch := analysisBranch(rc.RunID)
			if err := deps.Git.CommitAndPush(ctx, rc.RepoPath, branch, "Add repository analysis context"); err != nil {
				return nil, err
			}

			prURL, err := deps.Git.OpenPullRequest(ctx, coords, branch,
				"Repository analysis context",
				fmt.Sprintf("Automated repository analysis for project %s (run %s).", rc.ProjectID, rc.RunID))
			if err != nil {
				return nil, err
			}

			deps.Logger.Info("pull request opened",
				zap.String("run", rc.RunID), zap.String("pr", prURL))
			return pipeline.Values{"prUrl": prURL}, nil
		},
	}
}

func analysisBranch(runID string) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return "repoflow/analysis-" + short
}

// finalizeStep assembles the exit record from the run context.
func finalizeStep() *pipeline.Step {
	return &pipeline.Step{
		ID:     StepFinalize,
		Input:  finalizeInput,
		Output: PipelineOutput,
		Execute: func(ctx context.Context, rc *pipeline.RunContext, input pipeline.Values) (pipeline.Values, error) {
			prURL, _ := input["prUrl"].(string)
			return pipeline.Values{
				"result":        fmt.Sprintf("analysis published: %s", prURL),
				"success":       true,
				"toolCallCount": rc.ToolCallCount(),
				"containerId":   rc.ContainerID,
				"contextPath":   rc.ContextPath,
				"projectId":     rc.ProjectID,
				"prUrl":         prURL,
			}, nil
		},
	}
}
