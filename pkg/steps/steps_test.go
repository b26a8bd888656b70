package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/zen-systems/repoflow/pkg/adapter"
	"github.com/zen-systems/repoflow/pkg/evidence"
	"github.com/zen-systems/repoflow/pkg/gitops"
	"github.com/zen-systems/repoflow/pkg/notify"
	"github.com/zen-systems/repoflow/pkg/sandbox"
)

const (
	goodRepositoryDoc = `{"type": "monorepo", "structure": {"packages": [{"name": "core", "type": "library", "path": "packages/core"}]}, "hasWorkspaceConfig": true, "confidence": 0.9}`
	goodCodebaseDoc   = `{"languages": ["go"], "complexity": "moderate", "maturity": "development", "maintainability": "good", "documentation": {"hasReadme": true, "hasApiDocs": false, "hasExamples": false, "commentsLevel": "minimal"}, "hasTests": true, "confidence": 0.8}`
	goodBuildDoc      = `{"buildTools": ["make"], "hasCI": true, "hasDockerfile": false, "hasLockfile": true, "deployTargets": ["container"], "complexity": "simple", "confidence": 0.7}`
)

// routedAdapter answers by prompt content, so the three concurrent
// analysis prompts each get their own document.
type routedAdapter struct {
	mu    sync.Mutex
	calls map[string]int
	route func(prompt string, call int) (string, error)
}

func newRoutedAdapter(route func(prompt string, call int) (string, error)) *routedAdapter {
	return &routedAdapter{calls: make(map[string]int), route: route}
}

func (a *routedAdapter) Name() string     { return "routed" }
func (a *routedAdapter) Models() []string { return []string{"routed-1"} }

func (a *routedAdapter) Generate(_ context.Context, _ string, prompt string, _ adapter.GenerateOptions) (*adapter.Response, error) {
	a.mu.Lock()
	key := routeKey(prompt)
	a.calls[key]++
	call := a.calls[key]
	a.mu.Unlock()

	text, err := a.route(prompt, call)
	if err != nil {
		return nil, err
	}
	return &adapter.Response{Text: text}, nil
}

func routeKey(prompt string) string {
	switch {
	case strings.Contains(prompt, "analyzing the structure"):
		return "repository"
	case strings.Contains(prompt, "assessing the quality"):
		return "codebase"
	case strings.Contains(prompt, "built and deployed"):
		return "build"
	default:
		return "synthesize"
	}
}

func happyRoute(prompt string, _ int) (string, error) {
	switch routeKey(prompt) {
	case "repository":
		return goodRepositoryDoc, nil
	case "codebase":
		return goodCodebaseDoc, nil
	case "build":
		return goodBuildDoc, nil
	default:
		return "# Analysis\n\nA small monorepo in good shape.", nil
	}
}

type fakeSandbox struct {
	mu      sync.Mutex
	started int
	removed []string
	listing string
}

func (f *fakeSandbox) Start(_ context.Context, image, _ string) (*sandbox.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return &sandbox.Container{ID: fmt.Sprintf("container-%d", f.started), Image: image}, nil
}

func (f *fakeSandbox) Exec(_ context.Context, c *sandbox.Container, _ ...string) (string, error) {
	if f.listing == "" {
		return "./README.md\n./packages/core\n", nil
	}
	return f.listing, nil
}

func (f *fakeSandbox) Remove(_ context.Context, c *sandbox.Container) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, c.ID)
}

type fakeGit struct {
	mu       sync.Mutex
	branches []string
	prURL    string
}

func (f *fakeGit) Clone(_ context.Context, _, dest string) error {
	return os.MkdirAll(dest, 0755)
}

func (f *fakeGit) CommitAndPush(_ context.Context, _, branch, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches = append(f.branches, branch)
	return nil
}

func (f *fakeGit) OpenPullRequest(_ context.Context, coords gitops.Coordinates, branch, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prURL == "" {
		f.prURL = fmt.Sprintf("https://github.com/%s/%s/pull/1", coords.Owner, coords.Repo)
	}
	return f.prURL, nil
}

func testDeps(t *testing.T, route func(prompt string, call int) (string, error)) (*Deps, *fakeSandbox, *fakeGit, *notify.Recorder) {
	t.Helper()
	sb := &fakeSandbox{}
	git := &fakeGit{}
	recorder := &notify.Recorder{}
	deps := &Deps{
		Agent:       newRoutedAdapter(route),
		Model:       "routed-1",
		MaxAttempts: 3,
		Sandbox:     sb,
		Git:         git,
		Notifier:    recorder,
		EvidenceDir: t.TempDir(),
	}
	return deps, sb, git, recorder
}

func TestRunPublishesAnalysis(t *testing.T) {
	deps, sb, git, _ := testDeps(t, happyRoute)

	out, err := Run(context.Background(), deps, RunInput{
		ProjectID:     "proj-1",
		RepositoryURL: "https://github.com/acme/widgets",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success {
		t.Fatalf("expected success, got result %q", out.Result)
	}
	if out.PRURL != "https://github.com/acme/widgets/pull/1" {
		t.Fatalf("unexpected PR URL %q", out.PRURL)
	}
	if out.ProjectID != "proj-1" {
		t.Fatalf("unexpected project id %q", out.ProjectID)
	}
	// One container start plus one listing per analysis step.
	if out.ToolCallCount != 4 {
		t.Fatalf("unexpected tool call count %d", out.ToolCallCount)
	}

	if len(git.branches) != 1 || !strings.HasPrefix(git.branches[0], "repoflow/analysis-") {
		t.Fatalf("unexpected branches %v", git.branches)
	}

	if out.ContextPath == "" {
		t.Fatal("expected context path in the exit record")
	}
	// The cloned checkout is removed once the run finishes; the context
	// lives on the published branch.
	if _, err := os.Stat(out.ContextPath); !os.IsNotExist(err) {
		t.Fatalf("cloned workspace should be removed after the run, got %v", err)
	}

	if len(sb.removed) != 1 {
		t.Fatalf("container not removed: %v", sb.removed)
	}
}

func TestRunWritesEvidence(t *testing.T) {
	deps, _, _, _ := testDeps(t, happyRoute)

	out, err := Run(context.Background(), deps, RunInput{
		ProjectID:     "proj-evidence",
		RepositoryURL: "https://github.com/acme/widgets",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success {
		t.Fatalf("expected success, got result %q", out.Result)
	}

	runs, err := os.ReadDir(deps.EvidenceDir)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one run directory, got %v (%v)", runs, err)
	}
	runDir := filepath.Join(deps.EvidenceDir, runs[0].Name())
	for _, name := range []string{"run.json", "transitions.json"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Fatalf("missing evidence file %s: %v", name, err)
		}
	}
	steps, err := os.ReadDir(filepath.Join(runDir, "steps"))
	if err != nil || len(steps) != 7 {
		t.Fatalf("expected 7 step records, got %d (%v)", len(steps), err)
	}
}

func TestAnalysisRetriesWithWarning(t *testing.T) {
	deps, _, _, recorder := testDeps(t, func(prompt string, call int) (string, error) {
		if routeKey(prompt) == "repository" && call == 1 {
			return "not json at all, truly", nil
		}
		return happyRoute(prompt, call)
	})

	out, err := Run(context.Background(), deps, RunInput{
		ProjectID:     "proj-retry",
		RepositoryURL: "https://github.com/acme/widgets",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success {
		t.Fatalf("expected success after retry, got result %q", out.Result)
	}

	warnings := 0
	for _, alert := range recorder.Alerts() {
		if alert.Level == notify.LevelWarning && alert.StepID == StepAnalyzeRepository {
			warnings++
		}
	}
	if warnings != 1 {
		t.Fatalf("expected one retry warning, got %d", warnings)
	}

	record := readStepRecord(t, deps.EvidenceDir, StepAnalyzeRepository)
	if len(record.Attempts) != 2 {
		t.Fatalf("expected 2 recorded attempts, got %+v", record.Attempts)
	}
	if record.Attempts[0].Succeeded || record.Attempts[0].Error == "" {
		t.Fatalf("first attempt should be a recorded failure: %+v", record.Attempts[0])
	}
	if !record.Attempts[1].Succeeded || record.Attempts[1].Attempt != 2 {
		t.Fatalf("second attempt should be a recorded success: %+v", record.Attempts[1])
	}
}

func readStepRecord(t *testing.T, evidenceDir, stepID string) evidence.StepRecord {
	t.Helper()
	runs, err := os.ReadDir(evidenceDir)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one run directory, got %v (%v)", runs, err)
	}
	data, err := os.ReadFile(filepath.Join(evidenceDir, runs[0].Name(), "steps", stepID+".json"))
	if err != nil {
		t.Fatalf("read step record: %v", err)
	}
	var record evidence.StepRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("unmarshal step record: %v", err)
	}
	return record
}

func TestAnalysisFallsBackAfterExhaustion(t *testing.T) {
	deps, _, _, _ := testDeps(t, func(prompt string, call int) (string, error) {
		if routeKey(prompt) == "codebase" {
			return "still not json, no matter how often you ask", nil
		}
		return happyRoute(prompt, call)
	})

	out, err := Run(context.Background(), deps, RunInput{
		ProjectID:     "proj-fallback",
		RepositoryURL: "https://github.com/acme/widgets",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success {
		t.Fatalf("expected fallback to keep the run alive, got result %q", out.Result)
	}
}

func TestLocalPathRunStopsAtPublish(t *testing.T) {
	deps, sb, _, _ := testDeps(t, happyRoute)

	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "README.md"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := Run(context.Background(), deps, RunInput{
		ProjectID:      "proj-local",
		RepositoryPath: src,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Success {
		t.Fatal("local run without coordinates must not report success")
	}
	if !strings.Contains(out.Result, "missing repository coordinates") {
		t.Fatalf("unexpected result %q", out.Result)
	}
	// Analysis ran before publication failed, so the context file exists.
	if out.ContextPath == "" {
		t.Fatal("expected context path from the synthesis step")
	}
	data, err := os.ReadFile(out.ContextPath)
	if err != nil {
		t.Fatalf("local workspace must be kept after the run: %v", err)
	}
	if !strings.Contains(string(data), "Analysis") {
		t.Fatalf("unexpected context file contents %q", data)
	}
	if len(sb.removed) != 1 {
		t.Fatalf("container not removed: %v", sb.removed)
	}
}

func TestRunWithoutRepositoryFailsInit(t *testing.T) {
	deps, _, _, _ := testDeps(t, happyRoute)

	out, err := Run(context.Background(), deps, RunInput{ProjectID: "proj-none"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Success {
		t.Fatal("run without any repository source must fail")
	}
	if !strings.Contains(out.Result, "missing repository coordinates") {
		t.Fatalf("unexpected result %q", out.Result)
	}
}

func TestRunPropagatesAdapterFailureAsResult(t *testing.T) {
	deps, _, _, _ := testDeps(t, func(prompt string, call int) (string, error) {
		if routeKey(prompt) == "synthesize" {
			return "", errors.New("provider unavailable")
		}
		return happyRoute(prompt, call)
	})

	out, err := Run(context.Background(), deps, RunInput{
		ProjectID:     "proj-synth-fail",
		RepositoryURL: "https://github.com/acme/widgets",
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Success {
		t.Fatal("expected failed run")
	}
	if !strings.Contains(out.Result, "provider unavailable") {
		t.Fatalf("unexpected result %q", out.Result)
	}
}

func TestBuildRejectsMissingDeps(t *testing.T) {
	if _, err := Build(&Deps{}); err == nil {
		t.Fatal("expected error for empty deps")
	}

	deps, _, _, _ := testDeps(t, happyRoute)
	deps.Model = ""
	if _, err := Build(deps); err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestBuildComposesExpectedSteps(t *testing.T) {
	deps, _, _, _ := testDeps(t, happyRoute)
	p, err := Build(deps)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		StepInitWorkspace,
		StepAnalyzeRepository, StepAnalyzeCodebase, StepAnalyzeBuild,
		StepSynthesize, StepPublish, StepFinalize,
	}
	got := p.Steps()
	if len(got) != len(want) {
		t.Fatalf("expected %d steps, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
