package steps

import (
	"github.com/zen-systems/repoflow/pkg/normalize"
	"github.com/zen-systems/repoflow/pkg/schema"
)

// Step identifiers. Parallel analysis outputs are joined under these
// keys, so downstream contracts reference them by name.
const (
	StepInitWorkspace     = "init-workspace"
	StepAnalyzeRepository = "analyze-repository"
	StepAnalyzeCodebase   = "analyze-codebase"
	StepAnalyzeBuild      = "analyze-build"
	StepSynthesize        = "synthesize-context"
	StepPublish           = "publish"
	StepFinalize          = "finalize"
)

func enum(values []string) map[string]any {
	return map[string]any{"type": "string", "enum": values}
}

// PipelineInput is the overall entry contract.
var PipelineInput = schema.MustNew("pipeline.input", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"projectId":     map[string]any{"type": "string"},
		"repositoryUrl": map[string]any{"type": "string"},
		"contextData":   map[string]any{"type": "object"},
	},
	"required": []string{"projectId"},
})

// PipelineOutput is the overall exit contract.
var PipelineOutput = schema.MustNew("pipeline.output", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"result":        map[string]any{"type": "string"},
		"success":       map[string]any{"type": "boolean"},
		"toolCallCount": map[string]any{"type": "integer"},
		"containerId":   map[string]any{"type": "string"},
		"contextPath":   map[string]any{"type": "string"},
		"projectId":     map[string]any{"type": "string"},
		"prUrl":         map[string]any{"type": "string"},
	},
	"required": []string{"result", "success", "toolCallCount", "containerId", "projectId", "prUrl"},
})

var initInput = schema.MustNew("init.input", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"projectId":     map[string]any{"type": "string"},
		"repositoryUrl": map[string]any{"type": "string"},
		"contextData":   map[string]any{"type": "object"},
	},
	"required": []string{"projectId"},
})

var initOutput = schema.MustNew("init.output", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"containerId": map[string]any{"type": "string"},
		"repoPath":    map[string]any{"type": "string"},
	},
	"required": []string{"containerId", "repoPath"},
})

var analysisInput = schema.MustNew("analysis.input", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"repoPath":    map[string]any{"type": "string"},
		"containerId": map[string]any{"type": "string"},
	},
	"required": []string{"repoPath"},
})

// RepositoryAnalysis is the contract for the repository-structure
// analysis document the collaborator must produce.
var RepositoryAnalysis = schema.MustNew("analysis.repository", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"type": enum(normalize.RepositoryTypes),
		"structure": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"packages": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name": map[string]any{"type": "string"},
							"type": enum(normalize.PackageTypes),
							"path": map[string]any{"type": "string"},
						},
						"required": []string{"name", "type"},
					},
				},
			},
			"required": []string{"packages"},
		},
		"hasWorkspaceConfig": map[string]any{"type": "boolean"},
		"confidence":         map[string]any{"type": "number"},
	},
	"required": []string{"type", "structure", "confidence"},
})

// CodebaseAnalysis is the contract for the codebase-quality analysis.
var CodebaseAnalysis = schema.MustNew("analysis.codebase", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"languages":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"complexity":      enum(normalize.Complexities),
		"maturity":        enum(normalize.Maturities),
		"maintainability": enum(normalize.Maintainabilities),
		"documentation": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"hasReadme":     map[string]any{"type": "boolean"},
				"hasApiDocs":    map[string]any{"type": "boolean"},
				"hasExamples":   map[string]any{"type": "boolean"},
				"commentsLevel": enum(normalize.CommentLevels),
			},
		},
		"hasTests":   map[string]any{"type": "boolean"},
		"confidence": map[string]any{"type": "number"},
	},
	"required": []string{"complexity", "maturity", "maintainability", "confidence"},
})

// BuildAnalysis is the contract for the build-and-deployment analysis.
var BuildAnalysis = schema.MustNew("analysis.build", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"buildTools":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"hasCI":         map[string]any{"type": "boolean"},
		"hasDockerfile": map[string]any{"type": "boolean"},
		"hasLockfile":   map[string]any{"type": "boolean"},
		"deployTargets": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"complexity":    enum(normalize.Complexities),
		"confidence":    map[string]any{"type": "number"},
	},
	"required": []string{"complexity", "confidence"},
})

var synthesizeInput = schema.MustNew("synthesize.input", map[string]any{
	"type": "object",
	"properties": map[string]any{
		StepAnalyzeRepository: map[string]any{"type": "object"},
		StepAnalyzeCodebase:   map[string]any{"type": "object"},
		StepAnalyzeBuild:      map[string]any{"type": "object"},
		"repoPath":            map[string]any{"type": "string"},
	},
	"required": []string{StepAnalyzeRepository, StepAnalyzeCodebase, StepAnalyzeBuild},
})

var synthesizeOutput = schema.MustNew("synthesize.output", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"contextPath": map[string]any{"type": "string"},
	},
	"required": []string{"contextPath"},
})

var publishInput = schema.MustNew("publish.input", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"contextPath": map[string]any{"type": "string"},
		"repoPath":    map[string]any{"type": "string"},
	},
	"required": []string{"contextPath"},
})

var publishOutput = schema.MustNew("publish.output", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"prUrl": map[string]any{"type": "string"},
	},
	"required": []string{"prUrl"},
})

var finalizeInput = schema.MustNew("finalize.input", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"prUrl":       map[string]any{"type": "string"},
		"contextPath": map[string]any{"type": "string"},
	},
	"required": []string{"prUrl"},
})
