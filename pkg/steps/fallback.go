package steps

// Conservative fallback documents used when an analysis step exhausts
// its retry budget. Downstream steps can still proceed with a degraded
// context; the low confidence score marks the document as guessed.

const fallbackConfidence = 0.1

func fallbackRepositoryAnalysis() map[string]any {
	return map[string]any{
		"type": "single-package",
		"structure": map[string]any{
			"packages": []any{},
		},
		"hasWorkspaceConfig": false,
		"confidence":         fallbackConfidence,
	}
}

func fallbackCodebaseAnalysis() map[string]any {
	return map[string]any{
		"languages":       []any{},
		"complexity":      "moderate",
		"maturity":        "development",
		"maintainability": "fair",
		"documentation": map[string]any{
			"hasReadme":     false,
			"hasApiDocs":    false,
			"hasExamples":   false,
			"commentsLevel": "none",
		},
		"hasTests":   false,
		"confidence": fallbackConfidence,
	}
}

func fallbackBuildAnalysis() map[string]any {
	return map[string]any{
		"buildTools":    []any{},
		"hasCI":         false,
		"hasDockerfile": false,
		"hasLockfile":   false,
		"deployTargets": []any{},
		"complexity":    "moderate",
		"confidence":    fallbackConfidence,
	}
}
