package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepositoryType(t *testing.T) {
	cases := map[any]string{
		"Mono":          "monorepo",
		"monorepo":      "monorepo",
		"Mono Repo":     "monorepo",
		"multi":         "multi-project",
		"Multi Project": "multi-project",
		"single":        "single-package",
		"":              "single-package",
		nil:             "single-package",
		42:              "single-package",
	}
	for in, want := range cases {
		assert.Equal(t, want, RepositoryType(in), "input %v", in)
	}
}

func TestPackageType(t *testing.T) {
	cases := map[any]string{
		"Library":       "library",
		"lib":           "library",
		"application":   "app",
		"tooling":       "tool",
		"configuration": "config",
		"cfg":           "config",
		"something":     "unknown",
		nil:             "unknown",
	}
	for in, want := range cases {
		assert.Equal(t, want, PackageType(in), "input %v", in)
	}
}

func TestCommentLevelDefaultsToNone(t *testing.T) {
	assert.Equal(t, "extensive", CommentLevel(" Extensive "))
	assert.Equal(t, "none", CommentLevel("heavy"))
	assert.Equal(t, "none", CommentLevel(nil))
	assert.Equal(t, "none", CommentLevel(true))
}

func TestComplexityHyphenation(t *testing.T) {
	assert.Equal(t, "very-complex", Complexity("Very Complex"))
	assert.Equal(t, "moderate", Complexity("gigantic"))
}

func TestBool(t *testing.T) {
	assert.False(t, Bool(nil))
	assert.True(t, Bool(true))
	assert.True(t, Bool("TRUE"))
	assert.False(t, Bool("yes"))
	assert.False(t, Bool(1))
}

func TestApplyRepositoryRules(t *testing.T) {
	doc := map[string]any{
		"type": "Mono",
		"structure": map[string]any{
			"packages": []any{
				map[string]any{"name": "core", "type": "Library"},
				map[string]any{"name": "cli", "type": "Application"},
			},
		},
	}

	got := Apply(doc, RepositoryRules).(map[string]any)
	assert.Equal(t, "monorepo", got["type"])

	packages := got["structure"].(map[string]any)["packages"].([]any)
	assert.Equal(t, "library", packages[0].(map[string]any)["type"])
	assert.Equal(t, "app", packages[1].(map[string]any)["type"])
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	doc := map[string]any{"type": "Mono"}
	Apply(doc, RepositoryRules)
	assert.Equal(t, "Mono", doc["type"])
}

func TestApplyCanonicalInputIsNoOp(t *testing.T) {
	doc := map[string]any{
		"type": "single-package",
		"structure": map[string]any{
			"packages": []any{
				map[string]any{"name": "core", "type": "library"},
			},
		},
		"hasWorkspaceConfig": false,
	}
	got := Apply(doc, RepositoryRules)
	assert.Equal(t, doc, got)
}

func TestApplyCodebaseRules(t *testing.T) {
	doc := map[string]any{
		"complexity":      "Complex",
		"maturity":        "PROD",
		"maintainability": "Good",
		"documentation": map[string]any{
			"hasReadme":     nil,
			"commentsLevel": "Moderate ",
		},
	}

	got := Apply(doc, CodebaseRules).(map[string]any)
	assert.Equal(t, "complex", got["complexity"])
	assert.Equal(t, "development", got["maturity"])
	assert.Equal(t, "good", got["maintainability"])

	docs := got["documentation"].(map[string]any)
	assert.Equal(t, false, docs["hasReadme"])
	assert.Equal(t, "moderate", docs["commentsLevel"])
}
