// Package normalize coerces loosely-typed model output into the closed
// enumerations the step contracts demand. Models are instructed to use
// exact enum spelling but sometimes drift; this pass compensates before
// schema validation so cosmetic drift never fails a step. Every coercer
// accepts any value and always produces a member of its enumeration;
// normalization never fails, and canonical input passes through unchanged.
package normalize

import "strings"

// Closed enumerations shared across step contracts.
var (
	RepositoryTypes   = []string{"monorepo", "single-package", "multi-project"}
	PackageTypes      = []string{"app", "library", "tool", "config", "unknown"}
	CommentLevels     = []string{"extensive", "moderate", "minimal", "none"}
	Complexities      = []string{"simple", "moderate", "complex", "very-complex"}
	Maturities        = []string{"prototype", "development", "production", "mature"}
	Maintainabilities = []string{"excellent", "good", "fair", "poor"}
)

// RepositoryType coerces a value into the repository classification enum.
func RepositoryType(v any) string {
	s := hyphenated(v)
	switch {
	case strings.HasPrefix(s, "mono"):
		return "monorepo"
	case strings.HasPrefix(s, "multi"):
		return "multi-project"
	default:
		return "single-package"
	}
}

// PackageType coerces a value into the package classification enum.
func PackageType(v any) string {
	s := hyphenated(v)
	switch {
	case strings.HasPrefix(s, "lib"):
		return "library"
	case strings.HasPrefix(s, "app"):
		return "app"
	case strings.HasPrefix(s, "tool"):
		return "tool"
	case strings.HasPrefix(s, "config"), strings.HasPrefix(s, "cfg"):
		return "config"
	default:
		return "unknown"
	}
}

// CommentLevel coerces a documentation-detail value. Anything outside
// the enum collapses to the most conservative level.
func CommentLevel(v any) string {
	return member(v, CommentLevels, "none")
}

// Complexity coerces a complexity rating.
func Complexity(v any) string {
	return member(v, Complexities, "moderate")
}

// Maturity coerces a maturity rating.
func Maturity(v any) string {
	return member(v, Maturities, "development")
}

// Maintainability coerces a maintainability rating.
func Maintainability(v any) string {
	return member(v, Maintainabilities, "fair")
}

// Bool coerces a missing or loosely-typed boolean. Absent values become
// false.
func Bool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	default:
		return false
	}
}

func member(v any, allowed []string, fallback string) string {
	s := hyphenated(v)
	for _, a := range allowed {
		if s == a {
			return a
		}
	}
	return fallback
}

func hyphenated(v any) string {
	s, _ := v.(string)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "-")
}
