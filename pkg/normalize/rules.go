package normalize

// FieldRule binds a coercer to a field name, optionally scoped to
// fields nested anywhere under a named parent. Rules are an explicit,
// ordered list so new heuristics can be added without changing the
// behavior of existing ones; the first matching rule wins.
type FieldRule struct {
	// Key is the JSON field name the rule applies to.
	Key string
	// Under scopes the rule to fields nested below a parent with this
	// key. Empty means the field must sit at the document root.
	Under string
	// Coerce maps the raw value onto the closed enumeration.
	Coerce func(any) any
}

// Apply walks a parsed JSON value and rewrites every field a rule
// matches. The input is not mutated; maps and slices along rewritten
// paths are copied. Values with no matching rule are forwarded as-is.
func Apply(v any, rules []FieldRule) any {
	return applyValue(v, rules, nil)
}

func applyValue(v any, rules []FieldRule, path []string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if rule, ok := matchRule(rules, k, path); ok {
				out[k] = rule.Coerce(child)
				continue
			}
			out[k] = applyValue(child, rules, append(path, k))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = applyValue(child, rules, path)
		}
		return out
	default:
		return v
	}
}

func matchRule(rules []FieldRule, key string, path []string) (FieldRule, bool) {
	for _, rule := range rules {
		if rule.Key != key {
			continue
		}
		if rule.Under == "" {
			if len(path) == 0 {
				return rule, true
			}
			continue
		}
		for _, p := range path {
			if p == rule.Under {
				return rule, true
			}
		}
	}
	return FieldRule{}, false
}

func coerceString(f func(any) string) func(any) any {
	return func(v any) any { return f(v) }
}

func coerceBool(v any) any { return Bool(v) }

// RepositoryRules normalizes the repository-structure analysis document:
// the top-level repository classification and the classification of each
// discovered package.
var RepositoryRules = []FieldRule{
	{Key: "type", Coerce: coerceString(RepositoryType)},
	{Key: "type", Under: "packages", Coerce: coerceString(PackageType)},
	{Key: "hasWorkspaceConfig", Coerce: coerceBool},
}

// CodebaseRules normalizes the codebase-quality analysis document.
var CodebaseRules = []FieldRule{
	{Key: "commentsLevel", Coerce: coerceString(CommentLevel)},
	{Key: "commentsLevel", Under: "documentation", Coerce: coerceString(CommentLevel)},
	{Key: "complexity", Coerce: coerceString(Complexity)},
	{Key: "maturity", Coerce: coerceString(Maturity)},
	{Key: "maintainability", Coerce: coerceString(Maintainability)},
	{Key: "hasReadme", Under: "documentation", Coerce: coerceBool},
	{Key: "hasApiDocs", Under: "documentation", Coerce: coerceBool},
	{Key: "hasExamples", Under: "documentation", Coerce: coerceBool},
	{Key: "hasTests", Coerce: coerceBool},
}

// BuildRules normalizes the build-and-deployment analysis document.
var BuildRules = []FieldRule{
	{Key: "complexity", Coerce: coerceString(Complexity)},
	{Key: "hasCI", Coerce: coerceBool},
	{Key: "hasDockerfile", Coerce: coerceBool},
	{Key: "hasLockfile", Coerce: coerceBool},
}
