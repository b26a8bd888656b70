package schema

import (
	"encoding/json"
	"strings"

	"github.com/zen-systems/repoflow/pkg/extract"
	"github.com/zen-systems/repoflow/pkg/normalize"
)

// minParseLen is the shortest extracted candidate worth handing to the
// JSON parser. Shorter candidates fail fast with an extraction-quality
// error instead.
const minParseLen = 10

// ParseOptions tunes the parsing pipeline for one response.
type ParseOptions struct {
	// DisableRecovery skips the syntactic repair pass when the first
	// parse attempt fails. Recovery is on by default.
	DisableRecovery bool
	// Rules are the normalization rules applied to the parsed value
	// before validation.
	Rules []normalize.FieldRule
}

// ParseStructuredResponse converts a model's free-text response into a
// value satisfying the target contract: extraction, a cheap sanity
// gate, then parse, normalize, validate. On failure there is exactly
// one repair pass followed by one more parse/normalize/validate round.
func ParseStructuredResponse(text string, target *Schema, opts ParseOptions) (map[string]any, error) {
	candidate := extract.JSONCandidate(text)

	trimmed := strings.TrimSpace(candidate)
	switch {
	case len(trimmed) < minParseLen:
		return nil, &ExtractionQualityError{Reason: "candidate too short", Preview: preview(text)}
	case trimmed == "...":
		return nil, &ExtractionQualityError{Reason: "placeholder response", Preview: preview(text)}
	case !strings.Contains(trimmed, "{"):
		return nil, &ExtractionQualityError{Reason: "no object in candidate", Preview: preview(text)}
	}

	value, firstErr := parseAndValidate(trimmed, target, opts.Rules)
	if firstErr == nil {
		return value, nil
	}

	if opts.DisableRecovery {
		if verr, ok := firstErr.(*ValidationError); ok {
			return nil, verr
		}
		return nil, &ParseError{ParseErr: firstErr, Preview: preview(trimmed)}
	}

	repaired := extract.RepairJSON(trimmed)
	value, recoveryErr := parseAndValidate(repaired, target, opts.Rules)
	if recoveryErr == nil {
		return value, nil
	}

	if verr, ok := recoveryErr.(*ValidationError); ok {
		return nil, verr
	}
	return nil, &ParseError{ParseErr: firstErr, RecoveryErr: recoveryErr, Preview: preview(trimmed)}
}

func parseAndValidate(candidate string, target *Schema, rules []normalize.FieldRule) (map[string]any, error) {
	var parsed any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, err
	}

	normalized := normalize.Apply(parsed, rules)
	if err := target.Validate(normalized); err != nil {
		return nil, err
	}

	obj, ok := normalized.(map[string]any)
	if !ok {
		return nil, &ValidationError{Schema: target.Name(), Violations: []string{"top-level value is not an object"}}
	}
	return obj, nil
}
