package schema

import (
	"fmt"
	"strings"
)

// previewLimit bounds how much offending text an error carries.
const previewLimit = 200

// ExtractionQualityError reports that the extracted candidate text was
// too short or degenerate to attempt a JSON parse.
type ExtractionQualityError struct {
	Reason  string
	Preview string
}

func (e *ExtractionQualityError) Error() string {
	return fmt.Sprintf("extraction quality: %s (preview: %q)", e.Reason, e.Preview)
}

// ParseError reports JSON that stayed syntactically invalid even after
// the single recovery pass. It carries both failure messages.
type ParseError struct {
	ParseErr    error
	RecoveryErr error
	Preview     string
}

func (e *ParseError) Error() string {
	if e.RecoveryErr != nil {
		return fmt.Sprintf("parse failed: %v (after recovery: %v) (preview: %q)", e.ParseErr, e.RecoveryErr, e.Preview)
	}
	return fmt.Sprintf("parse failed: %v (preview: %q)", e.ParseErr, e.Preview)
}

func (e *ParseError) Unwrap() error {
	return e.ParseErr
}

// ValidationError reports a parsed and normalized value that does not
// satisfy the target contract.
type ValidationError struct {
	Schema     string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema %s: %s", e.Schema, strings.Join(e.Violations, "; "))
}

func preview(text string) string {
	if len(text) <= previewLimit {
		return text
	}
	return text[:previewLimit] + "..."
}
