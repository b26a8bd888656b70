// Package schema defines step contracts as JSON Schema documents and
// the parsing pipeline that turns free-form model output into values
// satisfying them.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled, named step contract.
type Schema struct {
	name     string
	doc      map[string]any
	compiled *gojsonschema.Schema
}

// New compiles a JSON Schema document into a contract.
func New(name string, doc map[string]any) (*Schema, error) {
	if name == "" {
		return nil, fmt.Errorf("schema name is required")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("schema %s: serialize document: %w", name, err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("schema %s: compile: %w", name, err)
	}

	return &Schema{name: name, doc: doc, compiled: compiled}, nil
}

// MustNew compiles a schema or panics. Intended for package-level
// contract definitions where a bad document is a programming error.
func MustNew(name string, doc map[string]any) *Schema {
	s, err := New(name, doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the contract identifier.
func (s *Schema) Name() string {
	return s.name
}

// Validate checks a candidate value against the contract. A rejection
// is returned as a *ValidationError carrying field-level violations.
func (s *Schema) Validate(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("schema %s: serialize candidate: %w", s.name, err)
	}

	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema %s: validate: %w", s.name, err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Schema: s.name}
	for _, desc := range result.Errors() {
		verr.Violations = append(verr.Violations, desc.String())
	}
	return verr
}

// Properties returns the top-level property names the contract declares,
// sorted for stable output.
func (s *Schema) Properties() []string {
	props, ok := s.doc["properties"].(map[string]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Required returns the top-level required property names.
func (s *Schema) Required() []string {
	raw, ok := s.doc["required"].([]any)
	if !ok {
		// Contract definitions may use a typed slice directly.
		if typed, ok := s.doc["required"].([]string); ok {
			return typed
		}
		return nil
	}
	names := make([]string, 0, len(raw))
	for _, r := range raw {
		if name, ok := r.(string); ok {
			names = append(names, name)
		}
	}
	return names
}
