// Package adapter is the boundary to the text-generation collaborator.
// The pipeline treats providers as interchangeable: a prompt and a
// budget go in, free-form text comes out. Nothing above this package
// inspects provider-specific response fields.
package adapter

import "context"

// GenerateOptions carries the per-call budget hints.
type GenerateOptions struct {
	// MaxSteps bounds the collaborator's own internal tool loop, for
	// providers that expose one. Zero means provider default.
	MaxSteps int
	// MaxRetries is forwarded to providers with built-in retry
	// support. The pipeline's own retry loop is layered above this.
	MaxRetries int
}

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Generate sends a prompt to the model and returns the response.
	Generate(ctx context.Context, model string, prompt string, opts GenerateOptions) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}
