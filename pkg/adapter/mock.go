package adapter

import (
	"context"
	"fmt"
	"sync"
)

// MockAdapter returns deterministic responses for local runs and tests.
// Responses can be keyed by prompt or scripted as a sequence, which is
// what retry tests need: the first call fails or returns junk, a later
// call returns the real payload.
type MockAdapter struct {
	mu              sync.Mutex
	responses       map[string]string
	script          []ScriptedResponse
	cursor          int
	defaultResponse string
}

// ScriptedResponse is one entry in a scripted call sequence.
type ScriptedResponse struct {
	Text string
	Err  error
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockAdapterWithResponses creates a mock adapter with per-prompt
// responses.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// NewScriptedMockAdapter creates a mock adapter that replays the given
// sequence across calls, regardless of prompt. After the script runs
// out, the last entry repeats.
func NewScriptedMockAdapter(script ...ScriptedResponse) *MockAdapter {
	return &MockAdapter{script: script, defaultResponse: "mock response:"}
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Generate returns a deterministic response for the prompt.
func (a *MockAdapter) Generate(_ context.Context, model string, prompt string, _ GenerateOptions) (*Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.script) > 0 {
		entry := a.script[min(a.cursor, len(a.script)-1)]
		a.cursor++
		if entry.Err != nil {
			return nil, entry.Err
		}
		return &Response{Text: entry.Text}, nil
	}

	if response, ok := a.responses[prompt]; ok {
		return &Response{Text: response}, nil
	}
	return &Response{Text: fmt.Sprintf("%s\n%s", a.defaultResponse, prompt)}, nil
}
