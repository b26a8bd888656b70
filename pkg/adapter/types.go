package adapter

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response wraps a provider's output. Text is the only field the
// pipeline relies on; the rest is diagnostic metadata.
type Response struct {
	Text         string
	FinishReason string
	Usage        *Usage
}
