// Package llmgateway wraps whichever LLM backend the engine is
// configured against behind one provider-agnostic interface, the way
// MrWong99-glyphoxa's pkg/provider/llm package abstracts OpenAI,
// Anthropic, Gemini, and local backends behind a single Provider. The
// turn pipeline never imports a provider SDK directly; it only ever
// talks to a Gateway.
package llmgateway

// Message is one turn of an LLM conversation.
type Message struct {
	Role       string // "system", "user", "assistant", or "tool"
	Content    string
	Name       string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a tool/function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// Usage carries token accounting for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Capabilities describes what a configured model supports.
type Capabilities struct {
	ContextWindow       int
	MaxOutputTokens     int
	SupportsToolCalling bool
	SupportsStreaming   bool
}

// CompletionRequest carries everything needed to produce a response.
type CompletionRequest struct {
	Messages     []Message
	Tools        []ToolDefinition
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// CompletionResponse is the result of a non-streaming completion.
type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}
