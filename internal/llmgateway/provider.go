package llmgateway

import "context"

// Provider is the abstraction over any LLM backend. Implementations
// must be safe for concurrent use and propagate context cancellation
// promptly, mirroring the contract MrWong99-glyphoxa's llm.Provider
// documents.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	CountTokens(messages []Message) (int, error)
	Capabilities() Capabilities
}
