package llmgateway

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
)

// AnyLLMProvider implements Provider by wrapping
// github.com/mozilla-ai/any-llm-go, which offers a single client
// shape across OpenAI, Anthropic, Gemini, and local Ollama backends.
// Adapted from MrWong99-glyphoxa's pkg/provider/llm/anyllm package.
type AnyLLMProvider struct {
	backend anyllmlib.Provider
	model   string
	caps    Capabilities
}

// NewAnyLLMProvider constructs a Provider for the named backend
// ("openai", "anthropic", "gemini", or "ollama").
func NewAnyLLMProvider(backendName, model string, opts ...anyllmlib.Option) (*AnyLLMProvider, error) {
	if backendName == "" || model == "" {
		return nil, fmt.Errorf("llmgateway: backend and model must not be empty")
	}
	backend, err := createBackend(backendName, opts...)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: create %q backend: %w", backendName, err)
	}
	return &AnyLLMProvider{backend: backend, model: model, caps: modelCapabilities(model)}, nil
}

func createBackend(name string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(name) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported backend %q; supported: openai, anthropic, gemini, ollama", name)
	}
}

// Complete implements Provider.
func (p *AnyLLMProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	params := p.buildParams(req)

	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrorsParseFailure("empty choices in completion response")
	}

	choice := resp.Choices[0]
	out := &CompletionResponse{Content: choice.Message.ContentString()}
	if resp.Usage != nil {
		out.Usage = Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out, nil
}

// CountTokens implements Provider with a character-based approximation;
// any-llm-go does not expose a provider-agnostic tokenizer.
func (p *AnyLLMProvider) CountTokens(messages []Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
		total += 4
	}
	return total, nil
}

// Capabilities implements Provider.
func (p *AnyLLMProvider) Capabilities() Capabilities {
	return p.caps
}

func (p *AnyLLMProvider) buildParams(req CompletionRequest) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m))
	}

	params := anyllmlib.CompletionParams{Model: p.model, Messages: messages}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	for _, td := range req.Tools {
		params.Tools = append(params.Tools, anyllmlib.Tool{
			Type:     "function",
			Function: anyllmlib.Function{Name: td.Name, Description: td.Description, Parameters: td.Parameters},
		})
	}
	return params
}

func convertMessage(m Message) anyllmlib.Message {
	msg := anyllmlib.Message{Role: m.Role, Content: m.Content, Name: m.Name, ToolCallID: m.ToolCallID}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, anyllmlib.ToolCall{
			ID: tc.ID, Type: "function",
			Function: anyllmlib.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
		})
	}
	return msg
}

// modelCapabilities gives sensible defaults per model family; unknown
// models receive a conservative default rather than failing closed.
func modelCapabilities(model string) Capabilities {
	caps := Capabilities{SupportsToolCalling: true, SupportsStreaming: true, ContextWindow: 128_000, MaxOutputTokens: 4_096}
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "gpt-4o"):
		caps.ContextWindow, caps.MaxOutputTokens = 128_000, 16_384
	case strings.Contains(lower, "claude-3-5"), strings.HasPrefix(lower, "claude"):
		caps.ContextWindow, caps.MaxOutputTokens = 200_000, 8_192
	case strings.HasPrefix(lower, "gemini"):
		caps.ContextWindow, caps.MaxOutputTokens = 1_048_576, 8_192
	case strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"):
		caps.ContextWindow, caps.MaxOutputTokens = 200_000, 100_000
	}
	return caps
}
