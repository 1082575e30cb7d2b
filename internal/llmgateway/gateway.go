package llmgateway

import (
	"context"

	apperrors "github.com/quantumturn/engine/internal/errors"
)

// Gateway fronts two Providers: one tuned for prose generation
// (Narrator) and one tuned for structured decision-making (Reasoner),
// mirroring spec.md's distinction between narration and GM-oracle
// calls. A single Provider may back both roles.
type Gateway struct {
	Narrator   Provider
	Reasoner   Provider
	MaxRetries int
}

// New constructs a Gateway. maxRetries bounds how many times Complete
// retries a CodeLLMRateLimit or CodeLLMTimeout failure before giving up.
func New(narrator, reasoner Provider, maxRetries int) *Gateway {
	return &Gateway{Narrator: narrator, Reasoner: reasoner, MaxRetries: maxRetries}
}

// Complete runs req against the narrator provider, retrying transient
// failures (rate limit, timeout) up to MaxRetries times.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return g.completeWithRetry(ctx, g.Narrator, req)
}

// CompleteWithTools runs req (which must set Tools) against the
// reasoning provider, since tool-driven decisions are the oracle and
// branch-generation path's concern, not narration's.
func (g *Gateway) CompleteWithTools(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if len(req.Tools) == 0 {
		return nil, apperrors.New(apperrors.CodeValidationError, "complete_with_tools requires at least one tool definition")
	}
	return g.completeWithRetry(ctx, g.Reasoner, req)
}

// completeWithRetry retries transient failures up to MaxRetries times,
// then, per spec.md §7's "ContextTooLong | Gateway | Shrink
// manifest/context and retry once" policy, shrinks the request and
// retries exactly once more if the failure was a context-window
// overflow.
func (g *Gateway) completeWithRetry(ctx context.Context, provider Provider, req CompletionRequest) (*CompletionResponse, error) {
	resp, err := g.attempt(ctx, provider, req)
	if err != nil && apperrors.IsCode(err, apperrors.CodeContextTooLong) {
		return g.attempt(ctx, provider, shrinkContext(req))
	}
	return resp, err
}

func (g *Gateway) attempt(ctx context.Context, provider Provider, req CompletionRequest) (*CompletionResponse, error) {
	var lastErr error
	attempts := g.MaxRetries + 1
	for i := 0; i < attempts; i++ {
		resp, err := provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func isRetryable(err error) bool {
	return apperrors.IsCode(err, apperrors.CodeLLMRateLimit) || apperrors.IsCode(err, apperrors.CodeLLMTimeout)
}

// shrinkContext drops the oldest half of the conversation to pull a
// request back under the provider's context window, falling back to
// truncating a single remaining oversized message.
func shrinkContext(req CompletionRequest) CompletionRequest {
	shrunk := req
	if len(shrunk.Messages) > 1 {
		keep := len(shrunk.Messages) / 2
		if keep == 0 {
			keep = 1
		}
		shrunk.Messages = append([]Message(nil), shrunk.Messages[len(shrunk.Messages)-keep:]...)
		return shrunk
	}
	if len(shrunk.Messages) == 1 && len(shrunk.Messages[0].Content) > 200 {
		msg := shrunk.Messages[0]
		msg.Content = msg.Content[len(msg.Content)/2:]
		shrunk.Messages = []Message{msg}
	}
	return shrunk
}
