package llmgateway

import (
	"strings"

	apperrors "github.com/quantumturn/engine/internal/errors"
)

// classify maps a raw backend error into the engine's structured error
// taxonomy. any-llm-go and the OpenAI SDK both surface provider errors
// as plain Go errors whose message carries the HTTP status text, so
// this inspects the message rather than a typed error (neither SDK's
// error type is exported in a provider-agnostic way).
func classify(err error) *apperrors.Error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return apperrors.Wrap(apperrors.CodeLLMRateLimit, "provider rate limited the request", err)
	case strings.Contains(msg, "context_length") || strings.Contains(msg, "maximum context") || strings.Contains(msg, "too many tokens"):
		return apperrors.Wrap(apperrors.CodeContextTooLong, "prompt exceeded the provider's context window", err)
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return apperrors.Wrap(apperrors.CodeLLMTimeout, "completion request timed out", err)
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "401") || strings.Contains(msg, "invalid api key"):
		return apperrors.Wrap(apperrors.CodeLLMUnavailable, "provider rejected credentials", err)
	default:
		return apperrors.Wrap(apperrors.CodeLLMUnavailable, "provider request failed", err)
	}
}

// apperrorsParseFailure constructs a CodeParseFailure error for a
// malformed or empty provider response (not itself a Go error).
func apperrorsParseFailure(message string) *apperrors.Error {
	return apperrors.New(apperrors.CodeParseFailure, message)
}
