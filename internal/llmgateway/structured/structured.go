// Package structured implements the engine's complete_structured
// operation: ask a Provider for JSON matching a schema, repair
// malformed output, and decode it into the caller's target type.
// Grounded on cklxx-elephant.ai's internal/agent/tool_executor.go,
// which falls back to kaptinlin/jsonrepair when a tool-call argument
// string fails to parse as JSON outright.
package structured

import (
	"context"
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	apperrors "github.com/quantumturn/engine/internal/errors"
	"github.com/quantumturn/engine/internal/llmgateway"
)

// Request describes a schema-constrained completion.
type Request struct {
	Messages     []llmgateway.Message
	SystemPrompt string
	Schema       map[string]any // JSON Schema, used only to seed required-field defaults
	MaxTokens    int
	Temperature  float64
}

// Complete asks provider for a JSON completion matching req, repairing
// and defaulting it if necessary, and decodes the result into out
// (a pointer). It returns apperrors.CodeParseFailure if the response
// cannot be coerced into valid JSON even after repair.
func Complete(ctx context.Context, provider llmgateway.Provider, req Request, out any) error {
	resp, err := provider.Complete(ctx, llmgateway.CompletionRequest{
		Messages:     req.Messages,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	})
	if err != nil {
		return err
	}

	raw := resp.Content
	if err := json.Unmarshal([]byte(raw), out); err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return apperrors.Wrap(apperrors.CodeParseFailure, "structured completion was not valid JSON and could not be repaired", repairErr).
			WithMetadata("raw_excerpt", excerpt(raw))
	}

	repaired = applySchemaDefaults(repaired, req.Schema)

	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return apperrors.Wrap(apperrors.CodeParseFailure, "repaired structured completion still failed to decode", err).
			WithMetadata("raw_excerpt", excerpt(repaired))
	}
	return nil
}

// applySchemaDefaults fills in any top-level required string property
// the schema names but the completion omitted, using sjson so a
// partially-wrong completion still satisfies the caller's struct
// rather than failing decode outright.
func applySchemaDefaults(raw string, schema map[string]any) string {
	if schema == nil {
		return raw
	}
	required, _ := schema["required"].([]any)
	for _, r := range required {
		key, ok := r.(string)
		if !ok {
			continue
		}
		if gjson.Get(raw, key).Exists() {
			continue
		}
		patched, err := sjson.Set(raw, key, "")
		if err != nil {
			continue
		}
		raw = patched
	}
	return raw
}

func excerpt(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
