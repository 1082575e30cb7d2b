// Package branchgen implements the Branch Generator spec.md §4.8
// describes: for one (action, decision) pair it issues a single
// schema-constrained LLM call producing every outcome variant, repairs
// and regenerates against validator feedback up to max_retries times,
// and falls back to a narrower tool-call loop (see ./tools) when
// structured generation keeps failing. Grounded on
// internal/llmgateway/structured (the schema-constrained call itself)
// and the teacher's internal/mcp/domain/campaign.go (the tool-call
// fallback shape); golang.org/x/sync/errgroup bounds the concurrent
// fan-out GenerateMany performs, per spec.md §5.
package branchgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantumturn/engine/internal/branchgen/tools"
	"github.com/quantumturn/engine/internal/domain"
	apperrors "github.com/quantumturn/engine/internal/errors"
	"github.com/quantumturn/engine/internal/llmgateway"
	"github.com/quantumturn/engine/internal/llmgateway/structured"
	"github.com/quantumturn/engine/internal/validate"
)

// Pair is one (action, decision) the generator produces a branch for.
type Pair struct {
	Action   domain.ActionPrediction
	Decision domain.GMDecision
}

// Generator produces QuantumBranches from LLM completions, per pair.
type Generator struct {
	Gateway       *llmgateway.Gateway
	Validator     validate.BranchValidator
	MaxRetries    int
	MaxTokens     int
	Fanout        int
	MaxToolRounds int
}

// New constructs a Generator. fanout bounds GenerateMany's concurrency;
// spec.md §5 defaults it to 3.
func New(gateway *llmgateway.Gateway, reader validate.Reader, maxRetries, maxTokens, fanout int) *Generator {
	if fanout <= 0 {
		fanout = 3
	}
	return &Generator{
		Gateway:       gateway,
		Validator:     validate.NewBranchValidator(reader),
		MaxRetries:    maxRetries,
		MaxTokens:     maxTokens,
		Fanout:        fanout,
		MaxToolRounds: 10,
	}
}

// generationContext is everything Generate hands the LLM, plus
// bookkeeping the caller needs back.
type generationContext struct {
	sessionID    string
	manifest     domain.NarratorManifest
	recentTurns  []domain.Turn
	stateVersion int64
}

// variantWire is the JSON shape one variant takes on the wire, matching
// spec.md §4.8's field list exactly.
type variantWire struct {
	Narrative         string               `json:"narrative"`
	StateDeltas       []deltaWire          `json:"state_deltas"`
	RequiresDice      bool                 `json:"requires_dice"`
	DC                int                  `json:"dc"`
	Skill             string               `json:"skill"`
	TimePassedMinutes int                  `json:"time_passed_minutes"`
}

type deltaWire struct {
	Kind      string         `json:"kind"`
	EntityKey string         `json:"entity_key"`
	Operation string         `json:"operation"`
	Value     map[string]any `json:"value"`
}

type branchWire struct {
	Variants map[string]variantWire `json:"variants"`
}

// Generate produces one QuantumBranch for action/decision, retrying up
// to g.MaxRetries times against validator feedback, then falling back
// to the tool-call loop if structured generation still fails to
// produce a structurally and grounding-valid branch.
func (g *Generator) Generate(ctx context.Context, sessionID string, manifest domain.NarratorManifest, action domain.ActionPrediction, decision domain.GMDecision, recentTurns []domain.Turn, stateVersion int64) (domain.QuantumBranch, error) {
	start := time.Now()
	gc := generationContext{sessionID: sessionID, manifest: manifest, recentTurns: recentTurns, stateVersion: stateVersion}

	var feedback []validate.Issue
	var branch domain.QuantumBranch
	var lastErr error

	attempts := g.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		wire, err := g.completeOnce(ctx, gc, action, decision, feedback)
		if err != nil {
			lastErr = err
			continue
		}

		branch = wireToBranch(wire, gc.manifest.Location.Key, action, decision, stateVersion)
		if err := validate.CheckStructure(branch); err != nil {
			lastErr = err
			feedback = []validate.Issue{{Severity: validate.SeverityError, Code: "structure", Message: err.Error()}}
			continue
		}

		issues := g.Validator.Validate(ctx, sessionID, manifest, branch)
		allIssues := validate.AllErrors(issues)
		if !validate.HasErrors(allIssues) {
			branch.GenerationMS = time.Since(start).Milliseconds()
			return branch, nil
		}
		lastErr = apperrors.New(apperrors.CodeValidationError, "generated branch failed grounding validation")
		feedback = allIssues
	}

	fallback, err := g.generateViaTools(ctx, sessionID, gc, action, decision)
	if err != nil {
		if lastErr != nil {
			return domain.QuantumBranch{}, apperrors.Wrap(apperrors.CodeValidationError, "branch generation exhausted retries and tool fallback", lastErr)
		}
		return domain.QuantumBranch{}, err
	}
	fallback.GenerationMS = time.Since(start).Milliseconds()
	return fallback, nil
}

// GenerateMany runs Generate over every pair, bounded to g.Fanout
// concurrent calls, per spec.md §5's "bounded fan-out default 3".
// A failed pair is omitted from the result rather than aborting the
// whole batch, since the anticipation loop treats a missed branch as
// simply not cached yet, not an error.
func (g *Generator) GenerateMany(ctx context.Context, sessionID string, manifest domain.NarratorManifest, pairs []Pair, recentTurns []domain.Turn, stateVersion int64) []domain.QuantumBranch {
	results := make([]domain.QuantumBranch, len(pairs))
	ok := make([]bool, len(pairs))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(g.Fanout)

	for i, pair := range pairs {
		i, pair := i, pair
		group.Go(func() error {
			branch, err := g.Generate(gctx, sessionID, manifest, pair.Action, pair.Decision, recentTurns, stateVersion)
			if err != nil {
				return nil // the failed pair is dropped from the results; not fatal to the batch
			}
			results[i] = branch
			ok[i] = true
			return nil
		})
	}
	_ = group.Wait()

	out := make([]domain.QuantumBranch, 0, len(pairs))
	for i, got := range ok {
		if got {
			out = append(out, results[i])
		}
	}
	return out
}

func (g *Generator) completeOnce(ctx context.Context, gc generationContext, action domain.ActionPrediction, decision domain.GMDecision, feedback []validate.Issue) (branchWire, error) {
	req := structured.Request{
		Messages:     []llmgateway.Message{{Role: "user", Content: buildPrompt(gc, action, decision, feedback)}},
		SystemPrompt: systemPrompt,
		Schema:       branchSchema,
		MaxTokens:    g.MaxTokens,
		Temperature:  0.8,
	}
	var wire branchWire
	if err := structured.Complete(ctx, g.Gateway.Narrator, req, &wire); err != nil {
		return branchWire{}, err
	}
	return wire, nil
}

const systemPrompt = `You are the narration engine for a text adventure. Produce only the requested JSON. Every entity you reference in narrative must use the form [entity_key:display text] where entity_key is one of the manifest keys provided. Never ask the player what they want to do next.`

var branchSchema = map[string]any{
	"type":     "object",
	"required": []any{"variants"},
}

func buildPrompt(gc generationContext, action domain.ActionPrediction, decision domain.GMDecision, feedback []validate.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Location: %s (%s)\n", gc.manifest.Location.DisplayName, gc.manifest.Location.Key)
	fmt.Fprintf(&b, "Action: %s target=%s reason=%s\n", action.ActionType, action.TargetKey, action.Reason)
	fmt.Fprintf(&b, "GM decision: %s (grounding facts: %s)\n", decision.Name, strings.Join(decision.GroundingFacts, ", "))
	b.WriteString("Grounded entity keys: ")
	b.WriteString(strings.Join(gc.manifest.Keys(), ", "))
	b.WriteString("\n")
	if len(gc.recentTurns) > 0 {
		b.WriteString("Recent turns:\n")
		for _, t := range gc.recentTurns {
			fmt.Fprintf(&b, "- %s\n", t.GMResponse)
		}
	}
	b.WriteString("Return JSON: {\"variants\": {\"success\": {...}, \"failure\": {...}?, \"critical_success\": {...}?, \"critical_failure\": {...}?}}\n")
	b.WriteString("Each variant: narrative, state_deltas[] (kind, entity_key, operation, value), requires_dice, dc, skill, time_passed_minutes.\n")
	if len(feedback) > 0 {
		b.WriteString("Fix these issues from the previous attempt:\n")
		for _, issue := range feedback {
			fmt.Fprintf(&b, "- [%s] %s\n", issue.Code, issue.Message)
		}
	}
	return b.String()
}

func wireToBranch(wire branchWire, locationKey string, action domain.ActionPrediction, decision domain.GMDecision, stateVersion int64) domain.QuantumBranch {
	variants := make(map[domain.VariantName]domain.OutcomeVariant, len(wire.Variants))
	for name, v := range wire.Variants {
		deltas := make([]domain.StateDelta, 0, len(v.StateDeltas))
		for _, d := range v.StateDeltas {
			deltas = append(deltas, domain.StateDelta{
				Kind:      domain.DeltaKind(d.Kind),
				EntityKey: d.EntityKey,
				Operation: domain.DeltaOperation(d.Operation),
				Value:     d.Value,
			})
		}
		variants[domain.VariantName(name)] = domain.OutcomeVariant{
			Narrative:         v.Narrative,
			StateDeltas:       deltas,
			RequiresDice:      v.RequiresDice,
			DC:                v.DC,
			Skill:             v.Skill,
			TimePassedMinutes: v.TimePassedMinutes,
		}
	}
	return domain.QuantumBranch{
		BranchKey:    domain.BranchKey(locationKey, action.ActionType, action.TargetKey, decision.Name),
		Action:       action,
		Decision:     decision,
		Variants:     variants,
		GeneratedAt:  time.Now(),
		StateVersion: stateVersion,
	}
}

// generateViaTools is the fallback path spec.md §9 calls "dynamic
// narrator tools": ask the reasoning provider to narrate the success
// case and emit state changes as tool calls rather than a single JSON
// document. Per spec.md §4.5 "Tool loops terminate after N rounds
// (default 10) or on empty tool calls", each round's tool calls are
// dispatched to StateDeltas and their results fed back into the
// conversation so the model can keep narrating until it stops calling
// tools or MaxToolRounds is reached. It only ever produces a success
// variant with no dice requirement, matching the safest possible
// fallback.
func (g *Generator) generateViaTools(ctx context.Context, sessionID string, gc generationContext, action domain.ActionPrediction, decision domain.GMDecision) (domain.QuantumBranch, error) {
	defs := tools.Definitions()
	toolDefs := make([]llmgateway.ToolDefinition, 0, len(defs))
	for _, t := range defs {
		toolDefs = append(toolDefs, llmgateway.ToolDefinition{Name: t.Name, Description: t.Description})
	}

	maxRounds := g.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 10
	}

	messages := []llmgateway.Message{{Role: "user", Content: buildPrompt(gc, action, decision, nil)}}
	var deltas []domain.StateDelta
	var narrative string

	for round := 0; round < maxRounds; round++ {
		resp, err := g.Gateway.CompleteWithTools(ctx, llmgateway.CompletionRequest{
			Messages:     messages,
			Tools:        toolDefs,
			SystemPrompt: systemPrompt,
			MaxTokens:    g.MaxTokens,
			Temperature:  0.6,
		})
		if err != nil {
			return domain.QuantumBranch{}, err
		}

		narrative = resp.Content
		if len(resp.ToolCalls) == 0 {
			break
		}

		messages = append(messages, llmgateway.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			delta, dispatchErr := tools.Dispatch(call.Name, call.Arguments)
			result := "recorded"
			if dispatchErr != nil {
				result = "error: " + dispatchErr.Error()
			} else {
				deltas = append(deltas, delta)
			}
			messages = append(messages, llmgateway.Message{Role: "tool", Content: result, ToolCallID: call.ID})
		}
	}

	branch := domain.QuantumBranch{
		BranchKey:    domain.BranchKey(gc.manifest.Location.Key, action.ActionType, action.TargetKey, decision.Name),
		Action:       action,
		Decision:     decision,
		StateVersion: gc.stateVersion,
		GeneratedAt:  time.Now(),
		Variants: map[domain.VariantName]domain.OutcomeVariant{
			domain.VariantSuccess: {
				Narrative:   narrative,
				StateDeltas: deltas,
			},
		},
	}
	if err := validate.CheckStructure(branch); err != nil {
		return domain.QuantumBranch{}, err
	}
	return branch, nil
}
