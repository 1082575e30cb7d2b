// Package tools defines the fallback tool-call surface the branch
// generator falls back to when schema-constrained structured generation
// exhausts its retries (spec.md §9 "dynamic narrator tools"). Each tool
// maps one StateDelta kind onto a named, typed call the reasoning model
// can invoke directly instead of emitting one large JSON document.
// Grounded on the teacher's internal/mcp/domain/campaign.go, which
// defines one *mcp.Tool plus a typed input/output pair per operation;
// this package keeps that shape but dispatches in-process rather than
// over an MCP transport, since the engine has no multi-process boundary
// to cross for a narrator tool call.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quantumturn/engine/internal/domain"
)

// RelationshipChangeInput is the tool-call shape for a relationship delta.
type RelationshipChangeInput struct {
	EntityKey    string `json:"entity_key" jsonschema:"the NPC whose attitude toward the player changes"`
	Trust        int    `json:"trust_delta,omitempty" jsonschema:"signed change to trust, -100..100"`
	Affection    int    `json:"affection_delta,omitempty" jsonschema:"signed change to affection, -100..100"`
	Respect      int    `json:"respect_delta,omitempty" jsonschema:"signed change to respect, -100..100"`
	Familiarity  int    `json:"familiarity_delta,omitempty" jsonschema:"signed change to familiarity, -100..100"`
}

// FactInput is the tool-call shape for recording a new world fact.
type FactInput struct {
	SubjectKey string `json:"subject_key" jsonschema:"entity or location the fact is about"`
	Predicate  string `json:"predicate" jsonschema:"short predicate name, e.g. recent_theft"`
	Value      string `json:"value,omitempty" jsonschema:"optional associated value"`
}

// ItemTransferInput is the tool-call shape for moving an item.
type ItemTransferInput struct {
	ItemKey        string `json:"item_key" jsonschema:"the item being moved"`
	ExpectedHolder string `json:"expected_holder,omitempty" jsonschema:"holder the caller believes currently holds the item"`
	NewHolder      string `json:"new_holder,omitempty" jsonschema:"entity key the item transfers to, if any"`
	NewLocation    string `json:"new_location,omitempty" jsonschema:"location key the item transfers to, if not held"`
}

// NeedSatisfactionInput is the tool-call shape for satisfying a need.
type NeedSatisfactionInput struct {
	EntityKey string `json:"entity_key" jsonschema:"the entity whose need is satisfied"`
	Need      string `json:"need" jsonschema:"need kind, e.g. hunger, rest, social"`
	Amount    int    `json:"amount" jsonschema:"points restored, 0..100"`
}

// DamageInput is the tool-call shape for applying damage or healing.
type DamageInput struct {
	EntityKey string `json:"entity_key" jsonschema:"the entity affected"`
	Amount    int    `json:"amount" jsonschema:"positive magnitude of the change"`
	Heal      bool   `json:"heal,omitempty" jsonschema:"true for healing instead of damage"`
}

// ToolResult is the uniform output every tool in this package returns:
// the StateDelta it resolved to, ready for the collapse manager to apply.
type ToolResult struct {
	Delta domain.StateDelta `json:"delta"`
}

// RelationshipChangeTool describes the relationship-delta tool.
func RelationshipChangeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "record_relationship_change",
		Description: "Adjusts one or more relationship dimensions between the player and an NPC",
	}
}

// FactTool describes the fact-recording tool.
func FactTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "record_fact",
		Description: "Records a new world fact grounding future narration",
	}
}

// ItemTransferTool describes the item-transfer tool.
func ItemTransferTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "transfer_item",
		Description: "Moves an item to a new holder or location",
	}
}

// NeedSatisfactionTool describes the need-satisfaction tool.
func NeedSatisfactionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "satisfy_need",
		Description: "Restores points to one of an entity's needs",
	}
}

// DamageTool describes the damage/heal tool.
func DamageTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "apply_damage",
		Description: "Applies damage, or healing when heal is true, to an entity",
	}
}

// Definitions is every tool the branch generator's fallback loop offers
// the reasoning model, in the order they should be listed.
func Definitions() []*mcp.Tool {
	return []*mcp.Tool{
		RelationshipChangeTool(),
		FactTool(),
		ItemTransferTool(),
		NeedSatisfactionTool(),
		DamageTool(),
	}
}

// Dispatch decodes a tool call's JSON arguments and resolves it to the
// StateDelta it describes. It never touches live state; the caller
// (branchgen's fallback loop) hands the returned delta to the same
// validation path a structured-output branch goes through.
func Dispatch(toolName, arguments string) (domain.StateDelta, error) {
	switch toolName {
	case "record_relationship_change":
		var in RelationshipChangeInput
		if err := json.Unmarshal([]byte(arguments), &in); err != nil {
			return domain.StateDelta{}, fmt.Errorf("decode %s arguments: %w", toolName, err)
		}
		return domain.StateDelta{
			Kind:      domain.DeltaRelationship,
			EntityKey: in.EntityKey,
			Operation: domain.OpUpdate,
			Value: map[string]any{
				"trust_delta":       in.Trust,
				"affection_delta":   in.Affection,
				"respect_delta":     in.Respect,
				"familiarity_delta": in.Familiarity,
			},
		}, nil

	case "record_fact":
		var in FactInput
		if err := json.Unmarshal([]byte(arguments), &in); err != nil {
			return domain.StateDelta{}, fmt.Errorf("decode %s arguments: %w", toolName, err)
		}
		return domain.StateDelta{
			Kind:      domain.DeltaFact,
			EntityKey: in.SubjectKey,
			Operation: domain.OpAdd,
			Value: map[string]any{
				"predicate": in.Predicate,
				"value":     in.Value,
			},
		}, nil

	case "transfer_item":
		var in ItemTransferInput
		if err := json.Unmarshal([]byte(arguments), &in); err != nil {
			return domain.StateDelta{}, fmt.Errorf("decode %s arguments: %w", toolName, err)
		}
		return domain.StateDelta{
			Kind:      domain.DeltaItem,
			EntityKey: in.ItemKey,
			Operation: domain.OpUpdate,
			Value: map[string]any{
				"expected_holder": in.ExpectedHolder,
				"new_holder":      in.NewHolder,
				"new_location":    in.NewLocation,
			},
		}, nil

	case "satisfy_need":
		var in NeedSatisfactionInput
		if err := json.Unmarshal([]byte(arguments), &in); err != nil {
			return domain.StateDelta{}, fmt.Errorf("decode %s arguments: %w", toolName, err)
		}
		return domain.StateDelta{
			Kind:      domain.DeltaSatisfyNeed,
			EntityKey: in.EntityKey,
			Operation: domain.OpUpdate,
			Value: map[string]any{
				"need":   in.Need,
				"amount": in.Amount,
			},
		}, nil

	case "apply_damage":
		var in DamageInput
		if err := json.Unmarshal([]byte(arguments), &in); err != nil {
			return domain.StateDelta{}, fmt.Errorf("decode %s arguments: %w", toolName, err)
		}
		kind := domain.DeltaDamage
		if in.Heal {
			kind = domain.DeltaHeal
		}
		return domain.StateDelta{
			Kind:      kind,
			EntityKey: in.EntityKey,
			Operation: domain.OpUpdate,
			Value:     map[string]any{"amount": in.Amount},
		}, nil

	default:
		return domain.StateDelta{}, fmt.Errorf("unknown tool %q", toolName)
	}
}
