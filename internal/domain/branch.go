package domain

import "time"

// DeltaKind identifies what kind of state mutation a StateDelta applies.
type DeltaKind string

const (
	DeltaRelationship       DeltaKind = "relationship"
	DeltaFact               DeltaKind = "fact"
	DeltaItem               DeltaKind = "item"
	DeltaLocation           DeltaKind = "location"
	DeltaSatisfyNeed        DeltaKind = "satisfy_need"
	DeltaDamage             DeltaKind = "damage"
	DeltaHeal               DeltaKind = "heal"
	DeltaEquip              DeltaKind = "equip"
	DeltaRelationshipMeeting DeltaKind = "relationship_meeting"
)

// DeltaOperation identifies how a StateDelta's value is applied.
type DeltaOperation string

const (
	OpAdd    DeltaOperation = "add"
	OpUpdate DeltaOperation = "update"
	OpRemove DeltaOperation = "remove"
)

// StateDelta is one atomic world mutation produced by an OutcomeVariant.
type StateDelta struct {
	Kind      DeltaKind
	EntityKey string
	Operation DeltaOperation
	Value     map[string]any
}

// VariantName enumerates the four outcome variants a branch may carry.
type VariantName string

const (
	VariantSuccess          VariantName = "success"
	VariantFailure          VariantName = "failure"
	VariantCriticalSuccess  VariantName = "critical_success"
	VariantCriticalFailure  VariantName = "critical_failure"
)

// OutcomeVariant is one possible resolution of an anticipated action.
type OutcomeVariant struct {
	Narrative         string
	StateDeltas       []StateDelta
	RequiresDice      bool
	DC                int
	Skill             string
	TimePassedMinutes int
}

// GMDecision is a twist (or absence of one) the GM oracle proposes for
// an anticipated action.
type GMDecision struct {
	Name           string
	Weight         float64
	GroundingFacts []string
}

// QuantumBranch is a pre-generated bundle of outcome variants keyed to
// an anticipated action and GM decision.
type QuantumBranch struct {
	BranchKey    string
	Action       ActionPrediction
	Decision     GMDecision
	Variants     map[VariantName]OutcomeVariant
	GeneratedAt  time.Time
	StateVersion int64
	GenerationMS int64
}

// HasVariant reports whether the branch carries the named variant.
func (b QuantumBranch) HasVariant(name VariantName) bool {
	_, ok := b.Variants[name]
	return ok
}

// ActionPrediction is one candidate next action the predictor proposes.
type ActionPrediction struct {
	ActionType   string
	TargetKey    string
	InputPatterns []string
	Probability  float64
	Reason       string
}

// BranchKey builds the canonical cache key for (location, action, target, decision).
func BranchKey(location, actionType, targetKey, decision string) string {
	return location + "::" + actionType + "::" + targetKey + "::" + decision
}
