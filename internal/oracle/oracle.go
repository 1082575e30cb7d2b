// Package oracle implements the GM Decision Oracle spec.md §4.7
// describes: for each candidate action it proposes a no-twist baseline
// plus any twist decisions that are grounded in a specific known fact.
// Grounded on the Manager/Manifest/Fact types directly; stdlib only,
// per DESIGN.md (a fixed grounded-twist rule table needs no library).
package oracle

import "github.com/quantumturn/engine/internal/domain"

// noTwistWeight is the baseline weight every action carries for the
// "nothing unusual happens" decision, per spec.md §4.7.
const noTwistWeight = 0.7

// twistWeight is the weight assigned to each grounded twist proposed
// alongside no_twist.
const twistWeight = 0.3

// twistRule names a twist decision that may be proposed when a fact
// with groundingPredicate targeting the action (by NPC or location)
// exists.
type twistRule struct {
	decision          string
	groundingPredicate string
	targetsLocation    bool // true: fact subject is the location; false: the action's target entity
}

var twistRules = []twistRule{
	{decision: "theft_accusation", groundingPredicate: "recent_theft", targetsLocation: true},
	{decision: "secret_reveal", groundingPredicate: "npc_has_secret", targetsLocation: false},
}

// Input bundles the context one Decide call needs.
type Input struct {
	Action      domain.ActionPrediction
	LocationKey string
	// Facts should include every fact scoped to LocationKey and to
	// Action.TargetKey (the caller gathers both subjects).
	Facts []domain.Fact
}

// Decide returns every decision the oracle proposes for one action:
// always a no_twist baseline, plus any twist whose grounding fact is
// present. Without a grounding fact, a twist is never proposed.
func Decide(in Input) []domain.GMDecision {
	decisions := []domain.GMDecision{
		{Name: "no_twist", Weight: noTwistWeight},
	}

	for _, rule := range twistRules {
		subjectKey := in.Action.TargetKey
		if rule.targetsLocation {
			subjectKey = in.LocationKey
		}
		if factKey, ok := groundingFact(in.Facts, rule.groundingPredicate, subjectKey); ok {
			decisions = append(decisions, domain.GMDecision{
				Name:           rule.decision,
				Weight:         twistWeight,
				GroundingFacts: []string{factKey},
			})
		}
	}

	return decisions
}

func groundingFact(facts []domain.Fact, predicate, subjectKey string) (string, bool) {
	if subjectKey == "" {
		return "", false
	}
	for _, f := range facts {
		if f.Predicate == predicate && f.SubjectKey == subjectKey {
			return f.Key, true
		}
	}
	return "", false
}
