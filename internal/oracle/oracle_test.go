package oracle_test

import (
	"testing"

	"github.com/quantumturn/engine/internal/domain"
	"github.com/quantumturn/engine/internal/oracle"
)

func TestDecide_AlwaysIncludesNoTwist(t *testing.T) {
	decisions := oracle.Decide(oracle.Input{
		Action:     domain.ActionPrediction{ActionType: "take_item", TargetKey: "purse"},
		LocationKey: "market",
	})
	found := false
	for _, d := range decisions {
		if d.Name == "no_twist" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected no_twist to always be a candidate decision, got %v", decisions)
	}
}

func TestDecide_TheftAccusationRequiresGroundingFact(t *testing.T) {
	ungrounded := oracle.Decide(oracle.Input{
		Action:      domain.ActionPrediction{ActionType: "take_item", TargetKey: "purse"},
		LocationKey: "market",
	})
	if hasDecision(ungrounded, "theft_accusation") {
		t.Errorf("expected theft_accusation absent without a recent_theft fact")
	}

	grounded := oracle.Decide(oracle.Input{
		Action:      domain.ActionPrediction{ActionType: "take_item", TargetKey: "purse"},
		LocationKey: "market",
		Facts: []domain.Fact{
			{SubjectType: "location", SubjectKey: "market", Predicate: "recent_theft", Value: "purse"},
		},
	})
	if !hasDecision(grounded, "theft_accusation") {
		t.Errorf("expected theft_accusation present once grounded by a recent_theft fact")
	}
}

func TestDecide_SecretRevealRequiresNPCSecretFact(t *testing.T) {
	decisions := oracle.Decide(oracle.Input{
		Action:      domain.ActionPrediction{ActionType: "interact_npc", TargetKey: "marcus"},
		LocationKey: "tavern",
		Facts: []domain.Fact{
			{SubjectType: "entity", SubjectKey: "marcus", Predicate: "npc_has_secret", Value: "marcus"},
		},
	})
	if !hasDecision(decisions, "secret_reveal") {
		t.Errorf("expected secret_reveal present when the target npc carries a secret fact")
	}
}

func hasDecision(decisions []domain.GMDecision, name string) bool {
	for _, d := range decisions {
		if d.Name == name {
			return true
		}
	}
	return false
}
