package predictor_test

import (
	"testing"

	"github.com/quantumturn/engine/internal/domain"
	"github.com/quantumturn/engine/internal/predictor"
)

func TestPredict_OrdersByProbabilityDescending(t *testing.T) {
	in := predictor.Input{
		Manifest: domain.NarratorManifest{
			NPCs: []domain.ManifestEntry{{Key: "marcus", DisplayName: "Marcus"}},
		},
		LocationFacts: []domain.Fact{
			{Predicate: "scene_focus", Value: "marcus"},
			{Predicate: "quest_target", Value: "marcus"},
		},
		TurnsAtLocation: 5,
	}
	preds := predictor.Predict(in)
	if len(preds) < 2 {
		t.Fatalf("expected at least npc + observe predictions, got %d", len(preds))
	}
	for i := 1; i < len(preds); i++ {
		if preds[i-1].Probability < preds[i].Probability {
			t.Errorf("predictions not sorted descending: %v", preds)
		}
	}
	if preds[0].ActionType != "interact_npc" {
		t.Errorf("expected grounded npc interaction to rank first, got %q", preds[0].ActionType)
	}
}

func TestPredict_CapsProbabilityAndTruncatesToMaxActions(t *testing.T) {
	in := predictor.Input{
		Manifest: domain.NarratorManifest{
			NPCs: []domain.ManifestEntry{{Key: "a", DisplayName: "A"}, {Key: "b", DisplayName: "B"}},
		},
		LocationFacts: []domain.Fact{
			{Predicate: "scene_focus", Value: "a"},
			{Predicate: "quest_target", Value: "a"},
			{Predicate: "scene_focus", Value: "b"},
			{Predicate: "quest_target", Value: "b"},
		},
		MaxActions: 1,
	}
	preds := predictor.Predict(in)
	if len(preds) != 1 {
		t.Fatalf("expected MaxActions to truncate to 1, got %d", len(preds))
	}
	if preds[0].Probability > 0.95 {
		t.Errorf("expected probability capped at 0.95, got %v", preds[0].Probability)
	}
}

func TestPredict_ExploreOnlyWhenNewlyArrived(t *testing.T) {
	fresh := predictor.Predict(predictor.Input{TurnsAtLocation: 0})
	stale := predictor.Predict(predictor.Input{TurnsAtLocation: 5})

	if !hasActionType(fresh, "explore") {
		t.Errorf("expected explore prediction when newly arrived")
	}
	if hasActionType(stale, "explore") {
		t.Errorf("expected no explore prediction after lingering")
	}
}

func TestPredict_MundaneItemScoresLowerThanQuestItem(t *testing.T) {
	in := predictor.Input{
		Manifest: domain.NarratorManifest{
			ItemsAtLocation: []domain.ManifestEntry{
				{Key: "rock", DisplayName: "Rock"},
				{Key: "amulet", DisplayName: "Amulet"},
			},
		},
		LocationFacts: []domain.Fact{
			{Predicate: "mundane", Value: "rock"},
			{Predicate: "quest_item", Value: "amulet"},
		},
	}
	preds := predictor.Predict(in)
	rockScore, amuletScore := -1.0, -1.0
	for _, p := range preds {
		if p.TargetKey == "rock" {
			rockScore = p.Probability
		}
		if p.TargetKey == "amulet" {
			amuletScore = p.Probability
		}
	}
	if rockScore < 0 || amuletScore < 0 {
		t.Fatalf("expected both item predictions present")
	}
	if rockScore >= amuletScore {
		t.Errorf("expected mundane item to score lower than quest item: rock=%v amulet=%v", rockScore, amuletScore)
	}
}

func hasActionType(preds []domain.ActionPrediction, actionType string) bool {
	for _, p := range preds {
		if p.ActionType == actionType {
			return true
		}
	}
	return false
}
