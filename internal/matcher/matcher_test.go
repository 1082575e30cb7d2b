package matcher_test

import (
	"testing"

	"github.com/quantumturn/engine/internal/domain"
	"github.com/quantumturn/engine/internal/matcher"
)

func manifestWithNPC(key, name string) domain.NarratorManifest {
	return domain.NarratorManifest{
		NPCs: []domain.ManifestEntry{{Key: key, DisplayName: name}},
	}
}

func TestMatch_RegexHitWinsAboveThreshold(t *testing.T) {
	predictions := []domain.ActionPrediction{
		{ActionType: "greet", TargetKey: "marcus", InputPatterns: []string{`(?i)^(hi|hello|greet)\b.*marcus`}},
		{ActionType: "observe", TargetKey: "", InputPatterns: []string{`(?i)^look`}},
	}
	m, ok := matcher.Match("hello marcus", predictions, manifestWithNPC("marcus", "Marcus"), 0.7)
	if !ok {
		t.Fatalf("expected a match")
	}
	if m.Prediction.ActionType != "greet" {
		t.Errorf("expected greet to win, got %q", m.Prediction.ActionType)
	}
	if m.Confidence < 0.7 {
		t.Errorf("expected confidence >= 0.7, got %v", m.Confidence)
	}
}

func TestMatch_BelowThreshold_Misses(t *testing.T) {
	predictions := []domain.ActionPrediction{
		{ActionType: "pickpocket", TargetKey: "marcus", InputPatterns: []string{`(?i)^steal from marcus$`}},
	}
	_, ok := matcher.Match("what a lovely day", predictions, manifestWithNPC("marcus", "Marcus"), 0.7)
	if ok {
		t.Errorf("expected a miss for unrelated input")
	}
}

func TestMatch_NoPredictions_Misses(t *testing.T) {
	_, ok := matcher.Match("anything", nil, domain.NarratorManifest{}, 0.1)
	if ok {
		t.Errorf("expected a miss with no predictions")
	}
}

func TestMatch_JaccardOnlySignalCanStillWin(t *testing.T) {
	predictions := []domain.ActionPrediction{
		{ActionType: "greet", TargetKey: "marcus", InputPatterns: []string{`zzz_never_matches_zzz`}},
	}
	m, ok := matcher.Match("greet marcus", predictions, manifestWithNPC("marcus", "Marcus"), 0.3)
	if !ok {
		t.Fatalf("expected a token-overlap match")
	}
	if m.Confidence <= 0 {
		t.Errorf("expected nonzero jaccard-derived confidence, got %v", m.Confidence)
	}
}
