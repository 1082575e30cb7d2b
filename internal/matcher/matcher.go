// Package matcher implements the Action Matcher spec.md §4.12
// describes: fuzzy-match raw player input against a cached prediction
// list by combining a regex match score with token-level Jaccard
// similarity, selecting the top scorer above a confidence floor.
// Grounded on spec.md §4.12 directly; stdlib regexp/strings only, per
// DESIGN.md.
package matcher

import (
	"regexp"
	"strings"

	"github.com/quantumturn/engine/internal/domain"
)

// regexWeight and jaccardWeight split the combined confidence score
// spec.md §4.12 asks for between its two signals.
const (
	regexWeight   = 0.6
	jaccardWeight = 0.4
)

// Result pairs a candidate prediction with the player input's
// confidence score against it.
type Result struct {
	Prediction domain.ActionPrediction
	Confidence float64
}

// Match scores input against every prediction and returns the
// highest-scoring one if its confidence meets minConfidence. The
// second return value is false on a miss (spec.md's "signal miss").
func Match(input string, predictions []domain.ActionPrediction, manifest domain.NarratorManifest, minConfidence float64) (Result, bool) {
	var best Result
	found := false

	for _, pred := range predictions {
		score := confidence(input, pred, manifest)
		if !found || score > best.Confidence {
			best = Result{Prediction: pred, Confidence: score}
			found = true
		}
	}

	if !found || best.Confidence < minConfidence {
		return Result{}, false
	}
	return best, true
}

func confidence(input string, pred domain.ActionPrediction, manifest domain.NarratorManifest) float64 {
	regexScore := maxRegexScore(input, pred.InputPatterns)
	jaccardScore := jaccard(tokenize(input), tokenize(matchString(pred, manifest)))
	return regexWeight*regexScore + jaccardWeight*jaccardScore
}

func maxRegexScore(input string, patterns []string) float64 {
	best := 0.0
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		if re.MatchString(input) {
			best = 1.0
		}
	}
	return best
}

// matchString builds the (verb_family, target_display_name) comparison
// string for a prediction: its action type plus the display name of
// whatever manifest entry its target key resolves to.
func matchString(pred domain.ActionPrediction, manifest domain.NarratorManifest) string {
	parts := []string{pred.ActionType}
	if name := displayNameFor(pred.TargetKey, manifest); name != "" {
		parts = append(parts, name)
	}
	return strings.Join(parts, " ")
}

func displayNameFor(key string, manifest domain.NarratorManifest) string {
	if key == "" {
		return ""
	}
	for _, group := range [][]domain.ManifestEntry{manifest.NPCs, manifest.ItemsAtLocation, manifest.Inventory, manifest.Storages, manifest.Exits} {
		for _, e := range group {
			if e.Key == key {
				return e.DisplayName
			}
		}
	}
	return ""
}

func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
