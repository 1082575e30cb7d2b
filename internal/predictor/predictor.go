// Package predictor implements the Action Predictor spec.md §4.6
// describes: it scores probable next actions from the current scene's
// manifest, recent turns, and quest-grounding facts, and returns them
// ordered and capped. Grounded on the Manager/Manifest types directly;
// stdlib regexp only, per DESIGN.md (there is no pack library for a
// bespoke additive scoring rule set).
package predictor

import (
	"regexp"
	"strings"

	"github.com/quantumturn/engine/internal/domain"
)

// probabilityCap is the additive-score ceiling spec.md §4.6 sets.
const probabilityCap = 0.95

// Input bundles everything the predictor needs for one scoring pass.
type Input struct {
	LocationKey     string
	Manifest        domain.NarratorManifest
	RecentTurns     []domain.Turn
	LocationFacts   []domain.Fact
	TurnsAtLocation int
	MaxActions      int
}

const defaultMaxActions = 5

// verbFamilies maps an action type to the verb synonyms a player might
// use to invoke it, used to seed each prediction's input_patterns.
var verbFamilies = map[string][]string{
	"interact_npc": {"talk", "speak", "ask", "greet", "chat"},
	"take_item":    {"take", "grab", "pick", "pick up", "get"},
	"move":         {"go", "walk", "enter", "head", "travel"},
	"observe":      {"look", "examine", "observe", "inspect", "check"},
	"explore":      {"explore", "look around", "search"},
}

// Predict scores and orders every candidate action for the current
// scene, truncating to in.MaxActions (default 5).
func Predict(in Input) []domain.ActionPrediction {
	var out []domain.ActionPrediction

	for _, npc := range in.Manifest.NPCs {
		out = append(out, npcPrediction(in, npc))
	}
	for _, item := range in.Manifest.ItemsAtLocation {
		out = append(out, itemPrediction(in, item))
	}
	for direction, exit := range exitsByDirection(in.Manifest.Exits) {
		out = append(out, exitPrediction(in, direction, exit))
	}

	out = append(out, observePrediction())
	if in.TurnsAtLocation < 2 {
		out = append(out, explorePrediction())
	}

	for i := range out {
		if out[i].Probability > probabilityCap {
			out[i].Probability = probabilityCap
		}
	}

	sortByProbabilityDesc(out)

	max := in.MaxActions
	if max <= 0 {
		max = defaultMaxActions
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

func npcPrediction(in Input, npc domain.ManifestEntry) domain.ActionPrediction {
	score := 0.15 // NPC present
	var reasons []string
	reasons = append(reasons, "npc present")

	if isSceneFocus(in.LocationFacts, npc.Key) {
		score += 0.20
		reasons = append(reasons, "scene focus")
	}
	if hadRecentConversation(in.RecentTurns, npc.Key) {
		score += 0.10
		reasons = append(reasons, "recent conversation")
	}
	if isQuestTarget(in.LocationFacts, npc.Key) {
		score += 0.15
		reasons = append(reasons, "active quest reference")
	}

	return domain.ActionPrediction{
		ActionType:    "interact_npc",
		TargetKey:     npc.Key,
		InputPatterns: patternsFor("interact_npc", npc.DisplayName),
		Probability:   score,
		Reason:        strings.Join(reasons, "; "),
	}
}

func itemPrediction(in Input, item domain.ManifestEntry) domain.ActionPrediction {
	score := 0.20 // visible & interactable base
	var reasons []string
	reasons = append(reasons, "item visible")

	if isMundaneItem(in.LocationFacts, item.Key) {
		score *= 0.5
		reasons = append(reasons, "mundane")
	}
	if isQuestItem(in.LocationFacts, item.Key) {
		score += 0.25
		reasons = append(reasons, "quest item")
	}

	return domain.ActionPrediction{
		ActionType:    "take_item",
		TargetKey:     item.Key,
		InputPatterns: patternsFor("take_item", item.DisplayName),
		Probability:   score,
		Reason:        strings.Join(reasons, "; "),
	}
}

func exitPrediction(in Input, direction string, exit domain.ManifestEntry) domain.ActionPrediction {
	score := 0.15 // exit present base
	var reasons []string
	reasons = append(reasons, "exit present")

	if isQuestDestination(in.LocationFacts, exit.Key) {
		score += 0.15
		reasons = append(reasons, "quest destination")
	}

	return domain.ActionPrediction{
		ActionType:    "move",
		TargetKey:     exit.Key,
		InputPatterns: patternsFor("move", direction),
		Probability:   score,
		Reason:        strings.Join(reasons, "; "),
	}
}

func observePrediction() domain.ActionPrediction {
	return domain.ActionPrediction{
		ActionType:    "observe",
		InputPatterns: patternsFor("observe", ""),
		Probability:   0.15,
		Reason:        "observation always available",
	}
}

func explorePrediction() domain.ActionPrediction {
	return domain.ActionPrediction{
		ActionType:    "explore",
		InputPatterns: patternsFor("explore", ""),
		Probability:   0.10,
		Reason:        "newly arrived at location",
	}
}

func exitsByDirection(exits []domain.ManifestEntry) map[string]domain.ManifestEntry {
	// The manifest stores exits keyed by destination entry with the
	// direction carried in DisplayName (see manifest.Builder.Build).
	out := make(map[string]domain.ManifestEntry, len(exits))
	for _, e := range exits {
		out[e.DisplayName] = e
	}
	return out
}

// patternsFor builds case-insensitive regex alternations combining the
// action's verb family with an optional target display name/direction.
func patternsFor(actionType, target string) []string {
	verbs := verbFamilies[actionType]
	if len(verbs) == 0 {
		verbs = []string{actionType}
	}
	verbAlt := strings.Join(quoteAll(verbs), "|")
	if target == "" {
		return []string{"(?i)\\b(" + verbAlt + ")\\b"}
	}
	return []string{"(?i)\\b(" + verbAlt + ")\\b.*\\b" + regexp.QuoteMeta(target) + "\\b"}
}

func quoteAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = regexp.QuoteMeta(w)
	}
	return out
}

func hadRecentConversation(turns []domain.Turn, npcKey string) bool {
	for _, t := range turns {
		if t.IsOOC {
			continue
		}
		for _, key := range t.MentionedKeys {
			if key == npcKey {
				return true
			}
		}
	}
	return false
}

// Grounding facts use a "location"-or-"entity" subject with a
// predicate naming the grounding condition (e.g. "scene_focus",
// "quest_target", "quest_item", "quest_destination", "mundane") and a
// value identifying the target key, the way internal/oracle's twist
// grounding facts work.
func factFlag(facts []domain.Fact, predicate, targetKey string) bool {
	for _, f := range facts {
		if f.Predicate == predicate && f.Value == targetKey {
			return true
		}
	}
	return false
}

func isSceneFocus(facts []domain.Fact, npcKey string) bool    { return factFlag(facts, "scene_focus", npcKey) }
func isQuestTarget(facts []domain.Fact, npcKey string) bool    { return factFlag(facts, "quest_target", npcKey) }
func isQuestItem(facts []domain.Fact, itemKey string) bool     { return factFlag(facts, "quest_item", itemKey) }
func isMundaneItem(facts []domain.Fact, itemKey string) bool   { return factFlag(facts, "mundane", itemKey) }
func isQuestDestination(facts []domain.Fact, locKey string) bool { return factFlag(facts, "quest_destination", locKey) }

func sortByProbabilityDesc(preds []domain.ActionPrediction) {
	for i := 1; i < len(preds); i++ {
		for j := i; j > 0 && preds[j-1].Probability < preds[j].Probability; j-- {
			preds[j-1], preds[j] = preds[j], preds[j-1]
		}
	}
}
