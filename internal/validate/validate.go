// Package validate implements the grounding and plausibility checks
// spec.md §4.9 requires of a freshly generated branch: that every
// tagged reference resolves to the scene's manifest, that no known
// display name escapes un-tagged, and that every delta's targets
// resolve to live state. Grounded on spec.md's rule list directly;
// stdlib regexp/strings only, per DESIGN.md (there is no pack library
// for prose-grounding checks).
package validate

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/quantumturn/engine/internal/domain"
	apperrors "github.com/quantumturn/engine/internal/errors"
)

// Severity classifies how serious a validation Issue is.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Issue is one problem a validator found, carrying a stable code so
// callers (the branch generator's repair loop) can react by kind.
type Issue struct {
	Severity Severity
	Code     string
	Message  string
}

// taggedReference matches the `[entity_key:display_text]` form
// spec.md §6.5 defines. entity_key is [a-z0-9_]+; display_text is any
// run of characters except `]`.
var taggedReference = regexp.MustCompile(`\[([a-z0-9_]+):([^\]]+)\]`)

// metaQuestionPhrases flags prose that breaks the fourth wall by
// asking the player what they want to do next, rather than narrating
// an outcome.
var metaQuestionPhrases = []string{
	"what do you want to do",
	"what would you like to do",
	"how do you want to proceed",
	"what's your next move",
}

// StripTags replaces every tagged reference with its display text,
// implementing spec.md §6.5's stripping regex.
func StripTags(narrative string) string {
	return taggedReference.ReplaceAllString(narrative, "$2")
}

// MentionedKeys returns the deduplicated, order-preserving list of
// entity keys tagged in narrative.
func MentionedKeys(narrative string) []string {
	matches := taggedReference.FindAllStringSubmatch(narrative, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		key := m[1]
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// NarrativeValidator checks that generated prose only references
// entities the current scene's manifest grounds.
type NarrativeValidator struct{}

// Validate checks narrative against manifest, returning every grounding
// issue found. It never returns an error itself — grounding failures
// are reported as Issues, not Go errors.
func (NarrativeValidator) Validate(manifest domain.NarratorManifest, narrative string) []Issue {
	var issues []Issue

	for _, m := range taggedReference.FindAllStringSubmatch(narrative, -1) {
		key := m[1]
		if !manifest.Has(key) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     "ungrounded_reference",
				Message:  "narrative references entity key \"" + key + "\" not present in the scene manifest",
			})
		}
	}

	untagged := taggedReference.ReplaceAllString(narrative, "")
	for _, name := range displayNames(manifest) {
		if name == "" {
			continue
		}
		if containsWord(untagged, name) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     "unkeyed_reference",
				Message:  "narrative mentions \"" + name + "\" without a [key:...] tag",
			})
		}
	}

	lower := strings.ToLower(narrative)
	for _, phrase := range metaQuestionPhrases {
		if strings.Contains(lower, phrase) {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Code:     "meta_question",
				Message:  "narrative asks the player a meta-question instead of narrating an outcome",
			})
		}
	}

	return issues
}

func displayNames(manifest domain.NarratorManifest) []string {
	var names []string
	for _, group := range [][]domain.ManifestEntry{manifest.NPCs, manifest.ItemsAtLocation, manifest.Inventory, manifest.Storages, manifest.Exits} {
		for _, e := range group {
			names = append(names, e.DisplayName)
		}
	}
	if manifest.Player.DisplayName != "" {
		names = append(names, manifest.Player.DisplayName)
	}
	return names
}

// containsWord reports whether name appears in text as a case-sensitive
// substring. Validate passes the narrative with every tagged reference
// removed, so any match is an un-tagged mention.
func containsWord(text, name string) bool {
	return strings.Contains(text, name)
}

// Reader is the subset of store state DeltaValidator needs to confirm
// a delta's targets still resolve to live records. Declared narrowly so
// tests can supply a fake without a real store handle.
type Reader interface {
	EntityExists(ctx context.Context, sessionID, key string) (bool, error)
	ItemHolder(ctx context.Context, sessionID, key string) (holder string, exists bool, err error)
	LocationExists(ctx context.Context, sessionID, key string) (bool, error)
}

// DeltaValidator checks that a StateDelta's targets still resolve to
// live records and that item-transfer preconditions hold.
type DeltaValidator struct {
	Reader Reader
}

// Validate checks one delta against live state.
func (v DeltaValidator) Validate(ctx context.Context, sessionID string, d domain.StateDelta) []Issue {
	var issues []Issue

	switch d.Kind {
	case domain.DeltaRelationship, domain.DeltaSatisfyNeed, domain.DeltaDamage, domain.DeltaHeal, domain.DeltaRelationshipMeeting:
		if ok, err := v.Reader.EntityExists(ctx, sessionID, d.EntityKey); err != nil || !ok {
			issues = append(issues, notFoundIssue("entity", d.EntityKey))
		}
		if to, ok := stringValue(d.Value, "to_entity"); ok {
			if exists, err := v.Reader.EntityExists(ctx, sessionID, to); err != nil || !exists {
				issues = append(issues, notFoundIssue("entity", to))
			}
		}
	case domain.DeltaItem, domain.DeltaEquip:
		itemKey, ok := stringValue(d.Value, "item_key")
		if !ok {
			itemKey = d.EntityKey
		}
		holder, exists, err := v.Reader.ItemHolder(ctx, sessionID, itemKey)
		if err != nil || !exists {
			issues = append(issues, notFoundIssue("item", itemKey))
			break
		}
		if expected, ok := stringValue(d.Value, "expected_holder"); ok && expected != holder {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     "holder_mismatch",
				Message:  "item \"" + itemKey + "\" is no longer held by the expected entity",
			})
		}
	case domain.DeltaLocation:
		if dest, ok := stringValue(d.Value, "target_location"); ok {
			if known, err := v.Reader.LocationExists(ctx, sessionID, dest); err != nil || !known {
				issues = append(issues, notFoundIssue("location", dest))
			}
		}
	case domain.DeltaFact:
		// Facts may be freely created; no precondition to revalidate.
	}

	return issues
}

func notFoundIssue(kind, key string) Issue {
	return Issue{
		Severity: SeverityError,
		Code:     "target_not_found",
		Message:  kind + " \"" + key + "\" no longer resolves to a live record",
	}
}

func stringValue(value map[string]any, key string) (string, bool) {
	raw, ok := value[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok && s != ""
}

// BranchValidator composes the narrative and delta checks across every
// variant in a branch, per spec.md §4.9: a branch fails if the success
// variant is missing or any ERROR-severity issue remains after repair.
type BranchValidator struct {
	Narrative NarrativeValidator
	Delta     DeltaValidator
}

// NewBranchValidator constructs a BranchValidator backed by reader.
func NewBranchValidator(reader Reader) BranchValidator {
	return BranchValidator{Delta: DeltaValidator{Reader: reader}}
}

// Validate checks every variant of branch and reports all issues found,
// tagged with the variant name that produced them.
func (v BranchValidator) Validate(ctx context.Context, sessionID string, manifest domain.NarratorManifest, branch domain.QuantumBranch) map[domain.VariantName][]Issue {
	out := make(map[domain.VariantName][]Issue, len(branch.Variants))
	for name, variant := range branch.Variants {
		var issues []Issue
		issues = append(issues, v.Narrative.Validate(manifest, variant.Narrative)...)
		for _, d := range variant.StateDeltas {
			issues = append(issues, v.Delta.Validate(ctx, sessionID, d)...)
		}
		if variant.RequiresDice && (variant.DC == 0 || variant.Skill == "") {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     "missing_dice_spec",
				Message:  "variant requires dice but is missing dc or skill",
			})
		}
		out[name] = issues
	}
	return out
}

// ErrMissingSuccessVariant is returned by CheckStructure when a branch
// carries no success variant at all.
var ErrMissingSuccessVariant = apperrors.New(apperrors.CodeValidationError, "branch has no success variant")

// CheckStructure enforces the structural contract from spec.md §4.8:
// a success variant is mandatory, and requires_dice on success implies
// a failure variant must also be present.
func CheckStructure(branch domain.QuantumBranch) error {
	success, ok := branch.Variants[domain.VariantSuccess]
	if !ok {
		return ErrMissingSuccessVariant
	}
	if success.RequiresDice {
		if _, ok := branch.Variants[domain.VariantFailure]; !ok {
			return apperrors.New(apperrors.CodeValidationError, "branch requires dice but has no failure variant")
		}
	}
	return nil
}

// HasErrors reports whether any issue in issues is ERROR severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// AllErrors flattens a per-variant issue map into one slice of every
// issue found; HasErrors on the result applies BranchValidator's
// pass/fail rule.
func AllErrors(byVariant map[domain.VariantName][]Issue) []Issue {
	var all []Issue
	for _, issues := range byVariant {
		all = append(all, issues...)
	}
	return all
}

// IsNotFound is a small helper the Reader implementations can use to
// translate a store lookup miss into (false, nil) rather than an error.
func IsNotFound(err error) bool {
	return errors.Is(err, apperrors.New(apperrors.CodeNotFound, ""))
}
