// Package collapse implements the Collapse Manager spec.md §4.11 calls
// "the hardest component": freshness check, variant selection via the
// dice engine, delta revalidation, atomic apply with rollback, key
// stripping, and turn recording. Grounded on internal/mechanics (dice
// resolution), internal/managers (the per-domain mutation methods every
// delta kind maps onto), and internal/validate (delta revalidation,
// StripTags/MentionedKeys). The Store exposes no sql.Tx handle, so
// "atomic apply" here is a snapshot-and-compensate pattern: every
// applied delta pushes an undo closure, and any failure unwinds them
// in reverse order rather than relying on a database transaction.
package collapse

import (
	"context"
	"time"

	"github.com/quantumturn/engine/internal/domain"
	apperrors "github.com/quantumturn/engine/internal/errors"
	"github.com/quantumturn/engine/internal/managers"
	"github.com/quantumturn/engine/internal/mechanics"
	"github.com/quantumturn/engine/internal/store"
	"github.com/quantumturn/engine/internal/validate"
)

// skillAttribute maps a variant's named skill to the attribute that
// backs its check, since the domain model tracks raw attributes rather
// than a separate per-skill rating table.
var skillAttribute = map[string]func(domain.Attributes) int{
	"lockpicking":  func(a domain.Attributes) int { return a.Dexterity },
	"stealth":      func(a domain.Attributes) int { return a.Dexterity },
	"athletics":    func(a domain.Attributes) int { return a.Strength },
	"persuasion":   func(a domain.Attributes) int { return a.Charisma },
	"deception":    func(a domain.Attributes) int { return a.Charisma },
	"intimidation": func(a domain.Attributes) int { return a.Charisma },
	"insight":      func(a domain.Attributes) int { return a.Wisdom },
	"perception":   func(a domain.Attributes) int { return a.Wisdom },
	"survival":     func(a domain.Attributes) int { return a.Wisdom },
	"arcana":       func(a domain.Attributes) int { return a.Intelligence },
}

// socialSkills are the skills that take disadvantage when the action
// targets a hostile NPC, per spec.md §4.11's example.
var socialSkills = map[string]bool{
	"persuasion":   true,
	"deception":    true,
	"intimidation": true,
	"insight":      true,
}

func attributeFor(skill string, attrs domain.Attributes) int {
	if f, ok := skillAttribute[skill]; ok {
		return f(attrs)
	}
	return attrs.Wisdom
}

// Result is the CollapseResult spec.md §4.11 specifies.
type Result struct {
	DisplayNarrative  string
	RawNarrative      string
	StateChanges      []domain.StateDelta
	TimePassedMinutes int
	WasCacheHit       bool
	DiceResult        *mechanics.CheckResult
	LatencyMS         int64
}

// ErrStaleState signals the branch's state_version no longer matches
// the session's, per spec.md §4.11 step 1 and §7's StaleState policy.
var ErrStaleState = apperrors.New(apperrors.CodeStaleState, "branch state_version is stale")

// Manager collapses a matched QuantumBranch into a single recorded turn.
type Manager struct {
	Store    *store.Store
	Managers *managers.Managers
	Reader   validate.Reader
}

// New constructs a Manager.
func New(s *store.Store, m *managers.Managers) *Manager {
	return &Manager{Store: s, Managers: m, Reader: s}
}

// Collapse resolves branch into a Result, applying its chosen variant's
// deltas atomically (via compensating rollback) and recording the turn.
func (m *Manager) Collapse(ctx context.Context, sessionID string, branch domain.QuantumBranch, playerInput string, turnNumber int, wasCacheHit bool) (Result, error) {
	start := time.Now()

	sess, err := m.Store.GetSession(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if branch.StateVersion != sess.StateVersion {
		return Result{}, ErrStaleState
	}

	variantName, diceResult, err := m.selectVariant(ctx, sessionID, branch)
	if err != nil {
		return Result{}, err
	}
	variant, ok := branch.Variants[variantName]
	if !ok {
		return Result{}, apperrors.New(apperrors.CodeInvariantViolation, "selected variant is not present on the branch")
	}

	delta := validate.DeltaValidator{Reader: m.Reader}
	for _, d := range variant.StateDeltas {
		if issues := delta.Validate(ctx, sessionID, d); validate.HasErrors(issues) {
			return Result{}, ErrStaleState
		}
	}

	if err := m.applyDeltas(ctx, sessionID, variant.StateDeltas); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeInvariantViolation, "collapse failed to apply deltas", err)
	}

	rawNarrative := variant.Narrative
	displayNarrative := validate.StripTags(rawNarrative)
	mentionedKeys := validate.MentionedKeys(rawNarrative)

	if err := m.Store.RecordTurn(ctx, domain.Turn{
		SessionID:     sessionID,
		TurnNumber:    turnNumber,
		PlayerInput:   playerInput,
		GMResponse:    rawNarrative,
		MentionedKeys: mentionedKeys,
		RecordedAt:    time.Now(),
	}); err != nil {
		return Result{}, err
	}

	if _, err := m.Store.BumpStateVersion(ctx, sessionID); err != nil {
		return Result{}, err
	}
	if err := m.Store.IncrementTotalTurns(ctx, sessionID); err != nil {
		return Result{}, err
	}

	if variant.TimePassedMinutes > 0 {
		if _, err := m.Managers.Time.Advance(ctx, sessionID, variant.TimePassedMinutes, mentionedKeys); err != nil {
			return Result{}, err
		}
	}

	return Result{
		DisplayNarrative:  displayNarrative,
		RawNarrative:      rawNarrative,
		StateChanges:      variant.StateDeltas,
		TimePassedMinutes: variant.TimePassedMinutes,
		WasCacheHit:       wasCacheHit,
		DiceResult:        diceResult,
		LatencyMS:         time.Since(start).Milliseconds(),
	}, nil
}

// selectVariant implements spec.md §4.11 step 2: no dice required on
// success means an immediate success; otherwise resolve the check and
// map the result to the variant the branch actually carries.
func (m *Manager) selectVariant(ctx context.Context, sessionID string, branch domain.QuantumBranch) (domain.VariantName, *mechanics.CheckResult, error) {
	success, ok := branch.Variants[domain.VariantSuccess]
	if !ok {
		return "", nil, apperrors.New(apperrors.CodeInvariantViolation, "branch has no success variant")
	}
	if !success.RequiresDice {
		return domain.VariantSuccess, nil, nil
	}

	// The check is always rolled by the player against the variant's DC,
	// not by the action's target (e.g. persuading an NPC uses the
	// player's own Charisma, not the NPC's).
	attrs := domain.Attributes{}
	if sess, sessErr := m.Store.GetSession(ctx, sessionID); sessErr == nil {
		if p, perr := m.Store.GetEntity(ctx, sessionID, sess.PlayerEntityKey); perr == nil {
			attrs = p.Attributes
		}
	}

	attrValue := attributeFor(success.Skill, attrs)
	modifier := (attrValue - 10) / 2
	proficiency := mechanics.ProficiencyBonus(attrValue)

	mode := mechanics.Normal
	if socialSkills[success.Skill] {
		if hostile, _ := m.targetIsHostile(ctx, sessionID, branch.Action.TargetKey); hostile {
			mode = mechanics.Disadvantage
		}
	}

	result, err := mechanics.Resolve(mechanics.CheckRequest{
		AttributeModifier: modifier,
		ProficiencyBonus:  proficiency,
		DC:                success.DC,
		Mode:              mode,
	})
	if err != nil {
		return "", nil, err
	}

	if result.IsCritical {
		if result.CriticalKind == "success" {
			if branch.HasVariant(domain.VariantCriticalSuccess) {
				return domain.VariantCriticalSuccess, &result, nil
			}
			return domain.VariantSuccess, &result, nil
		}
		if branch.HasVariant(domain.VariantCriticalFailure) {
			return domain.VariantCriticalFailure, &result, nil
		}
		return domain.VariantFailure, &result, nil
	}

	if result.Success {
		return domain.VariantSuccess, &result, nil
	}
	return domain.VariantFailure, &result, nil
}

func (m *Manager) targetIsHostile(ctx context.Context, sessionID, targetKey string) (bool, error) {
	facts, err := m.Managers.Fact.ForSubject(ctx, sessionID, "entity", targetKey)
	if err != nil {
		return false, err
	}
	for _, f := range facts {
		if f.Predicate == "disposition" && f.Value == "hostile" {
			return true, nil
		}
	}
	return false, nil
}

// undo is a compensating action pushed after a delta is successfully
// applied, invoked in reverse order if a later delta in the same
// variant fails.
type undo func(ctx context.Context) error

// applyDeltas applies every delta in order, unwinding prior successful
// applications via their undo closures if one fails partway through.
func (m *Manager) applyDeltas(ctx context.Context, sessionID string, deltas []domain.StateDelta) error {
	var undos []undo

	rollback := func() {
		for i := len(undos) - 1; i >= 0; i-- {
			_ = undos[i](ctx)
		}
	}

	for _, d := range deltas {
		u, err := m.applyOne(ctx, sessionID, d)
		if err != nil {
			rollback()
			return err
		}
		if u != nil {
			undos = append(undos, u)
		}
	}
	return nil
}

func (m *Manager) applyOne(ctx context.Context, sessionID string, d domain.StateDelta) (undo, error) {
	switch d.Kind {
	case domain.DeltaRelationship:
		return m.applyRelationship(ctx, sessionID, d)
	case domain.DeltaRelationshipMeeting:
		// First-meeting familiarity is applied implicitly by
		// RelationshipManager.ApplyDelta on the first relationship delta
		// between the pair; this kind exists for branches that only
		// record the meeting with no other dimension change.
		_, err := m.Managers.Relationship.ApplyDelta(ctx, sessionID, d.EntityKey, stringOr(d.Value, "to_entity", ""), "trust", 0, "first meeting")
		return nil, err
	case domain.DeltaFact:
		return m.applyFact(ctx, sessionID, d)
	case domain.DeltaItem:
		return m.applyItem(ctx, sessionID, d)
	case domain.DeltaEquip:
		return m.applyEquip(ctx, sessionID, d)
	case domain.DeltaSatisfyNeed:
		return nil, m.applyNeed(ctx, sessionID, d)
	case domain.DeltaDamage:
		_, err := m.Managers.Combat.ApplyDamage(ctx, sessionID, d.EntityKey, intOr(d.Value, "amount", 0))
		return nil, err
	case domain.DeltaHeal:
		_, err := m.Managers.Combat.Heal(ctx, sessionID, d.EntityKey, intOr(d.Value, "amount", 0))
		return nil, err
	case domain.DeltaLocation:
		return m.applyLocation(ctx, sessionID, d)
	default:
		return nil, apperrors.New(apperrors.CodeValidationError, "unknown delta kind: "+string(d.Kind))
	}
}

func (m *Manager) applyRelationship(ctx context.Context, sessionID string, d domain.StateDelta) (undo, error) {
	to := stringOr(d.Value, "to_entity", "")
	applied := map[string]int{
		"trust":             intOr(d.Value, "trust_delta", 0),
		"liking":            intOr(d.Value, "affection_delta", 0),
		"respect":           intOr(d.Value, "respect_delta", 0),
		"familiarity":       intOr(d.Value, "familiarity_delta", 0),
		"fear":              intOr(d.Value, "fear_delta", 0),
		"romantic_interest": intOr(d.Value, "romantic_interest_delta", 0),
	}
	for dim, delta := range applied {
		if delta == 0 {
			continue
		}
		if _, err := m.Managers.Relationship.ApplyDelta(ctx, sessionID, d.EntityKey, to, dim, delta, "collapsed branch delta"); err != nil {
			return nil, err
		}
	}
	return func(ctx context.Context) error {
		for dim, delta := range applied {
			if delta == 0 {
				continue
			}
			if _, err := m.Managers.Relationship.ApplyDelta(ctx, sessionID, d.EntityKey, to, dim, -delta, "rollback"); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func (m *Manager) applyFact(ctx context.Context, sessionID string, d domain.StateDelta) (undo, error) {
	key := stringOr(d.Value, "key", d.EntityKey)
	switch d.Operation {
	case domain.OpRemove:
		if err := m.Store.DeleteFact(ctx, sessionID, key); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		f := domain.Fact{
			SessionID:   sessionID,
			Key:         key,
			SubjectType: "entity",
			SubjectKey:  d.EntityKey,
			Predicate:   stringOr(d.Value, "predicate", ""),
			Value:       stringOr(d.Value, "value", ""),
		}
		if err := m.Managers.Fact.Record(ctx, f); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			return m.Store.DeleteFact(ctx, sessionID, key)
		}, nil
	}
}

func (m *Manager) applyItem(ctx context.Context, sessionID string, d domain.StateDelta) (undo, error) {
	itemKey := stringOr(d.Value, "item_key", d.EntityKey)
	before, err := m.Store.GetItem(ctx, sessionID, itemKey)
	if err != nil {
		return nil, err
	}

	if holder := stringOr(d.Value, "new_holder", ""); holder != "" {
		if err := m.Managers.Item.TransferToHolder(ctx, sessionID, itemKey, holder); err != nil {
			return nil, err
		}
	} else if loc := stringOr(d.Value, "new_location", ""); loc != "" {
		if err := m.Managers.Item.TransferToLocation(ctx, sessionID, itemKey, loc); err != nil {
			return nil, err
		}
	} else if storageKey := stringOr(d.Value, "new_storage", ""); storageKey != "" {
		if err := m.Managers.Item.TransferToStorage(ctx, sessionID, itemKey, storageKey); err != nil {
			return nil, err
		}
	}

	return func(ctx context.Context) error {
		switch {
		case before.HolderEntity != "":
			return m.Managers.Item.TransferToHolder(ctx, sessionID, itemKey, before.HolderEntity)
		case before.OwnerLocation != "":
			return m.Managers.Item.TransferToLocation(ctx, sessionID, itemKey, before.OwnerLocation)
		case before.StorageLocation != "":
			return m.Managers.Item.TransferToStorage(ctx, sessionID, itemKey, before.StorageLocation)
		}
		return nil
	}, nil
}

func (m *Manager) applyEquip(ctx context.Context, sessionID string, d domain.StateDelta) (undo, error) {
	itemKey := stringOr(d.Value, "item_key", d.EntityKey)
	slot := domain.BodySlot(stringOr(d.Value, "slot", ""))
	layer := intOr(d.Value, "layer", 0)

	if err := m.Managers.Item.Equip(ctx, sessionID, itemKey, d.EntityKey, slot, layer); err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		return m.Managers.Item.Unequip(ctx, sessionID, itemKey)
	}, nil
}

func (m *Manager) applyNeed(ctx context.Context, sessionID string, d domain.StateDelta) error {
	need := domain.NeedKind(stringOr(d.Value, "need", ""))
	amount := intOr(d.Value, "amount", 0)
	quality := managers.QualityAdequate
	switch {
	case amount >= 40:
		quality = managers.QualityExcellent
	case amount >= 25:
		quality = managers.QualityGood
	case amount <= 5:
		quality = managers.QualityPoor
	}
	_, err := m.Managers.Needs.Satisfy(ctx, sessionID, d.EntityKey, need, quality)
	return err
}

// applyLocation moves an NPC entity to a new location. Entities carry
// no location column; whereabouts are tracked via a "location"-
// predicate Fact, the same convention internal/content's schedule
// reconciler uses, since spec.md scopes process_turn's own
// location_key argument to the player only.
func (m *Manager) applyLocation(ctx context.Context, sessionID string, d domain.StateDelta) (undo, error) {
	target := stringOr(d.Value, "target_location", "")
	if target == "" {
		return nil, nil
	}

	key := "loc_" + d.EntityKey
	previous, err := m.Managers.Fact.Get(ctx, sessionID, key)
	hadPrevious := err == nil
	previousValue := previous.Value

	if err := m.Managers.Fact.Record(ctx, domain.Fact{
		SessionID:   sessionID,
		Key:         key,
		SubjectType: "entity",
		SubjectKey:  d.EntityKey,
		Predicate:   "location",
		Value:       target,
	}); err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		if !hadPrevious {
			return m.Store.DeleteFact(ctx, sessionID, key)
		}
		return m.Managers.Fact.Record(ctx, domain.Fact{
			SessionID:   sessionID,
			Key:         key,
			SubjectType: "entity",
			SubjectKey:  d.EntityKey,
			Predicate:   "location",
			Value:       previousValue,
		})
	}, nil
}

func stringOr(value map[string]any, key, fallback string) string {
	if raw, ok := value[key]; ok {
		if s, ok := raw.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func intOr(value map[string]any, key string, fallback int) int {
	raw, ok := value[key]
	if !ok {
		return fallback
	}
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}
