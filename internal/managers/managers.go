// Package managers implements the invariant-preserving mutation layer
// spec.md §4.2 describes: one manager per domain (entity, item,
// location, relationship, fact, needs, time, combat/death/grief),
// operating on keys and value deltas only, never raw records.
//
// The event-sourced Decide(state, cmd) shape the teacher's campaign
// domain used (decider.go: Decision{Events, Rejections}) is adapted
// here into direct methods returning (result, error) against
// the Store, since spec.md calls for direct mutation with invariant
// checks rather than event replay.
package managers

import (
	"context"

	"github.com/quantumturn/engine/internal/domain"
	"github.com/quantumturn/engine/internal/store"
)

// Managers bundles every per-domain manager over a shared Store handle.
type Managers struct {
	Entity       *EntityManager
	Item         *ItemManager
	Location     *LocationManager
	Relationship *RelationshipManager
	Fact         *FactManager
	Needs        *NeedsManager
	Time         *TimeManager
	Combat       *CombatManager
}

// New constructs a Managers bundle over store.
func New(s *store.Store) *Managers {
	entity := &EntityManager{store: s}
	needs := &NeedsManager{store: s}
	return &Managers{
		Entity:       entity,
		Item:         &ItemManager{store: s},
		Location:     &LocationManager{store: s},
		Relationship: &RelationshipManager{store: s},
		Fact:         &FactManager{store: s},
		Needs:        needs,
		Time:         &TimeManager{store: s, needs: needs},
		Combat:       &CombatManager{store: s, entity: entity},
	}
}

// RecordLocation moves an NPC to locationKey via its "location"-
// predicate fact and marks it active, satisfying
// internal/content.LocationSetter without this package importing
// internal/content (which itself depends on managers' reconciliation
// surface — see TimeManager.SetScheduleReconciler).
func (m *Managers) RecordLocation(ctx context.Context, sessionID, entityKey, locationKey string) error {
	if err := m.Fact.Record(ctx, domain.Fact{
		SessionID:   sessionID,
		Key:         "loc_" + entityKey,
		SubjectType: "entity",
		SubjectKey:  entityKey,
		Predicate:   "location",
		Value:       locationKey,
	}); err != nil {
		return err
	}
	return m.Entity.SetActive(ctx, sessionID, entityKey, true)
}
