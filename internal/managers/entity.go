package managers

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/quantumturn/engine/internal/errors"
	"github.com/quantumturn/engine/internal/domain"
	"github.com/quantumturn/engine/internal/store"
)

// EntityManager mutates Entity records, preserving liveness/activity
// invariants.
type EntityManager struct {
	store *store.Store
}

// Get returns the entity with key, translating a missing record into
// apperrors.CodeNotFound.
func (m *EntityManager) Get(ctx context.Context, sessionID, key string) (domain.Entity, error) {
	e, err := m.store.GetEntity(ctx, sessionID, key)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Entity{}, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("entity %q not found", key)).
			WithMetadata("entity_key", key)
	}
	return e, err
}

// Kill marks an entity as no longer alive. Fires from a DeltaDamage
// delta whose value drives the entity's condition to zero (see
// CombatManager.ApplyDamage).
func (m *EntityManager) Kill(ctx context.Context, sessionID, key string) error {
	e, err := m.Get(ctx, sessionID, key)
	if err != nil {
		return err
	}
	e.IsAlive = false
	return m.store.UpsertEntity(ctx, e)
}

// Revive marks an entity alive again.
func (m *EntityManager) Revive(ctx context.Context, sessionID, key string) error {
	e, err := m.Get(ctx, sessionID, key)
	if err != nil {
		return err
	}
	e.IsAlive = true
	return m.store.UpsertEntity(ctx, e)
}

// SetActive flips an entity's scene-presence flag, e.g. when a
// schedule moves an NPC out of the current location's cast.
func (m *EntityManager) SetActive(ctx context.Context, sessionID, key string, active bool) error {
	e, err := m.Get(ctx, sessionID, key)
	if err != nil {
		return err
	}
	e.IsActive = active
	return m.store.UpsertEntity(ctx, e)
}
