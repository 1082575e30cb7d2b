package managers

import (
	"context"
	"strconv"

	"github.com/quantumturn/engine/internal/domain"
	"github.com/quantumturn/engine/internal/store"
)

// conditionKey is the key combat damage and healing track. Condition
// is stored in the entity's Appearance map (100 when unset) rather than
// as a need; damage clamps it at zero, which triggers death.
const conditionKey = "condition"

// CombatManager applies damage and healing deltas to entities and
// fires the life/death transition when condition crosses zero.
type CombatManager struct {
	store  *store.Store
	entity *EntityManager
}

// ApplyDamage reduces target's condition by amount, killing it via
// EntityManager.Kill if condition reaches zero or below.
func (m *CombatManager) ApplyDamage(ctx context.Context, sessionID, targetKey string, amount int) (domain.Entity, error) {
	e, err := m.entity.Get(ctx, sessionID, targetKey)
	if err != nil {
		return domain.Entity{}, err
	}
	if e.Appearance == nil {
		e.Appearance = map[string]string{}
	}
	current := attributeInt(e.Appearance[conditionKey], 100)
	current -= amount
	if current < 0 {
		current = 0
	}
	e.Appearance[conditionKey] = strconv.Itoa(current)
	if err := m.store.UpsertEntity(ctx, e); err != nil {
		return domain.Entity{}, err
	}
	if current == 0 && e.IsAlive {
		if err := m.entity.Kill(ctx, sessionID, targetKey); err != nil {
			return domain.Entity{}, err
		}
		e.IsAlive = false
	}
	return e, nil
}

// Heal raises target's condition by amount, up to 100, and revives it
// via EntityManager.Revive if it was dead and condition becomes positive.
func (m *CombatManager) Heal(ctx context.Context, sessionID, targetKey string, amount int) (domain.Entity, error) {
	e, err := m.entity.Get(ctx, sessionID, targetKey)
	if err != nil {
		return domain.Entity{}, err
	}
	if e.Appearance == nil {
		e.Appearance = map[string]string{}
	}
	current := attributeInt(e.Appearance[conditionKey], 100)
	current += amount
	if current > 100 {
		current = 100
	}
	e.Appearance[conditionKey] = strconv.Itoa(current)
	if err := m.store.UpsertEntity(ctx, e); err != nil {
		return domain.Entity{}, err
	}
	if current > 0 && !e.IsAlive {
		if err := m.entity.Revive(ctx, sessionID, targetKey); err != nil {
			return domain.Entity{}, err
		}
		e.IsAlive = true
	}
	return e, nil
}

func attributeInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
