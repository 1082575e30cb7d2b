package managers

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
	apperrors "github.com/quantumturn/engine/internal/errors"
	"github.com/quantumturn/engine/internal/store"
)

// ItemManager mutates Item placement, preserving the exclusivity
// invariant (at most one of holder/storage/owner-location is set) and
// the equip-layer visibility rule from spec.md §4.2.
type ItemManager struct {
	store *store.Store
}

func (m *ItemManager) get(ctx context.Context, sessionID, key string) (domain.Item, error) {
	it, err := m.store.GetItem(ctx, sessionID, key)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Item{}, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("item %q not found", key)).
			WithMetadata("item_key", key)
	}
	return it, err
}

// clearPlacement zeroes every placement field so exactly one can be set
// afterward, preserving the mutual-exclusion invariant.
func clearPlacement(it domain.Item) domain.Item {
	it.HolderEntity = ""
	it.StorageLocation = ""
	it.OwnerLocation = ""
	return it
}

// TransferToHolder moves an item to be carried by an entity, clearing
// any prior location/holder/container placement atomically.
func (m *ItemManager) TransferToHolder(ctx context.Context, sessionID, itemKey, holderEntity string) error {
	it, err := m.get(ctx, sessionID, itemKey)
	if err != nil {
		return err
	}
	if it.BodySlot != domain.SlotNone {
		return apperrors.New(apperrors.CodeInvariantViolation, "item is equipped; unequip before transferring").
			WithMetadata("item_key", itemKey)
	}
	it = clearPlacement(it)
	it.HolderEntity = holderEntity
	return m.store.UpsertItem(ctx, it)
}

// TransferToLocation places an item in a location's environment,
// clearing any holder/container placement.
func (m *ItemManager) TransferToLocation(ctx context.Context, sessionID, itemKey, locationKey string) error {
	exists, err := m.store.LocationExists(ctx, sessionID, locationKey)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.New(apperrors.CodeScopeViolation, fmt.Sprintf("location %q does not exist", locationKey)).
			WithMetadata("location_key", locationKey)
	}
	it, err := m.get(ctx, sessionID, itemKey)
	if err != nil {
		return err
	}
	it = clearPlacement(it)
	it.OwnerLocation = locationKey
	return m.store.UpsertItem(ctx, it)
}

// TransferToStorage places an item inside a container or named storage.
func (m *ItemManager) TransferToStorage(ctx context.Context, sessionID, itemKey, storageKey string) error {
	it, err := m.get(ctx, sessionID, itemKey)
	if err != nil {
		return err
	}
	it = clearPlacement(it)
	it.StorageLocation = storageKey
	return m.store.UpsertItem(ctx, it)
}

// Equip sets an item's body slot and layer on the holding entity.
// Equipping never changes the holder — only a transfer does.
func (m *ItemManager) Equip(ctx context.Context, sessionID, itemKey, holderEntity string, slot domain.BodySlot, layer int) error {
	it, err := m.get(ctx, sessionID, itemKey)
	if err != nil {
		return err
	}
	if it.HolderEntity != holderEntity {
		return apperrors.New(apperrors.CodeInvariantViolation, "item must be held by the entity before it can be equipped").
			WithMetadata("item_key", itemKey).WithMetadata("entity_key", holderEntity)
	}

	occupied, err := m.layerOccupied(ctx, sessionID, holderEntity, slot, layer, itemKey)
	if err != nil {
		return err
	}
	if occupied {
		return apperrors.New(apperrors.CodeInvariantViolation, "slot/layer already occupied").
			WithMetadata("body_slot", string(slot))
	}

	it.BodySlot = slot
	it.BodyLayer = layer
	return m.store.UpsertItem(ctx, it)
}

// Unequip clears an item's body slot, returning it to plain-held state.
func (m *ItemManager) Unequip(ctx context.Context, sessionID, itemKey string) error {
	it, err := m.get(ctx, sessionID, itemKey)
	if err != nil {
		return err
	}
	it.BodySlot = domain.SlotNone
	it.BodyLayer = 0
	return m.store.UpsertItem(ctx, it)
}

func (m *ItemManager) layerOccupied(ctx context.Context, sessionID, holderEntity string, slot domain.BodySlot, layer int, excludeItemKey string) (bool, error) {
	held, err := m.store.ListItemsHeldBy(ctx, sessionID, holderEntity)
	if err != nil {
		return false, err
	}
	for _, it := range held {
		if it.Key == excludeItemKey {
			continue
		}
		if it.BodySlot == slot && it.BodyLayer == layer {
			return true, nil
		}
	}
	return false, nil
}

// Visible reports whether item it is visible on its holder: it carries
// the maximum layer within its own slot and no covering slot occupies
// a higher effective layer (spec.md §4.2 equip-layer visibility rule).
func (m *ItemManager) Visible(ctx context.Context, sessionID, holderEntity string, it domain.Item) (bool, error) {
	if it.BodySlot == domain.SlotNone {
		return true, nil
	}
	held, err := m.store.ListItemsHeldBy(ctx, sessionID, holderEntity)
	if err != nil {
		return false, err
	}

	maxLayerInSlot := it.BodyLayer
	for _, other := range held {
		if other.BodySlot == it.BodySlot && other.BodyLayer > maxLayerInSlot {
			maxLayerInSlot = other.BodyLayer
		}
	}
	if it.BodyLayer != maxLayerInSlot {
		return false, nil
	}

	for _, other := range held {
		if other.Key == it.Key || other.BodySlot == domain.SlotNone {
			continue
		}
		if other.BodySlot.Covers(it.BodySlot) && other.BodyLayer > it.BodyLayer {
			return false, nil
		}
	}
	return true, nil
}
