// Package manifest compiles the NarratorManifest (aka GroundingManifest)
// spec.md §4.3 calls for: the set of entities and places an LLM may
// reference when generating prose for the current scene. It is pure
// aggregation over Store reads; no external library is needed for it.
package manifest

import (
	"context"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
)

// Reader is the subset of store.Store the builder needs. Declared as an
// interface here (rather than importing *store.Store directly) so tests
// can supply an in-memory fake without a real sqlite handle.
type Reader interface {
	GetLocation(ctx context.Context, sessionID, key string) (domain.Location, error)
	ListEntities(ctx context.Context, sessionID string) ([]domain.Entity, error)
	ListItemsAtLocation(ctx context.Context, sessionID, locationKey string) ([]domain.Item, error)
	ListItemsHeldBy(ctx context.Context, sessionID, entityKey string) ([]domain.Item, error)
	GetEntity(ctx context.Context, sessionID, key string) (domain.Entity, error)
	GetNeeds(ctx context.Context, sessionID, entityKey string) (domain.CharacterNeeds, error)
	ListFactsForSubject(ctx context.Context, sessionID, subjectType, subjectKey string) ([]domain.Fact, error)
}

// Builder compiles NarratorManifests for a session.
type Builder struct {
	store Reader
}

// New constructs a Builder over the given Reader.
func New(store Reader) *Builder {
	return &Builder{store: store}
}

// needAlertThreshold is the need value at or below which the manifest
// surfaces an alert for the player summary.
const needAlertThreshold = 25

// Build compiles the manifest for the given location in sessionID.
func (b *Builder) Build(ctx context.Context, sessionID, locationKey, playerEntityKey string) (domain.NarratorManifest, error) {
	loc, err := b.store.GetLocation(ctx, sessionID, locationKey)
	if err != nil {
		return domain.NarratorManifest{}, fmt.Errorf("build manifest: location %q: %w", locationKey, err)
	}

	entities, err := b.store.ListEntities(ctx, sessionID)
	if err != nil {
		return domain.NarratorManifest{}, fmt.Errorf("build manifest: list entities: %w", err)
	}

	var npcs []domain.ManifestEntry
	for _, e := range entities {
		if e.Kind != domain.EntityNPC && e.Kind != domain.EntityMonster {
			continue
		}
		if !e.IsActive {
			continue
		}
		present, err := b.npcPresentAt(ctx, sessionID, e.Key, locationKey)
		if err != nil {
			return domain.NarratorManifest{}, fmt.Errorf("build manifest: npc presence: %w", err)
		}
		if !present {
			continue
		}
		npcs = append(npcs, domain.ManifestEntry{
			Key:         e.Key,
			DisplayName: e.DisplayName,
			Summary:     summarizeEntity(e),
		})
	}

	itemsAtLoc, err := b.store.ListItemsAtLocation(ctx, sessionID, locationKey)
	if err != nil {
		return domain.NarratorManifest{}, fmt.Errorf("build manifest: items at location: %w", err)
	}

	inventory, err := b.store.ListItemsHeldBy(ctx, sessionID, playerEntityKey)
	if err != nil {
		return domain.NarratorManifest{}, fmt.Errorf("build manifest: inventory: %w", err)
	}

	var exits []domain.ManifestEntry
	for direction, destKey := range loc.SpatialExits {
		exits = append(exits, domain.ManifestEntry{
			Key:         destKey,
			DisplayName: direction,
		})
	}

	player, err := b.store.GetEntity(ctx, sessionID, playerEntityKey)
	if err != nil {
		return domain.NarratorManifest{}, fmt.Errorf("build manifest: player entity: %w", err)
	}
	needs, err := b.store.GetNeeds(ctx, sessionID, playerEntityKey)
	if err != nil {
		return domain.NarratorManifest{}, fmt.Errorf("build manifest: player needs: %w", err)
	}

	playerItems := itemEntries(inventory)
	var equipment []string
	for _, it := range playerItems {
		equipment = append(equipment, it.DisplayName)
	}

	return domain.NarratorManifest{
		Location: domain.LocationBlock{
			Key:         loc.Key,
			DisplayName: loc.DisplayName,
			Description: string(loc.Category),
		},
		NPCs:            npcs,
		ItemsAtLocation: itemEntries(itemsAtLoc),
		Inventory:       playerItems,
		Storages:        nil,
		Exits:           exits,
		Player: domain.PlayerSummary{
			Key:              player.Key,
			DisplayName:      player.DisplayName,
			VisibleEquipment: equipment,
			Condition:        conditionSummary(player),
			NeedsAlerts:      needsAlerts(needs),
		},
	}, nil
}

// npcPresentAt reports whether an NPC belongs in the current scene:
// true if it carries no "location" fact at all (an un-scheduled NPC is
// assumed stationary at whatever location it was placed), or if its
// recorded location matches locationKey.
func (b *Builder) npcPresentAt(ctx context.Context, sessionID, entityKey, locationKey string) (bool, error) {
	facts, err := b.store.ListFactsForSubject(ctx, sessionID, "entity", entityKey)
	if err != nil {
		return false, err
	}
	for _, f := range facts {
		if f.Predicate == "location" {
			return f.Value == locationKey, nil
		}
	}
	return true, nil
}

func itemEntries(items []domain.Item) []domain.ManifestEntry {
	var out []domain.ManifestEntry
	for _, it := range items {
		out = append(out, domain.ManifestEntry{
			Key:         it.Key,
			DisplayName: it.DisplayName,
			Summary:     string(it.Kind),
		})
	}
	return out
}

func summarizeEntity(e domain.Entity) string {
	if !e.IsAlive {
		return "deceased"
	}
	if !e.IsActive {
		return "inactive"
	}
	return "present"
}

func conditionSummary(e domain.Entity) string {
	if !e.IsAlive {
		return "dead"
	}
	return "healthy"
}

func needsAlerts(needs domain.CharacterNeeds) []string {
	var alerts []string
	for _, kind := range domain.AllNeeds {
		if v, ok := needs.Values[kind]; ok && v <= needAlertThreshold {
			alerts = append(alerts, string(kind))
		}
	}
	return alerts
}
