package manifest_test

import (
	"context"
	"testing"

	"github.com/quantumturn/engine/internal/domain"
	"github.com/quantumturn/engine/internal/manifest"
)

type fakeReader struct {
	locations map[string]domain.Location
	entities  map[string]domain.Entity
	itemsAt   map[string][]domain.Item
	itemsHeld map[string][]domain.Item
	needs     map[string]domain.CharacterNeeds
}

func (f *fakeReader) GetLocation(_ context.Context, _, key string) (domain.Location, error) {
	loc, ok := f.locations[key]
	if !ok {
		return domain.Location{}, context.DeadlineExceeded
	}
	return loc, nil
}

func (f *fakeReader) ListEntities(_ context.Context, _ string) ([]domain.Entity, error) {
	var out []domain.Entity
	for _, e := range f.entities {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeReader) ListItemsAtLocation(_ context.Context, _, locationKey string) ([]domain.Item, error) {
	return f.itemsAt[locationKey], nil
}

func (f *fakeReader) ListItemsHeldBy(_ context.Context, _, entityKey string) ([]domain.Item, error) {
	return f.itemsHeld[entityKey], nil
}

func (f *fakeReader) GetEntity(_ context.Context, _, key string) (domain.Entity, error) {
	e, ok := f.entities[key]
	if !ok {
		return domain.Entity{}, context.DeadlineExceeded
	}
	return e, nil
}

func (f *fakeReader) GetNeeds(_ context.Context, _, entityKey string) (domain.CharacterNeeds, error) {
	return f.needs[entityKey], nil
}

func (f *fakeReader) ListFactsForSubject(_ context.Context, _, _, _ string) ([]domain.Fact, error) {
	return nil, nil
}

func TestBuild_CompilesManifestFromStore(t *testing.T) {
	fr := &fakeReader{
		locations: map[string]domain.Location{
			"tavern": {Key: "tavern", DisplayName: "The Rusty Anchor", SpatialExits: map[string]string{"north": "street"}},
		},
		entities: map[string]domain.Entity{
			"bartender_001": {Key: "bartender_001", DisplayName: "Marcus", Kind: domain.EntityNPC, IsAlive: true, IsActive: true},
			"player":         {Key: "player", DisplayName: "You", Kind: domain.EntityPlayer, IsAlive: true, IsActive: true},
		},
		itemsAt: map[string][]domain.Item{
			"tavern": {{Key: "mug", DisplayName: "Tin Mug", Kind: "mundane"}},
		},
		itemsHeld: map[string][]domain.Item{
			"player": {{Key: "sword", DisplayName: "Old Sword", Kind: "weapon"}},
		},
		needs: map[string]domain.CharacterNeeds{
			"player": {Values: map[domain.NeedKind]int{domain.NeedHunger: 10}},
		},
	}

	b := manifest.New(fr)
	m, err := b.Build(context.Background(), "sess_1", "tavern", "player")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !m.Has("bartender_001") {
		t.Errorf("expected manifest to ground bartender_001")
	}
	if !m.Has("sword") {
		t.Errorf("expected manifest to ground inventory item sword")
	}
	if len(m.Player.NeedsAlerts) != 1 || m.Player.NeedsAlerts[0] != string(domain.NeedHunger) {
		t.Errorf("expected a hunger alert, got %v", m.Player.NeedsAlerts)
	}
	if m.Location.DisplayName != "The Rusty Anchor" {
		t.Errorf("DisplayName = %q", m.Location.DisplayName)
	}
}
