package managers_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quantumturn/engine/internal/domain"
	apperrors "github.com/quantumturn/engine/internal/errors"
	"github.com/quantumturn/engine/internal/managers"
	"github.com/quantumturn/engine/internal/store"
)

func newTestSession(t *testing.T) (*store.Store, *managers.Managers) {
	t.Helper()
	s, err := store.Open(context.Background(), "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.CreateSession(context.Background(), domain.Session{ID: "sess_1", Setting: "x", CreatedAt: time.Now()}))
	require.NoError(t, s.UpsertLocation(context.Background(), domain.Location{SessionID: "sess_1", Key: "tavern", DisplayName: "Tavern"}))
	require.NoError(t, s.UpsertLocation(context.Background(), domain.Location{SessionID: "sess_1", Key: "street", DisplayName: "Street"}))
	require.NoError(t, s.UpsertEntity(context.Background(), domain.Entity{SessionID: "sess_1", Key: "player", DisplayName: "You", Kind: domain.EntityPlayer, IsAlive: true, IsActive: true}))
	require.NoError(t, s.UpsertEntity(context.Background(), domain.Entity{SessionID: "sess_1", Key: "bartender_001", DisplayName: "Marcus", Kind: domain.EntityNPC, IsAlive: true, IsActive: true}))
	return s, managers.New(s)
}

func TestEntityManager_KillAndRevive(t *testing.T) {
	ctx := context.Background()
	_, mgrs := newTestSession(t)

	require.NoError(t, mgrs.Entity.Kill(ctx, "sess_1", "bartender_001"))
	e, err := mgrs.Entity.Get(ctx, "sess_1", "bartender_001")
	require.NoError(t, err)
	require.False(t, e.IsAlive)

	require.NoError(t, mgrs.Entity.Revive(ctx, "sess_1", "bartender_001"))
	e, err = mgrs.Entity.Get(ctx, "sess_1", "bartender_001")
	require.NoError(t, err)
	require.True(t, e.IsAlive)
}

func TestEntityManager_Get_Missing_ReturnsNotFoundCode(t *testing.T) {
	_, mgrs := newTestSession(t)
	_, err := mgrs.Entity.Get(context.Background(), "sess_1", "ghost")
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestItemManager_TransferAndEquipVisibility(t *testing.T) {
	ctx := context.Background()
	s, mgrs := newTestSession(t)

	require.NoError(t, s.UpsertItem(ctx, domain.Item{SessionID: "sess_1", Key: "cloak", DisplayName: "Cloak", BodySlot: domain.SlotNone}))
	require.NoError(t, s.UpsertItem(ctx, domain.Item{SessionID: "sess_1", Key: "shirt", DisplayName: "Shirt", BodySlot: domain.SlotNone}))

	require.NoError(t, mgrs.Item.TransferToHolder(ctx, "sess_1", "cloak", "player"))
	require.NoError(t, mgrs.Item.TransferToHolder(ctx, "sess_1", "shirt", "player"))

	require.NoError(t, mgrs.Item.Equip(ctx, "sess_1", "shirt", "player", domain.SlotTorso, 0))
	require.NoError(t, mgrs.Item.Equip(ctx, "sess_1", "cloak", "player", domain.SlotFullBody, 1))

	shirt, err := s.GetItem(ctx, "sess_1", "shirt")
	require.NoError(t, err)
	visible, err := mgrs.Item.Visible(ctx, "sess_1", "player", shirt)
	require.NoError(t, err)
	require.False(t, visible, "shirt should be hidden under the full-body cloak")

	cloak, err := s.GetItem(ctx, "sess_1", "cloak")
	require.NoError(t, err)
	visible, err = mgrs.Item.Visible(ctx, "sess_1", "player", cloak)
	require.NoError(t, err)
	require.True(t, visible)
}

func TestItemManager_Equip_RejectsOccupiedLayer(t *testing.T) {
	ctx := context.Background()
	s, mgrs := newTestSession(t)
	require.NoError(t, s.UpsertItem(ctx, domain.Item{SessionID: "sess_1", Key: "shirt", DisplayName: "Shirt"}))
	require.NoError(t, s.UpsertItem(ctx, domain.Item{SessionID: "sess_1", Key: "vest", DisplayName: "Vest"}))
	require.NoError(t, mgrs.Item.TransferToHolder(ctx, "sess_1", "shirt", "player"))
	require.NoError(t, mgrs.Item.TransferToHolder(ctx, "sess_1", "vest", "player"))
	require.NoError(t, mgrs.Item.Equip(ctx, "sess_1", "shirt", "player", domain.SlotTorso, 0))

	err := mgrs.Item.Equip(ctx, "sess_1", "vest", "player", domain.SlotTorso, 0)
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvariantViolation))
}

func TestRelationshipManager_ApplyDelta_ForcesFamiliarityOnFirstMeeting(t *testing.T) {
	ctx := context.Background()
	_, mgrs := newTestSession(t)

	rel, err := mgrs.Relationship.ApplyDelta(ctx, "sess_1", "player", "bartender_001", "trust", 5, "helped carry barrels")
	require.NoError(t, err)
	require.Equal(t, 5, rel.Dimensions.Trust)
	require.GreaterOrEqual(t, rel.Dimensions.Familiarity, 10)
	require.LessOrEqual(t, rel.Dimensions.Familiarity, 20)

	rel2, err := mgrs.Relationship.ApplyDelta(ctx, "sess_1", "player", "bartender_001", "trust", 5, "helped again")
	require.NoError(t, err)
	require.Equal(t, rel.Dimensions.Familiarity, rel2.Dimensions.Familiarity, "familiarity bump should not repeat after first meeting")
}

func TestRelationshipManager_Clamp(t *testing.T) {
	ctx := context.Background()
	_, mgrs := newTestSession(t)
	_, err := mgrs.Relationship.ApplyDelta(ctx, "sess_1", "player", "bartender_001", "trust", 1000, "over the top")
	require.NoError(t, err)
	rel, err := mgrs.Relationship.Get(ctx, "sess_1", "player", "bartender_001")
	require.NoError(t, err)
	require.Equal(t, 100, rel.Dimensions.Trust)
}

func TestNeedsManager_SatisfyAndDecay(t *testing.T) {
	ctx := context.Background()
	_, mgrs := newTestSession(t)

	needs, err := mgrs.Needs.Satisfy(ctx, "sess_1", "player", domain.NeedHunger, managers.QualityGood)
	require.NoError(t, err)
	require.Equal(t, 75, needs.Values[domain.NeedHunger])

	needs, err = mgrs.Needs.Decay(ctx, "sess_1", "player", 3)
	require.NoError(t, err)
	require.Equal(t, 69, needs.Values[domain.NeedHunger])
}

func TestTimeManager_Advance_RollsDayAndDecaysNeeds(t *testing.T) {
	ctx := context.Background()
	_, mgrs := newTestSession(t)

	ts, err := mgrs.Time.Advance(ctx, "sess_1", 16*60, []string{"player"})
	require.NoError(t, err)
	require.Equal(t, 2, ts.CurrentDay)
	require.Equal(t, "00:00", ts.CurrentTime)

	needs, err := mgrs.Needs.Get(ctx, "sess_1", "player")
	require.NoError(t, err)
	require.Less(t, needs.Values[domain.NeedHunger], 50)
}

func TestCombatManager_DamageKillsAndHealRevives(t *testing.T) {
	ctx := context.Background()
	_, mgrs := newTestSession(t)

	e, err := mgrs.Combat.ApplyDamage(ctx, "sess_1", "bartender_001", 100)
	require.NoError(t, err)
	require.False(t, e.IsAlive)

	e, err = mgrs.Combat.Heal(ctx, "sess_1", "bartender_001", 20)
	require.NoError(t, err)
	require.True(t, e.IsAlive)
}

func TestLocationManager_LinkExit_RejectsUnknownTarget(t *testing.T) {
	ctx := context.Background()
	_, mgrs := newTestSession(t)
	err := mgrs.Location.LinkExit(ctx, "sess_1", "tavern", "north", "nowhere")
	require.True(t, apperrors.IsCode(err, apperrors.CodeScopeViolation))

	require.NoError(t, mgrs.Location.LinkExit(ctx, "sess_1", "tavern", "north", "street"))
	loc, err := mgrs.Location.Get(ctx, "sess_1", "tavern")
	require.NoError(t, err)
	require.Equal(t, "street", loc.SpatialExits["north"])
}

func TestFactManager_RecordAndRetrieve(t *testing.T) {
	ctx := context.Background()
	_, mgrs := newTestSession(t)
	require.NoError(t, mgrs.Fact.Record(ctx, domain.Fact{
		SessionID: "sess_1", Key: "bartender_owes_debt", SubjectType: "entity", SubjectKey: "bartender_001",
		Predicate: "owes_debt_to", Value: "local_guild", Certainty: 0.8,
	}))
	facts, err := mgrs.Fact.ForSubject(ctx, "sess_1", "entity", "bartender_001")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, "owes_debt_to", facts[0].Predicate)
}
