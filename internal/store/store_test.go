package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quantumturn/engine/internal/domain"
	"github.com/quantumturn/engine/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_CreateAndBumpStateVersion(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sess := domain.Session{ID: "sess_1", Setting: "tavern-noir", Status: "active", CreatedAt: time.Now()}
	require.NoError(t, s.CreateSession(ctx, sess))

	got, err := s.GetSession(ctx, "sess_1")
	require.NoError(t, err)
	require.Equal(t, int64(0), got.StateVersion)

	v, err := s.BumpStateVersion(ctx, "sess_1")
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
}

func TestSession_GetMissing_ReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetSession(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_UpsertAndGet_RoundTrips(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateSession(ctx, domain.Session{ID: "sess_1", Setting: "x", CreatedAt: time.Now()}))

	e := domain.Entity{
		SessionID:   "sess_1",
		Key:         "bartender_001",
		DisplayName: "Marcus",
		Kind:        domain.EntityNPC,
		IsAlive:     true,
		IsActive:    true,
		Attributes:  domain.Attributes{Charisma: 14},
		Appearance:  map[string]string{"hair": "grey"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, s.UpsertEntity(ctx, e))

	got, err := s.GetEntity(ctx, "sess_1", "bartender_001")
	require.NoError(t, err)
	require.Equal(t, "Marcus", got.DisplayName)
	require.Equal(t, 14, got.Attributes.Charisma)
	require.Equal(t, "grey", got.Appearance["hair"])
}

func TestItem_ExclusivePlacement_IsAppLevelNotEnforcedByStore(t *testing.T) {
	// The store persists whatever the caller (managers) gives it; the
	// mutual-exclusion invariant is a Manager concern (spec.md §4.2),
	// not a Store concern (spec.md §4.1).
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateSession(ctx, domain.Session{ID: "sess_1", Setting: "x", CreatedAt: time.Now()}))

	it := domain.Item{SessionID: "sess_1", Key: "rusty_key", DisplayName: "Rusty Key", HolderEntity: "player"}
	require.NoError(t, s.UpsertItem(ctx, it))

	held, err := s.ListItemsHeldBy(ctx, "sess_1", "player")
	require.NoError(t, err)
	require.Len(t, held, 1)
	require.Equal(t, "rusty_key", held[0].Key)
}

func TestRelationship_UpsertAndFirstMeeting(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateSession(ctx, domain.Session{ID: "sess_1", Setting: "x", CreatedAt: time.Now()}))

	met, err := s.HasMetBefore(ctx, "sess_1", "player", "bartender_001")
	require.NoError(t, err)
	require.False(t, met)

	rel, err := s.GetRelationship(ctx, "sess_1", "player", "bartender_001")
	require.NoError(t, err)
	require.Equal(t, 0, rel.Dimensions.Trust)

	rel.Dimensions.Familiarity = 15
	require.NoError(t, s.UpsertRelationship(ctx, rel))
	require.NoError(t, s.RecordRelationshipChange(ctx, domain.RelationshipChange{
		SessionID: "sess_1", FromEntity: "player", ToEntity: "bartender_001",
		Dimension: "familiarity", Delta: 15, Reason: "first_meeting", OccurredAt: time.Now(),
	}))

	met, err = s.HasMetBefore(ctx, "sess_1", "player", "bartender_001")
	require.NoError(t, err)
	require.True(t, met)

	got, err := s.GetRelationship(ctx, "sess_1", "player", "bartender_001")
	require.NoError(t, err)
	require.Equal(t, 15, got.Dimensions.Familiarity)
}

func TestNeeds_DefaultsThenPersists(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateSession(ctx, domain.Session{ID: "sess_1", Setting: "x", CreatedAt: time.Now()}))

	needs, err := s.GetNeeds(ctx, "sess_1", "player")
	require.NoError(t, err)
	require.Equal(t, 50, needs.Values[domain.NeedHunger])

	needs.Values[domain.NeedHunger] = 30
	require.NoError(t, s.UpsertNeeds(ctx, needs))

	got, err := s.GetNeeds(ctx, "sess_1", "player")
	require.NoError(t, err)
	require.Equal(t, 30, got.Values[domain.NeedHunger])
}

func TestTurns_RecordAndListRecent_OldestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateSession(ctx, domain.Session{ID: "sess_1", Setting: "x", CreatedAt: time.Now()}))

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.RecordTurn(ctx, domain.Turn{
			SessionID: "sess_1", TurnNumber: i, PlayerInput: "input", GMResponse: "response",
			RecordedAt: time.Now(),
		}))
	}

	turns, err := s.ListRecentTurns(ctx, "sess_1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, 2, turns[0].TurnNumber)
	require.Equal(t, 3, turns[1].TurnNumber)
}

func TestTimeState_DefaultsThenPersists(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateSession(ctx, domain.Session{ID: "sess_1", Setting: "x", CreatedAt: time.Now()}))

	ts, err := s.GetTimeState(ctx, "sess_1")
	require.NoError(t, err)
	require.Equal(t, 1, ts.CurrentDay)
	require.Equal(t, "08:00", ts.CurrentTime)

	ts.CurrentTime = "08:30"
	require.NoError(t, s.UpsertTimeState(ctx, ts))

	got, err := s.GetTimeState(ctx, "sess_1")
	require.NoError(t, err)
	require.Equal(t, "08:30", got.CurrentTime)
}
