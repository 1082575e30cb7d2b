package anticipation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quantumturn/engine/internal/anticipation"
	"github.com/quantumturn/engine/internal/branchcache"
	"github.com/quantumturn/engine/internal/domain"
	"github.com/quantumturn/engine/internal/manifest"
	"github.com/quantumturn/engine/internal/oracle"
	"github.com/quantumturn/engine/internal/predictor"
	"github.com/quantumturn/engine/internal/store"
)

func newTestLoop(t *testing.T) (*store.Store, *branchcache.Cache, *anticipation.Loop) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.CreateSession(ctx, domain.Session{ID: "sess_1", Setting: "x", PlayerEntityKey: "player", StateVersion: 1, CreatedAt: time.Now()}))
	require.NoError(t, s.UpsertLocation(ctx, domain.Location{SessionID: "sess_1", Key: "tavern", DisplayName: "Tavern"}))
	require.NoError(t, s.UpsertEntity(ctx, domain.Entity{SessionID: "sess_1", Key: "player", DisplayName: "You", Kind: domain.EntityPlayer, IsAlive: true, IsActive: true}))

	cache, err := branchcache.New(50, time.Minute)
	require.NoError(t, err)
	t.Cleanup(cache.Stop)

	loop := &anticipation.Loop{
		SessionID:          "sess_1",
		Store:              s,
		Manifest:           manifest.New(s),
		Cache:              cache,
		MaxActionsPerCycle: 5,
		MaxGMDecisions:     2,
		CycleDelay:         5 * time.Millisecond,
	}
	return s, cache, loop
}

func TestLoop_StartIsIdempotentAndStopWaits(t *testing.T) {
	_, _, loop := newTestLoop(t)
	ctx := context.Background()

	loop.Start(ctx)
	loop.Start(ctx) // no-op while already running
	require.True(t, loop.Status().Running)

	loop.Stop()
	require.False(t, loop.Status().Running)
}

func TestLoop_SetLocationAndStatus(t *testing.T) {
	_, _, loop := newTestLoop(t)
	loop.SetLocation("tavern")
	require.Equal(t, "tavern", loop.Status().CurrentLocation)
}

func TestLoop_CycleIsNoopWithoutALocation(t *testing.T) {
	_, cache, loop := newTestLoop(t)
	loop.Start(context.Background())
	defer loop.Stop()

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, loop.Status().BranchesGenerated)
	require.Zero(t, cache.Stats().Size)
}

func TestLoop_CycleSkipsGenerationWhenEverythingAlreadyCached(t *testing.T) {
	ctx := context.Background()
	s, cache, loop := newTestLoop(t)
	require.NoError(t, s.UpsertEntity(ctx, domain.Entity{
		SessionID: "sess_1", Key: "marcus", DisplayName: "Marcus", Kind: domain.EntityNPC, IsAlive: true, IsActive: true,
	}))

	scene, err := manifest.New(s).Build(ctx, "sess_1", "tavern", "player")
	require.NoError(t, err)
	predictions := predictor.Predict(predictor.Input{LocationKey: "tavern", Manifest: scene, MaxActions: 5})

	for _, action := range predictions {
		if action.ActionType == "interact_npc" {
			continue // excluded from anticipation; see skippedActionTypes
		}
		for _, decision := range oracle.Decide(oracle.Input{Action: action, LocationKey: "tavern"}) {
			cache.Put(domain.QuantumBranch{
				BranchKey:    domain.BranchKey("tavern", action.ActionType, action.TargetKey, decision.Name),
				StateVersion: 1,
			})
		}
	}

	// Generator is left nil: if cycle tried to call GenerateMany despite
	// every (action, decision) pair already being cached, this test
	// would panic on a nil-pointer method call instead of passing.
	loop.SetLocation("tavern")
	loop.Start(ctx)
	defer loop.Stop()

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, loop.Status().BranchesGenerated, "every candidate was already cached; nothing new should be generated")
}
