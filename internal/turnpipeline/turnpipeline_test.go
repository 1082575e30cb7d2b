package turnpipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quantumturn/engine/internal/branchcache"
	"github.com/quantumturn/engine/internal/collapse"
	"github.com/quantumturn/engine/internal/domain"
	"github.com/quantumturn/engine/internal/managers"
	"github.com/quantumturn/engine/internal/manifest"
	"github.com/quantumturn/engine/internal/predictor"
	"github.com/quantumturn/engine/internal/store"
	"github.com/quantumturn/engine/internal/turnpipeline"
)

func newTestEngine(t *testing.T) (*store.Store, *branchcache.Cache, *turnpipeline.Engine) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.CreateSession(ctx, domain.Session{ID: "sess_1", Setting: "x", PlayerEntityKey: "player", StateVersion: 1, CreatedAt: time.Now()}))
	require.NoError(t, s.UpsertLocation(ctx, domain.Location{SessionID: "sess_1", Key: "tavern", DisplayName: "Tavern"}))
	require.NoError(t, s.UpsertEntity(ctx, domain.Entity{SessionID: "sess_1", Key: "player", DisplayName: "You", Kind: domain.EntityPlayer, IsAlive: true, IsActive: true}))
	require.NoError(t, s.UpsertEntity(ctx, domain.Entity{SessionID: "sess_1", Key: "marcus", DisplayName: "Marcus", Kind: domain.EntityNPC, IsAlive: true, IsActive: true}))

	cache, err := branchcache.New(50, time.Minute)
	require.NoError(t, err)
	t.Cleanup(cache.Stop)

	mgrs := managers.New(s)
	col := collapse.New(s, mgrs)
	mb := manifest.New(s)

	// Generator is left nil: every test below only exercises paths that
	// must not call it (a cache hit, or a failure before generation).
	engine := turnpipeline.New("sess_1", s, mb, cache, nil, col, nil, 0.5, 5)
	return s, cache, engine
}

func TestProcessTurn_CacheHit_CollapsesWithoutGenerating(t *testing.T) {
	ctx := context.Background()
	s, cache, engine := newTestEngine(t)

	scene, err := manifest.New(s).Build(ctx, "sess_1", "tavern", "player")
	require.NoError(t, err)
	preds := predictor.Predict(predictor.Input{LocationKey: "tavern", Manifest: scene, MaxActions: 5})

	var greet *domain.ActionPrediction
	for i := range preds {
		if preds[i].ActionType == "interact_npc" {
			greet = &preds[i]
		}
	}
	require.NotNil(t, greet, "expected an interact_npc prediction for the present NPC")

	key := domain.BranchKey("tavern", greet.ActionType, greet.TargetKey, "no_twist")
	cache.Put(domain.QuantumBranch{
		BranchKey:    key,
		Action:       *greet,
		StateVersion: 1,
		Variants: map[domain.VariantName]domain.OutcomeVariant{
			domain.VariantSuccess: {Narrative: "You greet [marcus:Marcus]."},
		},
	})

	result := engine.ProcessTurn(ctx, "greet marcus", "tavern", 1)
	require.Empty(t, result.Errors)
	require.True(t, result.WasCacheHit)
	require.Equal(t, "You greet Marcus.", result.Narrative)
}

func TestProcessTurn_UnknownSession_ReturnsApologyWithoutPanicking(t *testing.T) {
	_, _, engine := newTestEngine(t)
	engine.SessionID = "no_such_session"

	result := engine.ProcessTurn(context.Background(), "look around", "tavern", 1)
	require.NotEmpty(t, result.Errors)
	require.Contains(t, result.Narrative, "interrupts")
	require.False(t, result.WasCacheHit)
}

func TestEngine_CacheStatsAndInvalidateLocation(t *testing.T) {
	_, cache, engine := newTestEngine(t)
	cache.Put(domain.QuantumBranch{BranchKey: "tavern::observe::::no_twist", StateVersion: 1})

	stats := engine.GetCacheStats()
	require.Equal(t, 1, stats.Size)

	engine.InvalidateLocation("tavern")
	require.Equal(t, 0, engine.GetCacheStats().Size)
}

func TestEngine_AnticipationStatus_NilSafe(t *testing.T) {
	_, _, engine := newTestEngine(t)
	require.Equal(t, false, engine.GetAnticipationStatus().Running)
}

func TestEngine_Shutdown_StopsCacheCleanup(t *testing.T) {
	_, _, engine := newTestEngine(t)
	engine.Shutdown() // must not panic with a nil Anticipation loop
}
