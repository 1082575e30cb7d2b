// Package turnpipeline implements Turn Processing spec.md §4.14
// describes: the pipeline entry point that turns raw player input into
// a recorded turn, trying the cache-hit path first and falling back to
// synchronous generation. It also exposes the Turn API surface spec.md
// §6.2 names (get_cache_stats, get_anticipation_status,
// invalidate_location, shutdown) as methods on Engine. Grounded on
// spec.md §4.14's pseudocode directly and §7's "process_turn never
// raises" contract.
package turnpipeline

import (
	"context"
	"sync"
	"time"

	"github.com/quantumturn/engine/internal/anticipation"
	"github.com/quantumturn/engine/internal/branchcache"
	"github.com/quantumturn/engine/internal/branchgen"
	"github.com/quantumturn/engine/internal/collapse"
	"github.com/quantumturn/engine/internal/domain"
	apperrors "github.com/quantumturn/engine/internal/errors"
	"github.com/quantumturn/engine/internal/manifest"
	"github.com/quantumturn/engine/internal/matcher"
	"github.com/quantumturn/engine/internal/mechanics"
	"github.com/quantumturn/engine/internal/oracle"
	"github.com/quantumturn/engine/internal/predictor"
	"github.com/quantumturn/engine/internal/store"
)

// noTwistDecision is the baseline GM decision the cache-hit path always
// looks up, per spec.md §4.14's pseudocode.
const noTwistDecision = "no_twist"

// TurnResult is the TurnResult spec.md §6.2 defines. process_turn
// always returns a populated one; it never returns a bare error.
type TurnResult struct {
	Narrative    string
	RawNarrative string
	WasCacheHit  bool
	LatencyMS    int64
	DiceResult   *mechanics.CheckResult
	StateChanges []domain.StateDelta
	Errors       []string
}

// CacheStats mirrors get_cache_stats.
type CacheStats struct {
	Size        int
	MaxSize     int
	HitRate     float64
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
}

// Engine wires every pipeline stage together for one session.
type Engine struct {
	SessionID        string
	Store            *store.Store
	Manifest         *manifest.Builder
	Cache            *branchcache.Cache
	Generator        *branchgen.Generator
	Collapse         *collapse.Manager
	Anticipation     *anticipation.Loop
	MinMatchConfidence float64
	MaxActionsPerCycle int

	mu sync.Mutex // serializes turns per session, per spec.md §5
}

// New constructs an Engine for sessionID, wiring the stage handles the
// composition root assembled.
func New(sessionID string, s *store.Store, m *manifest.Builder, cache *branchcache.Cache, gen *branchgen.Generator, col *collapse.Manager, loop *anticipation.Loop, minMatchConfidence float64, maxActionsPerCycle int) *Engine {
	return &Engine{
		SessionID:          sessionID,
		Store:              s,
		Manifest:           m,
		Cache:              cache,
		Generator:          gen,
		Collapse:           col,
		Anticipation:       loop,
		MinMatchConfidence: minMatchConfidence,
		MaxActionsPerCycle: maxActionsPerCycle,
	}
}

// ProcessTurn implements spec.md §4.14's pipeline entry. It never
// returns an error: every failure is folded into TurnResult.Errors and
// a safe apology narrative, per spec.md §7's top-level contract.
func (e *Engine) ProcessTurn(ctx context.Context, playerInput, locationKey string, turnNumber int) TurnResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Anticipation != nil {
		e.Anticipation.SetLocation(locationKey)
	}

	sess, err := e.Store.GetSession(ctx, e.SessionID)
	if err != nil {
		return apologyResult(err)
	}

	scene, err := e.Manifest.Build(ctx, e.SessionID, locationKey, sess.PlayerEntityKey)
	if err != nil {
		return apologyResult(err)
	}

	recentTurns, _ := e.Store.ListRecentTurns(ctx, e.SessionID, 5)
	locationFacts, _ := e.Store.ListFactsAtLocation(ctx, e.SessionID, locationKey)

	predictions := predictor.Predict(predictor.Input{
		LocationKey:   locationKey,
		Manifest:      scene,
		RecentTurns:   recentTurns,
		LocationFacts: locationFacts,
		MaxActions:    e.MaxActionsPerCycle,
	})

	match, matched := matcher.Match(playerInput, predictions, scene, e.MinMatchConfidence)

	if matched {
		key := domain.BranchKey(locationKey, match.Prediction.ActionType, match.Prediction.TargetKey, noTwistDecision)
		if branch, ok := e.Cache.Get(key, sess.StateVersion); ok {
			result, err := e.Collapse.Collapse(ctx, e.SessionID, branch, playerInput, turnNumber, true)
			if err == nil {
				return toTurnResult(result)
			}
			if apperrors.IsCode(err, apperrors.CodeStaleState) {
				e.Cache.InvalidateLocation(locationKey)
			} else {
				return apologyResult(err)
			}
		}
	}

	action := match.Prediction
	if !matched {
		action = domain.ActionPrediction{ActionType: "observe"}
	}

	branch, err := e.Generator.Generate(ctx, e.SessionID, scene, action, domain.GMDecision{Name: noTwistDecision, Weight: 1}, recentTurns, sess.StateVersion)
	if err != nil {
		return apologyResult(err)
	}

	result, err := e.Collapse.Collapse(ctx, e.SessionID, branch, playerInput, turnNumber, false)
	if err != nil {
		return apologyResult(err)
	}
	return toTurnResult(result)
}

// GetCacheStats implements get_cache_stats.
func (e *Engine) GetCacheStats() CacheStats {
	s := e.Cache.Stats()
	return CacheStats{
		Size:        s.Size,
		MaxSize:     s.MaxSize,
		HitRate:     s.HitRate(),
		Hits:        s.Hits,
		Misses:      s.Misses,
		Evictions:   s.Evictions,
		Expirations: s.Expirations,
	}
}

// GetAnticipationStatus implements get_anticipation_status.
func (e *Engine) GetAnticipationStatus() anticipation.Status {
	if e.Anticipation == nil {
		return anticipation.Status{}
	}
	return e.Anticipation.Status()
}

// InvalidateLocation implements invalidate_location.
func (e *Engine) InvalidateLocation(locationKey string) {
	e.Cache.InvalidateLocation(locationKey)
}

// Shutdown implements shutdown: stops the anticipation loop and the
// cache's background cleanup goroutine.
func (e *Engine) Shutdown() {
	if e.Anticipation != nil {
		e.Anticipation.Stop()
	}
	e.Cache.Stop()
}

func toTurnResult(r collapse.Result) TurnResult {
	return TurnResult{
		Narrative:    r.DisplayNarrative,
		RawNarrative: r.RawNarrative,
		WasCacheHit:  r.WasCacheHit,
		LatencyMS:    r.LatencyMS,
		DiceResult:   r.DiceResult,
		StateChanges: r.StateChanges,
	}
}

// apologyResult implements spec.md §7's "fall back to minimal narrator
// or safe apology message; never crash the session" policy.
func apologyResult(err error) TurnResult {
	return TurnResult{
		Narrative:    "Something interrupts the moment before it can unfold. Try again.",
		RawNarrative: "Something interrupts the moment before it can unfold. Try again.",
		LatencyMS:    time.Duration(0).Milliseconds(),
		Errors:       []string{err.Error()},
	}
}
