// Package anticipation implements the Anticipation Loop spec.md §4.13
// describes: a single restartable background goroutine that keeps the
// Branch Cache topped up with predicted (action, decision) branches
// for the player's current location. Grounded on spec.md §9's
// "coroutine-style anticipation ... expressed as a background
// cooperative task with an explicit stop(), no implicit cancellation
// propagation" design note, implemented the way the teacher's
// background workers use a dedicated goroutine plus a stop channel
// rather than context cancellation alone.
package anticipation

import (
	"context"
	"sync"
	"time"

	"github.com/quantumturn/engine/internal/branchcache"
	"github.com/quantumturn/engine/internal/branchgen"
	"github.com/quantumturn/engine/internal/domain"
	"github.com/quantumturn/engine/internal/manifest"
	"github.com/quantumturn/engine/internal/oracle"
	"github.com/quantumturn/engine/internal/predictor"
	"github.com/quantumturn/engine/internal/store"
)

// skippedActionTypes names action types the loop never anticipates.
// interact_npc is excluded per spec.md §9's open-question decision:
// topic-sensitive NPC dialogue cannot be anticipated before the player
// names a topic, so those branches are always generated synchronously
// with the real player input instead.
var skippedActionTypes = map[string]bool{
	"interact_npc": true,
}

// Status mirrors the get_anticipation_status Turn API call, spec.md §6.2.
type Status struct {
	Running           bool
	BranchesGenerated int64
	CurrentLocation   string
}

// Loop runs the background anticipation cycle for one session.
type Loop struct {
	SessionID          string
	Store              *store.Store
	Manifest           *manifest.Builder
	Generator          *branchgen.Generator
	Cache              *branchcache.Cache
	MaxActionsPerCycle int
	MaxGMDecisions     int
	CycleDelay         time.Duration

	mu              sync.Mutex
	currentLocation string
	running         bool
	branchCount     int64
	stopCh          chan struct{}
	doneCh          chan struct{}
}

// SetLocation updates the location the loop anticipates around. An
// empty value pauses generation without stopping the goroutine, per
// spec.md §4.13 "if unset, sleep cycle_delay_seconds".
func (l *Loop) SetLocation(location string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentLocation = location
}

// Status returns a snapshot of the loop's running state.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Running:           l.running,
		BranchesGenerated: l.branchCount,
		CurrentLocation:   l.currentLocation,
	}
}

// Start launches the background goroutine. Calling Start while already
// running is a no-op, matching spec.md §4.13's "fully restartable" loop
// owning no state besides its config and cache handle.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.mu.Unlock()

	go l.run(ctx)
}

// Stop ends the background goroutine and waits for it to exit.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	stopCh, doneCh := l.stopCh, l.doneCh
	l.mu.Unlock()

	close(stopCh)
	<-doneCh

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.doneCh)
	delay := l.CycleDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	for {
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		l.cycle(ctx)

		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// cycle runs one anticipation pass: build the manifest for the current
// location, predict candidate actions, propose GM decisions for each,
// skip whatever is already cached, and generate the rest.
func (l *Loop) cycle(ctx context.Context) {
	l.mu.Lock()
	location := l.currentLocation
	l.mu.Unlock()
	if location == "" {
		return
	}

	sess, err := l.Store.GetSession(ctx, l.SessionID)
	if err != nil {
		return
	}

	scene, err := l.Manifest.Build(ctx, l.SessionID, location, sess.PlayerEntityKey)
	if err != nil {
		return
	}

	recentTurns, err := l.Store.ListRecentTurns(ctx, l.SessionID, 5)
	if err != nil {
		recentTurns = nil
	}
	locationFacts, err := l.Store.ListFactsAtLocation(ctx, l.SessionID, location)
	if err != nil {
		locationFacts = nil
	}

	predictions := predictor.Predict(predictor.Input{
		LocationKey:   location,
		Manifest:      scene,
		RecentTurns:   recentTurns,
		LocationFacts: locationFacts,
		MaxActions:    l.MaxActionsPerCycle,
	})

	var pairs []branchgen.Pair
	for _, action := range predictions {
		if skippedActionTypes[action.ActionType] {
			continue
		}

		targetFacts := locationFacts
		if action.TargetKey != "" {
			if tf, err := l.Store.ListFactsForSubject(ctx, l.SessionID, "entity", action.TargetKey); err == nil {
				targetFacts = append(append([]domain.Fact{}, locationFacts...), tf...)
			}
		}

		decisions := oracle.Decide(oracle.Input{Action: action, LocationKey: location, Facts: targetFacts})
		if len(decisions) > l.MaxGMDecisions && l.MaxGMDecisions > 0 {
			decisions = decisions[:l.MaxGMDecisions]
		}

		for _, decision := range decisions {
			key := domain.BranchKey(location, action.ActionType, action.TargetKey, decision.Name)
			if l.Cache.Has(key, sess.StateVersion) {
				continue
			}
			pairs = append(pairs, branchgen.Pair{Action: action, Decision: decision})
		}
	}

	if len(pairs) == 0 {
		return
	}

	branches := l.Generator.GenerateMany(ctx, l.SessionID, scene, pairs, recentTurns, sess.StateVersion)

	l.mu.Lock()
	stillCurrent := l.currentLocation == location
	l.mu.Unlock()
	if !stillCurrent {
		// The player moved on while these branches were generating;
		// discard rather than caching stale-location results, per
		// spec.md §5's cancellation rule.
		return
	}

	for _, b := range branches {
		l.Cache.Put(b)
	}
	l.mu.Lock()
	l.branchCount += int64(len(branches))
	l.mu.Unlock()
}
