// Command engine is the composition root for the quantum branching
// turn pipeline: it wires configuration, storage, the manager layer,
// the LLM gateway, and every pipeline stage into one turnpipeline.Engine
// per session and drives a simple stdin/stdout turn loop. Grounded on
// the teacher's cmd/game/main.go shape: flag parsing, a signal-derived
// context, and a thin main that delegates to the wired components.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantumturn/engine/internal/anticipation"
	"github.com/quantumturn/engine/internal/branchcache"
	"github.com/quantumturn/engine/internal/branchgen"
	"github.com/quantumturn/engine/internal/collapse"
	"github.com/quantumturn/engine/internal/domain"
	"github.com/quantumturn/engine/internal/engineconfig"
	"github.com/quantumturn/engine/internal/idgen"
	"github.com/quantumturn/engine/internal/llmgateway"
	"github.com/quantumturn/engine/internal/llmgateway/openaicompat"
	"github.com/quantumturn/engine/internal/manifest"
	"github.com/quantumturn/engine/internal/managers"
	"github.com/quantumturn/engine/internal/platform/config"
	"github.com/quantumturn/engine/internal/platform/otel"
	"github.com/quantumturn/engine/internal/store"
	"github.com/quantumturn/engine/internal/turnpipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := engineconfig.Load()
	if err != nil {
		config.Exitf("load config: %v", err)
	}

	shutdownOtel, err := otel.Setup(ctx, "quantumturn-engine")
	if err != nil {
		config.Exitf("setup otel: %v", err)
	}
	defer shutdownOtel(ctx)

	s, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		config.Exitf("open store: %v", err)
	}
	defer s.Close()

	mgrs := managers.New(s)
	manifestBuilder := manifest.New(s)

	gateway, err := buildGateway(cfg)
	if err != nil {
		config.Exitf("build llm gateway: %v", err)
	}

	cache, err := branchcache.New(cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		config.Exitf("build branch cache: %v", err)
	}
	cache.StartCleanup(cfg.CacheCleanupInterval)
	defer cache.Stop()

	generator := branchgen.New(gateway, s, cfg.MaxRetries, cfg.LLMMaxTokens, cfg.BranchFanout)
	collapseManager := collapse.New(s, mgrs)

	sessionID, err := ensureSession(ctx, s)
	if err != nil {
		config.Exitf("ensure session: %v", err)
	}

	var loop *anticipation.Loop
	if cfg.AnticipationEnabled {
		loop = &anticipation.Loop{
			SessionID:          sessionID,
			Store:              s,
			Manifest:           manifestBuilder,
			Generator:          generator,
			Cache:              cache,
			MaxActionsPerCycle: cfg.MaxActionsPerCycle,
			MaxGMDecisions:     cfg.MaxGMDecisions,
			CycleDelay:         cfg.CycleDelay(),
		}
		loop.Start(ctx)
	}

	engine := turnpipeline.New(sessionID, s, manifestBuilder, cache, generator, collapseManager, loop, cfg.MinMatchConfidence, cfg.MaxActionsPerCycle)
	defer engine.Shutdown()

	runTurnLoop(ctx, engine, s, sessionID)
}

// buildGateway constructs a narrator/reasoner Gateway from the
// OpenAI-compatible endpoints configured via REASONING_BASE_URL and
// NARRATOR_BASE_URL, falling back to a single provider for both roles
// when only one is configured, per spec.md §9's "dual-model separation
// ... present in configuration but not active" note.
func buildGateway(cfg engineconfig.Config) (*llmgateway.Gateway, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	if cfg.NarratorBaseURL == "" || cfg.ReasoningBaseURL == "" {
		opts := []openaicompat.Option{}
		if baseURL := cfg.NarratorBaseURL + cfg.ReasoningBaseURL; baseURL != "" {
			opts = append(opts, openaicompat.WithBaseURL(baseURL))
		}
		single, err := openaicompat.New(apiKey, model, opts...)
		if err != nil {
			return nil, err
		}
		return llmgateway.New(single, single, cfg.MaxRetries), nil
	}

	narratorOpts := []openaicompat.Option{}
	if cfg.NarratorBaseURL != "" {
		narratorOpts = append(narratorOpts, openaicompat.WithBaseURL(cfg.NarratorBaseURL))
	}
	narrator, err := openaicompat.New(apiKey, model, narratorOpts...)
	if err != nil {
		return nil, err
	}

	reasonerOpts := []openaicompat.Option{}
	if cfg.ReasoningBaseURL != "" {
		reasonerOpts = append(reasonerOpts, openaicompat.WithBaseURL(cfg.ReasoningBaseURL))
	}
	reasoner, err := openaicompat.New(apiKey, model, reasonerOpts...)
	if err != nil {
		return nil, err
	}

	return llmgateway.New(narrator, reasoner, cfg.MaxRetries), nil
}

// ensureSession returns the one session this process drives, creating
// a fresh one on first run. A single-process CLI collaborator only
// ever needs one active session at a time, per spec.md §1's scope.
func ensureSession(ctx context.Context, s *store.Store) (string, error) {
	const defaultSessionID = "default"
	if _, err := s.GetSession(ctx, defaultSessionID); err == nil {
		return defaultSessionID, nil
	}

	playerKey, err := idgen.New()
	if err != nil {
		return "", err
	}

	if err := s.CreateSession(ctx, domain.Session{
		ID:              defaultSessionID,
		Setting:         "default",
		PlayerEntityKey: playerKey,
		Status:          "active",
		StateVersion:    1,
	}); err != nil {
		return "", err
	}

	if err := s.UpsertEntity(ctx, domain.Entity{
		SessionID:   defaultSessionID,
		Key:         playerKey,
		DisplayName: "You",
		Kind:        domain.EntityPlayer,
		IsAlive:     true,
		IsActive:    true,
	}); err != nil {
		return "", err
	}

	return defaultSessionID, nil
}

// runTurnLoop reads player input from stdin and drives process_turn
// until the context is cancelled or stdin closes.
func runTurnLoop(ctx context.Context, engine *turnpipeline.Engine, s *store.Store, sessionID string) {
	scanner := bufio.NewScanner(os.Stdin)
	turnNumber := 1
	currentLocation := os.Getenv("QUANTUMTURN_START_LOCATION")
	if currentLocation == "" {
		currentLocation = "start"
	}

	fmt.Println("quantum branching turn pipeline engine ready.")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		input := scanner.Text()
		if input == "" {
			continue
		}

		result := engine.ProcessTurn(ctx, input, currentLocation, turnNumber)
		fmt.Println(result.Narrative)
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "turn error: %s\n", e)
		}
		turnNumber++
	}
}
