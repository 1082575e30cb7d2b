// Package engineconfig holds the process-wide configuration recognized
// by the turn engine, parsed from environment variables via
// github.com/caarlos0/env the way the rest of this codebase configures
// itself.
package engineconfig

import (
	"time"

	"github.com/quantumturn/engine/internal/platform/config"
)

// Config is the full set of recognized environment options.
type Config struct {
	AnticipationEnabled  bool          `env:"ANTICIPATION_ENABLED" envDefault:"true"`
	MaxActionsPerCycle   int           `env:"MAX_ACTIONS_PER_CYCLE" envDefault:"5"`
	MaxGMDecisions       int           `env:"MAX_GM_DECISIONS" envDefault:"2"`
	CycleDelaySeconds    float64       `env:"CYCLE_DELAY_SECONDS" envDefault:"0.5"`
	MinMatchConfidence   float64       `env:"MIN_MATCH_CONFIDENCE" envDefault:"0.7"`
	CacheSize            int           `env:"CACHE_SIZE" envDefault:"50"`
	CacheTTL             time.Duration `env:"CACHE_TTL" envDefault:"180s"`
	CacheCleanupInterval time.Duration `env:"CACHE_CLEANUP_INTERVAL" envDefault:"60s"`
	ReasoningBaseURL     string        `env:"REASONING_BASE_URL"`
	NarratorBaseURL      string        `env:"NARRATOR_BASE_URL"`
	LLMMaxTokens         int           `env:"LLM_MAX_TOKENS" envDefault:"1024"`
	LLMTimeoutSeconds    int           `env:"LLM_TIMEOUT_SECONDS" envDefault:"30"`
	DatabaseURL          string        `env:"DATABASE_URL" envDefault:"file:engine.db?_pragma=journal_mode(WAL)"`

	MaxRetries           int `env:"BRANCH_MAX_RETRIES" envDefault:"2"`
	MaxToolLoopRounds    int `env:"TOOL_LOOP_MAX_ROUNDS" envDefault:"10"`
	BranchFanout         int `env:"BRANCH_FANOUT" envDefault:"3"`
}

// Load parses Config from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// CycleDelay returns CycleDelaySeconds as a time.Duration.
func (c Config) CycleDelay() time.Duration {
	return time.Duration(c.CycleDelaySeconds * float64(time.Second))
}

// LLMTimeout returns LLMTimeoutSeconds as a time.Duration.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}
