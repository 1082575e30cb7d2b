package engineconfig_test

import (
	"testing"
	"time"

	"github.com/quantumturn/engine/internal/engineconfig"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := engineconfig.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.AnticipationEnabled {
		t.Errorf("AnticipationEnabled = false, want true")
	}
	if cfg.MaxActionsPerCycle != 5 {
		t.Errorf("MaxActionsPerCycle = %d, want 5", cfg.MaxActionsPerCycle)
	}
	if cfg.MinMatchConfidence != 0.7 {
		t.Errorf("MinMatchConfidence = %v, want 0.7", cfg.MinMatchConfidence)
	}
	if cfg.CacheTTL != 180*time.Second {
		t.Errorf("CacheTTL = %v, want 180s", cfg.CacheTTL)
	}
	if cfg.CycleDelay() != 500*time.Millisecond {
		t.Errorf("CycleDelay() = %v, want 500ms", cfg.CycleDelay())
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MAX_ACTIONS_PER_CYCLE", "9")
	t.Setenv("ANTICIPATION_ENABLED", "false")

	cfg, err := engineconfig.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxActionsPerCycle != 9 {
		t.Errorf("MaxActionsPerCycle = %d, want 9", cfg.MaxActionsPerCycle)
	}
	if cfg.AnticipationEnabled {
		t.Errorf("AnticipationEnabled = true, want false")
	}
}
