// Package mechanics implements the 2d10 skill-check engine: margin
// tiers, advantage/disadvantage, take-10 auto-success, and critical
// double-10/double-1 results. It is built directly atop the kept
// internal/core/dice and internal/core/check primitives rather than
// reimplementing a roller.
package mechanics

import (
	"github.com/quantumturn/engine/internal/core/check"
	"github.com/quantumturn/engine/internal/core/dice"
	"github.com/quantumturn/engine/internal/random"
)

// Mode selects how many d10s are rolled and how they are combined.
type Mode int

const (
	// Normal rolls 2d10 and sums both.
	Normal Mode = iota
	// Advantage rolls 3d10 and keeps the best 2.
	Advantage
	// Disadvantage rolls 3d10 and keeps the worst 2.
	Disadvantage
)

// Tier names the margin bracket a check result falls into.
type Tier string

const (
	TierExceptional     Tier = "exceptional"
	TierClearSuccess    Tier = "clear_success"
	TierNarrowSuccess   Tier = "narrow_success"
	TierBareSuccess     Tier = "bare_success"
	TierPartialFailure  Tier = "partial_failure"
	TierClearFailure    Tier = "clear_failure"
	TierCatastrophic    Tier = "catastrophic"
)

// marginTier buckets the margin (roll+mod-DC) into spec.md §4.4's seven bands.
func marginTier(margin int) Tier {
	switch {
	case margin >= 10:
		return TierExceptional
	case margin >= 5:
		return TierClearSuccess
	case margin >= 1:
		return TierNarrowSuccess
	case margin == 0:
		return TierBareSuccess
	case margin >= -4:
		return TierPartialFailure
	case margin >= -9:
		return TierClearFailure
	default:
		return TierCatastrophic
	}
}

// ProficiencyBonus maps a 0-100 skill rating to its additive bonus,
// per spec.md §4.4's mapping table.
func ProficiencyBonus(rating int) int {
	switch {
	case rating >= 100:
		return 5
	case rating >= 80:
		return 4
	case rating >= 60:
		return 3
	case rating >= 40:
		return 2
	case rating >= 20:
		return 1
	default:
		return 0
	}
}

// CheckRequest describes one skill check.
type CheckRequest struct {
	AttributeModifier int
	ProficiencyBonus  int
	DC                int
	Mode              Mode
	Seed              int64
}

// CheckResult is the outcome of a resolved skill check.
type CheckResult struct {
	Dice          []int // the two dice kept after advantage/disadvantage
	Total         int
	Margin        int
	Tier          Tier
	Success       bool
	IsCritical    bool
	CriticalKind  string // "success" or "failure", empty if not critical
	WasTake10     bool
}

// Resolve rolls (or auto-resolves via take-10) a skill check.
//
// Take-10: if DC <= 10 + modifier, no dice are consumed and the check
// auto-succeeds at the bare_success tier (spec.md §4.4 "no random
// number is consumed"). A real roll with a zero Seed draws a fresh
// seed from random.NewSeed.
func Resolve(req CheckRequest) (CheckResult, error) {
	modifier := req.AttributeModifier + req.ProficiencyBonus

	if req.DC <= 10+modifier {
		total := 10 + modifier
		return CheckResult{
			Total:     total,
			Margin:    check.Margin(total, req.DC),
			Tier:      TierBareSuccess,
			Success:   true,
			WasTake10: true,
		}, nil
	}

	count := 2
	if req.Mode != Normal {
		count = 3
	}

	seed := req.Seed
	if seed == 0 {
		s, err := random.NewSeed()
		if err != nil {
			return CheckResult{}, err
		}
		seed = s
	}

	result, err := dice.RollDice(dice.Request{
		Dice: []dice.Spec{{Sides: 10, Count: count}},
		Seed: seed,
	})
	if err != nil {
		return CheckResult{}, err
	}

	rolled := result.Rolls[0].Results
	kept := keepDice(rolled, req.Mode)

	total := kept[0] + kept[1] + modifier
	margin := check.Margin(total, req.DC)
	tier := marginTier(margin)

	res := CheckResult{
		Dice:    kept,
		Total:   total,
		Margin:  margin,
		Tier:    tier,
		Success: check.MeetsDifficulty(total, req.DC),
	}

	if kept[0] == 10 && kept[1] == 10 {
		res.IsCritical = true
		res.CriticalKind = "success"
		res.Success = true
	} else if kept[0] == 1 && kept[1] == 1 {
		res.IsCritical = true
		res.CriticalKind = "failure"
		res.Success = false
	}

	return res, nil
}

// keepDice selects the two dice that count toward the total, applying
// advantage (best 2 of 3) or disadvantage (worst 2 of 3).
func keepDice(rolled []int, mode Mode) []int {
	if mode == Normal {
		return []int{rolled[0], rolled[1]}
	}

	sorted := append([]int(nil), rolled...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	if mode == Advantage {
		// best 2: the two highest values.
		return []int{sorted[len(sorted)-2], sorted[len(sorted)-1]}
	}
	// Disadvantage: the two lowest values.
	return []int{sorted[0], sorted[1]}
}
