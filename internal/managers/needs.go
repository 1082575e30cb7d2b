package managers

import (
	"context"

	"github.com/quantumturn/engine/internal/domain"
	apperrors "github.com/quantumturn/engine/internal/errors"
	"github.com/quantumturn/engine/internal/store"
)

// NeedsManager tracks and satisfies the ten scalar character needs.
type NeedsManager struct {
	store *store.Store
}

// SatisfactionQuality grades how well an action addressed a need.
type SatisfactionQuality string

const (
	QualityPoor      SatisfactionQuality = "poor"
	QualityAdequate  SatisfactionQuality = "adequate"
	QualityGood      SatisfactionQuality = "good"
	QualityExcellent SatisfactionQuality = "excellent"
)

// satisfactionDeltas maps satisfaction quality to the need-value gain
// it grants.
var satisfactionDeltas = map[SatisfactionQuality]int{
	QualityPoor:      5,
	QualityAdequate:  15,
	QualityGood:      25,
	QualityExcellent: 40,
}

// decayPerHour is the default per-need point loss for one in-game hour
// of elapsed time, applied by TimeManager.Advance.
const decayPerHour = 2

func (m *NeedsManager) Get(ctx context.Context, sessionID, entityKey string) (domain.CharacterNeeds, error) {
	return m.store.GetNeeds(ctx, sessionID, entityKey)
}

// Satisfy raises need by the delta satisfaction quality grants,
// clamped to [0,100], and clears the need's craving intensity.
func (m *NeedsManager) Satisfy(ctx context.Context, sessionID, entityKey string, need domain.NeedKind, quality SatisfactionQuality) (domain.CharacterNeeds, error) {
	delta, ok := satisfactionDeltas[quality]
	if !ok {
		return domain.CharacterNeeds{}, apperrors.New(apperrors.CodeValidationError, "unknown satisfaction quality").
			WithMetadata("quality", string(quality))
	}
	needs, err := m.store.GetNeeds(ctx, sessionID, entityKey)
	if err != nil {
		return domain.CharacterNeeds{}, err
	}
	needs.Values[need] = clampNeed(needs.Values[need] + delta)
	if needs.CravingIntensities == nil {
		needs.CravingIntensities = map[domain.NeedKind]int{}
	}
	needs.CravingIntensities[need] = 0
	if err := m.store.UpsertNeeds(ctx, needs); err != nil {
		return domain.CharacterNeeds{}, err
	}
	return needs, nil
}

// Decay reduces every need by decayPerHour * hours, increasing craving
// intensity on any need that drops to or below the manifest alert
// threshold. Called once by TimeManager.Advance with the number of
// whole hours elapsed.
func (m *NeedsManager) Decay(ctx context.Context, sessionID, entityKey string, hours int) (domain.CharacterNeeds, error) {
	needs, err := m.store.GetNeeds(ctx, sessionID, entityKey)
	if err != nil {
		return domain.CharacterNeeds{}, err
	}
	if needs.CravingIntensities == nil {
		needs.CravingIntensities = map[domain.NeedKind]int{}
	}
	for _, kind := range domain.AllNeeds {
		needs.Values[kind] = clampNeed(needs.Values[kind] - decayPerHour*hours)
		if needs.Values[kind] <= 25 {
			needs.CravingIntensities[kind]++
		}
	}
	if err := m.store.UpsertNeeds(ctx, needs); err != nil {
		return domain.CharacterNeeds{}, err
	}
	return needs, nil
}

func clampNeed(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
