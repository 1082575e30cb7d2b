package managers

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/quantumturn/engine/internal/domain"
	apperrors "github.com/quantumturn/engine/internal/errors"
	"github.com/quantumturn/engine/internal/random"
	"github.com/quantumturn/engine/internal/store"
)

// firstMeetingFamiliarityMin/Max bound the forced familiarity bump
// applied the first time one entity's attitude toward another is
// recorded, per spec.md's "familiarity +10..+20".
const (
	firstMeetingFamiliarityMin = 10
	firstMeetingFamiliarityMax = 20
)

// rollFirstMeetingFamiliarity draws the first-meeting familiarity bump
// uniformly from [firstMeetingFamiliarityMin, firstMeetingFamiliarityMax],
// seeded via the kept internal/random primitive.
func rollFirstMeetingFamiliarity() (int, error) {
	seed, err := random.NewSeed()
	if err != nil {
		return 0, err
	}
	span := firstMeetingFamiliarityMax - firstMeetingFamiliarityMin + 1
	return firstMeetingFamiliarityMin + rand.New(rand.NewSource(seed)).Intn(span), nil
}

// RelationshipManager mutates directed attitude dimensions and appends
// the history trail validators and the narrator draw on.
type RelationshipManager struct {
	store *store.Store
}

// Get returns from's attitude toward to, defaulting to all-zero
// dimensions if the pair has never interacted.
func (m *RelationshipManager) Get(ctx context.Context, sessionID, from, to string) (domain.Relationship, error) {
	return m.store.GetRelationship(ctx, sessionID, from, to)
}

// ApplyDelta adjusts one dimension of from's attitude toward to by
// delta, clamps every dimension to [0,100], records the change in
// history, and forces a familiarity gain of 10-20 on a first meeting
// regardless of which dimension the caller targeted.
func (m *RelationshipManager) ApplyDelta(ctx context.Context, sessionID, from, to, dimension string, delta int, reason string) (domain.Relationship, error) {
	rel, err := m.store.GetRelationship(ctx, sessionID, from, to)
	if err != nil {
		return domain.Relationship{}, err
	}

	metBefore, err := m.store.HasMetBefore(ctx, sessionID, from, to)
	if err != nil {
		return domain.Relationship{}, err
	}

	if err := applyDimension(&rel.Dimensions, dimension, delta); err != nil {
		return domain.Relationship{}, err
	}

	familiarityBump := 0
	if !metBefore && dimension != "familiarity" {
		familiarityBump, err = rollFirstMeetingFamiliarity()
		if err != nil {
			return domain.Relationship{}, err
		}
		if err := applyDimension(&rel.Dimensions, "familiarity", familiarityBump); err != nil {
			return domain.Relationship{}, err
		}
	}
	rel.Dimensions = rel.Dimensions.Clamp()
	rel.FromEntity, rel.ToEntity, rel.SessionID = from, to, sessionID

	if err := m.store.UpsertRelationship(ctx, rel); err != nil {
		return domain.Relationship{}, err
	}

	if err := m.store.RecordRelationshipChange(ctx, domain.RelationshipChange{
		SessionID: sessionID, FromEntity: from, ToEntity: to,
		Dimension: dimension, Delta: delta, Reason: reason,
	}); err != nil {
		return domain.Relationship{}, err
	}
	if familiarityBump != 0 {
		if err := m.store.RecordRelationshipChange(ctx, domain.RelationshipChange{
			SessionID: sessionID, FromEntity: from, ToEntity: to,
			Dimension: "familiarity", Delta: familiarityBump, Reason: "first meeting",
		}); err != nil {
			return domain.Relationship{}, err
		}
	}

	return rel, nil
}

// applyDimension adds delta to the named dimension on d. An unrecognized
// dimension name returns a CodeValidationError instead of panicking,
// since dimension strings can originate from LLM tool-call JSON
// (internal/branchgen/tools) and must never crash a turn.
func applyDimension(d *domain.RelationshipDimensions, dimension string, delta int) error {
	switch dimension {
	case "trust":
		d.Trust += delta
	case "liking":
		d.Liking += delta
	case "respect":
		d.Respect += delta
	case "fear":
		d.Fear += delta
	case "familiarity":
		d.Familiarity += delta
	case "romantic_interest":
		d.RomanticInterest += delta
	default:
		return apperrors.New(apperrors.CodeValidationError, fmt.Sprintf("relationship: unknown dimension %q", dimension)).
			WithMetadata("dimension", dimension)
	}
	return nil
}
