package managers

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
	apperrors "github.com/quantumturn/engine/internal/errors"
	"github.com/quantumturn/engine/internal/store"
)

// FactManager records and retrieves world-knowledge facts.
type FactManager struct {
	store *store.Store
}

// Get returns the fact with key, translating a missing row into
// apperrors.CodeNotFound.
func (m *FactManager) Get(ctx context.Context, sessionID, key string) (domain.Fact, error) {
	f, err := m.store.GetFact(ctx, sessionID, key)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Fact{}, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("fact %q not found", key)).
			WithMetadata("fact_key", key)
	}
	return f, err
}

// Record upserts a fact about subjectType/subjectKey.
func (m *FactManager) Record(ctx context.Context, f domain.Fact) error {
	if f.Certainty < 0 || f.Certainty > 1 {
		return apperrors.New(apperrors.CodeValidationError, "certainty must be between 0 and 1").
			WithMetadata("fact_key", f.Key)
	}
	return m.store.UpsertFact(ctx, f)
}

// ForSubject returns every known fact about subjectType/subjectKey.
func (m *FactManager) ForSubject(ctx context.Context, sessionID, subjectType, subjectKey string) ([]domain.Fact, error) {
	return m.store.ListFactsForSubject(ctx, sessionID, subjectType, subjectKey)
}

// AtLocation returns every fact whose subject is the given location.
func (m *FactManager) AtLocation(ctx context.Context, sessionID, locationKey string) ([]domain.Fact, error) {
	return m.store.ListFactsAtLocation(ctx, sessionID, locationKey)
}
