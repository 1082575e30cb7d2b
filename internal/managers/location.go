package managers

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
	apperrors "github.com/quantumturn/engine/internal/errors"
	"github.com/quantumturn/engine/internal/store"
)

// LocationManager mutates Location records and the spatial exit graph.
type LocationManager struct {
	store *store.Store
}

// Get returns the location with key, translating a missing row into
// apperrors.CodeNotFound.
func (m *LocationManager) Get(ctx context.Context, sessionID, key string) (domain.Location, error) {
	loc, err := m.store.GetLocation(ctx, sessionID, key)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Location{}, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("location %q not found", key)).
			WithMetadata("location_key", key)
	}
	return loc, err
}

// LinkExit adds or replaces a directional exit from one location to
// another. Both endpoints must already exist.
func (m *LocationManager) LinkExit(ctx context.Context, sessionID, fromKey, direction, toKey string) error {
	from, err := m.Get(ctx, sessionID, fromKey)
	if err != nil {
		return err
	}
	exists, err := m.store.LocationExists(ctx, sessionID, toKey)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.New(apperrors.CodeScopeViolation, fmt.Sprintf("exit target %q does not exist", toKey)).
			WithMetadata("location_key", toKey)
	}
	if from.SpatialExits == nil {
		from.SpatialExits = map[string]string{}
	}
	from.SpatialExits[direction] = toKey
	return m.store.UpsertLocation(ctx, from)
}
