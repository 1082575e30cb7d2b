package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
)

// UpsertLocation inserts or replaces a location by (session_id, key).
func (s *Store) UpsertLocation(ctx context.Context, loc domain.Location) error {
	exitsJSON, err := json.Marshal(loc.SpatialExits)
	if err != nil {
		return fmt.Errorf("marshal exits: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO locations (session_id, key, display_name, parent, category, exits_json)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, key) DO UPDATE SET
		     display_name = excluded.display_name,
		     parent = excluded.parent,
		     category = excluded.category,
		     exits_json = excluded.exits_json`,
		loc.SessionID, loc.Key, loc.DisplayName, loc.Parent, string(loc.Category), string(exitsJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}

// GetLocation returns the location with key in sessionID, or ErrNotFound.
func (s *Store) GetLocation(ctx context.Context, sessionID, key string) (domain.Location, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, key, display_name, parent, category, exits_json
		 FROM locations WHERE session_id = ? AND key = ?`, sessionID, key)
	var loc domain.Location
	var category, exitsJSON string
	err := row.Scan(&loc.SessionID, &loc.Key, &loc.DisplayName, &loc.Parent, &category, &exitsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Location{}, ErrNotFound
	}
	if err != nil {
		return domain.Location{}, fmt.Errorf("get location: %w", err)
	}
	loc.Category = domain.LocationCategory(category)
	if err := json.Unmarshal([]byte(exitsJSON), &loc.SpatialExits); err != nil {
		return domain.Location{}, fmt.Errorf("unmarshal exits: %w", err)
	}
	return loc, nil
}

// LocationExists reports whether key names a known location in sessionID.
func (s *Store) LocationExists(ctx context.Context, sessionID, key string) (bool, error) {
	_, err := s.GetLocation(ctx, sessionID, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
