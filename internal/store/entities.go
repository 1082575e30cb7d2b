package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
)

// UpsertEntity inserts or replaces an entity by (session_id, key).
func (s *Store) UpsertEntity(ctx context.Context, e domain.Entity) error {
	attrsJSON, err := json.Marshal(e.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	appearanceJSON, err := json.Marshal(e.Appearance)
	if err != nil {
		return fmt.Errorf("marshal appearance: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (session_id, key, display_name, kind, is_alive, is_active, attributes_json, appearance_json, background, personality, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, key) DO UPDATE SET
		     display_name = excluded.display_name,
		     kind = excluded.kind,
		     is_alive = excluded.is_alive,
		     is_active = excluded.is_active,
		     attributes_json = excluded.attributes_json,
		     appearance_json = excluded.appearance_json,
		     background = excluded.background,
		     personality = excluded.personality,
		     updated_at = excluded.updated_at`,
		e.SessionID, e.Key, e.DisplayName, e.Kind, boolToInt(e.IsAlive), boolToInt(e.IsActive),
		string(attrsJSON), string(appearanceJSON), e.Background, e.Personality,
		toMillis(e.CreatedAt), toMillis(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}
	return nil
}

// GetEntity returns the entity with key in sessionID, or ErrNotFound.
func (s *Store) GetEntity(ctx context.Context, sessionID, key string) (domain.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, key, display_name, kind, is_alive, is_active, attributes_json, appearance_json, background, personality, created_at, updated_at
		 FROM entities WHERE session_id = ? AND key = ?`, sessionID, key)
	return scanEntity(row)
}

// ListEntities returns every entity in sessionID.
func (s *Store) ListEntities(ctx context.Context, sessionID string) ([]domain.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, key, display_name, kind, is_alive, is_active, attributes_json, appearance_json, background, personality, created_at, updated_at
		 FROM entities WHERE session_id = ? ORDER BY key`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (domain.Entity, error) {
	var e domain.Entity
	var isAlive, isActive int64
	var attrsJSON, appearanceJSON string
	var createdAt, updatedAt int64
	err := row.Scan(&e.SessionID, &e.Key, &e.DisplayName, &e.Kind, &isAlive, &isActive,
		&attrsJSON, &appearanceJSON, &e.Background, &e.Personality, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entity{}, ErrNotFound
	}
	if err != nil {
		return domain.Entity{}, fmt.Errorf("scan entity: %w", err)
	}
	e.IsAlive = intToBool(isAlive)
	e.IsActive = intToBool(isActive)
	if err := json.Unmarshal([]byte(attrsJSON), &e.Attributes); err != nil {
		return domain.Entity{}, fmt.Errorf("unmarshal attributes: %w", err)
	}
	if err := json.Unmarshal([]byte(appearanceJSON), &e.Appearance); err != nil {
		return domain.Entity{}, fmt.Errorf("unmarshal appearance: %w", err)
	}
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	return e, nil
}
