package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
)

// UpsertItem inserts or replaces an item by (session_id, key).
func (s *Store) UpsertItem(ctx context.Context, it domain.Item) error {
	propsJSON, err := json.Marshal(it.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (session_id, key, display_name, kind, owner_entity, holder_entity, storage_location, owner_location, body_slot, body_layer, weight, condition, properties_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, key) DO UPDATE SET
		     display_name = excluded.display_name,
		     kind = excluded.kind,
		     owner_entity = excluded.owner_entity,
		     holder_entity = excluded.holder_entity,
		     storage_location = excluded.storage_location,
		     owner_location = excluded.owner_location,
		     body_slot = excluded.body_slot,
		     body_layer = excluded.body_layer,
		     weight = excluded.weight,
		     condition = excluded.condition,
		     properties_json = excluded.properties_json`,
		it.SessionID, it.Key, it.DisplayName, string(it.Kind), it.OwnerEntity, it.HolderEntity,
		it.StorageLocation, it.OwnerLocation, string(it.BodySlot), it.BodyLayer, it.Weight, it.Condition,
		string(propsJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

// GetItem returns the item with key in sessionID, or ErrNotFound.
func (s *Store) GetItem(ctx context.Context, sessionID, key string) (domain.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, key, display_name, kind, owner_entity, holder_entity, storage_location, owner_location, body_slot, body_layer, weight, condition, properties_json
		 FROM items WHERE session_id = ? AND key = ?`, sessionID, key)
	return scanItem(row)
}

// ListItemsAtLocation returns every item whose owner_location is locationKey.
func (s *Store) ListItemsAtLocation(ctx context.Context, sessionID, locationKey string) ([]domain.Item, error) {
	return s.queryItems(ctx,
		`SELECT session_id, key, display_name, kind, owner_entity, holder_entity, storage_location, owner_location, body_slot, body_layer, weight, condition, properties_json
		 FROM items WHERE session_id = ? AND owner_location = ? ORDER BY key`, sessionID, locationKey)
}

// ListItemsHeldBy returns every item currently held by entityKey.
func (s *Store) ListItemsHeldBy(ctx context.Context, sessionID, entityKey string) ([]domain.Item, error) {
	return s.queryItems(ctx,
		`SELECT session_id, key, display_name, kind, owner_entity, holder_entity, storage_location, owner_location, body_slot, body_layer, weight, condition, properties_json
		 FROM items WHERE session_id = ? AND holder_entity = ? ORDER BY key`, sessionID, entityKey)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanItem(row rowScanner) (domain.Item, error) {
	var it domain.Item
	var kind, slot string
	var propsJSON string
	err := row.Scan(&it.SessionID, &it.Key, &it.DisplayName, &kind, &it.OwnerEntity, &it.HolderEntity,
		&it.StorageLocation, &it.OwnerLocation, &slot, &it.BodyLayer, &it.Weight, &it.Condition, &propsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, ErrNotFound
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("scan item: %w", err)
	}
	it.Kind = domain.ItemKind(kind)
	it.BodySlot = domain.BodySlot(slot)
	if err := json.Unmarshal([]byte(propsJSON), &it.Properties); err != nil {
		return domain.Item{}, fmt.Errorf("unmarshal properties: %w", err)
	}
	return it, nil
}
