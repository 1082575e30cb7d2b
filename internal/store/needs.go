package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
)

// GetNeeds returns entityKey's needs, defaulting every need to 50 if no
// row exists yet (a fresh character starts with moderate needs).
func (s *Store) GetNeeds(ctx context.Context, sessionID, entityKey string) (domain.CharacterNeeds, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT values_json, last_communicated_json, craving_json
		 FROM needs WHERE session_id = ? AND entity_key = ?`, sessionID, entityKey)
	var valuesJSON, lastJSON, cravingJSON string
	err := row.Scan(&valuesJSON, &lastJSON, &cravingJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return defaultNeeds(sessionID, entityKey), nil
	}
	if err != nil {
		return domain.CharacterNeeds{}, fmt.Errorf("get needs: %w", err)
	}

	needs := domain.CharacterNeeds{SessionID: sessionID, EntityKey: entityKey}
	if err := json.Unmarshal([]byte(valuesJSON), &needs.Values); err != nil {
		return domain.CharacterNeeds{}, fmt.Errorf("unmarshal need values: %w", err)
	}
	if err := json.Unmarshal([]byte(lastJSON), &needs.LastCommunicated); err != nil {
		return domain.CharacterNeeds{}, fmt.Errorf("unmarshal last communicated: %w", err)
	}
	if err := json.Unmarshal([]byte(cravingJSON), &needs.CravingIntensities); err != nil {
		return domain.CharacterNeeds{}, fmt.Errorf("unmarshal cravings: %w", err)
	}
	return needs, nil
}

func defaultNeeds(sessionID, entityKey string) domain.CharacterNeeds {
	values := make(map[domain.NeedKind]int, len(domain.AllNeeds))
	for _, n := range domain.AllNeeds {
		values[n] = 50
	}
	return domain.CharacterNeeds{
		SessionID:          sessionID,
		EntityKey:          entityKey,
		Values:             values,
		LastCommunicated:   map[domain.NeedKind]int{},
		CravingIntensities: map[domain.NeedKind]int{},
	}
}

// UpsertNeeds persists the full needs record for one entity.
func (s *Store) UpsertNeeds(ctx context.Context, n domain.CharacterNeeds) error {
	valuesJSON, err := json.Marshal(n.Values)
	if err != nil {
		return fmt.Errorf("marshal need values: %w", err)
	}
	lastJSON, err := json.Marshal(n.LastCommunicated)
	if err != nil {
		return fmt.Errorf("marshal last communicated: %w", err)
	}
	cravingJSON, err := json.Marshal(n.CravingIntensities)
	if err != nil {
		return fmt.Errorf("marshal cravings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO needs (session_id, entity_key, values_json, last_communicated_json, craving_json)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, entity_key) DO UPDATE SET
		     values_json = excluded.values_json,
		     last_communicated_json = excluded.last_communicated_json,
		     craving_json = excluded.craving_json`,
		n.SessionID, n.EntityKey, string(valuesJSON), string(lastJSON), string(cravingJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert needs: %w", err)
	}
	return nil
}
