package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
)

// RecordTurn inserts an immutable turn row. turn_number must be the
// session's next expected number; callers are responsible for sourcing
// it from the session's total_turns.
func (s *Store) RecordTurn(ctx context.Context, t domain.Turn) error {
	mentionedJSON, err := json.Marshal(t.MentionedKeys)
	if err != nil {
		return fmt.Errorf("marshal mentioned keys: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO turns (session_id, turn_number, player_input, gm_response, mentioned_keys_json, is_ooc, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.TurnNumber, t.PlayerInput, t.GMResponse, string(mentionedJSON), boolToInt(t.IsOOC), toMillis(t.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// ListRecentTurns returns up to limit of the most recent turns for
// sessionID, oldest first.
func (s *Store) ListRecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, turn_number, player_input, gm_response, mentioned_keys_json, is_ooc, recorded_at
		 FROM turns WHERE session_id = ? ORDER BY turn_number DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	defer rows.Close()

	var reversed []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var mentionedJSON string
		var isOOC int64
		var recordedAt int64
		if err := rows.Scan(&t.SessionID, &t.TurnNumber, &t.PlayerInput, &t.GMResponse, &mentionedJSON, &isOOC, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if err := json.Unmarshal([]byte(mentionedJSON), &t.MentionedKeys); err != nil {
			return nil, fmt.Errorf("unmarshal mentioned keys: %w", err)
		}
		t.IsOOC = intToBool(isOOC)
		t.RecordedAt = fromMillis(recordedAt)
		reversed = append(reversed, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Turn, len(reversed))
	for i, t := range reversed {
		out[len(reversed)-1-i] = t
	}
	return out, nil
}

// GetTurn returns the turn with turnNumber, or ErrNotFound.
func (s *Store) GetTurn(ctx context.Context, sessionID string, turnNumber int) (domain.Turn, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, turn_number, player_input, gm_response, mentioned_keys_json, is_ooc, recorded_at
		 FROM turns WHERE session_id = ? AND turn_number = ?`, sessionID, turnNumber)
	var t domain.Turn
	var mentionedJSON string
	var isOOC int64
	var recordedAt int64
	err := row.Scan(&t.SessionID, &t.TurnNumber, &t.PlayerInput, &t.GMResponse, &mentionedJSON, &isOOC, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Turn{}, ErrNotFound
	}
	if err != nil {
		return domain.Turn{}, fmt.Errorf("get turn: %w", err)
	}
	if err := json.Unmarshal([]byte(mentionedJSON), &t.MentionedKeys); err != nil {
		return domain.Turn{}, fmt.Errorf("unmarshal mentioned keys: %w", err)
	}
	t.IsOOC = intToBool(isOOC)
	t.RecordedAt = fromMillis(recordedAt)
	return t, nil
}
