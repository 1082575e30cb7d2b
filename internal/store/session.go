package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
)

// CreateSession inserts a new session record.
func (s *Store) CreateSession(ctx context.Context, sess domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, setting, player_entity_key, status, total_turns, state_version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Setting, sess.PlayerEntityKey, sess.Status, sess.TotalTurns, sess.StateVersion, toMillis(sess.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns the session with id, or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, setting, player_entity_key, status, total_turns, state_version, created_at
		 FROM sessions WHERE id = ?`, id)
	var sess domain.Session
	var createdAt int64
	err := row.Scan(&sess.ID, &sess.Setting, &sess.PlayerEntityKey, &sess.Status, &sess.TotalTurns, &sess.StateVersion, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	sess.CreatedAt = fromMillis(createdAt)
	return sess, nil
}

// BumpStateVersion increments the session's state_version by one and
// returns the new value. Every successful applied turn calls this
// exactly once, satisfying the state-version discipline property.
func (s *Store) BumpStateVersion(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state_version = state_version + 1 WHERE id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("bump state version: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return sess.StateVersion, nil
}

// IncrementTotalTurns bumps the session's total_turns counter by one.
func (s *Store) IncrementTotalTurns(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET total_turns = total_turns + 1 WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("increment total turns: %w", err)
	}
	return nil
}
