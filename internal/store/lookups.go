package store

import (
	"context"
	"errors"
)

// EntityExists reports whether key names a known entity in sessionID.
// Satisfies validate.Reader.
func (s *Store) EntityExists(ctx context.Context, sessionID, key string) (bool, error) {
	_, err := s.GetEntity(ctx, sessionID, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ItemHolder reports the current holder of item key, or exists=false
// if the item is unknown. Satisfies validate.Reader.
func (s *Store) ItemHolder(ctx context.Context, sessionID, key string) (holder string, exists bool, err error) {
	it, err := s.GetItem(ctx, sessionID, key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return it.HolderEntity, true, nil
}

// DeleteFact removes a fact row outright. Used by the collapse
// manager's rollback path to undo a fact that did not previously
// exist, since UpsertFact alone cannot express "never existed".
func (s *Store) DeleteFact(ctx context.Context, sessionID, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE session_id = ? AND key = ?`, sessionID, key)
	if err != nil {
		return err
	}
	return nil
}
