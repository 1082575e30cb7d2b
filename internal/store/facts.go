package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
)

// UpsertFact inserts or replaces a fact by (session_id, key).
func (s *Store) UpsertFact(ctx context.Context, f domain.Fact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facts (session_id, key, subject_type, subject_key, predicate, value, is_secret, certainty)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, key) DO UPDATE SET
		     subject_type = excluded.subject_type,
		     subject_key = excluded.subject_key,
		     predicate = excluded.predicate,
		     value = excluded.value,
		     is_secret = excluded.is_secret,
		     certainty = excluded.certainty`,
		f.SessionID, f.Key, f.SubjectType, f.SubjectKey, f.Predicate, f.Value, boolToInt(f.IsSecret), f.Certainty,
	)
	if err != nil {
		return fmt.Errorf("upsert fact: %w", err)
	}
	return nil
}

// ListFactsForSubject returns every fact about (subjectType, subjectKey).
func (s *Store) ListFactsForSubject(ctx context.Context, sessionID, subjectType, subjectKey string) ([]domain.Fact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, key, subject_type, subject_key, predicate, value, is_secret, certainty
		 FROM facts WHERE session_id = ? AND subject_type = ? AND subject_key = ? ORDER BY key`,
		sessionID, subjectType, subjectKey)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	var out []domain.Fact
	for rows.Next() {
		var f domain.Fact
		var isSecret int64
		if err := rows.Scan(&f.SessionID, &f.Key, &f.SubjectType, &f.SubjectKey, &f.Predicate, &f.Value, &isSecret, &f.Certainty); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.IsSecret = intToBool(isSecret)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListFactsAtLocation returns every fact whose subject is the given location.
func (s *Store) ListFactsAtLocation(ctx context.Context, sessionID, locationKey string) ([]domain.Fact, error) {
	return s.ListFactsForSubject(ctx, sessionID, "location", locationKey)
}

// GetFact returns the fact with key, or ErrNotFound.
func (s *Store) GetFact(ctx context.Context, sessionID, key string) (domain.Fact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, key, subject_type, subject_key, predicate, value, is_secret, certainty
		 FROM facts WHERE session_id = ? AND key = ?`, sessionID, key)
	var f domain.Fact
	var isSecret int64
	err := row.Scan(&f.SessionID, &f.Key, &f.SubjectType, &f.SubjectKey, &f.Predicate, &f.Value, &isSecret, &f.Certainty)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Fact{}, ErrNotFound
	}
	if err != nil {
		return domain.Fact{}, fmt.Errorf("get fact: %w", err)
	}
	f.IsSecret = intToBool(isSecret)
	return f, nil
}
