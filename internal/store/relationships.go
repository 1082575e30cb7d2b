package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
)

// GetRelationship returns the relationship from -> to, or a zero-value
// relationship with all dimensions at 0 if none exists yet (an absent
// relationship is meaningfully "no attitude formed", not an error).
func (s *Store) GetRelationship(ctx context.Context, sessionID, from, to string) (domain.Relationship, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT from_entity, to_entity, trust, liking, respect, fear, familiarity, romantic_interest
		 FROM relationships WHERE session_id = ? AND from_entity = ? AND to_entity = ?`, sessionID, from, to)
	var rel domain.Relationship
	rel.SessionID = sessionID
	err := row.Scan(&rel.FromEntity, &rel.ToEntity, &rel.Dimensions.Trust, &rel.Dimensions.Liking,
		&rel.Dimensions.Respect, &rel.Dimensions.Fear, &rel.Dimensions.Familiarity, &rel.Dimensions.RomanticInterest)
	if errors.Is(err, sql.ErrNoRows) {
		rel.FromEntity, rel.ToEntity = from, to
		return rel, nil
	}
	if err != nil {
		return domain.Relationship{}, fmt.Errorf("get relationship: %w", err)
	}
	return rel, nil
}

// UpsertRelationship writes the relationship's current dimensions.
func (s *Store) UpsertRelationship(ctx context.Context, rel domain.Relationship) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relationships (session_id, from_entity, to_entity, trust, liking, respect, fear, familiarity, romantic_interest)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, from_entity, to_entity) DO UPDATE SET
		     trust = excluded.trust,
		     liking = excluded.liking,
		     respect = excluded.respect,
		     fear = excluded.fear,
		     familiarity = excluded.familiarity,
		     romantic_interest = excluded.romantic_interest`,
		rel.SessionID, rel.FromEntity, rel.ToEntity, rel.Dimensions.Trust, rel.Dimensions.Liking,
		rel.Dimensions.Respect, rel.Dimensions.Fear, rel.Dimensions.Familiarity, rel.Dimensions.RomanticInterest,
	)
	if err != nil {
		return fmt.Errorf("upsert relationship: %w", err)
	}
	return nil
}

// RecordRelationshipChange appends a historical attitude-update row.
func (s *Store) RecordRelationshipChange(ctx context.Context, c domain.RelationshipChange) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relationship_changes (session_id, from_entity, to_entity, dimension, delta, reason, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.SessionID, c.FromEntity, c.ToEntity, c.Dimension, c.Delta, c.Reason, toMillis(c.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("record relationship change: %w", err)
	}
	return nil
}

// HasMetBefore reports whether any relationship_changes row exists for
// the (from, to) pair, used to detect a "first meeting".
func (s *Store) HasMetBefore(ctx context.Context, sessionID, from, to string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM relationship_changes WHERE session_id = ? AND from_entity = ? AND to_entity = ?`,
		sessionID, from, to)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("count relationship changes: %w", err)
	}
	return count > 0, nil
}
