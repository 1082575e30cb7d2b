package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
)

// GetTimeState returns sessionID's clock, defaulting to day 1, 08:00,
// monday, clear if no row exists yet.
func (s *Store) GetTimeState(ctx context.Context, sessionID string) (domain.TimeState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT current_day, current_time, day_of_week, weather FROM time_state WHERE session_id = ?`, sessionID)
	ts := domain.TimeState{SessionID: sessionID}
	err := row.Scan(&ts.CurrentDay, &ts.CurrentTime, &ts.DayOfWeek, &ts.Weather)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TimeState{SessionID: sessionID, CurrentDay: 1, CurrentTime: "08:00", DayOfWeek: "monday", Weather: "clear"}, nil
	}
	if err != nil {
		return domain.TimeState{}, fmt.Errorf("get time state: %w", err)
	}
	return ts, nil
}

// UpsertTimeState persists the session's clock.
func (s *Store) UpsertTimeState(ctx context.Context, ts domain.TimeState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO time_state (session_id, current_day, current_time, day_of_week, weather)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (session_id) DO UPDATE SET
		     current_day = excluded.current_day,
		     current_time = excluded.current_time,
		     day_of_week = excluded.day_of_week,
		     weather = excluded.weather`,
		ts.SessionID, ts.CurrentDay, ts.CurrentTime, ts.DayOfWeek, ts.Weather,
	)
	if err != nil {
		return fmt.Errorf("upsert time state: %w", err)
	}
	return nil
}
