package managers

import (
	"context"
	"fmt"

	"github.com/quantumturn/engine/internal/domain"
	"github.com/quantumturn/engine/internal/store"
)

var daysOfWeek = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// weatherRotation is the deterministic weather cycle applied on each
// day rollover. Scenario content can override a session's weather
// directly via UpsertTimeState; this is only the default progression.
var weatherRotation = []string{"clear", "overcast", "rain", "clear", "clear", "fog", "storm"}

// ScheduleReconciler moves NPCs to their scheduled locations when the
// clock advances. Declared here rather than depending on
// internal/content directly, since content would otherwise need to
// import managers for the NPC-moving capability it reconciles against
// — this interface breaks that cycle.
type ScheduleReconciler interface {
	Reconcile(ctx context.Context, sessionID, dayOfWeek, clockTime string) error
}

// TimeManager advances the session clock and triggers the needs decay
// that accompanies elapsed time.
type TimeManager struct {
	store      *store.Store
	needs      *NeedsManager
	reconciler ScheduleReconciler
}

// SetScheduleReconciler attaches the schedule reconciler Advance
// invokes after every clock update. Optional; a nil reconciler means
// no NPC is moved automatically.
func (m *TimeManager) SetScheduleReconciler(r ScheduleReconciler) {
	m.reconciler = r
}

func (m *TimeManager) Get(ctx context.Context, sessionID string) (domain.TimeState, error) {
	return m.store.GetTimeState(ctx, sessionID)
}

// Advance moves the session clock forward by minutes, rolling the day
// and weather over at midnight, and decays every tracked entity's
// needs for the whole hours elapsed.
func (m *TimeManager) Advance(ctx context.Context, sessionID string, minutes int, entityKeys []string) (domain.TimeState, error) {
	ts, err := m.store.GetTimeState(ctx, sessionID)
	if err != nil {
		return domain.TimeState{}, err
	}

	hour, min, err := parseClock(ts.CurrentTime)
	if err != nil {
		return domain.TimeState{}, fmt.Errorf("advance time: %w", err)
	}

	totalMinutes := hour*60 + min + minutes
	daysElapsed := totalMinutes / (24 * 60)
	totalMinutes %= 24 * 60
	ts.CurrentTime = fmt.Sprintf("%02d:%02d", totalMinutes/60, totalMinutes%60)

	if daysElapsed > 0 {
		ts.CurrentDay += daysElapsed
		ts.DayOfWeek = daysOfWeek[(dayOfWeekIndex(ts.DayOfWeek)+daysElapsed)%7]
		ts.Weather = weatherRotation[ts.CurrentDay%len(weatherRotation)]
	}

	if err := m.store.UpsertTimeState(ctx, ts); err != nil {
		return domain.TimeState{}, err
	}

	hoursElapsed := minutes / 60
	if hoursElapsed > 0 && m.needs != nil {
		for _, key := range entityKeys {
			if _, err := m.needs.Decay(ctx, sessionID, key, hoursElapsed); err != nil {
				return domain.TimeState{}, fmt.Errorf("decay needs for %q: %w", key, err)
			}
		}
	}

	if m.reconciler != nil {
		if err := m.reconciler.Reconcile(ctx, sessionID, ts.DayOfWeek, ts.CurrentTime); err != nil {
			return domain.TimeState{}, fmt.Errorf("reconcile schedules: %w", err)
		}
	}

	return ts, nil
}

func parseClock(clock string) (hour, minute int, err error) {
	if len(clock) != 5 || clock[2] != ':' {
		return 0, 0, fmt.Errorf("malformed clock %q", clock)
	}
	if _, err := fmt.Sscanf(clock, "%02d:%02d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("malformed clock %q: %w", clock, err)
	}
	return hour, minute, nil
}

func dayOfWeekIndex(day string) int {
	for i, d := range daysOfWeek {
		if d == day {
			return i
		}
	}
	return 0
}
