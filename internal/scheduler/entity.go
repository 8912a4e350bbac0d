// Package scheduler owns the game-day entities: one per (league, day), each
// woken by a durable one-shot alarm to poll the day's games, dispatch new
// notifications, and decide when to wake next.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/albapepper/scoracle-alerts/internal/eventstate"
	"github.com/albapepper/scoracle-alerts/internal/game"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	previewLead      = 6 * time.Hour
	lineupsLead      = time.Hour
	fastPoll         = 3 * time.Minute
	intermissionPoll = 10 * time.Minute
	unofficialPoll   = 10 * time.Minute
	minSpacing       = 30 * time.Second
	purgeDelay       = 48 * time.Hour

	// dayGrace covers games that run past midnight before a day counts
	// as elapsed.
	dayGrace = 6 * time.Hour

	dayLayout = "2006-01-02"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Mode is a game-day entity's state.
type Mode string

const (
	ModeCheck Mode = "check"
	ModePurge Mode = "purge"
)

// Key identifies a game-day entity. Day is a calendar date (YYYY-MM-DD) in
// the league's time zone.
type Key struct {
	League string
	Day    string
}

func (k Key) String() string { return k.League + "/" + k.Day }

// ParseKey validates a day string and builds a Key.
func ParseKey(league, day string) (Key, error) {
	if _, err := time.Parse(dayLayout, day); err != nil {
		return Key{}, fmt.Errorf("invalid day %q: want YYYY-MM-DD", day)
	}
	return Key{League: league, Day: day}, nil
}

// Start returns midnight of the key's day in loc.
func (k Key) Start(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(dayLayout, k.Day, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// State is what an entity persists between alarms.
type State struct {
	Mode Mode

	// AlarmAt is the pending alarm as read by Load; zero when none is set.
	// Save ignores it; alarms change only through SetAlarm.
	AlarmAt time.Time
}

// Host is the durable home of entity state and alarms.
type Host interface {
	Load(ctx context.Context, key Key) (State, bool, error)
	Save(ctx context.Context, key Key, st State) error
	SetAlarm(ctx context.Context, key Key, at time.Time) error
	Delete(ctx context.Context, key Key) error
}

// --------------------------------------------------------------------------
// Wake rules
// --------------------------------------------------------------------------

// GameDeadline returns when a game next needs attention, or false when it
// no longer contributes a deadline. Nothing is owed once the day is over.
func GameDeadline(now time.Time, g game.Snapshot, st eventstate.GameState, sawNewEvents, dayOver bool) (time.Time, bool) {
	if dayOver {
		return time.Time{}, false
	}
	switch g.Status {
	case game.StatusNotStarted:
		until := g.ScheduledStart.Sub(now)
		if until > previewLead {
			return g.ScheduledStart.Add(-previewLead), true
		}
		if st.PostedPreview && !st.PostedLineups && until > lineupsLead {
			return g.ScheduledStart.Add(-lineupsLead), true
		}
		return now.Add(fastPoll), true

	case game.StatusInProgress:
		if g.Intermission && !sawNewEvents {
			return now.Add(intermissionPoll), true
		}
		return now.Add(fastPoll), true

	case game.StatusUnofficialFinal:
		return now.Add(unofficialPoll), true

	case game.StatusFinal:
		if st.PostedFinal {
			return time.Time{}, false
		}
		return now.Add(fastPoll), true
	}
	return time.Time{}, false
}

// NextWake picks the earliest deadline, no sooner than minSpacing from now.
// It returns false when there are no deadlines.
func NextWake(now time.Time, deadlines []time.Time) (time.Time, bool) {
	if len(deadlines) == 0 {
		return time.Time{}, false
	}
	next := deadlines[0]
	for _, d := range deadlines[1:] {
		if d.Before(next) {
			next = d
		}
	}
	if floor := now.Add(minSpacing); next.Before(floor) {
		next = floor
	}
	return next, true
}

// dayElapsed reports whether the key's day, plus grace, is over.
func dayElapsed(now time.Time, key Key, loc *time.Location) bool {
	return !now.Before(key.Start(loc).AddDate(0, 0, 1).Add(dayGrace))
}
