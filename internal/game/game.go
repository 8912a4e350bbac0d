// Package game holds the provider-neutral shapes the notifier works with:
// game snapshots, play-by-play plays, and the timeline events built from them.
package game

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// PeriodLength is the normalized length of every period, overtime included.
const PeriodLength = 1200

// Regulation is the number of regulation periods in a hockey game.
const Regulation = 3

// --------------------------------------------------------------------------
// Snapshot
// --------------------------------------------------------------------------

// Status is a game's lifecycle state as reported by the provider.
type Status int

const (
	StatusNotStarted Status = iota
	StatusInProgress
	StatusUnofficialFinal
	StatusFinal
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusInProgress:
		return "in_progress"
	case StatusUnofficialFinal:
		return "unofficial_final"
	case StatusFinal:
		return "final"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further play can happen.
func (s Status) Terminal() bool {
	return s == StatusUnofficialFinal || s == StatusFinal
}

// Snapshot is a point-in-time summary of one game, superseded by every poll.
type Snapshot struct {
	ID             string
	League         string
	Status         Status
	Period         *int
	Intermission   bool
	HomeTeam       Team
	AwayTeam       Team
	HomeScore      int
	AwayScore      int
	ScheduledStart time.Time
	Venue          string
}

// Team is the minimal team identity used for routing and display.
type Team struct {
	ID      string
	Code    string
	Name    string
	LogoURL string
}

// Participants returns the home and away team ids.
func (s Snapshot) Participants() (home, away string) {
	return s.HomeTeam.ID, s.AwayTeam.ID
}

// Player is a skater or goalie referenced by a play.
type Player struct {
	ID     string
	Name   string
	Number string
}
