// Package provider defines the stats-provider boundary: the daily schedule,
// a game's play-by-play, and the summary used to compose messages.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/albapepper/scoracle-alerts/internal/game"
)

// ErrNotFound is returned when the provider has no record of a game.
var ErrNotFound = errors.New("provider: not found")

// Provider is implemented by every stats backend.
type Provider interface {
	DailySchedule(ctx context.Context, league string, day time.Time) ([]game.Snapshot, error)
	PlayByPlay(ctx context.Context, league, gameID string) ([]game.Play, error)
	GameSummary(ctx context.Context, league, gameID string) (*Summary, error)
}

// Summary is the detailed game data used for message composition.
type Summary struct {
	GameID     string
	HomeShots  int
	AwayShots  int
	HomeScore  int
	AwayScore  int
	Lineups    *Lineups
	Stars      []game.Player
	Referees   []string
	Attendance int
}

// Lineups lists the announced starters. Nil on Summary until announced.
type Lineups struct {
	HomeGoalie  game.Player
	AwayGoalie  game.Player
	HomeSkaters []game.Player
	AwaySkaters []game.Player
}
