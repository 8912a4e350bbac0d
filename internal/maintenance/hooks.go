package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/albapepper/scoracle-alerts/internal/config"
	"github.com/albapepper/scoracle-alerts/internal/scheduler"
)

// Refresher arms a game-day entity.
type Refresher interface {
	Refresh(ctx context.Context, key scheduler.Key) (bool, time.Time, error)
}

// UpcomingDays returns today's and tomorrow's keys for a league, with the
// calendar day taken in the league's time zone.
func UpcomingDays(league string, now time.Time) []scheduler.Key {
	lc, ok := config.LookupLeague(league)
	if !ok {
		return nil
	}
	local := now.In(lc.Location())
	return []scheduler.Key{
		{League: lc.ID, Day: local.Format(time.DateOnly)},
		{League: lc.ID, Day: local.AddDate(0, 0, 1).Format(time.DateOnly)},
	}
}

// RefreshUpcoming arms today and tomorrow for every league. Call at startup
// and from the refresh ticker; a day that is already armed keeps its mode and
// pending wake.
// Returns the number of days that had games.
func RefreshUpcoming(ctx context.Context, refresher Refresher, leagues []string, now time.Time, logger *slog.Logger) int {
	armed := 0
	for _, league := range leagues {
		for _, key := range UpcomingDays(league, now) {
			ok, next, err := refresher.Refresh(ctx, key)
			if err != nil {
				logger.Warn("Refresh: failed to arm game day",
					"league", key.League, "day", key.Day, "error", err)
				continue
			}
			if ok {
				armed++
				logger.Info("Refresh: game day armed",
					"league", key.League, "day", key.Day, "next_wake", next)
			}
		}
	}
	return armed
}
