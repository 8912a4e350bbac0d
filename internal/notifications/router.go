package notifications

import (
	"slices"

	"github.com/albapepper/scoracle-alerts/internal/game"
)

// Recipients is the routing table for one game: for each category, the
// de-duplicated channel ids that opted in and follow either participant.
type Recipients map[Category][]string

// Route resolves the recipients of a game from the league's subscriptions.
// Inactive subscriptions are ignored. Channel order follows subscription
// order.
func Route(subs []Subscription, home, away string) Recipients {
	r := make(Recipients, len(Categories))
	for _, s := range subs {
		if !s.Active || !s.Follows(home, away) {
			continue
		}
		for _, cat := range Categories {
			if s.SendConfig.Enabled(cat) && !slices.Contains(r[cat], s.ChannelID) {
				r[cat] = append(r[cat], s.ChannelID)
			}
		}
	}
	return r
}

// For returns the channels enabled for a category.
func (r Recipients) For(cat Category) []string {
	return r[cat]
}

// Empty reports whether no channel follows the game at all.
func (r Recipients) Empty() bool {
	for _, ids := range r {
		if len(ids) > 0 {
			return false
		}
	}
	return true
}

// PeriodStart returns the channels notified of a period opening. The first
// period doubles as the game start, so start channels join it.
func (r Recipients) PeriodStart(periodID int) []string {
	if periodID == 1 {
		return union(r[CategoryPeriods], r[CategoryStart])
	}
	return r[CategoryPeriods]
}

// PeriodEnd returns the channels notified of a period closing. The trailing
// marker of a finished game also goes to end channels.
func (r Recipients) PeriodEnd(final bool) []string {
	if final {
		return union(r[CategoryPeriods], r[CategoryEnd])
	}
	return r[CategoryPeriods]
}

// ForEvent returns the channels notified of a timeline event. Plays that no
// category covers return nil.
func (r Recipients) ForEvent(e game.Event) []string {
	switch v := e.(type) {
	case game.PeriodStart:
		return r.PeriodStart(v.Period.ID)
	case game.PeriodEnd:
		return r.PeriodEnd(v.Final)
	case game.Goal:
		return r[CategoryGoals]
	case game.Penalty:
		return r[CategoryPenalties]
	default:
		return nil
	}
}

// PreviewThreads returns the channels whose discussion thread opens on the
// preview message.
func (r Recipients) PreviewThreads() []string {
	return intersect(r[CategoryThreads], r[CategoryPreview])
}

// StartThreads returns the channels whose discussion thread opens with the
// game start. Channels that already got one on the preview are excluded when
// the preview was posted.
func (r Recipients) StartThreads(previewPosted bool) []string {
	if !previewPosted {
		return r[CategoryThreads]
	}
	return difference(r[CategoryThreads], r[CategoryPreview])
}

func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, id := range b {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func intersect(a, b []string) []string {
	var out []string
	for _, id := range a {
		if slices.Contains(b, id) {
			out = append(out, id)
		}
	}
	return out
}

func difference(a, b []string) []string {
	var out []string
	for _, id := range a {
		if !slices.Contains(b, id) {
			out = append(out, id)
		}
	}
	return out
}
