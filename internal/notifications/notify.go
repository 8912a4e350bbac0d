// Package notifications turns new game events into chat messages: it decides
// which subscribed channels receive each event, composes the message, and
// sends it under a supervised task per channel.
//
// Pipeline: route subscriptions → compose per event → dispatch per channel.
package notifications

import (
	"slices"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// hypeGraceMinutes absorbs irregular poll cadence around a threshold.
	hypeGraceMinutes = 5

	// deliveryTimeout bounds one channel's whole send sequence.
	deliveryTimeout = 2 * time.Minute

	// previewPollHours is how long the who-wins poll stays open if nothing
	// expires it earlier.
	previewPollHours = 24
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Category is a notification class a channel can opt into.
type Category string

const (
	CategoryPreview   Category = "preview"
	CategoryLineups   Category = "lineups"
	CategoryThreads   Category = "threads"
	CategoryStart     Category = "start"
	CategoryPeriods   Category = "periods"
	CategoryGoals     Category = "goals"
	CategoryPenalties Category = "penalties"
	CategoryEnd       Category = "end"
	CategoryFinal     Category = "final"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryPreview, CategoryLineups, CategoryThreads, CategoryStart,
	CategoryPeriods, CategoryGoals, CategoryPenalties, CategoryEnd, CategoryFinal,
}

// SendConfig holds a channel's independent per-category switches.
type SendConfig struct {
	Preview   bool `json:"preview"`
	Lineups   bool `json:"lineups"`
	Threads   bool `json:"threads"`
	Start     bool `json:"start"`
	Periods   bool `json:"periods"`
	Goals     bool `json:"goals"`
	Penalties bool `json:"penalties"`
	End       bool `json:"end"`
	Final     bool `json:"final"`
}

// Enabled reports whether the category is switched on.
func (c SendConfig) Enabled(cat Category) bool {
	switch cat {
	case CategoryPreview:
		return c.Preview
	case CategoryLineups:
		return c.Lineups
	case CategoryThreads:
		return c.Threads
	case CategoryStart:
		return c.Start
	case CategoryPeriods:
		return c.Periods
	case CategoryGoals:
		return c.Goals
	case CategoryPenalties:
		return c.Penalties
	case CategoryEnd:
		return c.End
	case CategoryFinal:
		return c.Final
	default:
		return false
	}
}

// Subscription is a chat channel following some of a league's teams.
type Subscription struct {
	ChannelID  string
	League     string
	TeamIDs    []string
	SendConfig SendConfig
	Active     bool
}

// Follows reports whether the subscription includes either team.
func (s Subscription) Follows(home, away string) bool {
	return slices.Contains(s.TeamIDs, home) || slices.Contains(s.TeamIDs, away)
}
