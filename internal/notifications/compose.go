package notifications

import (
	"fmt"
	"strings"

	"github.com/albapepper/scoracle-alerts/internal/discord"
	"github.com/albapepper/scoracle-alerts/internal/game"
	"github.com/albapepper/scoracle-alerts/internal/provider"
)

// Score is a running score at some point in a game.
type Score struct {
	Home int
	Away int
}

// RunningScores returns the score immediately after each goal in a
// timeline, keyed by the goal's identity.
func RunningScores(entries []game.Entry, homeTeamID string) map[string]Score {
	scores := make(map[string]Score)
	var s Score
	for _, e := range entries {
		g, ok := e.Event.(game.Goal)
		if !ok {
			continue
		}
		if g.TeamID == homeTeamID {
			s.Home++
		} else {
			s.Away++
		}
		scores[game.Identity(g)] = s
	}
	return scores
}

// Composer builds chat messages for a game.
type Composer struct {
	catalog Catalog
}

// NewComposer creates a Composer over an immutable catalog.
func NewComposer(catalog Catalog) *Composer {
	return &Composer{catalog: catalog}
}

// ThreadName is the discussion thread title for a game.
func (c *Composer) ThreadName(g game.Snapshot) string {
	return fmt.Sprintf("%s @ %s · %s", teamLabel(g.AwayTeam), teamLabel(g.HomeTeam),
		g.ScheduledStart.Format("Jan 2"))
}

// Preview announces an upcoming game, optionally with a who-wins poll.
func (c *Composer) Preview(g game.Snapshot, withPoll bool) discord.Message {
	embed := c.embed(g, g.HomeTeam)
	embed.Title = fmt.Sprintf("%s @ %s", g.AwayTeam.Name, g.HomeTeam.Name)
	embed.Description = fmt.Sprintf("Puck drop <t:%d:F> (<t:%d:R>)",
		g.ScheduledStart.Unix(), g.ScheduledStart.Unix())
	if g.Venue != "" {
		embed.Fields = append(embed.Fields, discord.EmbedField{Name: "Venue", Value: g.Venue, Inline: true})
	}

	msg := discord.Message{Content: "📅 **Game day**", Embeds: []discord.Embed{embed}}
	if withPoll {
		msg.Poll = &discord.Poll{
			Question: discord.PollMedia{Text: "Who wins?"},
			Answers: []discord.PollAnswer{
				{PollMedia: discord.PollMedia{Text: g.AwayTeam.Name}},
				{PollMedia: discord.PollMedia{Text: g.HomeTeam.Name}},
			},
			Duration: previewPollHours,
		}
	}
	return msg
}

// Hype is a "starts soon" reminder for a threshold.
func (c *Composer) Hype(g game.Snapshot, minutes int) discord.Message {
	return discord.Message{
		Content: fmt.Sprintf("⏰ %s @ %s starts in %s!",
			teamLabel(g.AwayTeam), teamLabel(g.HomeTeam), humanMinutes(minutes)),
	}
}

// Lineups lists the announced starters.
func (c *Composer) Lineups(g game.Snapshot, l provider.Lineups) discord.Message {
	embed := c.embed(g, g.HomeTeam)
	embed.Title = "Starting lineups"
	embed.Fields = []discord.EmbedField{
		{Name: g.AwayTeam.Name, Value: lineupText(l.AwayGoalie, l.AwaySkaters), Inline: true},
		{Name: g.HomeTeam.Name, Value: lineupText(l.HomeGoalie, l.HomeSkaters), Inline: true},
	}
	return discord.Message{Embeds: []discord.Embed{embed}}
}

// Event composes the message for a timeline event. It returns false for
// events that never produce a message.
func (c *Composer) Event(g game.Snapshot, e game.Event, score *Score) (discord.Message, bool) {
	switch v := e.(type) {
	case game.PeriodStart:
		return c.periodStart(g, v), true
	case game.PeriodEnd:
		return c.periodEnd(g, v), true
	case game.Goal:
		return c.goal(g, v, score), true
	case game.Penalty:
		return c.penalty(g, v), true
	default:
		return discord.Message{}, false
	}
}

// Final is the post-game summary once the result is official.
func (c *Composer) Final(g game.Snapshot, sum *provider.Summary) discord.Message {
	winner := g.HomeTeam
	if g.AwayScore > g.HomeScore {
		winner = g.AwayTeam
	}
	embed := c.embed(g, winner)
	embed.Title = fmt.Sprintf("Final: %s %d, %s %d",
		g.AwayTeam.Name, g.AwayScore, g.HomeTeam.Name, g.HomeScore)

	if sum != nil {
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name:   "Shots",
			Value:  fmt.Sprintf("%s %d · %s %d", teamLabel(g.AwayTeam), sum.AwayShots, teamLabel(g.HomeTeam), sum.HomeShots),
			Inline: true,
		})
		if len(sum.Stars) > 0 {
			var b strings.Builder
			for i, p := range sum.Stars {
				fmt.Fprintf(&b, "%s %s\n", strings.Repeat("⭐", i+1), p.Name)
			}
			embed.Fields = append(embed.Fields, discord.EmbedField{Name: "Three stars", Value: b.String()})
		}
		if sum.Attendance > 0 {
			embed.Footer = &discord.EmbedFooter{Text: fmt.Sprintf("Attendance %d", sum.Attendance)}
		}
	}
	return discord.Message{Content: "🏁 **Final**", Embeds: []discord.Embed{embed}}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (c *Composer) periodStart(g game.Snapshot, e game.PeriodStart) discord.Message {
	if e.Period.ID == 1 {
		return discord.Message{Content: fmt.Sprintf("🏒 Puck drop! %s @ %s is underway.",
			teamLabel(g.AwayTeam), teamLabel(g.HomeTeam))}
	}
	return discord.Message{Content: fmt.Sprintf("▶️ %s period underway. %s",
		e.Period.Name, scoreLine(g, Score{Home: g.HomeScore, Away: g.AwayScore}))}
}

func (c *Composer) periodEnd(g game.Snapshot, e game.PeriodEnd) discord.Message {
	current := Score{Home: g.HomeScore, Away: g.AwayScore}
	if e.Final {
		return discord.Message{Content: fmt.Sprintf("🔔 Game over! %s", scoreLine(g, current))}
	}
	return discord.Message{Content: fmt.Sprintf("⏸️ End of the %s period. %s", e.Period.Name, scoreLine(g, current))}
}

func (c *Composer) goal(g game.Snapshot, e game.Goal, score *Score) discord.Message {
	team := teamByID(g, e.TeamID)
	embed := c.embed(g, team)

	var tags []string
	if e.PowerPlay {
		tags = append(tags, "PPG")
	}
	if e.ShortHanded {
		tags = append(tags, "SHG")
	}
	if e.EmptyNet {
		tags = append(tags, "ENG")
	}
	if e.PenaltyShot {
		tags = append(tags, "PS")
	}
	title := fmt.Sprintf("🚨 %s goal!", team.Name)
	if len(tags) > 0 {
		title += " (" + strings.Join(tags, ", ") + ")"
	}
	embed.Title = title

	desc := playerLabel(e.Scorer)
	if len(e.Assists) > 0 {
		names := make([]string, len(e.Assists))
		for i, a := range e.Assists {
			names[i] = a.Name
		}
		desc += "\nAssists: " + strings.Join(names, ", ")
	} else {
		desc += "\nUnassisted"
	}
	embed.Description = desc
	embed.Footer = &discord.EmbedFooter{Text: clockLabel(e.Period, e.Elapsed)}
	if score != nil {
		embed.Fields = []discord.EmbedField{{Name: "Score", Value: scoreLine(g, *score)}}
	}
	return discord.Message{Embeds: []discord.Embed{embed}}
}

func (c *Composer) penalty(g game.Snapshot, e game.Penalty) discord.Message {
	team := teamByID(g, e.TeamID)
	embed := c.embed(g, team)
	embed.Title = fmt.Sprintf("%s %s penalty", c.catalog.OffenceIcon(e.Offence), team.Name)
	embed.Description = fmt.Sprintf("%s: %s, %s minutes", playerLabel(e.TakenBy), e.Offence, minutesLabel(e.Minutes))
	if e.ServedBy.ID != "" && e.ServedBy.ID != e.TakenBy.ID {
		embed.Description += "\nServed by " + e.ServedBy.Name
	}
	embed.Footer = &discord.EmbedFooter{Text: clockLabel(e.Period, e.Elapsed)}
	return discord.Message{Embeds: []discord.Embed{embed}}
}

func (c *Composer) embed(g game.Snapshot, team game.Team) discord.Embed {
	e := discord.Embed{Color: c.catalog.TeamColor(g.League, team.Code)}
	if team.LogoURL != "" {
		e.Thumbnail = &discord.EmbedImage{URL: team.LogoURL}
	}
	return e
}

func teamByID(g game.Snapshot, id string) game.Team {
	if id == g.AwayTeam.ID {
		return g.AwayTeam
	}
	return g.HomeTeam
}

func teamLabel(t game.Team) string {
	if t.Code != "" {
		return t.Code
	}
	return t.Name
}

func playerLabel(p game.Player) string {
	if p.Number != "" {
		return fmt.Sprintf("#%s %s", p.Number, p.Name)
	}
	return p.Name
}

func scoreLine(g game.Snapshot, s Score) string {
	return fmt.Sprintf("%s %d, %s %d", teamLabel(g.AwayTeam), s.Away, teamLabel(g.HomeTeam), s.Home)
}

func clockLabel(p game.Period, elapsed int) string {
	return fmt.Sprintf("%s · %d:%02d", p.Name, elapsed/60, elapsed%60)
}

func minutesLabel(m float64) string {
	if m == float64(int(m)) {
		return fmt.Sprintf("%d", int(m))
	}
	return fmt.Sprintf("%.1f", m)
}

func humanMinutes(m int) string {
	switch {
	case m >= 60 && m%60 == 0:
		if m == 60 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", m/60)
	case m == 1:
		return "1 minute"
	default:
		return fmt.Sprintf("%d minutes", m)
	}
}

func lineupText(goalie game.Player, skaters []game.Player) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🥅 %s\n", playerLabel(goalie))
	for _, s := range skaters {
		fmt.Fprintf(&b, "%s\n", playerLabel(s))
	}
	return b.String()
}
