package hockeytech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/albapepper/scoracle-alerts/internal/game"
	"github.com/albapepper/scoracle-alerts/internal/provider"
)

type scheduleResponse struct {
	SiteKit struct {
		Gamesbydate []scheduleGame `json:"Gamesbydate"`
	} `json:"SiteKit"`
}

type scheduleGame struct {
	ID                string      `json:"id"`
	GameDateISO       string      `json:"GameDateISO8601"`
	Status            interface{} `json:"status"`
	Period            interface{} `json:"period"`
	Intermission      interface{} `json:"intermission"`
	HomeTeam          interface{} `json:"home_team"`
	HomeTeamCode      string      `json:"home_team_code"`
	HomeTeamName      string      `json:"home_team_name"`
	HomeTeamLogo      string      `json:"home_team_logo"`
	HomeGoalCount     interface{} `json:"home_goal_count"`
	VisitingTeam      interface{} `json:"visiting_team"`
	VisitingTeamCode  string      `json:"visiting_team_code"`
	VisitingTeamName  string      `json:"visiting_team_name"`
	VisitingTeamLogo  string      `json:"visiting_team_logo"`
	VisitingGoalCount interface{} `json:"visiting_goal_count"`
	VenueName         string      `json:"venue_name"`
}

// DailySchedule returns every game scheduled on the given calendar day.
func (c *Client) DailySchedule(ctx context.Context, league string, day time.Time) ([]game.Snapshot, error) {
	params := url.Values{}
	params.Set("feed", "modulekit")
	params.Set("view", "gamesbydate")
	params.Set("fetch_date", day.Format(time.DateOnly))

	body, err := c.get(ctx, league, params)
	if err != nil {
		return nil, err
	}

	var resp scheduleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}

	games := make([]game.Snapshot, 0, len(resp.SiteKit.Gamesbydate))
	for _, g := range resp.SiteKit.Gamesbydate {
		snap, err := toSnapshot(league, g)
		if err != nil {
			c.logger.Warn("Skipping malformed schedule entry",
				"league", league, "game_id", g.ID, "error", err)
			continue
		}
		games = append(games, snap)
	}
	return games, nil
}

func toSnapshot(league string, g scheduleGame) (game.Snapshot, error) {
	if g.ID == "" {
		return game.Snapshot{}, fmt.Errorf("missing game id")
	}
	start, err := time.Parse(time.RFC3339, g.GameDateISO)
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("parse start time %q: %w", g.GameDateISO, err)
	}

	snap := game.Snapshot{
		ID:             g.ID,
		League:         league,
		Status:         statusFromCode(g.Status),
		Intermission:   provider.ExtractBool(g.Intermission),
		ScheduledStart: start,
		Venue:          g.VenueName,
		HomeTeam: game.Team{
			ID:      provider.ExtractString(g.HomeTeam),
			Code:    g.HomeTeamCode,
			Name:    g.HomeTeamName,
			LogoURL: g.HomeTeamLogo,
		},
		AwayTeam: game.Team{
			ID:      provider.ExtractString(g.VisitingTeam),
			Code:    g.VisitingTeamCode,
			Name:    g.VisitingTeamName,
			LogoURL: g.VisitingTeamLogo,
		},
	}
	snap.HomeScore, _ = provider.ExtractInt(g.HomeGoalCount)
	snap.AwayScore, _ = provider.ExtractInt(g.VisitingGoalCount)
	if p, ok := provider.ExtractInt(g.Period); ok && p > 0 {
		snap.Period = &p
	}
	return snap, nil
}

// statusFromCode maps the feed's numeric status onto game.Status.
func statusFromCode(v interface{}) game.Status {
	code, _ := provider.ExtractInt(v)
	switch code {
	case 2:
		return game.StatusInProgress
	case 3:
		return game.StatusUnofficialFinal
	case 4:
		return game.StatusFinal
	default:
		return game.StatusNotStarted
	}
}
