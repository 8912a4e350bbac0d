package hockeytech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/albapepper/scoracle-alerts/internal/game"
	"github.com/albapepper/scoracle-alerts/internal/provider"
)

type summaryResponse struct {
	Details struct {
		ID         interface{} `json:"id"`
		Attendance interface{} `json:"attendance"`
	} `json:"details"`
	HomeTeam            summaryTeam `json:"homeTeam"`
	VisitingTeam        summaryTeam `json:"visitingTeam"`
	MostValuablePlayers []struct {
		Player map[string]interface{} `json:"player"`
	} `json:"mostValuablePlayers"`
	Referees []struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"referees"`
}

type summaryTeam struct {
	Stats struct {
		Shots interface{} `json:"shots"`
		Goals interface{} `json:"goals"`
	} `json:"stats"`
	Lineup struct {
		Goalies []map[string]interface{} `json:"goalies"`
		Skaters []map[string]interface{} `json:"skaters"`
	} `json:"lineup"`
}

// GameSummary returns shots, score, three stars and the announced lineups.
func (c *Client) GameSummary(ctx context.Context, league, gameID string) (*provider.Summary, error) {
	params := url.Values{}
	params.Set("feed", "statviewfeed")
	params.Set("view", "gameSummary")
	params.Set("game_id", gameID)

	body, err := c.get(ctx, league, params)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 || strings.EqualFold(string(body), "null") {
		return nil, provider.ErrNotFound
	}

	var resp summaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return toSummary(gameID, resp), nil
}

func toSummary(gameID string, resp summaryResponse) *provider.Summary {
	s := &provider.Summary{GameID: gameID}
	s.HomeShots, _ = provider.ExtractInt(resp.HomeTeam.Stats.Shots)
	s.AwayShots, _ = provider.ExtractInt(resp.VisitingTeam.Stats.Shots)
	s.HomeScore, _ = provider.ExtractInt(resp.HomeTeam.Stats.Goals)
	s.AwayScore, _ = provider.ExtractInt(resp.VisitingTeam.Stats.Goals)
	s.Attendance, _ = provider.ExtractInt(resp.Details.Attendance)

	for _, mvp := range resp.MostValuablePlayers {
		s.Stars = append(s.Stars, toPlayer(mvp.Player))
	}
	for _, r := range resp.Referees {
		s.Referees = append(s.Referees, strings.TrimSpace(r.FirstName+" "+r.LastName))
	}

	homeGoalie, homeOK := startingGoalie(resp.HomeTeam.Lineup.Goalies)
	awayGoalie, awayOK := startingGoalie(resp.VisitingTeam.Lineup.Goalies)
	if homeOK && awayOK {
		s.Lineups = &provider.Lineups{
			HomeGoalie:  homeGoalie,
			AwayGoalie:  awayGoalie,
			HomeSkaters: starters(resp.HomeTeam.Lineup.Skaters),
			AwaySkaters: starters(resp.VisitingTeam.Lineup.Skaters),
		}
	}
	return s
}

func startingGoalie(goalies []map[string]interface{}) (game.Player, bool) {
	for _, g := range goalies {
		if provider.ExtractBool(g["starting"]) {
			return toPlayer(g), true
		}
	}
	return game.Player{}, false
}

func starters(skaters []map[string]interface{}) []game.Player {
	var out []game.Player
	for _, s := range skaters {
		if provider.ExtractBool(s["starting"]) {
			out = append(out, toPlayer(s))
		}
	}
	return out
}
