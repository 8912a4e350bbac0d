package hockeytech

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/albapepper/scoracle-alerts/internal/game"
	"github.com/albapepper/scoracle-alerts/internal/provider"
)

type rawPlay struct {
	Event   string                 `json:"event"`
	Details map[string]interface{} `json:"details"`
}

// PlayByPlay returns a game's plays in provider order. Plays whose period or
// clock cannot be parsed are logged and skipped.
func (c *Client) PlayByPlay(ctx context.Context, league, gameID string) ([]game.Play, error) {
	params := url.Values{}
	params.Set("feed", "statviewfeed")
	params.Set("view", "gameCenterPlayByPlay")
	params.Set("game_id", gameID)

	body, err := c.get(ctx, league, params)
	if err != nil {
		return nil, err
	}
	return decodePlays(body, c.logger.With("league", league, "game_id", gameID))
}

func decodePlays(body []byte, logger *slog.Logger) ([]game.Play, error) {
	var raw []rawPlay
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode play-by-play: %w", err)
	}

	plays := make([]game.Play, 0, len(raw))
	for i, r := range raw {
		p, err := toPlay(i, r)
		if err != nil {
			logger.Warn("Skipping malformed play", "index", i, "event", r.Event, "error", err)
			continue
		}
		plays = append(plays, p)
	}
	return plays, nil
}

func toPlay(index int, r rawPlay) (game.Play, error) {
	d := r.Details
	if d == nil {
		d = map[string]interface{}{}
	}

	info := game.PlayInfo{Index: index, RawID: provider.ExtractString(d["id"])}

	if pv, ok := d["period"]; ok && pv != nil {
		period, err := toPeriod(pv)
		if err != nil {
			return nil, err
		}
		info.Period = period
	}

	if clock, ok := d["time"].(string); ok && clock != "" {
		secs, ok := provider.ParseClock(clock)
		if !ok {
			return nil, fmt.Errorf("unparseable clock %q", clock)
		}
		info.Elapsed = secs
	}

	switch strings.ToLower(r.Event) {
	case "faceoff":
		return game.Faceoff{
			PlayInfo:   info,
			HomePlayer: toPlayer(d["homePlayer"]),
			AwayPlayer: toPlayer(d["visitingPlayer"]),
			HomeWin:    provider.ExtractBool(d["homeWin"]),
		}, nil

	case "goal":
		if id := provider.ExtractString(d["game_goal_id"]); id != "" {
			info.RawID = id
		}
		props, _ := d["properties"].(map[string]interface{})
		g := game.Goal{
			PlayInfo:    info,
			TeamID:      provider.ExtractString(d["team"]),
			Scorer:      toPlayer(d["scoredBy"]),
			PowerPlay:   provider.ExtractBool(props["isPowerPlay"]),
			ShortHanded: provider.ExtractBool(props["isShortHanded"]),
			EmptyNet:    provider.ExtractBool(props["isEmptyNet"]),
			PenaltyShot: provider.ExtractBool(props["isPenaltyShot"]),
		}
		if assists, ok := d["assists"].([]interface{}); ok {
			for _, a := range assists {
				g.Assists = append(g.Assists, toPlayer(a))
			}
		}
		return g, nil

	case "penalty":
		if id := provider.ExtractString(d["game_penalty_id"]); id != "" {
			info.RawID = id
		}
		minutes, _ := provider.ExtractValue(d["minutes"])
		offence, _ := d["description"].(string)
		return game.Penalty{
			PlayInfo:  info,
			TeamID:    provider.ExtractString(d["againstTeam"]),
			TakenBy:   toPlayer(d["takenBy"]),
			ServedBy:  toPlayer(d["servedBy"]),
			Offence:   strings.TrimSpace(offence),
			Minutes:   minutes,
			PowerPlay: provider.ExtractBool(d["isPowerPlay"]),
		}, nil

	case "goalie_change":
		return game.GoalieChange{
			PlayInfo:  info,
			TeamID:    provider.ExtractString(d["team_id"]),
			GoalieIn:  toOptionalPlayer(d["goalieComingIn"]),
			GoalieOut: toOptionalPlayer(d["goalieGoingOut"]),
		}, nil

	case "shot":
		return game.Shot{
			PlayInfo: info,
			TeamID:   provider.ExtractString(d["shooterTeamId"]),
			Shooter:  toPlayer(d["shooter"]),
			Goalie:   toPlayer(d["goalie"]),
		}, nil

	default:
		kind := strings.ToLower(strings.TrimSpace(r.Event))
		if kind == "" {
			kind = "unknown"
		}
		return game.Other{PlayInfo: info, Type: kind}, nil
	}
}

func toPeriod(v interface{}) (game.Period, error) {
	var id int
	var name string
	switch pv := v.(type) {
	case map[string]interface{}:
		n, ok := provider.ExtractInt(pv["id"])
		if !ok {
			return game.Period{}, fmt.Errorf("unparseable period id %v", pv["id"])
		}
		id = n
		name, _ = pv["shortName"].(string)
	default:
		n, ok := provider.ExtractInt(pv)
		if !ok {
			return game.Period{}, fmt.Errorf("unparseable period %v", pv)
		}
		id = n
	}
	if id < 0 {
		return game.Period{}, fmt.Errorf("negative period id %d", id)
	}
	return game.Period{ID: id, Name: name}, nil
}

func toPlayer(v interface{}) game.Player {
	p := toOptionalPlayer(v)
	if p == nil {
		return game.Player{}
	}
	return *p
}

func toOptionalPlayer(v interface{}) *game.Player {
	m, ok := v.(map[string]interface{})
	if !ok || len(m) == 0 {
		return nil
	}
	first, _ := m["firstName"].(string)
	last, _ := m["lastName"].(string)
	return &game.Player{
		ID:     provider.ExtractString(m["id"]),
		Name:   strings.TrimSpace(first + " " + last),
		Number: provider.ExtractString(m["jerseyNumber"]),
	}
}
