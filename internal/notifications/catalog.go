package notifications

import "strings"

// Catalog holds the display lookup tables used when composing messages.
// It is built once at startup and never mutated.
type Catalog struct {
	DefaultColor int
	TeamColors   map[string]int    // keyed by "<league>:<team code>"
	OffenceIcons map[string]string // keyed by lower-case offence keyword
}

// DefaultCatalog returns the built-in colours and offence icons.
func DefaultCatalog() Catalog {
	return Catalog{
		DefaultColor: 0x5865F2,
		TeamColors: map[string]int{
			"pwhl:BOS": 0x173F35,
			"pwhl:MIN": 0x2E1A47,
			"pwhl:MTL": 0x862633,
			"pwhl:NY":  0x00BCB5,
			"pwhl:OTT": 0xA6192E,
			"pwhl:TOR": 0x1E4EA1,
			"pwhl:SEA": 0x0F4C5C,
			"pwhl:VAN": 0xE4A01B,
		},
		OffenceIcons: map[string]string{
			"boarding":        "🧱",
			"checking":        "💥",
			"cross-checking":  "❌",
			"delay":           "⏳",
			"elbowing":        "💪",
			"fighting":        "🥊",
			"high-sticking":   "🏒",
			"holding":         "✋",
			"hooking":         "🪝",
			"interference":    "🚧",
			"roughing":        "😤",
			"slashing":        "⚔️",
			"too many":        "👥",
			"tripping":        "🦶",
			"unsportsmanlike": "🙅",
		},
	}
}

// TeamColor returns the embed colour for a team.
func (c Catalog) TeamColor(league, code string) int {
	if color, ok := c.TeamColors[league+":"+strings.ToUpper(code)]; ok {
		return color
	}
	return c.DefaultColor
}

// OffenceIcon returns the icon for the longest keyword found in an offence
// description, or a siren.
func (c Catalog) OffenceIcon(offence string) string {
	lower := strings.ToLower(offence)
	best := ""
	for keyword := range c.OffenceIcons {
		if strings.Contains(lower, keyword) && len(keyword) > len(best) {
			best = keyword
		}
	}
	if best == "" {
		return "🚨"
	}
	return c.OffenceIcons[best]
}
