package provider

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ExtractValue normalizes a numeric value from the provider's loose JSON.
//
// HockeyTech sends most numbers as strings ("2", "2.00"), some as numbers,
// and uses "" or null for missing values. Returns ok=false if not extractable.
func ExtractValue(val interface{}) (float64, bool) {
	if val == nil {
		return 0, false
	}

	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
		return 0, false
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case map[string]interface{}:
		// Nested objects: try the keys the feed uses for a scalar.
		for _, key := range []string{"id", "value", "total"} {
			if inner, exists := v[key]; exists && inner != nil {
				return ExtractValue(inner)
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

// ExtractInt is ExtractValue truncated to an int.
func ExtractInt(val interface{}) (int, bool) {
	f, ok := ExtractValue(val)
	return int(f), ok
}

// ExtractBool treats any non-zero number, "true" or "yes" as true.
func ExtractBool(val interface{}) bool {
	if s, ok := val.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "y":
			return true
		}
	}
	f, ok := ExtractValue(val)
	return ok && f != 0
}

// ExtractString renders ids that arrive as either strings or numbers.
func ExtractString(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case map[string]interface{}:
		if inner, ok := v["id"]; ok {
			return ExtractString(inner)
		}
		return ""
	default:
		return ""
	}
}

// ParseClock converts an "MM:SS" game clock into seconds.
func ParseClock(clock string) (int, bool) {
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return 0, false
	}
	mins, secs, found := strings.Cut(clock, ":")
	if !found {
		return 0, false
	}
	m, err := strconv.Atoi(mins)
	if err != nil || m < 0 {
		return 0, false
	}
	s, err := strconv.Atoi(secs)
	if err != nil || s < 0 || s > 59 {
		return 0, false
	}
	return m*60 + s, true
}
