package game

import "fmt"

// Identity returns the deduplication key for a timeline event. It never
// depends on position, except for unrecognized kinds without a provider id.
func Identity(e Event) string {
	switch v := e.(type) {
	case PeriodStart:
		return fmt.Sprintf("period_start:%d", v.Period.ID)
	case PeriodEnd:
		return fmt.Sprintf("period_end:%d", v.Period.ID)
	case GoalieChange:
		return fmt.Sprintf("%s:%s:%d:%d", v.Kind(), v.IncomingID(), v.Period.ID, v.Elapsed)
	case Faceoff:
		return fmt.Sprintf("%s:%s:%d", v.Kind(), v.RawID, v.Elapsed)
	case Play:
		info := v.Info()
		if info.RawID != "" {
			return fmt.Sprintf("%s:%s", v.Kind(), info.RawID)
		}
		return fmt.Sprintf("%s:#%d", v.Kind(), info.Index)
	default:
		return string(e.Kind())
	}
}

// Identities returns the identity of every entry, in timeline order.
func Identities(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = Identity(e.Event)
	}
	return ids
}

// NewEvents returns the timeline entries whose identity is absent from posted,
// preserving timeline order.
func NewEvents(entries []Entry, posted []string) []Entry {
	seen := make(map[string]struct{}, len(posted))
	for _, id := range posted {
		seen[id] = struct{}{}
	}

	var fresh []Entry
	for _, e := range entries {
		id := Identity(e.Event)
		if _, ok := seen[id]; ok {
			continue
		}
		// Guards against the provider repeating a play inside one response.
		seen[id] = struct{}{}
		fresh = append(fresh, e)
	}
	return fresh
}
