package game

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Tie-break weights, lowest first, for events sharing an ordering key.
const (
	weightBoundary = 0 // zero-time goalie change or a period end
	weightStart    = 1 // period start
	weightPlay     = 2 // everything else
	weightGameOver = 3 // trailing period end of an overtime decided by the last play
)

// Entry is one element of a built timeline with its ordering key.
type Entry struct {
	Event  Event
	Key    int
	weight int
	seq    int
}

// BuildTimeline merges raw plays with synthetic period markers and returns
// them in a total order.
//
// Every period is assumed to last PeriodLength seconds, overtime included, so
// cross-period ordering near an overtime boundary is approximate. A play
// logged at exactly PeriodLength shares its key with the next period's start
// and sorts after it.
func BuildTimeline(plays []Play, status Status, currentPeriod *int) []Entry {
	plays = assignInferredPeriod(plays, currentPeriod)
	periods := distinctPeriods(plays)

	entries := make([]Entry, 0, len(plays)+2*len(periods))
	add := func(e Event, weight int) {
		entries = append(entries, Entry{
			Event:  e,
			Key:    orderKey(e.PeriodOf().ID, e.ElapsedSeconds()),
			weight: weight,
			seq:    len(entries),
		})
	}

	for i, p := range periods {
		add(PeriodStart{Period: p}, weightStart)
		if i < len(periods)-1 {
			add(PeriodEnd{Period: p, Elapsed: PeriodLength}, weightBoundary)
		}
	}

	if status.Terminal() && len(periods) > 0 {
		last := periods[len(periods)-1]
		end := PeriodEnd{Period: last, Elapsed: PeriodLength, Final: true}
		weight := weightBoundary
		if last.ID > Regulation {
			end.Elapsed = lastElapsed(plays, last.ID)
			weight = weightGameOver
		}
		add(end, weight)
	}

	named := make(map[int]Period, len(periods))
	for _, p := range periods {
		named[p.ID] = p
	}
	for _, p := range plays {
		p = p.withPeriod(named[p.PeriodOf().ID])
		w := weightPlay
		if gc, ok := p.(GoalieChange); ok && gc.Elapsed == 0 {
			w = weightBoundary
		}
		add(p, w)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if a.weight != b.weight {
			return a.weight < b.weight
		}
		if pa, pb := a.Event.PeriodOf().ID, b.Event.PeriodOf().ID; pa != pb {
			return pa < pb
		}
		return a.seq < b.seq
	})
	return entries
}

// Events strips ordering metadata from a timeline.
func Events(entries []Entry) []Event {
	out := make([]Event, len(entries))
	for i, e := range entries {
		out[i] = e.Event
	}
	return out
}

func orderKey(periodID, elapsed int) int {
	return (periodID-1)*PeriodLength + elapsed
}

// assignInferredPeriod places plays that carry no period into the snapshot's
// current period, or the first period when the snapshot has none either.
func assignInferredPeriod(plays []Play, currentPeriod *int) []Play {
	declared := false
	for _, p := range plays {
		if p.PeriodOf().ID > 0 {
			declared = true
			break
		}
	}

	inferred := 1
	if currentPeriod != nil && *currentPeriod > 0 {
		inferred = *currentPeriod
	}
	if declared {
		for _, p := range plays {
			if id := p.PeriodOf().ID; id > 0 {
				inferred = max(inferred, id)
			}
		}
	}

	out := make([]Play, len(plays))
	for i, p := range plays {
		if p.PeriodOf().ID > 0 {
			out[i] = p
			continue
		}
		out[i] = p.withPeriod(Period{ID: inferred})
	}
	return out
}

// distinctPeriods returns one normalized Period per period id seen, ascending.
func distinctPeriods(plays []Play) []Period {
	byID := make(map[int]Period)
	for _, p := range plays {
		pd := p.PeriodOf()
		if _, seen := byID[pd.ID]; !seen {
			byID[pd.ID] = pd
		}
	}

	out := make([]Period, 0, len(byID))
	for id, pd := range byID {
		out = append(out, Period{ID: id, Name: NormalizePeriodName(id, pd.Name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func lastElapsed(plays []Play, periodID int) int {
	last := 0
	for _, p := range plays {
		if p.PeriodOf().ID == periodID && p.ElapsedSeconds() > last {
			last = p.ElapsedSeconds()
		}
	}
	return last
}

// --------------------------------------------------------------------------
// Period names
// --------------------------------------------------------------------------

var wellFormedPeriodName = regexp.MustCompile(`^(\d+(st|nd|rd|th)( OT)?|OT\d*|\d*OT|SO|Shootout)$`)

var placeholderNames = map[string]bool{
	"": true, "-": true, "?": true, "0": true, "tbd": true, "n/a": true, "null": true,
}

// NormalizePeriodName keeps the provider's name when it looks like an English
// period label and otherwise derives one from the period id.
func NormalizePeriodName(id int, name string) string {
	name = strings.TrimSpace(name)
	if placeholderNames[strings.ToLower(name)] || !isASCII(name) || !wellFormedPeriodName.MatchString(name) {
		return PeriodName(id)
	}
	return name
}

// PeriodName derives a display name from a numeric period id: 1st, 2nd, 3rd,
// then 1st OT, 2nd OT, and so on.
func PeriodName(id int) string {
	if id <= Regulation {
		return Ordinal(max(id, 1))
	}
	return Ordinal(id-Regulation) + " OT"
}

// Ordinal formats n with its English ordinal suffix.
func Ordinal(n int) string {
	return fmt.Sprintf("%d%s", n, ordinalSuffix(n))
}

func ordinalSuffix(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
