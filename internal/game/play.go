package game

// Kind tags every timeline element.
type Kind string

const (
	KindFaceoff      Kind = "faceoff"
	KindGoal         Kind = "goal"
	KindPenalty      Kind = "penalty"
	KindGoalieChange Kind = "goalie_change"
	KindShot         Kind = "shot"
	KindPeriodStart  Kind = "period_start"
	KindPeriodEnd    Kind = "period_end"
)

// Period identifies one period of play. ID 0 means the provider did not say.
type Period struct {
	ID   int
	Name string
}

// PlayInfo carries the fields every play has.
type PlayInfo struct {
	RawID   string // provider id, may be empty
	Index   int    // position in the provider's list
	Period  Period
	Elapsed int // seconds into the period
}

// Event is one element of a game timeline: a Play or a period marker.
// The set of implementations is closed to this package.
type Event interface {
	Kind() Kind
	PeriodOf() Period
	ElapsedSeconds() int
	event()
}

// Play is an Event that came from the provider's play-by-play feed.
type Play interface {
	Event
	Info() PlayInfo
	withPeriod(Period) Play
}

func (p PlayInfo) Info() PlayInfo      { return p }
func (p PlayInfo) PeriodOf() Period    { return p.Period }
func (p PlayInfo) ElapsedSeconds() int { return p.Elapsed }
func (PlayInfo) event()                {}

// Faceoff is a draw between two centres.
type Faceoff struct {
	PlayInfo
	HomePlayer Player
	AwayPlayer Player
	HomeWin    bool
}

func (Faceoff) Kind() Kind { return KindFaceoff }

func (f Faceoff) withPeriod(p Period) Play { f.Period = p; return f }

// Goal is a scoring play.
type Goal struct {
	PlayInfo
	TeamID      string
	Scorer      Player
	Assists     []Player
	PowerPlay   bool
	ShortHanded bool
	EmptyNet    bool
	PenaltyShot bool
}

func (Goal) Kind() Kind { return KindGoal }

func (g Goal) withPeriod(p Period) Play { g.Period = p; return g }

// Penalty is an infraction assessed to a player or bench.
type Penalty struct {
	PlayInfo
	TeamID    string
	TakenBy   Player
	ServedBy  Player
	Offence   string
	Minutes   float64
	PowerPlay bool
}

func (Penalty) Kind() Kind { return KindPenalty }

func (p Penalty) withPeriod(pd Period) Play { p.Period = pd; return p }

// GoalieChange records a goalie entering or leaving the crease. A nil
// GoalieIn means the net was emptied.
type GoalieChange struct {
	PlayInfo
	TeamID    string
	GoalieIn  *Player
	GoalieOut *Player
}

func (GoalieChange) Kind() Kind { return KindGoalieChange }

func (g GoalieChange) withPeriod(p Period) Play { g.Period = p; return g }

// IncomingID returns the id of the goalie entering, or "" for an empty net.
func (g GoalieChange) IncomingID() string {
	if g.GoalieIn == nil {
		return ""
	}
	return g.GoalieIn.ID
}

// Shot is a shot on goal that did not score.
type Shot struct {
	PlayInfo
	TeamID  string
	Shooter Player
	Goalie  Player
}

func (Shot) Kind() Kind { return KindShot }

func (s Shot) withPeriod(p Period) Play { s.Period = p; return s }

// Other carries play kinds the notifier does not act on.
type Other struct {
	PlayInfo
	Type string
}

func (o Other) Kind() Kind { return Kind(o.Type) }

func (o Other) withPeriod(p Period) Play { o.Period = p; return o }

// --------------------------------------------------------------------------
// Synthetic period markers
// --------------------------------------------------------------------------

// PeriodStart marks the opening of a period.
type PeriodStart struct {
	Period Period
}

func (PeriodStart) Kind() Kind          { return KindPeriodStart }
func (m PeriodStart) PeriodOf() Period  { return m.Period }
func (PeriodStart) ElapsedSeconds() int { return 0 }
func (PeriodStart) event()              {}

// PeriodEnd marks the close of a period. Final is set on the trailing marker
// emitted once the game is over.
type PeriodEnd struct {
	Period  Period
	Elapsed int
	Final   bool
}

func (PeriodEnd) Kind() Kind            { return KindPeriodEnd }
func (m PeriodEnd) PeriodOf() Period    { return m.Period }
func (m PeriodEnd) ElapsedSeconds() int { return m.Elapsed }
func (PeriodEnd) event()                {}
