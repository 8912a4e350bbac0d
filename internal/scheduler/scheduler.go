package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/scoracle-alerts/internal/config"
	"github.com/albapepper/scoracle-alerts/internal/eventstate"
	"github.com/albapepper/scoracle-alerts/internal/game"
	"github.com/albapepper/scoracle-alerts/internal/metrics"
	"github.com/albapepper/scoracle-alerts/internal/notifications"
	"github.com/albapepper/scoracle-alerts/internal/provider"
)

// SubscriptionSource lists a league's active subscriptions.
type SubscriptionSource interface {
	ActiveSubscriptions(ctx context.Context, league string) ([]notifications.Subscription, error)
}

// StateStore reads and writes per-game notification state.
type StateStore interface {
	Load(ctx context.Context, league, gameID string) (eventstate.GameState, error)
	Save(ctx context.Context, league, gameID string, st eventstate.GameState) error
}

// Sender queues deliveries without waiting for them.
type Sender interface {
	Dispatch(ctx context.Context, league, gameID string, deliveries []notifications.Delivery)
}

// Deps bundles the scheduler's collaborators.
type Deps struct {
	Provider      provider.Provider
	Subscriptions SubscriptionSource
	States        StateStore
	Sender        Sender
	Composer      *notifications.Composer
	Host          Host
	Metrics       *metrics.Recorder
	Logger        *slog.Logger
}

// Options tunes the scheduler. Zero values use defaults.
type Options struct {
	HypeMinutes  []int
	FetchTimeout time.Duration
	Now          func() time.Time
}

// Scheduler runs game-day entities.
type Scheduler struct {
	provider provider.Provider
	subs     SubscriptionSource
	states   StateStore
	sender   Sender
	composer *notifications.Composer
	host     Host
	metrics  *metrics.Recorder
	logger   *slog.Logger

	hype         []int
	fetchTimeout time.Duration
	now          func() time.Time
}

// New creates a Scheduler.
func New(deps Deps, opts Options) *Scheduler {
	hype := append([]int(nil), opts.HypeMinutes...)
	slices.Sort(hype)
	s := &Scheduler{
		provider:     deps.Provider,
		subs:         deps.Subscriptions,
		states:       deps.States,
		sender:       deps.Sender,
		composer:     deps.Composer,
		host:         deps.Host,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		hype:         hype,
		fetchTimeout: opts.FetchTimeout,
		now:          opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.composer == nil {
		s.composer = notifications.NewComposer(notifications.DefaultCatalog())
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = 20 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// --------------------------------------------------------------------------
// Entry point
// --------------------------------------------------------------------------

// Refresh (re)initializes the entity for a league and day. It returns false
// when the day has no games. A new entity is put in Check mode with its alarm
// armed to fire immediately. An existing entity keeps its mode and its
// pending alarm, so repeated refreshes neither revive a finished day nor add
// polls to one that is waiting for a pre-game window.
func (s *Scheduler) Refresh(ctx context.Context, key Key) (bool, time.Time, error) {
	lc, ok := config.LookupLeague(key.League)
	if !ok {
		return false, time.Time{}, fmt.Errorf("unknown league %q", key.League)
	}
	key.League = lc.ID

	games, err := s.fetchSchedule(ctx, key, lc.Location())
	if err != nil {
		return false, time.Time{}, err
	}
	if len(games) == 0 {
		s.logger.Info("No games scheduled", "league", key.League, "day", key.Day)
		return false, time.Time{}, nil
	}

	existing, found, err := s.host.Load(ctx, key)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("load entity %s: %w", key, err)
	}
	if found && !existing.AlarmAt.IsZero() {
		s.logger.Info("Game day already armed",
			"league", key.League, "day", key.Day, "mode", existing.Mode, "next_wake", existing.AlarmAt)
		return true, existing.AlarmAt, nil
	}

	if err := s.host.Save(ctx, key, State{Mode: ModeCheck}); err != nil {
		return false, time.Time{}, fmt.Errorf("save entity: %w", err)
	}
	at := s.now()
	if err := s.host.SetAlarm(ctx, key, at); err != nil {
		return false, time.Time{}, fmt.Errorf("arm alarm: %w", err)
	}
	s.logger.Info("Game day armed", "league", key.League, "day", key.Day, "games", len(games))
	return true, at, nil
}

// Purge deletes an entity immediately.
func (s *Scheduler) Purge(ctx context.Context, key Key) error {
	if err := s.host.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete entity %s: %w", key, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Alarm
// --------------------------------------------------------------------------

// Alarm handles one wake-up of an entity. Errors from the poll itself are
// absorbed into the retry rule; only host failures are returned.
func (s *Scheduler) Alarm(ctx context.Context, key Key) error {
	st, ok, err := s.host.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("load entity %s: %w", key, err)
	}
	if !ok {
		return nil
	}

	if st.Mode == ModePurge {
		s.logger.Info("Purging game day", "league", key.League, "day", key.Day)
		return s.Purge(ctx, key)
	}
	return s.check(ctx, key)
}

func (s *Scheduler) check(ctx context.Context, key Key) error {
	logger := s.logger.With("league", key.League, "day", key.Day, "cycle_id", uuid.NewString())
	lc, ok := config.LookupLeague(key.League)
	if !ok {
		logger.Warn("Unknown league, purging entity")
		return s.enterPurge(ctx, key, logger)
	}
	loc := lc.Location()

	start := s.now()
	next, more, err := s.poll(ctx, key, loc, logger)
	s.metrics.RecordPollCycle(key.League, s.now().Sub(start), err)

	now := s.now()
	if err != nil {
		if dayElapsed(now, key, loc) {
			logger.Warn("Poll failed after the day elapsed, purging", "error", err)
			return s.enterPurge(ctx, key, logger)
		}
		logger.Warn("Poll failed, retrying", "error", err, "next_wake", now.Add(fastPoll))
		return s.host.SetAlarm(ctx, key, now.Add(fastPoll))
	}

	if !more {
		return s.enterPurge(ctx, key, logger)
	}
	logger.Debug("Re-armed", "next_wake", next)
	return s.host.SetAlarm(ctx, key, next)
}

func (s *Scheduler) enterPurge(ctx context.Context, key Key, logger *slog.Logger) error {
	if err := s.host.Save(ctx, key, State{Mode: ModePurge}); err != nil {
		return fmt.Errorf("save entity: %w", err)
	}
	at := s.now().Add(purgeDelay)
	logger.Info("Game day complete, purge scheduled", "next_wake", at)
	return s.host.SetAlarm(ctx, key, at)
}

// poll runs one pass over the day's games and returns the next wake time,
// or false when nothing is left to do.
func (s *Scheduler) poll(ctx context.Context, key Key, loc *time.Location, logger *slog.Logger) (time.Time, bool, error) {
	games, err := s.fetchSchedule(ctx, key, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	subs, err := s.subs.ActiveSubscriptions(ctx, key.League)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load subscriptions: %w", err)
	}

	over := dayElapsed(s.now(), key, loc)
	var deadlines []time.Time
	for _, g := range games {
		deadline, ok, err := s.pollGame(ctx, g, subs, over, logger.With("game_id", g.ID))
		if err != nil {
			logger.Warn("Game poll failed", "game_id", g.ID, "error", err)
			if over {
				continue
			}
			deadline, ok = s.now().Add(fastPoll), true
		}
		if ok {
			deadlines = append(deadlines, deadline)
		}
	}

	next, more := NextWake(s.now(), deadlines)
	return next, more, nil
}

// pollGame processes one game and returns its next deadline.
func (s *Scheduler) pollGame(ctx context.Context, g game.Snapshot, subs []notifications.Subscription, over bool, logger *slog.Logger) (time.Time, bool, error) {
	st, err := s.states.Load(ctx, g.League, g.ID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load game state: %w", err)
	}
	home, away := g.Participants()
	recips := notifications.Route(subs, home, away)
	now := s.now()

	var deliveries []notifications.Delivery
	if g.Status == game.StatusNotStarted && !over {
		deliveries = append(deliveries, s.pregame(ctx, g, recips, &st, now, logger)...)
	}

	sawNew := false
	if g.Status != game.StatusNotStarted {
		plays, err := s.fetchPlays(ctx, g)
		if err != nil {
			return time.Time{}, false, err
		}
		entries := game.BuildTimeline(plays, g.Status, g.Period)
		fresh := game.NewEvents(entries, st.PostedEventIDs)
		sawNew = len(fresh) > 0
		s.metrics.RecordNewEvents(g.League, len(fresh))

		deliveries = append(deliveries, s.timeline(g, entries, fresh, recips, st.PostedPreview)...)
		st.PostedEventIDs = game.Identities(entries)
	}

	if g.Status == game.StatusFinal && !st.PostedFinal {
		deliveries = append(deliveries, s.final(ctx, g, recips, logger)...)
		st.PostedFinal = true
	}

	if len(deliveries) > 0 {
		logger.Info("Dispatching notifications", "count", len(deliveries))
		s.sender.Dispatch(ctx, g.League, g.ID, deliveries)
	}
	if err := s.states.Save(ctx, g.League, g.ID, st); err != nil {
		return time.Time{}, false, fmt.Errorf("save game state: %w", err)
	}

	deadline, ok := GameDeadline(now, g, st, sawNew, over)
	return deadline, ok, nil
}

// --------------------------------------------------------------------------
// Delivery builders
// --------------------------------------------------------------------------

// pregame handles preview, hype reminders and lineups, updating st.
func (s *Scheduler) pregame(ctx context.Context, g game.Snapshot, recips notifications.Recipients, st *eventstate.GameState, now time.Time, logger *slog.Logger) []notifications.Delivery {
	until := g.ScheduledStart.Sub(now)
	if until <= 0 {
		return nil
	}

	var out []notifications.Delivery
	if !st.PostedPreview && until <= previewLead {
		msg := s.composer.Preview(g, true)
		threads := recips.PreviewThreads()
		for _, ch := range recips.For(notifications.CategoryPreview) {
			out = append(out, notifications.Delivery{
				ChannelID:     ch,
				Category:      notifications.CategoryPreview,
				EventID:       "preview",
				Message:       &msg,
				RecordPreview: true,
				OpenThread:    slices.Contains(threads, ch),
				ThreadName:    s.composer.ThreadName(g),
			})
		}
		st.PostedPreview = true
	}

	minutes := int(math.Ceil(until.Minutes()))
	if m, ok := notifications.RoundToHypeMinute(minutes, s.hype); ok && !st.HasHype(m) {
		msg := s.composer.Hype(g, m)
		for _, ch := range recips.For(notifications.CategoryPreview) {
			out = append(out, notifications.Delivery{
				ChannelID: ch,
				Category:  notifications.CategoryPreview,
				EventID:   fmt.Sprintf("hype:%d", m),
				Message:   &msg,
			})
		}
		st.PostedHype = append(st.PostedHype, m)
	}

	if !st.PostedLineups && until <= lineupsLead {
		channels := recips.For(notifications.CategoryLineups)
		if len(channels) == 0 {
			st.PostedLineups = true
			return out
		}
		sum, err := s.fetchSummary(ctx, g)
		if err != nil {
			logger.Warn("Lineups unavailable", "error", err)
			return out
		}
		if sum == nil || sum.Lineups == nil {
			return out
		}
		msg := s.composer.Lineups(g, *sum.Lineups)
		for _, ch := range channels {
			out = append(out, notifications.Delivery{
				ChannelID: ch,
				Category:  notifications.CategoryLineups,
				EventID:   "lineups",
				Message:   &msg,
			})
		}
		st.PostedLineups = true
	}
	return out
}

// timeline turns new timeline entries into deliveries, in timeline order.
func (s *Scheduler) timeline(g game.Snapshot, entries, fresh []game.Entry, recips notifications.Recipients, previewPosted bool) []notifications.Delivery {
	scores := notifications.RunningScores(entries, g.HomeTeam.ID)

	var out []notifications.Delivery
	for _, e := range fresh {
		id := game.Identity(e.Event)
		var score *notifications.Score
		if sc, ok := scores[id]; ok {
			score = &sc
		}
		msg, ok := s.composer.Event(g, e.Event, score)
		if !ok {
			continue
		}

		channels := recips.ForEvent(e.Event)
		cat := categoryOf(e.Event)
		gameStart := isGameStart(e.Event)
		var threads []string
		if gameStart {
			threads = recips.StartThreads(previewPosted)
		}

		for _, ch := range channels {
			out = append(out, notifications.Delivery{
				ChannelID:  ch,
				Category:   cat,
				EventID:    id,
				Message:    &msg,
				ExpirePoll: gameStart,
				OpenThread: slices.Contains(threads, ch),
				ThreadName: s.composer.ThreadName(g),
			})
		}
		if !gameStart {
			continue
		}

		// Preview channels that skip the start still get their poll closed,
		// and thread channels that skip it get a standalone thread.
		for _, ch := range recips.For(notifications.CategoryPreview) {
			if !slices.Contains(channels, ch) {
				out = append(out, notifications.Delivery{ChannelID: ch, Category: cat, EventID: id, ExpirePoll: true})
			}
		}
		for _, ch := range threads {
			if !slices.Contains(channels, ch) {
				out = append(out, notifications.Delivery{
					ChannelID:  ch,
					Category:   notifications.CategoryThreads,
					EventID:    id,
					OpenThread: true,
					ThreadName: s.composer.ThreadName(g),
				})
			}
		}
	}
	return out
}

// final builds the official-result message and closes discussion threads.
func (s *Scheduler) final(ctx context.Context, g game.Snapshot, recips notifications.Recipients, logger *slog.Logger) []notifications.Delivery {
	channels := recips.For(notifications.CategoryFinal)

	var out []notifications.Delivery
	if len(channels) > 0 {
		sum, err := s.fetchSummary(ctx, g)
		if err != nil {
			logger.Warn("Game summary unavailable, posting final without it", "error", err)
		}
		msg := s.composer.Final(g, sum)
		for _, ch := range channels {
			out = append(out, notifications.Delivery{
				ChannelID:     ch,
				Category:      notifications.CategoryFinal,
				EventID:       "final",
				Message:       &msg,
				ArchiveThread: true,
			})
		}
	}
	for _, ch := range recips.For(notifications.CategoryThreads) {
		if !slices.Contains(channels, ch) {
			out = append(out, notifications.Delivery{
				ChannelID:     ch,
				Category:      notifications.CategoryThreads,
				EventID:       "final",
				ArchiveThread: true,
			})
		}
	}
	return out
}

func categoryOf(e game.Event) notifications.Category {
	switch v := e.(type) {
	case game.PeriodStart:
		if v.Period.ID == 1 {
			return notifications.CategoryStart
		}
		return notifications.CategoryPeriods
	case game.PeriodEnd:
		if v.Final {
			return notifications.CategoryEnd
		}
		return notifications.CategoryPeriods
	case game.Goal:
		return notifications.CategoryGoals
	case game.Penalty:
		return notifications.CategoryPenalties
	}
	return ""
}

func isGameStart(e game.Event) bool {
	ps, ok := e.(game.PeriodStart)
	return ok && ps.Period.ID == 1
}

// --------------------------------------------------------------------------
// Provider calls
// --------------------------------------------------------------------------

func (s *Scheduler) fetchSchedule(ctx context.Context, key Key, loc *time.Location) ([]game.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	games, err := s.provider.DailySchedule(ctx, key.League, key.Start(loc))
	s.metrics.RecordProviderCall("schedule", err)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule: %w", err)
	}
	return games, nil
}

func (s *Scheduler) fetchPlays(ctx context.Context, g game.Snapshot) ([]game.Play, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	plays, err := s.provider.PlayByPlay(ctx, g.League, g.ID)
	s.metrics.RecordProviderCall("play_by_play", err)
	if err != nil {
		return nil, fmt.Errorf("fetch play-by-play: %w", err)
	}
	return plays, nil
}

func (s *Scheduler) fetchSummary(ctx context.Context, g game.Snapshot) (*provider.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	sum, err := s.provider.GameSummary(ctx, g.League, g.ID)
	s.metrics.RecordProviderCall("summary", err)
	if err != nil {
		return nil, fmt.Errorf("fetch summary: %w", err)
	}
	return sum, nil
}
