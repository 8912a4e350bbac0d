package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/albapepper/scoracle-alerts/internal/cache"
	"github.com/albapepper/scoracle-alerts/internal/discord"
	"github.com/albapepper/scoracle-alerts/internal/eventstate"
	"github.com/albapepper/scoracle-alerts/internal/game"
	"github.com/albapepper/scoracle-alerts/internal/notifications"
	"github.com/albapepper/scoracle-alerts/internal/provider"
)

// --------------------------------------------------------------------------
// Stubs
// --------------------------------------------------------------------------

type stubProvider struct {
	mu           sync.Mutex
	games        []game.Snapshot
	plays        map[string][]game.Play
	playsErr     map[string]error
	summary      *provider.Summary
	summaryCalls int
	scheduleErr  error
}

func (p *stubProvider) DailySchedule(_ context.Context, _ string, _ time.Time) ([]game.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scheduleErr != nil {
		return nil, p.scheduleErr
	}
	return slices.Clone(p.games), nil
}

func (p *stubProvider) PlayByPlay(_ context.Context, _ string, gameID string) ([]game.Play, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.playsErr[gameID]; err != nil {
		return nil, err
	}
	return slices.Clone(p.plays[gameID]), nil
}

func (p *stubProvider) GameSummary(_ context.Context, _ string, gameID string) (*provider.Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaryCalls++
	if p.summary == nil {
		return nil, provider.ErrNotFound
	}
	return p.summary, nil
}

type stubSubs []notifications.Subscription

func (s stubSubs) ActiveSubscriptions(_ context.Context, _ string) ([]notifications.Subscription, error) {
	return s, nil
}

type memHost struct {
	mu     sync.Mutex
	states map[Key]State
	alarms map[Key]time.Time
}

func newMemHost() *memHost {
	return &memHost{states: make(map[Key]State), alarms: make(map[Key]time.Time)}
}

func (h *memHost) Load(_ context.Context, key Key) (State, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.states[key]
	st.AlarmAt = h.alarms[key]
	return st, ok, nil
}

func (h *memHost) Save(_ context.Context, key Key, st State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states[key] = st
	return nil
}

func (h *memHost) SetAlarm(_ context.Context, key Key, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alarms[key] = at
	return nil
}

func (h *memHost) Delete(_ context.Context, key Key) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.states, key)
	delete(h.alarms, key)
	return nil
}

type post struct {
	channelID string
	msg       discord.Message
}

type recordingChat struct {
	mu      sync.Mutex
	posts   []post
	threads []string
	expired []string
	patched []string
}

func (c *recordingChat) PostMessage(_ context.Context, channelID string, msg discord.Message) (discord.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts = append(c.posts, post{channelID: channelID, msg: msg})
	return discord.MessageRef{ID: fmt.Sprintf("m%d", len(c.posts)), ChannelID: channelID}, nil
}

func (c *recordingChat) CreateThread(_ context.Context, channelID, messageID, _ string) (discord.ThreadRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads = append(c.threads, channelID+"/"+messageID)
	return discord.ThreadRef{ID: fmt.Sprintf("t%d", len(c.threads))}, nil
}

func (c *recordingChat) PatchChannel(_ context.Context, channelID string, _ discord.ChannelPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patched = append(c.patched, channelID)
	return nil
}

func (c *recordingChat) ExpirePoll(_ context.Context, channelID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired = append(c.expired, channelID+"/"+messageID)
	return nil
}

func (c *recordingChat) count(match func(discord.Message) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.posts {
		if match(p.msg) {
			n++
		}
	}
	return n
}

func isGoal(m discord.Message) bool {
	return len(m.Embeds) > 0 && strings.Contains(m.Embeds[0].Title, "goal!")
}

func isGameStartMsg(m discord.Message) bool {
	return strings.HasPrefix(m.Content, "🏒 Puck drop!")
}

func isLineups(m discord.Message) bool {
	return len(m.Embeds) > 0 && m.Embeds[0].Title == "Starting lineups"
}

func (c *recordingChat) last() discord.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.posts) == 0 {
		return discord.Message{}
	}
	return c.posts[len(c.posts)-1].msg
}

// --------------------------------------------------------------------------
// Harness
// --------------------------------------------------------------------------

type harness struct {
	now      time.Time
	provider *stubProvider
	host     *memHost
	chat     *recordingChat
	states   *eventstate.Repository
	disp     *notifications.Dispatcher
	sched    *Scheduler
}

func newHarness(t *testing.T, now time.Time, subs stubSubs) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		now:      now,
		provider: &stubProvider{plays: make(map[string][]game.Play), playsErr: make(map[string]error)},
		host:     newMemHost(),
		chat:     &recordingChat{},
	}
	h.states = eventstate.New(cache.NewMemory(ctx), 0, logger)
	h.disp = notifications.NewDispatcher(h.chat, h.states, nil, logger)
	h.sched = New(Deps{
		Provider:      h.provider,
		Subscriptions: subs,
		States:        h.states,
		Sender:        h.disp,
		Host:          h.host,
		Logger:        logger,
	}, Options{
		HypeMinutes: []int{5, 15, 30, 60},
		Now:         func() time.Time { return h.now },
	})
	return h
}

func (h *harness) alarm(t *testing.T, key Key) {
	t.Helper()
	if err := h.sched.Alarm(context.Background(), key); err != nil {
		t.Fatalf("alarm: %v", err)
	}
	h.disp.Wait()
}

func toronto(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func intPtr(n int) *int { return &n }

func testGame(start time.Time, status game.Status) game.Snapshot {
	return game.Snapshot{
		ID:             "101",
		League:         "pwhl",
		Status:         status,
		HomeTeam:       game.Team{ID: "home-1", Code: "TOR", Name: "Toronto Sceptres"},
		AwayTeam:       game.Team{ID: "away-1", Code: "BOS", Name: "Boston Fleet"},
		ScheduledStart: start,
	}
}

// --------------------------------------------------------------------------
// Wake rules
// --------------------------------------------------------------------------

func TestNextWakePicksEarliestGameDeadline(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	later := testGame(now.Add(7*time.Hour), game.StatusNotStarted)
	live := testGame(now.Add(-time.Hour), game.StatusInProgress)
	live.ID = "102"

	var deadlines []time.Time
	for _, g := range []game.Snapshot{later, live} {
		if d, ok := GameDeadline(now, g, eventstate.GameState{}, false, false); ok {
			deadlines = append(deadlines, d)
		}
	}
	if len(deadlines) != 2 {
		t.Fatalf("expected 2 deadlines, got %d", len(deadlines))
	}
	if want := now.Add(time.Hour); !deadlines[0].Equal(want) {
		t.Fatalf("expected 6h-before deadline %s, got %s", want, deadlines[0])
	}

	next, ok := NextWake(now, deadlines)
	if !ok {
		t.Fatal("expected a next wake")
	}
	if want := now.Add(3 * time.Minute); !next.Equal(want) {
		t.Fatalf("expected next wake %s, got %s", want, next)
	}
}

func TestNextWakeRespectsMinimumSpacing(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	next, ok := NextWake(now, []time.Time{now.Add(10 * time.Second), now.Add(-time.Minute)})
	if !ok {
		t.Fatal("expected a next wake")
	}
	if want := now.Add(30 * time.Second); !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}
}

func TestNextWakeWithoutDeadlines(t *testing.T) {
	if _, ok := NextWake(time.Now(), nil); ok {
		t.Fatal("expected no wake without deadlines")
	}
}

func TestGameDeadline(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	none := time.Time{}

	intermission := testGame(now.Add(-time.Hour), game.StatusInProgress)
	intermission.Intermission = true

	tests := []struct {
		name    string
		g       game.Snapshot
		st      eventstate.GameState
		sawNew  bool
		dayOver bool
		want    time.Time
	}{
		{"far out wakes six hours before", testGame(now.Add(8*time.Hour), game.StatusNotStarted), eventstate.GameState{}, false, false, now.Add(2 * time.Hour)},
		{"preview posted waits for lineup window", testGame(now.Add(3*time.Hour), game.StatusNotStarted), eventstate.GameState{PostedPreview: true}, false, false, now.Add(2 * time.Hour)},
		{"preview pending polls fast", testGame(now.Add(3*time.Hour), game.StatusNotStarted), eventstate.GameState{}, false, false, now.Add(3 * time.Minute)},
		{"inside lineup window polls fast", testGame(now.Add(30*time.Minute), game.StatusNotStarted), eventstate.GameState{PostedPreview: true}, false, false, now.Add(3 * time.Minute)},
		{"in progress polls fast", testGame(now.Add(-time.Hour), game.StatusInProgress), eventstate.GameState{}, false, false, now.Add(3 * time.Minute)},
		{"quiet intermission polls slowly", intermission, eventstate.GameState{}, false, false, now.Add(10 * time.Minute)},
		{"intermission with new events polls fast", intermission, eventstate.GameState{}, true, false, now.Add(3 * time.Minute)},
		{"unofficial final waits", testGame(now.Add(-3*time.Hour), game.StatusUnofficialFinal), eventstate.GameState{}, false, false, now.Add(10 * time.Minute)},
		{"final pending polls fast", testGame(now.Add(-3*time.Hour), game.StatusFinal), eventstate.GameState{}, false, false, now.Add(3 * time.Minute)},
		{"final posted stops", testGame(now.Add(-3*time.Hour), game.StatusFinal), eventstate.GameState{PostedFinal: true}, false, false, none},
		{"elapsed day stops", testGame(now.Add(-30*time.Hour), game.StatusNotStarted), eventstate.GameState{}, false, true, none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GameDeadline(now, tt.g, tt.st, tt.sawNew, tt.dayOver)
			if tt.want.IsZero() {
				if ok {
					t.Fatalf("expected no deadline, got %s", got)
				}
				return
			}
			if !ok || !got.Equal(tt.want) {
				t.Fatalf("expected %s, got %s (ok=%v)", tt.want, got, ok)
			}
		})
	}
}

// --------------------------------------------------------------------------
// Entity lifecycle
// --------------------------------------------------------------------------

func TestRefreshWithoutGamesReturnsFalse(t *testing.T) {
	h := newHarness(t, time.Now(), nil)
	key := Key{League: "pwhl", Day: "2026-10-16"}

	armed, _, err := h.sched.Refresh(context.Background(), key)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if armed {
		t.Fatal("expected no entity for a day without games")
	}
	if _, ok, _ := h.host.Load(context.Background(), key); ok {
		t.Fatal("entity should not be created")
	}
}

func TestRefreshRejectsUnknownLeague(t *testing.T) {
	h := newHarness(t, time.Now(), nil)
	if _, _, err := h.sched.Refresh(context.Background(), Key{League: "nhl", Day: "2026-10-16"}); err == nil {
		t.Fatal("expected error for unknown league")
	}
}

func TestGoalScenarioDispatchesOnce(t *testing.T) {
	loc := toronto(t)
	start := time.Date(2026, 10, 16, 19, 0, 0, 0, loc)
	subs := stubSubs{{
		ChannelID:  "chan-1",
		League:     "pwhl",
		TeamIDs:    []string{"home-1"},
		SendConfig: notifications.SendConfig{Preview: true, Start: true, Periods: true, Goals: true},
		Active:     true,
	}}
	h := newHarness(t, start.Add(-2*time.Hour), subs)
	h.provider.games = []game.Snapshot{testGame(start, game.StatusNotStarted)}
	key := Key{League: "pwhl", Day: "2026-10-16"}
	ctx := context.Background()

	armed, at, err := h.sched.Refresh(ctx, key)
	if err != nil || !armed {
		t.Fatalf("refresh: armed=%v err=%v", armed, err)
	}
	if !at.Equal(h.now) || !h.host.alarms[key].Equal(h.now) {
		t.Fatalf("expected alarm armed now, got %s", h.host.alarms[key])
	}

	// First poll: pre-game, preview goes out.
	h.alarm(t, key)
	if got := len(h.chat.posts); got != 1 || h.chat.posts[0].msg.Poll == nil {
		t.Fatalf("expected a single preview with a poll, got %d posts", got)
	}
	if want := start.Add(-time.Hour); !h.host.alarms[key].Equal(want) {
		t.Fatalf("expected wake at lineup window %s, got %s", want, h.host.alarms[key])
	}

	// Second poll: the game is under way with a goal in the second period.
	h.now = start.Add(45 * time.Minute)
	live := testGame(start, game.StatusInProgress)
	live.Period = intPtr(2)
	h.provider.games = []game.Snapshot{live}
	goal := game.Goal{
		PlayInfo: game.PlayInfo{RawID: "g1", Index: 1, Period: game.Period{ID: 2, Name: "2nd"}, Elapsed: 340},
		TeamID:   "home-1",
		Scorer:   game.Player{ID: "p9", Name: "Sarah Nurse", Number: "20"},
	}
	h.provider.plays["101"] = []game.Play{
		game.Faceoff{PlayInfo: game.PlayInfo{RawID: "f1", Index: 0, Period: game.Period{ID: 1, Name: "1st"}}},
		goal,
	}
	h.alarm(t, key)

	if got := h.chat.count(isGoal); got != 1 {
		t.Fatalf("expected exactly one goal notification, got %d", got)
	}
	if got := h.chat.count(isGameStartMsg); got != 1 {
		t.Fatalf("expected one game-start notification, got %d", got)
	}
	if len(h.chat.expired) != 1 || h.chat.expired[0] != "chan-1/m1" {
		t.Fatalf("expected the preview poll to be expired, got %v", h.chat.expired)
	}
	if want := h.now.Add(3 * time.Minute); !h.host.alarms[key].Equal(want) {
		t.Fatalf("expected fast poll at %s, got %s", want, h.host.alarms[key])
	}

	st, err := h.states.Load(ctx, "pwhl", "101")
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if !slices.Contains(st.PostedEventIDs, game.Identity(goal)) {
		t.Fatalf("goal identity missing from persisted ids %v", st.PostedEventIDs)
	}

	// Third poll with unchanged data sends nothing new.
	before := len(h.chat.posts)
	h.now = h.now.Add(3 * time.Minute)
	h.alarm(t, key)
	if got := len(h.chat.posts); got != before {
		t.Fatalf("expected no new posts, got %d more", got-before)
	}
}

func TestFinalGamePurgesThenDeletes(t *testing.T) {
	loc := toronto(t)
	start := time.Date(2026, 10, 16, 19, 0, 0, 0, loc)
	h := newHarness(t, start.Add(3*time.Hour), nil)
	final := testGame(start, game.StatusFinal)
	final.Period = intPtr(3)
	h.provider.games = []game.Snapshot{final}
	key := Key{League: "pwhl", Day: "2026-10-16"}
	ctx := context.Background()

	if _, _, err := h.sched.Refresh(ctx, key); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	h.alarm(t, key)

	st, ok, _ := h.host.Load(ctx, key)
	if !ok || st.Mode != ModePurge {
		t.Fatalf("expected purge mode, got %+v (exists=%v)", st, ok)
	}
	if want := h.now.Add(48 * time.Hour); !h.host.alarms[key].Equal(want) {
		t.Fatalf("expected purge alarm at %s, got %s", want, h.host.alarms[key])
	}

	h.now = h.now.Add(48 * time.Hour)
	h.alarm(t, key)
	if _, ok, _ := h.host.Load(ctx, key); ok {
		t.Fatal("expected entity to be deleted after purge")
	}
}

func TestFetchFailureRetriesThenPurgesAfterDayElapsed(t *testing.T) {
	loc := toronto(t)
	start := time.Date(2026, 10, 16, 19, 0, 0, 0, loc)
	h := newHarness(t, start.Add(-time.Hour), nil)
	h.provider.games = []game.Snapshot{testGame(start, game.StatusNotStarted)}
	key := Key{League: "pwhl", Day: "2026-10-16"}
	ctx := context.Background()

	if _, _, err := h.sched.Refresh(ctx, key); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	h.provider.scheduleErr = errors.New("upstream timeout")
	h.alarm(t, key)
	if want := h.now.Add(3 * time.Minute); !h.host.alarms[key].Equal(want) {
		t.Fatalf("expected retry at %s, got %s", want, h.host.alarms[key])
	}

	h.now = start.Add(48 * time.Hour)
	h.alarm(t, key)
	st, ok, _ := h.host.Load(ctx, key)
	if !ok || st.Mode != ModePurge {
		t.Fatalf("expected purge after the day elapsed, got %+v", st)
	}
}

func TestParseKeyValidatesDay(t *testing.T) {
	if _, err := ParseKey("pwhl", "16/10/2026"); err == nil {
		t.Fatal("expected error for malformed day")
	}
	k, err := ParseKey("pwhl", "2026-10-16")
	if err != nil || k.Day != "2026-10-16" {
		t.Fatalf("unexpected key %+v err=%v", k, err)
	}
}

func TestRefreshKeepsAnArmedEntity(t *testing.T) {
	loc := toronto(t)
	start := time.Date(2026, 10, 16, 19, 0, 0, 0, loc)
	h := newHarness(t, start.Add(-8*time.Hour), nil)
	h.provider.games = []game.Snapshot{testGame(start, game.StatusNotStarted)}
	key := Key{League: "pwhl", Day: "2026-10-16"}
	ctx := context.Background()

	if _, _, err := h.sched.Refresh(ctx, key); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	h.alarm(t, key)
	sleeping := start.Add(-6 * time.Hour)
	if !h.host.alarms[key].Equal(sleeping) {
		t.Fatalf("expected wake at %s, got %s", sleeping, h.host.alarms[key])
	}

	// A later refresh leaves the pre-game wake alone.
	h.now = h.now.Add(time.Hour)
	armed, next, err := h.sched.Refresh(ctx, key)
	if err != nil || !armed {
		t.Fatalf("refresh: armed=%v err=%v", armed, err)
	}
	if !next.Equal(sleeping) || !h.host.alarms[key].Equal(sleeping) {
		t.Fatalf("expected the pending wake %s kept, got next=%s alarm=%s", sleeping, next, h.host.alarms[key])
	}
}

func TestRefreshDoesNotReviveAFinishedDay(t *testing.T) {
	loc := toronto(t)
	start := time.Date(2026, 10, 16, 19, 0, 0, 0, loc)
	h := newHarness(t, start.Add(3*time.Hour), nil)
	final := testGame(start, game.StatusFinal)
	final.Period = intPtr(3)
	h.provider.games = []game.Snapshot{final}
	key := Key{League: "pwhl", Day: "2026-10-16"}
	ctx := context.Background()

	if _, _, err := h.sched.Refresh(ctx, key); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	h.alarm(t, key)
	purgeAt := h.host.alarms[key]

	h.now = h.now.Add(time.Hour)
	armed, next, err := h.sched.Refresh(ctx, key)
	if err != nil || !armed {
		t.Fatalf("refresh: armed=%v err=%v", armed, err)
	}
	st, _, _ := h.host.Load(ctx, key)
	if st.Mode != ModePurge || !next.Equal(purgeAt) || !h.host.alarms[key].Equal(purgeAt) {
		t.Fatalf("expected purge kept at %s, got mode=%s next=%s", purgeAt, st.Mode, next)
	}
}

// --------------------------------------------------------------------------
// Pre-game
// --------------------------------------------------------------------------

func TestPregameRemindersAndLineups(t *testing.T) {
	loc := toronto(t)
	start := time.Date(2026, 10, 16, 19, 0, 0, 0, loc)
	subs := stubSubs{{
		ChannelID:  "chan-1",
		League:     "pwhl",
		TeamIDs:    []string{"home-1"},
		SendConfig: notifications.SendConfig{Preview: true, Lineups: true},
		Active:     true,
	}}
	h := newHarness(t, start.Add(-58*time.Minute), subs)
	h.provider.games = []game.Snapshot{testGame(start, game.StatusNotStarted)}
	key := Key{League: "pwhl", Day: "2026-10-16"}
	ctx := context.Background()
	if _, _, err := h.sched.Refresh(ctx, key); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	lineups := &provider.Summary{Lineups: &provider.Lineups{
		HomeGoalie: game.Player{ID: "30", Name: "Kristen Campbell"},
		AwayGoalie: game.Player{ID: "35", Name: "Aerin Frankel"},
	}}

	steps := []struct {
		name        string
		before      time.Duration
		summary     *provider.Summary
		wantPosts   int
		wantLast    string
		wantLineups int
		wantSummary int
		lineupsDone bool
	}{
		{"preview and hour reminder", 58 * time.Minute, nil, 2, "starts in 1 hour!", 0, 1, false},
		{"no repeat, lineups not out yet", 55 * time.Minute, nil, 2, "starts in 1 hour!", 0, 2, false},
		{"lineups announced", 50 * time.Minute, lineups, 3, "", 1, 3, true},
		{"fifteen minute reminder", 12 * time.Minute, lineups, 4, "starts in 15 minutes!", 1, 3, true},
		{"nothing new", 11 * time.Minute, lineups, 4, "starts in 15 minutes!", 1, 3, true},
	}
	for _, step := range steps {
		h.now = start.Add(-step.before)
		h.provider.mu.Lock()
		h.provider.summary = step.summary
		h.provider.mu.Unlock()
		h.alarm(t, key)

		if got := len(h.chat.posts); got != step.wantPosts {
			t.Fatalf("%s: posts = %d, want %d", step.name, got, step.wantPosts)
		}
		if step.wantLast != "" && !strings.Contains(h.chat.last().Content, step.wantLast) {
			t.Fatalf("%s: last post %q, want %q", step.name, h.chat.last().Content, step.wantLast)
		}
		if got := h.chat.count(isLineups); got != step.wantLineups {
			t.Fatalf("%s: lineup posts = %d, want %d", step.name, got, step.wantLineups)
		}
		if h.provider.summaryCalls != step.wantSummary {
			t.Fatalf("%s: summary fetches = %d, want %d", step.name, h.provider.summaryCalls, step.wantSummary)
		}
		st, err := h.states.Load(ctx, "pwhl", "101")
		if err != nil {
			t.Fatalf("%s: load state: %v", step.name, err)
		}
		if st.PostedLineups != step.lineupsDone {
			t.Fatalf("%s: PostedLineups = %v, want %v", step.name, st.PostedLineups, step.lineupsDone)
		}
		if want := h.now.Add(3 * time.Minute); !h.host.alarms[key].Equal(want) {
			t.Fatalf("%s: expected fast poll at %s, got %s", step.name, want, h.host.alarms[key])
		}
	}
}

func TestPregameSkipsLineupsNobodyWants(t *testing.T) {
	loc := toronto(t)
	start := time.Date(2026, 10, 16, 19, 0, 0, 0, loc)
	subs := stubSubs{{
		ChannelID:  "chan-1",
		League:     "pwhl",
		TeamIDs:    []string{"away-1"},
		SendConfig: notifications.SendConfig{Preview: true},
		Active:     true,
	}}
	h := newHarness(t, start.Add(-30*time.Minute), subs)
	h.provider.games = []game.Snapshot{testGame(start, game.StatusNotStarted)}
	key := Key{League: "pwhl", Day: "2026-10-16"}
	ctx := context.Background()
	if _, _, err := h.sched.Refresh(ctx, key); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	h.alarm(t, key)

	if got := len(h.chat.posts); got != 2 {
		t.Fatalf("expected preview and reminder, got %d posts", got)
	}
	if !strings.Contains(h.chat.last().Content, "starts in 30 minutes!") {
		t.Fatalf("unexpected reminder %q", h.chat.last().Content)
	}
	if h.provider.summaryCalls != 0 {
		t.Fatalf("summary fetched %d times with no lineup channel", h.provider.summaryCalls)
	}
	st, err := h.states.Load(ctx, "pwhl", "101")
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if !st.PostedLineups || !st.PostedPreview || !slices.Equal(st.PostedHype, []int{30}) {
		t.Fatalf("unexpected state %+v", st)
	}
}

// --------------------------------------------------------------------------
// Per-game failures
// --------------------------------------------------------------------------

func TestOneGameFailureDoesNotBlockTheOthers(t *testing.T) {
	loc := toronto(t)
	start := time.Date(2026, 10, 16, 19, 0, 0, 0, loc)
	subs := stubSubs{{
		ChannelID:  "chan-1",
		League:     "pwhl",
		TeamIDs:    []string{"home-1"},
		SendConfig: notifications.SendConfig{Goals: true},
		Active:     true,
	}}
	h := newHarness(t, start.Add(150*time.Minute), subs)

	failing := testGame(start, game.StatusInProgress)
	failing.Period = intPtr(3)
	done := testGame(start, game.StatusUnofficialFinal)
	done.ID = "102"
	done.Period = intPtr(3)
	h.provider.games = []game.Snapshot{failing, done}

	goalIn := func(raw string) game.Goal {
		return game.Goal{
			PlayInfo: game.PlayInfo{RawID: raw, Period: game.Period{ID: 3, Name: "3rd"}, Elapsed: 100},
			TeamID:   "home-1",
			Scorer:   game.Player{ID: "p9", Name: "Sarah Nurse"},
		}
	}
	h.provider.plays["101"] = []game.Play{goalIn("g101")}
	h.provider.plays["102"] = []game.Play{goalIn("g102")}
	h.provider.playsErr["101"] = errors.New("upstream 503")

	key := Key{League: "pwhl", Day: "2026-10-16"}
	ctx := context.Background()
	if _, _, err := h.sched.Refresh(ctx, key); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	tests := []struct {
		name      string
		fail      bool
		wantGoals int
	}{
		{"failing game is retried, the other dispatches", true, 1},
		{"recovered game catches up", false, 2},
	}
	for _, tt := range tests {
		h.provider.mu.Lock()
		if !tt.fail {
			delete(h.provider.playsErr, "101")
		}
		h.provider.mu.Unlock()
		h.alarm(t, key)

		if got := h.chat.count(isGoal); got != tt.wantGoals {
			t.Fatalf("%s: goals = %d, want %d", tt.name, got, tt.wantGoals)
		}
		if want := h.now.Add(3 * time.Minute); !h.host.alarms[key].Equal(want) {
			t.Fatalf("%s: expected retry wake %s, got %s", tt.name, want, h.host.alarms[key])
		}
		if st, _, _ := h.host.Load(ctx, key); st.Mode != ModeCheck {
			t.Fatalf("%s: expected check mode, got %s", tt.name, st.Mode)
		}
		h.now = h.now.Add(3 * time.Minute)
	}
}
