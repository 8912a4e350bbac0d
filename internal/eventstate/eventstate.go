// Package eventstate persists what has already been posted for each game, so
// repeated polls and process restarts never post an event twice.
package eventstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/albapepper/scoracle-alerts/internal/cache"
)

// DefaultTTL is how long per-game state is retained after creation.
const DefaultTTL = 14 * 24 * time.Hour

// GameState is the per-game notification state.
type GameState struct {
	PostedPreview  bool      `json:"postedPreview"`
	PostedLineups  bool      `json:"postedLineups"`
	PostedFinal    bool      `json:"postedFinal"`
	PostedHype     []int     `json:"postedHype,omitempty"`
	PostedEventIDs []string  `json:"postedEventIds"`
	CreatedAt      time.Time `json:"createdAt"`
}

// HasHype reports whether the reminder for a threshold was already posted.
func (s GameState) HasHype(minute int) bool {
	return slices.Contains(s.PostedHype, minute)
}

// MessageRefs are the chat-platform ids recorded for one game in one channel.
type MessageRefs struct {
	PreviewMessageID string `json:"previewMessageId,omitempty"`
	ThreadID         string `json:"threadId,omitempty"`
	PollExpired      bool   `json:"pollExpired,omitempty"`
	ThreadArchived   bool   `json:"threadArchived,omitempty"`
}

// Repository reads and writes game state and message refs in a TTL store.
type Repository struct {
	store  cache.Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Repository. A non-positive ttl uses DefaultTTL.
func New(store cache.Store, ttl time.Duration, logger *slog.Logger) *Repository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{store: store, ttl: ttl, logger: logger, now: time.Now}
}

// StateKey is the store key for a game's notification state.
func StateKey(league, gameID string) string {
	return fmt.Sprintf("%s-%s-eventData", league, gameID)
}

// RefsKey is the store key for a game's message refs in one channel.
func RefsKey(league, gameID, channelID string) string {
	return fmt.Sprintf("%s-%s-%s-refs", league, gameID, channelID)
}

// Load returns the game's state. A missing or unreadable entry yields a fresh
// state stamped with the current time, as if the game were seen for the
// first time.
func (r *Repository) Load(ctx context.Context, league, gameID string) (GameState, error) {
	data, err := r.store.Get(ctx, StateKey(league, gameID))
	if errors.Is(err, cache.ErrMiss) {
		return GameState{CreatedAt: r.now()}, nil
	}
	if err != nil {
		return GameState{}, fmt.Errorf("load game state: %w", err)
	}

	var st GameState
	if err := json.Unmarshal(data, &st); err != nil {
		r.logger.Warn("Discarding corrupt game state",
			"league", league, "game_id", gameID, "error", err)
		return GameState{CreatedAt: r.now()}, nil
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = r.now()
	}
	return st, nil
}

// Save writes the game's state. Expiry is measured from CreatedAt, so saving
// never extends retention.
func (r *Repository) Save(ctx context.Context, league, gameID string, st GameState) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = r.now()
	}
	remaining := st.CreatedAt.Add(r.ttl).Sub(r.now())
	if remaining <= 0 {
		return r.store.Delete(ctx, StateKey(league, gameID))
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode game state: %w", err)
	}
	if err := r.store.Set(ctx, StateKey(league, gameID), data, remaining); err != nil {
		return fmt.Errorf("save game state: %w", err)
	}
	return nil
}

// LoadRefs returns the message refs for a channel, or zero refs when none.
func (r *Repository) LoadRefs(ctx context.Context, league, gameID, channelID string) (MessageRefs, error) {
	data, err := r.store.Get(ctx, RefsKey(league, gameID, channelID))
	if errors.Is(err, cache.ErrMiss) {
		return MessageRefs{}, nil
	}
	if err != nil {
		return MessageRefs{}, fmt.Errorf("load message refs: %w", err)
	}
	var refs MessageRefs
	if err := json.Unmarshal(data, &refs); err != nil {
		return MessageRefs{}, nil
	}
	return refs, nil
}

// SaveRefs upserts the message refs for a channel.
func (r *Repository) SaveRefs(ctx context.Context, league, gameID, channelID string, refs MessageRefs) error {
	data, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("encode message refs: %w", err)
	}
	if err := r.store.Set(ctx, RefsKey(league, gameID, channelID), data, r.ttl); err != nil {
		return fmt.Errorf("save message refs: %w", err)
	}
	return nil
}
