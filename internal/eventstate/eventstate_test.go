package eventstate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/albapepper/scoracle-alerts/internal/cache"
)

// ttlStore records the TTL of each Set.
type ttlStore struct {
	data map[string][]byte
	ttls map[string]time.Duration
}

func newTTLStore() *ttlStore {
	return &ttlStore{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (s *ttlStore) Get(_ context.Context, key string) ([]byte, error) {
	d, ok := s.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return d, nil
}

func (s *ttlStore) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	s.data[key] = data
	s.ttls[key] = ttl
	return nil
}

func (s *ttlStore) Delete(_ context.Context, key string) error {
	delete(s.data, key)
	return nil
}

func (s *ttlStore) Stats(context.Context) map[string]interface{} { return nil }

type brokenStore struct{ ttlStore }

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("connection refused") }

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newTestRepo(store cache.Store) *Repository {
	r := New(store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return now }
	return r
}

func TestLoadMissingReturnsFreshState(t *testing.T) {
	r := newTestRepo(newTTLStore())
	st, err := r.Load(context.Background(), "pwhl", "101")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.PostedPreview || len(st.PostedEventIDs) != 0 || !st.CreatedAt.Equal(now) {
		t.Fatalf("expected fresh state, got %+v", st)
	}
}

func TestLoadCorruptReturnsFreshState(t *testing.T) {
	store := newTTLStore()
	store.data[StateKey("pwhl", "101")] = []byte("{not json")
	r := newTestRepo(store)

	st, err := r.Load(context.Background(), "pwhl", "101")
	if err != nil {
		t.Fatalf("corrupt state should not error: %v", err)
	}
	if !st.CreatedAt.Equal(now) || st.PostedFinal {
		t.Fatalf("expected fresh state, got %+v", st)
	}
}

func TestLoadStoreErrorPropagates(t *testing.T) {
	r := newTestRepo(&brokenStore{})
	if _, err := r.Load(context.Background(), "pwhl", "101"); err == nil {
		t.Fatal("expected store error")
	}
}

func TestSaveRoundTripAndTTLFromCreation(t *testing.T) {
	store := newTTLStore()
	r := newTestRepo(store)
	ctx := context.Background()

	st := GameState{
		PostedPreview:  true,
		PostedHype:     []int{15},
		PostedEventIDs: []string{"period_start:1", "goal:g1"},
		CreatedAt:      now.Add(-4 * 24 * time.Hour),
	}
	if err := r.Save(ctx, "pwhl", "101", st); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := store.ttls[StateKey("pwhl", "101")]; got != DefaultTTL-4*24*time.Hour {
		t.Fatalf("ttl = %v, want remaining retention", got)
	}

	loaded, err := r.Load(ctx, "pwhl", "101")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.PostedPreview || !loaded.HasHype(15) || loaded.HasHype(5) || len(loaded.PostedEventIDs) != 2 {
		t.Fatalf("unexpected state %+v", loaded)
	}
}

func TestSaveExpiredStateDeletes(t *testing.T) {
	store := newTTLStore()
	store.data[StateKey("pwhl", "101")] = []byte(`{}`)
	r := newTestRepo(store)

	st := GameState{CreatedAt: now.Add(-DefaultTTL - time.Minute)}
	if err := r.Save(context.Background(), "pwhl", "101", st); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := store.data[StateKey("pwhl", "101")]; ok {
		t.Fatal("expired state should be removed")
	}
}

func TestRefsArePerChannel(t *testing.T) {
	r := newTestRepo(newTTLStore())
	ctx := context.Background()

	if err := r.SaveRefs(ctx, "pwhl", "101", "a", MessageRefs{PreviewMessageID: "m1", ThreadID: "t1"}); err != nil {
		t.Fatalf("save refs: %v", err)
	}
	a, _ := r.LoadRefs(ctx, "pwhl", "101", "a")
	b, _ := r.LoadRefs(ctx, "pwhl", "101", "b")
	if a.PreviewMessageID != "m1" || a.ThreadID != "t1" {
		t.Fatalf("unexpected refs for a: %+v", a)
	}
	if b != (MessageRefs{}) {
		t.Fatalf("expected empty refs for b, got %+v", b)
	}
}
