package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/albapepper/scoracle-alerts/internal/api/respond"
	"github.com/albapepper/scoracle-alerts/internal/config"
	"github.com/albapepper/scoracle-alerts/internal/metrics"
	"github.com/albapepper/scoracle-alerts/internal/scheduler"
)

type stubRefresher struct {
	armed bool
	next  time.Time
	err   error
	got   []scheduler.Key
}

func (s *stubRefresher) Refresh(_ context.Context, key scheduler.Key) (bool, time.Time, error) {
	s.got = append(s.got, key)
	return s.armed, s.next, s.err
}

type stubPinger struct{ err error }

func (p stubPinger) HealthCheck(context.Context) error { return p.err }

type stubStats map[string]interface{}

func (s stubStats) Stats(context.Context) map[string]interface{} { return s }

func testConfig() *config.Config {
	return &config.Config{
		CORSAllowOrigins: []string{"http://localhost:3000"},
		AdminToken:       "s3cret",
		MetricsEnabled:   true,
	}
}

func newTestServer(t *testing.T, ref *stubRefresher, db stubPinger, cfg *config.Config) *httptest.Server {
	t.Helper()
	router := NewRouter(Deps{
		Refresher: ref,
		DB:        db,
		Store:     stubStats{"backend": "memory", "total_keys": 0},
		Metrics:   metrics.NewRecorder(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, cfg)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postGameDay(t *testing.T, srv *httptest.Server, token, body string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/game-days", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGameDayArmed(t *testing.T) {
	next := time.Date(2026, 10, 16, 16, 0, 0, 0, time.UTC)
	ref := &stubRefresher{armed: true, next: next}
	srv := newTestServer(t, ref, stubPinger{}, testConfig())

	resp := postGameDay(t, srv, "s3cret", `{"day":"2026-10-16","league":"PWHL"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var body struct {
		League   string    `json:"league"`
		Day      string    `json:"day"`
		NextWake time.Time `json:"next_wake"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.NextWake.Equal(next) || body.Day != "2026-10-16" || body.League != "pwhl" {
		t.Fatalf("unexpected body %+v", body)
	}
	if len(ref.got) != 1 || ref.got[0].Day != "2026-10-16" {
		t.Fatalf("unexpected refresh calls %v", ref.got)
	}
}

func TestGameDayWithoutGames(t *testing.T) {
	srv := newTestServer(t, &stubRefresher{}, stubPinger{}, testConfig())
	if resp := postGameDay(t, srv, "s3cret", `{"day":"2026-07-01","league":"pwhl"}`); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
}

func TestGameDayRejectsBadInput(t *testing.T) {
	ref := &stubRefresher{armed: true}
	srv := newTestServer(t, ref, stubPinger{}, testConfig())

	for _, body := range []string{
		`not json`,
		`{"day":"16/10/2026","league":"pwhl"}`,
		`{"day":"2026-10-16","league":"khl"}`,
		`{"day":"2026-10-16"}`,
	} {
		if resp := postGameDay(t, srv, "s3cret", body); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
	if len(ref.got) != 0 {
		t.Fatalf("refresh should not run on bad input, got %v", ref.got)
	}
}

func TestGameDayRequiresToken(t *testing.T) {
	srv := newTestServer(t, &stubRefresher{}, stubPinger{}, testConfig())
	for _, token := range []string{"", "wrong"} {
		if resp := postGameDay(t, srv, token, `{"day":"2026-10-16","league":"pwhl"}`); resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d, want 401", token, resp.StatusCode)
		}
	}
}

func TestGameDayProviderFailure(t *testing.T) {
	srv := newTestServer(t, &stubRefresher{err: errors.New("timeout")}, stubPinger{}, testConfig())
	resp := postGameDay(t, srv, "s3cret", `{"day":"2026-10-16","league":"pwhl"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	var body respond.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "REFRESH_FAILED" || body.Error.RequestID == "" {
		t.Fatalf("expected a coded error with the request id, got %+v", body.Error)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &stubRefresher{}, stubPinger{err: errors.New("down")}, testConfig())

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/health/db", http.StatusServiceUnavailable},
		{"/health/cache", http.StatusOK},
		{"/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatalf("get %s: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestRequestsAreCounted(t *testing.T) {
	srv := newTestServer(t, &stubRefresher{}, stubPinger{}, testConfig())
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `alerts_http_requests_total{method="GET",route="/health`) {
		t.Fatalf("expected /health request in exposition, got:\n%s", body)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitEnabled = true
	cfg.RateLimitRequests = 2
	cfg.RateLimitWindow = time.Hour
	srv := newTestServer(t, &stubRefresher{}, stubPinger{}, cfg)

	limited := false
	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Fatal("expected the third request to be rate limited")
	}
}
