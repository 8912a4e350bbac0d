// Package hockeytech implements provider.Provider against the HockeyTech
// (LeagueStat) feed used by the PWHL and AHL.
//
// The feed authenticates with a key + client_code query pair and wraps
// statviewfeed responses in JSONP parentheses. Rate limiting is handled via a
// token bucket limiter.
package hockeytech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/albapepper/scoracle-alerts/internal/config"
	"github.com/albapepper/scoracle-alerts/internal/provider"
)

// Client is the shared HTTP client for all HockeyTech endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var _ provider.Provider = (*Client)(nil)

// NewClient creates a HockeyTech HTTP client with rate limiting.
func NewClient(baseURL, apiKey string, requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), 2),
		logger:     logger,
	}
}

// get performs a rate-limited GET against the feed and returns the body with
// any JSONP wrapper removed.
func (c *Client) get(ctx context.Context, league string, params url.Values) ([]byte, error) {
	lc, ok := config.LookupLeague(league)
	if !ok {
		return nil, fmt.Errorf("unknown league %q", league)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params.Set("key", c.apiKey)
	params.Set("client_code", lc.ClientCode)
	params.Set("lang", "en")
	params.Set("fmt", "json")

	u := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	view := params.Get("view")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request %s: %w", view, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, provider.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hockeytech %s returned %d: %s", view, resp.StatusCode, truncate(body, 200))
	}

	return unwrapJSONP(body), nil
}

// unwrapJSONP strips the "(...)" wrapper statviewfeed puts around JSON.
func unwrapJSONP(body []byte) []byte {
	b := bytes.TrimSpace(body)
	if len(b) >= 2 && b[0] == '(' && b[len(b)-1] == ')' {
		return bytes.TrimSpace(b[1 : len(b)-1])
	}
	return b
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
