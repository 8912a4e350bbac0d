// Package discord is a minimal Discord REST client covering the four calls
// the notifier makes: post a message, open a thread, patch a channel, and
// expire a poll.
//
// Calls are rate limited with a token bucket and retried with exponential
// backoff on 429, 5xx and transport errors. Every call is safe to retry.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// ErrPermanent wraps responses that retrying cannot fix (4xx other than 429).
var ErrPermanent = errors.New("discord: permanent failure")

const maxRetries = 4

// Client talks to the Discord REST API as a bot.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	logger     *slog.Logger

	// newBackOff is swapped in tests to avoid real sleeps.
	newBackOff func() backoff.BackOff
}

// NewClient creates a Discord client limited to requestsPerSecond.
func NewClient(baseURL, token string, requestsPerSecond int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		token:      token,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		logger:     logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
	}
}

// PostMessage sends a message to a channel.
func (c *Client) PostMessage(ctx context.Context, channelID string, msg Message) (MessageRef, error) {
	var ref MessageRef
	err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", msg, &ref)
	if err != nil {
		return MessageRef{}, fmt.Errorf("post message to %s: %w", channelID, err)
	}
	if ref.ChannelID == "" {
		ref.ChannelID = channelID
	}
	return ref, nil
}

// CreateThread opens a thread. With a messageID the thread hangs off that
// message; without one it is a standalone public thread.
func (c *Client) CreateThread(ctx context.Context, channelID, messageID, name string) (ThreadRef, error) {
	path := "/channels/" + channelID + "/threads"
	body := threadRequest{Name: truncateName(name), AutoArchiveDuration: 1440}
	if messageID != "" {
		path = "/channels/" + channelID + "/messages/" + messageID + "/threads"
	} else {
		body.Type = publicThreadType
	}

	var ref ThreadRef
	if err := c.do(ctx, http.MethodPost, path, body, &ref); err != nil {
		return ThreadRef{}, fmt.Errorf("create thread in %s: %w", channelID, err)
	}
	return ref, nil
}

// PatchChannel modifies a channel or thread.
func (c *Client) PatchChannel(ctx context.Context, channelID string, patch ChannelPatch) error {
	if err := c.do(ctx, http.MethodPatch, "/channels/"+channelID, patch, nil); err != nil {
		return fmt.Errorf("patch channel %s: %w", channelID, err)
	}
	return nil
}

// ExpirePoll closes voting on a poll attached to a message.
func (c *Client) ExpirePoll(ctx context.Context, channelID, messageID string) error {
	path := "/channels/" + channelID + "/polls/" + messageID + "/expire"
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("expire poll %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

// do sends one JSON request with rate limiting and retries, decoding the
// response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Bot "+c.token)
		req.Header.Set("User-Agent", "DiscordBot (scoracle-alerts, 1.0)")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.logger.Warn("Discord request will be retried",
				"method", method, "path", path, "status", resp.StatusCode, "attempt", attempt)
			return fmt.Errorf("discord %s %s returned %d", method, path, resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("%w: %s %s returned %d: %s",
				ErrPermanent, method, path, resp.StatusCode, truncate(body, 200)))
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), maxRetries), ctx)
	return backoff.Retry(op, policy)
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}

// truncateName keeps thread names inside Discord's 100 character limit.
func truncateName(name string) string {
	r := []rune(name)
	if len(r) <= 100 {
		return name
	}
	return string(r[:100])
}
