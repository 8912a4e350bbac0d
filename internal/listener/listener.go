// Package listener provides a Postgres LISTEN/NOTIFY consumer for game-day
// refresh requests. It holds a dedicated pgx connection (not from the pool)
// listening on the `game_day_refresh` channel.
//
// Anything that can run SQL can arm a day:
//
//	SELECT pg_notify('game_day_refresh', '{"league":"pwhl","day":"2026-10-16"}');
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/scoracle-alerts/internal/scheduler"
)

const (
	channel          = "game_day_refresh"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
	refreshTimeout   = time.Minute
)

// RefreshRequest is the JSON payload from pg_notify('game_day_refresh', ...).
type RefreshRequest struct {
	League string `json:"league"`
	Day    string `json:"day"`
}

// Refresher arms a game-day entity.
type Refresher interface {
	Refresh(ctx context.Context, key scheduler.Key) (bool, time.Time, error)
}

// Start opens a dedicated connection and listens on the game_day_refresh
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, refresher Refresher, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, refresher, logger)
		if ctx.Err() != nil {
			logger.Info("Refresh listener stopped (context cancelled)")
			return
		}

		logger.Error("Refresh listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, refresher Refresher, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Refresh listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		key, err := parsePayload(notification.Payload)
		if err != nil {
			logger.Warn("Ignoring refresh request",
				"payload", notification.Payload, "error", err)
			continue
		}

		// Process asynchronously to avoid blocking the listener
		go handleRefresh(ctx, refresher, key, logger)
	}
}

func parsePayload(payload string) (scheduler.Key, error) {
	var req RefreshRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return scheduler.Key{}, fmt.Errorf("decode payload: %w", err)
	}
	if req.League == "" {
		return scheduler.Key{}, fmt.Errorf("missing league")
	}
	return scheduler.ParseKey(req.League, req.Day)
}

func handleRefresh(ctx context.Context, refresher Refresher, key scheduler.Key, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	armed, next, err := refresher.Refresh(ctx, key)
	if err != nil {
		logger.Warn("Game day refresh failed", "league", key.League, "day", key.Day, "error", err)
		return
	}
	logger.Info("Game day refresh handled",
		"league", key.League, "day", key.Day, "armed", armed, "next_wake", next)
}
