package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSubscriptions reads channel subscriptions from Postgres. The notifier
// never writes them.
type PGSubscriptions struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGSubscriptions wraps a pool whose connections have the
// active_subscriptions statement prepared.
func NewPGSubscriptions(pool *pgxpool.Pool, logger *slog.Logger) *PGSubscriptions {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGSubscriptions{pool: pool, logger: logger}
}

// subscriptionRow is a scanned row whose send_config is still raw JSON.
type subscriptionRow struct {
	sub        Subscription
	sendConfig []byte
}

// ActiveSubscriptions returns the league's active subscriptions. A row with
// an unreadable send_config is logged and left out.
func (s *PGSubscriptions) ActiveSubscriptions(ctx context.Context, league string) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx, "active_subscriptions", league)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var scanned []subscriptionRow
	for rows.Next() {
		var row subscriptionRow
		if err := rows.Scan(&row.sub.ChannelID, &row.sub.League, &row.sub.TeamIDs, &row.sendConfig, &row.sub.Active); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		scanned = append(scanned, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read subscriptions: %w", err)
	}
	return decodeSubscriptions(scanned, s.logger), nil
}

func decodeSubscriptions(rows []subscriptionRow, logger *slog.Logger) []Subscription {
	subs := make([]Subscription, 0, len(rows))
	for _, row := range rows {
		sub := row.sub
		if len(row.sendConfig) > 0 {
			if err := json.Unmarshal(row.sendConfig, &sub.SendConfig); err != nil {
				logger.Warn("Skipping subscription with unreadable send config",
					"league", sub.League, "channel_id", sub.ChannelID, "error", err)
				continue
			}
		}
		subs = append(subs, sub)
	}
	return subs
}
