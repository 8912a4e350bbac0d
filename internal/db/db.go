// Package db provides a pgxpool-based connection pool with schema bootstrap,
// prepared statement registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/scoracle-alerts/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Tables must exist before statements referencing them can be prepared.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, schema); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// schema is idempotent. notification_subscriptions is owned by whatever
// manages channel settings; it is declared here so a fresh database works.
const schema = `
CREATE TABLE IF NOT EXISTS notification_subscriptions (
	channel_id  TEXT    NOT NULL,
	league      TEXT    NOT NULL,
	team_ids    TEXT[]  NOT NULL DEFAULT '{}',
	send_config JSONB   NOT NULL DEFAULT '{}',
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	PRIMARY KEY (league, channel_id)
);

CREATE TABLE IF NOT EXISTS game_day_entities (
	league     TEXT        NOT NULL,
	day        DATE        NOT NULL,
	mode       TEXT        NOT NULL,
	alarm_at   TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (league, day)
);

CREATE INDEX IF NOT EXISTS game_day_entities_alarm_idx
	ON game_day_entities (alarm_at) WHERE alarm_at IS NOT NULL;
`

// registerPreparedStatements registers all statements the scheduler and API
// use. Prepared statements eliminate parse overhead on every poll.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Subscriptions (read-only)
		"active_subscriptions": "SELECT channel_id, league, team_ids, send_config, active FROM notification_subscriptions WHERE league = $1 AND active ORDER BY channel_id",

		// Game-day entities
		"game_day_load":      "SELECT mode, alarm_at FROM game_day_entities WHERE league = $1 AND day = $2",
		"game_day_save":      "INSERT INTO game_day_entities (league, day, mode) VALUES ($1, $2, $3) ON CONFLICT (league, day) DO UPDATE SET mode = EXCLUDED.mode, updated_at = NOW()",
		"game_day_set_alarm": "UPDATE game_day_entities SET alarm_at = $3, updated_at = NOW() WHERE league = $1 AND day = $2",
		"game_day_delete":    "DELETE FROM game_day_entities WHERE league = $1 AND day = $2",
		"game_day_sweep":     "DELETE FROM game_day_entities WHERE day < $1",
		"game_day_list":      "SELECT league, day, mode, alarm_at FROM game_day_entities ORDER BY day, league",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
