package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entity is one row of game_day_entities.
type Entity struct {
	Key     Key
	Mode    Mode
	AlarmAt *time.Time
}

// PGHost keeps entity state and alarms in the game_day_entities table.
type PGHost struct {
	pool *pgxpool.Pool
}

var _ Host = (*PGHost)(nil)

// NewPGHost wraps a pool whose connections have the game_day_* statements
// prepared.
func NewPGHost(pool *pgxpool.Pool) *PGHost {
	return &PGHost{pool: pool}
}

// Load returns the entity's state, or false if it does not exist.
func (h *PGHost) Load(ctx context.Context, key Key) (State, bool, error) {
	day, err := dayParam(key)
	if err != nil {
		return State{}, false, err
	}
	var (
		mode    string
		alarmAt *time.Time
	)
	err = h.pool.QueryRow(ctx, "game_day_load", key.League, day).Scan(&mode, &alarmAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("load game day: %w", err)
	}
	st := State{Mode: Mode(mode)}
	if alarmAt != nil {
		st.AlarmAt = *alarmAt
	}
	return st, true, nil
}

// Save upserts the entity's state.
func (h *PGHost) Save(ctx context.Context, key Key, st State) error {
	day, err := dayParam(key)
	if err != nil {
		return err
	}
	if _, err := h.pool.Exec(ctx, "game_day_save", key.League, day, string(st.Mode)); err != nil {
		return fmt.Errorf("save game day: %w", err)
	}
	return nil
}

// SetAlarm replaces the entity's single pending alarm.
func (h *PGHost) SetAlarm(ctx context.Context, key Key, at time.Time) error {
	day, err := dayParam(key)
	if err != nil {
		return err
	}
	if _, err := h.pool.Exec(ctx, "game_day_set_alarm", key.League, day, at); err != nil {
		return fmt.Errorf("set alarm: %w", err)
	}
	return nil
}

// Delete removes the entity and its alarm.
func (h *PGHost) Delete(ctx context.Context, key Key) error {
	day, err := dayParam(key)
	if err != nil {
		return err
	}
	if _, err := h.pool.Exec(ctx, "game_day_delete", key.League, day); err != nil {
		return fmt.Errorf("delete game day: %w", err)
	}
	return nil
}

// ClaimDue atomically claims up to limit entities whose alarm has fired and
// pushes their alarm out by lease. A cycle that dies mid-way is retried when
// the lease lapses. Uses FOR UPDATE SKIP LOCKED for safe concurrent runners.
func (h *PGHost) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Key, error) {
	rows, err := h.pool.Query(ctx, `
		UPDATE game_day_entities
		SET alarm_at = $2, updated_at = NOW()
		WHERE (league, day) IN (
			SELECT league, day FROM game_day_entities
			WHERE alarm_at IS NOT NULL AND alarm_at <= $1
			ORDER BY alarm_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING league, day`,
		now, now.Add(lease), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due game days: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var (
			league string
			day    time.Time
		)
		if err := rows.Scan(&league, &day); err != nil {
			return nil, fmt.Errorf("scan claimed: %w", err)
		}
		keys = append(keys, Key{League: league, Day: day.Format(dayLayout)})
	}
	return keys, rows.Err()
}

// List returns every entity, oldest day first.
func (h *PGHost) List(ctx context.Context) ([]Entity, error) {
	rows, err := h.pool.Query(ctx, "game_day_list")
	if err != nil {
		return nil, fmt.Errorf("list game days: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var (
			e    Entity
			day  time.Time
			mode string
		)
		if err := rows.Scan(&e.Key.League, &day, &mode, &e.AlarmAt); err != nil {
			return nil, fmt.Errorf("scan game day: %w", err)
		}
		e.Key.Day = day.Format(dayLayout)
		e.Mode = Mode(mode)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sweep deletes entities whose day is before cutoff, returning the count.
func (h *PGHost) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := h.pool.Exec(ctx, "game_day_sweep", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep game days: %w", err)
	}
	return tag.RowsAffected(), nil
}

// dayParam converts the key's day to a DATE parameter.
func dayParam(key Key) (time.Time, error) {
	t, err := time.Parse(dayLayout, key.Day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", key.Day, err)
	}
	return t, nil
}
