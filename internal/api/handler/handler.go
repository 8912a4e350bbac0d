// Package handler provides HTTP handlers for the alert service's endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/albapepper/scoracle-alerts/internal/api/respond"
	"github.com/albapepper/scoracle-alerts/internal/config"
	"github.com/albapepper/scoracle-alerts/internal/scheduler"
)

// Refresher arms a game-day entity.
type Refresher interface {
	Refresh(ctx context.Context, key scheduler.Key) (bool, time.Time, error)
}

// Pinger checks a backing store's connectivity.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// StatsSource reports key/value store statistics.
type StatsSource interface {
	Stats(ctx context.Context) map[string]interface{}
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	refresher Refresher
	db        Pinger
	store     StatsSource
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Handler with shared dependencies.
func New(refresher Refresher, db Pinger, store StatsSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		refresher: refresher,
		db:        db,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// GameDayRequest is the body of POST /api/v1/game-days.
type GameDayRequest struct {
	Day    string `json:"day" example:"2026-10-16"`
	League string `json:"league" example:"pwhl"`
}

// GameDayArmed is returned when a game day has games and is being watched.
type GameDayArmed struct {
	League   string    `json:"league"`
	Day      string    `json:"day"`
	NextWake time.Time `json:"next_wake"`
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns service name, version and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "Scoracle Alerts",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
		"leagues": config.LeagueIDs(),
	})
}

// RefreshGameDay arms the scheduler for one league and calendar day.
// @Summary Watch a game day
// @Description Fetches the league's schedule for the day. Days without games are ignored; otherwise the day is polled until every game is final.
// @Tags game-days
// @Accept json
// @Produce json
// @Param request body GameDayRequest true "League and day (YYYY-MM-DD, league time zone)"
// @Success 202 {object} GameDayArmed
// @Success 204 "No games scheduled"
// @Failure 400 {object} respond.ErrorResponse
// @Failure 401 {object} respond.ErrorResponse
// @Failure 502 {object} respond.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/game-days [post]
func (h *Handler) RefreshGameDay(w http.ResponseWriter, r *http.Request) {
	var req GameDayRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		respond.WriteErrorDetail(w, r, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON", err.Error())
		return
	}
	lc, ok := config.LookupLeague(req.League)
	if !ok {
		respond.WriteError(w, r, http.StatusBadRequest, "UNKNOWN_LEAGUE", "league must be one of the supported leagues")
		return
	}
	key, err := scheduler.ParseKey(lc.ID, req.Day)
	if err != nil {
		respond.WriteErrorDetail(w, r, http.StatusBadRequest, "INVALID_DAY", "day must be YYYY-MM-DD", err.Error())
		return
	}

	armed, next, err := h.refresher.Refresh(r.Context(), key)
	if err != nil {
		h.logger.Warn("Game day refresh failed", "league", key.League, "day", key.Day, "error", err)
		respond.WriteError(w, r, http.StatusBadGateway, "REFRESH_FAILED", "Could not load the schedule for that day")
		return
	}
	if !armed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respond.WriteJSON(w, http.StatusAccepted, GameDayArmed{League: key.League, Day: key.Day, NextWake: next.UTC()})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(r.Context()); err != nil {
		h.logger.Warn("Database health check failed", "error", err)
		respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": h.now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns notification state store statistics.
// @Summary State store health check
// @Description Returns key counts for the per-game notification state store (Redis or in-memory).
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	stats := h.store.Stats(r.Context())
	status, code := "healthy", http.StatusOK
	if _, failed := stats["error"]; failed {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	respond.WriteJSON(w, code, map[string]interface{}{
		"status":    status,
		"cache":     stats,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
