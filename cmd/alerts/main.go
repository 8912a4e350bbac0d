// Command alerts is the Scoracle live-game alert service and its operator CLI.
//
// Usage:
//
//	scoracle-alerts serve
//	scoracle-alerts refresh --league pwhl --day 2026-10-16
//	scoracle-alerts purge --league pwhl --day 2026-10-16
//	scoracle-alerts timeline --league pwhl --game 137 --day 2026-10-16

// @title Scoracle Alerts API
// @version 1.0.0
// @description Live hockey game alerts for chat channels. Arms game-day polling and exposes health and metrics.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @contact.name Scoracle
// @license.name MIT
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/scoracle-alerts/internal/cache"
	"github.com/albapepper/scoracle-alerts/internal/config"
	"github.com/albapepper/scoracle-alerts/internal/db"
	"github.com/albapepper/scoracle-alerts/internal/discord"
	"github.com/albapepper/scoracle-alerts/internal/eventstate"
	"github.com/albapepper/scoracle-alerts/internal/game"
	"github.com/albapepper/scoracle-alerts/internal/metrics"
	"github.com/albapepper/scoracle-alerts/internal/notifications"
	"github.com/albapepper/scoracle-alerts/internal/provider/hockeytech"
	"github.com/albapepper/scoracle-alerts/internal/scheduler"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "scoracle-alerts",
		Short:        "Live game alerts for chat channels",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(refreshCmd())
	root.AddCommand(purgeCmd())
	root.AddCommand(timelineCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// Wiring
// --------------------------------------------------------------------------

// services is everything a running scheduler needs.
type services struct {
	cfg        *config.Config
	pool       *db.Pool
	store      cache.Store
	host       *scheduler.PGHost
	dispatcher *notifications.Dispatcher
	scheduler  *scheduler.Scheduler
	metrics    *metrics.Recorder
	closers    []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func buildServices(ctx context.Context, cfg *config.Config) (*services, error) {
	s := &services{cfg: cfg, metrics: metrics.NewRecorder()}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	s.pool = pool
	s.closers = append(s.closers, pool.Close)

	if cfg.RedisURL != "" {
		rs, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		s.store = rs
		s.closers = append(s.closers, func() { rs.Close() })
		logger.Info("Notification state store", "backend", "redis")
	} else {
		s.store = cache.NewMemory(ctx)
		logger.Warn("REDIS_URL not set, notification state will not survive a restart")
	}

	states := eventstate.New(s.store, cfg.EventStateTTL, logger)
	chat := discord.NewClient(cfg.DiscordAPIBase, cfg.DiscordBotToken, cfg.DiscordRPS, logger)
	stats := hockeytech.NewClient(cfg.HockeyTechBaseURL, cfg.HockeyTechAPIKey, cfg.ProviderRPM, logger)

	s.host = scheduler.NewPGHost(pool.Pool)
	s.dispatcher = notifications.NewDispatcher(chat, states, s.metrics, logger)
	s.scheduler = scheduler.New(scheduler.Deps{
		Provider:      stats,
		Subscriptions: notifications.NewPGSubscriptions(pool.Pool, logger),
		States:        states,
		Sender:        s.dispatcher,
		Composer:      notifications.NewComposer(notifications.DefaultCatalog()),
		Host:          s.host,
		Metrics:       s.metrics,
		Logger:        logger,
	}, scheduler.Options{
		HypeMinutes:  cfg.HypeMinutes,
		FetchTimeout: cfg.ProviderTimeout,
	})
	return s, nil
}

// run loads config, builds services and hands them to fn, like every
// one-shot subcommand needs.
func run(fn func(ctx context.Context, svc *services) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	return fn(ctx, svc)
}

// --------------------------------------------------------------------------
// refresh / purge commands
// --------------------------------------------------------------------------

func refreshCmd() *cobra.Command {
	var league, day string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Arm polling for a league's game day",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := scheduler.ParseKey(league, day)
			if err != nil {
				return err
			}
			return run(func(ctx context.Context, svc *services) error {
				armed, next, err := svc.scheduler.Refresh(ctx, key)
				if err != nil {
					return err
				}
				if !armed {
					logger.Info("No games scheduled, nothing armed", "league", key.League, "day", key.Day)
					return nil
				}
				logger.Info("Game day armed", "league", key.League, "day", key.Day, "next_wake", next)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&league, "league", "pwhl", "League id")
	cmd.Flags().StringVar(&day, "day", time.Now().Format(time.DateOnly), "Calendar day (YYYY-MM-DD, league time zone)")
	return cmd
}

func purgeCmd() *cobra.Command {
	var league, day string
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete a game day's scheduler state and alarm",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := scheduler.ParseKey(league, day)
			if err != nil {
				return err
			}
			return run(func(ctx context.Context, svc *services) error {
				if err := svc.scheduler.Purge(ctx, key); err != nil {
					return err
				}
				logger.Info("Game day purged", "league", key.League, "day", key.Day)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&league, "league", "pwhl", "League id")
	cmd.Flags().StringVar(&day, "day", "", "Calendar day (YYYY-MM-DD)")
	cmd.MarkFlagRequired("day")
	return cmd
}

// --------------------------------------------------------------------------
// timeline command
// --------------------------------------------------------------------------

// timelineCmd prints the ordered timeline and dedup identities for a game.
// It only talks to the stats provider.
func timelineCmd() *cobra.Command {
	var league, gameID, day string
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print a game's ordered event timeline with identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			lc, ok := config.LookupLeague(league)
			if !ok {
				return fmt.Errorf("unknown league %q", league)
			}
			stats := hockeytech.NewClient(
				envOr("HOCKEYTECH_BASE_URL", "https://lscluster.hockeytech.com/feed/index.php"),
				os.Getenv("HOCKEYTECH_API_KEY"), 60, logger)

			status := game.StatusInProgress
			var period *int
			if day != "" {
				key, err := scheduler.ParseKey(lc.ID, day)
				if err != nil {
					return err
				}
				games, err := stats.DailySchedule(ctx, lc.ID, key.Start(lc.Location()))
				if err != nil {
					return fmt.Errorf("fetch schedule: %w", err)
				}
				for _, g := range games {
					if g.ID == gameID {
						status, period = g.Status, g.Period
					}
				}
			}

			plays, err := stats.PlayByPlay(ctx, lc.ID, gameID)
			if err != nil {
				return fmt.Errorf("fetch play-by-play: %w", err)
			}

			entries := game.BuildTimeline(plays, status, period)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tPERIOD\tCLOCK\tKIND\tIDENTITY")
			for _, e := range entries {
				p := e.Event.PeriodOf()
				el := e.Event.ElapsedSeconds()
				fmt.Fprintf(tw, "%d\t%s\t%d:%02d\t%s\t%s\n",
					e.Key, p.Name, el/60, el%60, e.Event.Kind(), game.Identity(e.Event))
			}
			tw.Flush()
			logger.Info("Timeline built", "league", lc.ID, "game_id", gameID, "status", status.String(), "entries", len(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&league, "league", "pwhl", "League id")
	cmd.Flags().StringVar(&gameID, "game", "", "Provider game id")
	cmd.Flags().StringVar(&day, "day", "", "Game day, used to look up status (optional)")
	cmd.MarkFlagRequired("game")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
