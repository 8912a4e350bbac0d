// Package config provides centralized configuration loaded from environment
// variables. Shared by every cmd/alerts subcommand.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // league time zones must resolve in scratch images
)

// --------------------------------------------------------------------------
// League registry
// --------------------------------------------------------------------------

// LeagueConfig describes one league the notifier can follow.
type LeagueConfig struct {
	ID         string
	Name       string
	ClientCode string // HockeyTech client_code
	Timezone   string // defines the league's calendar day
}

var LeagueRegistry = map[string]LeagueConfig{
	"pwhl": {ID: "pwhl", Name: "Professional Women's Hockey League", ClientCode: "pwhl", Timezone: "America/Toronto"},
	"ahl":  {ID: "ahl", Name: "American Hockey League", ClientCode: "ahl", Timezone: "America/New_York"},
}

// Location returns the league's time zone, falling back to UTC.
func (l LeagueConfig) Location() *time.Location {
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LookupLeague returns the registry entry for a league id (case-insensitive).
func LookupLeague(id string) (LeagueConfig, bool) {
	lc, ok := LeagueRegistry[strings.ToLower(strings.TrimSpace(id))]
	return lc, ok
}

// LeagueIDs returns registered league ids in sorted order.
func LeagueIDs() []string {
	ids := make([]string, 0, len(LeagueRegistry))
	for id := range LeagueRegistry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Per-game notification state
	RedisURL       string
	EventStateTTL  time.Duration
	MessageRefsTTL time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string
	Debug       bool
	AdminToken  string

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Stats provider
	HockeyTechBaseURL string
	HockeyTechAPIKey  string
	ProviderRPM       int
	ProviderTimeout   time.Duration

	// Chat platform
	DiscordAPIBase  string
	DiscordBotToken string
	DiscordRPS      int

	// Scheduling
	Leagues              []string
	HypeMinutes          []int
	SchedulerTick        time.Duration
	SchedulerLease       time.Duration
	DailyRefreshInterval time.Duration

	// Metrics
	MetricsEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	leagues := envList("LEAGUES", []string{"pwhl"})
	for i, id := range leagues {
		lc, ok := LookupLeague(id)
		if !ok {
			return nil, fmt.Errorf("LEAGUES: unknown league %q", id)
		}
		leagues[i] = lc.ID
	}

	hype, err := envIntList("HYPE_MINUTES", []int{5, 15, 30, 60, 360})
	if err != nil {
		return nil, err
	}

	ttlDays := envInt("EVENT_STATE_TTL_DAYS", 14)

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		RedisURL:       envOr("REDIS_URL", ""),
		EventStateTTL:  time.Duration(ttlDays) * 24 * time.Hour,
		MessageRefsTTL: time.Duration(ttlDays) * 24 * time.Hour,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),
		AdminToken:  envOr("ADMIN_TOKEN", ""),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		HockeyTechBaseURL: envOr("HOCKEYTECH_BASE_URL", "https://lscluster.hockeytech.com/feed/index.php"),
		HockeyTechAPIKey:  envOr("HOCKEYTECH_API_KEY", ""),
		ProviderRPM:       envInt("PROVIDER_RPM", 120),
		ProviderTimeout:   envDuration("PROVIDER_TIMEOUT", 15*time.Second),

		DiscordAPIBase:  envOr("DISCORD_API_BASE", "https://discord.com/api/v10"),
		DiscordBotToken: envOr("DISCORD_BOT_TOKEN", ""),
		DiscordRPS:      envInt("DISCORD_RPS", 5),

		Leagues:              leagues,
		HypeMinutes:          hype,
		SchedulerTick:        envDuration("SCHEDULER_TICK", 5*time.Second),
		SchedulerLease:       envDuration("SCHEDULER_LEASE", 5*time.Minute),
		DailyRefreshInterval: envDuration("DAILY_REFRESH_INTERVAL", time.Hour),

		MetricsEnabled: envBool("METRICS_ENABLED", true),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// envIntList parses a comma-separated list of positive ints, sorted ascending.
func envIntList(key string, fallback []int) ([]int, error) {
	raw := envList(key, nil)
	if raw == nil {
		return fallback, nil
	}
	out := make([]int, 0, len(raw))
	for _, p := range raw {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s: invalid value %q", key, p)
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}
