package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath         string
	ServerPort     string
	LogLevel       string
	AllowedOrigins []string

	// league week boundary
	WeekTimezone  string
	WeekStartDay  time.Weekday
	WeekStartHour int

	RolloverFanOut        int
	RolloverCheckInterval time.Duration
	RolloverTimeout       time.Duration
	CommitMaxRetries      int
	CommitBaseBackoff     time.Duration

	GlobalLeaderboardSize int
	LeaderboardCacheTTL   time.Duration
	RedisURL              string

	NotifyWebhookURL    string
	NotifyQueueSize     int
	NotifyRatePerSecond int
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:     getEnv("DB_PATH", "league.db"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		WeekTimezone:  getEnv("WEEK_TIMEZONE", "Asia/Seoul"),
		WeekStartHour: getEnvInt("WEEK_START_HOUR", 0),

		RolloverFanOut:        getEnvInt("ROLLOVER_FAN_OUT", 4),
		RolloverCheckInterval: getEnvDuration("ROLLOVER_CHECK_INTERVAL", time.Minute),
		RolloverTimeout:       getEnvDuration("ROLLOVER_TIMEOUT", 10*time.Minute),
		CommitMaxRetries:      getEnvInt("COMMIT_MAX_RETRIES", 4),
		CommitBaseBackoff:     getEnvDuration("COMMIT_BASE_BACKOFF", 100*time.Millisecond),

		GlobalLeaderboardSize: getEnvInt("GLOBAL_LEADERBOARD_SIZE", 100),
		LeaderboardCacheTTL:   getEnvDuration("LEADERBOARD_CACHE_TTL", 30*time.Second),
		RedisURL:              getEnv("REDIS_URL", ""),

		NotifyWebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyQueueSize:     getEnvInt("NOTIFY_QUEUE_SIZE", 1024),
		NotifyRatePerSecond: getEnvInt("NOTIFY_RATE_PER_SECOND", 20),
	}

	for _, o := range strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	day, err := ParseWeekday(getEnv("WEEK_START_DAY", "monday"))
	if err != nil {
		return nil, err
	}
	cfg.WeekStartDay = day

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("week_timezone", cfg.WeekTimezone).
		Str("week_start_day", cfg.WeekStartDay.String()).
		Int("week_start_hour", cfg.WeekStartHour).
		Int("rollover_fan_out", cfg.RolloverFanOut).
		Dur("rollover_check_interval", cfg.RolloverCheckInterval).
		Bool("redis_cache", cfg.RedisURL != "").
		Bool("notify_webhook", cfg.NotifyWebhookURL != "").
		Msg("configuration loaded")

	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if _, err := time.LoadLocation(c.WeekTimezone); err != nil {
		return fmt.Errorf("invalid WEEK_TIMEZONE %q: %w", c.WeekTimezone, err)
	}
	if c.WeekStartHour < 0 || c.WeekStartHour > 23 {
		return fmt.Errorf("WEEK_START_HOUR must be between 0 and 23, got %d", c.WeekStartHour)
	}
	if c.RolloverFanOut < 1 {
		return fmt.Errorf("ROLLOVER_FAN_OUT must be at least 1, got %d", c.RolloverFanOut)
	}
	if c.RolloverCheckInterval <= 0 {
		return fmt.Errorf("ROLLOVER_CHECK_INTERVAL must be positive")
	}
	if c.RolloverTimeout <= 0 {
		return fmt.Errorf("ROLLOVER_TIMEOUT must be positive")
	}
	if c.CommitMaxRetries < 0 {
		return fmt.Errorf("COMMIT_MAX_RETRIES must not be negative")
	}
	if c.CommitBaseBackoff <= 0 {
		return fmt.Errorf("COMMIT_BASE_BACKOFF must be positive")
	}
	if c.GlobalLeaderboardSize < 1 {
		return fmt.Errorf("GLOBAL_LEADERBOARD_SIZE must be at least 1, got %d", c.GlobalLeaderboardSize)
	}
	if c.NotifyQueueSize < 1 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be at least 1, got %d", c.NotifyQueueSize)
	}
	if c.NotifyRatePerSecond < 1 {
		return fmt.Errorf("NOTIFY_RATE_PER_SECOND must be at least 1, got %d", c.NotifyRatePerSecond)
	}
	return nil
}

// ParseWeekday accepts full or three-letter English day names, case-insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid WEEK_START_DAY %q", s)
}

// Location returns the league time zone. Validate has already checked it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.WeekTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
