// Package cache keeps a short-lived copy of the global leaderboard.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"league-engine/internal/config"
	"league-engine/internal/domain"
	"league-engine/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const leaderboardKey = "league:leaderboard:global"

var ErrMiss = errors.New("cache miss")

// Store is the key/value surface the leaderboard cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// NopStore always misses. Used when no redis is configured.
type NopStore struct{}

func (NopStore) Get(context.Context, string) (string, error) { return "", ErrMiss }

func (NopStore) Set(context.Context, string, string, time.Duration) error { return nil }

func (NopStore) Del(context.Context, ...string) error { return nil }

// NewStore connects to REDIS_URL, or returns a NopStore when it is unset.
func NewStore(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (Store, error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("leaderboard cache disabled, REDIS_URL not set")
		return NopStore{}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				// the store stays usable, every lookup just falls through
				logger.Warn().Err(err).Str("addr", opts.Addr).Msg("redis not reachable at startup")
				return nil
			}
			logger.Info().Str("addr", opts.Addr).Msg("leaderboard cache connected")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return NewRedisStore(client), nil
}

type cachedEntry struct {
	UserID        string `json:"user_id"`
	WeeklyScore   int64  `json:"weekly_score"`
	LifetimeScore int64  `json:"lifetime_score"`
	Rank          int    `json:"rank"`
}

type cachedLeaderboard struct {
	WeekID  string        `json:"week_id"`
	Entries []cachedEntry `json:"entries"`
}

// Leaderboard caches the global leaderboard for one week at a time.
type Leaderboard struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

func NewLeaderboard(store Store, cfg *config.Config, logger zerolog.Logger) *Leaderboard {
	return &Leaderboard{store: store, ttl: cfg.LeaderboardCacheTTL, logger: logger}
}

// Get returns the cached leaderboard when one exists for weekID.
func (l *Leaderboard) Get(ctx context.Context, weekID string) ([]domain.RankedEntry, bool, error) {
	raw, err := l.store.Get(ctx, leaderboardKey)
	if errors.Is(err, ErrMiss) {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to read leaderboard cache: %w", err)
	}

	var cached cachedLeaderboard
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to decode leaderboard cache: %w", err)
	}
	if cached.WeekID != weekID {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	out := make([]domain.RankedEntry, len(cached.Entries))
	for i, e := range cached.Entries {
		out[i] = domain.RankedEntry{
			UserID:        e.UserID,
			WeeklyScore:   e.WeeklyScore,
			LifetimeScore: e.LifetimeScore,
			Rank:          e.Rank,
		}
	}
	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return out, true, nil
}

func (l *Leaderboard) Put(ctx context.Context, weekID string, entries []domain.RankedEntry) error {
	cached := cachedLeaderboard{WeekID: weekID, Entries: make([]cachedEntry, len(entries))}
	for i, e := range entries {
		cached.Entries[i] = cachedEntry{
			UserID:        e.UserID,
			WeeklyScore:   e.WeeklyScore,
			LifetimeScore: e.LifetimeScore,
			Rank:          e.Rank,
		}
	}

	raw, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard cache: %w", err)
	}
	if err := l.store.Set(ctx, leaderboardKey, string(raw), l.ttl); err != nil {
		return fmt.Errorf("failed to write leaderboard cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached leaderboard. Called after rollover moves
// lifetime scores.
func (l *Leaderboard) Invalidate(ctx context.Context) error {
	if err := l.store.Del(ctx, leaderboardKey); err != nil {
		return fmt.Errorf("failed to invalidate leaderboard cache: %w", err)
	}
	return nil
}
