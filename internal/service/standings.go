package service

import (
	"context"

	"league-engine/internal/config"
	"league-engine/internal/constants"
	"league-engine/internal/domain"
	"league-engine/internal/ranking"
	"league-engine/internal/tier"
	"league-engine/internal/week"

	"github.com/rs/zerolog"
)

// StandingsService serves the read-only ranking views. Both views either
// rank a complete snapshot or fail; they never return a partial list.
type StandingsService struct {
	states          StateStore
	cache           LeaderboardCache
	tiers           *tier.Registry
	clock           *week.Clock
	leaderboardSize int
	logger          zerolog.Logger
}

func NewStandingsService(states StateStore, cache LeaderboardCache, tiers *tier.Registry, clock *week.Clock, cfg *config.Config, logger zerolog.Logger) *StandingsService {
	return &StandingsService{
		states:          states,
		cache:           cache,
		tiers:           tiers,
		clock:           clock,
		leaderboardSize: cfg.GlobalLeaderboardSize,
		logger:          logger,
	}
}

// GetRankings ranks one division by the current week's scores.
func (s *StandingsService) GetRankings(ctx context.Context, t tier.Tier, division int) ([]domain.RankedEntry, error) {
	if !s.tiers.Has(t) {
		return nil, invalidArgument("unknown tier %s", t)
	}
	if division < constants.FirstDivision {
		return nil, invalidArgument("division must be at least %d, got %d", constants.FirstDivision, division)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	key := domain.GroupKey{Tier: t, Division: division}
	members, err := s.states.ListGroupStandings(ctx, key, s.clock.Current())
	if err != nil {
		s.logger.Error().Err(err).Str("group", key.String()).Msg("failed to load standings")
		return nil, unavailable("get rankings", err)
	}

	return ranking.Rank(members), nil
}

// GetGlobalLeaderboard returns the top users by lifetime score across all
// tiers.
func (s *StandingsService) GetGlobalLeaderboard(ctx context.Context) ([]domain.RankedEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	weekID := s.clock.Current()

	cached, ok, err := s.cache.Get(ctx, weekID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("leaderboard cache read failed, falling back to store")
	}
	if ok {
		return cached, nil
	}

	members, err := s.states.TopByLifetime(ctx, s.leaderboardSize, weekID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load global leaderboard")
		return nil, unavailable("get global leaderboard", err)
	}

	ranked := ranking.RankByLifetime(members)
	if err := s.cache.Put(ctx, weekID, ranked); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache global leaderboard")
	}
	return ranked, nil
}
