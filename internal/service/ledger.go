package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"league-engine/internal/constants"
	"league-engine/internal/domain"
	"league-engine/internal/metrics"
	"league-engine/internal/repository"
	"league-engine/internal/tier"
	"league-engine/internal/week"

	"github.com/rs/zerolog"
)

// LedgerService is the write path used by the XP subsystem and onboarding,
// plus the per-user read views.
type LedgerService struct {
	states  StateStore
	ledger  LedgerStore
	history HistoryStore
	tiers   *tier.Registry
	clock   *week.Clock
	logger  zerolog.Logger
}

func NewLedgerService(states StateStore, ledger LedgerStore, history HistoryStore, tiers *tier.Registry, clock *week.Clock, logger zerolog.Logger) *LedgerService {
	return &LedgerService{states: states, ledger: ledger, history: history, tiers: tiers, clock: clock, logger: logger}
}

// IncrementWeeklyScore adds amount to the user's score for the current week
// and returns the new weekly total.
func (s *LedgerService) IncrementWeeklyScore(ctx context.Context, userID string, amount int64) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, invalidArgument("user id is required")
	}
	if amount <= 0 {
		return 0, invalidArgument("amount must be positive, got %d", amount)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	weekID := s.clock.Current()
	total, err := s.ledger.Increment(ctx, userID, weekID, amount)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn().Str("user_id", userID).Msg("score increment for user without league state")
		return 0, err
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("week_id", weekID).Msg("failed to increment weekly score")
		if repository.IsTransient(err) {
			return 0, unavailable("increment weekly score", err)
		}
		return 0, fmt.Errorf("failed to increment weekly score: %w", err)
	}

	metrics.ScoreIncrements.Inc()
	s.logger.Debug().
		Str("user_id", userID).
		Str("week_id", weekID).
		Int64("amount", amount).
		Int64("weekly_total", total).
		Msg("weekly score incremented")
	return total, nil
}

// InitializeUserLeague places a new user in the tier a lifetime score of zero
// qualifies for, division 1. An existing state is returned unchanged.
func (s *LedgerService) InitializeUserLeague(ctx context.Context, userID string) (*domain.UserLeagueState, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalidArgument("user id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	initial := domain.UserLeagueState{
		UserID:      userID,
		Tier:        s.tiers.ForLifetimeScore(0),
		Division:    constants.FirstDivision,
		ScoreWeekID: s.clock.Current(),
	}

	created, err := s.states.Create(ctx, initial)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to initialize league state")
		return nil, fmt.Errorf("failed to initialize league state: %w", err)
	}
	if created {
		s.logger.Info().Str("user_id", userID).Str("tier", initial.Tier.String()).Msg("user league initialized")
	} else {
		s.logger.Debug().Str("user_id", userID).Msg("user league already initialized")
	}

	return s.GetUserLeague(ctx, userID)
}

// GetUserLeague returns the user's state. The weekly score reads as zero once
// the week it was earned in has ended.
func (s *LedgerService) GetUserLeague(ctx context.Context, userID string) (*domain.UserLeagueState, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	state, err := s.states.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, unavailable("get user league", err)
	}

	if current := s.clock.Current(); state.ScoreWeekID != current {
		state.WeeklyScore = 0
		state.ScoreWeekID = current
	}
	return state, nil
}

// GetUserHistory returns up to limit past weeks, newest first.
func (s *LedgerService) GetUserHistory(ctx context.Context, userID string, limit int) ([]domain.LeagueHistoryRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalidArgument("user id is required")
	}
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	limit = min(limit, constants.MaxHistoryLimit)

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	records, err := s.history.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, unavailable("get user history", err)
	}
	return records, nil
}
