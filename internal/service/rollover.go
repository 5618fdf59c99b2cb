package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"league-engine/internal/config"
	"league-engine/internal/constants"
	"league-engine/internal/domain"
	"league-engine/internal/metrics"
	"league-engine/internal/notify"
	"league-engine/internal/ranking"
	"league-engine/internal/repository"
	"league-engine/internal/tier"
	"league-engine/internal/week"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

type phase string

const (
	phaseLoaded    phase = "LOADED"
	phaseGrouped   phase = "GROUPED"
	phaseRanked    phase = "RANKED"
	phaseResolved  phase = "RESOLVED"
	phaseCommitted phase = "COMMITTED"
	phaseFailed    phase = "FAILED"
)

type groupOutcome int

const (
	outcomeCommitted groupOutcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeDeferred
)

type groupResult struct {
	key       domain.GroupKey
	outcome   groupOutcome
	decisions []domain.Decision
}

// RolloverService closes a league week: every division is ranked, resolved
// and committed on its own, so one failing division never holds back the
// others.
type RolloverService struct {
	states   StateStore
	ledger   LedgerStore
	history  HistoryStore
	commits  GroupCommitter
	tiers    *tier.Registry
	clock    *week.Clock
	notifier notify.Notifier
	cache    LeaderboardCache
	logger   zerolog.Logger

	fanOut      int
	maxRetries  int
	baseBackoff time.Duration
}

func NewRolloverService(
	states StateStore,
	ledger LedgerStore,
	history HistoryStore,
	commits GroupCommitter,
	tiers *tier.Registry,
	clock *week.Clock,
	notifier notify.Notifier,
	cache LeaderboardCache,
	cfg *config.Config,
	logger zerolog.Logger,
) *RolloverService {
	return &RolloverService{
		states:      states,
		ledger:      ledger,
		history:     history,
		commits:     commits,
		tiers:       tiers,
		clock:       clock,
		notifier:    notifier,
		cache:       cache,
		logger:      logger,
		fanOut:      cfg.RolloverFanOut,
		maxRetries:  cfg.CommitMaxRetries,
		baseBackoff: cfg.CommitBaseBackoff,
	}
}

// RunWeeklyRollover closes the week before the current one.
func (s *RolloverService) RunWeeklyRollover(ctx context.Context) (domain.RolloverSummary, error) {
	weekID, err := s.clock.Previous(s.clock.Current())
	if err != nil {
		return domain.RolloverSummary{}, err
	}
	return s.RunForWeek(ctx, weekID)
}

// RunForWeek closes weekID. It is safe to call repeatedly: divisions that
// were already committed are skipped and their rewards are never granted
// twice. An error is returned only when the snapshot cannot be loaded.
func (s *RolloverService) RunForWeek(ctx context.Context, weekID string) (domain.RolloverSummary, error) {
	summary := domain.RolloverSummary{
		RunID:     uuid.New().String(),
		WeekID:    weekID,
		StartedAt: time.Now().UTC(),
	}
	log := s.logger.With().Str("run_id", summary.RunID).Str("week_id", weekID).Logger()

	log.Info().Msg("weekly rollover started")

	states, entries, markers, err := s.load(ctx, weekID)
	if err != nil {
		metrics.RolloverRuns.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("phase", string(phaseFailed)).Msg("failed to load rollover snapshot")
		summary.FinishedAt = time.Now().UTC()
		return summary, fmt.Errorf("failed to load rollover snapshot: %w", err)
	}
	log.Debug().
		Str("phase", string(phaseLoaded)).
		Int("states", len(states)).
		Int("entries", len(entries)).
		Int("committed_groups", len(markers)).
		Msg("snapshot loaded")

	grouping := ranking.Group(states, entries)
	for _, userID := range grouping.Orphans {
		log.Warn().Str("user_id", userID).Msg("weekly score without league state, excluded from rollover")
	}
	for _, userID := range grouping.Invalid {
		log.Warn().Str("user_id", userID).Msg("league state does not name a valid group, excluded from rollover")
	}
	log.Debug().
		Str("phase", string(phaseGrouped)).
		Int("groups", len(grouping.Groups)).
		Int("members", grouping.MemberCount()).
		Msg("states grouped")

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.fanOut)

	record := func(r groupResult) {
		mu.Lock()
		defer mu.Unlock()
		s.record(&summary, weekID, r)
	}

	for _, key := range grouping.SortedKeys() {
		members := grouping.Groups[key]

		if _, done := markers[key]; done {
			record(groupResult{key: key, outcome: outcomeSkipped})
			continue
		}
		if !s.tiers.Has(key.Tier) {
			log.Warn().Str("group", key.String()).Msg("group tier is not registered, skipping")
			record(groupResult{key: key, outcome: outcomeSkipped})
			continue
		}
		if limit := s.tiers.Config(key.Tier).MaxGroupSize; len(members) > limit {
			log.Warn().
				Str("group", key.String()).
				Int("members", len(members)).
				Int("max_group_size", limit).
				Msg("group exceeds tier maximum, ranking as is")
		}
		if ctx.Err() != nil {
			record(groupResult{key: key, outcome: outcomeDeferred})
			continue
		}

		g.Go(func() error {
			record(s.processGroup(ctx, log, weekID, key, members))
			return nil
		})
	}
	_ = g.Wait()

	summary.FinishedAt = time.Now().UTC()

	if summary.GroupsProcessed > 0 {
		if err := s.cache.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
		}
	}

	outcome := "complete"
	if summary.GroupsFailed > 0 || summary.GroupsDeferred > 0 {
		outcome = "partial"
	}
	metrics.RolloverRuns.WithLabelValues(outcome).Inc()
	metrics.RolloverDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())

	event := log.Info()
	if outcome != "complete" {
		event = log.Warn()
	}
	event.
		Int("groups_processed", summary.GroupsProcessed).
		Int("groups_skipped", summary.GroupsSkipped).
		Int("groups_failed", summary.GroupsFailed).
		Int("groups_deferred", summary.GroupsDeferred).
		Int("promotions", summary.Promotions).
		Int("relegations", summary.Relegations).
		Int64("rewards_granted", summary.RewardsGranted).
		Dur("duration", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("weekly rollover finished")

	return summary, nil
}

// load reads the snapshot for weekID. Users that already have a history
// record for the week were committed by an earlier run and are left out, so
// a promoted user is never ranked a second time in their new group.
func (s *RolloverService) load(ctx context.Context, weekID string) ([]domain.UserLeagueState, []domain.WeeklyScoreEntry, map[domain.GroupKey]domain.GroupMarker, error) {
	allStates, err := s.states.ListAll(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	allEntries, err := s.ledger.ListWeek(ctx, weekID)
	if err != nil {
		return nil, nil, nil, err
	}
	processed, err := s.history.ProcessedUsers(ctx, weekID)
	if err != nil {
		return nil, nil, nil, err
	}
	markers, err := s.commits.Markers(ctx, weekID)
	if err != nil {
		return nil, nil, nil, err
	}

	states := make([]domain.UserLeagueState, 0, len(allStates))
	for _, st := range allStates {
		if _, ok := processed[st.UserID]; !ok {
			states = append(states, st)
		}
	}
	entries := make([]domain.WeeklyScoreEntry, 0, len(allEntries))
	for _, e := range allEntries {
		if _, ok := processed[e.UserID]; !ok {
			entries = append(entries, e)
		}
	}
	return states, entries, markers, nil
}

func (s *RolloverService) processGroup(ctx context.Context, runLog zerolog.Logger, weekID string, key domain.GroupKey, members []domain.GroupMember) groupResult {
	log := runLog.With().Str("group", key.String()).Int("members", len(members)).Logger()

	ranked := ranking.Rank(members)
	log.Debug().Str("phase", string(phaseRanked)).Msg("group ranked")

	decisions, err := ranking.Resolve(s.tiers, key, ranked)
	if err != nil {
		log.Error().Err(err).Str("phase", string(phaseFailed)).Msg("failed to resolve group")
		return groupResult{key: key, outcome: outcomeFailed}
	}
	log.Debug().Str("phase", string(phaseResolved)).Msg("group resolved")

	commit := repository.GroupCommit{
		WeekID:         weekID,
		Group:          key,
		ProcessingHash: ranking.ProcessingHash(weekID, key, ranked),
		Decisions:      decisions,
	}

	err = s.commitWithRetry(ctx, log, commit)
	switch {
	case err == nil:
		log.Info().Str("phase", string(phaseCommitted)).Msg("group committed")
		return groupResult{key: key, outcome: outcomeCommitted, decisions: decisions}
	case errors.Is(err, repository.ErrGroupCommitted):
		log.Info().Msg("group already committed for week, skipping")
		return groupResult{key: key, outcome: outcomeSkipped}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Msg("rollover cancelled before group committed")
		return groupResult{key: key, outcome: outcomeDeferred}
	case errors.Is(err, repository.ErrStaleGroup):
		log.Warn().Err(err).Str("phase", string(phaseFailed)).Msg("group changed since snapshot")
		return groupResult{key: key, outcome: outcomeFailed}
	default:
		log.Error().Err(err).Str("phase", string(phaseFailed)).Msg("group commit failed after retries")
		return groupResult{key: key, outcome: outcomeFailed}
	}
}

// commitWithRetry retries everything except the two outcomes a retry cannot
// change.
func (s *RolloverService) commitWithRetry(ctx context.Context, log zerolog.Logger, commit repository.GroupCommit) error {
	b := retry.NewExponential(s.baseBackoff)
	b = retry.WithCappedDuration(constants.CommitMaxBackoff, b)
	b = retry.WithMaxRetries(uint64(s.maxRetries), b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.GroupCommitRetries.Inc()
		}

		err := s.commits.CommitGroup(ctx, commit)
		if err == nil || errors.Is(err, repository.ErrGroupCommitted) || errors.Is(err, repository.ErrStaleGroup) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Warn().Err(err).Int("attempt", attempt).Bool("transient", repository.IsTransient(err)).Msg("group commit failed")
		return retry.RetryableError(err)
	})
}

// record folds one group result into the summary. Callers hold the summary
// lock.
func (s *RolloverService) record(summary *domain.RolloverSummary, weekID string, r groupResult) {
	switch r.outcome {
	case outcomeSkipped:
		summary.GroupsSkipped++
		metrics.RolloverGroups.WithLabelValues(metrics.GroupSkipped).Inc()
		return
	case outcomeFailed:
		summary.GroupsFailed++
		summary.FailedGroups = append(summary.FailedGroups, r.key)
		metrics.RolloverGroups.WithLabelValues(metrics.GroupFailed).Inc()
		return
	case outcomeDeferred:
		summary.GroupsDeferred++
		return
	}

	summary.GroupsProcessed++
	metrics.RolloverGroups.WithLabelValues(metrics.GroupCommitted).Inc()

	for _, d := range r.decisions {
		summary.RewardsGranted += d.Reward
		metrics.RewardsGranted.Add(float64(d.Reward))

		switch {
		case d.Promote:
			summary.Promotions++
			metrics.Transitions.WithLabelValues("promoted", r.key.Tier.String()).Inc()
		case d.Relegate:
			summary.Relegations++
			metrics.Transitions.WithLabelValues("relegated", r.key.Tier.String()).Inc()
		}

		if d.NextTier != r.key.Tier || d.NextDivision != r.key.Division {
			s.notifier.OnUserLeagueChanged(context.Background(), domain.LeagueChange{
				UserID:      d.UserID,
				WeekID:      weekID,
				OldTier:     r.key.Tier,
				NewTier:     d.NextTier,
				OldDivision: r.key.Division,
				NewDivision: d.NextDivision,
				Reward:      d.Reward,
			})
		}
	}
}
