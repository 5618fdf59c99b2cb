// Package scheduler triggers the weekly rollover once the league week has
// turned over, and keeps retrying while the last run left groups open.
package scheduler

import (
	"context"
	"sync"
	"time"

	"league-engine/internal/config"
	"league-engine/internal/domain"
	"league-engine/internal/service"
	"league-engine/internal/week"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Runner interface {
	RunWeeklyRollover(ctx context.Context) (domain.RolloverSummary, error)
}

type Scheduler struct {
	runner   Runner
	clock    *week.Clock
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger

	mu         sync.Mutex
	closedWeek string // last week whose rollover finished with no open groups

	stop chan struct{}
	done chan struct{}
}

func New(runner Runner, clock *week.Clock, interval, timeout time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Register builds the scheduler for the server and ties it to the fx
// lifecycle.
func Register(lc fx.Lifecycle, rollover *service.RolloverService, clock *week.Clock, cfg *config.Config, logger zerolog.Logger) *Scheduler {
	s := New(rollover, clock, cfg.RolloverCheckInterval, cfg.RolloverTimeout, logger)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: s.Stop,
	})
	return s
}

func (s *Scheduler) Start() {
	go s.loop()
	s.logger.Info().Dur("interval", s.interval).Msg("rollover scheduler started")
}

func (s *Scheduler) Stop(ctx context.Context) error {
	close(s.stop)
	select {
	case <-s.done:
		s.logger.Info().Msg("rollover scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Tick runs the rollover unless the week before the current one is already
// closed. It reports whether a run was attempted.
func (s *Scheduler) Tick(ctx context.Context) bool {
	target, err := s.clock.Previous(s.clock.Current())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to derive closing week")
		return false
	}

	s.mu.Lock()
	closed := s.closedWeek
	s.mu.Unlock()
	if closed == target {
		return false
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	summary, err := s.runner.RunWeeklyRollover(runCtx)
	if err != nil {
		s.logger.Error().Err(err).Str("week_id", target).Msg("scheduled rollover failed, will retry")
		return true
	}

	if summary.GroupsFailed > 0 || summary.GroupsDeferred > 0 {
		s.logger.Warn().
			Str("week_id", summary.WeekID).
			Int("groups_failed", summary.GroupsFailed).
			Int("groups_deferred", summary.GroupsDeferred).
			Msg("scheduled rollover left groups open, will retry")
		return true
	}

	s.mu.Lock()
	s.closedWeek = summary.WeekID
	s.mu.Unlock()
	return true
}
