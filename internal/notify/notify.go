// Package notify delivers league change events to an external collaborator
// without letting delivery affect the rollover that produced them.
package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"league-engine/internal/config"
	"league-engine/internal/constants"
	"league-engine/internal/domain"
	"league-engine/internal/metrics"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"golang.org/x/time/rate"
)

// Notifier receives a change for every user whose tier or division moved at
// rollover. Implementations must not block the caller.
type Notifier interface {
	OnUserLeagueChanged(ctx context.Context, change domain.LeagueChange)
}

// Sender performs the actual delivery of one change.
type Sender interface {
	Send(ctx context.Context, change domain.LeagueChange) error
}

// Dispatcher is a bounded queue drained by one worker. Enqueue never blocks:
// when the queue is full the change is dropped and counted.
type Dispatcher struct {
	sender  Sender
	limiter *rate.Limiter
	queue   chan domain.LeagueChange
	logger  zerolog.Logger

	mu      sync.RWMutex
	stopped bool

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	dropped atomic.Uint64
}

func NewDispatcher(sender Sender, queueSize, ratePerSecond int, logger zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sender:  sender,
		limiter: rate.NewLimiter(limit, 1),
		queue:   make(chan domain.LeagueChange, queueSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// New picks the webhook sender when NOTIFY_WEBHOOK_URL is set and ties the
// worker to the fx lifecycle.
func New(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) *Dispatcher {
	var sender Sender
	if cfg.NotifyWebhookURL != "" {
		sender = NewWebhookSender(cfg.NotifyWebhookURL)
	} else {
		sender = NewLogSender(logger)
	}

	d := NewDispatcher(sender, cfg.NotifyQueueSize, cfg.NotifyRatePerSecond, logger)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			d.Start()
			return nil
		},
		OnStop: d.Stop,
	})
	return d
}

func (d *Dispatcher) OnUserLeagueChanged(_ context.Context, change domain.LeagueChange) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.drop(change, "dispatcher stopped")
		return
	}

	select {
	case d.queue <- change:
		metrics.NotifyQueueDepth.Set(float64(len(d.queue)))
	default:
		d.drop(change, "queue full")
	}
}

func (d *Dispatcher) drop(change domain.LeagueChange, reason string) {
	d.dropped.Add(1)
	metrics.NotificationsDropped.Inc()
	d.logger.Warn().
		Str("user_id", change.UserID).
		Str("week_id", change.WeekID).
		Str("reason", reason).
		Msg("dropping league change notification")
}

// Dropped reports how many changes were discarded.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *Dispatcher) Start() {
	go d.run()
	d.logger.Info().Int("queue_size", cap(d.queue)).Msg("notification dispatcher started")
}

// Stop closes the queue and waits for the worker to drain it. Whatever is
// still queued when ctx or the drain timeout expires is abandoned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	drainCtx, cancel := context.WithTimeout(ctx, constants.NotifyDrainTimeout)
	defer cancel()

	select {
	case <-d.done:
	case <-drainCtx.Done():
		d.logger.Warn().Int("pending", len(d.queue)).Msg("notification drain timed out")
		d.cancel()
		<-d.done
	}
	d.cancel()
	d.logger.Info().Msg("notification dispatcher stopped")
	return nil
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for change := range d.queue {
		metrics.NotifyQueueDepth.Set(float64(len(d.queue)))

		if err := d.limiter.Wait(d.ctx); err != nil {
			d.drop(change, "shutting down")
			continue
		}

		sendCtx, cancel := context.WithTimeout(d.ctx, constants.WebhookTimeout)
		err := d.sender.Send(sendCtx, change)
		cancel()

		if err != nil {
			metrics.NotificationsFailed.Inc()
			d.logger.Warn().
				Err(err).
				Str("user_id", change.UserID).
				Str("week_id", change.WeekID).
				Msg("failed to deliver league change notification")
			continue
		}
		metrics.NotificationsSent.Inc()
	}
}

// LogSender writes changes to the log. Used when no webhook is configured.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, change domain.LeagueChange) error {
	s.logger.Info().
		Str("user_id", change.UserID).
		Str("week_id", change.WeekID).
		Str("old_tier", change.OldTier.String()).
		Str("new_tier", change.NewTier.String()).
		Int("old_division", change.OldDivision).
		Int("new_division", change.NewDivision).
		Int64("reward", change.Reward).
		Msg("user league changed")
	return nil
}
