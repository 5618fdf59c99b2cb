// Package metrics declares the prometheus collectors shared by the rollover,
// the ledger and the notification dispatcher. They register on the default
// registry and are served from /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "league"

// Group outcomes for RolloverGroups.
const (
	GroupCommitted = "committed"
	GroupSkipped   = "skipped"
	GroupFailed    = "failed"
)

var (
	RolloverRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rollover_runs_total",
		Help:      "Weekly rollover runs by outcome (complete, partial, error)",
	}, []string{"outcome"})

	RolloverGroups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rollover_groups_total",
		Help:      "Division groups handled by the rollover, by result",
	}, []string{"result"})

	RolloverDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rollover_duration_seconds",
		Help:      "Wall time of a weekly rollover run",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	GroupCommitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "group_commit_retries_total",
		Help:      "Group commit attempts retried after a transient storage error",
	})

	RewardsGranted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rewards_granted_total",
		Help:      "Lifetime score granted as rollover rewards",
	})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tier_transitions_total",
		Help:      "Promotions and relegations applied at rollover",
	}, []string{"direction", "from_tier"})

	ScoreIncrements = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "score_increments_total",
		Help:      "Weekly score increments accepted",
	})

	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "League change notifications delivered",
	})

	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_failed_total",
		Help:      "League change notifications the sender rejected",
	})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dropped_total",
		Help:      "League change notifications dropped because the queue was full or closed",
	})

	NotifyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notify_queue_depth",
		Help:      "Pending league change notifications",
	})

	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leaderboard_cache_requests_total",
		Help:      "Global leaderboard cache lookups by result (hit, miss, error)",
	}, []string{"result"})
)
