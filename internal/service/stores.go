package service

import (
	"context"

	"league-engine/internal/domain"
	"league-engine/internal/repository"
)

// StateStore is the league state access the services need.
type StateStore interface {
	Get(ctx context.Context, userID string) (*domain.UserLeagueState, error)
	Create(ctx context.Context, s domain.UserLeagueState) (bool, error)
	ListAll(ctx context.Context) ([]domain.UserLeagueState, error)
	ListGroupStandings(ctx context.Context, key domain.GroupKey, weekID string) ([]domain.GroupMember, error)
	TopByLifetime(ctx context.Context, limit int, weekID string) ([]domain.GroupMember, error)
}

type LedgerStore interface {
	Increment(ctx context.Context, userID, weekID string, amount int64) (int64, error)
	ListWeek(ctx context.Context, weekID string) ([]domain.WeeklyScoreEntry, error)
}

type HistoryStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.LeagueHistoryRecord, error)
	ProcessedUsers(ctx context.Context, weekID string) (map[string]struct{}, error)
}

type GroupCommitter interface {
	Markers(ctx context.Context, weekID string) (map[domain.GroupKey]domain.GroupMarker, error)
	CommitGroup(ctx context.Context, c repository.GroupCommit) error
}

type LeaderboardCache interface {
	Get(ctx context.Context, weekID string) ([]domain.RankedEntry, bool, error)
	Put(ctx context.Context, weekID string, entries []domain.RankedEntry) error
	Invalidate(ctx context.Context) error
}
