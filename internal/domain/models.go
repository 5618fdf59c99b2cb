package domain

import (
	"fmt"
	"time"

	"league-engine/internal/tier"
)

type UserLeagueState struct {
	UserID        string
	Tier          tier.Tier
	Division      int
	LifetimeScore int64
	WeeklyScore   int64
	ScoreWeekID   string // week the denormalized WeeklyScore belongs to
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s UserLeagueState) Group() GroupKey {
	return GroupKey{Tier: s.Tier, Division: s.Division}
}

type WeeklyScoreEntry struct {
	UserID    string
	WeekID    string
	Score     int64
	UpdatedAt time.Time
}

type GroupKey struct {
	Tier     tier.Tier
	Division int
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%d", k.Tier, k.Division)
}

type GroupMember struct {
	UserID        string
	WeeklyScore   int64
	LifetimeScore int64
}

type RankedEntry struct {
	UserID        string
	WeeklyScore   int64
	LifetimeScore int64
	Rank          int
}

// Decision is the outcome for one ranked member. Exactly one of Promote,
// Relegate and Stay is set.
type Decision struct {
	UserID       string
	Rank         int
	WeeklyScore  int64
	Reward       int64
	Promote      bool
	Relegate     bool
	Stay         bool
	NextTier     tier.Tier
	NextDivision int
}

type LeagueHistoryRecord struct {
	ID          string
	UserID      string
	WeekID      string
	Tier        tier.Tier
	Division    int
	WeeklyScore int64
	Rank        int
	Promoted    bool
	Relegated   bool
	Reward      int64
	CreatedAt   time.Time
}

// GroupMarker records that one (week, tier, division) has been committed.
type GroupMarker struct {
	WeekID         string
	Tier           tier.Tier
	Division       int
	MemberCount    int
	ProcessingHash string
	CommittedAt    time.Time
}

func (m GroupMarker) Group() GroupKey {
	return GroupKey{Tier: m.Tier, Division: m.Division}
}

// LeagueChange is emitted for every member whose tier or division moved.
type LeagueChange struct {
	UserID      string
	WeekID      string
	OldTier     tier.Tier
	NewTier     tier.Tier
	OldDivision int
	NewDivision int
	Reward      int64
}

type RolloverSummary struct {
	RunID           string
	WeekID          string
	GroupsProcessed int
	GroupsSkipped   int
	GroupsFailed    int
	GroupsDeferred  int // not started before the run was cancelled
	FailedGroups    []GroupKey
	RewardsGranted  int64
	Promotions      int
	Relegations     int
	StartedAt       time.Time
	FinishedAt      time.Time
}
