package server

import (
	"time"

	"league-engine/internal/domain"
)

type RankedEntry struct {
	UserID        string `json:"user_id"`
	Rank          int    `json:"rank"`
	WeeklyScore   int64  `json:"weekly_score"`
	LifetimeScore int64  `json:"lifetime_score"`
}

type UserLeague struct {
	UserID        string `json:"user_id"`
	Tier          string `json:"tier"`
	Division      int    `json:"division"`
	LifetimeScore int64  `json:"lifetime_score"`
	WeeklyScore   int64  `json:"weekly_score"`
	WeekID        string `json:"week_id"`
}

type HistoryRecord struct {
	ID          string `json:"id"`
	WeekID      string `json:"week_id"`
	Tier        string `json:"tier"`
	Division    int    `json:"division"`
	WeeklyScore int64  `json:"weekly_score"`
	Rank        int    `json:"rank"`
	Promoted    bool   `json:"promoted"`
	Relegated   bool   `json:"relegated"`
	Reward      int64  `json:"reward"`
	CreatedAt   string `json:"created_at"`
}

type GetRankingsRequest struct {
	Tier     string `json:"tier"`
	Division int    `json:"division"`
}

type GetRankingsResponse struct {
	Tier     string        `json:"tier"`
	Division int           `json:"division"`
	Entries  []RankedEntry `json:"entries"`
}

type GetGlobalLeaderboardRequest struct{}

type GetGlobalLeaderboardResponse struct {
	Entries []RankedEntry `json:"entries"`
}

type IncrementWeeklyScoreRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

type IncrementWeeklyScoreResponse struct {
	UserID      string `json:"user_id"`
	WeeklyScore int64  `json:"weekly_score"`
}

type InitializeUserLeagueRequest struct {
	UserID string `json:"user_id"`
}

type InitializeUserLeagueResponse struct {
	League UserLeague `json:"league"`
}

type GetUserLeagueRequest struct {
	UserID string `json:"user_id"`
}

type GetUserLeagueResponse struct {
	League UserLeague `json:"league"`
}

type GetUserHistoryRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

type GetUserHistoryResponse struct {
	Records []HistoryRecord `json:"records"`
}

type RunWeeklyRolloverRequest struct{}

type RunWeeklyRolloverResponse struct {
	RunID           string   `json:"run_id"`
	WeekID          string   `json:"week_id"`
	GroupsProcessed int      `json:"groups_processed"`
	GroupsSkipped   int      `json:"groups_skipped"`
	GroupsFailed    int      `json:"groups_failed"`
	GroupsDeferred  int      `json:"groups_deferred"`
	FailedGroups    []string `json:"failed_groups"`
	RewardsGranted  int64    `json:"rewards_granted"`
	Promotions      int      `json:"promotions"`
	Relegations     int      `json:"relegations"`
	DurationMs      int64    `json:"duration_ms"`
}

func toRankedEntries(entries []domain.RankedEntry) []RankedEntry {
	out := make([]RankedEntry, len(entries))
	for i, e := range entries {
		out[i] = RankedEntry{
			UserID:        e.UserID,
			Rank:          e.Rank,
			WeeklyScore:   e.WeeklyScore,
			LifetimeScore: e.LifetimeScore,
		}
	}
	return out
}

func toUserLeague(s *domain.UserLeagueState) UserLeague {
	return UserLeague{
		UserID:        s.UserID,
		Tier:          s.Tier.String(),
		Division:      s.Division,
		LifetimeScore: s.LifetimeScore,
		WeeklyScore:   s.WeeklyScore,
		WeekID:        s.ScoreWeekID,
	}
}

func toHistoryRecords(records []domain.LeagueHistoryRecord) []HistoryRecord {
	out := make([]HistoryRecord, len(records))
	for i, r := range records {
		out[i] = HistoryRecord{
			ID:          r.ID,
			WeekID:      r.WeekID,
			Tier:        r.Tier.String(),
			Division:    r.Division,
			WeeklyScore: r.WeeklyScore,
			Rank:        r.Rank,
			Promoted:    r.Promoted,
			Relegated:   r.Relegated,
			Reward:      r.Reward,
			CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return out
}

func toRolloverResponse(s domain.RolloverSummary) *RunWeeklyRolloverResponse {
	failed := make([]string, len(s.FailedGroups))
	for i, k := range s.FailedGroups {
		failed[i] = k.String()
	}
	return &RunWeeklyRolloverResponse{
		RunID:           s.RunID,
		WeekID:          s.WeekID,
		GroupsProcessed: s.GroupsProcessed,
		GroupsSkipped:   s.GroupsSkipped,
		GroupsFailed:    s.GroupsFailed,
		GroupsDeferred:  s.GroupsDeferred,
		FailedGroups:    failed,
		RewardsGranted:  s.RewardsGranted,
		Promotions:      s.Promotions,
		Relegations:     s.Relegations,
		DurationMs:      s.FinishedAt.Sub(s.StartedAt).Milliseconds(),
	}
}
