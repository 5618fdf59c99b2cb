package repository

import (
	"context"
	"database/sql"
	"fmt"

	"league-engine/internal/domain"
	"league-engine/internal/tier"

	"github.com/rs/zerolog"
)

type HistoryRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewHistoryRepository(sqlDB *sql.DB, logger zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// ListByUser returns the user's most recent history records, newest week first.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.LeagueHistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, week_id, tier, division, weekly_score, rank, promoted, relegated, reward, created_at
		FROM league_history
		WHERE user_id = ?
		ORDER BY week_id DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.LeagueHistoryRecord
	for rows.Next() {
		var (
			h        domain.LeagueHistoryRecord
			tierName string
		)
		if err := rows.Scan(&h.ID, &h.UserID, &h.WeekID, &tierName, &h.Division, &h.WeeklyScore, &h.Rank,
			&h.Promoted, &h.Relegated, &h.Reward, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		t, err := tier.Parse(tierName)
		if err != nil {
			r.logger.Warn().Err(err).Str("history_id", h.ID).Msg("skipping history record with unknown tier")
			continue
		}
		h.Tier = t
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", userID, err)
	}
	return out, nil
}

// ProcessedUsers returns the users that already have a history record for
// weekID. Their group was committed in an earlier run, possibly under a tier
// they have since left, so they must not be ranked again.
func (r *HistoryRepository) ProcessedUsers(ctx context.Context, weekID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM league_history WHERE week_id = ?`, weekID)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed users for %s: %w", weekID, err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan processed user: %w", err)
		}
		out[userID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read processed users for %s: %w", weekID, err)
	}
	return out, nil
}
