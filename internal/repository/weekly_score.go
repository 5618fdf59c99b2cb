package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"league-engine/internal/domain"

	"github.com/rs/zerolog"
)

// LedgerRepository stores the per-user, per-week additive score counter.
type LedgerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewLedgerRepository(sqlDB *sql.DB, logger zerolog.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Increment adds amount to the user's entry for weekID and mirrors it on the
// league state: the lifetime score grows by amount and the denormalized weekly
// score restarts when it still belongs to an earlier week. It returns the new
// weekly total.
func (r *LedgerRepository) Increment(ctx context.Context, userID, weekID string, amount int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, `
		UPDATE user_league_states
		SET lifetime_score = lifetime_score + ?,
		    weekly_score   = CASE WHEN score_week_id = ? THEN weekly_score + ? ELSE ? END,
		    score_week_id  = ?,
		    updated_at     = ?
		WHERE user_id = ?`,
		amount, weekID, amount, amount, weekID, now, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update league state %s: %w", userID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return 0, fmt.Errorf("league state for %s: %w", userID, ErrNotFound)
	}

	var total int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO weekly_scores (user_id, week_id, score, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, week_id) DO UPDATE
		SET score = score + excluded.score, updated_at = excluded.updated_at
		RETURNING score`,
		userID, weekID, amount, now,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert weekly score %s/%s: %w", userID, weekID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit weekly score: %w", err)
	}
	return total, nil
}

func (r *LedgerRepository) Get(ctx context.Context, userID, weekID string) (*domain.WeeklyScoreEntry, error) {
	var e domain.WeeklyScoreEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, week_id, score, updated_at
		FROM weekly_scores
		WHERE user_id = ? AND week_id = ?`,
		userID, weekID,
	).Scan(&e.UserID, &e.WeekID, &e.Score, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("weekly score %s/%s: %w", userID, weekID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListWeek returns the week's entries that still carry score. Zeroed entries
// belong to members whose group was already committed.
func (r *LedgerRepository) ListWeek(ctx context.Context, weekID string) ([]domain.WeeklyScoreEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, week_id, score, updated_at
		FROM weekly_scores
		WHERE week_id = ? AND score != 0
		ORDER BY user_id`,
		weekID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly scores for %s: %w", weekID, err)
	}
	defer rows.Close()

	var out []domain.WeeklyScoreEntry
	for rows.Next() {
		var e domain.WeeklyScoreEntry
		if err := rows.Scan(&e.UserID, &e.WeekID, &e.Score, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weekly score: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read weekly scores for %s: %w", weekID, err)
	}
	return out, nil
}
