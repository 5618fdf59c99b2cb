package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"league-engine/internal/domain"
	"league-engine/internal/tier"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// GroupCommit is everything one division writes at rollover.
type GroupCommit struct {
	WeekID         string
	Group          domain.GroupKey
	ProcessingHash string
	Decisions      []domain.Decision
}

// GroupCommitRepository applies a resolved group as one transaction.
type GroupCommitRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewGroupCommitRepository(sqlDB *sql.DB, logger zerolog.Logger) *GroupCommitRepository {
	return &GroupCommitRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Markers returns the groups already committed for weekID.
func (r *GroupCommitRepository) Markers(ctx context.Context, weekID string) (map[domain.GroupKey]domain.GroupMarker, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT week_id, tier, division, member_count, processing_hash, committed_at
		FROM rollover_markers
		WHERE week_id = ?`,
		weekID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rollover markers for %s: %w", weekID, err)
	}
	defer rows.Close()

	out := make(map[domain.GroupKey]domain.GroupMarker)
	for rows.Next() {
		var (
			m        domain.GroupMarker
			tierName string
		)
		if err := rows.Scan(&m.WeekID, &tierName, &m.Division, &m.MemberCount, &m.ProcessingHash, &m.CommittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rollover marker: %w", err)
		}
		t, err := tier.Parse(tierName)
		if err != nil {
			r.logger.Warn().Err(err).Str("week_id", m.WeekID).Msg("ignoring rollover marker with unknown tier")
			continue
		}
		m.Tier = t
		out[m.Group()] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rollover markers for %s: %w", weekID, err)
	}
	return out, nil
}

// CommitGroup writes the marker, every member's new state, the zeroed ledger
// entry and one history record per member, all or nothing.
//
// It returns ErrGroupCommitted when the marker already exists and
// ErrStaleGroup when any member left the group or already has history for the
// week. Neither is worth retrying.
func (r *GroupCommitRepository) CommitGroup(ctx context.Context, c GroupCommit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO rollover_markers (week_id, tier, division, member_count, processing_hash, committed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (week_id, tier, division) DO NOTHING`,
		c.WeekID, c.Group.Tier.String(), c.Group.Division, len(c.Decisions), c.ProcessingHash, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rollover marker %s: %w", c.Group, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%s week %s: %w", c.Group, c.WeekID, ErrGroupCommitted)
	}

	for _, d := range c.Decisions {
		if err := r.applyDecision(ctx, tx, c, d, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group %s: %w", c.Group, err)
	}
	return nil
}

func (r *GroupCommitRepository) applyDecision(ctx context.Context, tx *sql.Tx, c GroupCommit, d domain.Decision, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE user_league_states
		SET tier           = ?,
		    division       = ?,
		    lifetime_score = lifetime_score + ?,
		    weekly_score   = CASE WHEN score_week_id = ? THEN 0 ELSE weekly_score END,
		    updated_at     = ?
		WHERE user_id = ? AND tier = ? AND division = ?`,
		d.NextTier.String(), d.NextDivision, d.Reward, c.WeekID, now,
		d.UserID, c.Group.Tier.String(), c.Group.Division,
	)
	if err != nil {
		return fmt.Errorf("failed to update league state %s: %w", d.UserID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("user %s not in %s: %w", d.UserID, c.Group, ErrStaleGroup)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO weekly_scores (user_id, week_id, score, updated_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT (user_id, week_id) DO UPDATE
		SET score = 0, updated_at = excluded.updated_at`,
		d.UserID, c.WeekID, now,
	); err != nil {
		return fmt.Errorf("failed to reset weekly score %s: %w", d.UserID, err)
	}

	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate nanoid: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO league_history (id, user_id, week_id, tier, division, weekly_score, rank, promoted, relegated, reward, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, d.UserID, c.WeekID, c.Group.Tier.String(), c.Group.Division, d.WeeklyScore, d.Rank,
		d.Promote, d.Relegate, d.Reward, now,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s already has history for %s: %w", d.UserID, c.WeekID, ErrStaleGroup)
	}
	if err != nil {
		return fmt.Errorf("failed to insert history for %s: %w", d.UserID, err)
	}
	return nil
}
