package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"league-engine/internal/domain"
	"league-engine/internal/tier"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrGroupCommitted means the (week, tier, division) marker already exists.
	ErrGroupCommitted = errors.New("group already committed for week")

	// ErrStaleGroup means a member no longer matches the snapshot the group was
	// ranked from: it moved to another group, or already has history for the week.
	ErrStaleGroup = errors.New("group membership changed since snapshot")
)

// DBTX is satisfied by *sql.DB and *sql.Tx so queries run inside or outside
// a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// IsTransient reports whether err is a lock or busy condition worth retrying.
func IsTransient(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

const stateColumns = `user_id, tier, division, lifetime_score, weekly_score, score_week_id, created_at, updated_at`

func scanState(row rowScanner) (domain.UserLeagueState, error) {
	var (
		s        domain.UserLeagueState
		tierName string
	)
	if err := row.Scan(&s.UserID, &tierName, &s.Division, &s.LifetimeScore, &s.WeeklyScore, &s.ScoreWeekID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return s, err
	}
	t, err := tier.Parse(tierName)
	if err != nil {
		return s, fmt.Errorf("user %s: %w", s.UserID, err)
	}
	s.Tier = t
	return s, nil
}
