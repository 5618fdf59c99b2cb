package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"league-engine/internal/domain"
	"league-engine/internal/tier"

	"github.com/rs/zerolog"
)

type LeagueStateRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewLeagueStateRepository(sqlDB *sql.DB, logger zerolog.Logger) *LeagueStateRepository {
	return &LeagueStateRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *LeagueStateRepository) Get(ctx context.Context, userID string) (*domain.UserLeagueState, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+stateColumns+` FROM user_league_states WHERE user_id = ?`, userID)
	s, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("league state for %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts state unless the user already has one. It reports whether
// a row was written.
func (r *LeagueStateRepository) Create(ctx context.Context, s domain.UserLeagueState) (bool, error) {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO user_league_states (`+stateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		s.UserID, s.Tier.String(), s.Division, s.LifetimeScore, s.WeeklyScore, s.ScoreWeekID, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert league state %s: %w", s.UserID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListAll returns every league state. Rows with an unreadable tier are
// skipped with a warning.
func (r *LeagueStateRepository) ListAll(ctx context.Context) ([]domain.UserLeagueState, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+stateColumns+` FROM user_league_states ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list league states: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *LeagueStateRepository) ListGroup(ctx context.Context, key domain.GroupKey) ([]domain.UserLeagueState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+stateColumns+`
		FROM user_league_states
		WHERE tier = ? AND division = ?
		ORDER BY user_id`,
		key.Tier.String(), key.Division,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list group %s: %w", key, err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// ListGroupStandings returns the members of one group with their score for
// weekID in a single read, so the ranked view never mixes two snapshots.
func (r *LeagueStateRepository) ListGroupStandings(ctx context.Context, key domain.GroupKey, weekID string) ([]domain.GroupMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.user_id, COALESCE(w.score, 0), s.lifetime_score
		FROM user_league_states s
		LEFT JOIN weekly_scores w ON w.user_id = s.user_id AND w.week_id = ?
		WHERE s.tier = ? AND s.division = ?`,
		weekID, key.Tier.String(), key.Division,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load standings for %s: %w", key, err)
	}
	defer rows.Close()

	var out []domain.GroupMember
	for rows.Next() {
		var m domain.GroupMember
		if err := rows.Scan(&m.UserID, &m.WeeklyScore, &m.LifetimeScore); err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read standings for %s: %w", key, err)
	}
	return out, nil
}

// TopByLifetime returns the limit highest lifetime scores across all tiers.
// WeeklyScore is filled from the denormalized counter when it belongs to weekID.
func (r *LeagueStateRepository) TopByLifetime(ctx context.Context, limit int, weekID string) ([]domain.GroupMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id,
		       CASE WHEN score_week_id = ? THEN weekly_score ELSE 0 END,
		       lifetime_score
		FROM user_league_states
		ORDER BY lifetime_score DESC, user_id ASC
		LIMIT ?`,
		weekID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load global leaderboard: %w", err)
	}
	defer rows.Close()

	var out []domain.GroupMember
	for rows.Next() {
		var m domain.GroupMember
		if err := rows.Scan(&m.UserID, &m.WeeklyScore, &m.LifetimeScore); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read global leaderboard: %w", err)
	}
	return out, nil
}

func (r *LeagueStateRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *LeagueStateRepository) collect(rows *sql.Rows) ([]domain.UserLeagueState, error) {
	var out []domain.UserLeagueState
	for rows.Next() {
		s, err := scanState(rows)
		if errors.Is(err, tier.ErrUnknownTier) {
			r.logger.Warn().Err(err).Str("user_id", s.UserID).Msg("skipping league state with unknown tier")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan league state: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read league states: %w", err)
	}
	return out, nil
}
