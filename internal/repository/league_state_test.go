package repository

import (
	"context"
	"testing"
	"time"

	"league-engine/internal/domain"
	"league-engine/internal/tier"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeagueStateCreateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewLeagueStateRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedState(t, repo, "u1", tier.Silver, 2, 1500)

	created, err := repo.Create(ctx, domain.UserLeagueState{UserID: "u1", Tier: tier.Bronze, Division: 1})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, tier.Silver, got.Tier)
	assert.Equal(t, 2, got.Division)
	assert.Equal(t, int64(1500), got.LifetimeScore)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeagueStateSkipsUnknownTier(t *testing.T) {
	db := openTestDB(t)
	repo := NewLeagueStateRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedState(t, repo, "ok", tier.Gold, 1, 6000)
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO user_league_states (user_id, tier, division, created_at, updated_at)
		VALUES ('bad', 'mithril', 1, ?, ?)`, now, now)
	require.NoError(t, err)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "ok", all[0].UserID)
}

func TestListGroupStandingsJoinsWeek(t *testing.T) {
	db := openTestDB(t)
	states := NewLeagueStateRepository(db, zerolog.Nop())
	ledger := NewLedgerRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedState(t, states, "a", tier.Gold, 1, 6000)
	seedState(t, states, "b", tier.Gold, 1, 7000)
	seedState(t, states, "c", tier.Gold, 2, 8000)

	_, err := ledger.Increment(ctx, "a", "2026-10-05", 40)
	require.NoError(t, err)
	_, err = ledger.Increment(ctx, "a", "2026-10-12", 15)
	require.NoError(t, err)

	standings, err := states.ListGroupStandings(ctx, domain.GroupKey{Tier: tier.Gold, Division: 1}, "2026-10-12")
	require.NoError(t, err)
	require.Len(t, standings, 2)

	byID := map[string]domain.GroupMember{}
	for _, m := range standings {
		byID[m.UserID] = m
	}
	assert.Equal(t, int64(15), byID["a"].WeeklyScore)
	assert.Equal(t, int64(6055), byID["a"].LifetimeScore)
	assert.Zero(t, byID["b"].WeeklyScore)
}

func TestTopByLifetime(t *testing.T) {
	db := openTestDB(t)
	repo := NewLeagueStateRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedState(t, repo, "b", tier.Bronze, 1, 300)
	seedState(t, repo, "a", tier.Bronze, 1, 300)
	seedState(t, repo, "c", tier.Platinum, 1, 20000)
	seedState(t, repo, "d", tier.Bronze, 2, 10)

	top, err := repo.TopByLifetime(ctx, 3, "2026-10-12")
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "c", top[0].UserID)
	assert.Equal(t, "a", top[1].UserID)
	assert.Equal(t, "b", top[2].UserID)
}
