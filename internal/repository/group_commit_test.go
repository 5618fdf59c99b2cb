package repository

import (
	"context"
	"testing"

	"league-engine/internal/domain"
	"league-engine/internal/tier"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const closingWeek = "2026-10-05"

func goldCommit() GroupCommit {
	return GroupCommit{
		WeekID:         closingWeek,
		Group:          domain.GroupKey{Tier: tier.Gold, Division: 1},
		ProcessingHash: "hash",
		Decisions: []domain.Decision{
			{UserID: "a", Rank: 1, WeeklyScore: 90, Reward: 300, Promote: true, NextTier: tier.Platinum, NextDivision: 1},
			{UserID: "b", Rank: 2, WeeklyScore: 50, Stay: true, NextTier: tier.Gold, NextDivision: 1},
			{UserID: "c", Rank: 3, WeeklyScore: 0, Relegate: true, NextTier: tier.Silver, NextDivision: 1},
		},
	}
}

func seedGold(t *testing.T, states *LeagueStateRepository, ledger *LedgerRepository) {
	t.Helper()
	ctx := context.Background()
	seedState(t, states, "a", tier.Gold, 1, 6000)
	seedState(t, states, "b", tier.Gold, 1, 6000)
	seedState(t, states, "c", tier.Gold, 1, 6000)

	_, err := ledger.Increment(ctx, "a", closingWeek, 90)
	require.NoError(t, err)
	_, err = ledger.Increment(ctx, "b", closingWeek, 50)
	require.NoError(t, err)
}

func TestCommitGroupAppliesDecisions(t *testing.T) {
	db := openTestDB(t)
	states := NewLeagueStateRepository(db, zerolog.Nop())
	ledger := NewLedgerRepository(db, zerolog.Nop())
	history := NewHistoryRepository(db, zerolog.Nop())
	commits := NewGroupCommitRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedGold(t, states, ledger)
	require.NoError(t, commits.CommitGroup(ctx, goldCommit()))

	a, err := states.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, tier.Platinum, a.Tier)
	assert.Equal(t, int64(6090+300), a.LifetimeScore)
	assert.Zero(t, a.WeeklyScore)

	c, err := states.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, tier.Silver, c.Tier)
	assert.Equal(t, int64(6000), c.LifetimeScore)

	entries, err := ledger.ListWeek(ctx, closingWeek)
	require.NoError(t, err)
	assert.Empty(t, entries)

	inactive, err := ledger.Get(ctx, "c", closingWeek)
	require.NoError(t, err)
	assert.Zero(t, inactive.Score)

	recs, err := history.ListByUser(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, tier.Gold, recs[0].Tier)
	assert.True(t, recs[0].Promoted)
	assert.Equal(t, int64(300), recs[0].Reward)
	assert.Equal(t, 1, recs[0].Rank)
	assert.NotEmpty(t, recs[0].ID)

	processed, err := history.ProcessedUsers(ctx, closingWeek)
	require.NoError(t, err)
	assert.Len(t, processed, 3)

	markers, err := commits.Markers(ctx, closingWeek)
	require.NoError(t, err)
	require.Contains(t, markers, domain.GroupKey{Tier: tier.Gold, Division: 1})
	assert.Equal(t, 3, markers[domain.GroupKey{Tier: tier.Gold, Division: 1}].MemberCount)
}

func TestCommitGroupTwiceIsRejected(t *testing.T) {
	db := openTestDB(t)
	states := NewLeagueStateRepository(db, zerolog.Nop())
	ledger := NewLedgerRepository(db, zerolog.Nop())
	commits := NewGroupCommitRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedGold(t, states, ledger)
	require.NoError(t, commits.CommitGroup(ctx, goldCommit()))

	err := commits.CommitGroup(ctx, goldCommit())
	assert.ErrorIs(t, err, ErrGroupCommitted)

	a, err := states.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(6390), a.LifetimeScore, "reward granted once")
}

func TestCommitGroupStaleMemberRollsBack(t *testing.T) {
	db := openTestDB(t)
	states := NewLeagueStateRepository(db, zerolog.Nop())
	ledger := NewLedgerRepository(db, zerolog.Nop())
	commits := NewGroupCommitRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedGold(t, states, ledger)
	_, err := db.Exec(`UPDATE user_league_states SET division = 2 WHERE user_id = 'c'`)
	require.NoError(t, err)

	err = commits.CommitGroup(ctx, goldCommit())
	assert.ErrorIs(t, err, ErrStaleGroup)

	a, err := states.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, tier.Gold, a.Tier, "earlier member updates rolled back")
	assert.Equal(t, int64(6090), a.LifetimeScore)

	markers, err := commits.Markers(ctx, closingWeek)
	require.NoError(t, err)
	assert.Empty(t, markers)
}
