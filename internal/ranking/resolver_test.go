package ranking

import (
	"fmt"
	"testing"

	"league-engine/internal/domain"
	"league-engine/internal/tier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRegistry(t *testing.T) *tier.Registry {
	t.Helper()
	reg, err := tier.Default()
	require.NoError(t, err)
	return reg
}

func descendingGroup(n int) []domain.GroupMember {
	out := make([]domain.GroupMember, n)
	for i := range out {
		out[i] = domain.GroupMember{
			UserID:      fmt.Sprintf("user-%02d", i+1),
			WeeklyScore: int64((n - i) * 10),
		}
	}
	return out
}

func TestResolveTenMemberGoldGroup(t *testing.T) {
	reg := defaultRegistry(t)
	gold := reg.Config(tier.Gold)
	key := domain.GroupKey{Tier: tier.Gold, Division: 3}

	decisions, err := Resolve(reg, key, Rank(descendingGroup(10)))
	require.NoError(t, err)
	require.Len(t, decisions, 10)

	first := decisions[0]
	assert.Equal(t, 1, first.Rank)
	assert.True(t, first.Promote)
	assert.Equal(t, gold.WinnerBonus+gold.PromotionBonus, first.Reward)
	assert.Equal(t, tier.Platinum, first.NextTier)
	assert.Equal(t, 1, first.NextDivision)

	for _, d := range decisions[1:8] {
		assert.True(t, d.Stay, "rank %d should stay", d.Rank)
		assert.Zero(t, d.Reward)
		assert.Equal(t, tier.Gold, d.NextTier)
		assert.Equal(t, 3, d.NextDivision)
	}

	for _, d := range decisions[8:] {
		assert.True(t, d.Relegate, "rank %d should relegate", d.Rank)
		assert.Equal(t, tier.Silver, d.NextTier)
		assert.Equal(t, 1, d.NextDivision)
		assert.Zero(t, d.Reward)
	}
}

func TestResolveSparseGroupStays(t *testing.T) {
	reg := defaultRegistry(t)
	key := domain.GroupKey{Tier: tier.Gold, Division: 1}

	decisions, err := Resolve(reg, key, Rank(descendingGroup(3)))
	require.NoError(t, err)

	for _, d := range decisions {
		assert.True(t, d.Stay)
		assert.False(t, d.Promote)
		assert.False(t, d.Relegate)
	}
	assert.Equal(t, reg.Config(tier.Gold).WinnerBonus, decisions[0].Reward)
	assert.Zero(t, decisions[1].Reward)
}

func TestResolveTopTierNeverPromotes(t *testing.T) {
	reg := defaultRegistry(t)
	key := domain.GroupKey{Tier: tier.Diamond, Division: 1}

	for n := 1; n <= 40; n++ {
		decisions, err := Resolve(reg, key, Rank(descendingGroup(n)))
		require.NoError(t, err)
		for _, d := range decisions {
			assert.False(t, d.Promote, "n=%d rank=%d", n, d.Rank)
		}
		assert.Equal(t, reg.Config(tier.Diamond).WinnerBonus, decisions[0].Reward)
	}
}

func TestResolveBottomTierNeverRelegates(t *testing.T) {
	reg := defaultRegistry(t)
	key := domain.GroupKey{Tier: tier.Bronze, Division: 2}

	decisions, err := Resolve(reg, key, Rank(descendingGroup(30)))
	require.NoError(t, err)
	for _, d := range decisions {
		assert.False(t, d.Relegate)
	}
}

func TestResolveWinnerBonusWhenRelegated(t *testing.T) {
	// A single-tier-window config where the only member is also in the
	// relegation window: rank 1 must still collect the winner bonus.
	reg, err := tier.NewRegistry([]tier.Definition{
		{Tier: tier.Bronze, MaxGroupSize: 10, PromotionRate: 0.5, WinnerBonus: 5, PromotionBonus: 7},
		{Tier: tier.Silver, MinLifetimeScore: 10, MaxGroupSize: 10, RelegationRate: 0.5, WinnerBonus: 11},
	})
	require.NoError(t, err)

	decisions, err := Resolve(reg, domain.GroupKey{Tier: tier.Silver, Division: 1}, Rank(descendingGroup(2)))
	require.NoError(t, err)

	assert.True(t, decisions[0].Stay)
	assert.Equal(t, int64(11), decisions[0].Reward)
	assert.True(t, decisions[1].Relegate)
	assert.Equal(t, tier.Bronze, decisions[1].NextTier)
}

func TestResolveProperties(t *testing.T) {
	reg := defaultRegistry(t)
	gen := newMemberGenerator(7)

	for _, tr := range reg.Tiers() {
		def := reg.Config(tr)
		for n := 1; n <= 45; n++ {
			key := domain.GroupKey{Tier: tr, Division: 1}
			decisions, err := Resolve(reg, key, Rank(gen.group(n)))
			require.NoError(t, err)

			var promoted, relegated int
			for _, d := range decisions {
				flags := 0
				for _, b := range []bool{d.Promote, d.Relegate, d.Stay} {
					if b {
						flags++
					}
				}
				assert.Equal(t, 1, flags, "exactly one outcome for %s rank %d", d.UserID, d.Rank)
				if d.Promote {
					promoted++
				}
				if d.Relegate {
					relegated++
				}
				if d.Rank == 1 {
					assert.GreaterOrEqual(t, d.Reward, def.WinnerBonus)
				}
			}

			pc, rc := Counts(n, def)
			assert.LessOrEqual(t, promoted, pc)
			assert.LessOrEqual(t, relegated, rc)
			assert.LessOrEqual(t, promoted+relegated, n)
		}
	}
}

func TestCountsAbsorbsFloatError(t *testing.T) {
	def := tier.Definition{PromotionRate: 0.29, RelegationRate: 0.1}
	pc, rc := Counts(100, def)
	assert.Equal(t, 29, pc)
	assert.Equal(t, 10, rc)

	pc, rc = Counts(0, def)
	assert.Zero(t, pc)
	assert.Zero(t, rc)
}

func TestProcessingHashStable(t *testing.T) {
	key := domain.GroupKey{Tier: tier.Gold, Division: 1}
	a := Rank(descendingGroup(5))
	b := Rank(descendingGroup(5))

	assert.Equal(t, ProcessingHash("2026-10-12", key, a), ProcessingHash("2026-10-12", key, b))
	assert.NotEqual(t, ProcessingHash("2026-10-12", key, a), ProcessingHash("2026-10-05", key, a))

	b[0].WeeklyScore++
	assert.NotEqual(t, ProcessingHash("2026-10-12", key, a), ProcessingHash("2026-10-12", key, b))
}
