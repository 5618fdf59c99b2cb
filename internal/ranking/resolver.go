package ranking

import (
	"errors"
	"fmt"
	"math"

	"league-engine/internal/constants"
	"league-engine/internal/domain"
	"league-engine/internal/tier"
)

var ErrOverlappingWindows = errors.New("promotion and relegation windows overlap")

// rateEpsilon absorbs float error in n*rate, e.g. 100*0.29 = 28.999999999999996.
const rateEpsilon = 1e-9

// Counts returns floor(n*promotionRate) and floor(n*relegationRate).
func Counts(n int, def tier.Definition) (promote, relegate int) {
	return windowSize(n, def.PromotionRate), windowSize(n, def.RelegationRate)
}

func windowSize(n int, rate float64) int {
	if n <= 0 || rate <= 0 {
		return 0
	}
	return int(math.Floor(float64(n)*rate + rateEpsilon))
}

// Resolve decides the outcome for every entry of one ranked group. ranked
// must be the output of Rank for a group in key.Tier.
func Resolve(reg *tier.Registry, key domain.GroupKey, ranked []domain.RankedEntry) ([]domain.Decision, error) {
	def := reg.Config(key.Tier)
	n := len(ranked)
	promoteCount, relegateCount := Counts(n, def)

	if promoteCount+relegateCount > n {
		return nil, fmt.Errorf("%w: group %s has %d members, %d promoted and %d relegated",
			ErrOverlappingWindows, key, n, promoteCount, relegateCount)
	}

	nextTier, hasNext := reg.Next(key.Tier)
	prevTier, hasPrev := reg.Previous(key.Tier)

	decisions := make([]domain.Decision, n)
	for i, e := range ranked {
		d := domain.Decision{
			UserID:       e.UserID,
			Rank:         e.Rank,
			WeeklyScore:  e.WeeklyScore,
			NextTier:     key.Tier,
			NextDivision: key.Division,
		}

		if e.Rank == 1 {
			d.Reward += def.WinnerBonus
		}

		switch {
		case def.PromotionRate > 0 && hasNext && e.Rank <= promoteCount:
			d.Promote = true
			d.Reward += def.PromotionBonus
			d.NextTier = nextTier
			d.NextDivision = constants.FirstDivision
		case def.RelegationRate > 0 && hasPrev && e.Rank > n-relegateCount:
			d.Relegate = true
			d.NextTier = prevTier
			d.NextDivision = constants.FirstDivision
		default:
			d.Stay = true
		}

		decisions[i] = d
	}

	return decisions, nil
}
