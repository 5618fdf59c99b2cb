package ranking

import (
	"sort"

	"league-engine/internal/domain"
)

// Rank orders members by weekly score desc, lifetime score desc, user id asc
// and numbers them 1..N. The input slice is not modified.
func Rank(members []domain.GroupMember) []domain.RankedEntry {
	sorted := make([]domain.GroupMember, len(members))
	copy(sorted, members)

	sort.Slice(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})

	ranked := make([]domain.RankedEntry, len(sorted))
	for i, m := range sorted {
		ranked[i] = domain.RankedEntry{
			UserID:        m.UserID,
			WeeklyScore:   m.WeeklyScore,
			LifetimeScore: m.LifetimeScore,
			Rank:          i + 1,
		}
	}
	return ranked
}

// RankByLifetime orders members by lifetime score desc, user id asc. Used by
// the global leaderboard, which ignores weekly scores.
func RankByLifetime(members []domain.GroupMember) []domain.RankedEntry {
	sorted := make([]domain.GroupMember, len(members))
	copy(sorted, members)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].LifetimeScore != sorted[j].LifetimeScore {
			return sorted[i].LifetimeScore > sorted[j].LifetimeScore
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	ranked := make([]domain.RankedEntry, len(sorted))
	for i, m := range sorted {
		ranked[i] = domain.RankedEntry{
			UserID:        m.UserID,
			WeeklyScore:   m.WeeklyScore,
			LifetimeScore: m.LifetimeScore,
			Rank:          i + 1,
		}
	}
	return ranked
}

func less(a, b domain.GroupMember) bool {
	if a.WeeklyScore != b.WeeklyScore {
		return a.WeeklyScore > b.WeeklyScore
	}
	if a.LifetimeScore != b.LifetimeScore {
		return a.LifetimeScore > b.LifetimeScore
	}
	return a.UserID < b.UserID
}
