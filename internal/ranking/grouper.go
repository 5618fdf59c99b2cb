// Package ranking implements the pure parts of the weekly league: sharding
// states into division groups, ranking a group, and resolving each member's
// promotion, relegation and reward.
package ranking

import (
	"sort"

	"league-engine/internal/domain"
)

// Grouping is the output of Group.
type Grouping struct {
	Groups map[domain.GroupKey][]domain.GroupMember

	// Orphans are ledger user ids that have no league state. They are left out
	// of every group.
	Orphans []string

	// Invalid are states whose tier or division cannot name a group.
	Invalid []string
}

// Group partitions states into disjoint (tier, division) groups, attaching
// each user's weekly score from entries. Users without an entry compete with
// a weekly score of zero.
func Group(states []domain.UserLeagueState, entries []domain.WeeklyScoreEntry) Grouping {
	weekly := make(map[string]int64, len(entries))
	for _, e := range entries {
		weekly[e.UserID] += e.Score
	}

	out := Grouping{Groups: make(map[domain.GroupKey][]domain.GroupMember)}
	seen := make(map[string]struct{}, len(states))

	for _, s := range states {
		if _, dup := seen[s.UserID]; dup {
			continue
		}
		seen[s.UserID] = struct{}{}

		if !s.Tier.Valid() || s.Division < 1 {
			out.Invalid = append(out.Invalid, s.UserID)
			continue
		}

		key := s.Group()
		out.Groups[key] = append(out.Groups[key], domain.GroupMember{
			UserID:        s.UserID,
			WeeklyScore:   weekly[s.UserID],
			LifetimeScore: s.LifetimeScore,
		})
	}

	for userID := range weekly {
		if _, ok := seen[userID]; !ok {
			out.Orphans = append(out.Orphans, userID)
		}
	}
	sort.Strings(out.Orphans)
	sort.Strings(out.Invalid)

	return out
}

// SortedKeys returns the group keys ordered by tier, then division.
func (g Grouping) SortedKeys() []domain.GroupKey {
	keys := make([]domain.GroupKey, 0, len(g.Groups))
	for k := range g.Groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Tier != keys[j].Tier {
			return keys[i].Tier < keys[j].Tier
		}
		return keys[i].Division < keys[j].Division
	})
	return keys
}

func (g Grouping) MemberCount() int {
	n := 0
	for _, members := range g.Groups {
		n += len(members)
	}
	return n
}
