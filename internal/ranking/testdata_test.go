package ranking

import (
	"fmt"

	"league-engine/internal/domain"

	"github.com/brianvoe/gofakeit/v7"
)

// memberGenerator builds reproducible random groups. Scores are drawn from a
// narrow range so ties on weekly and lifetime score are common.
type memberGenerator struct {
	faker *gofakeit.Faker
}

func newMemberGenerator(seed uint64) *memberGenerator {
	return &memberGenerator{faker: gofakeit.New(seed)}
}

func (g *memberGenerator) group(n int) []domain.GroupMember {
	members := make([]domain.GroupMember, n)
	for i := range members {
		members[i] = domain.GroupMember{
			UserID:        fmt.Sprintf("%s-%d", g.faker.Username(), i),
			WeeklyScore:   int64(g.faker.IntRange(0, 5)) * 10,
			LifetimeScore: int64(g.faker.IntRange(0, 3)) * 100,
		}
	}
	return members
}

func members(scores ...[2]int64) []domain.GroupMember {
	out := make([]domain.GroupMember, len(scores))
	for i, s := range scores {
		out[i] = domain.GroupMember{
			UserID:        fmt.Sprintf("user-%02d", i+1),
			WeeklyScore:   s[0],
			LifetimeScore: s[1],
		}
	}
	return out
}
