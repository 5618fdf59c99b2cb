package ranking

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"league-engine/internal/domain"
)

// ProcessingHash fingerprints the ranked input a group was committed with.
// Ranked entries are already in a total order, so equal inputs hash equally.
func ProcessingHash(weekID string, key domain.GroupKey, ranked []domain.RankedEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%d;", weekID, key.Tier, key.Division)
	for _, e := range ranked {
		fmt.Fprintf(&sb, "%s:%d:%d:%d;", e.UserID, e.WeeklyScore, e.LifetimeScore, e.Rank)
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
