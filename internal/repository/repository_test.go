package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"league-engine/internal/config"
	"league-engine/internal/database"
	"league-engine/internal/domain"
	"league-engine/internal/tier"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "league.db")}
	db, err := database.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedState(t *testing.T, repo *LeagueStateRepository, userID string, tr tier.Tier, division int, lifetime int64) {
	t.Helper()
	created, err := repo.Create(context.Background(), domain.UserLeagueState{
		UserID:        userID,
		Tier:          tr,
		Division:      division,
		LifetimeScore: lifetime,
	})
	require.NoError(t, err)
	require.True(t, created)
}
