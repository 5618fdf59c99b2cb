package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"league-engine/internal/config"
	"league-engine/internal/database"
	"league-engine/internal/domain"
	"league-engine/internal/repository"
	"league-engine/internal/tier"
	"league-engine/internal/week"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db       *sql.DB
	now      time.Time
	clock    *week.Clock
	tiers    *tier.Registry
	cfg      *config.Config
	states   *repository.LeagueStateRepository
	ledger   *repository.LedgerRepository
	history  *repository.HistoryRepository
	commits  *repository.GroupCommitRepository
	notifier *recordingNotifier
	cache    *memoryCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		DBPath:                filepath.Join(t.TempDir(), "league.db"),
		RolloverFanOut:        4,
		CommitMaxRetries:      2,
		CommitBaseBackoff:     time.Millisecond,
		GlobalLeaderboardSize: 3,
	}
	db, err := database.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	tiers, err := tier.Default()
	require.NoError(t, err)

	env := &testEnv{
		db:       db,
		now:      time.Date(2026, 10, 7, 12, 0, 0, 0, loc),
		tiers:    tiers,
		cfg:      cfg,
		states:   repository.NewLeagueStateRepository(db, zerolog.Nop()),
		ledger:   repository.NewLedgerRepository(db, zerolog.Nop()),
		history:  repository.NewHistoryRepository(db, zerolog.Nop()),
		commits:  repository.NewGroupCommitRepository(db, zerolog.Nop()),
		notifier: &recordingNotifier{},
		cache:    newMemoryCache(),
	}
	env.clock = week.NewClock(loc, time.Monday, 0, func() time.Time { return env.now })
	return env
}

func (e *testEnv) advanceWeek() {
	e.now = e.now.AddDate(0, 0, 7)
}

func (e *testEnv) join(t *testing.T, userID string, tr tier.Tier, division int, lifetime int64) {
	t.Helper()
	created, err := e.states.Create(context.Background(), domain.UserLeagueState{
		UserID:        userID,
		Tier:          tr,
		Division:      division,
		LifetimeScore: lifetime,
	})
	require.NoError(t, err)
	require.True(t, created)
}

func (e *testEnv) score(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := e.ledger.Increment(context.Background(), userID, e.clock.Current(), amount)
	require.NoError(t, err)
}

func (e *testEnv) state(t *testing.T, userID string) *domain.UserLeagueState {
	t.Helper()
	s, err := e.states.Get(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func (e *testEnv) ledgerService() *LedgerService {
	return NewLedgerService(e.states, e.ledger, e.history, e.tiers, e.clock, zerolog.Nop())
}

func (e *testEnv) standingsService() *StandingsService {
	return NewStandingsService(e.states, e.cache, e.tiers, e.clock, e.cfg, zerolog.Nop())
}

func (e *testEnv) rolloverService(commits GroupCommitter) *RolloverService {
	if commits == nil {
		commits = e.commits
	}
	return NewRolloverService(e.states, e.ledger, e.history, commits, e.tiers, e.clock, e.notifier, e.cache, e.cfg, zerolog.Nop())
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []domain.LeagueChange
}

func (n *recordingNotifier) OnUserLeagueChanged(_ context.Context, change domain.LeagueChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
}

func (n *recordingNotifier) byUser() map[string]domain.LeagueChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]domain.LeagueChange, len(n.changes))
	for _, c := range n.changes {
		out[c.UserID] = c
	}
	return out
}

type memoryCache struct {
	mu            sync.Mutex
	weekID        string
	entries       []domain.RankedEntry
	invalidations int
	getErr        error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{}
}

func (c *memoryCache) Get(_ context.Context, weekID string) ([]domain.RankedEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	if c.entries == nil || c.weekID != weekID {
		return nil, false, nil
	}
	return c.entries, true, nil
}

func (c *memoryCache) Put(_ context.Context, weekID string, entries []domain.RankedEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weekID = weekID
	c.entries = entries
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.invalidations++
	return nil
}

// stateStoreFunc overrides single StateStore methods; the rest reach the
// embedded store.
type stateStoreFunc struct {
	StateStore
	listAll            func(ctx context.Context) ([]domain.UserLeagueState, error)
	listGroupStandings func(ctx context.Context, key domain.GroupKey, weekID string) ([]domain.GroupMember, error)
	topByLifetime      func(ctx context.Context, limit int, weekID string) ([]domain.GroupMember, error)
}

func (s *stateStoreFunc) ListAll(ctx context.Context) ([]domain.UserLeagueState, error) {
	if s.listAll != nil {
		return s.listAll(ctx)
	}
	return s.StateStore.ListAll(ctx)
}

func (s *stateStoreFunc) ListGroupStandings(ctx context.Context, key domain.GroupKey, weekID string) ([]domain.GroupMember, error) {
	if s.listGroupStandings != nil {
		return s.listGroupStandings(ctx, key, weekID)
	}
	return s.StateStore.ListGroupStandings(ctx, key, weekID)
}

func (s *stateStoreFunc) TopByLifetime(ctx context.Context, limit int, weekID string) ([]domain.GroupMember, error) {
	if s.topByLifetime != nil {
		return s.topByLifetime(ctx, limit, weekID)
	}
	return s.StateStore.TopByLifetime(ctx, limit, weekID)
}

type committerFunc struct {
	GroupCommitter
	commit func(ctx context.Context, c repository.GroupCommit) error
}

func (c *committerFunc) CommitGroup(ctx context.Context, gc repository.GroupCommit) error {
	if c.commit != nil {
		return c.commit(ctx, gc)
	}
	return c.GroupCommitter.CommitGroup(ctx, gc)
}
