package fx

import (
	"league-engine/internal/cache"
	"league-engine/internal/config"
	"league-engine/internal/database"
	"league-engine/internal/logger"
	"league-engine/internal/notify"
	"league-engine/internal/repository"
	"league-engine/internal/server"
	"league-engine/internal/service"
	"league-engine/internal/tier"
	"league-engine/internal/week"

	"go.uber.org/fx"
)

// Module wires everything both binaries share. The HTTP server and the
// rollover scheduler are added by cmd/server only.
var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	fx.Invoke(database.Close),
	// league rules
	fx.Provide(tier.Default),
	fx.Provide(week.NewFromConfig),
	// repos
	fx.Provide(
		fx.Annotate(repository.NewLeagueStateRepository, fx.As(new(service.StateStore))),
		fx.Annotate(repository.NewLedgerRepository, fx.As(new(service.LedgerStore))),
		fx.Annotate(repository.NewHistoryRepository, fx.As(new(service.HistoryStore))),
		fx.Annotate(repository.NewGroupCommitRepository, fx.As(new(service.GroupCommitter))),
	),
	// cache + notifications
	fx.Provide(cache.NewStore),
	fx.Provide(fx.Annotate(cache.NewLeaderboard, fx.As(new(service.LeaderboardCache)))),
	fx.Provide(fx.Annotate(notify.New, fx.As(new(notify.Notifier)))),
	// svc
	fx.Provide(service.NewLedgerService),
	fx.Provide(service.NewStandingsService),
	fx.Provide(service.NewRolloverService),
	// server
	fx.Provide(server.NewLeagueServer),
)
