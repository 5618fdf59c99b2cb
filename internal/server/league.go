package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"league-engine/internal/config"
	"league-engine/internal/service"
	"league-engine/internal/tier"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

const LeagueServicePath = "/league.v1.LeagueService/"

const (
	GetRankingsProcedure          = LeagueServicePath + "GetRankings"
	GetGlobalLeaderboardProcedure = LeagueServicePath + "GetGlobalLeaderboard"
	IncrementWeeklyScoreProcedure = LeagueServicePath + "IncrementWeeklyScore"
	InitializeUserLeagueProcedure = LeagueServicePath + "InitializeUserLeague"
	GetUserLeagueProcedure        = LeagueServicePath + "GetUserLeague"
	GetUserHistoryProcedure       = LeagueServicePath + "GetUserHistory"
	RunWeeklyRolloverProcedure    = LeagueServicePath + "RunWeeklyRollover"
)

type LeagueServer struct {
	ledger          *service.LedgerService
	standings       *service.StandingsService
	rollover        *service.RolloverService
	rolloverTimeout time.Duration
}

func NewLeagueServer(ledger *service.LedgerService, standings *service.StandingsService, rollover *service.RolloverService, cfg *config.Config) *LeagueServer {
	return &LeagueServer{
		ledger:          ledger,
		standings:       standings,
		rollover:        rollover,
		rolloverTimeout: cfg.RolloverTimeout,
	}
}

// Handler returns the path prefix and handler serving every league
// procedure over connect with the JSON codec.
func (s *LeagueServer) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(GetRankingsProcedure, connect.NewUnaryHandler(GetRankingsProcedure, s.GetRankings, opts...))
	mux.Handle(GetGlobalLeaderboardProcedure, connect.NewUnaryHandler(GetGlobalLeaderboardProcedure, s.GetGlobalLeaderboard, opts...))
	mux.Handle(IncrementWeeklyScoreProcedure, connect.NewUnaryHandler(IncrementWeeklyScoreProcedure, s.IncrementWeeklyScore, opts...))
	mux.Handle(InitializeUserLeagueProcedure, connect.NewUnaryHandler(InitializeUserLeagueProcedure, s.InitializeUserLeague, opts...))
	mux.Handle(GetUserLeagueProcedure, connect.NewUnaryHandler(GetUserLeagueProcedure, s.GetUserLeague, opts...))
	mux.Handle(GetUserHistoryProcedure, connect.NewUnaryHandler(GetUserHistoryProcedure, s.GetUserHistory, opts...))
	mux.Handle(RunWeeklyRolloverProcedure, connect.NewUnaryHandler(RunWeeklyRolloverProcedure, s.RunWeeklyRollover, opts...))
	return LeagueServicePath, mux
}

func (s *LeagueServer) GetRankings(ctx context.Context, req *connect.Request[GetRankingsRequest]) (*connect.Response[GetRankingsResponse], error) {
	t, err := tier.Parse(req.Msg.Tier)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	ranked, err := s.standings.GetRankings(ctx, t, req.Msg.Division)
	if err != nil {
		return nil, toConnectError(ctx, err)
	}

	return connect.NewResponse(&GetRankingsResponse{
		Tier:     t.String(),
		Division: req.Msg.Division,
		Entries:  toRankedEntries(ranked),
	}), nil
}

func (s *LeagueServer) GetGlobalLeaderboard(ctx context.Context, _ *connect.Request[GetGlobalLeaderboardRequest]) (*connect.Response[GetGlobalLeaderboardResponse], error) {
	ranked, err := s.standings.GetGlobalLeaderboard(ctx)
	if err != nil {
		return nil, toConnectError(ctx, err)
	}
	return connect.NewResponse(&GetGlobalLeaderboardResponse{Entries: toRankedEntries(ranked)}), nil
}

func (s *LeagueServer) IncrementWeeklyScore(ctx context.Context, req *connect.Request[IncrementWeeklyScoreRequest]) (*connect.Response[IncrementWeeklyScoreResponse], error) {
	total, err := s.ledger.IncrementWeeklyScore(ctx, req.Msg.UserID, req.Msg.Amount)
	if err != nil {
		return nil, toConnectError(ctx, err)
	}
	return connect.NewResponse(&IncrementWeeklyScoreResponse{UserID: req.Msg.UserID, WeeklyScore: total}), nil
}

func (s *LeagueServer) InitializeUserLeague(ctx context.Context, req *connect.Request[InitializeUserLeagueRequest]) (*connect.Response[InitializeUserLeagueResponse], error) {
	state, err := s.ledger.InitializeUserLeague(ctx, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(ctx, err)
	}
	return connect.NewResponse(&InitializeUserLeagueResponse{League: toUserLeague(state)}), nil
}

func (s *LeagueServer) GetUserLeague(ctx context.Context, req *connect.Request[GetUserLeagueRequest]) (*connect.Response[GetUserLeagueResponse], error) {
	state, err := s.ledger.GetUserLeague(ctx, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(ctx, err)
	}
	return connect.NewResponse(&GetUserLeagueResponse{League: toUserLeague(state)}), nil
}

func (s *LeagueServer) GetUserHistory(ctx context.Context, req *connect.Request[GetUserHistoryRequest]) (*connect.Response[GetUserHistoryResponse], error) {
	records, err := s.ledger.GetUserHistory(ctx, req.Msg.UserID, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError(ctx, err)
	}
	return connect.NewResponse(&GetUserHistoryResponse{Records: toHistoryRecords(records)}), nil
}

// RunWeeklyRollover lets an operator trigger the rollover by hand. It closes
// the same week the scheduler would and is idempotent.
func (s *LeagueServer) RunWeeklyRollover(ctx context.Context, _ *connect.Request[RunWeeklyRolloverRequest]) (*connect.Response[RunWeeklyRolloverResponse], error) {
	ctx, cancel := context.WithTimeout(ctx, s.rolloverTimeout)
	defer cancel()

	summary, err := s.rollover.RunWeeklyRollover(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewResponse(toRolloverResponse(summary)), nil
}

func toConnectError(ctx context.Context, err error) error {
	code := connect.CodeInternal
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		code = connect.CodeInvalidArgument
	case errors.Is(err, service.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, service.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeUnavailable
	}

	if code == connect.CodeInternal {
		zerolog.Ctx(ctx).Error().Err(err).Msg("league request failed")
	}
	return connect.NewError(code, err)
}
