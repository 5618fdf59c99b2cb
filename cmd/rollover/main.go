// Command rollover closes one league week outside the server process and
// prints the run summary. Running it again for the same week is a no-op for
// divisions that already committed.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"league-engine/internal/domain"
	fxmodules "league-engine/internal/fx"
	"league-engine/internal/service"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
)

func main() {
	app := &cli.App{
		Name:  "rollover",
		Usage: "close a league week: rank every division, move members and grant rewards",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "week",
				Usage: "week id to close (2006-01-02); defaults to the week before the current one",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	var (
		rollover *service.RolloverService
		logger   zerolog.Logger
	)

	app := fx.New(
		fxmodules.Module,
		fx.NopLogger,
		fx.Populate(&rollover, &logger),
	)
	if err := app.Start(c.Context); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		if err := app.Stop(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("shutdown incomplete")
		}
	}()

	var (
		summary domain.RolloverSummary
		err     error
	)
	if week := c.String("week"); week != "" {
		summary, err = rollover.RunForWeek(c.Context, week)
	} else {
		summary, err = rollover.RunWeeklyRollover(c.Context)
	}
	if err != nil {
		return err
	}

	logger.Info().
		Str("run_id", summary.RunID).
		Str("week_id", summary.WeekID).
		Int("processed", summary.GroupsProcessed).
		Int("skipped", summary.GroupsSkipped).
		Int("failed", summary.GroupsFailed).
		Int("deferred", summary.GroupsDeferred).
		Int("promotions", summary.Promotions).
		Int("relegations", summary.Relegations).
		Int64("rewards", summary.RewardsGranted).
		Msg("rollover finished")

	if open := summary.GroupsFailed + summary.GroupsDeferred; open > 0 {
		return cli.Exit(fmt.Sprintf("%d division(s) left open for week %s", open, summary.WeekID), 1)
	}
	return nil
}
