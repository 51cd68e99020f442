package main

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"budget/internal/cli"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentRollover)
	logger.Info("Starting rollover-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	result := cli.InitBackend(context.Background(), logger, cfg)

	svc := result.NewServices(core.PeriodRule{CutoverDay: cfg.PeriodCutoverDay})
	processor := services.NewRolloverProcessor(svc.Periods, services.FileTemplate(cfg.TemplatePath))

	// Periods are UTC calendar days, so the schedule is read in UTC too.
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		// Stop returns a context that is done once running jobs finish.
		<-c.Stop().Done()
		if err := result.Cleanup(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	})

	run := func() {
		now := time.Now().UTC()
		res, err := processor.ProcessRollover(ctx, now, services.RolloverOnce)
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "Rollover failed", "error", err)
		case res == nil:
			logger.InfoContext(ctx, "Rollover not due")
		default:
			logger.InfoContext(ctx, "Rollover complete",
				applog.FieldPeriod, res.PeriodName,
				"categories_created", len(res.CategoriesCreated),
				"categories_reset", len(res.CategoriesReset),
				"deposits", len(res.Deposits),
				"missing_accounts", len(res.MissingAccounts))
		}
	}

	if _, err := c.AddFunc(cfg.RolloverSchedule, run); err != nil {
		logger.Error("Invalid rollover schedule", "error", err, "schedule", cfg.RolloverSchedule)
		os.Exit(1)
	}

	logger.Info("Running initial rollover check",
		"schedule", cfg.RolloverSchedule,
		"template", cfg.TemplatePath,
		"cutover_day", cfg.PeriodCutoverDay)
	run()

	c.Start()
	cli.WaitForShutdown(ctx, done)
	logger.Info("Rollover-worker stopped")
}
