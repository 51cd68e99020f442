package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/cli"
	applog "budget/internal/log"
	"budget/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for ledger-worker")
		os.Exit(1)
	}

	result := cli.InitBackend(context.Background(), logger, cfg)
	reconciler := services.NewReconciler(result.Store)

	// The backend treats the broker as optional; this worker cannot run without it.
	client := result.AMQP
	ownsClient := false
	if client == nil {
		var err error
		client, err = amqp.NewClientWithRetry(context.Background(), cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 5)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		ownsClient = true
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	handle := func(ctx context.Context, ev *amqp.LedgerEvent) error {
		if len(ev.AccountIDs) == 0 {
			return nil
		}
		report, err := reconciler.ReconcileAccounts(ctx, ev.AccountIDs)
		if err != nil {
			return err
		}
		if !report.OK() {
			logger.WarnContext(ctx, "Ledger drift after event",
				applog.FieldEventID, ev.ID,
				applog.FieldEventType, ev.Type,
				"drifts", len(report.Drifts))
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeLedgerEvents(gctx, handle)
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.ReconcileInterval)
		defer ticker.Stop()
		for {
			report, err := reconciler.Reconcile(gctx)
			if err != nil {
				logger.ErrorContext(gctx, "Periodic reconciliation failed", "error", err)
			} else {
				logger.InfoContext(gctx, "Periodic reconciliation complete",
					"accounts", report.Accounts,
					"categories", report.Categories,
					"drifts", len(report.Drifts),
					"next_check", time.Now().Add(cfg.ReconcileInterval).Format("15:04:05"))
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
			}
		}
	})

	runErr := g.Wait()
	// os.Exit below skips deferred calls, so both are closed here.
	if ownsClient {
		if err := client.Close(); err != nil {
			logger.Error("Failed to close AMQP client", "error", err)
		}
	}
	if err := result.Cleanup(); err != nil {
		logger.Error("Failed to close backend", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("Ledger-worker stopped with error", "error", runErr)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Ledger-worker stopped")
}
