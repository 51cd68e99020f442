package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budget/internal/cli"
	"budget/internal/core"
	apphttp "budget/internal/http"
	applog "budget/internal/log"
	"budget/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	result := cli.InitBackend(ctx, logger, cfg)

	svc := result.NewServices(core.PeriodRule{CutoverDay: cfg.PeriodCutoverDay})
	template := services.FileTemplate(cfg.TemplatePath)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:     svc.Ledger,
		Periods:    svc.Periods,
		Reporting:  svc.Reporting,
		Reconciler: svc.Reconciler,
		Rollover:   services.NewRolloverProcessor(svc.Periods, template),
		Template:   template,
		Ready:      result.Store.Ping,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger.WithComponent(applog.ComponentHTTP),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	})

	logger.Info("Starting budget server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"template", cfg.TemplatePath,
		"cutover_day", cfg.PeriodCutoverDay)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
