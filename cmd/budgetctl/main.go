package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"migrate", "Apply pending database migrations", runMigrate},
	{"generate", "Create upcoming budget periods", runGenerate},
	{"activate", "Make a period the active one", runActivate},
	{"populate", "Populate a period from the budget template", runPopulate},
	{"preview", "Show what the next rollover would do", runPreview},
	{"rollover", "Run the monthly rollover now", runRollover},
	{"reconcile", "Check stored balances against the ledger", runReconcile},
	{"bootstrap", "Create the template's accounts", runBootstrap},
	{"adopt", "Move categories without a period into the active one", runAdopt},
	{"prune-accounts", "Delete unused placeholder accounts", runPruneAccounts},
	{"accounts", "List accounts", runAccounts},
	{"categories", "List categories of a period", runCategories},
	{"periods", "List budget periods", runPeriods},
	{"purchases", "List purchases", runPurchases},
	{"summary", "Show period totals", runSummary},
}

// app holds what every command needs once the store is open.
type app struct {
	cfg      *config.Config
	backend  *backend.BackendResult
	svc      *backend.Services
	template services.TemplateSource
	now      func() time.Time
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage()
		return
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentCLI)
	cfg := cli.LoadAndValidateConfig(logger)
	if os.Getenv("BUDGETCTL_VERBOSE") == "" {
		cli.SetLogLevel(slog.LevelWarn)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result := cli.InitBackend(ctx, logger, cfg)
	a := &app{
		cfg:      cfg,
		backend:  result,
		svc:      result.NewServices(core.PeriodRule{CutoverDay: cfg.PeriodCutoverDay}),
		template: services.FileTemplate(cfg.TemplatePath),
		now:      time.Now,
	}

	err := cmd.run(ctx, a, os.Args[2:])
	if cerr := result.Cleanup(); cerr != nil {
		logger.Warn("Failed to close backend", "error", cerr)
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("budgetctl - budget ledger administration")
	fmt.Println("\nUsage:")
	fmt.Println("  budgetctl <command> [options]")
	fmt.Println("\nCommands:")
	for _, c := range commands {
		fmt.Printf("  %-16s%s\n", c.name, c.usage)
	}
	fmt.Println("\nConfiguration comes from the environment (.env is read when present).")
	fmt.Println("Set BUDGETCTL_VERBOSE=1 to see service logs.")
	fmt.Println("\nRun 'budgetctl <command> -h' for the options of a command.")
}
