package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"budget/internal/core"
	"budget/internal/services"
)

var errDrift = errors.New("ledger drift detected")

// parse parses args into fs. Asking for help is not an error.
func parse(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// optionalID turns a zero flag value into nil.
func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

func runMigrate(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if ok, err := parse(fs, args); !ok {
		return err
	}
	// Opening the store applies pending migrations.
	success("Migrations applied (%s backend)", a.cfg.DataBackend)
	return nil
}

func runGenerate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	count := fs.Int("count", 12, "number of periods to create, starting with the current one")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	periods, err := a.svc.Periods.GeneratePeriods(ctx, *count)
	if err != nil {
		return err
	}
	header("Budget periods")
	printPeriods(periods)
	success("%d periods ensured", len(periods))
	return nil
}

func runActivate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("activate", flag.ContinueOnError)
	id := fs.Int64("id", 0, "period id (required)")
	if ok, err := parse(fs, args); !ok {
		return err
	}
	if *id <= 0 {
		return errors.New("-id is required")
	}

	period, err := a.svc.Periods.ActivatePeriod(ctx, *id)
	if err != nil {
		return err
	}
	success("%s is now the active period", period.Name)
	return nil
}

func runPopulate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("populate", flag.ContinueOnError)
	periodID := fs.Int64("period-id", 0, "period to populate (default: the period containing today)")
	path := fs.String("template", "", "template file (default: BUDGET_TEMPLATE_PATH)")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	template := a.template
	if *path != "" {
		template = services.FileTemplate(*path)
	}
	tmpl, err := template()
	if err != nil {
		return err
	}

	id := *periodID
	if id <= 0 {
		current, err := a.svc.Periods.CurrentPeriod(ctx)
		if err != nil {
			return fmt.Errorf("no period contains today, run 'budgetctl generate' first: %w", err)
		}
		id = current.ID
	}

	result, err := a.svc.Periods.PopulatePeriodFromTemplate(ctx, id, tmpl)
	if err != nil {
		return err
	}
	printPopulation(result)
	return nil
}

func runPreview(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	if ok, err := parse(fs, args); !ok {
		return err
	}

	tmpl, err := a.template()
	if err != nil {
		return err
	}
	preview, err := a.svc.Periods.PreviewNextPeriod(ctx, tmpl)
	if err != nil {
		return err
	}

	header("Next rollover: " + preview.Period.Name)
	info("%s to %s (exists: %s)", preview.Period.StartDate, preview.Period.EndDate, yesNo(preview.PeriodExists))

	rows := make([][]string, 0, len(preview.Categories))
	for _, c := range preview.Categories {
		rows = append(rows, []string{c.Name, c.Amount.String()})
	}
	fmt.Println()
	table(os.Stdout, []string{"category", "budget"}, rows)

	rows = rows[:0]
	for _, d := range preview.Deposits {
		rows = append(rows, []string{d.Owner, d.AccountName, d.Amount.String()})
	}
	fmt.Println()
	table(os.Stdout, []string{"owner", "account", "salary"}, rows)

	for _, owner := range preview.MissingAccounts {
		warning("No primary account for %s", owner)
	}
	fmt.Println()
	info("Total budget %s, total income %s", preview.TotalBudget, preview.TotalIncome)
	return nil
}

func runRollover(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("rollover", flag.ContinueOnError)
	force := fs.Bool("force", false, "populate even when the period was already populated")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	mode := services.RolloverOnce
	if *force {
		mode = services.RolloverForce
	}
	processor := services.NewRolloverProcessor(a.svc.Periods, a.template)
	result, err := processor.ProcessRollover(ctx, a.now(), mode)
	if err != nil {
		return err
	}
	if result == nil {
		info("Current period is already populated; use -force to repopulate")
		return nil
	}
	printPopulation(*result)
	return nil
}

func runReconcile(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	if ok, err := parse(fs, args); !ok {
		return err
	}

	report, err := a.svc.Reconciler.Reconcile(ctx)
	if err != nil {
		return err
	}
	header("Reconciliation")
	info("%d accounts and %d categories checked", report.Accounts, report.Categories)
	if report.OK() {
		success("All balances match the ledger")
		return nil
	}

	rows := make([][]string, 0, len(report.Drifts))
	for _, d := range report.Drifts {
		rows = append(rows, []string{
			d.Entity,
			strconv.FormatInt(d.ID, 10),
			d.Name,
			d.Stored.String(),
			d.Expected.String(),
			d.Delta().String(),
		})
	}
	fmt.Println()
	table(os.Stdout, []string{"entity", "id", "name", "stored", "expected", "delta"}, rows)
	return errDrift
}

func runBootstrap(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("bootstrap", flag.ContinueOnError)
	periods := fs.Int("periods", 0, "also generate this many periods")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	tmpl, err := a.template()
	if err != nil {
		return err
	}
	created, err := a.svc.Ledger.EnsureAccounts(ctx, tmpl.Accounts)
	if err != nil {
		return err
	}
	for _, name := range created {
		success("Created account %s", name)
	}
	info("%d of %d template accounts created", len(created), len(tmpl.Accounts))

	if *periods > 0 {
		generated, err := a.svc.Periods.GeneratePeriods(ctx, *periods)
		if err != nil {
			return err
		}
		success("%d periods ensured", len(generated))
	}
	return nil
}

func runAdopt(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("adopt", flag.ContinueOnError)
	if ok, err := parse(fs, args); !ok {
		return err
	}

	n, err := a.svc.Periods.AdoptOrphanCategories(ctx)
	if err != nil {
		return err
	}
	success("%d categories moved into the active period", n)
	return nil
}

func runPruneAccounts(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("prune-accounts", flag.ContinueOnError)
	if ok, err := parse(fs, args); !ok {
		return err
	}

	pruned, err := a.svc.Ledger.PruneDefaultAccounts(ctx)
	if err != nil {
		return err
	}
	for _, name := range pruned {
		success("Deleted %s", name)
	}
	if len(pruned) == 0 {
		info("No unused placeholder accounts")
	}
	return nil
}

func runAccounts(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("accounts", flag.ContinueOnError)
	if ok, err := parse(fs, args); !ok {
		return err
	}

	accounts, err := a.svc.Reporting.ListAccounts(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(accounts))
	for _, acc := range accounts {
		rows = append(rows, []string{
			strconv.FormatInt(acc.ID, 10),
			acc.Name,
			string(acc.Type),
			acc.Balance.String(),
		})
	}
	header("Accounts")
	table(os.Stdout, []string{"id", "name", "type", "balance"}, rows)
	return nil
}

func runCategories(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("categories", flag.ContinueOnError)
	periodID := fs.Int64("period-id", 0, "period (default: the active one)")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	cats, err := a.svc.Reporting.ListCategoriesForPeriod(ctx, optionalID(*periodID))
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			c.Name,
			c.Budgeted.String(),
			c.Current.String(),
			c.Remaining.String(),
		})
	}
	header("Categories")
	table(os.Stdout, []string{"id", "name", "budgeted", "current", "remaining"}, rows)
	return nil
}

func runPeriods(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("periods", flag.ContinueOnError)
	if ok, err := parse(fs, args); !ok {
		return err
	}

	periods, err := a.svc.Reporting.ListPeriods(ctx)
	if err != nil {
		return err
	}
	header("Budget periods")
	printPeriods(periods)
	return nil
}

func runPurchases(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("purchases", flag.ContinueOnError)
	periodID := fs.Int64("period-id", 0, "only purchases inside this period")
	user := fs.String("user", "", "only purchases by this user")
	limit := fs.Int("limit", 50, "maximum rows")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	purchases, err := a.svc.Reporting.ListPurchases(ctx, core.PurchaseFilter{
		PeriodID: optionalID(*periodID),
		User:     *user,
		Limit:    *limit,
	})
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(purchases))
	for _, p := range purchases {
		rows = append(rows, []string{
			p.OccurredAt.Local().Format("2006-01-02"),
			p.User,
			p.Amount.String(),
			p.AccountName,
			p.CategoryName,
			p.Description,
		})
	}
	header("Purchases")
	table(os.Stdout, []string{"date", "user", "amount", "account", "category", "description"}, rows)
	return nil
}

func runSummary(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	periodID := fs.Int64("period-id", 0, "period (default: the active one)")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	s, err := a.svc.Reporting.PeriodSummary(ctx, optionalID(*periodID))
	if err != nil {
		return err
	}
	header(s.Period.Name)
	info("Budgeted  %s", s.Budgeted)
	info("Spent     %s (%d purchases)", s.Spent, s.Purchases)
	info("Income    %s", s.Income)
	if s.Remaining.IsNegative() {
		warning("Remaining %s", s.Remaining)
	} else {
		success("Remaining %s", s.Remaining)
	}

	rows := make([][]string, 0, len(s.ByCategory))
	for _, c := range s.ByCategory {
		rows = append(rows, []string{c.Name, c.Amount.String()})
	}
	fmt.Println()
	table(os.Stdout, []string{"category", "spent"}, rows)
	return nil
}

func printPeriods(periods []core.Period) {
	rows := make([][]string, 0, len(periods))
	for _, p := range periods {
		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			p.StartDate.String(),
			p.EndDate.String(),
			yesNo(p.Active),
			optionalTime(p.PopulatedAt),
		})
	}
	table(os.Stdout, []string{"id", "name", "start", "end", "active", "populated"}, rows)
}

func printPopulation(r core.PopulationResult) {
	header("Populated " + r.PeriodName)
	for _, name := range r.CategoriesCreated {
		success("Created %s", name)
	}
	for _, name := range r.CategoriesReset {
		info("Reset %s", name)
	}
	if r.DepositsSkipped {
		warning("Salaries were already deposited for this period")
	}
	for _, d := range r.Deposits {
		success("Deposited %s into %s", d.Amount, d.AccountName)
	}
	for _, owner := range r.MissingAccounts {
		warning("No primary account for %s", owner)
	}
	info("Total budget %s, total income %s", r.TotalBudget, r.TotalIncome)
}
