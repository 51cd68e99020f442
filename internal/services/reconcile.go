package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/core"
	"budget/internal/storage"
)

// Reconciler compares stored running balances with the balances implied
// by the transaction log. It never writes.
type Reconciler struct {
	store *storage.Store
}

func NewReconciler(store *storage.Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile checks every account and category.
func (r *Reconciler) Reconcile(ctx context.Context) (core.ReconcileReport, error) {
	var (
		accounts   []storage.AccountLedger
		categories []storage.CategoryLedger
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = r.store.AccountLedgers(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = r.store.CategoryLedgers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.ReconcileReport{}, fmt.Errorf("reconcile: %w", err)
	}

	report := buildReport(accounts, categories)
	logReport(ctx, report)
	return report, nil
}

// ReconcileAccounts checks only the given accounts.
func (r *Reconciler) ReconcileAccounts(ctx context.Context, ids []int64) (core.ReconcileReport, error) {
	if len(ids) == 0 {
		return core.ReconcileReport{CheckedAt: time.Now().UTC()}, nil
	}
	accounts, err := r.store.AccountLedgers(ctx, ids)
	if err != nil {
		return core.ReconcileReport{}, fmt.Errorf("reconcile accounts: %w", err)
	}
	report := buildReport(accounts, nil)
	logReport(ctx, report)
	return report, nil
}

func buildReport(accounts []storage.AccountLedger, categories []storage.CategoryLedger) core.ReconcileReport {
	report := core.ReconcileReport{
		CheckedAt:  time.Now().UTC(),
		Accounts:   len(accounts),
		Categories: len(categories),
		Drifts:     []core.Drift{},
	}
	for _, a := range accounts {
		if expected := a.Expected(); expected != a.Balance {
			report.Drifts = append(report.Drifts, core.Drift{
				Entity: "account", ID: a.ID, Name: a.Name, Stored: a.Balance, Expected: expected,
			})
		}
	}
	for _, c := range categories {
		if expected := c.Expected(); expected != c.Current {
			report.Drifts = append(report.Drifts, core.Drift{
				Entity: "category", ID: c.ID, Name: c.Name, Stored: c.Current, Expected: expected,
			})
		}
	}
	return report
}

func logReport(ctx context.Context, report core.ReconcileReport) {
	for _, d := range report.Drifts {
		slog.WarnContext(ctx, "Balance drift detected",
			"entity", d.Entity,
			"id", d.ID,
			"name", d.Name,
			"stored_cents", d.Stored.Cents,
			"expected_cents", d.Expected.Cents,
			"delta_cents", d.Delta().Cents)
	}
	slog.InfoContext(ctx, "Reconciliation complete",
		"accounts", report.Accounts,
		"categories", report.Categories,
		"drifts", len(report.Drifts))
}
