package services

import (
	"context"
	"fmt"

	"budget/internal/core"
	"budget/internal/storage"
)

// ReportingService answers read-only questions about the ledger.
type ReportingService struct {
	store *storage.Store
}

func NewReportingService(store *storage.Store) *ReportingService {
	return &ReportingService{store: store}
}

func (s *ReportingService) ListAccounts(ctx context.Context) ([]core.Account, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (s *ReportingService) ListPeriods(ctx context.Context) ([]core.Period, error) {
	periods, err := s.store.ListPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// ListCategoriesForPeriod lists a period's categories with their remaining
// budget. A nil periodID means the active period.
func (s *ReportingService) ListCategoriesForPeriod(ctx context.Context, periodID *int64) ([]core.CategoryView, error) {
	period, err := s.resolvePeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	categories, err := s.store.ListCategoriesByPeriod(ctx, period.ID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	views := make([]core.CategoryView, len(categories))
	for i, c := range categories {
		views[i] = core.CategoryView{Category: c, Remaining: c.Remaining()}
	}
	return views, nil
}

// ListPurchases lists purchase and income rows, newest first.
func (s *ReportingService) ListPurchases(ctx context.Context, filter core.PurchaseFilter) ([]core.TransactionView, error) {
	var period *core.Period
	if filter.PeriodID != nil {
		p, err := s.store.GetPeriod(ctx, *filter.PeriodID)
		if err != nil {
			return nil, fmt.Errorf("list purchases: %w", err)
		}
		period = &p
	}
	rows, err := s.store.ListTransactions(ctx, filter, period)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return rows, nil
}

func (s *ReportingService) ListTransfers(ctx context.Context, filter core.TransferFilter) ([]core.TransferView, error) {
	var period *core.Period
	if filter.PeriodID != nil {
		p, err := s.store.GetPeriod(ctx, *filter.PeriodID)
		if err != nil {
			return nil, fmt.Errorf("list transfers: %w", err)
		}
		period = &p
	}
	rows, err := s.store.ListTransfers(ctx, filter, period)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return rows, nil
}

// PeriodSummary totals a period's budget, spending and income. A nil
// periodID means the active period.
func (s *ReportingService) PeriodSummary(ctx context.Context, periodID *int64) (core.PeriodSummary, error) {
	period, err := s.resolvePeriod(ctx, periodID)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("period summary: %w", err)
	}
	categories, err := s.store.ListCategoriesByPeriod(ctx, period.ID)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("period summary: %w", err)
	}
	totals, err := s.store.PeriodTotals(ctx, period)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("period summary: %w", err)
	}

	summary := core.PeriodSummary{
		Period:     period,
		Spent:      totals.Spent,
		Income:     totals.Income,
		Purchases:  totals.Purchases,
		ByCategory: totals.ByCategory,
	}
	for _, c := range categories {
		summary.Budgeted = summary.Budgeted.Add(c.Budgeted)
		summary.Remaining = summary.Remaining.Add(c.Remaining())
	}
	return summary, nil
}

func (s *ReportingService) resolvePeriod(ctx context.Context, periodID *int64) (core.Period, error) {
	if periodID == nil {
		return s.store.ActivePeriod(ctx)
	}
	return s.store.GetPeriod(ctx, *periodID)
}
