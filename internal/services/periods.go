package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/settings"
	"budget/internal/storage"
)

// PeriodService generates, activates and populates budget periods.
type PeriodService struct {
	store  *storage.Store
	ledger *LedgerService
	rule   core.PeriodRule
	now    func() time.Time
}

func NewPeriodService(store *storage.Store, ledger *LedgerService, rule core.PeriodRule) *PeriodService {
	return &PeriodService{
		store:  store,
		ledger: ledger,
		rule:   rule,
		now:    time.Now,
	}
}

// SetClock replaces the clock used to decide which period is current.
func (s *PeriodService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *PeriodService) Rule() core.PeriodRule {
	return s.rule
}

// GeneratePeriods persists count consecutive periods starting with the one
// containing today and makes that one the single active period. Periods
// that already exist by name are kept as they are.
func (s *PeriodService) GeneratePeriods(ctx context.Context, count int) ([]core.Period, error) {
	specs, err := core.GeneratePeriods(count, s.rule, s.now())
	if err != nil {
		return nil, err
	}

	periods := make([]core.Period, 0, len(specs))
	created := 0
	err = s.store.WithTx(ctx, func(q *storage.Queries) error {
		var activeID int64
		for _, spec := range specs {
			p, inserted, err := ensurePeriod(ctx, q, spec)
			if err != nil {
				return err
			}
			if inserted {
				created++
			}
			if spec.Active {
				activeID = p.ID
			}
			periods = append(periods, p)
		}
		if err := q.ActivatePeriod(ctx, activeID); err != nil {
			return err
		}
		for i := range periods {
			periods[i].Active = periods[i].ID == activeID
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate periods: %w", err)
	}

	slog.InfoContext(ctx, "Budget periods generated",
		"requested", count,
		"created", created,
		"first", specs[0].Name,
		"last", specs[len(specs)-1].Name)
	return periods, nil
}

func ensurePeriod(ctx context.Context, q *storage.Queries, spec core.PeriodSpec) (core.Period, bool, error) {
	p, err := q.GetPeriodByName(ctx, spec.Name)
	if err == nil {
		return p, false, nil
	}
	if !core.IsNotFound(err) {
		return core.Period{}, false, err
	}
	p, err = q.InsertPeriod(ctx, spec)
	if err != nil {
		return core.Period{}, false, err
	}
	return p, true, nil
}

// EnsurePeriod returns the stored period matching spec, creating it when
// missing, and activates it when spec is marked active.
func (s *PeriodService) EnsurePeriod(ctx context.Context, spec core.PeriodSpec) (core.Period, error) {
	var period core.Period
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		p, inserted, err := ensurePeriod(ctx, q, spec)
		if err != nil {
			return err
		}
		if inserted {
			slog.InfoContext(ctx, "Budget period created", "period", spec.String())
		}
		if spec.Active && !p.Active {
			if err := q.ActivatePeriod(ctx, p.ID); err != nil {
				return err
			}
			p.Active = true
		}
		period = p
		return nil
	})
	if err != nil {
		return core.Period{}, fmt.Errorf("ensure period: %w", err)
	}
	return period, nil
}

// ActivatePeriod makes id the single active period.
func (s *PeriodService) ActivatePeriod(ctx context.Context, id int64) (core.Period, error) {
	var period core.Period
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.ActivatePeriod(ctx, id); err != nil {
			return err
		}
		var err error
		period, err = q.GetPeriod(ctx, id)
		return err
	})
	if err != nil {
		return core.Period{}, fmt.Errorf("activate period: %w", err)
	}

	slog.InfoContext(ctx, "Budget period activated", "period_id", id, "name", period.Name)
	s.ledger.publish(ctx, amqp.NewLedgerEvent(amqp.EventPeriodActivated, id))
	return period, nil
}

// CurrentPeriod returns the stored period whose dates contain today.
func (s *PeriodService) CurrentPeriod(ctx context.Context) (core.Period, error) {
	return s.store.PeriodForDate(ctx, core.DateOf(s.now()))
}

// AdoptOrphanCategories moves categories that predate periods into the
// active period.
func (s *PeriodService) AdoptOrphanCategories(ctx context.Context) (int64, error) {
	var adopted int64
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		active, err := q.ActivePeriod(ctx)
		if err != nil {
			return err
		}
		adopted, err = q.AssignOrphanCategories(ctx, active.ID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("adopt orphan categories: %w", err)
	}
	slog.InfoContext(ctx, "Orphan categories adopted", "count", adopted)
	return adopted, nil
}

// PopulatePeriodFromTemplate creates or resets the template's categories in
// the period (budgeted = current = template amount) and deposits each
// owner's salary into their primary account. Everything commits together.
// Salaries are deposited only on the first population of a period.
func (s *PeriodService) PopulatePeriodFromTemplate(ctx context.Context, periodID int64, tmpl settings.Template) (core.PopulationResult, error) {
	result := core.PopulationResult{
		PeriodID:    periodID,
		TotalBudget: tmpl.TotalBudget(),
	}

	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		period, err := q.GetPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		result.PeriodName = period.Name

		for _, line := range tmpl.Categories {
			existing, err := q.GetCategoryByName(ctx, line.Name(), periodID)
			switch {
			case err == nil:
				if err := q.ResetCategory(ctx, existing.ID, line.Amount, line.Amount); err != nil {
					return err
				}
				result.CategoriesReset = append(result.CategoriesReset, line.Name())
			case core.IsNotFound(err):
				if _, err := q.CreateCategory(ctx, line.Name(), &periodID, line.Amount, line.Amount); err != nil {
					return err
				}
				result.CategoriesCreated = append(result.CategoriesCreated, line.Name())
			default:
				return err
			}
		}

		if period.PopulatedAt != nil {
			result.DepositsSkipped = true
		} else {
			depositAt := s.depositTime(period)
			for _, salary := range tmpl.Salaries {
				if !salary.Amount.IsPositive() {
					continue
				}
				acc, ok, err := findPrimaryAccount(ctx, q, salary.Owner)
				if err != nil {
					return err
				}
				if !ok {
					result.MissingAccounts = append(result.MissingAccounts, salary.Owner)
					continue
				}
				tx, err := recordIncome(ctx, q, core.NewIncome{
					User:           salary.Owner,
					Amount:         salary.Amount,
					AccountID:      acc.ID,
					Description:    settings.SalaryDescription(period.Name),
					OccurredAt:     depositAt,
					RawDescription: true,
				})
				if err != nil {
					return fmt.Errorf("deposit salary for %s: %w", salary.Owner, err)
				}
				result.Deposits = append(result.Deposits, core.Deposit{
					Owner:         salary.Owner,
					AccountID:     acc.ID,
					AccountName:   acc.Name,
					Amount:        salary.Amount,
					TransactionID: tx.ID,
				})
				result.TotalIncome = result.TotalIncome.Add(salary.Amount)
			}
		}

		return q.MarkPopulated(ctx, periodID)
	})
	if err != nil {
		return core.PopulationResult{}, fmt.Errorf("populate period: %w", err)
	}

	for _, owner := range result.MissingAccounts {
		slog.WarnContext(ctx, "No primary account for salary", "owner", owner, "period", result.PeriodName)
	}
	slog.InfoContext(ctx, "Budget period populated",
		"period_id", periodID,
		"period", result.PeriodName,
		"categories_created", len(result.CategoriesCreated),
		"categories_reset", len(result.CategoriesReset),
		"deposits", len(result.Deposits),
		"total_budget_cents", result.TotalBudget.Cents,
		"total_income_cents", result.TotalIncome.Cents)

	ev := amqp.NewLedgerEvent(amqp.EventPeriodPopulated, periodID)
	for _, d := range result.Deposits {
		ev.AccountIDs = append(ev.AccountIDs, d.AccountID)
	}
	ev.AmountCents = result.TotalIncome.Cents
	s.ledger.publish(ctx, ev)
	return result, nil
}

// depositTime dates salary deposits now when the period is current, and
// at the period start otherwise so they land inside the period.
func (s *PeriodService) depositTime(period core.Period) time.Time {
	now := s.now()
	if period.Contains(core.DateOf(now)) {
		return now
	}
	return period.StartDate.Time
}

func findPrimaryAccount(ctx context.Context, q *storage.Queries, owner string) (core.Account, bool, error) {
	for _, name := range settings.PrimaryAccountCandidates(owner) {
		acc, err := q.GetAccountByName(ctx, name)
		if err == nil {
			return acc, true, nil
		}
		if !core.IsNotFound(err) {
			return core.Account{}, false, err
		}
	}
	return core.Account{}, false, nil
}

// PreviewNextPeriod reports what the next rollover would create and
// deposit without writing anything. The target is the current period
// while it is still unpopulated, otherwise the one after it.
func (s *PeriodService) PreviewNextPeriod(ctx context.Context, tmpl settings.Template) (core.PopulationPreview, error) {
	start := s.rule.StartFor(s.now())
	spec := s.rule.Spec(start, 0)
	current, err := s.store.GetPeriodByName(ctx, spec.Name)
	if err != nil && !core.IsNotFound(err) {
		return core.PopulationPreview{}, fmt.Errorf("preview period: %w", err)
	}
	if err == nil && current.PopulatedAt != nil {
		spec = s.rule.Spec(start, 1)
	}

	preview := core.PopulationPreview{
		Period:      spec,
		TotalBudget: tmpl.TotalBudget(),
	}
	if _, err := s.store.GetPeriodByName(ctx, spec.Name); err == nil {
		preview.PeriodExists = true
	} else if !core.IsNotFound(err) {
		return core.PopulationPreview{}, fmt.Errorf("preview period: %w", err)
	}

	for _, line := range tmpl.Categories {
		preview.Categories = append(preview.Categories, core.CategoryAmount{Name: line.Name(), Amount: line.Amount})
	}
	for _, salary := range tmpl.Salaries {
		if !salary.Amount.IsPositive() {
			continue
		}
		acc, ok, err := findPrimaryAccount(ctx, s.store.Queries, salary.Owner)
		if err != nil {
			return core.PopulationPreview{}, fmt.Errorf("preview period: %w", err)
		}
		if !ok {
			preview.MissingAccounts = append(preview.MissingAccounts, salary.Owner)
			continue
		}
		preview.Deposits = append(preview.Deposits, core.Deposit{
			Owner:       salary.Owner,
			AccountID:   acc.ID,
			AccountName: acc.Name,
			Amount:      salary.Amount,
		})
		preview.TotalIncome = preview.TotalIncome.Add(salary.Amount)
	}
	return preview, nil
}
