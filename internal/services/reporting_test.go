package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
)

func TestListPurchasesFilters(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	periods, err := env.periods.GeneratePeriods(ctx, 2)
	require.NoError(t, err)
	aug, sep := periods[0], periods[1]
	checking := env.account(t, "Checking", 100000)
	groceries := env.category(t, "Groceries", 50000)

	record := func(user string, when time.Time) {
		t.Helper()
		_, err := env.ledger.RecordPurchase(ctx, core.NewPurchase{
			User: user, Amount: core.FromCents(100), AccountID: &checking.ID, CategoryID: &groceries.ID, OccurredAt: when,
		})
		require.NoError(t, err)
	}
	record("alice", time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC))
	record("bob", time.Date(2025, 8, 24, 23, 59, 0, 0, time.UTC))
	record("alice", time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name   string
		filter core.PurchaseFilter
		want   []string
	}{
		{"all newest first", core.PurchaseFilter{}, []string{"alice", "bob", "alice"}},
		{"august period", core.PurchaseFilter{PeriodID: &aug.ID}, []string{"bob", "alice"}},
		{"september period", core.PurchaseFilter{PeriodID: &sep.ID}, []string{"alice"}},
		{"by user", core.PurchaseFilter{User: "bob"}, []string{"bob"}},
		{"limited", core.PurchaseFilter{Limit: 2}, []string{"alice", "bob"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := env.reporting.ListPurchases(ctx, tt.filter)
			require.NoError(t, err)
			var users []string
			for _, r := range rows {
				users = append(users, r.User)
				assert.Equal(t, "Checking", r.AccountName)
				assert.Equal(t, "Groceries", r.CategoryName)
			}
			assert.Equal(t, tt.want, users)
		})
	}

	_, err = env.reporting.ListPurchases(ctx, core.PurchaseFilter{PeriodID: ptr(int64(999))})
	assert.True(t, core.IsNotFound(err))
}

func TestListCategoriesForPeriod(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.reporting.ListCategoriesForPeriod(ctx, nil)
	assert.True(t, core.IsNotFound(err), "no active period")

	env.activePeriod(t)
	checking := env.account(t, "Checking", 100000)
	rent := env.category(t, "Rent", 100000)
	env.category(t, "Fuel", 20000)
	_, err = env.ledger.RecordPurchase(ctx, core.NewPurchase{User: "a", Amount: core.FromCents(35000), AccountID: &checking.ID, CategoryID: &rent.ID, OccurredAt: testToday})
	require.NoError(t, err)

	views, err := env.reporting.ListCategoriesForPeriod(ctx, nil)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Fuel", views[0].Name)
	assert.Equal(t, int64(20000), views[0].Remaining.Cents)
	assert.Equal(t, "Rent", views[1].Name)
	assert.Equal(t, int64(65000), views[1].Remaining.Cents)
}

func TestPeriodSummary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	period := env.activePeriod(t)
	checking := env.account(t, "Checking", 0)
	rent := env.category(t, "Rent", 100000)
	fuel := env.category(t, "Fuel", 20000)

	_, err := env.ledger.RecordIncome(ctx, core.NewIncome{User: "a", Amount: core.FromCents(300000), AccountID: checking.ID, OccurredAt: testToday})
	require.NoError(t, err)
	for _, p := range []struct {
		cat    int64
		amount int64
	}{{rent.ID, 90000}, {fuel.ID, 5000}, {fuel.ID, 7000}} {
		_, err := env.ledger.RecordPurchase(ctx, core.NewPurchase{User: "a", Amount: core.FromCents(p.amount), AccountID: &checking.ID, CategoryID: &p.cat, OccurredAt: testToday})
		require.NoError(t, err)
	}

	summary, err := env.reporting.PeriodSummary(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, period.ID, summary.Period.ID)
	assert.Equal(t, int64(120000), summary.Budgeted.Cents)
	assert.Equal(t, int64(102000), summary.Spent.Cents)
	assert.Equal(t, int64(18000), summary.Remaining.Cents)
	assert.Equal(t, int64(300000), summary.Income.Cents)
	assert.Equal(t, 3, summary.Purchases)
	require.Len(t, summary.ByCategory, 2)
	assert.Equal(t, "Rent", summary.ByCategory[0].Name)
	assert.Equal(t, int64(12000), summary.ByCategory[1].Amount.Cents)

	_, err = env.reporting.PeriodSummary(ctx, ptr(int64(999)))
	assert.True(t, core.IsNotFound(err))
}
