package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/settings"
)

func TestCutoverChecker_IsDue(t *testing.T) {
	checker := CutoverChecker{}
	populated := time.Date(2025, 7, 25, 0, 5, 0, 0, time.UTC)
	period := core.Period{
		Name:      "August 2025",
		StartDate: core.NewDate(2025, 7, 25),
		EndDate:   core.NewDate(2025, 8, 24),
	}

	tests := []struct {
		name        string
		populatedAt *time.Time
		now         time.Time
		want        bool
	}{
		{"first day, not populated", nil, time.Date(2025, 7, 25, 0, 5, 0, 0, time.UTC), true},
		{"mid period, not populated", nil, time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC), true},
		{"last day, not populated", nil, time.Date(2025, 8, 24, 23, 0, 0, 0, time.UTC), true},
		{"already populated", &populated, time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC), false},
		{"before period", nil, time.Date(2025, 7, 24, 23, 0, 0, 0, time.UTC), false},
		{"after period", nil, time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := period
			p.PopulatedAt = tt.populatedAt
			if got := checker.IsDue(p, tt.now); got != tt.want {
				t.Errorf("CutoverChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestForceChecker_IsDue(t *testing.T) {
	populated := time.Now()
	if !(ForceChecker{}).IsDue(core.Period{PopulatedAt: &populated}, time.Now()) {
		t.Error("ForceChecker.IsDue() = false, want true")
	}
}

func TestGetPopulationChecker(t *testing.T) {
	tests := []struct {
		mode    RolloverMode
		want    PopulationChecker
		wantErr bool
	}{
		{RolloverOnce, CutoverChecker{}, false},
		{RolloverForce, ForceChecker{}, false},
		{RolloverMode("weekly"), nil, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			got, err := GetPopulationChecker(tt.mode)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetPopulationChecker() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GetPopulationChecker() = %T, want %T", got, tt.want)
			}
		})
	}
}

func TestProcessRollover(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	robert := env.account(t, "Robert - Bank Zero Cheque", 0)
	loads := 0
	processor := NewRolloverProcessor(env.periods, func() (settings.Template, error) {
		loads++
		return sampleTemplate(), nil
	})

	result, err := processor.ProcessRollover(ctx, testToday, RolloverOnce)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "August 2025", result.PeriodName)
	assert.Len(t, result.CategoriesCreated, 2)

	active, err := env.store.ActivePeriod(ctx)
	require.NoError(t, err)
	assert.Equal(t, "August 2025", active.Name)

	// Second run in the same period is a no-op.
	result, err = processor.ProcessRollover(ctx, testToday.Add(24*time.Hour), RolloverOnce)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 1, loads)
	assert.Equal(t, int64(2500000), env.balance(t, robert.ID))

	// The next cutover opens and populates the next period.
	env.periods.SetClock(func() time.Time { return time.Date(2025, 8, 25, 0, 5, 0, 0, time.UTC) })
	result, err = processor.ProcessRollover(ctx, time.Date(2025, 8, 25, 0, 5, 0, 0, time.UTC), RolloverOnce)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "September 2025", result.PeriodName)
	assert.Equal(t, int64(5000000), env.balance(t, robert.ID))

	periods, err := env.reporting.ListPeriods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, 1, countActive(periods))
	assert.True(t, periods[1].Active)

	// Forcing resets categories but does not pay salaries again.
	result, err = processor.ProcessRollover(ctx, time.Date(2025, 8, 26, 0, 0, 0, 0, time.UTC), RolloverForce)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.DepositsSkipped)
	assert.Equal(t, int64(5000000), env.balance(t, robert.ID))
	env.requireReconciled(t)
}

func TestProcessRolloverWithZonedClock(t *testing.T) {
	east := time.FixedZone("CEST", 2*60*60)
	tests := []struct {
		name       string
		now        time.Time
		wantPeriod string
	}{
		{"local midnight is still the previous utc day", time.Date(2025, 7, 25, 0, 5, 0, 0, east), "July 2025"},
		{"after utc midnight", time.Date(2025, 7, 25, 2, 5, 0, 0, east), "August 2025"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t)
			env.account(t, "Robert - Bank Zero Cheque", 0)
			env.periods.SetClock(func() time.Time { return tt.now })
			processor := NewRolloverProcessor(env.periods, func() (settings.Template, error) {
				return sampleTemplate(), nil
			})

			result, err := processor.ProcessRollover(ctx, tt.now, RolloverOnce)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, tt.wantPeriod, result.PeriodName)

			// The salary deposit is reported within the period it was paid for.
			txs, err := env.reporting.ListPurchases(ctx, core.PurchaseFilter{PeriodID: &result.PeriodID})
			require.NoError(t, err)
			require.Len(t, txs, 1)
			assert.True(t, tt.now.Equal(txs[0].OccurredAt), "occurred at %v", txs[0].OccurredAt)

			summary, err := env.reporting.PeriodSummary(ctx, &result.PeriodID)
			require.NoError(t, err)
			assert.Equal(t, int64(2500000), summary.Income.Cents)
		})
	}
}

func TestProcessRolloverTemplateError(t *testing.T) {
	env := newTestEnv(t)
	processor := NewRolloverProcessor(env.periods, func() (settings.Template, error) {
		return settings.Template{}, errors.New("template missing")
	})

	_, err := processor.ProcessRollover(context.Background(), testToday, RolloverOnce)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template missing")

	// The period exists and stays unpopulated for the next tick.
	p, err := env.store.GetPeriodByName(context.Background(), "August 2025")
	require.NoError(t, err)
	assert.Nil(t, p.PopulatedAt)
}

func TestProcessRolloverNotInitialized(t *testing.T) {
	_, err := (&RolloverProcessor{}).ProcessRollover(context.Background(), testToday, RolloverOnce)
	assert.Error(t, err)
}

func TestFileTemplate(t *testing.T) {
	_, err := FileTemplate("/nonexistent/budget.yaml")()
	assert.Error(t, err)
}
