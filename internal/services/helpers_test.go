package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// testToday falls inside the "August 2025" period (2025-07-25..2025-08-24).
var testToday = time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type testEnv struct {
	store      *storage.Store
	publisher  *recordingPublisher
	ledger     *LedgerService
	periods    *PeriodService
	reporting  *ReportingService
	reconciler *Reconciler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "budget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pub := &recordingPublisher{}
	ledger := NewLedgerService(store, pub)
	periods := NewPeriodService(store, ledger, core.DefaultPeriodRule())
	periods.SetClock(func() time.Time { return testToday })

	return &testEnv{
		store:      store,
		publisher:  pub,
		ledger:     ledger,
		periods:    periods,
		reporting:  NewReportingService(store),
		reconciler: NewReconciler(store),
	}
}

func (e *testEnv) account(t *testing.T, name string, cents int64) core.Account {
	t.Helper()
	acc, err := e.ledger.CreateAccount(context.Background(), core.NewAccount{
		Name: name, Type: core.AccountBank, Balance: core.FromCents(cents),
	})
	require.NoError(t, err)
	return acc
}

// activePeriod generates one period around testToday and returns it.
func (e *testEnv) activePeriod(t *testing.T) core.Period {
	t.Helper()
	periods, err := e.periods.GeneratePeriods(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	return periods[0]
}

func (e *testEnv) category(t *testing.T, name string, budgetCents int64) core.Category {
	t.Helper()
	cat, err := e.ledger.CreateCategory(context.Background(), core.NewCategory{
		Name: name, Budgeted: core.FromCents(budgetCents),
	})
	require.NoError(t, err)
	return cat
}

func (e *testEnv) balance(t *testing.T, id int64) int64 {
	t.Helper()
	acc, err := e.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance.Cents
}

func (e *testEnv) categoryBalance(t *testing.T, id int64) int64 {
	t.Helper()
	cat, err := e.store.GetCategory(context.Background(), id)
	require.NoError(t, err)
	return cat.Current.Cents
}

func (e *testEnv) requireReconciled(t *testing.T) {
	t.Helper()
	report, err := e.reconciler.Reconcile(context.Background())
	require.NoError(t, err)
	require.True(t, report.OK(), "unexpected drift: %+v", report.Drifts)
}

func ptr[T any](v T) *T { return &v }

var errBrokerDown = errors.New("connection refused")
