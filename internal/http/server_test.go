package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/settings"
	"budget/internal/storage"
)

var testNow = time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)

type testServer struct {
	srv   *Server
	store *storage.Store
	ready error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "budget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ledger := services.NewLedgerService(store, nil)
	periods := services.NewPeriodService(store, ledger, core.DefaultPeriodRule())
	periods.SetClock(func() time.Time { return testNow })
	template := func() (settings.Template, error) {
		return settings.Template{
			Categories: []settings.CategoryBudget{{Owner: "Robert", Category: "Groceries", Amount: core.FromCents(150000)}},
			Salaries:   []settings.Salary{{Owner: "Robert", Amount: core.FromCents(250000)}},
		}, nil
	}

	ts := &testServer{store: store}
	ts.srv = NewServer(":0", Deps{
		Ledger:     ledger,
		Periods:    periods,
		Reporting:  services.NewReportingService(store),
		Reconciler: services.NewReconciler(store),
		Rollover:   services.NewRolloverProcessor(periods, template),
		Template:   template,
		Ready:      func(context.Context) error { return ts.ready },
	}, Options{
		RateLimitPerMinute: 1000,
		Logger:             applog.New(applog.Config{Output: &bytes.Buffer{}}),
		Now:                func() time.Time { return testNow },
	})
	t.Cleanup(func() { _ = ts.srv.Shutdown(context.Background()) })
	return ts
}

// do sends body as JSON and decodes the response into out when non-nil.
func (ts *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil, nil))
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/readyz", nil, nil))

	ts.ready = errors.New("db down")
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, http.MethodGet, "/readyz", nil, nil))
}

func TestRoutingErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		method  string
		path    string
		status  int
		message string
	}{
		{"unknown api path", http.MethodGet, "/api/nope", http.StatusNotFound, "no such route"},
		{"unknown root path", http.MethodGet, "/nope", http.StatusNotFound, "no such route"},
		{"non numeric id", http.MethodDelete, "/api/purchases/abc", http.StatusNotFound, "no such route"},
		{"wrong method on api collection", http.MethodPatch, "/api/accounts", http.StatusMethodNotAllowed, "method not allowed"},
		{"wrong method on api item", http.MethodGet, "/api/purchases/1", http.StatusMethodNotAllowed, "method not allowed"},
		{"wrong method on admin path", http.MethodPost, "/admin/preview", http.StatusMethodNotAllowed, "method not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorResponse
			assert.Equal(t, tt.status, ts.do(t, tt.method, tt.path, nil, &body))
			assert.Equal(t, tt.message, body.Error)
		})
	}
}

func TestPurchaseFlow(t *testing.T) {
	ts := newTestServer(t)

	var periods []core.Period
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/periods/generate", map[string]int{"count": 2}, &periods))
	require.Len(t, periods, 2)
	assert.True(t, periods[0].Active)

	var checking core.Account
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/accounts",
		map[string]any{"name": "Checking", "account_type": "bank", "balance": "5000.00"}, &checking))

	var groceries core.CategoryView
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/categories",
		map[string]any{"name": "Groceries", "budgeted_amount": "1500.00"}, &groceries))
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, fmt.Sprintf("/api/categories/%d/budget", groceries.ID),
		map[string]any{"amount": "1500.00"}, &groceries))

	var tx core.Transaction
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/purchases", map[string]any{
		"user_name": "alice", "amount": "1200.00", "account_id": checking.ID,
		"category_id": groceries.ID, "description": "weekly shop",
	}, &tx))
	assert.True(t, testNow.Equal(tx.OccurredAt), "occurred at %v", tx.OccurredAt)

	var accounts []core.Account
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/accounts", nil, &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, int64(380000), accounts[0].Balance.Cents)

	var cats []core.CategoryView
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/categories", nil, &cats))
	require.Len(t, cats, 1)
	assert.Equal(t, int64(-120000), cats[0].Current.Cents)
	assert.Equal(t, int64(30000), cats[0].Remaining.Cents)

	var rows []core.TransactionView
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, fmt.Sprintf("/api/purchases?period_id=%d&user=alice", periods[0].ID), nil, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Groceries", rows[0].CategoryName)

	var summary core.PeriodSummary
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, fmt.Sprintf("/api/periods/%d/summary", periods[0].ID), nil, &summary))
	assert.Equal(t, int64(120000), summary.Spent.Cents)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/purchases/%d", tx.ID), nil, nil))
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/accounts", nil, &accounts))
	assert.Equal(t, int64(500000), accounts[0].Balance.Cents)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, fmt.Sprintf("/api/purchases/%d", tx.ID), nil, nil))

	var report core.ReconcileReport
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/admin/reconcile", nil, &report))
	assert.True(t, report.OK())
}

func TestTransferErrors(t *testing.T) {
	ts := newTestServer(t)

	var from, to core.Account
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/accounts", map[string]any{"name": "Checking", "balance": 3800}, &from))
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/accounts", map[string]any{"name": "Savings"}, &to))

	var body errorResponse
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(t, http.MethodPost, "/api/transfers", map[string]any{
		"from_account_id": from.ID, "to_account_id": to.ID, "amount": 4000, "originator": "alice",
	}, &body))
	assert.Contains(t, body.Error, "insufficient funds")

	body = errorResponse{}
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/transfers", map[string]any{
		"from_account_id": from.ID, "to_account_id": from.ID, "amount": 10, "originator": "alice",
	}, &body))
	assert.Equal(t, "to_account_id", body.Field)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/transfers", map[string]any{
		"from_account_id": from.ID, "to_account_id": 999, "amount": 10, "originator": "alice",
	}, nil))

	var transfer core.Transfer
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/transfers", map[string]any{
		"from_account_id": from.ID, "to_account_id": to.ID, "amount": "800.00", "originator": "alice",
		"transfer_date": "2025-08-09",
	}, &transfer))

	var transfers []core.TransferView
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, fmt.Sprintf("/api/transfers?account_id=%d", to.ID), nil, &transfers))
	require.Len(t, transfers, 1)
	assert.Equal(t, "Checking", transfers[0].FromAccountName)
}

func TestValidationAndConflicts(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/accounts", "not an object", http.StatusBadRequest},
		{"bad amount", http.MethodPost, "/api/purchases", map[string]any{"user_name": "a", "amount": "abc"}, http.StatusBadRequest},
		{"zero amount", http.MethodPost, "/api/purchases", map[string]any{"user_name": "a", "amount": 0}, http.StatusBadRequest},
		{"bad timestamp", http.MethodPost, "/api/purchases", map[string]any{"user_name": "a", "amount": 1, "timestamp": "yesterday"}, http.StatusBadRequest},
		{"missing override amount", http.MethodPut, "/api/accounts/1/balance", map[string]any{}, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/purchases?limit=-3", nil, http.StatusBadRequest},
		{"unknown period", http.MethodGet, "/api/periods/42/summary", nil, http.StatusNotFound},
		{"no active period", http.MethodGet, "/api/categories", nil, http.StatusNotFound},
		{"empty sync", http.MethodPost, "/api/purchases/sync", []any{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ts.do(t, tt.method, tt.path, tt.body, nil))
		})
	}

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/accounts", map[string]any{"name": "Checking"}, nil))
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/api/accounts", map[string]any{"name": "Checking"}, nil))
}

func TestSyncAndIncome(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/periods/generate", map[string]int{"count": 1}, nil))

	var acc core.Account
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/accounts", map[string]any{"name": "Checking"}, &acc))
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Fuel", "budgeted_amount": 200}, nil))

	var income core.Transaction
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/income", map[string]any{
		"username": "alice", "amount": "1000.00", "target_account_id": acc.ID, "description": "bonus",
	}, &income))
	assert.Equal(t, core.KindIncome, income.Kind)

	var synced struct {
		Synced int `json:"synced"`
	}
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/purchases/sync", map[string]any{
		"purchases": []map[string]any{
			{"user_name": "alice", "amount": "10.00", "account_id": acc.ID, "category": "Fuel", "timestamp": "2025-08-01T08:00:00Z"},
			{"user_name": "alice", "amount": "15.00", "account_id": acc.ID, "category": "Fuel", "timestamp": "2025-08-02T08:00:00Z"},
		},
	}, &synced))
	assert.Equal(t, 2, synced.Synced)

	// A failing row rolls back the whole batch.
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/purchases/sync", []map[string]any{
		{"user_name": "alice", "amount": "5.00", "account_id": acc.ID},
		{"user_name": "alice", "amount": "5.00", "account_id": 999},
	}, nil))

	var accounts []core.Account
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/accounts", nil, &accounts))
	assert.Equal(t, int64(100000-2500), accounts[0].Balance.Cents)
}

func TestAdminPopulateAndPreview(t *testing.T) {
	ts := newTestServer(t)

	var robert core.Account
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/accounts", map[string]any{"name": "Robert - Cheque"}, &robert))

	var preview core.PopulationPreview
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/admin/preview", nil, &preview))
	assert.Equal(t, "August 2025", preview.Period.Name)
	assert.Len(t, preview.Deposits, 1)

	var result core.PopulationResult
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/admin/populate_budget", nil, &result))
	assert.Equal(t, "August 2025", result.PeriodName)
	assert.Equal(t, []string{"Robert - Groceries"}, result.CategoriesCreated)

	periodID := result.PeriodID
	result = core.PopulationResult{}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/admin/populate_budget", map[string]any{"period_id": periodID}, &result))
	assert.True(t, result.DepositsSkipped)
	assert.Equal(t, []string{"Robert - Groceries"}, result.CategoriesReset)

	var accounts []core.Account
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/accounts", nil, &accounts))
	assert.Equal(t, int64(250000), accounts[0].Balance.Cents)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/admin/populate_budget", map[string]any{"period_id": 99}, nil))
}

func TestReconcileReportsDrift(t *testing.T) {
	ts := newTestServer(t)
	var acc core.Account
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/accounts", map[string]any{"name": "Checking", "balance": 10}, &acc))
	require.NoError(t, ts.store.AdjustAccountBalance(context.Background(), acc.ID, core.FromCents(1)))

	var report core.ReconcileReport
	require.Equal(t, http.StatusConflict, ts.do(t, http.MethodGet, "/admin/reconcile", nil, &report))
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, acc.ID, report.Drifts[0].ID)
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	ts := newTestServer(t)
	ts.srv = NewServer(":0", ts.srv.deps, Options{
		RateLimitPerMinute: 2,
		Logger:             applog.New(applog.Config{Output: &bytes.Buffer{}}),
	})
	t.Cleanup(func() { _ = ts.srv.Shutdown(context.Background()) })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/accounts", map[string]any{"name": fmt.Sprintf("A%d", i)}, nil))
	}
	var body errorResponse
	assert.Equal(t, http.StatusTooManyRequests, ts.do(t, http.MethodPost, "/api/accounts", map[string]any{"name": "A3"}, &body))
	assert.Equal(t, "rate limit exceeded", body.Error)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/accounts", nil, nil))
}
