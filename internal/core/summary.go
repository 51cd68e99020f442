package core

import "time"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// PeriodSummary is a compact overview of one period.
type PeriodSummary struct {
	Period     Period           `json:"period"`
	Budgeted   Money            `json:"budgeted"`
	Spent      Money            `json:"spent"`
	Remaining  Money            `json:"remaining"`
	Income     Money            `json:"income"`
	Purchases  int              `json:"purchases"`
	ByCategory []CategoryAmount `json:"by_category"`
}

// CategoryView is a category with its derived remaining budget.
type CategoryView struct {
	Category
	Remaining Money `json:"remaining"`
}

// TransactionView is a ledger row joined with display names.
type TransactionView struct {
	Transaction
	AccountName  string `json:"account_name,omitempty"`
	CategoryName string `json:"category,omitempty"`
}

// TransferView is a transfer joined with both account names.
type TransferView struct {
	Transfer
	FromAccountName string `json:"from_account"`
	ToAccountName   string `json:"to_account"`
}

// Drift is a running balance that disagrees with the sum of the log.
type Drift struct {
	Entity   string `json:"entity"`
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Stored   Money  `json:"stored"`
	Expected Money  `json:"expected"`
}

func (d Drift) Delta() Money {
	return d.Stored.Sub(d.Expected)
}

// ReconcileReport is the outcome of comparing stored balances to the log.
type ReconcileReport struct {
	CheckedAt  time.Time `json:"checked_at"`
	Accounts   int       `json:"accounts_checked"`
	Categories int       `json:"categories_checked"`
	Drifts     []Drift   `json:"drifts"`
}

func (r ReconcileReport) OK() bool {
	return len(r.Drifts) == 0
}

// PopulationResult describes what PopulatePeriodFromTemplate changed.
type PopulationResult struct {
	PeriodID          int64     `json:"period_id"`
	PeriodName        string    `json:"period_name"`
	CategoriesCreated []string  `json:"categories_created"`
	CategoriesReset   []string  `json:"categories_reset"`
	Deposits          []Deposit `json:"deposits"`
	MissingAccounts   []string  `json:"missing_accounts"`
	TotalBudget       Money     `json:"total_budget"`
	TotalIncome       Money     `json:"total_income"`

	// DepositsSkipped is set when the period had already been populated,
	// so salaries were not deposited a second time.
	DepositsSkipped bool `json:"deposits_skipped"`
}

// Deposit is a salary credited during population.
type Deposit struct {
	Owner         string `json:"owner"`
	AccountID     int64  `json:"account_id"`
	AccountName   string `json:"account_name"`
	Amount        Money  `json:"amount"`
	TransactionID int64  `json:"transaction_id,omitempty"`
}

// PopulationPreview is the read-only plan for a period population.
type PopulationPreview struct {
	Period          PeriodSpec       `json:"period"`
	PeriodExists    bool             `json:"period_exists"`
	Categories      []CategoryAmount `json:"categories"`
	Deposits        []Deposit        `json:"deposits"`
	MissingAccounts []string         `json:"missing_accounts"`
	TotalBudget     Money            `json:"total_budget"`
	TotalIncome     Money            `json:"total_income"`
}
