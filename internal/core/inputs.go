package core

import (
	"strings"
	"time"
)

// Inputs accepted by the ledger operations. Validate reports the first
// problem found as a *ValidationError.
type (
	NewAccount struct {
		Name    string      `json:"name"`
		Type    AccountType `json:"account_type"`
		Balance Money       `json:"balance"`
	}

	NewCategory struct {
		Name     string `json:"name"`
		PeriodID *int64 `json:"period_id,omitempty"`
		Budgeted Money  `json:"budgeted_amount"`
	}

	NewPurchase struct {
		User        string    `json:"user_name"`
		Amount      Money     `json:"amount"`
		AccountID   *int64    `json:"account_id,omitempty"`
		CategoryID  *int64    `json:"category_id,omitempty"`
		Description string    `json:"description"`
		OccurredAt  time.Time `json:"timestamp"`

		// CategoryName resolves the category inside the active period when
		// CategoryID is not set. Used by batch sync from offline clients.
		CategoryName string `json:"category,omitempty"`
	}

	NewIncome struct {
		User        string    `json:"username"`
		Amount      Money     `json:"amount"`
		AccountID   int64     `json:"target_account_id"`
		Description string    `json:"description"`
		OccurredAt  time.Time `json:"income_date"`

		// RawDescription stores Description verbatim instead of the
		// "Income: ... (received by ...)" form.
		RawDescription bool `json:"-"`
	}

	NewTransfer struct {
		FromAccountID int64     `json:"from_account_id"`
		ToAccountID   int64     `json:"to_account_id"`
		Amount        Money     `json:"amount"`
		Originator    string    `json:"originator"`
		Description   string    `json:"description"`
		OccurredAt    time.Time `json:"transfer_date"`
	}

	PurchaseFilter struct {
		PeriodID *int64
		User     string
		Limit    int
	}

	TransferFilter struct {
		PeriodID  *int64
		AccountID *int64
		Limit     int
	}
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

func (a NewAccount) Validate() error {
	if err := validateName(a.Name); err != nil {
		return NewValidationError("name", err)
	}
	if err := a.Type.Validate(); err != nil {
		return NewValidationError("account_type", err)
	}
	return nil
}

func (c NewCategory) Validate() error {
	if err := validateName(c.Name); err != nil {
		return NewValidationError("name", err)
	}
	if c.Budgeted.IsNegative() {
		return NewValidationError("budgeted_amount", ErrNegativeAmount)
	}
	return nil
}

func (p NewPurchase) Validate() error {
	if strings.TrimSpace(p.User) == "" {
		return NewValidationError("user_name", ErrEmptyUser)
	}
	if err := p.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	if err := validateDescription(p.Description); err != nil {
		return NewValidationError("description", err)
	}
	if p.OccurredAt.IsZero() {
		return NewValidationError("timestamp", ErrZeroDate)
	}
	return nil
}

func (i NewIncome) Validate() error {
	if strings.TrimSpace(i.User) == "" {
		return NewValidationError("username", ErrEmptyUser)
	}
	if err := i.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	if i.AccountID <= 0 {
		return NewValidationError("target_account_id", ErrMissingAccount)
	}
	if err := validateDescription(i.Description); err != nil {
		return NewValidationError("description", err)
	}
	if i.OccurredAt.IsZero() {
		return NewValidationError("income_date", ErrZeroDate)
	}
	return nil
}

func (t NewTransfer) Validate() error {
	if t.FromAccountID <= 0 {
		return NewValidationError("from_account_id", ErrMissingAccount)
	}
	if t.ToAccountID <= 0 {
		return NewValidationError("to_account_id", ErrMissingAccount)
	}
	if t.FromAccountID == t.ToAccountID {
		return NewValidationError("to_account_id", ErrSelfTransfer)
	}
	if err := t.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	if strings.TrimSpace(t.Originator) == "" {
		return NewValidationError("originator", ErrEmptyUser)
	}
	if err := validateDescription(t.Description); err != nil {
		return NewValidationError("description", err)
	}
	if t.OccurredAt.IsZero() {
		return NewValidationError("transfer_date", ErrZeroDate)
	}
	return nil
}

// IncomeDescription is the stored description of an income row.
func (i NewIncome) IncomeDescription() string {
	if i.RawDescription {
		return i.Description
	}
	return "Income: " + i.Description + " (received by " + i.User + ")"
}

// NormalizeLimit clamps a requested list size to [1, MaxListLimit].
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
