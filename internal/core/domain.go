package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	KindPurchase Kind = "purchase"
	KindIncome   Kind = "income"
	KindTransfer Kind = "transfer"
)

const (
	AccountBank       AccountType = "bank"
	AccountCredit     AccountType = "credit"
	AccountCash       AccountType = "cash"
	AccountInvestment AccountType = "investment"
)

const (
	maxNameLength        = 255
	maxDescriptionLength = 500
)

type (
	// Kind tags a ledger row. Amounts are always stored as positive magnitudes;
	// the kind decides the direction of the effect.
	Kind string

	AccountType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Account struct {
		ID             int64       `json:"id"`
		Name           string      `json:"name"`
		Type           AccountType `json:"account_type"`
		Balance        Money       `json:"balance"`
		OpeningBalance Money       `json:"opening_balance"`
		RebasedAt      *time.Time  `json:"rebased_at,omitempty"`
		CreatedAt      time.Time   `json:"created_at"`
	}

	Category struct {
		ID             int64     `json:"id"`
		Name           string    `json:"name"`
		Budgeted       Money     `json:"budgeted_amount"`
		Current        Money     `json:"current_balance"`
		OpeningBalance Money     `json:"opening_balance"`
		PeriodID       *int64    `json:"period_id,omitempty"`
		CreatedAt      time.Time `json:"created_at"`
	}

	Period struct {
		ID          int64      `json:"id"`
		Name        string     `json:"period_name"`
		StartDate   Date       `json:"start_date"`
		EndDate     Date       `json:"end_date"`
		Active      bool       `json:"is_active"`
		PopulatedAt *time.Time `json:"populated_at,omitempty"`
		CreatedAt   time.Time  `json:"created_at"`
	}

	Transaction struct {
		ID          int64     `json:"id"`
		Kind        Kind      `json:"kind"`
		User        string    `json:"user"`
		Amount      Money     `json:"amount"`
		AccountID   *int64    `json:"account_id,omitempty"`
		CategoryID  *int64    `json:"category_id,omitempty"`
		Description string    `json:"description"`
		OccurredAt  time.Time `json:"date"`
		CreatedAt   time.Time `json:"created_at"`
	}

	Transfer struct {
		ID            int64     `json:"id"`
		FromAccountID int64     `json:"from_account_id"`
		ToAccountID   int64     `json:"to_account_id"`
		Amount        Money     `json:"amount"`
		Originator    string    `json:"originator"`
		Description   string    `json:"description"`
		OccurredAt    time.Time `json:"date"`
		CreatedAt     time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrEmptyName          = errors.New("empty name")
	ErrNameTooLong        = errors.New("name too long (max 255 characters)")
	ErrEmptyUser          = errors.New("empty user")
	ErrDescriptionTooLong = errors.New("description too long (max 500 characters)")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidKind        = errors.New("invalid transaction kind")
	ErrMissingAccount     = errors.New("account is required")
	ErrSelfTransfer       = errors.New("cannot transfer to the same account")
	ErrZeroDate           = errors.New("date cannot be zero")
)

func (k Kind) Validate() error {
	switch k {
	case KindPurchase, KindIncome, KindTransfer:
		return nil
	default:
		return ErrInvalidKind
	}
}

// Sign is the direction of the kind's effect on the linked account balance.
func (k Kind) Sign() int64 {
	if k == KindIncome {
		return 1
	}
	return -1
}

func (t AccountType) Validate() error {
	switch t {
	case AccountBank, AccountCredit, AccountCash, AccountInvestment:
		return nil
	default:
		return ErrInvalidAccountType
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the UTC calendar day of t. Stored timestamps and period
// bounds are UTC, so t's own location is ignored.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Contains reports whether day falls within [start, end], both inclusive.
func (p Period) Contains(day Date) bool {
	return !day.Before(p.StartDate.Time) && !day.After(p.EndDate.Time)
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Remaining is the unspent part of the budget: budgeted - |current|.
func (c Category) Remaining() Money {
	return c.Budgeted.Sub(c.Current.Abs())
}

// Effect is the signed change this row applied to its account balance.
func (t Transaction) Effect() Money {
	return Money{Cents: t.Kind.Sign() * t.Amount.Cents}
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func validateDescription(desc string) error {
	if len(desc) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}
