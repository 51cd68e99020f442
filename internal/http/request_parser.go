package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"budget/internal/core"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidID    = errors.New("must be a positive integer")
	errInvalidLimit = errors.New("must be a non-negative integer")
	errInvalidTime  = errors.New("use RFC 3339 or YYYY-MM-DD")
	errEmptyBatch   = errors.New("batch is empty")
)

// decodeJSON reads one JSON value from the body into dst. An empty body
// leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return core.NewValidationError("body", fmt.Errorf("malformed JSON: %w", err))
	}
	return nil
}

// parseWhen accepts an RFC 3339 timestamp or a bare date (midnight UTC).
// Empty means now.
func parseWhen(field, raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if d, err := core.ParseDate(raw); err == nil {
		return d.Time, nil
	}
	return time.Time{}, core.NewValidationError(field, errInvalidTime)
}

type accountRequest struct {
	Name    string           `json:"name"`
	Type    core.AccountType `json:"account_type"`
	Balance core.Money       `json:"balance"`
}

func (a accountRequest) toInput() core.NewAccount {
	return core.NewAccount{
		Name:    sanitizeInput(a.Name),
		Type:    a.Type,
		Balance: a.Balance,
	}
}

// amountRequest is the body of balance and budget overrides.
type amountRequest struct {
	Amount *core.Money `json:"amount"`
}

func (a amountRequest) value() (core.Money, error) {
	if a.Amount == nil {
		return core.Money{}, core.NewValidationError("amount", core.ErrInvalidAmount)
	}
	return *a.Amount, nil
}

type categoryRequest struct {
	Name     string     `json:"name"`
	PeriodID *int64     `json:"period_id"`
	Budgeted core.Money `json:"budgeted_amount"`
}

func (c categoryRequest) toInput() core.NewCategory {
	return core.NewCategory{
		Name:     sanitizeInput(c.Name),
		PeriodID: c.PeriodID,
		Budgeted: c.Budgeted,
	}
}

type purchaseRequest struct {
	UserName    string     `json:"user_name"`
	Amount      core.Money `json:"amount"`
	AccountID   *int64     `json:"account_id"`
	CategoryID  *int64     `json:"category_id"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Timestamp   string     `json:"timestamp"`
}

func (p purchaseRequest) toInput(now time.Time) (core.NewPurchase, error) {
	when, err := parseWhen("timestamp", p.Timestamp, now)
	if err != nil {
		return core.NewPurchase{}, err
	}
	return core.NewPurchase{
		User:         sanitizeInput(p.UserName),
		Amount:       p.Amount,
		AccountID:    p.AccountID,
		CategoryID:   p.CategoryID,
		CategoryName: sanitizeInput(p.Category),
		Description:  sanitizeInput(p.Description),
		OccurredAt:   when,
	}, nil
}

// syncRequest accepts either a bare array or {"purchases": [...]}.
type syncRequest []purchaseRequest

func (s *syncRequest) UnmarshalJSON(data []byte) error {
	var list []purchaseRequest
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var wrapped struct {
		Purchases []purchaseRequest `json:"purchases"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*s = wrapped.Purchases
	return nil
}

func (s syncRequest) toInputs(now time.Time) ([]core.NewPurchase, error) {
	if len(s) == 0 {
		return nil, core.NewValidationError("purchases", errEmptyBatch)
	}
	out := make([]core.NewPurchase, 0, len(s))
	for i, p := range s {
		in, err := p.toInput(now)
		if err != nil {
			return nil, fmt.Errorf("purchase %d: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}

type incomeRequest struct {
	Username        string     `json:"username"`
	Amount          core.Money `json:"amount"`
	TargetAccountID int64      `json:"target_account_id"`
	Description     string     `json:"description"`
	IncomeDate      string     `json:"income_date"`
}

func (i incomeRequest) toInput(now time.Time) (core.NewIncome, error) {
	when, err := parseWhen("income_date", i.IncomeDate, now)
	if err != nil {
		return core.NewIncome{}, err
	}
	return core.NewIncome{
		User:        sanitizeInput(i.Username),
		Amount:      i.Amount,
		AccountID:   i.TargetAccountID,
		Description: sanitizeInput(i.Description),
		OccurredAt:  when,
	}, nil
}

type transferRequest struct {
	FromAccountID int64      `json:"from_account_id"`
	ToAccountID   int64      `json:"to_account_id"`
	Amount        core.Money `json:"amount"`
	Originator    string     `json:"originator"`
	Description   string     `json:"description"`
	TransferDate  string     `json:"transfer_date"`
}

func (t transferRequest) toInput(now time.Time) (core.NewTransfer, error) {
	when, err := parseWhen("transfer_date", t.TransferDate, now)
	if err != nil {
		return core.NewTransfer{}, err
	}
	return core.NewTransfer{
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        t.Amount,
		Originator:    sanitizeInput(t.Originator),
		Description:   sanitizeInput(t.Description),
		OccurredAt:    when,
	}, nil
}

type generateRequest struct {
	Count int `json:"count"`
}

type populateRequest struct {
	PeriodID *int64 `json:"period_id"`
}
