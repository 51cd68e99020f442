package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"budget/internal/core"
)

const transactionColumns = `p.id, p.kind, p.user_name, p.amount_cents, p.account_id, p.budget_category_id, p.description, p.occurred_at, p.created_at`

func scanTransaction(row scanner, extra ...any) (core.Transaction, error) {
	var (
		t          core.Transaction
		kind       string
		accountID  sql.NullInt64
		categoryID sql.NullInt64
		occurredAt dbTime
		createdAt  dbTime
	)
	dest := append([]any{&t.ID, &kind, &t.User, &t.Amount.Cents, &accountID, &categoryID, &t.Description, &occurredAt, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)
	t.AccountID = idPtr(accountID)
	t.CategoryID = idPtr(categoryID)
	t.OccurredAt = occurredAt.Time
	t.CreatedAt = createdAt.Time
	return t, nil
}

// InsertTransaction stores a purchase or income row. Balances are the
// caller's concern.
func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	id, err := q.insert(ctx, "insert "+string(t.Kind),
		`INSERT INTO purchases (kind, user_name, amount_cents, account_id, budget_category_id, description, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Kind), t.User, t.Amount.Cents, nullableID(t.AccountID), nullableID(t.CategoryID),
		t.Description, timestamp(t.OccurredAt), q.stamp())
	if err != nil {
		return core.Transaction{}, err
	}
	return q.GetTransaction(ctx, id)
}

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(q.queryRow(ctx, `SELECT `+transactionColumns+` FROM purchases p WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NewNotFoundError("purchase", id)
	}
	if err != nil {
		return core.Transaction{}, mapError("get purchase", err)
	}
	return t, nil
}

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := q.exec(ctx, "delete purchase", `DELETE FROM purchases WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res, core.NewNotFoundError("purchase", id))
}

// ListTransactions returns purchase and income rows joined with account
// and category names, newest first. A period bound keeps rows with
// start <= occurred_at < end + 1 day.
func (q *Queries) ListTransactions(ctx context.Context, filter core.PurchaseFilter, period *core.Period) ([]core.TransactionView, error) {
	var (
		where []string
		args  []any
	)
	if period != nil {
		where = append(where, "p.occurred_at >= ?", "p.occurred_at < ?")
		args = append(args, period.StartDate.Time, period.EndDate.AddDays(1).Time)
	}
	if user := strings.TrimSpace(filter.User); user != "" {
		where = append(where, "p.user_name = ?")
		args = append(args, user)
	}

	query := `SELECT ` + transactionColumns + `, COALESCE(a.name, ''), COALESCE(c.name, '')
		FROM purchases p
		LEFT JOIN accounts a ON a.id = p.account_id
		LEFT JOIN budget_categories c ON c.id = p.budget_category_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.occurred_at DESC, p.id DESC LIMIT ?"
	args = append(args, core.NormalizeLimit(filter.Limit))

	rows, err := q.query(ctx, "list purchases", query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []core.TransactionView
	for rows.Next() {
		var v core.TransactionView
		t, err := scanTransaction(rows, &v.AccountName, &v.CategoryName)
		if err != nil {
			return nil, mapError("scan purchase", err)
		}
		v.Transaction = t
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list purchases", err)
	}
	return views, nil
}
