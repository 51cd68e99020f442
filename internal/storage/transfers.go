package storage

import (
	"context"
	"strings"

	"budget/internal/core"
)

// InsertTransfer stores a transfer row. Balances are the caller's concern.
func (q *Queries) InsertTransfer(ctx context.Context, in core.NewTransfer) (core.Transfer, error) {
	occurred := timestamp(in.OccurredAt)
	created := q.stamp()
	id, err := q.insert(ctx, "insert transfer",
		`INSERT INTO transfers (from_account_id, to_account_id, amount_cents, description, originator_user, transfer_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.FromAccountID, in.ToAccountID, in.Amount.Cents, in.Description, in.Originator, occurred, created)
	if err != nil {
		return core.Transfer{}, err
	}
	return core.Transfer{
		ID:            id,
		FromAccountID: in.FromAccountID,
		ToAccountID:   in.ToAccountID,
		Amount:        in.Amount,
		Originator:    in.Originator,
		Description:   in.Description,
		OccurredAt:    occurred,
		CreatedAt:     created,
	}, nil
}

// ListTransfers returns transfers joined with both account names, newest
// first.
func (q *Queries) ListTransfers(ctx context.Context, filter core.TransferFilter, period *core.Period) ([]core.TransferView, error) {
	var (
		where []string
		args  []any
	)
	if period != nil {
		where = append(where, "t.transfer_date >= ?", "t.transfer_date < ?")
		args = append(args, period.StartDate.Time, period.EndDate.AddDays(1).Time)
	}
	if filter.AccountID != nil {
		where = append(where, "(t.from_account_id = ? OR t.to_account_id = ?)")
		args = append(args, *filter.AccountID, *filter.AccountID)
	}

	query := `SELECT t.id, t.from_account_id, t.to_account_id, t.amount_cents, t.originator_user,
			t.description, t.transfer_date, t.created_at, f.name, d.name
		FROM transfers t
		JOIN accounts f ON f.id = t.from_account_id
		JOIN accounts d ON d.id = t.to_account_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.transfer_date DESC, t.id DESC LIMIT ?"
	args = append(args, core.NormalizeLimit(filter.Limit))

	rows, err := q.query(ctx, "list transfers", query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []core.TransferView
	for rows.Next() {
		var (
			v                   core.TransferView
			occurred, createdAt dbTime
		)
		if err := rows.Scan(&v.ID, &v.FromAccountID, &v.ToAccountID, &v.Amount.Cents, &v.Originator,
			&v.Description, &occurred, &createdAt, &v.FromAccountName, &v.ToAccountName); err != nil {
			return nil, mapError("scan transfer", err)
		}
		v.OccurredAt = occurred.Time
		v.CreatedAt = createdAt.Time
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list transfers", err)
	}
	return views, nil
}
