package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"budget/internal/core"
)

const accountColumns = `id, name, account_type, balance_cents, opening_balance_cents, rebased_at, created_at`

func scanAccount(row scanner) (core.Account, error) {
	var (
		a         core.Account
		typ       string
		rebasedAt dbTime
		createdAt dbTime
	)
	err := row.Scan(&a.ID, &a.Name, &typ, &a.Balance.Cents, &a.OpeningBalance.Cents, &rebasedAt, &createdAt)
	if err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	a.RebasedAt = rebasedAt.ptr()
	a.CreatedAt = createdAt.Time
	return a, nil
}

// CreateAccount inserts an account whose opening balance equals its
// starting balance.
func (q *Queries) CreateAccount(ctx context.Context, in core.NewAccount) (core.Account, error) {
	id, err := q.insert(ctx, "create account",
		`INSERT INTO accounts (name, account_type, balance_cents, opening_balance_cents, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		in.Name, string(in.Type), in.Balance.Cents, in.Balance.Cents, q.stamp())
	if err != nil {
		return core.Account{}, err
	}
	return q.GetAccount(ctx, id)
}

func (q *Queries) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	return q.getAccount(ctx, id, false)
}

// LockAccount reads an account for update inside a transaction.
func (q *Queries) LockAccount(ctx context.Context, id int64) (core.Account, error) {
	return q.getAccount(ctx, id, true)
}

func (q *Queries) getAccount(ctx context.Context, id int64, lock bool) (core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	if lock {
		query += q.forUpdate()
	}
	a, err := scanAccount(q.queryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.NewNotFoundError("account", id)
	}
	if err != nil {
		return core.Account{}, mapError("get account", err)
	}
	return a, nil
}

func (q *Queries) GetAccountByName(ctx context.Context, name string) (core.Account, error) {
	a, err := scanAccount(q.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.NewNotFoundError("account", name)
	}
	if err != nil {
		return core.Account{}, mapError("get account by name", err)
	}
	return a, nil
}

// ListAccounts returns every account ordered by name.
func (q *Queries) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := q.query(ctx, "list accounts", `SELECT `+accountColumns+` FROM accounts ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, mapError("scan account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list accounts", err)
	}
	return accounts, nil
}

// AdjustAccountBalance adds delta to the running balance.
func (q *Queries) AdjustAccountBalance(ctx context.Context, id int64, delta core.Money) error {
	res, err := q.exec(ctx, "adjust account balance",
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?`, delta.Cents, id)
	if err != nil {
		return err
	}
	return expectOne(res, core.NewNotFoundError("account", id))
}

// RebaseAccount sets the running balance and moves the opening balance so
// that opening + effects of the surviving log still equals the balance.
func (q *Queries) RebaseAccount(ctx context.Context, id int64, balance core.Money) error {
	effects, err := q.AccountEffects(ctx, id)
	if err != nil {
		return err
	}
	res, err := q.exec(ctx, "rebase account",
		`UPDATE accounts SET balance_cents = ?, opening_balance_cents = ?, rebased_at = ? WHERE id = ?`,
		balance.Cents, balance.Sub(effects).Cents, q.stamp(), id)
	if err != nil {
		return err
	}
	return expectOne(res, core.NewNotFoundError("account", id))
}

// DeleteAccount removes the account. Purchases are detached by the foreign
// key; transfers are removed. It returns the counterpart accounts of the
// removed transfers so callers can rebase them.
func (q *Queries) DeleteAccount(ctx context.Context, id int64) ([]int64, error) {
	rows, err := q.query(ctx, "list transfer counterparts",
		`SELECT DISTINCT CASE WHEN from_account_id = ? THEN to_account_id ELSE from_account_id END
		 FROM transfers WHERE from_account_id = ? OR to_account_id = ?`, id, id, id)
	if err != nil {
		return nil, err
	}
	var counterparts []int64
	for rows.Next() {
		var other int64
		if err := rows.Scan(&other); err != nil {
			rows.Close()
			return nil, mapError("scan counterpart", err)
		}
		counterparts = append(counterparts, other)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, mapError("list transfer counterparts", err)
	}
	rows.Close()

	if _, err := q.exec(ctx, "delete account transfers",
		`DELETE FROM transfers WHERE from_account_id = ? OR to_account_id = ?`, id, id); err != nil {
		return nil, err
	}
	if _, err := q.exec(ctx, "detach account purchases",
		`UPDATE purchases SET account_id = NULL WHERE account_id = ?`, id); err != nil {
		return nil, err
	}
	res, err := q.exec(ctx, "delete account", `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if err := expectOne(res, core.NewNotFoundError("account", id)); err != nil {
		return nil, err
	}
	return counterparts, nil
}

// PruneDefaultAccounts deletes auto-created accounts named like pattern
// (a LIKE pattern) that hold a zero balance and have no history.
func (q *Queries) PruneDefaultAccounts(ctx context.Context, pattern string) ([]string, error) {
	rows, err := q.query(ctx, "find default accounts",
		`SELECT id, name FROM accounts a
		 WHERE name LIKE ? AND balance_cents = 0
		   AND NOT EXISTS (SELECT 1 FROM purchases p WHERE p.account_id = a.id)
		   AND NOT EXISTS (SELECT 1 FROM transfers t WHERE t.from_account_id = a.id OR t.to_account_id = a.id)
		 ORDER BY name`, pattern)
	if err != nil {
		return nil, err
	}
	type victim struct {
		id   int64
		name string
	}
	var victims []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.id, &v.name); err != nil {
			rows.Close()
			return nil, mapError("scan default account", err)
		}
		victims = append(victims, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, mapError("find default accounts", err)
	}
	rows.Close()

	names := make([]string, 0, len(victims))
	for _, v := range victims {
		if _, err := q.exec(ctx, "prune default account", `DELETE FROM accounts WHERE id = ?`, v.id); err != nil {
			return nil, fmt.Errorf("delete %s: %w", v.name, err)
		}
		names = append(names, v.name)
	}
	return names, nil
}
