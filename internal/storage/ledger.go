package storage

import (
	"context"
	"strings"

	"budget/internal/core"
)

// accountEffectsSQL is the signed sum of every surviving row that touches
// account a: income minus purchases plus transfers in minus transfers out.
const accountEffectsSQL = `CAST(
	COALESCE((SELECT SUM(CASE WHEN p.kind = 'income' THEN p.amount_cents ELSE -p.amount_cents END)
		FROM purchases p WHERE p.account_id = a.id), 0)
	+ COALESCE((SELECT SUM(t.amount_cents) FROM transfers t WHERE t.to_account_id = a.id), 0)
	- COALESCE((SELECT SUM(t.amount_cents) FROM transfers t WHERE t.from_account_id = a.id), 0)
	AS BIGINT)`

const categoryChargesSQL = `CAST(
	COALESCE((SELECT SUM(p.amount_cents) FROM purchases p
		WHERE p.budget_category_id = c.id AND p.kind = 'purchase'), 0)
	AS BIGINT)`

// AccountLedger pairs a stored running balance with what the log implies.
type AccountLedger struct {
	ID      int64
	Name    string
	Balance core.Money
	Opening core.Money
	Effects core.Money
}

func (l AccountLedger) Expected() core.Money {
	return l.Opening.Add(l.Effects)
}

// CategoryLedger pairs a stored category balance with its charged purchases.
type CategoryLedger struct {
	ID      int64
	Name    string
	Current core.Money
	Opening core.Money
	Charged core.Money
}

func (l CategoryLedger) Expected() core.Money {
	return l.Opening.Sub(l.Charged)
}

// AccountEffects is the net effect of the log on one account.
func (q *Queries) AccountEffects(ctx context.Context, id int64) (core.Money, error) {
	var cents int64
	if err := q.queryRow(ctx, `SELECT `+accountEffectsSQL+` FROM accounts a WHERE a.id = ?`, id).Scan(&cents); err != nil {
		return core.Money{}, notFoundOr(err, "account", id, "sum account effects")
	}
	return core.FromCents(cents), nil
}

// CategoryCharges is the total of purchases charged to one category.
func (q *Queries) CategoryCharges(ctx context.Context, id int64) (core.Money, error) {
	var cents int64
	if err := q.queryRow(ctx, `SELECT `+categoryChargesSQL+` FROM budget_categories c WHERE c.id = ?`, id).Scan(&cents); err != nil {
		return core.Money{}, notFoundOr(err, "category", id, "sum category charges")
	}
	return core.FromCents(cents), nil
}

// AccountLedgers reads stored and derived balances for the given accounts,
// or for every account when ids is empty.
func (q *Queries) AccountLedgers(ctx context.Context, ids []int64) ([]AccountLedger, error) {
	query := `SELECT a.id, a.name, a.balance_cents, a.opening_balance_cents, ` + accountEffectsSQL + ` FROM accounts a`
	var args []any
	if len(ids) > 0 {
		query += " WHERE a.id IN (" + placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += " ORDER BY a.id"

	rows, err := q.query(ctx, "read account ledgers", query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccountLedger
	for rows.Next() {
		var l AccountLedger
		if err := rows.Scan(&l.ID, &l.Name, &l.Balance.Cents, &l.Opening.Cents, &l.Effects.Cents); err != nil {
			return nil, mapError("scan account ledger", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("read account ledgers", err)
	}
	return out, nil
}

// CategoryLedgers reads stored and derived balances for every category.
func (q *Queries) CategoryLedgers(ctx context.Context) ([]CategoryLedger, error) {
	rows, err := q.query(ctx, "read category ledgers",
		`SELECT c.id, c.name, c.current_balance_cents, c.opening_balance_cents, `+categoryChargesSQL+`
		 FROM budget_categories c ORDER BY c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategoryLedger
	for rows.Next() {
		var l CategoryLedger
		if err := rows.Scan(&l.ID, &l.Name, &l.Current.Cents, &l.Opening.Cents, &l.Charged.Cents); err != nil {
			return nil, mapError("scan category ledger", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("read category ledgers", err)
	}
	return out, nil
}

// PeriodTotals aggregates spending and income inside a period.
type PeriodTotals struct {
	Spent      core.Money
	Income     core.Money
	Purchases  int
	ByCategory []core.CategoryAmount
}

// PeriodTotals sums purchase and income rows whose date falls in the period.
func (q *Queries) PeriodTotals(ctx context.Context, period core.Period) (PeriodTotals, error) {
	from, to := period.StartDate.Time, period.EndDate.AddDays(1).Time

	var totals PeriodTotals
	err := q.queryRow(ctx,
		`SELECT
			CAST(COALESCE(SUM(CASE WHEN kind = 'purchase' THEN amount_cents ELSE 0 END), 0) AS BIGINT),
			CAST(COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents ELSE 0 END), 0) AS BIGINT),
			CAST(COALESCE(SUM(CASE WHEN kind = 'purchase' THEN 1 ELSE 0 END), 0) AS BIGINT)
		 FROM purchases WHERE occurred_at >= ? AND occurred_at < ?`, from, to).
		Scan(&totals.Spent.Cents, &totals.Income.Cents, &totals.Purchases)
	if err != nil {
		return PeriodTotals{}, mapError("sum period totals", err)
	}

	rows, err := q.query(ctx, "sum spending by category",
		`SELECT COALESCE(c.name, ''), CAST(SUM(p.amount_cents) AS BIGINT) AS total
		 FROM purchases p
		 LEFT JOIN budget_categories c ON c.id = p.budget_category_id
		 WHERE p.kind = 'purchase' AND p.occurred_at >= ? AND p.occurred_at < ?
		 GROUP BY COALESCE(c.name, '')
		 ORDER BY total DESC, 1`, from, to)
	if err != nil {
		return PeriodTotals{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount.Cents); err != nil {
			return PeriodTotals{}, mapError("scan category total", err)
		}
		if ca.Name == "" {
			ca.Name = "Uncategorised"
		}
		totals.ByCategory = append(totals.ByCategory, ca)
	}
	if err := rows.Err(); err != nil {
		return PeriodTotals{}, mapError("sum spending by category", err)
	}
	return totals, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func notFoundOr(err error, entity string, key any, op string) error {
	if isNoRows(err) {
		return core.NewNotFoundError(entity, key)
	}
	return mapError(op, err)
}
