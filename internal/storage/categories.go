package storage

import (
	"context"
	"database/sql"
	"errors"

	"budget/internal/core"
)

const categoryColumns = `id, name, budgeted_amount_cents, current_balance_cents, opening_balance_cents, period_id, created_at`

func scanCategory(row scanner) (core.Category, error) {
	var (
		c         core.Category
		periodID  sql.NullInt64
		createdAt dbTime
	)
	err := row.Scan(&c.ID, &c.Name, &c.Budgeted.Cents, &c.Current.Cents, &c.OpeningBalance.Cents, &periodID, &createdAt)
	if err != nil {
		return core.Category{}, err
	}
	c.PeriodID = idPtr(periodID)
	c.CreatedAt = createdAt.Time
	return c, nil
}

// CreateCategory inserts a category. current is both the running and the
// opening balance.
func (q *Queries) CreateCategory(ctx context.Context, name string, periodID *int64, budgeted, current core.Money) (core.Category, error) {
	id, err := q.insert(ctx, "create category",
		`INSERT INTO budget_categories (name, budgeted_amount_cents, current_balance_cents, opening_balance_cents, period_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		name, budgeted.Cents, current.Cents, current.Cents, nullableID(periodID), q.stamp())
	if err != nil {
		return core.Category{}, err
	}
	return q.GetCategory(ctx, id)
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	return q.getCategory(ctx, id, false)
}

// LockCategory reads a category for update inside a transaction.
func (q *Queries) LockCategory(ctx context.Context, id int64) (core.Category, error) {
	return q.getCategory(ctx, id, true)
}

func (q *Queries) getCategory(ctx context.Context, id int64, lock bool) (core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM budget_categories WHERE id = ?`
	if lock {
		query += q.forUpdate()
	}
	c, err := scanCategory(q.queryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.NewNotFoundError("category", id)
	}
	if err != nil {
		return core.Category{}, mapError("get category", err)
	}
	return c, nil
}

// GetCategoryByName looks a category up inside one period.
func (q *Queries) GetCategoryByName(ctx context.Context, name string, periodID int64) (core.Category, error) {
	c, err := scanCategory(q.queryRow(ctx,
		`SELECT `+categoryColumns+` FROM budget_categories WHERE name = ? AND period_id = ?`, name, periodID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.NewNotFoundError("category", name)
	}
	if err != nil {
		return core.Category{}, mapError("get category by name", err)
	}
	return c, nil
}

// ListCategoriesByPeriod returns the period's categories ordered by name.
func (q *Queries) ListCategoriesByPeriod(ctx context.Context, periodID int64) ([]core.Category, error) {
	rows, err := q.query(ctx, "list categories",
		`SELECT `+categoryColumns+` FROM budget_categories WHERE period_id = ? ORDER BY name, id`, periodID)
	if err != nil {
		return nil, err
	}
	return collectCategories(rows)
}

// ListAllCategories returns every category including legacy rows without a
// period.
func (q *Queries) ListAllCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := q.query(ctx, "list all categories",
		`SELECT `+categoryColumns+` FROM budget_categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectCategories(rows)
}

func collectCategories(rows *sql.Rows) ([]core.Category, error) {
	defer rows.Close()
	var categories []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, mapError("scan category", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list categories", err)
	}
	return categories, nil
}

// AdjustCategoryBalance adds delta to the running balance.
func (q *Queries) AdjustCategoryBalance(ctx context.Context, id int64, delta core.Money) error {
	res, err := q.exec(ctx, "adjust category balance",
		`UPDATE budget_categories SET current_balance_cents = current_balance_cents + ? WHERE id = ?`, delta.Cents, id)
	if err != nil {
		return err
	}
	return expectOne(res, core.NewNotFoundError("category", id))
}

func (q *Queries) SetBudgeted(ctx context.Context, id int64, amount core.Money) error {
	res, err := q.exec(ctx, "set budgeted amount",
		`UPDATE budget_categories SET budgeted_amount_cents = ? WHERE id = ?`, amount.Cents, id)
	if err != nil {
		return err
	}
	return expectOne(res, core.NewNotFoundError("category", id))
}

// ResetCategory sets both amounts and rebases the opening balance against
// the purchases already charged to the category.
func (q *Queries) ResetCategory(ctx context.Context, id int64, budgeted, current core.Money) error {
	charged, err := q.CategoryCharges(ctx, id)
	if err != nil {
		return err
	}
	res, err := q.exec(ctx, "reset category",
		`UPDATE budget_categories
		 SET budgeted_amount_cents = ?, current_balance_cents = ?, opening_balance_cents = ?
		 WHERE id = ?`,
		budgeted.Cents, current.Cents, current.Add(charged).Cents, id)
	if err != nil {
		return err
	}
	return expectOne(res, core.NewNotFoundError("category", id))
}

// AssignOrphanCategories moves categories without a period into periodID.
// Rows whose name already exists in that period are left alone.
func (q *Queries) AssignOrphanCategories(ctx context.Context, periodID int64) (int64, error) {
	res, err := q.exec(ctx, "assign orphan categories",
		`UPDATE budget_categories SET period_id = ?
		 WHERE period_id IS NULL
		   AND name NOT IN (SELECT name FROM budget_categories WHERE period_id = ?)`,
		periodID, periodID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError("assign orphan categories", err)
	}
	return n, nil
}
