package storage

import (
	"context"
	"database/sql"
	"errors"

	"budget/internal/core"
)

const periodColumns = `id, period_name, start_date, end_date, is_active, populated_at, created_at`

func scanPeriod(row scanner) (core.Period, error) {
	var (
		p           core.Period
		start, end  dbTime
		populatedAt dbTime
		createdAt   dbTime
	)
	if err := row.Scan(&p.ID, &p.Name, &start, &end, &p.Active, &populatedAt, &createdAt); err != nil {
		return core.Period{}, err
	}
	p.StartDate = core.DateOf(start.Time)
	p.EndDate = core.DateOf(end.Time)
	p.PopulatedAt = populatedAt.ptr()
	p.CreatedAt = createdAt.Time
	return p, nil
}

// InsertPeriod stores an inactive period. Activation goes through
// ActivatePeriod so the single-active rule holds.
func (q *Queries) InsertPeriod(ctx context.Context, spec core.PeriodSpec) (core.Period, error) {
	id, err := q.insert(ctx, "insert period",
		`INSERT INTO budget_periods (period_name, start_date, end_date, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		spec.Name, spec.StartDate.String(), spec.EndDate.String(), false, q.stamp())
	if err != nil {
		return core.Period{}, err
	}
	return q.GetPeriod(ctx, id)
}

func (q *Queries) GetPeriod(ctx context.Context, id int64) (core.Period, error) {
	p, err := scanPeriod(q.queryRow(ctx, `SELECT `+periodColumns+` FROM budget_periods WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, core.NewNotFoundError("period", id)
	}
	if err != nil {
		return core.Period{}, mapError("get period", err)
	}
	return p, nil
}

func (q *Queries) GetPeriodByName(ctx context.Context, name string) (core.Period, error) {
	p, err := scanPeriod(q.queryRow(ctx, `SELECT `+periodColumns+` FROM budget_periods WHERE period_name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, core.NewNotFoundError("period", name)
	}
	if err != nil {
		return core.Period{}, mapError("get period by name", err)
	}
	return p, nil
}

// ActivePeriod returns the single active period.
func (q *Queries) ActivePeriod(ctx context.Context) (core.Period, error) {
	p, err := scanPeriod(q.queryRow(ctx, `SELECT `+periodColumns+` FROM budget_periods WHERE is_active = ?`, true))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, core.NewNotFoundError("period", "active")
	}
	if err != nil {
		return core.Period{}, mapError("get active period", err)
	}
	return p, nil
}

// PeriodForDate returns the period whose inclusive range contains day.
func (q *Queries) PeriodForDate(ctx context.Context, day core.Date) (core.Period, error) {
	p, err := scanPeriod(q.queryRow(ctx,
		`SELECT `+periodColumns+` FROM budget_periods
		 WHERE start_date <= ? AND end_date >= ?
		 ORDER BY start_date DESC LIMIT 1`, day.String(), day.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, core.NewNotFoundError("period", day.String())
	}
	if err != nil {
		return core.Period{}, mapError("get period for date", err)
	}
	return p, nil
}

// ListPeriods returns all periods ordered by start date.
func (q *Queries) ListPeriods(ctx context.Context) ([]core.Period, error) {
	rows, err := q.query(ctx, "list periods", `SELECT `+periodColumns+` FROM budget_periods ORDER BY start_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []core.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, mapError("scan period", err)
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list periods", err)
	}
	return periods, nil
}

// ActivatePeriod deactivates every period, then activates id. Callers run
// it inside a transaction; the partial unique index rejects a second
// active row if the steps are ever split.
func (q *Queries) ActivatePeriod(ctx context.Context, id int64) error {
	if _, err := q.GetPeriod(ctx, id); err != nil {
		return err
	}
	if _, err := q.exec(ctx, "deactivate periods",
		`UPDATE budget_periods SET is_active = ? WHERE is_active = ?`, false, true); err != nil {
		return err
	}
	res, err := q.exec(ctx, "activate period",
		`UPDATE budget_periods SET is_active = ? WHERE id = ?`, true, id)
	if err != nil {
		return err
	}
	return expectOne(res, core.NewNotFoundError("period", id))
}

// MarkPopulated records that the period was filled from the template.
func (q *Queries) MarkPopulated(ctx context.Context, id int64) error {
	res, err := q.exec(ctx, "mark period populated",
		`UPDATE budget_periods SET populated_at = ? WHERE id = ?`, q.stamp(), id)
	if err != nil {
		return err
	}
	return expectOne(res, core.NewNotFoundError("period", id))
}
