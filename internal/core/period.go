package core

import (
	"errors"
	"fmt"
	"time"
)

// DefaultCutoverDay is the salary day that opens a budget period.
const DefaultCutoverDay = 25

// MaxGeneratedPeriods bounds a single GeneratePeriods batch.
const MaxGeneratedPeriods = 120

var (
	ErrInvalidCutoverDay = errors.New("cutover day must be between 1 and 28")
	ErrInvalidCount      = errors.New("period count must be between 1 and 120")
)

// PeriodRule describes month-long periods that start on CutoverDay and end
// the day before the next month's cutover. Days above 28 are rejected so
// every month has the boundary day.
type PeriodRule struct {
	CutoverDay int
}

// PeriodSpec is a period that has not been persisted yet.
type PeriodSpec struct {
	Name      string `json:"period_name"`
	StartDate Date   `json:"start_date"`
	EndDate   Date   `json:"end_date"`
	Active    bool   `json:"is_active"`
}

func DefaultPeriodRule() PeriodRule {
	return PeriodRule{CutoverDay: DefaultCutoverDay}
}

func (r PeriodRule) Validate() error {
	if r.CutoverDay < 1 || r.CutoverDay > 28 {
		return NewValidationError("cutover_day", ErrInvalidCutoverDay)
	}
	return nil
}

// StartFor returns the first day of the period containing day: this month's
// cutover when day has reached it, otherwise last month's.
func (r PeriodRule) StartFor(day time.Time) Date {
	d := DateOf(day)
	y, m, dd := d.Date()
	if dd >= r.CutoverDay {
		return NewDate(y, int(m), r.CutoverDay)
	}
	return Date{Time: time.Date(y, m-1, r.CutoverDay, 0, 0, 0, 0, time.UTC)}
}

// Spec builds the period that starts at start, offset by n periods.
func (r PeriodRule) Spec(start Date, n int) PeriodSpec {
	y, m, _ := start.Date()
	s := time.Date(y, m+time.Month(n), r.CutoverDay, 0, 0, 0, 0, time.UTC)
	// Day 0 normalises to the last day of the previous month.
	e := time.Date(y, m+time.Month(n)+1, r.CutoverDay-1, 0, 0, 0, 0, time.UTC)
	return PeriodSpec{
		Name:      PeriodName(Date{Time: e}),
		StartDate: Date{Time: s},
		EndDate:   Date{Time: e},
	}
}

// SpecFor returns the period containing day.
func (r PeriodRule) SpecFor(day time.Time) PeriodSpec {
	spec := r.Spec(r.StartFor(day), 0)
	spec.Active = true
	return spec
}

// PeriodName names a period after the month it budgets for, its end month.
func PeriodName(end Date) string {
	return end.Format("January 2006")
}

// GeneratePeriods returns count consecutive periods starting with the one
// containing today. Only that first period is marked active.
func GeneratePeriods(count int, rule PeriodRule, today time.Time) ([]PeriodSpec, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if count < 1 || count > MaxGeneratedPeriods {
		return nil, NewValidationError("count", ErrInvalidCount)
	}

	start := rule.StartFor(today)
	day := DateOf(today)
	specs := make([]PeriodSpec, 0, count)
	for i := 0; i < count; i++ {
		spec := rule.Spec(start, i)
		spec.Active = !day.Before(spec.StartDate.Time) && !day.After(spec.EndDate.Time)
		specs = append(specs, spec)
	}
	return specs, nil
}

func (s PeriodSpec) String() string {
	return fmt.Sprintf("%s (%s to %s)", s.Name, s.StartDate, s.EndDate)
}
