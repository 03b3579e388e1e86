package models

import "time"

// AcademicYear spans a school year. Years never overlap.
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name" validate:"required,max=64"`
	StartDate time.Time `db:"start_date" json:"start_date" validate:"required"`
	EndDate   time.Time `db:"end_date" json:"end_date" validate:"required"`
}

// Contains reports whether day falls within the year (inclusive).
func (y AcademicYear) Contains(day time.Time) bool {
	return !day.Before(y.StartDate) && !day.After(y.EndDate)
}

// Quarter is a time-ordered period inside an academic year.
type Quarter struct {
	ID        string    `db:"id" json:"id"`
	YearID    string    `db:"year_id" json:"year_id" validate:"required"`
	Name      string    `db:"name" json:"name" validate:"required,max=64"`
	StartDate time.Time `db:"start_date" json:"start_date" validate:"required"`
	EndDate   time.Time `db:"end_date" json:"end_date" validate:"required"`
}

// Contains reports whether day falls within the quarter (inclusive).
func (q Quarter) Contains(day time.Time) bool {
	return !day.Before(q.StartDate) && !day.After(q.EndDate)
}
