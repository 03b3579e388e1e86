package models

import "time"

// GatTest is one administration of a test to a parallel class in a quarter.
type GatTest struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name" validate:"required,max=255"`
	TestNumber int       `db:"test_number" json:"test_number" validate:"required,oneof=1 2"`
	Day        *int      `db:"day" json:"day,omitempty" validate:"omitempty,oneof=1 2"`
	TestDate   time.Time `db:"test_date" json:"test_date" validate:"required"`
	QuarterID  string    `db:"quarter_id" json:"quarter_id" validate:"required"`
	ClassID    string    `db:"class_id" json:"class_id" validate:"required"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	SubjectIDs []string  `db:"-" json:"subject_ids"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// DayNumber returns the day or 0 when the test is not split by day.
func (t GatTest) DayNumber() int {
	if t.Day == nil {
		return 0
	}
	return *t.Day
}

// GatTestDetail adds naming used by listings and reports.
type GatTestDetail struct {
	GatTest
	ClassName   string `db:"class_name" json:"class_name"`
	SchoolName  string `db:"school_name" json:"school_name"`
	QuarterName string `db:"quarter_name" json:"quarter_name"`
	ResultCount int    `db:"result_count" json:"result_count"`
}

// GatTestFilter narrows registry listings.
type GatTestFilter struct {
	SchoolIDs  []string
	AllSchools bool
	QuarterID  string
	ClassID    string
	TestNumber int
	Day        int
}

// QuestionCountWarning flags a subject whose uploaded answers disagree with the expected count.
type QuestionCountWarning struct {
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	Expected    int    `json:"expected"`
	Actual      int    `json:"actual"`
}
