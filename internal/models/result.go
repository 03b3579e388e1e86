package models

import "time"

// StudentResult is the scored artifact of one student in one test.
type StudentResult struct {
	ID         string     `db:"id" json:"id"`
	StudentID  string     `db:"student_id" json:"student_id"`
	GatTestID  string     `db:"gat_test_id" json:"gat_test_id"`
	Scores     ScoreSheet `db:"scores" json:"scores"`
	TotalScore int        `db:"total_score" json:"total_score"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// ResultRow is a StudentResult joined with the student, class, school and test context every
// report needs.
type ResultRow struct {
	ResultID      string     `db:"result_id" json:"result_id"`
	StudentID     string     `db:"student_id" json:"student_id"`
	StudentCode   string     `db:"student_code" json:"student_code"`
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	ClassID       string     `db:"class_id" json:"class_id"`
	ClassName     string     `db:"class_name" json:"class_name"`
	ClassParentID *string    `db:"class_parent_id" json:"class_parent_id,omitempty"`
	SchoolID      string     `db:"school_id" json:"school_id"`
	SchoolName    string     `db:"school_name" json:"school_name"`
	GatTestID     string     `db:"gat_test_id" json:"gat_test_id"`
	TestName      string     `db:"test_name" json:"test_name"`
	TestNumber    int        `db:"test_number" json:"test_number"`
	Day           *int       `db:"day" json:"day,omitempty"`
	TestDate      time.Time  `db:"test_date" json:"test_date"`
	TestClassID   string     `db:"test_class_id" json:"test_class_id"`
	QuarterID     string     `db:"quarter_id" json:"quarter_id"`
	QuarterName   string     `db:"quarter_name" json:"quarter_name"`
	QuarterStart  time.Time  `db:"quarter_start" json:"quarter_start"`
	Scores        ScoreSheet `db:"scores" json:"scores"`
	TotalScore    int        `db:"total_score" json:"total_score"`
}

// StudentName renders "Surname Name".
func (r ResultRow) StudentName() string {
	return Student{FirstName: r.FirstName, LastName: r.LastName}.FullName()
}

// BaseClassID returns the parallel class of the student's class.
func (r ResultRow) BaseClassID() string {
	if r.ClassParentID != nil && *r.ClassParentID != "" {
		return *r.ClassParentID
	}
	return r.ClassID
}

// ResultFilter selects result rows for reports. Empty fields do not filter.
type ResultFilter struct {
	Scope       AccessScope
	GatTestIDs  []string
	QuarterIDs  []string
	SchoolIDs   []string
	ClassIDs    []string
	TestNumbers []int
	Days        []int
	StudentID   string
}
