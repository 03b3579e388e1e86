package models

import "time"

// SchoolClass is either a parallel (base) class such as "10" or, when ParentID is set, one
// of its sections such as "10A".
type SchoolClass struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id" validate:"required"`
	Name      string    `db:"name" json:"name" validate:"required,max=64"`
	ParentID  *string   `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsParallel reports whether the class is a base class.
func (c SchoolClass) IsParallel() bool {
	return c.ParentID == nil || *c.ParentID == ""
}

// BaseID returns the id of the parallel class the class belongs to.
func (c SchoolClass) BaseID() string {
	if c.IsParallel() {
		return c.ID
	}
	return *c.ParentID
}

// ClassSubject stores the expected question count of a subject within a class.
type ClassSubject struct {
	ID                string `db:"id" json:"id"`
	ClassID           string `db:"class_id" json:"class_id"`
	SubjectID         string `db:"subject_id" json:"subject_id" validate:"required"`
	NumberOfQuestions int    `db:"number_of_questions" json:"number_of_questions" validate:"gte=0,lte=500"`
}

// ClassSubjectDetail joins subject naming onto a ClassSubject row.
type ClassSubjectDetail struct {
	ClassSubject
	SubjectName  string  `db:"subject_name" json:"subject_name"`
	Abbreviation *string `db:"abbreviation" json:"abbreviation,omitempty"`
}

// ExpectedCount is the resolved expected question count of one subject for a class.
// Inherited is set when the value came from the parent class.
type ExpectedCount struct {
	SubjectID         string `json:"subject_id"`
	SubjectName       string `json:"subject_name"`
	NumberOfQuestions int    `json:"number_of_questions"`
	Inherited         bool   `json:"inherited"`
}
