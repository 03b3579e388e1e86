package models

import "time"

// StudentStatus captures enrollment state.
type StudentStatus string

const (
	StudentStatusActive      StudentStatus = "ACTIVE"
	StudentStatusTransferred StudentStatus = "TRANSFERRED"
	StudentStatusGraduated   StudentStatus = "GRADUATED"
)

// Student is identified externally by StudentCode, stable across uploads.
type Student struct {
	ID          string        `db:"id" json:"id"`
	StudentCode string        `db:"student_code" json:"student_code" validate:"required,max=64"`
	FirstName   string        `db:"first_name" json:"first_name" validate:"required,max=128"`
	LastName    string        `db:"last_name" json:"last_name" validate:"required,max=128"`
	ClassID     string        `db:"class_id" json:"class_id" validate:"required"`
	Status      StudentStatus `db:"status" json:"status" validate:"omitempty,oneof=ACTIVE TRANSFERRED GRADUATED"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// FullName renders "Surname Name".
func (s Student) FullName() string {
	if s.FirstName == "" {
		return s.LastName
	}
	if s.LastName == "" {
		return s.FirstName
	}
	return s.LastName + " " + s.FirstName
}

// StudentFilter captures supported filters for listing students.
type StudentFilter struct {
	SchoolIDs []string
	AllSchool bool
	ClassID   string
	Search    string
	Page      int
	PageSize  int
}
