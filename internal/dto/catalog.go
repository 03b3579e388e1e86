package dto

import "time"

// CreateSchoolRequest captures POST /schools.
type CreateSchoolRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Address string `json:"address" validate:"max=512"`
}

// CreateYearRequest captures POST /academic-years.
type CreateYearRequest struct {
	Name      string    `json:"name" validate:"required,max=64"`
	StartDate time.Time `json:"startDate" validate:"required"`
	EndDate   time.Time `json:"endDate" validate:"required"`
}

// CreateQuarterRequest captures POST /academic-years/{id}/quarters.
type CreateQuarterRequest struct {
	Name      string    `json:"name" validate:"required,max=64"`
	StartDate time.Time `json:"startDate" validate:"required"`
	EndDate   time.Time `json:"endDate" validate:"required"`
}

// CreateClassRequest captures POST /schools/{id}/classes.
type CreateClassRequest struct {
	Name     string  `json:"name" validate:"required,max=64"`
	ParentID *string `json:"parentId,omitempty"`
}

// CreateSubjectRequest captures POST /schools/{id}/subjects.
type CreateSubjectRequest struct {
	Name         string  `json:"name" validate:"required,max=128"`
	Abbreviation *string `json:"abbreviation,omitempty" validate:"omitempty,max=16"`
}

// ClassSubjectItem is one expected question count.
type ClassSubjectItem struct {
	SubjectID         string `json:"subjectId" validate:"required"`
	NumberOfQuestions int    `json:"numberOfQuestions" validate:"gte=0,lte=500"`
}

// UpsertClassSubjectsRequest captures PUT /classes/{id}/subjects.
type UpsertClassSubjectsRequest struct {
	Items []ClassSubjectItem `json:"items" validate:"required,dive"`
}

// CreateStudentRequest captures POST /students.
type CreateStudentRequest struct {
	StudentCode string `json:"studentCode" validate:"required,max=64"`
	FirstName   string `json:"firstName" validate:"required,max=128"`
	LastName    string `json:"lastName" validate:"required,max=128"`
	ClassID     string `json:"classId" validate:"required"`
	Status      string `json:"status" validate:"omitempty,oneof=ACTIVE TRANSFERRED GRADUATED"`
}
