package dto

import "time"

// GatTestRequest captures create and update payloads of a test administration.
type GatTestRequest struct {
	Name       string    `json:"name" validate:"required,max=255"`
	TestNumber int       `json:"testNumber" validate:"required,oneof=1 2"`
	Day        *int      `json:"day,omitempty" validate:"omitempty,oneof=1 2"`
	TestDate   time.Time `json:"testDate" validate:"required"`
	QuarterID  string    `json:"quarterId" validate:"required"`
	ClassID    string    `json:"classId" validate:"required"`
	SubjectIDs []string  `json:"subjectIds" validate:"dive,required"`
}

// DeleteResultsResponse reports a bulk delete.
type DeleteResultsResponse struct {
	GatTestID string `json:"gatTestId"`
	Deleted   int64  `json:"deleted"`
}
