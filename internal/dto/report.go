package dto

import "github.com/zafarze/gat-sub000/internal/models"

// ReportRequest captures POST /reports/jobs.
type ReportRequest struct {
	Type      models.ReportType   `json:"type" validate:"required"`
	Format    models.ReportFormat `json:"format" validate:"required,oneof=csv pdf xlsx"`
	GatTestID string              `json:"gatTestId,omitempty"`
	SecondID  string              `json:"secondTestId,omitempty"`
	QuarterID string              `json:"quarterId,omitempty"`
	SchoolID  string              `json:"schoolId,omitempty"`
	ClassID   string              `json:"classId,omitempty"`
	Grading   bool                `json:"grading,omitempty"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Type      models.ReportType   `json:"type"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
