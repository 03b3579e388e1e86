package models

import "time"

// IngestSummary is returned to the uploader.
type IngestSummary struct {
	GatTestID      string   `json:"gat_test_id"`
	ProcessedCount int      `json:"processed_count"`
	ProcessedList  []string `json:"processed_list"`
	SkippedCount   int      `json:"skipped_count"`
	SkippedList    []string `json:"skipped_list"`
	Errors         []string `json:"errors"`
	CreatedClasses []string `json:"created_classes,omitempty"`
	Sheets         int      `json:"sheets"`
	// DetectedTestDate is read from the filename or a date column; TestDateMismatch flags a
	// detected date other than the test's own.
	DetectedTestDate *time.Time `json:"detected_test_date,omitempty"`
	TestDateMismatch bool       `json:"test_date_mismatch,omitempty"`
}

// RosterSummary reports a student roster import.
type RosterSummary struct {
	Created     int      `json:"created"`
	Updated     int      `json:"updated"`
	Skipped     int      `json:"skipped"`
	SkippedList []string `json:"skipped_list"`
	Errors      []string `json:"errors"`
}
