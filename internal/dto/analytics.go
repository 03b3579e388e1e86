package dto

import (
	"time"

	"github.com/zafarze/gat-sub000/internal/models"
	"github.com/zafarze/gat-sub000/internal/scoring"
)

// ReportFilter is the query string shared by aggregate reports. Empty fields do not filter.
type ReportFilter struct {
	GatTestIDs  []string `form:"test"`
	QuarterIDs  []string `form:"quarter"`
	SchoolIDs   []string `form:"school"`
	ClassIDs    []string `form:"class"`
	SubjectIDs  []string `form:"subject"`
	TestNumbers []int    `form:"test_number"`
	Days        []int    `form:"day"`
}

// CacheParams flattens the filter into cache key parameters.
func (f ReportFilter) CacheParams() map[string]string {
	return map[string]string{
		"test":        joinSorted(f.GatTestIDs),
		"quarter":     joinSorted(f.QuarterIDs),
		"school":      joinSorted(f.SchoolIDs),
		"class":       joinSorted(f.ClassIDs),
		"subject":     joinSorted(f.SubjectIDs),
		"test_number": joinInts(f.TestNumbers),
		"day":         joinInts(f.Days),
	}
}

// TestResultsReport is the ranked table of one test.
type TestResultsReport struct {
	Test  models.GatTestDetail  `json:"test"`
	Table scoring.ResultsTable `json:"table"`
}

// ComparisonResponse compares two tests. Combined marks the day 1 plus day 2 pairing of the
// same administration.
type ComparisonResponse struct {
	First    models.GatTestDetail     `json:"first"`
	Second   models.GatTestDetail     `json:"second"`
	Combined bool                     `json:"combined"`
	Report   scoring.ComparisonReport `json:"report"`
}

// DifficultyReport holds question difficulty, the problematic questions and the subject board.
type DifficultyReport struct {
	Subjects    []scoring.SubjectDifficulty   `json:"subjects"`
	Problematic []scoring.ProblematicQuestion `json:"problematic"`
	Leaderboard []scoring.SubjectScore        `json:"leaderboard"`
}

// StudentTestProgress is one result of a student.
type StudentTestProgress struct {
	ResultID    string                  `json:"resultId"`
	GatTestID   string                  `json:"gatTestId"`
	TestName    string                  `json:"testName"`
	TestNumber  int                     `json:"testNumber"`
	Day         *int                    `json:"day,omitempty"`
	TestDate    time.Time               `json:"testDate"`
	QuarterName string                  `json:"quarterName"`
	TotalScore  int                     `json:"totalScore"`
	Percentage  float64                 `json:"percentage"`
	Grade       int                     `json:"grade"`
	Subjects    []scoring.SubjectResult `json:"subjects"`
	Best        *scoring.SubjectResult  `json:"best,omitempty"`
	Worst       *scoring.SubjectResult  `json:"worst,omitempty"`
	Placement   scoring.Placement       `json:"placement"`
}

// StudentProgressReport is the result history of one student, oldest first.
type StudentProgressReport struct {
	Student models.Student        `json:"student"`
	Results []StudentTestProgress `json:"results"`
}

// DashboardStats are the headline counters.
type DashboardStats struct {
	Students          int     `json:"students"`
	Tests             int     `json:"tests"`
	Results           int     `json:"results"`
	AveragePercentage float64 `json:"averagePercentage"`
}

// TopStudent is one entry of the dashboard leaderboard.
type TopStudent struct {
	StudentID  string  `json:"studentId"`
	Name       string  `json:"name"`
	ClassName  string  `json:"className"`
	SchoolName string  `json:"schoolName"`
	Percentage float64 `json:"percentage"`
	Grade      int     `json:"grade"`
}

// DashboardReport aggregates the overview page.
type DashboardReport struct {
	Stats              DashboardStats          `json:"stats"`
	ScoreDistribution  []scoring.ScoreBin      `json:"scoreDistribution"`
	SubjectPerformance []scoring.SubjectScore  `json:"subjectPerformance"`
	TopStudents        []TopStudent            `json:"topStudents"`
	AtRisk             []scoring.AtRiskStudent `json:"atRisk"`
	TestsWithoutResult []models.GatTestDetail  `json:"testsWithoutResults"`
}
