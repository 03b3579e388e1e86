package scoring

import (
	"fmt"
	"sort"

	"github.com/zafarze/gat-sub000/internal/models"
)

// GradeCounts holds the number of students per grade, index 1..10. Index 0 is unused.
type GradeCounts [11]int

// Add records one grade.
func (g *GradeCounts) Add(grade int) {
	if grade < 1 || grade > 10 {
		return
	}
	g[grade]++
}

// Total returns the number of grades recorded.
func (g GradeCounts) Total() int {
	total := 0
	for _, n := range g[1:] {
		total += n
	}
	return total
}

// Map renders the counts keyed by grade for JSON payloads.
func (g GradeCounts) Map() map[int]int {
	out := make(map[int]int, 10)
	for grade := 1; grade <= 10; grade++ {
		out[grade] = g[grade]
	}
	return out
}

// ClassGrades is the grade distribution of one subject in one class.
type ClassGrades struct {
	ClassID   string      `json:"class_id"`
	ClassName string      `json:"class_name"`
	Counts    map[int]int `json:"counts"`
	Students  int         `json:"students"`
}

// SubjectGrades is the grade distribution of one subject.
type SubjectGrades struct {
	SubjectID   string        `json:"subject_id"`
	SubjectName string        `json:"subject_name"`
	Classes     []ClassGrades `json:"classes"`
	Total       map[int]int   `json:"total"`
	Students    int           `json:"students"`
}

// GradeDistributionReport groups grade counts per subject and class with a school-wide
// summary over every subject.
type GradeDistributionReport struct {
	Subjects []SubjectGrades `json:"subjects"`
	Summary  map[int]int     `json:"summary"`
	Students int             `json:"students"`
}

// GradeDistribution grades every (student, subject) pair of the rows. Pairs without answers
// are skipped. Subject order follows subjects; an empty list discovers subjects from rows.
func GradeDistribution(rows []models.ResultRow, subjects []SubjectRef, expected ExpectedLookup, mode PercentMode) GradeDistributionReport {
	expected = lookupOrNone(expected)
	subjects = subjectsOrDiscovered(sheetsOf(rows), subjects)

	classNames := map[string]string{}
	report := GradeDistributionReport{Subjects: make([]SubjectGrades, 0, len(subjects))}
	var summary GradeCounts
	for _, subject := range subjects {
		perClass := map[string]*GradeCounts{}
		var total GradeCounts
		for _, row := range rows {
			answers, ok := row.Scores[subject.ID]
			if !ok || answers.Answered() == 0 {
				continue
			}
			grade := GradeFromPercentage(SubjectPercentage(answers, expected.Expected(row.ClassID, subject.ID), mode))
			counts, ok := perClass[row.ClassID]
			if !ok {
				counts = &GradeCounts{}
				perClass[row.ClassID] = counts
				classNames[row.ClassID] = row.ClassName
			}
			counts.Add(grade)
			total.Add(grade)
			summary.Add(grade)
		}

		sg := SubjectGrades{SubjectID: subject.ID, SubjectName: subject.Name, Total: total.Map(), Students: total.Total()}
		for classID, counts := range perClass {
			sg.Classes = append(sg.Classes, ClassGrades{ClassID: classID, ClassName: classNames[classID], Counts: counts.Map(), Students: counts.Total()})
		}
		sort.Slice(sg.Classes, func(i, j int) bool { return sg.Classes[i].ClassName < sg.Classes[j].ClassName })
		report.Subjects = append(report.Subjects, sg)
	}
	report.Summary = summary.Map()
	report.Students = summary.Total()
	return report
}

// ScoreBin is one bucket of a score histogram.
type ScoreBin struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

const (
	scoreBinWidth = 10
	scoreBinCount = 11
)

// ScoreDistribution buckets total scores into bins of width ten from "0-9" to "100-109".
// Out of range totals are clamped into the first or last bin.
func ScoreDistribution(totals []int) []ScoreBin {
	bins := make([]ScoreBin, scoreBinCount)
	for i := range bins {
		low := i * scoreBinWidth
		bins[i].Label = fmt.Sprintf("%d-%d", low, low+scoreBinWidth-1)
	}
	for _, total := range totals {
		idx := total / scoreBinWidth
		if idx < 0 {
			idx = 0
		}
		if idx >= scoreBinCount {
			idx = scoreBinCount - 1
		}
		bins[idx].Count++
	}
	return bins
}
