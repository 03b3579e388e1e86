package scoring

import (
	"sort"

	"github.com/zafarze/gat-sub000/internal/models"
)

// AverageOfAllLabel names the chart series averaging every school.
const AverageOfAllLabel = "Average of all"

// Dataset is one chart series. Nil points mark missing values.
type Dataset struct {
	Label string     `json:"label"`
	Data  []*float64 `json:"data"`
	Type  string     `json:"type,omitempty"`
}

// Chart is a labelled set of series.
type Chart struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// SchoolSubjectStats holds a school's per-question stats for one subject.
type SchoolSubjectStats struct {
	SchoolID   string         `json:"school_id"`
	SchoolName string         `json:"school_name"`
	Questions  []QuestionStat `json:"questions"`
	Percentage float64        `json:"percentage"`
	Correct    int            `json:"correct"`
	Total      int            `json:"total"`
}

// QuestionPercentage is the percentage of one question across schools.
type QuestionPercentage struct {
	Question   int     `json:"question"`
	Percentage float64 `json:"percentage"`
}

// SchoolAverage ranks a school inside a subject.
type SchoolAverage struct {
	SchoolID   string  `json:"school_id"`
	SchoolName string  `json:"school_name"`
	Average    float64 `json:"average"`
}

// HeatmapSummary highlights one subject of the deep analysis.
type HeatmapSummary struct {
	SubjectID      string               `json:"subject_id"`
	SubjectName    string               `json:"subject_name"`
	Easiest        []QuestionPercentage `json:"easiest"`
	Hardest        []QuestionPercentage `json:"hardest"`
	Ranking        []SchoolAverage      `json:"ranking"`
	OverallAverage float64              `json:"overall_average"`
	Gap            float64              `json:"gap"`
}

// SubjectHeatmap is the school by question matrix of one subject.
type SubjectHeatmap struct {
	SubjectID   string               `json:"subject_id"`
	SubjectName string               `json:"subject_name"`
	Questions   []int                `json:"questions"`
	Schools     []SchoolSubjectStats `json:"schools"`
	Summary     HeatmapSummary       `json:"summary"`
}

// SchoolQuestionProblem is a hard question inside one school.
type SchoolQuestionProblem struct {
	SchoolName string `json:"school_name"`
	QuestionStat
}

// DeepAnalysisReport is the cross-school analysis.
type DeepAnalysisReport struct {
	Summary     Chart                              `json:"summary_chart"`
	Heatmaps    []SubjectHeatmap                   `json:"heatmaps"`
	Problematic map[string][]SchoolQuestionProblem `json:"problematic_questions"`
	Trend       *Chart                             `json:"trend_chart,omitempty"`
	AtRisk      []AtRiskStudent                    `json:"at_risk_students"`
}

const summaryTop = 3

// DeepAnalysis aggregates rows per school, subject and question. Schools keep the order in
// which they first appear in rows; subjects follow the given order.
func DeepAnalysis(rows []models.ResultRow, subjects []SubjectRef, problematicLimit int, atRiskThreshold float64) DeepAnalysisReport {
	subjects = subjectsOrDiscovered(sheetsOf(rows), subjects)
	report := DeepAnalysisReport{
		Summary:     Chart{Labels: make([]string, 0, len(subjects)), Datasets: []Dataset{}},
		Heatmaps:    []SubjectHeatmap{},
		Problematic: map[string][]SchoolQuestionProblem{},
		AtRisk:      AtRiskStudents(rows, atRiskThreshold),
		Trend:       Trend(rows, subjects),
	}
	if len(rows) == 0 {
		return report
	}

	schoolOrder := make([]string, 0)
	schoolNames := map[string]string{}
	bySchool := map[string][]models.ScoreSheet{}
	for _, row := range rows {
		if _, ok := bySchool[row.SchoolID]; !ok {
			schoolOrder = append(schoolOrder, row.SchoolID)
			schoolNames[row.SchoolID] = row.SchoolName
		}
		bySchool[row.SchoolID] = append(bySchool[row.SchoolID], row.Scores)
	}

	perSchool := make(map[string][]SubjectDifficulty, len(schoolOrder))
	for _, schoolID := range schoolOrder {
		perSchool[schoolID] = QuestionDifficulty(bySchool[schoolID], subjects)
	}
	overall := QuestionDifficulty(sheetsOf(rows), subjects)

	for _, subject := range subjects {
		report.Summary.Labels = append(report.Summary.Labels, subject.Name)
	}
	for _, schoolID := range schoolOrder {
		ds := Dataset{Label: schoolNames[schoolID], Data: make([]*float64, len(subjects))}
		for i, stat := range perSchool[schoolID] {
			ds.Data[i] = floatPtr(stat.Percentage)
		}
		report.Summary.Datasets = append(report.Summary.Datasets, ds)
	}
	avg := Dataset{Label: AverageOfAllLabel, Type: "line", Data: make([]*float64, len(subjects))}
	for i, stat := range overall {
		avg.Data[i] = floatPtr(stat.Percentage)
	}
	report.Summary.Datasets = append(report.Summary.Datasets, avg)

	for i, subject := range subjects {
		heatmap := SubjectHeatmap{SubjectID: subject.ID, SubjectName: subject.Name}
		questions := map[int]struct{}{}
		problems := make([]SchoolQuestionProblem, 0)
		for _, schoolID := range schoolOrder {
			stat := perSchool[schoolID][i]
			if stat.Total == 0 {
				continue
			}
			for _, q := range stat.Questions {
				questions[q.Question] = struct{}{}
				problems = append(problems, SchoolQuestionProblem{SchoolName: schoolNames[schoolID], QuestionStat: q})
			}
			heatmap.Schools = append(heatmap.Schools, SchoolSubjectStats{
				SchoolID:   schoolID,
				SchoolName: schoolNames[schoolID],
				Questions:  stat.Questions,
				Percentage: stat.Percentage,
				Correct:    stat.Correct,
				Total:      stat.Total,
			})
		}
		if len(heatmap.Schools) == 0 {
			continue
		}
		for q := range questions {
			heatmap.Questions = append(heatmap.Questions, q)
		}
		sort.Ints(heatmap.Questions)
		heatmap.Summary = summarise(subject, overall[i], heatmap.Schools)
		report.Heatmaps = append(report.Heatmaps, heatmap)

		sort.SliceStable(problems, func(a, b int) bool { return problems[a].Percentage < problems[b].Percentage })
		if problematicLimit > 0 && len(problems) > problematicLimit {
			problems = problems[:problematicLimit]
		}
		report.Problematic[subject.Name] = problems
	}
	return report
}

func summarise(subject SubjectRef, overall SubjectDifficulty, schools []SchoolSubjectStats) HeatmapSummary {
	summary := HeatmapSummary{SubjectID: subject.ID, SubjectName: subject.Name, OverallAverage: overall.Percentage}

	byPerf := make([]QuestionPercentage, 0, len(overall.Questions))
	for _, q := range overall.Questions {
		byPerf = append(byPerf, QuestionPercentage{Question: q.Question, Percentage: q.Percentage})
	}
	sort.SliceStable(byPerf, func(i, j int) bool { return byPerf[i].Percentage > byPerf[j].Percentage })
	n := summaryTop
	if len(byPerf) < n {
		n = len(byPerf)
	}
	summary.Easiest = append([]QuestionPercentage(nil), byPerf[:n]...)
	summary.Hardest = make([]QuestionPercentage, 0, n)
	for i := len(byPerf) - 1; i >= len(byPerf)-n; i-- {
		summary.Hardest = append(summary.Hardest, byPerf[i])
	}

	for _, s := range schools {
		summary.Ranking = append(summary.Ranking, SchoolAverage{SchoolID: s.SchoolID, SchoolName: s.SchoolName, Average: s.Percentage})
	}
	sort.SliceStable(summary.Ranking, func(i, j int) bool { return summary.Ranking[i].Average > summary.Ranking[j].Average })
	if len(summary.Ranking) > 1 {
		summary.Gap = Round1(summary.Ranking[0].Average - summary.Ranking[len(summary.Ranking)-1].Average)
	}
	return summary
}

// Trend charts the per-quarter percentage of each subject. It returns nil unless the rows
// span at least two quarters.
func Trend(rows []models.ResultRow, subjects []SubjectRef) *Chart {
	type quarter struct {
		id, name string
		start    int64
	}
	quarters := map[string]quarter{}
	for _, row := range rows {
		quarters[row.QuarterID] = quarter{id: row.QuarterID, name: row.QuarterName, start: row.QuarterStart.Unix()}
	}
	if len(quarters) < 2 {
		return nil
	}
	ordered := make([]quarter, 0, len(quarters))
	for _, q := range quarters {
		ordered = append(ordered, q)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].start != ordered[j].start {
			return ordered[i].start < ordered[j].start
		}
		return ordered[i].name < ordered[j].name
	})

	subjects = subjectsOrDiscovered(sheetsOf(rows), subjects)
	type tally struct{ correct, total int }
	counts := map[string]map[string]*tally{}
	for _, row := range rows {
		for _, subject := range subjects {
			answers, ok := row.Scores[subject.ID]
			if !ok {
				continue
			}
			perQuarter, ok := counts[subject.ID]
			if !ok {
				perQuarter = map[string]*tally{}
				counts[subject.ID] = perQuarter
			}
			t, ok := perQuarter[row.QuarterID]
			if !ok {
				t = &tally{}
				perQuarter[row.QuarterID] = t
			}
			t.correct += answers.Correct()
			t.total += answers.Answered()
		}
	}

	chart := &Chart{Labels: make([]string, len(ordered)), Datasets: []Dataset{}}
	for i, q := range ordered {
		chart.Labels[i] = q.name
	}
	for _, subject := range subjects {
		perQuarter, ok := counts[subject.ID]
		if !ok {
			continue
		}
		ds := Dataset{Label: subject.Name, Data: make([]*float64, len(ordered))}
		for i, q := range ordered {
			if t, ok := perQuarter[q.id]; ok && t.total > 0 {
				ds.Data[i] = floatPtr(Percentage(t.correct, t.total))
			}
		}
		chart.Datasets = append(chart.Datasets, ds)
	}
	return chart
}

// AtRiskStudent is a student whose mean percentage is below the threshold.
type AtRiskStudent struct {
	StudentID string  `json:"student_id"`
	Name      string  `json:"name"`
	ClassName string  `json:"class_name"`
	Average   float64 `json:"average"`
	Tests     int     `json:"tests"`
}

// AtRiskStudents averages each student's per-result percentage and keeps those below
// threshold, lowest first.
func AtRiskStudents(rows []models.ResultRow, threshold float64) []AtRiskStudent {
	type acc struct {
		student AtRiskStudent
		sum     float64
	}
	byStudent := map[string]*acc{}
	order := make([]string, 0)
	for _, row := range rows {
		answered := row.Scores.Answered()
		if answered == 0 {
			continue
		}
		a, ok := byStudent[row.StudentID]
		if !ok {
			a = &acc{student: AtRiskStudent{StudentID: row.StudentID, Name: row.StudentName(), ClassName: row.ClassName}}
			byStudent[row.StudentID] = a
			order = append(order, row.StudentID)
		}
		a.sum += float64(row.Scores.Total()) * 100 / float64(answered)
		a.student.Tests++
	}

	out := make([]AtRiskStudent, 0)
	for _, id := range order {
		a := byStudent[id]
		avg := a.sum / float64(a.student.Tests)
		if avg >= threshold {
			continue
		}
		a.student.Average = Round1(avg)
		out = append(out, a.student)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Average < out[j].Average })
	return out
}

func floatPtr(v float64) *float64 {
	return &v
}
