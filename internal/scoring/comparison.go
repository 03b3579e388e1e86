package scoring

import (
	"math"
	"sort"
	"strings"
)

// Participation describes which of two tests a student sat.
type Participation string

const (
	ParticipatedBoth   Participation = "both"
	ParticipatedFirst  Participation = "only_first"
	ParticipatedSecond Participation = "only_second"
)

// StudentScore is one student's total in one test.
type StudentScore struct {
	StudentID   string `json:"student_id"`
	StudentCode string `json:"student_code"`
	Name        string `json:"name"`
	ClassName   string `json:"class_name"`
	Score       int    `json:"score"`
}

// ComparisonRow compares a student across two tests. Missing sides leave Score/Rank nil and
// push the student to the end of the ordering.
type ComparisonRow struct {
	StudentID     string        `json:"student_id"`
	StudentCode   string        `json:"student_code"`
	Name          string        `json:"name"`
	ClassName     string        `json:"class_name"`
	InFirst       bool          `json:"in_first"`
	InSecond      bool          `json:"in_second"`
	Score1        *int          `json:"score1,omitempty"`
	Score2        *int          `json:"score2,omitempty"`
	Rank1         *int          `json:"rank1,omitempty"`
	Rank2         *int          `json:"rank2,omitempty"`
	AverageRank   *float64      `json:"average_rank,omitempty"`
	Progress      *int          `json:"progress,omitempty"`
	Total         int           `json:"total"`
	Participation Participation `json:"participation"`
	Position      int           `json:"position"`

	avgRank float64
}

// ComparisonStats summarises a comparison.
type ComparisonStats struct {
	TotalStudents    int     `json:"total_students"`
	ParticipatedBoth int     `json:"participated_both"`
	OnlyFirst        int     `json:"only_first"`
	OnlySecond       int     `json:"only_second"`
	AverageScore1    float64 `json:"avg_score1"`
	AverageScore2    float64 `json:"avg_score2"`
	AverageProgress  float64 `json:"avg_progress"`
}

// ComparisonReport is the output of Compare.
type ComparisonReport struct {
	Rows  []ComparisonRow `json:"rows"`
	Stats ComparisonStats `json:"stats"`
}

// Compare ranks each test independently and orders students by the mean of both ranks.
// Students absent from either test get an infinite mean rank. Total is score1+score2 with a
// missing side counted as zero, which is the combined score of a two-day administration.
func Compare(first, second []StudentScore) ComparisonReport {
	rows := map[string]*ComparisonRow{}
	get := func(s StudentScore) *ComparisonRow {
		row, ok := rows[s.StudentID]
		if !ok {
			row = &ComparisonRow{StudentID: s.StudentID, StudentCode: s.StudentCode, Name: s.Name, ClassName: s.ClassName}
			rows[s.StudentID] = row
		}
		if row.Name == "" {
			row.Name = s.Name
		}
		if row.ClassName == "" {
			row.ClassName = s.ClassName
		}
		return row
	}

	firstRanks := rankScores(first)
	secondRanks := rankScores(second)
	for _, s := range first {
		row := get(s)
		score, rank := s.Score, firstRanks[s.StudentID]
		row.InFirst, row.Score1, row.Rank1 = true, &score, &rank
	}
	for _, s := range second {
		row := get(s)
		score, rank := s.Score, secondRanks[s.StudentID]
		row.InSecond, row.Score2, row.Rank2 = true, &score, &rank
	}

	report := ComparisonReport{Rows: make([]ComparisonRow, 0, len(rows))}
	var sum1, sum2, sumProgress, n1, n2 int
	for _, row := range rows {
		switch {
		case row.InFirst && row.InSecond:
			avg := float64(*row.Rank1+*row.Rank2) / 2
			progress := *row.Score2 - *row.Score1
			row.avgRank, row.AverageRank, row.Progress = avg, &avg, &progress
			row.Participation = ParticipatedBoth
			report.Stats.ParticipatedBoth++
			sumProgress += progress
		case row.InFirst:
			row.avgRank = math.Inf(1)
			row.Participation = ParticipatedFirst
			report.Stats.OnlyFirst++
		default:
			row.avgRank = math.Inf(1)
			row.Participation = ParticipatedSecond
			report.Stats.OnlySecond++
		}
		if row.Score1 != nil {
			row.Total += *row.Score1
			sum1 += *row.Score1
			n1++
		}
		if row.Score2 != nil {
			row.Total += *row.Score2
			sum2 += *row.Score2
			n2++
		}
		report.Rows = append(report.Rows, *row)
	}

	sort.SliceStable(report.Rows, func(i, j int) bool {
		a, b := report.Rows[i], report.Rows[j]
		if a.avgRank != b.avgRank {
			return a.avgRank < b.avgRank
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	for i := range report.Rows {
		report.Rows[i].Position = i + 1
	}

	report.Stats.TotalStudents = len(report.Rows)
	report.Stats.AverageScore1 = average(sum1, n1)
	report.Stats.AverageScore2 = average(sum2, n2)
	report.Stats.AverageProgress = average(sumProgress, report.Stats.ParticipatedBoth)
	return report
}

func rankScores(scores []StudentScore) map[string]int {
	population := make(map[string]int, len(scores))
	for _, s := range scores {
		population[s.StudentID] = s.Score
	}
	return RankMap(population)
}

func average(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return Round1(float64(sum) / float64(n))
}
