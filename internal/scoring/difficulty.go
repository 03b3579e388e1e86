package scoring

import (
	"sort"

	"github.com/zafarze/gat-sub000/internal/models"
)

// SubjectRef names a subject in report output.
type SubjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// QuestionStat is the correctness of one question across a population.
type QuestionStat struct {
	Question   int     `json:"question"`
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// SubjectDifficulty aggregates a subject's questions.
type SubjectDifficulty struct {
	SubjectID   string         `json:"subject_id"`
	SubjectName string         `json:"subject_name"`
	Questions   []QuestionStat `json:"questions"`
	Correct     int            `json:"correct"`
	Total       int            `json:"total"`
	Percentage  float64        `json:"percentage"`
}

// ProblematicQuestion is a low-scoring question.
type ProblematicQuestion struct {
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	QuestionStat
}

// SubjectScore is a subject's overall percentage.
type SubjectScore struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	Percentage  float64 `json:"percentage"`
}

// QuestionDifficulty computes per-question correctness for each subject. When subjects is
// empty every subject found in the sheets is reported, named by id.
func QuestionDifficulty(sheets []models.ScoreSheet, subjects []SubjectRef) []SubjectDifficulty {
	subjects = subjectsOrDiscovered(sheets, subjects)
	out := make([]SubjectDifficulty, 0, len(subjects))
	for _, subject := range subjects {
		perQuestion := map[int]*QuestionStat{}
		diff := SubjectDifficulty{SubjectID: subject.ID, SubjectName: subject.Name}
		for _, sheet := range sheets {
			for q, ok := range sheet[subject.ID] {
				stat, exists := perQuestion[q]
				if !exists {
					stat = &QuestionStat{Question: q}
					perQuestion[q] = stat
				}
				stat.Total++
				diff.Total++
				if ok {
					stat.Correct++
					diff.Correct++
				}
			}
		}
		diff.Questions = make([]QuestionStat, 0, len(perQuestion))
		for _, stat := range perQuestion {
			stat.Percentage = Percentage(stat.Correct, stat.Total)
			diff.Questions = append(diff.Questions, *stat)
		}
		sort.Slice(diff.Questions, func(i, j int) bool { return diff.Questions[i].Question < diff.Questions[j].Question })
		diff.Percentage = Percentage(diff.Correct, diff.Total)
		out = append(out, diff)
	}
	return out
}

// ProblematicQuestions returns, per subject, up to limit questions with the lowest
// percentage. A positive threshold keeps only questions strictly below it.
func ProblematicQuestions(stats []SubjectDifficulty, threshold float64, limit int) []ProblematicQuestion {
	out := make([]ProblematicQuestion, 0)
	for _, subject := range stats {
		questions := append([]QuestionStat(nil), subject.Questions...)
		sort.SliceStable(questions, func(i, j int) bool {
			if questions[i].Percentage != questions[j].Percentage {
				return questions[i].Percentage < questions[j].Percentage
			}
			return questions[i].Question < questions[j].Question
		})
		taken := 0
		for _, q := range questions {
			if limit > 0 && taken >= limit {
				break
			}
			if threshold > 0 && q.Percentage >= threshold {
				break
			}
			out = append(out, ProblematicQuestion{SubjectID: subject.SubjectID, SubjectName: subject.SubjectName, QuestionStat: q})
			taken++
		}
	}
	return out
}

// SubjectLeaderboard orders subjects by overall percentage, best first.
func SubjectLeaderboard(stats []SubjectDifficulty) []SubjectScore {
	out := make([]SubjectScore, 0, len(stats))
	for _, s := range stats {
		if s.Total == 0 {
			continue
		}
		out = append(out, SubjectScore{SubjectID: s.SubjectID, SubjectName: s.SubjectName, Percentage: s.Percentage})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percentage > out[j].Percentage })
	return out
}

func subjectsOrDiscovered(sheets []models.ScoreSheet, subjects []SubjectRef) []SubjectRef {
	if len(subjects) > 0 {
		return subjects
	}
	seen := map[string]struct{}{}
	ids := make([]string, 0)
	for _, sheet := range sheets {
		for id := range sheet {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]SubjectRef, len(ids))
	for i, id := range ids {
		out[i] = SubjectRef{ID: id, Name: id}
	}
	return out
}

func sheetsOf(rows []models.ResultRow) []models.ScoreSheet {
	sheets := make([]models.ScoreSheet, len(rows))
	for i, row := range rows {
		sheets[i] = row.Scores
	}
	return sheets
}
