package scoring

import "github.com/zafarze/gat-sub000/internal/models"

// SubjectResult is one subject of a student's sheet.
type SubjectResult struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	Correct     int     `json:"correct"`
	Answered    int     `json:"answered"`
	Expected    int     `json:"expected,omitempty"`
	Percentage  float64 `json:"percentage"`
	Grade       int     `json:"grade"`
}

// SubjectResults scores every listed subject present in the sheet, in the given order.
func SubjectResults(sheet models.ScoreSheet, subjects []SubjectRef, classID string, expected ExpectedLookup, mode PercentMode) []SubjectResult {
	expected = lookupOrNone(expected)
	if len(subjects) == 0 {
		subjects = subjectsOrDiscovered([]models.ScoreSheet{sheet}, nil)
	}
	out := make([]SubjectResult, 0, len(subjects))
	for _, subject := range subjects {
		answers, ok := sheet[subject.ID]
		if !ok {
			continue
		}
		count := expected.Expected(classID, subject.ID)
		pct := SubjectPercentage(answers, count, mode)
		out = append(out, SubjectResult{
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			Correct:     answers.Correct(),
			Answered:    answers.Answered(),
			Expected:    count,
			Percentage:  pct,
			Grade:       GradeFromPercentage(pct),
		})
	}
	return out
}

// BestWorstSubject returns the subjects with the highest and lowest percentage. Both are
// nil when no subject has answers; ties keep the first subject in list order.
func BestWorstSubject(results []SubjectResult) (best, worst *SubjectResult) {
	for i := range results {
		r := &results[i]
		if r.Answered == 0 {
			continue
		}
		if best == nil || r.Percentage > best.Percentage {
			best = r
		}
		if worst == nil || r.Percentage < worst.Percentage {
			worst = r
		}
	}
	return best, worst
}
