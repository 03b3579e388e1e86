package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	first := []StudentScore{
		{StudentID: "a", Name: "Alimov Aziz", Score: 30},
		{StudentID: "b", Name: "Boboev Bek", Score: 20},
		{StudentID: "c", Name: "Davlatov Dilshod", Score: 25},
	}
	second := []StudentScore{
		{StudentID: "a", Name: "Alimov Aziz", Score: 28},
		{StudentID: "b", Name: "Boboev Bek", Score: 35},
		{StudentID: "d", Name: "Ergashev Erkin", Score: 10},
	}

	report := Compare(first, second)
	require.Len(t, report.Rows, 4)

	assert.Equal(t, "a", report.Rows[0].StudentID)
	assert.Equal(t, 1.5, *report.Rows[0].AverageRank)
	assert.Equal(t, -2, *report.Rows[0].Progress)
	assert.Equal(t, "b", report.Rows[1].StudentID)
	assert.Equal(t, 2.0, *report.Rows[1].AverageRank)
	assert.Equal(t, ParticipatedBoth, report.Rows[1].Participation)

	// missing on a side sorts last, higher total first
	assert.Equal(t, "c", report.Rows[2].StudentID)
	assert.Nil(t, report.Rows[2].AverageRank)
	assert.Equal(t, ParticipatedFirst, report.Rows[2].Participation)
	assert.Equal(t, "d", report.Rows[3].StudentID)
	assert.False(t, report.Rows[3].InFirst)
	assert.True(t, report.Rows[3].InSecond)
	assert.Equal(t, 4, report.Rows[3].Position)

	assert.Equal(t, ComparisonStats{
		TotalStudents:    4,
		ParticipatedBoth: 2,
		OnlyFirst:        1,
		OnlySecond:       1,
		AverageScore1:    25,
		AverageScore2:    24.3,
		AverageProgress:  6.5,
	}, report.Stats)

	_, err := json.Marshal(report)
	assert.NoError(t, err)
}

func TestCompareEmpty(t *testing.T) {
	report := Compare(nil, nil)
	assert.Empty(t, report.Rows)
	assert.Equal(t, ComparisonStats{}, report.Stats)
}
