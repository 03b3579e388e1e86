package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreSheetOrderedAndTotal(t *testing.T) {
	sheet := ScoreSheet{}
	sheet.Set("5", 2, false)
	sheet.Set("5", 1, true)
	sheet.Set("7", 1, true)

	assert.Equal(t, map[string][]bool{"5": {true, false}, "7": {true}}, sheet.Ordered())
	assert.Equal(t, 2, sheet.Total())
	assert.Equal(t, 3, sheet.Answered())
	assert.Equal(t, []string{"5", "7"}, sheet.SubjectIDs())
}

func TestScoreSheetKeepsGaps(t *testing.T) {
	sheet := ScoreSheet{}
	sheet.Set("5", 1, true)
	sheet.Set("5", 3, false)

	assert.Equal(t, []int{1, 3}, sheet["5"].Questions())
	assert.Equal(t, []bool{true, false}, sheet["5"].Ordered())
	assert.Equal(t, 3, sheet["5"].MaxQuestion())
}

func TestScoreSheetRoundTripThroughValueAndScan(t *testing.T) {
	sheet := ScoreSheet{"5": {1: true, 3: false}}
	value, err := sheet.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2,"subjects":{"5":{"1":true,"3":false}}}`, string(value.([]byte)))

	var scanned ScoreSheet
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, sheet, scanned)
}

func TestDecodeScoreSheetLegacyShapes(t *testing.T) {
	legacyList, err := DecodeScoreSheet([]byte(`{"5":[true,false],"7":[1,0,1]}`))
	require.NoError(t, err)
	assert.Equal(t, map[string][]bool{"5": {true, false}, "7": {true, false, true}}, legacyList.Ordered())
	assert.Equal(t, 3, legacyList.Total())

	legacyMap, err := DecodeScoreSheet([]byte(`{"5":{"1":true,"2":0,"x":true}}`))
	require.NoError(t, err)
	assert.Equal(t, SubjectAnswers{1: true, 2: false}, legacyMap["5"])
}

func TestDecodeScoreSheetEmptyAndInvalid(t *testing.T) {
	sheet, err := DecodeScoreSheet(nil)
	require.NoError(t, err)
	assert.Empty(t, sheet)

	_, err = DecodeScoreSheet([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = DecodeScoreSheet([]byte(`{"version":9,"subjects":{}}`))
	assert.Error(t, err)

	var nilSheet ScoreSheet
	require.NoError(t, nilSheet.Scan(nil))
	assert.NotNil(t, nilSheet)
}

func TestScoreSheetJSONInsideStruct(t *testing.T) {
	result := StudentResult{ID: "r1", Scores: ScoreSheet{"5": {1: true}}}
	payload, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded StudentResult
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, result.Scores, decoded.Scores)
}
