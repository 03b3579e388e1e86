package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ScoreSheetVersion is written into every persisted sheet.
const ScoreSheetVersion = 2

// SubjectAnswers maps a 1-based question number to whether it was answered correctly.
// Numbering gaps are kept as-is.
type SubjectAnswers map[int]bool

// ScoreSheet maps a subject id to its answers.
type ScoreSheet map[string]SubjectAnswers

type scoreSheetEnvelope struct {
	Version  int                        `json:"version"`
	Subjects map[string]map[string]bool `json:"subjects"`
}

// Set records the answer for one question.
func (s ScoreSheet) Set(subjectID string, question int, correct bool) {
	answers, ok := s[subjectID]
	if !ok {
		answers = SubjectAnswers{}
		s[subjectID] = answers
	}
	answers[question] = correct
}

// SubjectIDs returns the subject keys in lexical order.
func (s ScoreSheet) SubjectIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Total counts correct answers across every subject.
func (s ScoreSheet) Total() int {
	total := 0
	for _, answers := range s {
		total += answers.Correct()
	}
	return total
}

// Answered counts answered questions across every subject.
func (s ScoreSheet) Answered() int {
	total := 0
	for _, answers := range s {
		total += answers.Answered()
	}
	return total
}

// Ordered returns, per subject, the answers ordered by ascending question number.
func (s ScoreSheet) Ordered() map[string][]bool {
	out := make(map[string][]bool, len(s))
	for id, answers := range s {
		out[id] = answers.Ordered()
	}
	return out
}

// Questions returns the question numbers in ascending order.
func (a SubjectAnswers) Questions() []int {
	questions := make([]int, 0, len(a))
	for q := range a {
		questions = append(questions, q)
	}
	sort.Ints(questions)
	return questions
}

// Ordered returns the answers ordered by question number.
func (a SubjectAnswers) Ordered() []bool {
	questions := a.Questions()
	out := make([]bool, len(questions))
	for i, q := range questions {
		out[i] = a[q]
	}
	return out
}

// Correct counts correct answers.
func (a SubjectAnswers) Correct() int {
	count := 0
	for _, ok := range a {
		if ok {
			count++
		}
	}
	return count
}

// Answered counts answered questions.
func (a SubjectAnswers) Answered() int {
	return len(a)
}

// MaxQuestion returns the highest question number present.
func (a SubjectAnswers) MaxQuestion() int {
	max := 0
	for q := range a {
		if q > max {
			max = q
		}
	}
	return max
}

// MarshalJSON writes the versioned envelope.
func (s ScoreSheet) MarshalJSON() ([]byte, error) {
	env := scoreSheetEnvelope{Version: ScoreSheetVersion, Subjects: make(map[string]map[string]bool, len(s))}
	for id, answers := range s {
		questions := make(map[string]bool, len(answers))
		for q, ok := range answers {
			questions[strconv.Itoa(q)] = ok
		}
		env.Subjects[id] = questions
	}
	return json.Marshal(env)
}

// UnmarshalJSON accepts every supported shape via DecodeScoreSheet.
func (s *ScoreSheet) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeScoreSheet(data)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// Value marshals the sheet for JSONB persistence.
func (s ScoreSheet) Value() (driver.Value, error) {
	if s == nil {
		s = ScoreSheet{}
	}
	data, err := s.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal score sheet: %w", err)
	}
	return data, nil
}

// Scan decodes JSONB payloads written by any version.
func (s *ScoreSheet) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*s = ScoreSheet{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ScoreSheet", value)
	}
	decoded, err := DecodeScoreSheet(data)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// DecodeScoreSheet is the single reader of persisted scores. It understands the versioned
// envelope as well as legacy payloads keyed by subject id whose value is either a list of
// flags (index i is question i+1) or a map keyed by question number. Flags may be booleans
// or 0/1 numbers.
func DecodeScoreSheet(data []byte) (ScoreSheet, error) {
	data = bytes.TrimSpace(data)
	sheet := ScoreSheet{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return sheet, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decode score sheet: %w", err)
	}

	if rawVersion, ok := top["version"]; ok {
		if rawSubjects, ok := top["subjects"]; ok {
			var version int
			if err := json.Unmarshal(rawVersion, &version); err == nil {
				if version > ScoreSheetVersion {
					return nil, fmt.Errorf("decode score sheet: unsupported version %d", version)
				}
				var subjects map[string]json.RawMessage
				if err := json.Unmarshal(rawSubjects, &subjects); err != nil {
					return nil, fmt.Errorf("decode score sheet subjects: %w", err)
				}
				top = subjects
			}
		}
	}

	for subjectID, raw := range top {
		answers, err := decodeAnswers(raw)
		if err != nil {
			return nil, fmt.Errorf("decode score sheet subject %s: %w", subjectID, err)
		}
		sheet[subjectID] = answers
	}
	return sheet, nil
}

func decodeAnswers(raw json.RawMessage) (SubjectAnswers, error) {
	raw = bytes.TrimSpace(raw)
	answers := SubjectAnswers{}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return answers, nil
	}

	switch raw[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		for i, item := range list {
			answers[i+1] = decodeFlag(item)
		}
	case '{':
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(raw, &keyed); err != nil {
			return nil, err
		}
		for key, item := range keyed {
			q, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil || q <= 0 {
				continue
			}
			answers[q] = decodeFlag(item)
		}
	default:
		return nil, fmt.Errorf("unexpected answers payload %s", string(raw))
	}
	return answers, nil
}

func decodeFlag(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n == 1
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(strings.ToLower(s))
		return s == "1" || s == "true"
	}
	return false
}
