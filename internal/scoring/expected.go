package scoring

// ExpectedLookup resolves the expected question count of a subject in a class.
type ExpectedLookup interface {
	Expected(classID, subjectID string) int
}

// ExpectedTable holds ClassSubject counts for a set of classes together with each
// subclass's parent. A subclass without its own count inherits the parent's.
type ExpectedTable struct {
	Counts  map[string]map[string]int
	Parents map[string]string
}

// NewExpectedTable returns an empty table.
func NewExpectedTable() *ExpectedTable {
	return &ExpectedTable{Counts: map[string]map[string]int{}, Parents: map[string]string{}}
}

// Set records the count configured directly on a class.
func (t *ExpectedTable) Set(classID, subjectID string, count int) {
	if t.Counts == nil {
		t.Counts = map[string]map[string]int{}
	}
	subjects, ok := t.Counts[classID]
	if !ok {
		subjects = map[string]int{}
		t.Counts[classID] = subjects
	}
	subjects[subjectID] = count
}

// SetParent records the parent of a subclass.
func (t *ExpectedTable) SetParent(classID, parentID string) {
	if parentID == "" {
		return
	}
	if t.Parents == nil {
		t.Parents = map[string]string{}
	}
	t.Parents[classID] = parentID
}

// Expected implements ExpectedLookup.
func (t *ExpectedTable) Expected(classID, subjectID string) int {
	count, _ := t.Resolve(classID, subjectID)
	return count
}

// Resolve returns the expected count and whether it was inherited from the parent class.
func (t *ExpectedTable) Resolve(classID, subjectID string) (int, bool) {
	if t == nil {
		return 0, false
	}
	if count, ok := t.Counts[classID][subjectID]; ok {
		return count, false
	}
	if parentID, ok := t.Parents[classID]; ok {
		if count, ok := t.Counts[parentID][subjectID]; ok {
			return count, true
		}
	}
	return 0, false
}

type noExpected struct{}

func (noExpected) Expected(string, string) int { return 0 }

func lookupOrNone(l ExpectedLookup) ExpectedLookup {
	if l == nil {
		return noExpected{}
	}
	return l
}
