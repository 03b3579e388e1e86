package scoring

import (
	"sort"

	"github.com/zafarze/gat-sub000/internal/models"
)

// Rank sorts scores descending and returns the 1-based position of the first occurrence of
// score, so tied students share the best position. It returns 0 when score is absent.
func Rank(scores []int, score int) int {
	sorted := append([]int(nil), scores...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for i, s := range sorted {
		if s == score {
			return i + 1
		}
	}
	return 0
}

// RankMap ranks every member of a population keyed by an arbitrary id.
func RankMap(scores map[string]int) map[string]int {
	values := make([]int, 0, len(scores))
	for _, s := range scores {
		values = append(values, s)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))
	first := make(map[int]int, len(values))
	for i, v := range values {
		if _, ok := first[v]; !ok {
			first[v] = i + 1
		}
	}
	ranks := make(map[string]int, len(scores))
	for key, s := range scores {
		ranks[key] = first[s]
	}
	return ranks
}

// Placement is a student's rank within the class, the parallel group and the school.
type Placement struct {
	ClassRank    int `json:"class_rank"`
	ClassSize    int `json:"class_size"`
	ParallelRank int `json:"parallel_rank"`
	ParallelSize int `json:"parallel_size"`
	SchoolRank   int `json:"school_rank"`
	SchoolSize   int `json:"school_size"`
}

// Placements ranks every result row within its class, parallel (base class plus sections)
// and school. Callers pass the rows of one test administration; keys are result ids.
func Placements(rows []models.ResultRow) map[string]Placement {
	byClass := map[string]map[string]int{}
	byParallel := map[string]map[string]int{}
	bySchool := map[string]map[string]int{}
	add := func(groups map[string]map[string]int, group, key string, score int) {
		members, ok := groups[group]
		if !ok {
			members = map[string]int{}
			groups[group] = members
		}
		members[key] = score
	}
	for _, row := range rows {
		add(byClass, row.ClassID, row.ResultID, row.TotalScore)
		add(byParallel, row.BaseClassID(), row.ResultID, row.TotalScore)
		add(bySchool, row.SchoolID, row.ResultID, row.TotalScore)
	}

	classRanks := rankGroups(byClass)
	parallelRanks := rankGroups(byParallel)
	schoolRanks := rankGroups(bySchool)

	out := make(map[string]Placement, len(rows))
	for _, row := range rows {
		out[row.ResultID] = Placement{
			ClassRank:    classRanks[row.ResultID],
			ClassSize:    len(byClass[row.ClassID]),
			ParallelRank: parallelRanks[row.ResultID],
			ParallelSize: len(byParallel[row.BaseClassID()]),
			SchoolRank:   schoolRanks[row.ResultID],
			SchoolSize:   len(bySchool[row.SchoolID]),
		}
	}
	return out
}

func rankGroups(groups map[string]map[string]int) map[string]int {
	out := map[string]int{}
	for _, members := range groups {
		for key, rank := range RankMap(members) {
			out[key] = rank
		}
	}
	return out
}
