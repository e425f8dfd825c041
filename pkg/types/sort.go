package types

import "strings"

// PersonSort selects the ordering of the person list.
type PersonSort string

const (
	SortLatest       PersonSort = "latest"        // Newest person first (default)
	SortAlphabetical PersonSort = "alphabetical"  // Case-insensitive by name
	SortMostMemories PersonSort = "most_memories" // Highest memory count first
)

// ValidPersonSorts lists every supported sort option.
var ValidPersonSorts = []PersonSort{SortLatest, SortAlphabetical, SortMostMemories}

// ParsePersonSort maps user input to a PersonSort, falling back to SortLatest.
// It accepts the upper-case forms (LATEST, MOST_MEMORIES) as well.
func ParsePersonSort(s string) PersonSort {
	normalized := PersonSort(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range ValidPersonSorts {
		if normalized == valid {
			return valid
		}
	}
	return SortLatest
}
