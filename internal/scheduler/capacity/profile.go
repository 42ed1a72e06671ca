package capacity

import (
	"sort"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Profile maps depths below the makespan to the number of machines available from the
// makespan down to that depth. Depths are only recorded where availability changes; use
// Ceiling to look up an arbitrary depth.
type Profile struct {
	depths    []int
	available []int
}

func NewProfile(availableByDepth map[int]int) *Profile {
	depths := maps.Keys(availableByDepth)
	slices.Sort(depths)
	available := make([]int, len(depths))
	for i, depth := range depths {
		available[i] = availableByDepth[depth]
	}
	return &Profile{
		depths:    depths,
		available: available,
	}
}

// Ceiling returns the availability recorded at the smallest depth greater than or equal to depth.
// The second return value is false if depth lies below every recorded depth, i.e., below time 0.
func (p *Profile) Ceiling(depth int) (int, bool) {
	i := sort.SearchInts(p.depths, depth)
	if i == len(p.depths) {
		return 0, false
	}
	return p.available[i], true
}

func (p *Profile) AsMap() map[int]int {
	rv := make(map[int]int, len(p.depths))
	for i, depth := range p.depths {
		rv[depth] = p.available[i]
	}
	return rv
}
