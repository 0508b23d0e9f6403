package schedule

import (
	"fmt"
	"sort"
)

// SlotFlag is the backend's raw availability verdict for one slot.
type SlotFlag struct {
	Label     string // "HH:MM"
	Available bool
}

// FilterResult maps date -> set of slot labels that can start or belong to a
// contiguous booking of the requested duration. It is a display overlay only;
// the grid it refines is never touched.
type FilterResult map[string]map[string]struct{}

// Contains reports whether a slot survived the filter.
func (r FilterResult) Contains(date, label string) bool {
	if r == nil {
		return false
	}
	_, ok := r[date]
	if !ok {
		return false
	}
	_, ok = r[date][label]
	return ok
}

// FilterByDuration reduces per-day availability flags to the slots that fit a
// contiguous booking of durationMin minutes. Every member of each fully
// available k-slot block is marked valid, k = durationMin / 15. A duration
// that is not a multiple of the granularity is a configuration error.
func FilterByDuration(flags map[string][]SlotFlag, durationMin int) (FilterResult, error) {
	if durationMin <= 0 || durationMin%GranularityMinutes != 0 {
		return nil, fmt.Errorf("duration %d min is not a multiple of %d", durationMin, GranularityMinutes)
	}
	k := durationMin / GranularityMinutes

	result := make(FilterResult, len(flags))
	for date, daySlots := range flags {
		// Inputs are expected presorted but not trusted.
		sorted := make([]SlotFlag, len(daySlots))
		copy(sorted, daySlots)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Label < sorted[j].Label
		})

		valid := make(map[string]struct{})
		for i := 0; i+k <= len(sorted); i++ {
			ok := true
			for j := i; j < i+k; j++ {
				if !sorted[j].Available {
					ok = false
					break
				}
			}
			if ok {
				for j := i; j < i+k; j++ {
					valid[sorted[j].Label] = struct{}{}
				}
			}
		}
		result[date] = valid
	}
	return result, nil
}
