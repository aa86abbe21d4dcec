package models

import "math"

// ProjectSubtick re-derives a displayed subtick from the value recorded when
// the item was created. Items remember both the subtick and the granularity
// they were created under, so the position can be projected onto any later
// granularity without accumulating rounding drift across repeated changes:
//
//	new = round(original / creationGranularity * newGranularity)
//
// Non-positive granularities return the original value unchanged; there is
// no meaningful scale to project onto.
func ProjectSubtick(original, creationGranularity, newGranularity int) int {
	if creationGranularity <= 0 || newGranularity <= 0 {
		return original
	}
	return int(math.Round(float64(original) / float64(creationGranularity) * float64(newGranularity)))
}
