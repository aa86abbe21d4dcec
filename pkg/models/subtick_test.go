package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectSubtick(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		original int
		creation int
		target   int
		want     int
	}{
		{"doubling granularity doubles the subtick", 2, 4, 8, 4},
		{"same granularity is identity", 3, 4, 4, 3},
		{"halving granularity rounds", 3, 4, 2, 2},
		{"zero subtick stays zero", 0, 4, 16, 0},
		{"coarse to fine", 1, 2, 10, 5},
		{"fine to coarse rounds half up", 5, 10, 2, 1},
		{"zero creation granularity returns original", 7, 0, 8, 7},
		{"zero target granularity returns original", 7, 4, 0, 7},
		{"negative granularity returns original", 7, -2, 8, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProjectSubtick(tt.original, tt.creation, tt.target))
		})
	}
}

// Projecting to a new granularity and back recovers the original value
// within a single unit of rounding tolerance.
func TestProjectSubtickRoundTrip(t *testing.T) {
	t.Parallel()

	granularities := []int{1, 2, 3, 4, 5, 8, 12, 16, 100}
	for _, g1 := range granularities {
		for _, g2 := range granularities {
			for original := 0; original <= g1; original++ {
				projected := ProjectSubtick(original, g1, g2)
				back := ProjectSubtick(projected, g2, g1)
				diff := back - original
				if diff < 0 {
					diff = -diff
				}
				assert.LessOrEqual(t, diff, 1,
					"round trip %d via %d->%d->%d drifted to %d", original, g1, g2, g1, back)
			}
		}
	}
}

func TestItemDisplaySubtick(t *testing.T) {
	t.Parallel()

	end := 6
	item := Item{
		Subtick:             2,
		OriginalSubtick:     2,
		OriginalEndSubtick:  &end,
		CreationGranularity: 4,
	}

	assert.Equal(t, 4, item.DisplaySubtick(8))
	if assert.NotNil(t, item.DisplayEndSubtick(8)) {
		assert.Equal(t, 12, *item.DisplayEndSubtick(8))
	}

	item.OriginalEndSubtick = nil
	assert.Nil(t, item.DisplayEndSubtick(8))
}

func TestItemIsRanged(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Item{TypeName: ItemTypePeriod}).IsRanged())
	assert.True(t, (&Item{TypeName: ItemTypeAge}).IsRanged())
	assert.False(t, (&Item{TypeName: ItemTypeEvent}).IsRanged())
	assert.False(t, (&Item{TypeName: ""}).IsRanged())
}
