package dimension

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

var testShapes = [][]int{
	{7},
	{4, 5},
	{3, 4, 5},
	{2, 3, 4, 3},
	{2, 2, 3, 2, 3},
}

// TestIndexRoundTrip verifies CoordToIndex and IndexToCoord are exact inverses
func TestIndexRoundTrip(t *testing.T) {
	for _, size := range testShapes {
		coord := make([]int, len(size))
		for index := 0; index < Total(size); index++ {
			IndexToCoord(index, size, coord)
			for k, c := range coord {
				if c < 0 || c >= size[k] {
					t.Fatalf("%v: index %d gave coordinate %v outside the array", size, index, coord)
				}
			}
			if got := CoordToIndex(coord, size); got != index {
				t.Errorf("%v: index %d -> %v -> %d", size, index, coord, got)
			}
		}
	}
}

func TestIncrements(t *testing.T) {
	if diff := cmp.Diff([]int{20, 5, 1}, Increments([]int{3, 4, 5})); diff != "" {
		t.Errorf("Increments mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 60, Total([]int{3, 4, 5}))
}

func TestTileToBlock(t *testing.T) {
	// 2x3 tile starting at (1, 2) of a 4x6 block
	block := []int{4, 6}
	start := CoordToIndex([]int{1, 2}, block)

	var got []int
	for i := 0; i < 6; i++ {
		got = append(got, TileToBlock(i, []int{2, 3}, block, start))
	}
	if diff := cmp.Diff([]int{8, 9, 10, 14, 15, 16}, got); diff != "" {
		t.Errorf("TileToBlock mismatch (-want +got):\n%s", diff)
	}
}

func TestDistance(t *testing.T) {
	a, b := []int{0, 0, 0}, []int{3, -4, 12}
	assert.Equal(t, 13.0, Distance(a, b, Radial))
	assert.Equal(t, 19.0, Distance(a, b, Manhattan))
	assert.Equal(t, math.Sqrt2, Distance([]int{1, 1}, []int{2, 2}, Radial))
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("Manhattan")
	assert.NoError(t, err)
	assert.Equal(t, Manhattan, m)

	m, err = ParseMetric("radial")
	assert.NoError(t, err)
	assert.Equal(t, Radial, m)

	_, err = ParseMetric("chebyshev")
	assert.Error(t, err)
}
