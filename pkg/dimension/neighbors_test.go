package dimension

import (
	"fmt"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

// TestNeighborCountsInterior checks the neighbor count of an interior point
func TestNeighborCountsInterior(t *testing.T) {
	testCases := []struct {
		size []int
		conn int
		want int
	}{
		{[]int{5}, 1, 2},
		{[]int{5, 5}, 1, 4},
		{[]int{5, 5}, 2, 8},
		{[]int{5, 5, 5}, 1, 6},
		{[]int{5, 5, 5}, 2, 18},
		{[]int{5, 5, 5}, 3, 26},
		{[]int{3, 3, 3, 3}, 1, 8},
		{[]int{3, 3, 3, 3}, 4, 80},
	}

	for _, tc := range testCases {
		center := make([]int, len(tc.size))
		for k := range center {
			center[k] = tc.size[k] / 2
		}
		index := CoordToIndex(center, tc.size)

		f := NewNeighborFinder(tc.size, tc.conn)
		got := f.Neighbors(index, nil)
		assert.Len(t, got, tc.want, "%v connectivity %d", tc.size, tc.conn)
		assert.Equal(t, tc.want, MaxNeighbors(len(tc.size), tc.conn))
	}
}

// TestNeighbors2DCorner checks boundary suppression at a corner
func TestNeighbors2DCorner(t *testing.T) {
	size := []int{4, 5}

	got := sorted(NewNeighborFinder(size, 1).Neighbors(0, nil))
	if diff := cmp.Diff([]int{1, 5}, got); diff != "" {
		t.Errorf("corner face neighbors (-want +got):\n%s", diff)
	}

	got = sorted(NewNeighborFinder(size, 2).Neighbors(19, nil))
	if diff := cmp.Diff([]int{13, 14, 18}, got); diff != "" {
		t.Errorf("corner neighbors with diagonals (-want +got):\n%s", diff)
	}
}

// TestNeighborSymmetry verifies j is a neighbor of i exactly when i is a
// neighbor of j, and that no neighbor falls outside the array
func TestNeighborSymmetry(t *testing.T) {
	for _, size := range testShapes {
		for conn := 1; conn <= len(size); conn++ {
			t.Run(fmt.Sprintf("%v/conn%d", size, conn), func(t *testing.T) {
				f := NewNeighborFinder(size, conn)
				n := Total(size)

				adjacent := make([]map[int]bool, n)
				for i := 0; i < n; i++ {
					adjacent[i] = make(map[int]bool)
					for _, j := range f.Neighbors(i, nil) {
						if j < 0 || j >= n {
							t.Fatalf("index %d: neighbor %d outside [0, %d)", i, j, n)
						}
						if adjacent[i][j] {
							t.Fatalf("index %d: neighbor %d listed twice", i, j)
						}
						adjacent[i][j] = true
					}
				}

				for i := 0; i < n; i++ {
					for j := range adjacent[i] {
						if !adjacent[j][i] {
							t.Errorf("%d lists %d but %d does not list %d", i, j, j, i)
						}
					}
				}
			})
		}
	}
}

// TestNeighborsMatchGeneric verifies the boundary-flag tables agree with the
// generic enumeration for every point of 1-3D arrays
func TestNeighborsMatchGeneric(t *testing.T) {
	for _, size := range testShapes[:3] {
		for conn := 1; conn <= len(size); conn++ {
			f := NewNeighborFinder(size, conn)
			for i := 0; i < Total(size); i++ {
				want := sorted(Neighbors(i, size, conn, nil))
				got := sorted(f.Neighbors(i, nil))
				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatalf("%v conn %d index %d (-generic +finder):\n%s", size, conn, i, diff)
				}
			}
		}
	}
}

func TestNeighbors_NoAllocation(t *testing.T) {
	for _, size := range [][]int{{10, 10}, {6, 6, 6}, {4, 4, 4, 4}} {
		f := NewNeighborFinder(size, len(size))
		buf := make([]int, 0, f.MaxNeighbors())
		allocs := testing.AllocsPerRun(100, func() {
			buf = f.Neighbors(Total(size)/2, buf)
		})
		assert.Zero(t, allocs, "%v", size)
	}
}

func TestNeighborFinder_InvalidConnectivity_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "dimension: connectivity 3 outside 1..2", func() {
		NewNeighborFinder([]int{4, 4}, 3)
	})
	assert.Panics(t, func() { Neighbors(0, []int{4}, 0, nil) })
}

func BenchmarkNeighborFinder3D(b *testing.B) {
	size := []int{64, 64, 64}
	f := NewNeighborFinder(size, 1)
	buf := make([]int, 0, f.MaxNeighbors())
	n := Total(size)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf = f.Neighbors(i%n, buf)
	}
}

func sorted(s []int) []int {
	out := append([]int(nil), s...)
	sort.Ints(out)
	return out
}
