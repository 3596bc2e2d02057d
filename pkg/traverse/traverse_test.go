package traverse

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilefill/pkg/dataset"
)

// createTestBlock fills a float64 block with its own flat indices
func createTestBlock(t *testing.T, size ...int) *dataset.Dataset {
	t.Helper()
	d := dataset.New(dataset.Float64, size...)
	for i := 0; i < d.Len(); i++ {
		d.SetValue(i, float64(i))
	}
	return d
}

func TestRows_Block_IsOneRun(t *testing.T) {
	d := createTestBlock(t, 3, 4)

	var runs [][2]int
	Rows(d, func(start, n int) bool {
		runs = append(runs, [2]int{start, n})
		return true
	})
	assert.Equal(t, [][2]int{{0, 12}}, runs)
}

func TestRows_Tile_StepsByBlockStride(t *testing.T) {
	d := createTestBlock(t, 4, 5, 6)
	tile, err := d.View([]int{1, 1, 2}, []int{2, 2, 3})
	require.NoError(t, err)

	var starts []int
	Rows(tile, func(start, n int) bool {
		assert.Equal(t, 3, n)
		starts = append(starts, start)
		return true
	})

	// Block increments are 30 and 6
	want := []int{38, 44, 68, 74}
	if diff := cmp.Diff(want, starts); diff != "" {
		t.Errorf("row starts mismatch (-want +got):\n%s", diff)
	}
}

func TestRows_StopsEarly(t *testing.T) {
	d := createTestBlock(t, 6, 6)
	tile, err := d.View([]int{0, 1}, []int{6, 2})
	require.NoError(t, err)

	calls := 0
	Rows(tile, func(start, n int) bool {
		calls++
		return calls < 2
	})
	assert.Equal(t, 2, calls)
}

func TestHasBlank_CachesAnswer(t *testing.T) {
	d := createTestBlock(t, 4, 4)
	assert.False(t, HasBlank(d))
	assert.Equal(t, dataset.False, d.Flags.Blank)

	// Writes other than SetBlank leave a stale answer until the flags are reset
	d.SetValue(5, math.NaN())
	assert.False(t, HasBlank(d))

	d.Flags.Reset()
	assert.True(t, HasBlank(d))
	assert.Equal(t, dataset.True, d.Flags.Blank)
}

func TestHasBlank_SetBlankUpdatesCachedAnswer(t *testing.T) {
	d := createTestBlock(t, 4, 4)
	tile, err := d.View([]int{1, 1}, []int{2, 2})
	require.NoError(t, err)
	assert.False(t, HasBlank(d))
	assert.False(t, HasBlank(tile))

	tile.SetBlank(0)
	assert.True(t, HasBlank(tile))
	assert.True(t, HasBlank(d))
	assert.Equal(t, 1, CountBlank(d))
}

func TestHasBlank_OnlyLooksInsideTile(t *testing.T) {
	types := []dataset.DataType{
		dataset.Uint8, dataset.Int16, dataset.Uint64, dataset.Int64,
		dataset.Float16, dataset.Float32, dataset.Float64,
	}
	for _, typ := range types {
		t.Run(typ.String(), func(t *testing.T) {
			d := dataset.New(typ, 4, 4)
			// Block element (0, 0) is outside the tile
			d.SetBlank(0)

			tile, err := d.View([]int{1, 1}, []int{2, 2})
			require.NoError(t, err)
			assert.False(t, HasBlank(tile))

			tile.SetBlank(3)
			tile.Flags.Reset()
			assert.True(t, HasBlank(tile))
			assert.Equal(t, 2, CountBlank(d))
		})
	}
}

func TestCountBlank(t *testing.T) {
	d := dataset.New(dataset.Int32, 10)
	for _, i := range []int{1, 4, 9} {
		d.SetBlank(i)
	}
	assert.Equal(t, 3, CountBlank(d))
	assert.Equal(t, dataset.True, d.Flags.Blank)

	clean := dataset.New(dataset.Int32, 10)
	assert.Equal(t, 0, CountBlank(clean))
	assert.Equal(t, dataset.False, clean.Flags.Blank)
}

func TestOperate_TileWithScalar(t *testing.T) {
	d := createTestBlock(t, 3, 4)
	tile, err := d.View([]int{1, 1}, []int{2, 2})
	require.NoError(t, err)

	var idx []int
	var sum float64
	err = Operate(tile, nil, Options{Scalar: 10}, func(i int, iv, ov float64) {
		idx = append(idx, i)
		sum += iv * ov
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, idx)
	assert.Equal(t, (5+6+9+10)*10.0, sum)
}

func TestOperate_PairsTileWithBlockOfOtherType(t *testing.T) {
	d := createTestBlock(t, 4, 4)
	tile, err := d.View([]int{2, 0}, []int{2, 3})
	require.NoError(t, err)

	other := dataset.New(dataset.Uint8, 2, 3)
	for i := 0; i < other.Len(); i++ {
		other.SetValue(i, float64(100+i))
	}

	var pairs [][2]float64
	err = Operate(tile, other, Options{}, func(i int, iv, ov float64) {
		pairs = append(pairs, [2]float64{iv, ov})
	})
	require.NoError(t, err)
	want := [][2]float64{{8, 100}, {9, 101}, {10, 102}, {12, 103}, {13, 104}, {14, 105}}
	assert.Equal(t, want, pairs)
}

func TestOperate_SkipBlank(t *testing.T) {
	d := createTestBlock(t, 2, 3)
	d.SetBlank(1)
	d.SetBlank(4)

	var idx []int
	err := Operate(d, nil, Options{SkipBlank: true}, func(i int, iv, ov float64) {
		idx = append(idx, i)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3, 5}, idx)

	// Without skipping the blanks arrive as NaN
	nan := 0
	require.NoError(t, Operate(d, nil, Options{}, func(i int, iv, ov float64) {
		if math.IsNaN(iv) {
			nan++
		}
	}))
	assert.Equal(t, 2, nan)
}

func TestOperate_ShapeMismatch_ReturnsTypeMismatch(t *testing.T) {
	a := dataset.New(dataset.Float32, 2, 3)
	b := dataset.New(dataset.Float32, 3, 2)

	err := Operate(a, b, Options{}, func(int, float64, float64) {})
	assert.ErrorIs(t, err, dataset.ErrTypeMismatch)
}

func TestValues(t *testing.T) {
	d := createTestBlock(t, 3, 3)
	tile, err := d.View([]int{0, 1}, []int{3, 2})
	require.NoError(t, err)
	tile.SetBlank(2)

	assert.Equal(t, []float64{1, 2, 5, 7, 8}, Values(tile, true))

	all := Values(tile, false)
	require.Len(t, all, 6)
	assert.True(t, math.IsNaN(all[2]))
}

func TestFill_WritesOnlyTheTile(t *testing.T) {
	d := dataset.New(dataset.Uint16, 3, 3)
	tile, err := d.View([]int{1, 1}, []int{2, 2})
	require.NoError(t, err)

	Fill(tile, 7)
	want := []uint16{0, 0, 0, 0, 7, 7, 0, 7, 7}
	assert.Equal(t, want, dataset.Elements[uint16](d))
	assert.Equal(t, dataset.Unknown, tile.Flags.Blank)
}
