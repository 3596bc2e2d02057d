package interpolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduce(t *testing.T) {
	testCases := []struct {
		reducer Reducer
		vals    []float64
		want    float64
	}{
		{Median, []float64{5, 1, 3}, 3},
		{Median, []float64{4, 1, 3, 2}, 2.5},
		{Median, []float64{7}, 7},
		{Mean, []float64{1, 2, 3, 6}, 3},
		{Min, []float64{4, -2, 9}, -2},
		{Max, []float64{4, -2, 9}, 9},
	}
	for _, tc := range testCases {
		got := tc.reducer.Reduce(append([]float64(nil), tc.vals...))
		assert.Equal(t, tc.want, got, "%s of %v", tc.reducer, tc.vals)
	}
}

func TestParseReducer(t *testing.T) {
	for _, r := range []Reducer{Median, Mean, Min, Max} {
		got, err := ParseReducer(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	got, err := ParseReducer(" MEAN")
	require.NoError(t, err)
	assert.Equal(t, Mean, got)

	_, err = ParseReducer("mode")
	assert.Error(t, err)
}

func TestNodeQueue_OrdersByDistanceThenArrival(t *testing.T) {
	var q nodeQueue
	q.push(10, 2)
	q.push(11, 1)
	q.push(12, 2)
	q.push(13, 0.5)
	q.push(14, 1)

	var order []int
	for q.Len() > 0 {
		order = append(order, q.pop().index)
	}
	assert.Equal(t, []int{13, 11, 14, 10, 12}, order)

	q.push(1, 1)
	q.reset()
	assert.Equal(t, 0, q.Len())
}
