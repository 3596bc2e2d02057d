package dataset

import (
	"math"

	"github.com/ctessum/sparse"
)

// FromDense copies a sparse.DenseArray into a new Float64 block.
// NaN elements are blank.
func FromDense(a *sparse.DenseArray) (*Dataset, error) {
	d, err := Allocate(Float64, a.Shape, Options{})
	if err != nil {
		return nil, err
	}
	copy(Elements[float64](d), a.Elements)
	return d, nil
}

// ToDense copies d's values into a new sparse.DenseArray.
// Blank elements become NaN whatever the source type.
func (d *Dataset) ToDense() *sparse.DenseArray {
	d.checkLive()
	a := sparse.ZerosDense(append([]int(nil), d.size...)...)
	for i := 0; i < d.n; i++ {
		bi := d.BlockIndex(i)
		if d.BlockIsBlank(bi) {
			a.Elements[i] = math.NaN()
			continue
		}
		a.Elements[i] = d.BlockValue(bi)
	}
	return a
}
