package tessellation

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"tilefill/pkg/dataset"
	"tilefill/pkg/dimension"
)

// GroupPermutation returns the permutation that gathers an array of extents
// size into consecutive groups of extents group: perm[i] is the memory flat
// index of the element at position i of the grouped order. Groups follow
// each other in row-major order, and so do the elements inside a group.
// Every extent of group must divide the matching extent of size.
func GroupPermutation(size, group []int) []int {
	nd := len(size)
	groups := make([]int, nd)
	for i := range size {
		if group[i] < 1 || size[i]%group[i] != 0 {
			panic(fmt.Sprintf("tessellation: group %v does not divide %v", group, size))
		}
		groups[i] = size[i] / group[i]
	}

	glen := dimension.Total(group)
	perm := make([]int, dimension.Total(size))
	gc := make([]int, nd)
	wc := make([]int, nd)
	coord := make([]int, nd)
	for i := range perm {
		dimension.IndexToCoord(i/glen, groups, gc)
		dimension.IndexToCoord(i%glen, group, wc)
		for k := range coord {
			coord[k] = gc[k]*group[k] + wc[k]
		}
		perm[i] = dimension.CoordToIndex(coord, size)
	}
	return perm
}

// BuildPermutation builds the tile permutation if it is not built yet.
// perm[id] is the flat index over TileGrid of tile id.
func (t *Tessellation) BuildPermutation() {
	t.permMu.Lock()
	defer t.permMu.Unlock()
	if t.perm != nil {
		return
	}
	t.perm = GroupPermutation(t.tileGrid, t.tilesPerCh)
	logrus.Debugf("tessellation: tile permutation over %v built", t.tileGrid)
}

// Permutation returns the tile permutation
func (t *Tessellation) Permutation() []int {
	t.BuildPermutation()
	return t.perm
}

// ElementPermutation returns the element permutation, building it on first
// use. perm[i] is the memory flat index of the element at position i when
// every channel's elements are stored one channel after the other.
func (t *Tessellation) ElementPermutation() []int {
	t.permMu.Lock()
	defer t.permMu.Unlock()
	if t.elemPerm == nil {
		t.elemPerm = GroupPermutation(t.size, t.channelSize)
		logrus.Debugf("tessellation: element permutation over %v built", t.size)
	}
	return t.elemPerm
}

// Apply reorders x from memory order into permuted order
func Apply[T any](x []T, perm []int) []T {
	checkLen(len(x), perm)
	out := make([]T, len(x))
	for i, p := range perm {
		out[i] = x[p]
	}
	return out
}

// Inverse reorders x from permuted order back into memory order
func Inverse[T any](x []T, perm []int) []T {
	checkLen(len(x), perm)
	out := make([]T, len(x))
	for i, p := range perm {
		out[p] = x[i]
	}
	return out
}

// ApplyDataset returns a new block holding d's elements in permuted order.
// d must be a block with one element per permutation entry.
func ApplyDataset(d *dataset.Dataset, perm []int) (*dataset.Dataset, error) {
	return permuteDataset(d, perm, false)
}

// InverseDataset undoes ApplyDataset
func InverseDataset(d *dataset.Dataset, perm []int) (*dataset.Dataset, error) {
	return permuteDataset(d, perm, true)
}

func permuteDataset(d *dataset.Dataset, perm []int, inverse bool) (*dataset.Dataset, error) {
	if !d.IsBlock() || d.Len() != len(perm) {
		return nil, fmt.Errorf("%w: permutation of %d entries on %v dataset",
			dataset.ErrTypeMismatch, len(perm), d.Size())
	}
	out := dataset.New(d.Type(), d.Size()...)
	out.Name = d.Name
	out.WCS = d.WCS
	out.Flags.Blank = d.Flags.Blank

	esize := d.Type().Size()
	src, dst := d.Bytes(), out.Bytes()
	for i, p := range perm {
		from, to := p, i
		if inverse {
			from, to = i, p
		}
		copy(dst[to*esize:(to+1)*esize], src[from*esize:(from+1)*esize])
	}
	return out, nil
}

func checkLen(n int, perm []int) {
	if n != len(perm) {
		panic(fmt.Sprintf("tessellation: %d values for a permutation of %d", n, len(perm)))
	}
}
