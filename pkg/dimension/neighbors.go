package dimension

import "fmt"

// MaxDims is the largest dimensionality the neighbor enumeration supports
const MaxDims = 32

// offset is one precomputed neighbor step for arrays of at most 3 dimensions.
// needLo/needHi hold a bit per dimension in which the step moves down/up, so
// the step is valid unless the point sits on the matching boundary.
type offset struct {
	delta  int
	needLo uint8
	needHi uint8
}

// NeighborFinder enumerates grid neighbors of flat indices in an array of
// fixed extents. A neighbor differs from the point by ±1 in at most
// `connectivity` coordinates at once: 1 gives face neighbors, 2 adds edge
// diagonals, 3 adds corner diagonals.
//
// A finder is read-only after construction and safe for concurrent use.
type NeighborFinder struct {
	size    []int
	inc     []int
	conn    int
	offsets []offset
}

// NewNeighborFinder prepares neighbor enumeration for the given extents.
// It panics when connectivity is outside 1..len(size).
func NewNeighborFinder(size []int, connectivity int) *NeighborFinder {
	checkNeighborArgs(size, connectivity)
	f := &NeighborFinder{
		size: append([]int(nil), size...),
		inc:  Increments(size),
		conn: connectivity,
	}

	// Arrays up to 3D use a step table checked against boundary flags
	if len(size) <= 3 {
		var buf [3]int8
		step := buf[:len(size)]
		for k := range step {
			step[k] = -1
		}
		for {
			if nz := nonZero(step); nz > 0 && nz <= connectivity {
				var o offset
				for k, s := range step {
					o.delta += int(s) * f.inc[k]
					if s < 0 {
						o.needLo |= 1 << k
					} else if s > 0 {
						o.needHi |= 1 << k
					}
				}
				f.offsets = append(f.offsets, o)
			}
			if !nextStep(step) {
				break
			}
		}
	}
	return f
}

// Size returns the extents the finder was built for
func (f *NeighborFinder) Size() []int { return f.size }

// Connectivity returns the finder's connectivity
func (f *NeighborFinder) Connectivity() int { return f.conn }

// MaxNeighbors returns the most neighbors a single point can have
func (f *NeighborFinder) MaxNeighbors() int {
	return MaxNeighbors(len(f.size), f.conn)
}

// Neighbors appends the flat indices of index's neighbors to dst[:0] and
// returns the result. Passing a dst with capacity MaxNeighbors avoids any
// allocation.
func (f *NeighborFinder) Neighbors(index int, dst []int) []int {
	dst = dst[:0]
	if f.offsets == nil {
		return appendNeighbors(dst, index, f.size, f.inc, f.conn)
	}

	// Boundary flags of the point: bit k set when it sits on the low/high
	// edge of dimension k
	var lo, hi uint8
	rem := index
	for k := len(f.size) - 1; k >= 0; k-- {
		c := rem % f.size[k]
		rem /= f.size[k]
		if c == 0 {
			lo |= 1 << k
		}
		if c == f.size[k]-1 {
			hi |= 1 << k
		}
	}

	for _, o := range f.offsets {
		if o.needLo&lo != 0 || o.needHi&hi != 0 {
			continue
		}
		dst = append(dst, index+o.delta)
	}
	return dst
}

// Neighbors appends the neighbors of index in an array of the given extents
// to dst[:0]. It allocates nothing when dst has enough capacity, but hot
// loops should prefer a NeighborFinder.
func Neighbors(index int, size []int, connectivity int, dst []int) []int {
	checkNeighborArgs(size, connectivity)
	var ibuf [MaxDims]int
	inc := ibuf[:len(size)]
	acc := 1
	for i := len(size) - 1; i >= 0; i-- {
		inc[i] = acc
		acc *= size[i]
	}
	return appendNeighbors(dst[:0], index, size, inc, connectivity)
}

// MaxNeighbors returns the neighbor count of an interior point
func MaxNeighbors(ndim, connectivity int) int {
	total := 0
	for k := 1; k <= connectivity && k <= ndim; k++ {
		total += binomial(ndim, k) << k
	}
	return total
}

// appendNeighbors is the generic enumeration: it walks every step in
// {-1,0,1}^ndim and range-checks each moved coordinate.
func appendNeighbors(dst []int, index int, size, inc []int, conn int) []int {
	ndim := len(size)
	var cbuf [MaxDims]int
	var sbuf [MaxDims]int8
	coord := IndexToCoord(index, size, cbuf[:ndim])
	step := sbuf[:ndim]
	for k := range step {
		step[k] = -1
	}

	for {
		nz, delta, ok := 0, 0, true
		for k, s := range step {
			if s == 0 {
				continue
			}
			nz++
			if c := coord[k] + int(s); c < 0 || c >= size[k] {
				ok = false
			}
			delta += int(s) * inc[k]
		}
		if ok && nz > 0 && nz <= conn {
			dst = append(dst, index+delta)
		}
		if !nextStep(step) {
			return dst
		}
	}
}

// nextStep advances an odometer over {-1,0,1}^n, returning false after the
// last step.
func nextStep(step []int8) bool {
	for k := len(step) - 1; k >= 0; k-- {
		if step[k] < 1 {
			step[k]++
			return true
		}
		step[k] = -1
	}
	return false
}

func nonZero(step []int8) int {
	n := 0
	for _, s := range step {
		if s != 0 {
			n++
		}
	}
	return n
}

func binomial(n, k int) int {
	r := 1
	for i := 1; i <= k; i++ {
		r = r * (n - k + i) / i
	}
	return r
}

func checkNeighborArgs(size []int, connectivity int) {
	if len(size) == 0 || len(size) > MaxDims {
		panic(fmt.Sprintf("dimension: %d dimensions outside 1..%d", len(size), MaxDims))
	}
	if connectivity < 1 || connectivity > len(size) {
		panic(fmt.Sprintf("dimension: connectivity %d outside 1..%d", connectivity, len(size)))
	}
}
