// Package dimension converts between coordinates and flat indices of
// row-major N-dimensional arrays and enumerates grid neighbors.
//
// Extents are ordered slowest dimension first, so the last dimension is
// contiguous in memory.
package dimension

import (
	"fmt"
	"math"
	"strings"
)

// Total returns the number of elements of an array with the given extents
func Total(size []int) int {
	n := 1
	for _, s := range size {
		n *= s
	}
	return n
}

// Increments returns the flat-index step of each dimension
func Increments(size []int) []int {
	inc := make([]int, len(size))
	acc := 1
	for i := len(size) - 1; i >= 0; i-- {
		inc[i] = acc
		acc *= size[i]
	}
	return inc
}

// CoordToIndex converts a coordinate to its flat index
func CoordToIndex(coord, size []int) int {
	index := 0
	for i := range size {
		index = index*size[i] + coord[i]
	}
	return index
}

// IndexToCoord writes the coordinate of a flat index into coord, which must
// have one element per dimension, and returns it.
func IndexToCoord(index int, size, coord []int) []int {
	for i := len(size) - 1; i >= 0; i-- {
		coord[i] = index % size[i]
		index /= size[i]
	}
	return coord
}

// TileToBlock converts a flat index inside a tile of extents tileSize, whose
// first element is at flat index blockStart of a block with extents
// blockSize, into the block's flat index.
func TileToBlock(index int, tileSize, blockSize []int, blockStart int) int {
	out := blockStart
	stride := 1
	for i := len(tileSize) - 1; i >= 0; i-- {
		out += (index % tileSize[i]) * stride
		index /= tileSize[i]
		stride *= blockSize[i]
	}
	return out
}

// Metric selects how distances between grid points are measured
type Metric int

const (
	// Radial is the Euclidean distance
	Radial Metric = iota

	// Manhattan is the sum of absolute coordinate differences
	Manhattan
)

func (m Metric) String() string {
	if m == Manhattan {
		return "manhattan"
	}
	return "radial"
}

// ParseMetric converts "radial" or "manhattan" to a Metric
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "radial", "euclidean":
		return Radial, nil
	case "manhattan":
		return Manhattan, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", name)
	}
}

// Distance measures the distance between two coordinates
func Distance(a, b []int, m Metric) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		if m == Manhattan {
			if d < 0 {
				d = -d
			}
			sum += float64(d)
			continue
		}
		sum += float64(d * d)
	}
	if m == Manhattan {
		return sum
	}
	return math.Sqrt(sum)
}
