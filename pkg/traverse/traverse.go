// Package traverse walks the elements of blocks and tiles.
//
// A tile's elements are not contiguous in its block: each row along the
// fastest dimension is, but consecutive rows are one block row apart. Every
// walk here goes row by row so the same loops serve blocks and tiles.
package traverse

import (
	"fmt"
	"math"

	"tilefill/pkg/dataset"
	"tilefill/pkg/dimension"
)

// rowCursor steps through the row starts of a dataset in element order
type rowCursor struct {
	size  []int
	inc   []int
	coord [dimension.MaxDims]int
	start int
	width int
	rows  int
}

func newRowCursor(d *dataset.Dataset) *rowCursor {
	size := d.Size()
	c := &rowCursor{
		size:  size,
		inc:   d.BlockIncrements(),
		start: d.Offset(),
		width: size[len(size)-1],
	}
	if d.Contiguous() {
		// One run covers everything
		c.width = d.Len()
	}
	c.rows = d.Len() / c.width
	return c
}

// next moves to the following row
func (c *rowCursor) next() {
	for k := len(c.size) - 2; k >= 0; k-- {
		c.coord[k]++
		c.start += c.inc[k]
		if c.coord[k] < c.size[k] {
			return
		}
		c.start -= c.coord[k] * c.inc[k]
		c.coord[k] = 0
	}
}

// Rows calls fn with the block flat index and length of each contiguous run
// of d's elements, in element order. Returning false from fn stops the walk.
func Rows(d *dataset.Dataset, fn func(start, n int) bool) {
	c := newRowCursor(d)
	for r := 0; r < c.rows; r++ {
		if !fn(c.start, c.width) {
			return
		}
		c.next()
	}
}

// HasBlank reports whether d holds any blank element. The answer is cached
// in d.Flags.Blank; a cached answer is returned without scanning.
func HasBlank(d *dataset.Dataset) bool {
	if d.Flags.Blank.Known() {
		return d.Flags.Blank == dataset.True
	}
	has := countBlank(d, true) > 0
	d.Flags.Blank = dataset.TristateOf(has)
	return has
}

// CountBlank returns the number of blank elements in d
func CountBlank(d *dataset.Dataset) int {
	if d.Flags.Blank == dataset.False {
		return 0
	}
	n := countBlank(d, false)
	d.Flags.Blank = dataset.TristateOf(n > 0)
	return n
}

func countBlank(d *dataset.Dataset, first bool) int {
	switch d.Type() {
	case dataset.Uint8:
		return countSentinel(d, dataset.Elements[uint8](d), math.MaxUint8, first)
	case dataset.Int8:
		return countSentinel(d, dataset.Elements[int8](d), math.MinInt8, first)
	case dataset.Uint16:
		return countSentinel(d, dataset.Elements[uint16](d), math.MaxUint16, first)
	case dataset.Int16:
		return countSentinel(d, dataset.Elements[int16](d), math.MinInt16, first)
	case dataset.Uint32:
		return countSentinel(d, dataset.Elements[uint32](d), math.MaxUint32, first)
	case dataset.Int32:
		return countSentinel(d, dataset.Elements[int32](d), math.MinInt32, first)
	case dataset.Uint64:
		return countSentinel(d, dataset.Elements[uint64](d), math.MaxUint64, first)
	case dataset.Int64:
		return countSentinel(d, dataset.Elements[int64](d), math.MinInt64, first)
	case dataset.Float32:
		return countNaN(d, dataset.Elements[float32](d), first)
	case dataset.Float64:
		return countNaN(d, dataset.Elements[float64](d), first)
	}

	// Float16 has no native comparison
	n := 0
	Rows(d, func(start, w int) bool {
		for bi := start; bi < start+w; bi++ {
			if d.BlockIsBlank(bi) {
				n++
				if first {
					return false
				}
			}
		}
		return true
	})
	return n
}

func countSentinel[T comparable](d *dataset.Dataset, s []T, blank T, first bool) int {
	n := 0
	Rows(d, func(start, w int) bool {
		for _, v := range s[start : start+w] {
			if v == blank {
				n++
				if first {
					return false
				}
			}
		}
		return true
	})
	return n
}

// countNaN relies on NaN being the only value that differs from itself
func countNaN[T float32 | float64](d *dataset.Dataset, s []T, first bool) int {
	n := 0
	Rows(d, func(start, w int) bool {
		for _, v := range s[start : start+w] {
			if v != v {
				n++
				if first {
					return false
				}
			}
		}
		return true
	})
	return n
}

// Options controls Operate
type Options struct {
	// SkipBlank skips elements that are blank in the input
	SkipBlank bool

	// Scalar is paired with every element when there is no companion dataset
	Scalar float64
}

// Operate calls fn for every element of in, in element order, with the
// element's local flat index, its value and the matching value of other.
// other may be a block or tile of any type with the same shape as in; when
// it is nil opts.Scalar is passed instead. With opts.SkipBlank, blank input
// elements are skipped; a dataset already known to be blank-free is walked
// without any blank comparison.
func Operate(in, other *dataset.Dataset, opts Options, fn func(i int, iv, ov float64)) error {
	if other != nil && !dataset.SameShape(in, other) {
		return fmt.Errorf("%w: %v and %v", dataset.ErrTypeMismatch, in.Size(), other.Size())
	}
	checkBlank := opts.SkipBlank && HasBlank(in)

	ic := newRowCursor(in)
	var oc *rowCursor
	if other != nil {
		oc = newRowCursor(other)
	}

	// The two datasets may split into runs differently when only one of
	// them is contiguous, so walk element by element inside runs
	oStart, oLeft := 0, 0
	i := 0
	for r := 0; r < ic.rows; r++ {
		for bi := ic.start; bi < ic.start+ic.width; bi++ {
			ov := opts.Scalar
			if oc != nil {
				if oLeft == 0 {
					oStart, oLeft = oc.start, oc.width
					oc.next()
				}
				ov = other.BlockValue(oStart)
				oStart++
				oLeft--
			}
			if !checkBlank || !in.BlockIsBlank(bi) {
				fn(i, in.BlockValue(bi), ov)
			}
			i++
		}
		ic.next()
	}
	return nil
}

// Values returns d's elements as float64 in element order. With skipBlank,
// blank elements are left out; otherwise they come back as NaN.
func Values(d *dataset.Dataset, skipBlank bool) []float64 {
	out := make([]float64, 0, d.Len())
	checkBlank := HasBlank(d)
	Rows(d, func(start, w int) bool {
		for bi := start; bi < start+w; bi++ {
			if checkBlank && d.BlockIsBlank(bi) {
				if !skipBlank {
					out = append(out, math.NaN())
				}
				continue
			}
			out = append(out, d.BlockValue(bi))
		}
		return true
	})
	return out
}

// Fill writes v into every element of d
func Fill(d *dataset.Dataset, v float64) {
	Rows(d, func(start, w int) bool {
		for bi := start; bi < start+w; bi++ {
			d.SetBlockValue(bi, v)
		}
		return true
	})
	d.Flags.Reset()
}
