package dataset

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/x448/float16"
)

// BlockIndex converts a flat index local to d into a flat index of the block
func (d *Dataset) BlockIndex(i int) int {
	if d.parent == nil {
		return i
	}
	bi := d.offset
	for k := len(d.size) - 1; k >= 0; k-- {
		bi += (i % d.size[k]) * d.blockInc[k]
		i /= d.size[k]
	}
	return bi
}

// BlockIncrements returns the block's row-major increments, the stride between
// consecutive rows of any tile of the block.
func (d *Dataset) BlockIncrements() []int { return d.blockInc }

// Elements returns the whole block's storage as a typed slice, indexed by
// block flat index. It panics when T does not match the dataset type.
func Elements[T Element](d *Dataset) []T {
	d.checkLive()
	if TypeOf[T]() != d.typ {
		var zero T
		panic(fmt.Sprintf("dataset: %T elements requested from %s dataset", zero, d.typ))
	}
	n := len(d.buf) / d.typ.Size()
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(d.buf))), n)
}

// Value returns the element at local flat index i as a float64.
// Blank integers come back as their sentinel value; use IsBlank to test.
func (d *Dataset) Value(i int) float64 {
	return d.BlockValue(d.BlockIndex(i))
}

// SetValue stores v at local flat index i, converting to the element type.
// Integer types truncate toward zero; NaN stores the type's blank.
func (d *Dataset) SetValue(i int, v float64) {
	d.SetBlockValue(d.BlockIndex(i), v)
}

// IsBlank reports whether the element at local flat index i is blank
func (d *Dataset) IsBlank(i int) bool {
	return d.BlockIsBlank(d.BlockIndex(i))
}

// SetBlank stores the type's blank value at local flat index i and marks d
// and every dataset it views as holding blanks.
func (d *Dataset) SetBlank(i int) {
	d.SetBlockValue(d.BlockIndex(i), math.NaN())
	for h := d; h != nil; h = h.parent {
		h.Flags.Blank = True
	}
}

// BlockValue returns the element at block flat index bi as a float64
func (d *Dataset) BlockValue(bi int) float64 {
	p := d.ptr(bi)
	switch d.typ {
	case Uint8:
		return float64(*(*uint8)(p))
	case Int8:
		return float64(*(*int8)(p))
	case Uint16:
		return float64(*(*uint16)(p))
	case Int16:
		return float64(*(*int16)(p))
	case Uint32:
		return float64(*(*uint32)(p))
	case Int32:
		return float64(*(*int32)(p))
	case Uint64:
		return float64(*(*uint64)(p))
	case Int64:
		return float64(*(*int64)(p))
	case Float16:
		return float64((*(*float16.Float16)(p)).Float32())
	case Float32:
		return float64(*(*float32)(p))
	default:
		return *(*float64)(p)
	}
}

// SetBlockValue stores v at block flat index bi
func (d *Dataset) SetBlockValue(bi int, v float64) {
	p := d.ptr(bi)
	if math.IsNaN(v) && !d.typ.IsFloat() {
		setSentinel(d.typ, p)
		return
	}
	switch d.typ {
	case Uint8:
		*(*uint8)(p) = uint8(v)
	case Int8:
		*(*int8)(p) = int8(v)
	case Uint16:
		*(*uint16)(p) = uint16(v)
	case Int16:
		*(*int16)(p) = int16(v)
	case Uint32:
		*(*uint32)(p) = uint32(v)
	case Int32:
		*(*int32)(p) = int32(v)
	case Uint64:
		*(*uint64)(p) = uint64(v)
	case Int64:
		*(*int64)(p) = int64(v)
	case Float16:
		*(*float16.Float16)(p) = float16.Fromfloat32(float32(v))
	case Float32:
		*(*float32)(p) = float32(v)
	default:
		*(*float64)(p) = v
	}
}

// BlockIsBlank reports whether the element at block flat index bi is blank.
// Integers compare exactly against the sentinel; floats test for NaN.
func (d *Dataset) BlockIsBlank(bi int) bool {
	p := d.ptr(bi)
	switch d.typ {
	case Uint8:
		return *(*uint8)(p) == math.MaxUint8
	case Int8:
		return *(*int8)(p) == math.MinInt8
	case Uint16:
		return *(*uint16)(p) == math.MaxUint16
	case Int16:
		return *(*int16)(p) == math.MinInt16
	case Uint32:
		return *(*uint32)(p) == math.MaxUint32
	case Int32:
		return *(*int32)(p) == math.MinInt32
	case Uint64:
		return *(*uint64)(p) == math.MaxUint64
	case Int64:
		return *(*int64)(p) == math.MinInt64
	case Float16:
		return (*(*float16.Float16)(p)).IsNaN()
	case Float32:
		f := *(*float32)(p)
		return f != f
	default:
		f := *(*float64)(p)
		return f != f
	}
}

// Copy returns a new in-memory block holding d's elements in order.
// Copying a tile produces a contiguous block of the tile's shape.
func (d *Dataset) Copy() *Dataset {
	c, err := d.CopyWith(Options{})
	if err != nil {
		panic(err)
	}
	return c
}

// CopyWith is Copy with explicit allocation options
func (d *Dataset) CopyWith(opts Options) (*Dataset, error) {
	d.checkLive()
	c, err := Allocate(d.typ, d.size, opts)
	if err != nil {
		return nil, err
	}
	c.Name = d.Name
	c.Flags = d.Flags
	c.WCS = d.WCS

	// Rows along the fastest dimension are contiguous in both
	esize := d.typ.Size()
	width := d.size[len(d.size)-1]
	for r := 0; r < d.n/width; r++ {
		src := d.BlockIndex(r*width) * esize
		copy(c.buf[r*width*esize:(r+1)*width*esize], d.buf[src:src+width*esize])
	}
	return c, nil
}

// Convert returns a new in-memory block of type t holding d's values.
// Blank elements stay blank in the new type.
func (d *Dataset) Convert(t DataType) *Dataset {
	d.checkLive()
	if t == d.typ {
		return d.Copy()
	}
	c := New(t, d.size...)
	c.Name = d.Name
	c.WCS = d.WCS
	c.Flags.Blank = d.Flags.Blank
	for i := 0; i < d.n; i++ {
		bi := d.BlockIndex(i)
		if d.BlockIsBlank(bi) {
			c.SetBlockValue(i, math.NaN())
			continue
		}
		c.SetBlockValue(i, d.BlockValue(bi))
	}
	return c
}

// setSentinel writes an integer type's blank exactly; the float64 form of
// the 64-bit sentinels does not convert back losslessly.
func setSentinel(t DataType, p unsafe.Pointer) {
	switch t {
	case Uint8:
		*(*uint8)(p) = math.MaxUint8
	case Int8:
		*(*int8)(p) = math.MinInt8
	case Uint16:
		*(*uint16)(p) = math.MaxUint16
	case Int16:
		*(*int16)(p) = math.MinInt16
	case Uint32:
		*(*uint32)(p) = math.MaxUint32
	case Int32:
		*(*int32)(p) = math.MinInt32
	case Uint64:
		*(*uint64)(p) = math.MaxUint64
	case Int64:
		*(*int64)(p) = math.MinInt64
	}
}

func (d *Dataset) ptr(bi int) unsafe.Pointer {
	return unsafe.Pointer(&d.buf[bi*d.typ.Size()])
}

// Bytes returns the whole block's raw storage, indexed by block flat index
// times the element size.
func (d *Dataset) Bytes() []byte {
	d.checkLive()
	return d.buf
}
