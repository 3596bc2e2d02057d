// Package dataset provides the N-dimensional array container shared by the
// tessellation, traversal and interpolation packages.
//
// A Dataset is either a block, which owns (or externally references) its
// backing storage, or a tile, a borrowed view into a sub-region of another
// dataset's storage. Tiles never free memory; only blocks do.
package dataset

import (
	"fmt"
	"math"
	"strings"

	"github.com/x448/float16"
)

// DataType identifies the element type of a dataset
type DataType int

// Supported element types
const (
	Uint8 DataType = iota
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float16
	Float32
	Float64
)

var typeNames = map[DataType]string{
	Uint8:   "uint8",
	Int8:    "int8",
	Uint16:  "uint16",
	Int16:   "int16",
	Uint32:  "uint32",
	Int32:   "int32",
	Uint64:  "uint64",
	Int64:   "int64",
	Float16: "float16",
	Float32: "float32",
	Float64: "float64",
}

// Size returns the size of one element in bytes
func (t DataType) Size() int {
	switch t {
	case Uint8, Int8:
		return 1
	case Uint16, Int16, Float16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64:
		return 8
	default:
		panic(fmt.Sprintf("dataset: unknown data type %d", int(t)))
	}
}

// String returns the lower-case name of the type
func (t DataType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// IsFloat reports whether blanks of this type are NaN rather than a sentinel
func (t DataType) IsFloat() bool {
	return t == Float16 || t == Float32 || t == Float64
}

// ParseDataType converts a type name such as "float32" to a DataType
func ParseDataType(name string) (DataType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", name)
}

// BlankValue returns the blank sentinel of a type as a float64.
// Unsigned types use their maximum, signed types their minimum and
// floating point types NaN.
func BlankValue(t DataType) float64 {
	switch t {
	case Uint8:
		return math.MaxUint8
	case Int8:
		return math.MinInt8
	case Uint16:
		return math.MaxUint16
	case Int16:
		return math.MinInt16
	case Uint32:
		return math.MaxUint32
	case Int32:
		return math.MinInt32
	case Uint64:
		return math.MaxUint64
	case Int64:
		return math.MinInt64
	default:
		return math.NaN()
	}
}

// Element is the set of Go types that can back a dataset
type Element interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64 | ~float32 | ~float64
}

// TypeOf returns the DataType for the Go element type T.
// float16.Float16 maps to Float16.
func TypeOf[T Element]() DataType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return Uint8
	case int8:
		return Int8
	case float16.Float16:
		return Float16
	case uint16:
		return Uint16
	case int16:
		return Int16
	case uint32:
		return Uint32
	case int32:
		return Int32
	case uint64:
		return Uint64
	case int64:
		return Int64
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		panic(fmt.Sprintf("dataset: unsupported element type %T", zero))
	}
}
