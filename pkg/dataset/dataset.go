package dataset

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// MaxNesting bounds the length of a back-reference chain. Tessellations nest
// two deep (block, channel, tile); anything past this bound is a cycle.
const MaxNesting = 8

// Residency records where a block's storage lives
type Residency int

const (
	// InMemory storage is an ordinary heap allocation
	InMemory Residency = iota

	// Mapped storage is a file-backed memory mapping
	Mapped
)

func (r Residency) String() string {
	if r == Mapped {
		return "mapped"
	}
	return "memory"
}

// Ownership records how a dataset relates to its storage
type Ownership int

const (
	// Owned blocks allocated their storage and free it on Release
	Owned Ownership = iota

	// Borrowed tiles view storage owned by their block
	Borrowed

	// External blocks wrap storage handed in by the caller
	External
)

func (o Ownership) String() string {
	switch o {
	case Owned:
		return "owned"
	case Borrowed:
		return "borrowed"
	default:
		return "external"
	}
}

// Options controls how Allocate obtains storage
type Options struct {
	// MinMapSize is the byte size at or above which storage is mapped from a
	// file instead of allocated in memory. Zero disables mapping.
	MinMapSize int64

	// MapDir is the directory for mapping files (os.TempDir when empty)
	MapDir string
}

// Dataset is one N-dimensional array, either a block owning its storage or a
// tile viewing a sub-region of a block.
type Dataset struct {
	// Name is an optional label carried through operations
	Name string

	// Flags caches facts about the values
	Flags Flags

	// WCS is coordinate metadata; it is never interpreted here
	WCS any

	// Next links datasets that are processed as one ordered collection
	Next *Dataset

	typ       DataType
	size      []int
	n         int
	residency Residency
	ownership Ownership

	// buf is the whole block's storage, shared by every tile of the block
	buf []byte

	// offset is the block flat index of this dataset's first element
	offset int

	// blockInc holds the block's row-major increments
	blockInc []int

	parent     *Dataset
	start      []int
	blockStart []int

	views    atomic.Int32
	released atomic.Bool
	unmap    func() error
}

// Allocate creates a new block of the given type and extents with zeroed
// storage. Requests whose byte size reaches opts.MinMapSize are mapped from a
// file; everything else lives in memory.
func Allocate(t DataType, size []int, opts Options) (*Dataset, error) {
	n, err := checkSize(size)
	if err != nil {
		return nil, err
	}
	nbytes := int64(n) * int64(t.Size())

	d := newBlock(t, size)
	if opts.MinMapSize > 0 && nbytes >= opts.MinMapSize {
		buf, unmap, err := mapStorage(opts.MapDir, int(nbytes))
		if err != nil {
			return nil, fmt.Errorf("%w: mapping %d bytes: %v", ErrAllocation, nbytes, err)
		}
		d.buf = buf
		d.unmap = unmap
		d.residency = Mapped
		logrus.Debugf("dataset: mapped %d bytes for %v %s block", nbytes, size, t)
	} else {
		d.buf = allocBytes(int(nbytes))
	}
	return d, nil
}

// New is Allocate with in-memory storage, for callers that cannot fail on
// mapping. It panics on invalid extents.
func New(t DataType, size ...int) *Dataset {
	d, err := Allocate(t, size, Options{})
	if err != nil {
		panic(err)
	}
	return d
}

// Wrap creates a dataset over existing storage without allocating.
// With a nil parent the result is an external block over buf. Otherwise buf
// must start inside the parent's region and the result is a tile of parent.
func Wrap(t DataType, size []int, buf []byte, parent *Dataset) (*Dataset, error) {
	n, err := checkSize(size)
	if err != nil {
		return nil, err
	}

	if parent == nil {
		if len(buf) < n*t.Size() {
			return nil, fmt.Errorf("%w: buffer holds %d bytes, %v %s needs %d",
				ErrRange, len(buf), size, t, n*t.Size())
		}
		d := newBlock(t, size)
		d.buf = buf[:n*t.Size()]
		d.ownership = External
		return d, nil
	}

	if parent.typ != t {
		return nil, fmt.Errorf("%w: wrapping %s storage of a %s parent", ErrTypeMismatch, t, parent.typ)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrRange)
	}

	// Recover the position of buf inside the block
	block := parent.Block()
	base := uintptr(unsafe.Pointer(unsafe.SliceData(block.buf)))
	ptr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	if ptr < base || ptr >= base+uintptr(len(block.buf)) || (ptr-base)%uintptr(t.Size()) != 0 {
		return nil, fmt.Errorf("%w: buffer does not lie inside the parent block", ErrRange)
	}
	offset := int(ptr-base) / t.Size()

	if len(size) != len(parent.size) {
		return nil, fmt.Errorf("%w: %d dimensions for a %d-dimensional parent", ErrRange, len(size), len(parent.size))
	}
	abs := make([]int, len(block.size))
	indexToCoord(offset, block.size, abs)
	rel := make([]int, len(abs))
	for i := range abs {
		rel[i] = abs[i] - parent.blockStart[i]
	}
	return parent.View(rel, size)
}

// FromSlice wraps a Go slice as an external block without copying
func FromSlice[T Element](size []int, s []T) (*Dataset, error) {
	n, err := checkSize(size)
	if err != nil {
		return nil, err
	}
	if len(s) != n {
		return nil, fmt.Errorf("%w: slice holds %d elements, extents %v need %d", ErrRange, len(s), size, n)
	}
	var zero T
	buf := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), n*int(unsafe.Sizeof(zero)))
	return Wrap(TypeOf[T](), size, buf, nil)
}

// View returns a tile aliasing the region of d that starts at start (relative
// to d) and has the given extents.
func (d *Dataset) View(start, size []int) (*Dataset, error) {
	d.checkLive()
	if len(start) != len(d.size) || len(size) != len(d.size) {
		return nil, fmt.Errorf("%w: view of %d/%d dimensions on a %d-dimensional dataset",
			ErrRange, len(start), len(size), len(d.size))
	}
	for i := range d.size {
		if start[i] < 0 || size[i] < 1 || start[i]+size[i] > d.size[i] {
			return nil, fmt.Errorf("%w: dimension %d: start %d + extent %d exceeds %d",
				ErrRange, i, start[i], size[i], d.size[i])
		}
	}

	t := &Dataset{
		typ:       d.typ,
		size:      append([]int(nil), size...),
		n:         product(size),
		residency: d.residency,
		ownership: Borrowed,
		buf:       d.buf,
		blockInc:  d.blockInc,
		parent:    d,
		start:     append([]int(nil), start...),
		WCS:       d.WCS,
	}
	t.blockStart = make([]int, len(size))
	t.offset = 0
	for i := range size {
		t.blockStart[i] = d.blockStart[i] + start[i]
		t.offset += t.blockStart[i] * d.blockInc[i]
	}
	d.views.Add(1)
	return t, nil
}

// Release frees storage owned by d, or detaches d from its parent when d is a
// tile. Releasing twice, or releasing a dataset that still has live views,
// is a programmer error and panics.
func (d *Dataset) Release() {
	if v := d.views.Load(); v > 0 {
		panic(fmt.Sprintf("dataset: releasing %v dataset with %d live views", d.size, v))
	}
	if !d.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("dataset: double release of %v dataset", d.size))
	}

	switch d.ownership {
	case Borrowed:
		d.parent.views.Add(-1)
	case Owned:
		if d.unmap != nil {
			if err := d.unmap(); err != nil {
				logrus.Warnf("dataset: unmapping %v block: %v", d.size, err)
			}
		}
	}
	d.buf = nil
	d.unmap = nil
}

// Released reports whether Release has been called
func (d *Dataset) Released() bool {
	return d.released.Load()
}

// Block walks the back-reference chain to the dataset owning the storage
func (d *Dataset) Block() *Dataset {
	b := d
	for depth := 0; b.parent != nil; depth++ {
		if depth >= MaxNesting {
			panic("dataset: back-reference chain exceeds nesting bound")
		}
		b = b.parent
	}
	return b
}

// Type returns the element type
func (d *Dataset) Type() DataType { return d.typ }

// NDim returns the number of dimensions
func (d *Dataset) NDim() int { return len(d.size) }

// Size returns the per-dimension extents (slowest dimension first).
// The returned slice must not be modified.
func (d *Dataset) Size() []int { return d.size }

// Len returns the number of elements, the product of the extents
func (d *Dataset) Len() int { return d.n }

// Residency returns where the block's storage lives
func (d *Dataset) Residency() Residency { return d.residency }

// Ownership returns how d relates to its storage
func (d *Dataset) Ownership() Ownership { return d.ownership }

// IsBlock reports whether d has no parent
func (d *Dataset) IsBlock() bool { return d.parent == nil }

// Parent returns the dataset this tile views, or nil for a block
func (d *Dataset) Parent() *Dataset { return d.parent }

// Start returns the tile's starting coordinate within its parent
func (d *Dataset) Start() []int {
	if d.start == nil {
		return make([]int, len(d.size))
	}
	return d.start
}

// BlockStart returns the starting coordinate within the block
func (d *Dataset) BlockStart() []int { return d.blockStart }

// Offset returns the block flat index of the first element
func (d *Dataset) Offset() int { return d.offset }

// Views returns the number of live tiles viewing d
func (d *Dataset) Views() int { return int(d.views.Load()) }

// Contiguous reports whether the elements form one run in block memory
func (d *Dataset) Contiguous() bool {
	if d.parent == nil {
		return true
	}
	block := d.Block().size

	// Every dimension after the first that is not full-width breaks contiguity
	for i := len(d.size) - 1; i > 0; i-- {
		if d.size[i] != block[i] {
			// Still contiguous if all slower dimensions have extent 1
			for j := 0; j < i; j++ {
				if d.size[j] != 1 {
					return false
				}
			}
			return true
		}
	}
	return true
}

// Collection returns d followed by every dataset linked through Next
func (d *Dataset) Collection() []*Dataset {
	var list []*Dataset
	for c := d; c != nil; c = c.Next {
		list = append(list, c)
		if len(list) > 1<<20 {
			panic("dataset: Next chain does not terminate")
		}
	}
	return list
}

// SameShape reports whether a and b have identical extents
func SameShape(a, b *Dataset) bool {
	if len(a.size) != len(b.size) {
		return false
	}
	for i := range a.size {
		if a.size[i] != b.size[i] {
			return false
		}
	}
	return true
}

func (d *Dataset) String() string {
	kind := "block"
	if d.parent != nil {
		kind = "tile"
	}
	return fmt.Sprintf("%s %s%v (%s, %s)", kind, d.typ, d.size, d.ownership, d.residency)
}

func (d *Dataset) checkLive() {
	if d.released.Load() {
		panic(fmt.Sprintf("dataset: use of released %v dataset", d.size))
	}
}

func newBlock(t DataType, size []int) *Dataset {
	d := &Dataset{
		typ:        t,
		size:       append([]int(nil), size...),
		n:          product(size),
		blockStart: make([]int, len(size)),
	}
	d.blockInc = increments(d.size)
	return d
}

func checkSize(size []int) (int, error) {
	if len(size) == 0 {
		return 0, fmt.Errorf("%w: no dimensions", ErrAllocation)
	}
	for i, s := range size {
		if s < 1 {
			return 0, fmt.Errorf("%w: extent %d in dimension %d", ErrAllocation, s, i)
		}
	}
	return product(size), nil
}

// allocBytes returns an 8-byte aligned zeroed buffer
func allocBytes(n int) []byte {
	words := make([]uint64, (n+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), n)
}

func product(size []int) int {
	n := 1
	for _, s := range size {
		n *= s
	}
	return n
}

func increments(size []int) []int {
	inc := make([]int, len(size))
	acc := 1
	for i := len(size) - 1; i >= 0; i-- {
		inc[i] = acc
		acc *= size[i]
	}
	return inc
}

func indexToCoord(index int, size, coord []int) {
	for i := len(size) - 1; i >= 0; i-- {
		coord[i] = index % size[i]
		index /= size[i]
	}
}
