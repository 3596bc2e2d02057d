package models

// Range is a half-open range [Start, End) of flat indices handed to a worker.
type Range struct {
	// Start is the first index of the range
	Start int

	// End is one past the last index of the range
	End int
}

// Len returns the number of indices in the range
func (r Range) Len() int {
	return r.End - r.Start
}

// Partition splits n items into at most parts contiguous ranges whose
// lengths differ by at most one. Empty ranges are never returned, so the
// result may be shorter than parts when n < parts.
func Partition(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}

	ranges := make([]Range, parts)
	base := n / parts
	extra := n % parts

	start := 0
	for i := 0; i < parts; i++ {
		// The first `extra` ranges take one more item each
		size := base
		if i < extra {
			size++
		}
		ranges[i] = Range{Start: start, End: start + size}
		start += size
	}

	return ranges
}
