package dataset

import "errors"

var (
	// ErrAllocation is returned when storage cannot be obtained
	ErrAllocation = errors.New("allocation failed")

	// ErrRange is returned when a view exceeds its host's bounds
	ErrRange = errors.New("region out of range")

	// ErrTypeMismatch is returned when companion datasets differ in shape
	ErrTypeMismatch = errors.New("dataset shapes do not match")
)
