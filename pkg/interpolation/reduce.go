package interpolation

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Reducer turns the collected neighbor values into one fill value
type Reducer int

const (
	Median Reducer = iota
	Mean
	Min
	Max
)

var reducerNames = map[Reducer]string{
	Median: "median",
	Mean:   "mean",
	Min:    "min",
	Max:    "max",
}

func (r Reducer) String() string {
	if s, ok := reducerNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Reducer(%d)", int(r))
}

// ParseReducer returns the reducer with the given name
func ParseReducer(s string) (Reducer, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range reducerNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown reducer %q", s)
}

// Reduce returns the representative value of vals. It may reorder vals.
func (r Reducer) Reduce(vals []float64) float64 {
	switch r {
	case Mean:
		return stat.Mean(vals, nil)
	case Min:
		return floats.Min(vals)
	case Max:
		return floats.Max(vals)
	default:
		return median(vals)
	}
}

// median sorts vals and averages the two middle values of an even count
func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 0 {
		return (vals[n/2-1] + vals[n/2]) / 2
	}
	return vals[n/2]
}
