package dataset

// Tristate is a cached fact that may not have been checked yet.
// The zero value is Unknown, so a fresh dataset knows nothing.
type Tristate int8

const (
	Unknown Tristate = iota
	True
	False
)

// TristateOf converts a checked boolean into a Tristate
func TristateOf(b bool) Tristate {
	if b {
		return True
	}
	return False
}

// Known reports whether the fact has been checked
func (s Tristate) Known() bool {
	return s != Unknown
}

func (s Tristate) String() string {
	switch s {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// Flags holds the cached facts about a dataset's values.
// Only SetBlank keeps them current; call Reset after any other mutation of a
// dataset whose flags were already checked.
type Flags struct {
	// Blank records whether the dataset contains blank elements
	Blank Tristate

	// SortedInc records whether the values are sorted in increasing order
	SortedInc Tristate

	// SortedDec records whether the values are sorted in decreasing order
	SortedDec Tristate
}

// Reset forgets every cached fact
func (f *Flags) Reset() {
	*f = Flags{}
}
