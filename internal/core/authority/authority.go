// Package authority models the regulatory source hierarchy and the value
// normalization used when two rules are compared for agreement.
package authority

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Level is the hierarchy rank of a regulatory source.
// LAW > GUIDANCE > PROCEDURE > PRACTICE
type Level string

const (
	LevelLaw       Level = "LAW"
	LevelGuidance  Level = "GUIDANCE"
	LevelProcedure Level = "PROCEDURE"
	LevelPractice  Level = "PRACTICE"
)

// Rank orders levels with LAW highest. Unknown levels rank below PRACTICE
func (l Level) Rank() int {
	switch l {
	case LevelLaw:
		return 3
	case LevelGuidance:
		return 2
	case LevelProcedure:
		return 1
	case LevelPractice:
		return 0
	}
	return -1
}

// Valid reports whether l is a defined level
func (l Level) Valid() bool { return l.Rank() >= 0 }

// Supersedes reports whether l strictly outranks other.
// Equal ranks never supersede; hierarchy cannot break a tie
func (l Level) Supersedes(other Level) bool { return l.Rank() > other.Rank() }

var folder = cases.Fold()

// NormalizeValue canonicalizes a rule value for comparison: Unicode NFKC,
// case folding, and whitespace collapse. "25 %" and "25%" stay distinct on
// purpose; only cosmetic differences are erased
func NormalizeValue(s string) string {
	s = norm.NFKC.String(s)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// EqualValues reports whether two rule values agree after normalization
func EqualValues(a, b string) bool { return NormalizeValue(a) == NormalizeValue(b) }
