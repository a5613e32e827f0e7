package shared

import (
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Year represents an academic year of the programme (1-4).
type Year int

// IsValid checks that the year is within the programme range.
func (y Year) IsValid() bool {
	return y >= 1 && y <= 4
}

// Int returns the year as a plain int.
func (y Year) Int() int {
	return int(y)
}

// Division represents a cohort division, a single uppercase letter.
type Division string

// IsValid checks that the division is a single uppercase letter.
func (d Division) IsValid() bool {
	return len(d) == 1 && d[0] >= 'A' && d[0] <= 'Z'
}

// String returns the string representation of the division.
func (d Division) String() string {
	return string(d)
}

// Cohort identifies a (year, division) pair, e.g. "3A".
type Cohort struct {
	Year     Year
	Division Division
}

// NewCohort creates a cohort from a year and division.
func NewCohort(year Year, division Division) Cohort {
	return Cohort{Year: year, Division: division}
}

// IsValid checks both components.
func (c Cohort) IsValid() bool {
	return c.Year.IsValid() && c.Division.IsValid()
}

// String returns the compact cohort label, e.g. "3A".
func (c Cohort) String() string {
	return fmt.Sprintf("%d%s", c.Year, c.Division)
}

// ParseCohort parses a compact cohort label such as "3A".
func ParseCohort(s string) (Cohort, error) {
	if len(s) != 2 {
		return Cohort{}, fmt.Errorf("%w: cohort %q", ErrInvalidInput, s)
	}
	c := Cohort{
		Year:     Year(s[0] - '0'),
		Division: Division(s[1:]),
	}
	if !c.IsValid() {
		return Cohort{}, fmt.Errorf("%w: cohort %q", ErrInvalidInput, s)
	}
	return c, nil
}
