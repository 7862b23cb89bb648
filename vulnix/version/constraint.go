package version

import (
	"fmt"
)

type Constraint interface {
	fmt.Stringer
	Satisfied(*Version) (bool, error)
}

// NewConstraint builds a constraint from explicit range ends. Either end may be nil, leaving
// the range open on that side; a constraint with both ends open matches any version at all
// (advisories occasionally name a product without any version bounds).
func NewConstraint(start, end *Bound) Constraint {
	if start == nil && end == nil {
		return anyConstraint{}
	}
	return rangeConstraint{
		start: start,
		end:   end,
	}
}

// NewExactConstraint builds a constraint only satisfied by versions equal to the given one.
func NewExactConstraint(version string) Constraint {
	return exactConstraint{
		version: version,
	}
}

type anyConstraint struct{}

func (anyConstraint) Satisfied(_ *Version) (bool, error) {
	return true, nil
}

func (anyConstraint) String() string {
	return "none (nix)"
}
