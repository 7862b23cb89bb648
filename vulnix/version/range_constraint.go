package version

import (
	"fmt"
	"strings"
)

// Bound is one end of a version range.
type Bound struct {
	Version   string
	Inclusive bool
}

// rangeConstraint is a half-open or closed version interval. A nil end leaves the range
// unbounded on that side.
type rangeConstraint struct {
	start *Bound
	end   *Bound
}

func (c rangeConstraint) Satisfied(version *Version) (bool, error) {
	if version == nil {
		// a bounded constraint can never be satisfied by a missing version
		return false, nil
	}

	if c.start != nil {
		cmp, err := compareBound(version, c.start.Version)
		if err != nil {
			return false, err
		}
		if cmp < 0 || (cmp == 0 && !c.start.Inclusive) {
			return false, nil
		}
	}

	if c.end != nil {
		cmp, err := compareBound(version, c.end.Version)
		if err != nil {
			return false, err
		}
		if cmp > 0 || (cmp == 0 && !c.end.Inclusive) {
			return false, nil
		}
	}

	return true, nil
}

func (c rangeConstraint) String() string {
	var phrases []string
	if c.start != nil {
		op := ">"
		if c.start.Inclusive {
			op = ">="
		}
		phrases = append(phrases, op+c.start.Version)
	}
	if c.end != nil {
		op := "<"
		if c.end.Inclusive {
			op = "<="
		}
		phrases = append(phrases, op+c.end.Version)
	}
	return fmt.Sprintf("%s (nix)", strings.Join(phrases, ", "))
}

type exactConstraint struct {
	version string
}

func (c exactConstraint) Satisfied(version *Version) (bool, error) {
	if version == nil {
		return false, nil
	}
	cmp, err := compareBound(version, c.version)
	if err != nil {
		return false, err
	}
	return cmp == 0, nil
}

func (c exactConstraint) String() string {
	return fmt.Sprintf("= %s (nix)", c.version)
}

// compareBound orders the given version against one end of a range. The bound is parsed in
// the version's own format where possible so that two semver-conforming versions keep full
// pre-release semantics; bounds that do not parse in that scheme fall back to the nix run
// comparison, which accepts anything.
func compareBound(version *Version, bound string) (int, error) {
	boundVer, err := NewVersion(bound, version.Format)
	if err != nil {
		boundVer, err = NewVersion(bound, NixFormat)
		if err != nil {
			return 0, fmt.Errorf("unable to parse range bound %q: %w", bound, err)
		}
	}
	return version.Compare(boundVer)
}
