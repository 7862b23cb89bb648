package version

import (
	"fmt"
)

type Version struct {
	Raw    string
	Format Format
	rich   rich
}

// rich holds the parsed representations of the raw version string. Which fields are populated
// depends on the format and on how well the raw string fits each scheme.
type rich struct {
	semVer *semanticVersion
	nixVer *nixVersion
}

func NewVersion(raw string, format Format) (*Version, error) {
	version := &Version{
		Raw:    raw,
		Format: format,
	}

	err := version.populate()
	if err != nil {
		return nil, err
	}

	return version, nil
}

func (v *Version) populate() error {
	switch v.Format {
	case SemanticFormat:
		ver, err := newSemanticVersion(v.Raw)
		v.rich.semVer = ver
		return err
	case NixFormat, UnknownFormat:
		ver := newNixVersion(v.Raw)
		v.rich.nixVer = &ver

		// opportunistically parse semver-shaped versions as well, so that two semver
		// conforming versions still get compared with full pre-release semantics
		if pseudoSemverPattern.MatchString(v.Raw) {
			if semVer, err := newSemanticVersion(v.Raw); err == nil {
				v.rich.semVer = semVer
			}
		}
		return nil
	}
	return fmt.Errorf("no rich version populated (format=%s)", v.Format)
}

// Compare returns -1, 0, or 1 if this version is smaller, equal, or larger than the given version.
func (v Version) Compare(other *Version) (int, error) {
	if other == nil {
		return -1, fmt.Errorf("cannot compare %q to a nil version", v.Raw)
	}

	// check if both versions can be compared as semvers...
	if v.rich.semVer != nil && other.rich.semVer != nil {
		return v.rich.semVer.verObj.Compare(other.rich.semVer.verObj), nil
	}

	// one or both sides are not semver compliant, fall back to comparing the raw strings
	// by alternating numeric/alphabetic runs
	return nixVersionComparison(v.Raw, other.Raw), nil
}

func (v Version) String() string {
	return fmt.Sprintf("%s (%s)", v.Raw, v.Format)
}
