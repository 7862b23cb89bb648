package version

import (
	"regexp"
	"strings"
	"unicode"
)

// derived from https://semver.org/, but additionally matches:
// - partial versions (e.g. "2.0")
// - optional prefix "v" (e.g. "v1.0.0")
var pseudoSemverPattern = regexp.MustCompile(`^v?(0|[1-9]\d*)(\.(0|[1-9]\d*))?(\.(0|[1-9]\d*))?(?:(-|alpha|beta|rc)((?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*))*))?(?:\+([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`)

// nixVersion implements the ordering scheme used for versions taken from nix store names.
// The version string is broken into alternating numeric and alphabetic runs; any other
// character only acts as a separator and carries no meaning of its own, so "1.0.2k",
// "1.0-2k" and "1_0 2k" all describe the same version.
type nixVersion struct {
	raw      string
	segments []segment
}

// segment is a single maximal run of digits or letters.
type segment struct {
	value   string
	numeric bool
}

func newNixVersion(raw string) nixVersion {
	return nixVersion{
		raw:      raw,
		segments: splitSegments(raw),
	}
}

func splitSegments(raw string) []segment {
	var segments []segment
	var current strings.Builder
	currentNumeric := false

	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, segment{value: current.String(), numeric: currentNumeric})
			current.Reset()
		}
	}

	for _, c := range raw {
		switch {
		case unicode.IsDigit(c):
			if current.Len() > 0 && !currentNumeric {
				flush()
			}
			currentNumeric = true
			current.WriteRune(c)
		case unicode.IsLetter(c):
			if current.Len() > 0 && currentNumeric {
				flush()
			}
			currentNumeric = false
			current.WriteRune(c)
		default:
			flush()
		}
	}
	flush()

	return segments
}

// nixVersionComparison compares two stringified versions by their numeric and alphabetic
// runs. It does the right thing for nix store versions such as "1.0.2k" vs "1.0.2",
// "2016.1" vs "2016.1.1" or "5.8-rc4" vs "5.8", where strict semver parsing fails.
// Returns -1 if v1 < v2, 1 if v1 > v2 and 0 if v1 == v2.
func nixVersionComparison(v1, v2 string) int {
	return newNixVersion(stripLeadingV(v1)).compare(newNixVersion(stripLeadingV(v2)))
}

func (v nixVersion) compare(other nixVersion) int {
	a, b := v.segments, other.segments

	for i := 0; i < len(a) && i < len(b); i++ {
		if cmp := compareSegments(a[i], b[i]); cmp != 0 {
			return cmp
		}
	}

	// all shared runs are equal, the leftover runs of the longer side decide
	switch {
	case len(a) > len(b):
		return compareTail(a[len(b):])
	case len(b) > len(a):
		return -compareTail(b[len(a):])
	}
	return 0
}

func compareSegments(a, b segment) int {
	switch {
	case a.numeric && b.numeric:
		return compareNumeric(a.value, b.value)
	case !a.numeric && !b.numeric:
		return strings.Compare(a.value, b.value)
	case a.numeric:
		// a numeric run outranks an alphabetic run at the same position ("1.1" > "1.rc1")
		return 1
	default:
		return -1
	}
}

// compareNumeric compares two digit runs by value without converting them to integers, so
// arbitrarily long runs (dates, timestamps) cannot overflow. Leading zeros are insignificant.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// compareTail ranks a version against a prefix of itself: a leftover alphabetic run marks a
// pre-release ("1.2-rc1" < "1.2"), while leftover zero runs do not change the value
// ("1.2.0" == "1.2"). Returns the ordering of the longer side relative to the shorter one.
func compareTail(tail []segment) int {
	for _, s := range tail {
		if !s.numeric {
			return -1
		}
		if strings.TrimLeft(s.value, "0") != "" {
			return 1
		}
	}
	return 0
}

func stripLeadingV(ver string) string {
	return strings.TrimPrefix(ver, "v")
}
