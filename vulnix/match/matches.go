package match

import (
	"sort"

	"github.com/flyingcircus/vulnix/vulnix/derivation"
)

// Matches collects findings, deduplicated by fingerprint and grouped by the derivation
// they were made against.
type Matches struct {
	byFingerprint map[Fingerprint]Match
	byLocation    map[string][]Fingerprint
}

func NewMatches() Matches {
	return Matches{
		byFingerprint: make(map[Fingerprint]Match),
		byLocation:    make(map[string][]Fingerprint),
	}
}

// Add records matches against the derivation they were found for.
func (m *Matches) Add(d derivation.Derivation, matches ...Match) {
	for _, newMatch := range matches {
		fingerprint := newMatch.Fingerprint()
		if _, exists := m.byFingerprint[fingerprint]; exists {
			continue
		}
		m.byFingerprint[fingerprint] = newMatch
		m.byLocation[d.Location] = append(m.byLocation[d.Location], fingerprint)
	}
}

func (m *Matches) Merge(other Matches) {
	for _, fingerprints := range other.byLocation {
		for _, fingerprint := range fingerprints {
			newMatch := other.byFingerprint[fingerprint]
			m.Add(newMatch.Derivation, newMatch)
		}
	}
}

// GetByLocation returns all matches made against the derivation at the given location.
func (m *Matches) GetByLocation(location string) (matches []Match) {
	for _, fingerprint := range m.byLocation[location] {
		matches = append(matches, m.byFingerprint[fingerprint])
	}
	return matches
}

// Locations returns the locations of every matched derivation, ordered.
func (m *Matches) Locations() []string {
	locations := make([]string, 0, len(m.byLocation))
	for location := range m.byLocation {
		locations = append(locations, location)
	}
	sort.Strings(locations)
	return locations
}

func (m *Matches) Enumerate() <-chan Match {
	channel := make(chan Match)
	go func() {
		defer close(channel)
		for _, match := range m.byFingerprint {
			channel <- match
		}
	}()
	return channel
}

func (m *Matches) Sorted() []Match {
	matches := make([]Match, 0)
	for match := range m.Enumerate() {
		matches = append(matches, match)
	}

	sort.Sort(ByElements(matches))

	return matches
}

// Count returns the total number of matches in a result.
func (m Matches) Count() int {
	return len(m.byFingerprint)
}
