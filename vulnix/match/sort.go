package match

import "sort"

var _ sort.Interface = (*ByElements)(nil)

type ByElements []Match

// Len is the number of elements in the collection.
func (m ByElements) Len() int {
	return len(m)
}

// Less reports whether the element with index i should sort before the element with index j.
func (m ByElements) Less(i, j int) bool {
	if m[i].Derivation.Pname == m[j].Derivation.Pname {
		if m[i].Derivation.Name == m[j].Derivation.Name {
			if m[i].Derivation.Location == m[j].Derivation.Location {
				return m[i].Vulnerability.ID < m[j].Vulnerability.ID
			}
			return m[i].Derivation.Location < m[j].Derivation.Location
		}
		return m[i].Derivation.Name < m[j].Derivation.Name
	}
	return m[i].Derivation.Pname < m[j].Derivation.Pname
}

// Swap swaps the elements with indexes i and j.
func (m ByElements) Swap(i, j int) {
	m[i], m[j] = m[j], m[i]
}
