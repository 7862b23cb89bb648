package match

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

type Fingerprint struct {
	vulnerabilityID string
	derivationName  string
	location        string
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("Fingerprint(vuln=%q name=%q location=%q)", f.vulnerabilityID, f.derivationName, f.location)
}

// ID returns a stable content hash for the fingerprint, usable as an identifier in
// rendered documents.
func (f Fingerprint) ID() string {
	h, err := hashstructure.Hash(&f, hashstructure.FormatV2, &hashstructure.HashOptions{
		ZeroNil:      true,
		SlicesAsSets: true,
	})
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", h)
}
