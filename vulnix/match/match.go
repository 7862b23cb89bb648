package match

import (
	"fmt"

	"github.com/flyingcircus/vulnix/vulnix/derivation"
	"github.com/flyingcircus/vulnix/vulnix/vulnerability"
)

// Match represents a finding in the vulnerability matching process, pairing a single
// derivation and a single advisory that applies to it.
type Match struct {
	Vulnerability vulnerability.Vulnerability // the advisory details of the match
	Derivation    derivation.Derivation       // the derivation used to search for a match
}

// String is the string representation of select match fields.
func (m Match) String() string {
	return fmt.Sprintf("Match(drv=%s vuln=%q)", m.Derivation, m.Vulnerability.ID)
}

func (m Match) Fingerprint() Fingerprint {
	return Fingerprint{
		vulnerabilityID: m.Vulnerability.ID,
		derivationName:  m.Derivation.Name,
		location:        m.Derivation.Location,
	}
}
