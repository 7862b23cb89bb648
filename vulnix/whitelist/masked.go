package whitelist

import (
	"fmt"

	"github.com/flyingcircus/vulnix/vulnix/derivation"
)

// MatchType records which kind of rule masked a finding, needed for reporting only.
type MatchType string

const (
	MatchPermanent MatchType = "permanent"
	MatchTemporary MatchType = "temporary"
)

// Masked is a finding suppressed by a whitelist rule.
type Masked struct {
	Derivation derivation.Derivation
	Rule       Rule
	MatchType  MatchType
}

func (m Masked) String() string {
	return fmt.Sprintf("Masked(drv=%s rule=%s)", m.Derivation.Name, m.Rule.Key())
}
