package vulnerability

import (
	"fmt"

	"github.com/flyingcircus/vulnix/vulnix/version"
)

// Vulnerability is a single advisory claim about one product: a vulnerability ID plus the
// version constraint under which the product is affected. One CVE typically expands into
// several of these, one per affected product and version range.
type Vulnerability struct {
	ID         string
	Product    string
	Constraint version.Constraint
}

func (v Vulnerability) String() string {
	return fmt.Sprintf("Vuln(id=%s product=%s constraint=%q)", v.ID, v.Product, v.Constraint)
}
