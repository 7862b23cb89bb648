package whitelist

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v2"
	"github.com/scylladb/go-set/strset"

	"github.com/flyingcircus/vulnix/internal/log"
	"github.com/flyingcircus/vulnix/vulnix/derivation"
)

const (
	// WildcardProduct scopes a rule to every product name.
	WildcardProduct = "*"

	statusInactive = "inactive"
)

var advisoryIDPattern = regexp.MustCompile(`^CVE-\d{4}-\d{4,}$`)

// Rule suppresses findings for the scope its key describes. The key is either a bare
// product name ("libxslt"), a product pinned to one version ("libxslt-2.0"), the
// wildcard "*", or an advisory ID ("CVE-2018-1000156") which scopes by advisory alone.
// A rule with a non-empty advisory list only masks a derivation once every reported
// advisory is listed; a rule without one masks the whole scope. A rule carrying an
// until date expires at the end of that day.
type Rule struct {
	Pname    string
	Version  string
	Cve      *strset.Set
	Until    time.Time
	Comment  []string
	IssueURL []string
	Status   string

	key string
}

// NewRule derives scope fields from a rule-file key.
func NewRule(key string) *Rule {
	r := &Rule{
		Pname: WildcardProduct,
		Cve:   strset.New(),
		key:   key,
	}
	switch {
	case key == WildcardProduct:
	case advisoryIDPattern.MatchString(key):
		r.Cve.Add(key)
	default:
		r.Pname, r.Version = derivation.SplitName(key)
	}
	return r
}

func (r *Rule) Key() string {
	return r.key
}

func (r *Rule) String() string {
	return fmt.Sprintf("Rule(%s)", r.key)
}

// Permanent reports whether the rule never expires.
func (r *Rule) Permanent() bool {
	return r.Until.IsZero()
}

func (r *Rule) clone() *Rule {
	c := *r
	c.Cve = r.Cve.Copy()
	c.Comment = append([]string(nil), r.Comment...)
	c.IssueURL = append([]string(nil), r.IssueURL...)
	return &c
}

// activeAt reports whether the rule may mask anything on the given day. Expired
// temporary rules and rules marked inactive are treated as absent.
func (r *Rule) activeAt(day time.Time) bool {
	if strings.EqualFold(r.Status, statusInactive) {
		return false
	}
	if r.Permanent() {
		return true
	}
	return !r.Until.Before(toDay(day))
}

// matchesProduct tests the rule's product scope against a pname. Scopes support
// shell-style globbing, so "*" and "openssl*" work the way an operator expects;
// matching is case-insensitive.
func (r *Rule) matchesProduct(pname string) bool {
	ok, err := doublestar.Match(strings.ToLower(r.Pname), strings.ToLower(pname))
	if err != nil {
		log.Warnf("whitelist rule %q: bad product pattern: %v", r.key, err)
		return false
	}
	return ok
}

// covers reports whether the rule accounts for every advisory in the given set.
func (r *Rule) covers(affectedBy *strset.Set) bool {
	if r.Cve.Size() == 0 {
		return true
	}
	if affectedBy == nil || affectedBy.Size() == 0 {
		return false
	}
	return r.Cve.Has(affectedBy.List()...)
}

// matches reports whether the rule scope applies to the derivation and accounts for
// all of its reported advisories.
func (r *Rule) matches(d derivation.Derivation) bool {
	if !r.matchesProduct(d.Pname) {
		return false
	}
	if r.Version != "" && r.Version != d.Version {
		return false
	}
	return r.covers(d.AffectedBy)
}

// merge folds another rule for the same key into this one. Advisory sets are
// unioned, comments and issue URLs deduplicated. Two different until dates cannot
// be reconciled without silently weakening one of the rules, so that is an error.
func (r *Rule) merge(other *Rule) error {
	if !r.Until.IsZero() && !other.Until.IsZero() && !r.Until.Equal(other.Until) {
		return fmt.Errorf("conflicting until dates for whitelist rule %q: %s vs %s",
			r.key, r.Until.Format(dateLayout), other.Until.Format(dateLayout))
	}
	if r.Until.IsZero() {
		r.Until = other.Until
	}
	r.Cve.Merge(other.Cve)
	r.Comment = mergeTexts(r.Comment, other.Comment)
	r.IssueURL = mergeTexts(r.IssueURL, other.IssueURL)
	switch {
	case strings.EqualFold(r.Status, statusInactive) || strings.EqualFold(other.Status, statusInactive):
		r.Status = statusInactive
	case r.Status == "":
		r.Status = other.Status
	}
	return nil
}

// mergeTexts unions free-text lists. The result is sorted so that merging is
// commutative and repeated merges do not grow the rule.
func mergeTexts(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	set := strset.New(a...)
	set.Add(b...)
	out := set.List()
	sort.Strings(out)
	return out
}

// specificity buckets rules for filtering precedence: version-pinned scopes win over
// product-only scopes, which win over wildcard and advisory-ID scopes.
func (r *Rule) specificity() int {
	switch {
	case r.Version != "":
		return 0
	case r.Pname != WildcardProduct:
		return 1
	default:
		return 2
	}
}

func toDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
