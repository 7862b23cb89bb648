package whitelist

import (
	"sort"
	"time"

	"github.com/flyingcircus/vulnix/vulnix/derivation"
	"github.com/flyingcircus/vulnix/vulnix/match"
)

// Whitelist is a keyed set of suppression rules. Loading a second source merges
// rule-by-rule, so several whitelist files can be layered on top of each other.
type Whitelist struct {
	rules map[string]*Rule
}

func New() *Whitelist {
	return &Whitelist{
		rules: make(map[string]*Rule),
	}
}

func (w *Whitelist) Count() int {
	return len(w.rules)
}

// Keys returns all rule keys in lexical order.
func (w *Whitelist) Keys() []string {
	keys := make([]string, 0, len(w.rules))
	for key := range w.rules {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Rules returns a snapshot of all rules, ordered by key.
func (w *Whitelist) Rules() []Rule {
	out := make([]Rule, 0, len(w.rules))
	for _, key := range w.Keys() {
		out = append(out, *w.rules[key].clone())
	}
	return out
}

func (w *Whitelist) insert(r *Rule) error {
	if existing, ok := w.rules[r.key]; ok {
		return existing.merge(r)
	}
	w.rules[r.key] = r
	return nil
}

// Merge folds another whitelist into this one. Rules sharing a key are combined;
// irreconcilable rules (conflicting until dates) abort the merge.
func (w *Whitelist) Merge(other *Whitelist) error {
	for _, key := range other.Keys() {
		if err := w.insert(other.rules[key].clone()); err != nil {
			return err
		}
	}
	return nil
}

// AddFrom appends a permanent rule pinned to the derivation's product and version,
// carrying all of its reported advisories. Used to freeze current findings as
// accepted risk.
func (w *Whitelist) AddFrom(d derivation.Derivation) error {
	r := NewRule(d.Name)
	r.Pname = d.Pname
	r.Version = d.Version
	if d.AffectedBy != nil {
		r.Cve.Merge(d.AffectedBy)
	}
	return w.insert(r)
}

// Filter partitions findings into those still visible and those masked by an active
// rule. Masking is whole-derivation: a rule either accounts for every advisory
// reported against a derivation or it does not apply.
func (w *Whitelist) Filter(matches match.Matches) (match.Matches, []Masked) {
	return w.filterAt(matches, time.Now())
}

func (w *Whitelist) filterAt(matches match.Matches, day time.Time) (match.Matches, []Masked) {
	affected := match.NewMatches()
	var masked []Masked
	for _, location := range matches.Locations() {
		found := matches.GetByLocation(location)
		if len(found) == 0 {
			continue
		}
		d := found[0].Derivation
		rule := w.find(d, day)
		if rule == nil {
			affected.Add(d, found...)
			continue
		}
		kind := MatchPermanent
		if !rule.Permanent() {
			kind = MatchTemporary
		}
		masked = append(masked, Masked{
			Derivation: d,
			Rule:       *rule.clone(),
			MatchType:  kind,
		})
	}
	return affected, masked
}

// find returns the first active rule covering the derivation, trying the most
// specific scope class first and stable key order within each class.
func (w *Whitelist) find(d derivation.Derivation, day time.Time) *Rule {
	keys := w.Keys()
	for class := 0; class <= 2; class++ {
		for _, key := range keys {
			r := w.rules[key]
			if r.specificity() != class || !r.activeAt(day) {
				continue
			}
			if r.matches(d) {
				return r
			}
		}
	}
	return nil
}
