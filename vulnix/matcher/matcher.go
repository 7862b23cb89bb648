package matcher

import (
	"fmt"
	"sort"

	"github.com/wagoodman/go-partybus"
	"github.com/wagoodman/go-progress"

	"github.com/flyingcircus/vulnix/internal/bus"
	"github.com/flyingcircus/vulnix/internal/log"
	"github.com/flyingcircus/vulnix/vulnix/derivation"
	"github.com/flyingcircus/vulnix/vulnix/event"
	"github.com/flyingcircus/vulnix/vulnix/match"
	"github.com/flyingcircus/vulnix/vulnix/version"
	"github.com/flyingcircus/vulnix/vulnix/vulnerability"
)

// Monitor provides progress for a scan in flight.
type Monitor struct {
	DerivationsProcessed      progress.Monitorable
	VulnerabilitiesDiscovered progress.Monitorable
}

func trackMatcher() (*progress.Manual, *progress.Manual) {
	derivationsProcessed := progress.Manual{}
	vulnerabilitiesDiscovered := progress.Manual{}

	bus.Publish(partybus.Event{
		Type: event.VulnerabilityScanningStarted,
		Value: Monitor{
			DerivationsProcessed:      progress.Monitorable(&derivationsProcessed),
			VulnerabilitiesDiscovered: progress.Monitorable(&vulnerabilitiesDiscovered),
		},
	})
	return &derivationsProcessed, &vulnerabilitiesDiscovered
}

// FindMatches checks every derivation against the advisories claiming its product.
// Derivations sharing a name are collapsed to one representative first: duplicates reached
// through different store locations add no information and would double count in reports.
func FindMatches(provider vulnerability.Provider, derivations []derivation.Derivation) (match.Matches, error) {
	res := match.NewMatches()

	derivationsProcessed, vulnerabilitiesDiscovered := trackMatcher()
	defer derivationsProcessed.SetCompleted()
	defer vulnerabilitiesDiscovered.SetCompleted()

	for _, d := range deduplicate(derivations) {
		derivationsProcessed.N++

		matches, err := FindDerivationMatches(provider, d)
		if err != nil {
			return res, err
		}

		res.Add(d, matches...)
		vulnerabilitiesDiscovered.N += int64(len(matches))
	}

	log.Infof("found %d vulnerabilities for %d derivations", res.Count(), len(derivations))
	return res, nil
}

// FindDerivationMatches checks a single derivation. The advisory lookup goes by product
// name; every version constraint claimed for that product is then tested individually.
func FindDerivationMatches(provider vulnerability.Provider, d derivation.Derivation) ([]match.Match, error) {
	if d.Version == "" {
		log.Debugf("skipping unversioned derivation %q", d.Name)
		return nil, nil
	}

	records, err := provider.GetByProduct(d.Pname)
	if err != nil {
		return nil, fmt.Errorf("matcher failed to fetch advisories for product=%q: %w", d.Pname, err)
	}

	verObj, err := version.NewVersion(d.Version, version.NixFormat)
	if err != nil {
		return nil, fmt.Errorf("matcher failed to parse version drv=%q version=%q: %w", d.Name, d.Version, err)
	}

	var matches []match.Match
	for _, record := range records {
		satisfied, err := record.Constraint.Satisfied(verObj)
		if err != nil {
			log.Warnf("unable to test constraint=%q against version=%q: %+v", record.Constraint, verObj, err)
			continue
		}
		if !satisfied {
			continue
		}

		if d.AffectedBy != nil {
			d.AffectedBy.Add(record.ID)
		}
		matches = append(matches, match.Match{
			Vulnerability: record,
			Derivation:    d,
		})
	}
	return matches, nil
}

// deduplicate collapses derivations sharing a name, keeping the first in location order so
// the choice of representative is deterministic across runs.
func deduplicate(derivations []derivation.Derivation) []derivation.Derivation {
	sorted := make([]derivation.Derivation, len(derivations))
	copy(sorted, derivations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Location < sorted[j].Location
	})

	seen := make(map[string]bool)
	var out []derivation.Derivation
	for _, d := range sorted {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		out = append(out, d)
	}
	return out
}
