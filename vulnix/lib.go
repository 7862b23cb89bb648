package vulnix

import (
	"errors"

	"github.com/hashicorp/go-multierror"
	"github.com/wagoodman/go-partybus"

	"github.com/flyingcircus/vulnix/internal/bus"
	"github.com/flyingcircus/vulnix/internal/log"
	"github.com/flyingcircus/vulnix/vulnix/derivation"
	"github.com/flyingcircus/vulnix/vulnix/logger"
	"github.com/flyingcircus/vulnix/vulnix/match"
	"github.com/flyingcircus/vulnix/vulnix/matcher"
	"github.com/flyingcircus/vulnix/vulnix/nix"
	"github.com/flyingcircus/vulnix/vulnix/nvd"
	"github.com/flyingcircus/vulnix/vulnix/vulnerability"
)

// LoadFeed opens the advisory feed cache and returns lookup providers for
// matching. With update set the cache is refreshed from the mirror first,
// otherwise the previously cached segments are indexed as-is.
func LoadFeed(cfg nvd.Config, update bool) (vulnerability.Provider, vulnerability.MetadataProvider, *nvd.Status, error) {
	curator, err := nvd.NewCurator(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	if update {
		if _, err := curator.Update(); err != nil {
			return nil, nil, nil, err
		}
	} else {
		if err := curator.Load(); err != nil {
			return nil, nil, nil, err
		}
	}

	status := curator.Status()
	return &curator, &curator, &status, nil
}

// Resolve loads derivations for all requested scan roots. When several roots are
// given a missing one is skipped with a warning so that a single stale symlink
// does not block the whole scan; resolving nothing at all remains an error.
func Resolve(store *nix.Store, gcRoots bool, paths []string) ([]derivation.Derivation, error) {
	if gcRoots {
		if err := store.AddGCRoots(); err != nil {
			return nil, err
		}
	}

	var notFound *multierror.Error
	for _, path := range paths {
		if err := store.AddPath(path); err != nil {
			var missing *nix.NotFoundError
			if len(paths) > 1 && errors.As(err, &missing) {
				log.Warnf("skipping missing scan root %s", path)
				notFound = multierror.Append(notFound, err)
				continue
			}
			return nil, err
		}
	}

	if store.Count() == 0 && notFound != nil {
		return nil, notFound.ErrorOrNil()
	}
	return store.Derivations(), nil
}

// FindVulnerabilities resolves the scan roots and matches every derivation in the
// resulting closure against the advisory feed.
func FindVulnerabilities(provider vulnerability.Provider, store *nix.Store, gcRoots bool, paths []string) (match.Matches, []derivation.Derivation, error) {
	derivations, err := Resolve(store, gcRoots, paths)
	if err != nil {
		return match.Matches{}, nil, err
	}

	matches, err := matcher.FindMatches(provider, derivations)
	return matches, derivations, err
}

// SetLogger sets the logger object used for all logging calls.
func SetLogger(logger logger.Logger) {
	log.Log = logger
}

// SetBus sets the event bus for all library bus publish events onto (in-library eventing).
func SetBus(b *partybus.Bus) {
	bus.SetPublisher(b)
}
