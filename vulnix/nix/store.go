package nix

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scylladb/go-set/strset"
	"github.com/spf13/afero"

	"github.com/flyingcircus/vulnix/internal/log"
	"github.com/flyingcircus/vulnix/vulnix/derivation"
)

const (
	// CurrentSystemPath is the gc root pointing at the running NixOS system.
	CurrentSystemPath = "/nix/var/nix/gcroots/current-system"

	// DefaultGCRootsDir is the symlink farm holding all live gc roots.
	DefaultGCRootsDir = "/nix/var/nix/gcroots"

	drvExt       = ".drv"
	maxLinkDepth = 16
)

// NotFoundError indicates a scan root that does not point into the nix store.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no store path found at %q", e.Path)
}

// Store collects the derivations reachable from the requested scan roots. Roots may be
// .drv files, plain store paths, or symlinks to either (nix-build result links, gc roots).
// Derivations are keyed by location, so the same node reached through several roots or
// dependency paths is only held once.
type Store struct {
	requisites  bool
	fs          afero.Fs
	gcRootsDir  string
	dbPath      string
	db          *DB
	dbErr       error
	dbLoaded    bool
	derivations map[string]derivation.Derivation
}

// NewStore creates a Store backed by the host filesystem. With requisites set, every root
// is expanded into its full transitive build closure; otherwise only the roots themselves
// are examined.
func NewStore(requisites bool) *Store {
	return &Store{
		requisites:  requisites,
		fs:          afero.NewOsFs(),
		gcRootsDir:  DefaultGCRootsDir,
		dbPath:      DefaultDBPath,
		derivations: make(map[string]derivation.Derivation),
	}
}

// AddPath registers one scan root.
func (s *Store) AddPath(root string) error {
	target, err := s.resolveLink(root)
	if err != nil {
		return err
	}

	exists, err := afero.Exists(s.fs, target)
	if err != nil {
		return err
	}
	if !exists {
		return &NotFoundError{Path: root}
	}

	drvPath := target
	if !strings.HasSuffix(target, drvExt) {
		deriver := s.deriverOf(target)
		if deriver == "" {
			if s.db == nil {
				log.Warnf("nix store database unavailable, examining %s on its own", target)
			} else {
				log.Warnf("no build recipe recorded for %s, scanning its runtime closure instead", target)
			}
			s.addReferenceClosure(target)
			return nil
		}
		if exists, err := afero.Exists(s.fs, deriver); err != nil || !exists {
			log.Warnf("recipe %s is gone from the store, scanning the runtime closure of %s instead", deriver, target)
			s.addReferenceClosure(target)
			return nil
		}
		drvPath = deriver
	}

	return s.addClosure(drvPath)
}

// AddGCRoots registers every gc root found in the symlink farm as a scan root. Dangling
// links are skipped with a warning, the farm routinely holds some.
func (s *Store) AddGCRoots() error {
	exists, err := afero.DirExists(s.fs, s.gcRootsDir)
	if err != nil {
		return err
	}
	if !exists {
		return &NotFoundError{Path: s.gcRootsDir}
	}

	var roots []string
	err = afero.Walk(s.fs, s.gcRootsDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warnf("unable to inspect gc root entry %s: %+v", p, err)
			return nil
		}
		if info.IsDir() {
			if info.Name() == "manifests" {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return nil
		}
		roots = append(roots, p)
		return nil
	})
	if err != nil {
		return err
	}

	for _, root := range roots {
		if err := s.AddPath(root); err != nil {
			log.Warnf("ignoring dangling gc root %s: %+v", root, err)
		}
	}
	return nil
}

// Derivations returns everything collected so far, ordered by location.
func (s *Store) Derivations() []derivation.Derivation {
	locations := make([]string, 0, len(s.derivations))
	for location := range s.derivations {
		locations = append(locations, location)
	}
	sort.Strings(locations)

	out := make([]derivation.Derivation, 0, len(locations))
	for _, location := range locations {
		out = append(out, s.derivations[location])
	}
	return out
}

func (s *Store) Count() int {
	return len(s.derivations)
}

// addClosure walks the dependency graph breadth first, following declared inputs. The
// visited set is keyed by location so reference cycles cannot loop the traversal.
func (s *Store) addClosure(drvPath string) error {
	visited := strset.New()
	queue := []string{drvPath}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		if visited.Has(p) {
			continue
		}
		visited.Add(p)

		if _, done := s.derivations[p]; done {
			continue
		}

		d, err := derivation.FromDrvFile(s.fs, p)
		if err != nil {
			if p == drvPath {
				return err
			}
			log.Warnf("skipping unreadable derivation: %+v", err)
			continue
		}
		s.derivations[p] = d

		if s.requisites {
			queue = append(queue, d.InputDrvs...)
		}
	}
	return nil
}

// addReferenceClosure walks the runtime closure of an output path along the store
// database's reference graph. This is all that is left to go by for paths substituted
// from a binary cache, whose build recipes never existed locally. Without the database
// only the path itself is added.
func (s *Store) addReferenceClosure(storePath string) {
	visited := strset.New()
	queue := []string{storePath}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		if visited.Has(p) {
			continue
		}
		visited.Add(p)

		if _, done := s.derivations[p]; done {
			continue
		}
		d := derivation.FromStorePath(p)
		s.derivations[d.Location] = d

		if s.requisites && s.db != nil {
			queue = append(queue, s.db.References(p)...)
		}
	}
}

// resolveLink follows a chain of symlinks to its target, like the result links nix-build
// leaves behind. Filesystems without symlink support hand the path back unchanged.
func (s *Store) resolveLink(p string) (string, error) {
	lstater, ok := s.fs.(afero.Lstater)
	reader, okRead := s.fs.(afero.LinkReader)
	if !ok || !okRead {
		return p, nil
	}

	for depth := 0; depth < maxLinkDepth; depth++ {
		info, _, err := lstater.LstatIfPossible(p)
		if err != nil {
			// leave existence errors for the caller, it knows the original root name
			return p, nil
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return p, nil
		}

		target, err := reader.ReadlinkIfPossible(p)
		if err != nil {
			return "", fmt.Errorf("unable to resolve link (%s): %w", p, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(p), target)
		}
		p = target
	}
	return "", fmt.Errorf("too many levels of symbolic links (%s)", p)
}

// deriverOf looks up the .drv that built a store path, lazily loading the store database.
func (s *Store) deriverOf(storePath string) string {
	if !s.dbLoaded {
		s.dbLoaded = true
		s.db, s.dbErr = OpenDB(s.dbPath)
		if s.dbErr != nil {
			log.Debugf("nix store database unavailable: %+v", s.dbErr)
		}
	}
	if s.db == nil {
		return ""
	}
	return s.db.Deriver(storePath)
}
