package nix

import (
	"fmt"
	"sort"

	"github.com/alicebob/sqlittle"

	"github.com/flyingcircus/vulnix/internal/log"
)

// DefaultDBPath is where nix keeps its store database on a stock installation.
const DefaultDBPath = "/nix/var/nix/db/db.sqlite"

// DB is a read-only snapshot of the nix store database, which records every valid store
// path together with the .drv file that built it and the paths it references. This is the
// same data `nix-store --query` serves, read directly so no nix tooling is required on the
// scanning host.
type DB struct {
	derivers   map[string]string
	references map[string][]string
}

// OpenDB loads the relevant tables of the store database into memory. The file is opened
// read-only and closed before returning, so a concurrently running nix daemon is not
// disturbed.
func OpenDB(dbPath string) (*DB, error) {
	db, err := sqlittle.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open nix store database (%s): %w", dbPath, err)
	}
	defer log.CloseAndLogError(db, dbPath)

	var scanErr error

	pathsByID := make(map[int64]string)
	derivers := make(map[string]string)
	err = db.Select("ValidPaths", func(row sqlittle.Row) {
		var id int64
		var path, deriver string
		if err := row.Scan(&id, &path, &deriver); err != nil {
			scanErr = fmt.Errorf("unable to scan over ValidPaths row: %w", err)
			return
		}
		pathsByID[id] = path
		if deriver != "" {
			derivers[path] = deriver
		}
	}, "id", "path", "deriver")
	if err != nil {
		return nil, fmt.Errorf("unable to query nix store database: %w", err)
	}
	if scanErr != nil {
		return nil, scanErr
	}

	refIDs := make(map[int64][]int64)
	err = db.Select("Refs", func(row sqlittle.Row) {
		var referrer, reference int64
		if err := row.Scan(&referrer, &reference); err != nil {
			scanErr = fmt.Errorf("unable to scan over Refs row: %w", err)
			return
		}
		refIDs[referrer] = append(refIDs[referrer], reference)
	}, "referrer", "reference")
	if err != nil {
		return nil, fmt.Errorf("unable to query nix store database: %w", err)
	}
	if scanErr != nil {
		return nil, scanErr
	}

	references := make(map[string][]string)
	for referrer, refs := range refIDs {
		referrerPath, ok := pathsByID[referrer]
		if !ok {
			continue
		}
		for _, ref := range refs {
			if refPath, ok := pathsByID[ref]; ok {
				references[referrerPath] = append(references[referrerPath], refPath)
			}
		}
		sort.Strings(references[referrerPath])
	}

	return &DB{
		derivers:   derivers,
		references: references,
	}, nil
}

// Deriver returns the .drv file that built the given store path, or "" when the database
// does not record one (e.g. paths copied from a binary cache without their recipe).
func (d *DB) Deriver(storePath string) string {
	return d.derivers[storePath]
}

// References returns the store paths the given path directly references.
func (d *DB) References(storePath string) []string {
	return d.references[storePath]
}
