package derivation

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/scylladb/go-set/strset"
	"github.com/spf13/afero"
)

// Derivation represents one build product in the nix store: either a build recipe parsed
// from a .drv file or a plain output path supplied directly. Location is the stable
// identity used for deduplication during closure traversal; Name is the human-facing
// "<pname>-<version>" form that duplicate findings collapse on in reports.
type Derivation struct {
	Name       string      // the full store name, e.g. "openssl-1.0.1a"
	Pname      string      // the name with the trailing version stripped
	Version    string      // the version part of the name, empty if it carries none
	Location   string      // identity: the .drv path, or the store path itself
	StorePath  string      // the main build output path
	InputDrvs  []string    // references to the .drv files this one depends on
	AffectedBy *strset.Set // advisory IDs discovered by matching, empty until then
}

// FromDrvFile reads and parses a .drv file from the nix store.
func FromDrvFile(fs afero.Fs, drvPath string) (Derivation, error) {
	contents, err := afero.ReadFile(fs, drvPath)
	if err != nil {
		return Derivation{}, fmt.Errorf("unable to read derivation (%s): %w", drvPath, err)
	}
	return fromDrv(drvPath, string(contents))
}

func fromDrv(drvPath, contents string) (Derivation, error) {
	d, err := parseDrv(contents)
	if err != nil {
		return Derivation{}, fmt.Errorf("unable to parse derivation (%s): %w", drvPath, err)
	}

	out := d.env["out"]
	if out == "" {
		out = d.outputs["out"]
	}

	name := d.env["name"]
	if name == "" {
		if out == "" {
			return Derivation{}, fmt.Errorf("derivation has neither a name nor an output (%s)", drvPath)
		}
		name = NameFromPath(out)
	}

	inputs := make([]string, len(d.inputDrvs))
	copy(inputs, d.inputDrvs)
	sort.Strings(inputs)

	pname, version := SplitName(name)
	return Derivation{
		Name:       name,
		Pname:      pname,
		Version:    version,
		Location:   drvPath,
		StorePath:  out,
		InputDrvs:  inputs,
		AffectedBy: strset.New(),
	}, nil
}

// FromStorePath builds a Derivation for a plain store path. Dependency references are not
// recoverable from an output path alone, so the result never expands further.
func FromStorePath(storePath string) Derivation {
	name := NameFromPath(storePath)
	pname, version := SplitName(name)
	return Derivation{
		Name:       name,
		Pname:      pname,
		Version:    version,
		Location:   storePath,
		StorePath:  storePath,
		AffectedBy: strset.New(),
	}
}

// SplitName splits a store name at the first dash that is followed by a digit, which is
// how nix itself separates the two ("openssl-1.0.1a" -> "openssl", "1.0.1a"). A name with
// no such dash has no version component.
func SplitName(name string) (pname, version string) {
	for i, r := range name {
		if r != '-' || i+1 >= len(name) {
			continue
		}
		if unicode.IsDigit(rune(name[i+1])) {
			return name[:i], name[i+1:]
		}
	}
	return name, ""
}

// NameFromPath strips the directory and the leading content hash from a store path:
// "/nix/store/8is...z2-openssl-1.0.1a" -> "openssl-1.0.1a".
func NameFromPath(storePath string) string {
	base := path.Base(storePath)
	if i := strings.IndexByte(base, '-'); i >= 0 {
		return base[i+1:]
	}
	return base
}

// String is the string representation of select derivation fields.
func (d Derivation) String() string {
	return fmt.Sprintf("Drv(name=%s version=%s location=%s)", d.Pname, d.Version, d.Location)
}
