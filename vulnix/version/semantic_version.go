package version

import (
	"fmt"
	"strings"

	hashiVer "github.com/anchore/go-version"
)

// normalizer rewrites ruby-style pre-release separators into the semver form understood by
// the underlying semver library (e.g. "1.2.0.rc1" -> "1.2.0-rc1").
var normalizer = strings.NewReplacer(".alpha", "-alpha", ".beta", "-beta", ".rc", "-rc")

type semanticVersion struct {
	verObj *hashiVer.Version
}

func newSemanticVersion(raw string) (*semanticVersion, error) {
	verObj, err := hashiVer.NewVersion(normalizer.Replace(raw))
	if err != nil {
		return nil, fmt.Errorf("unable to create semver obj: %w", err)
	}
	return &semanticVersion{
		verObj: verObj,
	}, nil
}
