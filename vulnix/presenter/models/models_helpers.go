package models

import (
	"testing"
	"time"

	"github.com/scylladb/go-set/strset"

	"github.com/flyingcircus/vulnix/vulnix/derivation"
	"github.com/flyingcircus/vulnix/vulnix/match"
	"github.com/flyingcircus/vulnix/vulnix/version"
	"github.com/flyingcircus/vulnix/vulnix/vulnerability"
	"github.com/flyingcircus/vulnix/vulnix/whitelist"
)

// GenerateReport builds a small, deterministic report for presenter tests.
func GenerateReport(t *testing.T) Report {
	t.Helper()

	openssl := derivation.Derivation{
		Name:       "openssl-1.0.1a",
		Pname:      "openssl",
		Version:    "1.0.1a",
		Location:   "/nix/store/aaa-openssl-1.0.1a.drv",
		StorePath:  "/nix/store/aaa-openssl-1.0.1a",
		AffectedBy: strset.New("CVE-2014-0160", "CVE-2016-0800"),
	}
	ffmpeg := derivation.Derivation{
		Name:       "ffmpeg-4.4",
		Pname:      "ffmpeg",
		Version:    "4.4",
		Location:   "/nix/store/ccc-ffmpeg-4.4.drv",
		StorePath:  "/nix/store/ccc-ffmpeg-4.4",
		AffectedBy: strset.New("CVE-2021-38114"),
	}
	zlib := derivation.Derivation{
		Name:       "zlib-1.2.8",
		Pname:      "zlib",
		Version:    "1.2.8",
		Location:   "/nix/store/bbb-zlib-1.2.8.drv",
		StorePath:  "/nix/store/bbb-zlib-1.2.8",
		AffectedBy: strset.New("CVE-2016-9840"),
	}

	affected := match.NewMatches()
	for _, d := range []derivation.Derivation{openssl, ffmpeg} {
		ids := d.AffectedBy.List()
		found := make([]match.Match, 0, len(ids))
		for _, id := range ids {
			found = append(found, match.Match{
				Vulnerability: vulnerability.Vulnerability{
					ID:         id,
					Product:    d.Pname,
					Constraint: version.NewConstraint(nil, nil),
				},
				Derivation: d,
			})
		}
		affected.Add(d, found...)
	}

	rule := whitelist.NewRule("zlib-1.2.8")
	rule.Until = time.Date(2022, 3, 20, 0, 0, 0, 0, time.UTC)
	rule.Comment = []string{"compression bombs do not apply here"}

	return Report{
		Affected: affected,
		Masked: []whitelist.Masked{
			{
				Derivation: zlib,
				Rule:       *rule,
				MatchType:  whitelist.MatchTemporary,
			},
		},
	}
}
