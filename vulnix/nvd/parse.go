package nvd

import (
	"compress/gzip"
	"encoding/json"
	"fmt"

	"github.com/facebookincubator/nvdtools/cvefeed/nvd/schema"
	"github.com/facebookincubator/nvdtools/wfn"
	"github.com/spf13/afero"

	"github.com/flyingcircus/vulnix/internal"
	"github.com/flyingcircus/vulnix/internal/log"
	"github.com/flyingcircus/vulnix/vulnix/version"
	"github.com/flyingcircus/vulnix/vulnix/vulnerability"
)

// loadSegment decompresses and unmarshals one cached feed archive.
func loadSegment(fs afero.Fs, path string) (*schema.NVDCVEFeedJSON10, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open feed archive (%s): %w", path, err)
	}
	defer log.CloseAndLogError(f, path)

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("unable to decompress feed archive (%s): %w", path, err)
	}
	defer log.CloseAndLogError(gz, path)

	var feed schema.NVDCVEFeedJSON10
	if err := json.NewDecoder(gz).Decode(&feed); err != nil {
		return nil, fmt.Errorf("unable to parse feed archive (%s): %w", path, err)
	}
	return &feed, nil
}

// recordsFromFeed flattens one feed into per-product advisory claims plus the descriptive
// metadata per CVE. Logical operators on configuration nodes are ignored: any vulnerable
// cpe match marks its product as affected, which errs towards false positives the same way
// any plain name/version scanner must.
func recordsFromFeed(feed *schema.NVDCVEFeedJSON10) ([]vulnerability.Vulnerability, []vulnerability.Metadata) {
	var records []vulnerability.Vulnerability
	var metadata []vulnerability.Metadata

	for _, item := range feed.CVEItems {
		if item == nil || item.CVE == nil || item.CVE.CVEDataMeta == nil {
			continue
		}
		id := item.CVE.CVEDataMeta.ID
		if id == "" {
			continue
		}

		seen := internal.NewStringSet()
		for _, match := range collectCPEMatches(item.Configurations) {
			if !match.Vulnerable {
				continue
			}
			uri := match.Cpe23Uri
			if uri == "" {
				uri = match.Cpe22Uri
			}
			attrs, err := wfn.Parse(uri)
			if err != nil {
				log.Debugf("skipping malformed CPE %q (%s): %+v", uri, id, err)
				continue
			}

			product := wfn.StripSlashes(attrs.Product)
			if product == wfn.Any || product == wfn.NA {
				continue
			}

			constraint := constraintFromMatch(match, attrs)

			// identical claims show up once per configuration node they appear under
			key := product + "|" + constraint.String()
			if seen.Contains(key) {
				continue
			}
			seen.Add(key)

			records = append(records, vulnerability.Vulnerability{
				ID:         id,
				Product:    product,
				Constraint: constraint,
			})
		}

		metadata = append(metadata, metadataFromItem(item))
	}

	return records, metadata
}

// collectCPEMatches flattens a configuration tree into its cpe match leaves.
func collectCPEMatches(config *schema.NVDCVEFeedJSON10DefConfigurations) []*schema.NVDCVEFeedJSON10DefCPEMatch {
	if config == nil {
		return nil
	}

	var matches []*schema.NVDCVEFeedJSON10DefCPEMatch
	nodes := make([]*schema.NVDCVEFeedJSON10DefNode, len(config.Nodes))
	copy(nodes, config.Nodes)

	for len(nodes) > 0 {
		node := nodes[0]
		nodes = nodes[1:]
		if node == nil {
			continue
		}
		for _, match := range node.CPEMatch {
			if match != nil {
				matches = append(matches, match)
			}
		}
		nodes = append(nodes, node.Children...)
	}

	return matches
}

// constraintFromMatch derives the version constraint of one cpe match entry. Explicit range
// fields take precedence; otherwise a concrete version in the CPE itself becomes an exact
// constraint, and a wildcard version matches anything.
func constraintFromMatch(match *schema.NVDCVEFeedJSON10DefCPEMatch, attrs *wfn.Attributes) version.Constraint {
	var start, end *version.Bound

	switch {
	case match.VersionStartIncluding != "":
		start = &version.Bound{Version: match.VersionStartIncluding, Inclusive: true}
	case match.VersionStartExcluding != "":
		start = &version.Bound{Version: match.VersionStartExcluding}
	}
	switch {
	case match.VersionEndIncluding != "":
		end = &version.Bound{Version: match.VersionEndIncluding, Inclusive: true}
	case match.VersionEndExcluding != "":
		end = &version.Bound{Version: match.VersionEndExcluding}
	}

	if start == nil && end == nil {
		if v := cpeVersion(attrs); v != "" {
			return version.NewExactConstraint(v)
		}
	}
	return version.NewConstraint(start, end)
}

// cpeVersion reassembles the version of a CPE from its version and update attributes
// ("7.4" + "p1" -> "7.4p1"), matching how package names spell such versions.
func cpeVersion(attrs *wfn.Attributes) string {
	v := wfn.StripSlashes(attrs.Version)
	if v == wfn.Any || v == wfn.NA {
		return ""
	}
	if u := wfn.StripSlashes(attrs.Update); u != wfn.Any && u != wfn.NA {
		v += u
	}
	return v
}

func metadataFromItem(item *schema.NVDCVEFeedJSON10DefCVEItem) vulnerability.Metadata {
	m := vulnerability.Metadata{
		ID: item.CVE.CVEDataMeta.ID,
	}

	if item.CVE.Description != nil {
		for _, d := range item.CVE.Description.DescriptionData {
			if d == nil || d.Value == "" {
				continue
			}
			if m.Description == "" || d.Lang == "en" {
				m.Description = d.Value
			}
			if d.Lang == "en" {
				break
			}
		}
	}

	if item.CVE.References != nil {
		for _, ref := range item.CVE.References.ReferenceData {
			if ref != nil && ref.URL != "" {
				m.URLs = append(m.URLs, ref.URL)
			}
		}
	}

	if item.Impact != nil {
		if bm := item.Impact.BaseMetricV2; bm != nil && bm.CVSSV2 != nil {
			m.CvssV2 = &vulnerability.Cvss{
				BaseScore: bm.CVSSV2.BaseScore,
				Vector:    bm.CVSSV2.VectorString,
			}
			m.Severity = bm.Severity
		}
		if bm := item.Impact.BaseMetricV3; bm != nil && bm.CVSSV3 != nil {
			m.CvssV3 = &vulnerability.Cvss{
				BaseScore: bm.CVSSV3.BaseScore,
				Vector:    bm.CVSSV3.VectorString,
			}
			// v3 severity wins when both metrics are present
			m.Severity = bm.CVSSV3.BaseSeverity
		}
	}

	return m
}
