package nvd

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/flyingcircus/vulnix/vulnix/version"
	"github.com/flyingcircus/vulnix/vulnix/vulnerability"
)

const feedFixture = `{
  "CVE_data_type": "CVE",
  "CVE_data_format": "MITRE",
  "CVE_data_version": "4.0",
  "CVE_data_numberOfCVEs": "3",
  "CVE_data_timestamp": "2022-03-20T03:00Z",
  "CVE_Items": [
    {
      "cve": {
        "data_type": "CVE",
        "data_format": "MITRE",
        "data_version": "4.0",
        "CVE_data_meta": {"ID": "CVE-2014-0160", "ASSIGNER": "cve@mitre.org"},
        "description": {"description_data": [
          {"lang": "es", "value": "La implementacion TLS y DTLS..."},
          {"lang": "en", "value": "The TLS and DTLS implementations do not properly handle Heartbeat Extension packets."}
        ]},
        "references": {"reference_data": [
          {"url": "https://example.com/heartbleed", "name": "advisory", "refsource": "MISC"}
        ]}
      },
      "configurations": {
        "CVE_data_version": "4.0",
        "nodes": [
          {"operator": "OR", "cpe_match": [
            {"vulnerable": true, "cpe23Uri": "cpe:2.3:a:openssl:openssl:*:*:*:*:*:*:*:*", "versionStartIncluding": "1.0.0", "versionEndExcluding": "1.0.2"}
          ]}
        ]
      },
      "impact": {
        "baseMetricV2": {
          "cvssV2": {"version": "2.0", "vectorString": "AV:N/AC:L/Au:N/C:P/I:N/A:N", "baseScore": 5.0},
          "severity": "MEDIUM"
        },
        "baseMetricV3": {
          "cvssV3": {"version": "3.1", "vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:N/A:N", "baseScore": 7.5, "baseSeverity": "HIGH"}
        }
      },
      "publishedDate": "2014-04-07T22:55Z",
      "lastModifiedDate": "2020-10-15T13:29Z"
    },
    {
      "cve": {
        "data_type": "CVE",
        "data_format": "MITRE",
        "data_version": "4.0",
        "CVE_data_meta": {"ID": "CVE-2016-10009", "ASSIGNER": "cve@mitre.org"},
        "description": {"description_data": [
          {"lang": "en", "value": "Untrusted search path vulnerability in ssh-agent."}
        ]}
      },
      "configurations": {
        "CVE_data_version": "4.0",
        "nodes": [
          {"operator": "AND", "children": [
            {"operator": "OR", "cpe_match": [
              {"vulnerable": true, "cpe23Uri": "cpe:2.3:a:openbsd:openssh:7.4:p1:*:*:*:*:*:*"},
              {"vulnerable": false, "cpe23Uri": "cpe:2.3:o:canonical:ubuntu_linux:16.04:*:*:*:*:*:*:*"}
            ]}
          ]},
          {"operator": "OR", "cpe_match": [
            {"vulnerable": true, "cpe23Uri": "cpe:2.3:a:openbsd:openssh:7.4:p1:*:*:*:*:*:*"}
          ]}
        ]
      }
    },
    {
      "cve": {
        "data_type": "CVE",
        "data_format": "MITRE",
        "data_version": "4.0",
        "CVE_data_meta": {"ID": "CVE-2021-9999", "ASSIGNER": "cve@mitre.org"},
        "description": {"description_data": [
          {"lang": "en", "value": "Widget is broken in every version."}
        ]}
      },
      "configurations": {
        "CVE_data_version": "4.0",
        "nodes": [
          {"cpe_match": [
            {"vulnerable": true, "cpe23Uri": "cpe:2.3:a:example:widget:*:*:*:*:*:*:*:*"}
          ]}
        ]
      }
    }
  ]
}`

func gzipBytes(t *testing.T, payload string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(payload)); err != nil {
		t.Fatalf("unable to compress fixture: %+v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("unable to compress fixture: %+v", err)
	}
	return buf.Bytes()
}

func loadFixtureFeed(t *testing.T) ([]vulnerability.Vulnerability, []vulnerability.Metadata) {
	t.Helper()
	fs := afero.NewMemMapFs()
	archivePath := "/cache/nvdcve-1.1-2014.json.gz"
	if err := afero.WriteFile(fs, archivePath, gzipBytes(t, feedFixture), 0644); err != nil {
		t.Fatalf("unable to write fixture: %+v", err)
	}

	feed, err := loadSegment(fs, archivePath)
	if err != nil {
		t.Fatalf("unable to load fixture feed: %+v", err)
	}
	if len(feed.CVEItems) != 3 {
		t.Fatalf("expected 3 CVE items, got %d", len(feed.CVEItems))
	}
	return recordsFromFeed(feed)
}

func TestRecordsFromFeed(t *testing.T) {
	records, _ := loadFixtureFeed(t)

	expected := []vulnerability.Vulnerability{
		{ID: "CVE-2014-0160", Product: "openssl"},
		{ID: "CVE-2016-10009", Product: "openssh"},
		{ID: "CVE-2021-9999", Product: "widget"},
	}
	expectedConstraints := []string{
		">=1.0.0, <1.0.2 (nix)",
		"= 7.4p1 (nix)",
		"none (nix)",
	}

	if len(records) != len(expected) {
		t.Fatalf("expected %d records, got %d: %+v", len(expected), len(records), records)
	}
	for i, record := range records {
		if record.ID != expected[i].ID {
			t.Errorf("record %d: expected ID %q, got %q", i, expected[i].ID, record.ID)
		}
		if record.Product != expected[i].Product {
			t.Errorf("record %d: expected product %q, got %q", i, expected[i].Product, record.Product)
		}
		if record.Constraint.String() != expectedConstraints[i] {
			t.Errorf("record %d: expected constraint %q, got %q", i, expectedConstraints[i], record.Constraint.String())
		}
	}
}

func TestRecordsFromFeedConstraintSatisfaction(t *testing.T) {
	records, _ := loadFixtureFeed(t)

	v, err := version.NewVersion("1.0.1a", version.NixFormat)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	satisfied, err := records[0].Constraint.Satisfied(v)
	if err != nil {
		t.Fatalf("unexpected constraint error: %+v", err)
	}
	if !satisfied {
		t.Errorf("expected %q to satisfy %q", v.Raw, records[0].Constraint)
	}
}

func TestMetadataFromFeed(t *testing.T) {
	_, metadata := loadFixtureFeed(t)

	if len(metadata) != 3 {
		t.Fatalf("expected 3 metadata entries, got %d", len(metadata))
	}

	m := metadata[0]
	if m.ID != "CVE-2014-0160" {
		t.Errorf("unexpected ID: %q", m.ID)
	}
	if !strings.HasPrefix(m.Description, "The TLS and DTLS implementations") {
		t.Errorf("expected the english description, got %q", m.Description)
	}
	// v3 severity wins over the v2 one
	if m.Severity != "HIGH" {
		t.Errorf("unexpected severity: %q", m.Severity)
	}
	if m.CvssV2 == nil || m.CvssV2.BaseScore != 5.0 {
		t.Errorf("unexpected cvss v2: %+v", m.CvssV2)
	}
	if m.CvssV3 == nil || m.CvssV3.BaseScore != 7.5 {
		t.Errorf("unexpected cvss v3: %+v", m.CvssV3)
	}
	if len(m.URLs) != 1 || m.URLs[0] != "https://example.com/heartbleed" {
		t.Errorf("unexpected references: %+v", m.URLs)
	}
}
