package models

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/flyingcircus/vulnix/internal"
	"github.com/flyingcircus/vulnix/internal/version"
)

// Document is the full report shape handed to templates. The plain JSON output
// stays a bare findings array for compatibility with existing consumers; the
// surrounding metadata is only available here.
type Document struct {
	ID          string     `json:"id"`
	Timestamp   time.Time  `json:"timestamp"`
	Findings    []Finding  `json:"findings"`
	Whitelisted []Finding  `json:"whitelisted,omitempty"`
	Descriptor  Descriptor `json:"descriptor"`
}

// Descriptor identifies the tool that produced the report.
type Descriptor struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewDocument assembles findings sorted by pname. Masked findings are carried in
// their own list, and additionally folded into Findings (flagged) when the report
// asks for whitelisted entries to be shown.
func NewDocument(report Report) Document {
	findings := make([]Finding, 0)
	for _, location := range report.Affected.Locations() {
		found := report.Affected.GetByLocation(location)
		if len(found) == 0 {
			continue
		}
		findings = append(findings, NewFinding(found[0].Derivation))
	}

	whitelisted := make([]Finding, 0)
	for _, masked := range report.Masked {
		finding := NewFinding(masked.Derivation)
		finding.Whitelisted = true
		whitelisted = append(whitelisted, finding)
	}
	if report.ShowWhitelisted {
		findings = append(findings, whitelisted...)
	}

	sortFindings(findings)
	sortFindings(whitelisted)

	return Document{
		ID:          uuid.New().URN(),
		Timestamp:   time.Now(),
		Findings:    findings,
		Whitelisted: whitelisted,
		Descriptor: Descriptor{
			Name:    internal.ApplicationName,
			Version: version.FromBuild().Version,
		},
	}
}

func sortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Pname == findings[j].Pname {
			if findings[i].Name == findings[j].Name {
				return findings[i].Derivation < findings[j].Derivation
			}
			return findings[i].Name < findings[j].Name
		}
		return findings[i].Pname < findings[j].Pname
	})
}
