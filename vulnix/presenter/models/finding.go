package models

import (
	"sort"

	"github.com/anchore/packageurl-go"

	"github.com/flyingcircus/vulnix/vulnix/derivation"
)

// Finding is one affected derivation as it appears in reports.
type Finding struct {
	Name        string   `json:"name"`
	Pname       string   `json:"pname"`
	Version     string   `json:"version"`
	Derivation  string   `json:"derivation"`
	AffectedBy  []string `json:"affected_by"`
	PURL        string   `json:"purl,omitempty"`
	Whitelisted bool     `json:"whitelisted,omitempty"`
}

func NewFinding(d derivation.Derivation) Finding {
	var affectedBy []string
	if d.AffectedBy != nil {
		affectedBy = d.AffectedBy.List()
	}
	sort.Strings(affectedBy)
	return Finding{
		Name:       d.Name,
		Pname:      d.Pname,
		Version:    d.Version,
		Derivation: d.StorePath,
		AffectedBy: affectedBy,
		PURL:       purlOf(d),
	}
}

func purlOf(d derivation.Derivation) string {
	if d.Pname == "" {
		return ""
	}
	return packageurl.NewPackageURL("nix", "", d.Pname, d.Version, nil, "").ToString()
}
