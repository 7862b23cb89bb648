package matcher

import (
	"fmt"
	"strings"
	"testing"

	"github.com/scylladb/go-set/strset"

	"github.com/flyingcircus/vulnix/vulnix/derivation"
	"github.com/flyingcircus/vulnix/vulnix/version"
	"github.com/flyingcircus/vulnix/vulnix/vulnerability"
)

type mockProvider struct {
	byProduct map[string][]vulnerability.Vulnerability
	err       error
}

func (p *mockProvider) GetByProduct(product string) ([]vulnerability.Vulnerability, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.byProduct[strings.ToLower(product)], nil
}

func testDrv(name, location string) derivation.Derivation {
	pname, ver := derivation.SplitName(name)
	return derivation.Derivation{
		Name:       name,
		Pname:      pname,
		Version:    ver,
		Location:   location,
		StorePath:  strings.TrimSuffix(location, ".drv"),
		AffectedBy: strset.New(),
	}
}

func heartbleedProvider() *mockProvider {
	return &mockProvider{
		byProduct: map[string][]vulnerability.Vulnerability{
			"openssl": {
				{
					ID:      "CVE-2014-0160",
					Product: "openssl",
					Constraint: version.NewConstraint(
						&version.Bound{Version: "1.0.0", Inclusive: true},
						&version.Bound{Version: "1.0.2", Inclusive: false},
					),
				},
				{
					ID:      "CVE-2099-0001",
					Product: "openssl",
					Constraint: version.NewConstraint(
						&version.Bound{Version: "3.0.0", Inclusive: true},
						nil,
					),
				},
			},
		},
	}
}

func TestFindMatchesScenario(t *testing.T) {
	openssl := testDrv("openssl-1.0.1a", "/nix/store/aaa-openssl-1.0.1a.drv")
	zlib := testDrv("zlib-1.2.11", "/nix/store/ccc-zlib-1.2.11.drv")

	actual, err := FindMatches(heartbleedProvider(), []derivation.Derivation{openssl, zlib})
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}

	if actual.Count() != 1 {
		t.Fatalf("expected 1 match, got %d", actual.Count())
	}
	m := actual.Sorted()[0]
	if m.Vulnerability.ID != "CVE-2014-0160" {
		t.Errorf("unexpected advisory: %q", m.Vulnerability.ID)
	}
	if m.Derivation.Name != "openssl-1.0.1a" {
		t.Errorf("unexpected derivation: %q", m.Derivation.Name)
	}
	if !openssl.AffectedBy.Has("CVE-2014-0160") {
		t.Error("expected the derivation's advisory set to be populated")
	}
	if openssl.AffectedBy.Has("CVE-2099-0001") {
		t.Error("a constraint outside the version must not match")
	}
	if zlib.AffectedBy.Size() != 0 {
		t.Error("expected no advisories for zlib")
	}
}

func TestFindMatchesDeduplicatesByName(t *testing.T) {
	first := testDrv("openssl-1.0.1a", "/nix/store/aaa-openssl-1.0.1a.drv")
	second := testDrv("openssl-1.0.1a", "/nix/store/bbb-openssl-1.0.1a.drv")

	actual, err := FindMatches(heartbleedProvider(), []derivation.Derivation{second, first})
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}

	if actual.Count() != 1 {
		t.Fatalf("expected duplicates to collapse to 1 match, got %d", actual.Count())
	}
	locations := actual.Locations()
	if len(locations) != 1 || locations[0] != "/nix/store/aaa-openssl-1.0.1a.drv" {
		t.Errorf("expected the first location in order as representative, got %+v", locations)
	}
}

func TestFindMatchesSkipsUnversioned(t *testing.T) {
	system := testDrv("nixos-system-nixos", "/nix/store/sss-nixos-system-nixos.drv")

	actual, err := FindMatches(heartbleedProvider(), []derivation.Derivation{system})
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if actual.Count() != 0 {
		t.Errorf("expected no matches for an unversioned derivation, got %d", actual.Count())
	}
}

func TestFindMatchesProviderError(t *testing.T) {
	provider := &mockProvider{err: fmt.Errorf("index not loaded")}
	openssl := testDrv("openssl-1.0.1a", "/nix/store/aaa-openssl-1.0.1a.drv")

	if _, err := FindMatches(provider, []derivation.Derivation{openssl}); err == nil {
		t.Fatal("expected the provider error to propagate")
	}
}

func TestFindDerivationMatchesWildcardConstraint(t *testing.T) {
	provider := &mockProvider{
		byProduct: map[string][]vulnerability.Vulnerability{
			"widget": {
				{ID: "CVE-2021-9999", Product: "widget", Constraint: version.NewConstraint(nil, nil)},
			},
		},
	}

	matches, err := FindDerivationMatches(provider, testDrv("widget-0.1", "/nix/store/www-widget-0.1.drv"))
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected a wildcard constraint to match, got %d matches", len(matches))
	}
}
