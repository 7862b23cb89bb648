package whitelist

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v2"
)

// yamlRule is one entry of the list layout written by old releases. Scope is given
// through explicit fields instead of a table key; scalar fields tolerate the
// unquoted numbers YAML authors tend to produce ("version: 2.0").
type yamlRule struct {
	Name     string      `yaml:"name"`
	Pname    string      `yaml:"pname"`
	Version  interface{} `yaml:"version"`
	Cve      interface{} `yaml:"cve"`
	Comment  interface{} `yaml:"comment"`
	IssueURL interface{} `yaml:"issue_url"`
	Until    string      `yaml:"until"`
	Status   string      `yaml:"status"`
}

func parseYAML(contents []byte) (*Whitelist, error) {
	var entries []yamlRule
	if err := yaml.Unmarshal(contents, &entries); err != nil {
		return nil, err
	}
	w := New()
	for i, entry := range entries {
		rule, err := entry.toRule()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		if err := w.insert(rule); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (y yamlRule) toRule() (*Rule, error) {
	pname := y.Pname
	if pname == "" {
		pname = y.Name
	}
	version, err := scalarString(y.Version)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("version: %v", err)}
	}
	cves, err := optionalList(y.Cve, "cve")
	if err != nil {
		return nil, err
	}

	key := WildcardProduct
	switch {
	case pname != "" && version != "":
		key = pname + "-" + version
	case pname != "":
		key = pname
	case version != "":
		return nil, &ParseError{Err: fmt.Errorf("version %q given without a product name", version)}
	case len(cves) == 1:
		// a lone advisory entry scopes by that advisory, not by product
		key = cves[0]
	}

	r := NewRule(key)
	if pname != "" {
		// the explicit fields are authoritative even when the version does not
		// follow the dash-digit convention the key splitter assumes
		r.Pname = pname
		r.Version = version
	}
	r.Cve.Add(cves...)
	if r.Comment, err = optionalList(y.Comment, "comment"); err != nil {
		return nil, err
	}
	if r.IssueURL, err = optionalList(y.IssueURL, "issue_url"); err != nil {
		return nil, err
	}
	r.Status = y.Status
	if y.Until != "" {
		until, err := time.Parse(dateLayout, y.Until)
		if err != nil {
			return nil, &ValidationError{Rule: key, Reason: fmt.Sprintf("until date %q not in YYYY-MM-DD form", y.Until)}
		}
		r.Until = until
	}
	return r, nil
}

func optionalList(value interface{}, field string) ([]string, error) {
	if value == nil {
		return nil, nil
	}
	items, err := stringList(value)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("%s: %v", field, err)}
	}
	return items, nil
}
