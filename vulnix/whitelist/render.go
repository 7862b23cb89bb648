package whitelist

import (
	"fmt"
	"sort"

	"github.com/pelletier/go-toml"
)

// Render serializes all rules into the TOML rule-file layout. Output is stable:
// tables and fields are ordered alphabetically, so rendering the same rule set
// twice yields identical text.
func (w *Whitelist) Render() (string, error) {
	doc := map[string]interface{}{}
	for _, key := range w.Keys() {
		doc[key] = w.rules[key].toTable()
	}
	tree, err := toml.TreeFromMap(doc)
	if err != nil {
		return "", fmt.Errorf("unable to serialize whitelist: %w", err)
	}
	rendered, err := tree.ToTomlString()
	if err != nil {
		return "", fmt.Errorf("unable to serialize whitelist: %w", err)
	}
	return rendered, nil
}

func (r *Rule) toTable() map[string]interface{} {
	body := map[string]interface{}{}
	if !r.advisoryScopedOnly() {
		if cves := r.Cve.List(); len(cves) > 0 {
			sort.Strings(cves)
			body["cve"] = toInterfaces(cves)
		}
	}
	if !r.Until.IsZero() {
		body["until"] = r.Until.Format(dateLayout)
	}
	if len(r.Comment) > 0 {
		body["comment"] = toInterfaces(r.Comment)
	}
	if len(r.IssueURL) > 0 {
		body["issue_url"] = toInterfaces(r.IssueURL)
	}
	if r.Status != "" {
		body["status"] = r.Status
	}
	return body
}

// advisoryScopedOnly reports whether the rule's advisory set is fully implied by
// its key, in which case writing a cve field would just repeat the key.
func (r *Rule) advisoryScopedOnly() bool {
	return advisoryIDPattern.MatchString(r.key) && r.Cve.Size() == 1 && r.Cve.Has(r.key)
}

func toInterfaces(items []string) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
