package whitelist

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/spf13/afero"

	"github.com/flyingcircus/vulnix/internal/log"
)

const dateLayout = "2006-01-02"

// Load reads a rule file from disk.
func Load(fs afero.Fs, path string) (*Whitelist, error) {
	contents, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("unable to read whitelist %s: %w", path, err)
	}
	w, err := Parse(contents)
	if err != nil {
		return nil, fmt.Errorf("whitelist %s: %w", path, err)
	}
	return w, nil
}

// Parse decodes a rule file. The TOML layout is authoritative; payloads that do not
// even lex as TOML are retried against the legacy YAML list layout.
func Parse(contents []byte) (*Whitelist, error) {
	tree, tomlErr := toml.LoadBytes(contents)
	if tomlErr == nil {
		return fromTree(tree)
	}
	w, yamlErr := parseYAML(contents)
	if yamlErr == nil {
		log.Debug("whitelist parsed via the legacy YAML layout")
		return w, nil
	}
	var vErr *ValidationError
	if errors.As(yamlErr, &vErr) {
		return nil, yamlErr
	}
	return nil, &ParseError{
		Err: fmt.Errorf("payload is neither TOML (%v) nor legacy YAML (%v)", tomlErr, yamlErr),
	}
}

func fromTree(tree *toml.Tree) (*Whitelist, error) {
	w := New()
	keys := tree.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		node := tree.GetPath([]string{key})
		sub, ok := node.(*toml.Tree)
		if !ok {
			return nil, &ParseError{Err: fmt.Errorf("rule %q: expected a table, got %T", key, node)}
		}
		rule, err := ruleFromTable(key, sub)
		if err != nil {
			return nil, err
		}
		if err := w.insert(rule); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// ruleFromTable decodes one rule body. Unknown fields are rejected: a misspelled
// "until" would otherwise turn a temporary rule into a permanent one.
func ruleFromTable(key string, tree *toml.Tree) (*Rule, error) {
	r := NewRule(key)
	for _, field := range tree.Keys() {
		value := tree.GetPath([]string{field})
		switch field {
		case "cve":
			items, err := stringList(value)
			if err != nil {
				return nil, &ParseError{Err: fmt.Errorf("rule %q: cve: %v", key, err)}
			}
			r.Cve.Add(items...)
		case "until":
			until, err := parseUntil(value)
			if err != nil {
				return nil, &ValidationError{Rule: key, Reason: err.Error()}
			}
			r.Until = until
		case "comment":
			items, err := stringList(value)
			if err != nil {
				return nil, &ParseError{Err: fmt.Errorf("rule %q: comment: %v", key, err)}
			}
			r.Comment = items
		case "issue_url":
			items, err := stringList(value)
			if err != nil {
				return nil, &ParseError{Err: fmt.Errorf("rule %q: issue_url: %v", key, err)}
			}
			r.IssueURL = items
		case "status":
			status, ok := value.(string)
			if !ok {
				return nil, &ParseError{Err: fmt.Errorf("rule %q: status: expected a string, got %T", key, value)}
			}
			r.Status = status
		default:
			return nil, &ParseError{Err: fmt.Errorf("rule %q: unknown field %q", key, field)}
		}
	}
	return r, nil
}

// stringList accepts a single scalar or a list of scalars.
func stringList(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return append([]string(nil), v...), nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := scalarString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string or list of strings, got %T", value)
	}
}

func scalarString(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("expected a scalar, got %T", value)
	}
}

func parseUntil(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case toml.LocalDate:
		return v.In(time.UTC), nil
	case time.Time:
		return toDay(v), nil
	case string:
		until, err := time.Parse(dateLayout, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("until date %q not in YYYY-MM-DD form", v)
		}
		return until, nil
	default:
		return time.Time{}, fmt.Errorf("until: expected a date, got %T", value)
	}
}
