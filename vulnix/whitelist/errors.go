package whitelist

import "fmt"

// ParseError indicates a rule payload whose structure cannot be understood in any
// supported layout.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed whitelist: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError indicates a structurally readable rule carrying an unusable
// field, such as an until date that is not a date. Rejected at load time so that a
// broken rule cannot silently stop suppressing.
type ValidationError struct {
	Rule   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid whitelist rule %q: %s", e.Rule, e.Reason)
}
