package mortality

import (
	"errors"
	"fmt"
)

var errInvalidCount = errors.New("count must be finite and non-negative")

// ParseError reports a malformed date or numeric field.
type ParseError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row %d: parse %s %q: %v", e.Row, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("row %d: parse %s %q", e.Row, e.Field, e.Value)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports a missing column or a value outside the known mappings.
type SchemaError struct {
	Row    int
	Field  string
	Value  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s %q: %s", e.Row, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}
