// Package schema holds a list's column definitions in compiled form and
// validates submitted rows against them.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"heeecker-lists-backend/pkg/models"
)

// BlankSentinel is stored in place of an omitted optional value.
const BlankSentinel = "n/a"

// ErrInvalidColumns is returned when a column set cannot back a list.
var ErrInvalidColumns = errors.New("invalid column definitions")

// PatternError reports a validationPattern that does not compile. It is a
// schema integrity failure, never a row rejection.
type PatternError struct {
	Column  string
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("column %q: invalid validation pattern %q: %v", e.Column, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

type column struct {
	def     models.ColumnDefinition
	pattern *regexp.Regexp
}

// Schema is the compiled, ordered column set of a list.
type Schema struct {
	columns []column
}

// ValidateColumns checks a column set at list creation time.
func ValidateColumns(defs []models.ColumnDefinition) error {
	if len(defs) == 0 {
		return fmt.Errorf("%w: at least one column is required", ErrInvalidColumns)
	}
	seen := make(map[string]struct{}, len(defs))
	for i, d := range defs {
		name := d.Name
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: column %d has no name", ErrInvalidColumns, i)
		}
		if name == models.InsertedAtKey {
			return fmt.Errorf("%w: column name %q is reserved", ErrInvalidColumns, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate column name %q", ErrInvalidColumns, name)
		}
		seen[name] = struct{}{}
	}
	if _, err := Compile(defs); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidColumns, err)
	}
	return nil
}

// Compile prepares defs for validation. Patterns are anchored so that a
// value must match in full.
func Compile(defs []models.ColumnDefinition) (*Schema, error) {
	s := &Schema{columns: make([]column, 0, len(defs))}
	for _, d := range defs {
		c := column{def: d}
		if d.ValidationPattern != "" {
			// The bare pattern must parse on its own; wrapping can balance an
			// unbalanced one, e.g. `x)|(.*`.
			if _, err := regexp.Compile(d.ValidationPattern); err != nil {
				return nil, &PatternError{Column: d.Name, Pattern: d.ValidationPattern, Err: err}
			}
			re, err := regexp.Compile(`^(?:` + d.ValidationPattern + `)$`)
			if err != nil {
				return nil, &PatternError{Column: d.Name, Pattern: d.ValidationPattern, Err: err}
			}
			c.pattern = re
		}
		s.columns = append(s.columns, c)
	}
	return s, nil
}
