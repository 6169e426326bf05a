package schema

import (
	"fmt"
	"strings"

	"heeecker-lists-backend/pkg/models"
)

// Reason identifies the rule a rejected row broke.
type Reason string

const (
	MissingRequiredField Reason = "MissingRequiredField"
	InvalidType          Reason = "InvalidType"
	PatternMismatch      Reason = "PatternMismatch"
	DuplicateValue       Reason = "DuplicateValue"
)

// Rejection is the validator's negative outcome.
type Rejection struct {
	Column string
	Reason Reason
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("column %q rejected: %s", r.Column, r.Reason)
}

// ExistsProbe reports whether column already holds value in the target list.
type ExistsProbe func(column, value string) bool

// Accepted is the validator's positive outcome: the normalized row values
// and the unique (column, value) pairs the row claims.
type Accepted struct {
	Values map[string]string
	Claims []models.UniqueClaim
}

// Validate runs a single pass over the columns in declared order. The first
// failing column stops the pass. Payload keys that are not columns are
// dropped. Validate does not touch storage; probe is supplied by the caller.
func (s *Schema) Validate(payload models.RowPayload, probe ExistsProbe) (*Accepted, error) {
	out := &Accepted{Values: make(map[string]string, len(s.columns))}
	for _, c := range s.columns {
		name := c.def.Name
		cell := payload[name]

		blank := true
		switch cell.Kind {
		case models.CellString:
			blank = strings.TrimSpace(cell.Str) == ""
		case models.CellOther:
			blank = false
		}

		if c.def.Required && blank {
			return nil, &Rejection{Column: name, Reason: MissingRequiredField}
		}
		if cell.Kind == models.CellOther {
			return nil, &Rejection{Column: name, Reason: InvalidType}
		}

		value := ""
		if !blank {
			value = cell.Str
		}
		if value != "" && c.pattern != nil && !c.pattern.MatchString(value) {
			return nil, &Rejection{Column: name, Reason: PatternMismatch}
		}
		if value != "" && c.def.Unique {
			if probe != nil && probe(name, value) {
				return nil, &Rejection{Column: name, Reason: DuplicateValue}
			}
			out.Claims = append(out.Claims, models.UniqueClaim{Column: name, Value: value})
		}

		if value == "" {
			value = BlankSentinel
		}
		out.Values[name] = value
	}
	return out, nil
}
