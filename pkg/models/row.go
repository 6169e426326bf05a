package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one accepted record. On the wire it is a flat object of column
// values plus the _insertedAt timestamp in milliseconds.
type Row struct {
	Values     map[string]string
	InsertedAt int64
}

func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Values)+1)
	for k, v := range r.Values {
		out[k] = v
	}
	out[InsertedAtKey] = r.InsertedAt
	return json.Marshal(out)
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Values = make(map[string]string, len(raw))
	for k, v := range raw {
		if k == InsertedAtKey {
			if err := json.Unmarshal(v, &r.InsertedAt); err != nil {
				return fmt.Errorf("row %s: %w", InsertedAtKey, err)
			}
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("row column %q: %w", k, err)
		}
		r.Values[k] = s
	}
	return nil
}

// CellKind tags the JSON type a submitted cell arrived as.
type CellKind int

const (
	CellAbsent CellKind = iota
	CellString
	CellOther
)

// CellValue is one submitted value. Only strings are admissible; anything
// else is kept as CellOther so the validator can reject it by column.
type CellValue struct {
	Kind CellKind
	Str  string
}

// StringCell builds a string cell.
func StringCell(s string) CellValue {
	return CellValue{Kind: CellString, Str: s}
}

func (c *CellValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = CellValue{Kind: CellAbsent}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CellValue{Kind: CellString, Str: s}
	default:
		if !json.Valid(data) {
			return fmt.Errorf("invalid cell value")
		}
		*c = CellValue{Kind: CellOther}
	}
	return nil
}

// RowPayload is a submitted row keyed by column name.
type RowPayload map[string]CellValue
