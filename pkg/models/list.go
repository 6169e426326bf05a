package models

// InsertedAtKey is the reserved row key holding the insertion timestamp.
const InsertedAtKey = "_insertedAt"

// ColumnDefinition describes one column of a List. Immutable after creation.
type ColumnDefinition struct {
	Name              string `json:"name"`
	Required          bool   `json:"required"`
	Unique            bool   `json:"unique"`
	Description       string `json:"description,omitempty"`
	ValidationPattern string `json:"validationPattern,omitempty"`
}

// List is a user-defined table owned by a Space. Rows are append-only and
// kept in insertion order.
type List struct {
	ID          string             `json:"id" db:"id"`
	SpaceID     string             `json:"spaceId" db:"space_id"`
	Name        string             `json:"name" db:"name"`
	Description string             `json:"description" db:"description"`
	Columns     []ColumnDefinition `json:"columns" db:"columns"`
	MaxRows     *int               `json:"maxRows,omitempty" db:"max_rows"`
	Rows        []Row              `json:"rows" db:"rows"`
}

// ListSummary is the projection returned when listing a space's lists.
type ListSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IsFull reports whether the list reached its row ceiling.
func (l *List) IsFull() bool {
	return l.MaxRows != nil && len(l.Rows) >= *l.MaxRows
}

// HasValue reports whether any stored row carries value in column.
func (l *List) HasValue(column, value string) bool {
	for _, r := range l.Rows {
		if v, ok := r.Values[column]; ok && v == value {
			return true
		}
	}
	return false
}

// UniqueClaim is a (column, value) pair a new row claims for a unique column.
type UniqueClaim struct {
	Column string
	Value  string
}
