package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"heeecker-lists-backend/pkg/models"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSpace(row scanner) (*models.Space, error) {
	var s models.Space
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.LastModifiedAt,
		&s.DeleteAt, &s.CreatedBy, &s.OwnerContactMail, &s.AdminToken, &s.ShareableToken)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}
	return &s, nil
}

func scanList(row scanner) (*models.List, error) {
	var (
		l       models.List
		columns []byte
		rows    []byte
		maxRows sql.NullInt64
	)
	err := row.Scan(&l.ID, &l.SpaceID, &l.Name, &l.Description, &columns, &maxRows, &rows)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get list: %w", err)
	}
	if err := json.Unmarshal(columns, &l.Columns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
	}
	if err := json.Unmarshal(rows, &l.Rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rows: %w", err)
	}
	if l.Rows == nil {
		l.Rows = []models.Row{}
	}
	if maxRows.Valid {
		m := int(maxRows.Int64)
		l.MaxRows = &m
	}
	return &l, nil
}

func nullableInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// explainRejectedAppend decides why a conditional append updated nothing.
func explainRejectedAppend(l *models.List, claims []models.UniqueClaim) error {
	if l.IsFull() {
		return ErrListFull
	}
	for _, c := range claims {
		if l.HasValue(c.Column, c.Value) {
			return fmt.Errorf("%w: column %q", ErrConflict, c.Column)
		}
	}
	return ErrConflict
}
