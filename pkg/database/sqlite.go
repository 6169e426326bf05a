package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"heeecker-lists-backend/pkg/models"

	_ "modernc.org/sqlite"
)

// SQLiteDatabase is the embedded single-file store.
type SQLiteDatabase struct {
	db *sql.DB
}

// NewSQLiteDatabase opens (creating if needed) the database at path and
// applies the schema.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	if path == "" {
		path = "heeecker-lists.db"
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite has a single writer; one connection keeps appends strictly ordered.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteDatabase{db: db}, nil
}

func (db *SQLiteDatabase) CreateSpace(ctx context.Context, space *models.Space) error {
	if space.ID == "" {
		space.ID = NewID()
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO spaces (id, name, description, created_at, last_modified_at, delete_at,
		                    created_by, owner_contact_mail, admin_token, shareable_token)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, space.ID, space.Name, space.Description, space.CreatedAt, space.LastModifiedAt, space.DeleteAt,
		space.CreatedBy, space.OwnerContactMail, space.AdminToken, space.ShareableToken)
	if err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}
	return nil
}

func (db *SQLiteDatabase) GetSpace(ctx context.Context, id string) (*models.Space, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, last_modified_at, delete_at,
		       created_by, owner_contact_mail, admin_token, shareable_token
		FROM spaces WHERE id = ?
	`, id)
	return scanSpace(row)
}

func (db *SQLiteDatabase) CreateList(ctx context.Context, list *models.List) error {
	if list.ID == "" {
		list.ID = NewID()
	}
	columns, err := json.Marshal(list.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}
	_, err = db.db.ExecContext(ctx, `
		INSERT INTO lists (id, space_id, seq, name, description, columns, max_rows, row_data)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM lists), ?, ?, ?, ?, '[]')
	`, list.ID, list.SpaceID, list.Name, list.Description, string(columns), nullableInt(list.MaxRows))
	if err != nil {
		return fmt.Errorf("failed to create list: %w", err)
	}
	list.Rows = []models.Row{}
	return nil
}

func (db *SQLiteDatabase) GetList(ctx context.Context, id string) (*models.List, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT id, space_id, name, description, columns, max_rows, row_data
		FROM lists WHERE id = ?
	`, id)
	return scanList(row)
}

func (db *SQLiteDatabase) ListListsBySpace(ctx context.Context, spaceID string) ([]models.ListSummary, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT id, name FROM lists WHERE space_id = ? ORDER BY seq`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	defer rows.Close()

	result := []models.ListSummary{}
	for rows.Next() {
		var s models.ListSummary
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lists: %w", err)
	}
	return result, nil
}

// AppendRow appends with one conditional UPDATE using JSON1's "$[#]"
// end-of-array path.
func (db *SQLiteDatabase) AppendRow(ctx context.Context, listID string, row models.Row, claims []models.UniqueClaim) (int, error) {
	rowJSON, err := json.Marshal(row)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal row: %w", err)
	}

	query := strings.Builder{}
	query.WriteString(`
		UPDATE lists
		SET row_data = json_insert(row_data, '$[#]', json(?))
		WHERE id = ?
		  AND (max_rows IS NULL OR json_array_length(row_data) < max_rows)`)
	args := []any{string(rowJSON), listID}
	for _, c := range claims {
		query.WriteString(`
		  AND NOT EXISTS (
		      SELECT 1 FROM json_each(lists.row_data) AS r, json_each(r.value) AS cell
		      WHERE cell.key = ? AND cell.type = 'text' AND cell.value = ?)`)
		args = append(args, c.Column, c.Value)
	}
	query.WriteString("\n\t\tRETURNING json_array_length(row_data) - 1")

	var index int
	err = db.db.QueryRowContext(ctx, query.String(), args...).Scan(&index)
	if err == nil {
		return index, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to append row: %w", err)
	}

	l, err := db.GetList(ctx, listID)
	if err != nil {
		return 0, err
	}
	return 0, explainRejectedAppend(l, claims)
}

func (db *SQLiteDatabase) HealthCheck(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *SQLiteDatabase) Close() error {
	return db.db.Close()
}
