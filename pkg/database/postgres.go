package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"heeecker-lists-backend/pkg/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresDatabase PostgreSQL数据库实现
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase 创建PostgreSQL数据库实例
func NewPostgresDatabase(dsn string, log *zap.Logger) (*PostgresDatabase, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("postgres DSN is empty")
	}
	strategies := []string{
		addConnectionParams(dsn, "connect_timeout=10"),
		dsn, // 最后尝试原始DSN
	}

	var lastErr error
	for i, strategy := range strategies {
		db, err := sql.Open("postgres", strategy)
		if err != nil {
			log.Warn("postgres open failed", zap.Int("strategy", i+1), zap.Error(err))
			lastErr = err
			continue
		}

		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(2 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err != nil {
			log.Warn("postgres ping failed", zap.Int("strategy", i+1), zap.Error(err))
			db.Close()
			lastErr = err
			continue
		}

		log.Info("postgres connection established", zap.Int("strategy", i+1))
		return &PostgresDatabase{db: db}, nil
	}
	return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", lastErr)
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}
	// key=value DSNs take space separated parameters
	if !strings.Contains(dsn, "://") {
		return dsn + " " + strings.ReplaceAll(params, "&", " ")
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params
}

// Migrate 创建表结构（幂等）
func (db *PostgresDatabase) Migrate(ctx context.Context) error {
	if _, err := db.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// TableCounts 返回各表的行数，用于安装后的验证
func (db *PostgresDatabase) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 2)
	for _, table := range []string{"spaces", "lists"} {
		var n int64
		if err := db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// MaskDSN hides the password of a URL or key=value DSN for logging.
func MaskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		// Redacted writes the mask as "xxxxx" without escaping it
		return u.Redacted()
	}
	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=***"
		}
	}
	return strings.Join(fields, " ")
}

func (db *PostgresDatabase) CreateSpace(ctx context.Context, space *models.Space) error {
	if space.ID == "" {
		space.ID = NewID()
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO spaces (id, name, description, created_at, last_modified_at, delete_at,
		                    created_by, owner_contact_mail, admin_token, shareable_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, space.ID, space.Name, space.Description, space.CreatedAt, space.LastModifiedAt, space.DeleteAt,
		space.CreatedBy, space.OwnerContactMail, space.AdminToken, space.ShareableToken)
	if err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetSpace(ctx context.Context, id string) (*models.Space, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, last_modified_at, delete_at,
		       created_by, owner_contact_mail, admin_token, shareable_token
		FROM spaces WHERE id = $1
	`, id)
	return scanSpace(row)
}

func (db *PostgresDatabase) CreateList(ctx context.Context, list *models.List) error {
	if list.ID == "" {
		list.ID = NewID()
	}
	columns, err := json.Marshal(list.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}
	_, err = db.db.ExecContext(ctx, `
		INSERT INTO lists (id, space_id, name, description, columns, max_rows, row_data)
		VALUES ($1, $2, $3, $4, $5, $6, '[]'::jsonb)
	`, list.ID, list.SpaceID, list.Name, list.Description, string(columns), nullableInt(list.MaxRows))
	if err != nil {
		return fmt.Errorf("failed to create list: %w", err)
	}
	list.Rows = []models.Row{}
	return nil
}

func (db *PostgresDatabase) GetList(ctx context.Context, id string) (*models.List, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT id, space_id, name, description, columns, max_rows, row_data
		FROM lists WHERE id = $1
	`, id)
	return scanList(row)
}

func (db *PostgresDatabase) ListListsBySpace(ctx context.Context, spaceID string) ([]models.ListSummary, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, name FROM lists WHERE space_id = $1 ORDER BY created_at, id
	`, spaceID)
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

// AppendRow appends with a single conditional UPDATE. The row lock taken by
// UPDATE makes concurrent appends to one list re-evaluate the WHERE guard
// against the latest rows, so a claimed value can be admitted only once.
func (db *PostgresDatabase) AppendRow(ctx context.Context, listID string, row models.Row, claims []models.UniqueClaim) (int, error) {
	rowJSON, err := json.Marshal(row)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal row: %w", err)
	}

	query := strings.Builder{}
	query.WriteString(`
		UPDATE lists
		SET row_data = row_data || jsonb_build_array($2::jsonb)
		WHERE id = $1
		  AND (max_rows IS NULL OR jsonb_array_length(row_data) < max_rows)`)
	args := []any{listID, string(rowJSON)}
	for _, c := range claims {
		probe, err := json.Marshal([]map[string]string{{c.Column: c.Value}})
		if err != nil {
			return 0, fmt.Errorf("failed to marshal claim: %w", err)
		}
		args = append(args, string(probe))
		fmt.Fprintf(&query, "\n\t\t  AND NOT (row_data @> $%d::jsonb)", len(args))
	}
	query.WriteString("\n\t\tRETURNING jsonb_array_length(row_data) - 1")

	var index int
	err = db.db.QueryRowContext(ctx, query.String(), args...).Scan(&index)
	if err == nil {
		return index, nil
	}
	if err != sql.ErrNoRows {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return 0, fmt.Errorf("failed to append row (%s): %w", pqErr.Code.Name(), err)
		}
		return 0, fmt.Errorf("failed to append row: %w", err)
	}

	l, err := db.GetList(ctx, listID)
	if err != nil {
		return 0, err
	}
	return 0, explainRejectedAppend(l, claims)
}

// HealthCheck 健康检查
func (db *PostgresDatabase) HealthCheck(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// Close 关闭连接
func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
