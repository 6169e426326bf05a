package database

import (
	"context"
	"errors"
	"fmt"

	"heeecker-lists-backend/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a space or list does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an append loses a unique claim.
	ErrConflict = errors.New("unique value conflict")
	// ErrListFull is returned when an append would exceed a list's maxRows.
	ErrListFull = errors.New("list is full")
)

// Store 定义文档存储接口
// Spaces and lists are documents; a list's rows are only ever changed by
// AppendRow, never by rewriting the list.
type Store interface {
	// Spaces
	CreateSpace(ctx context.Context, space *models.Space) error
	GetSpace(ctx context.Context, id string) (*models.Space, error)

	// Lists
	CreateList(ctx context.Context, list *models.List) error
	GetList(ctx context.Context, id string) (*models.List, error)
	ListListsBySpace(ctx context.Context, spaceID string) ([]models.ListSummary, error)

	// AppendRow atomically appends row to the list and returns its index.
	// A non-empty claims slice turns the append into a compare-and-append:
	// if any claimed (column, value) is already stored, nothing is written
	// and ErrConflict is returned.
	AppendRow(ctx context.Context, listID string, row models.Row, claims []models.UniqueClaim) (int, error)

	// 健康检查
	HealthCheck(ctx context.Context) error

	// 关闭连接
	Close() error
}

// Driver names accepted by NewDatabase.
const (
	DriverMemory   = "memory"
	DriverLocal    = "local"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver      string
	PostgresDSN string
	SQLitePath  string
	DataDir     string
	Debug       bool
}

// NewDatabase 根据配置选择数据库实现
func NewDatabase(config DatabaseConfig, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch config.Driver {
	case DriverPostgres:
		log.Info("using PostgreSQL store")
		return NewPostgresDatabase(config.PostgresDSN, log)
	case DriverSQLite:
		log.Info("using SQLite store", zap.String("path", config.SQLitePath))
		return NewSQLiteDatabase(config.SQLitePath)
	case DriverLocal:
		log.Info("using local file store", zap.String("dir", config.DataDir))
		return NewLocalDatabase(config.DataDir, log)
	case DriverMemory, "":
		log.Warn("using in-memory store; data is lost on restart")
		return NewMemoryDatabase(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", config.Driver)
	}
}

// NewID returns a fresh document identifier.
func NewID() string {
	return uuid.NewString()
}

// IsValidID reports whether id has the store's identifier format.
func IsValidID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
