package database

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"heeecker-lists-backend/pkg/models"

	"go.uber.org/zap"
)

// LocalDatabase 本地文件数据库实现
//
// Layout under dataDir:
//
//	spaces.json            all spaces
//	lists/<id>.json        list metadata (columns, maxRows, ...)
//	lists/<id>.rows.jsonl  one row per line, only ever appended to
//
// An in-memory copy serves reads; every mutation hits disk first.
type LocalDatabase struct {
	mu      sync.Mutex
	dataDir string
	mem     *MemoryDatabase
	seq     int
}

type listFile struct {
	Seq  int          `json:"seq"`
	List *models.List `json:"list"`
}

// NewLocalDatabase 创建本地数据库实例
func NewLocalDatabase(dataDir string, log *zap.Logger) (*LocalDatabase, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	// 在只读文件系统中，使用临时目录
	if err := os.MkdirAll(filepath.Join(dataDir, "lists"), 0o755); err != nil {
		log.Warn("failed to create data directory, falling back to temp dir", zap.String("dir", dataDir), zap.Error(err))
		dataDir = filepath.Join(os.TempDir(), "heeecker-lists-data")
		if err := os.MkdirAll(filepath.Join(dataDir, "lists"), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db := &LocalDatabase{dataDir: dataDir, mem: NewMemoryDatabase()}
	if err := db.load(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *LocalDatabase) CreateSpace(ctx context.Context, space *models.Space) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if space.ID == "" {
		space.ID = NewID()
	}
	// 先确认内存中不存在，失败的插入不能落盘
	if _, err := db.mem.GetSpace(ctx, space.ID); err == nil {
		return fmt.Errorf("space %s already exists", space.ID)
	}
	spaces, _ := db.mem.snapshot()
	spaces = append(spaces, *space)
	if err := writeJSONFile(db.spacesFilePath(), spaces); err != nil {
		return fmt.Errorf("failed to save spaces: %w", err)
	}
	return db.mem.CreateSpace(ctx, space)
}

func (db *LocalDatabase) GetSpace(ctx context.Context, id string) (*models.Space, error) {
	return db.mem.GetSpace(ctx, id)
}

func (db *LocalDatabase) CreateList(ctx context.Context, list *models.List) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if list.ID == "" {
		list.ID = NewID()
	}
	if _, err := db.mem.GetList(ctx, list.ID); err == nil {
		return fmt.Errorf("list %s already exists", list.ID)
	}
	meta := *list
	meta.Rows = nil
	db.seq++
	if err := writeJSONFile(db.listFilePath(list.ID), listFile{Seq: db.seq, List: &meta}); err != nil {
		return fmt.Errorf("failed to save list: %w", err)
	}
	f, err := os.OpenFile(db.rowsFilePath(list.ID), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create rows file: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return db.mem.CreateList(ctx, list)
}

func (db *LocalDatabase) GetList(ctx context.Context, id string) (*models.List, error) {
	return db.mem.GetList(ctx, id)
}

func (db *LocalDatabase) ListListsBySpace(ctx context.Context, spaceID string) ([]models.ListSummary, error) {
	return db.mem.ListListsBySpace(ctx, spaceID)
}

func (db *LocalDatabase) AppendRow(ctx context.Context, listID string, row models.Row, claims []models.UniqueClaim) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	l, err := db.mem.GetList(ctx, listID)
	if err != nil {
		return 0, err
	}
	if l.IsFull() {
		return 0, ErrListFull
	}
	for _, c := range claims {
		if l.HasValue(c.Column, c.Value) {
			return 0, fmt.Errorf("%w: column %q", ErrConflict, c.Column)
		}
	}

	line, err := json.Marshal(row)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal row: %w", err)
	}
	f, err := os.OpenFile(db.rowsFilePath(listID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open rows file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to append row: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to append row: %w", err)
	}
	return db.mem.AppendRow(ctx, listID, row, nil)
}

// HealthCheck 检查数据目录是否可访问
func (db *LocalDatabase) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(db.dataDir); err != nil {
		return fmt.Errorf("data directory not accessible: %w", err)
	}
	return ctx.Err()
}

// Close 本地数据库无需关闭
func (db *LocalDatabase) Close() error {
	return nil
}

// 私有辅助方法

func (db *LocalDatabase) spacesFilePath() string {
	return filepath.Join(db.dataDir, "spaces.json")
}

func (db *LocalDatabase) listFilePath(id string) string {
	return filepath.Join(db.dataDir, "lists", id+".json")
}

func (db *LocalDatabase) rowsFilePath(id string) string {
	return filepath.Join(db.dataDir, "lists", id+".rows.jsonl")
}

func (db *LocalDatabase) load() error {
	ctx := context.Background()

	var spaces []models.Space
	if err := readJSONFile(db.spacesFilePath(), &spaces); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load spaces: %w", err)
	}
	for i := range spaces {
		if err := db.mem.CreateSpace(ctx, &spaces[i]); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(filepath.Join(db.dataDir, "lists"))
	if err != nil {
		return fmt.Errorf("failed to read lists directory: %w", err)
	}
	var files []listFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		var lf listFile
		if err := readJSONFile(filepath.Join(db.dataDir, "lists", name), &lf); err != nil {
			return fmt.Errorf("failed to load list %s: %w", name, err)
		}
		if lf.List == nil {
			continue
		}
		rows, err := readRows(db.rowsFilePath(lf.List.ID))
		if err != nil {
			return fmt.Errorf("failed to load rows of list %s: %w", lf.List.ID, err)
		}
		lf.List.Rows = rows
		files = append(files, lf)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Seq < files[j].Seq })
	for _, lf := range files {
		if err := db.mem.CreateList(ctx, lf.List); err != nil {
			return err
		}
		if lf.Seq > db.seq {
			db.seq = lf.Seq
		}
	}
	return nil
}

func readRows(path string) ([]models.Row, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Row{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows := []models.Row{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var r models.Row
		if err := json.Unmarshal(line, &r); err != nil {
			// A torn final line from a crash mid-append is skipped.
			continue
		}
		rows = append(rows, r)
	}
	return rows, scanner.Err()
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSONFile writes via a temp file and rename so readers never see a
// partially written document.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
