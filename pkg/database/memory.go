package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"heeecker-lists-backend/pkg/models"
)

// MemoryDatabase 内存数据库实现
type MemoryDatabase struct {
	mu     sync.RWMutex
	spaces map[string]models.Space
	lists  map[string]*models.List
	order  []string // list ids in creation order
}

// NewMemoryDatabase 创建内存数据库实例
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		spaces: make(map[string]models.Space),
		lists:  make(map[string]*models.List),
	}
}

func (db *MemoryDatabase) CreateSpace(ctx context.Context, space *models.Space) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if space.ID == "" {
		space.ID = NewID()
	}
	if _, exists := db.spaces[space.ID]; exists {
		return fmt.Errorf("space %s already exists", space.ID)
	}
	db.spaces[space.ID] = *space
	return nil
}

func (db *MemoryDatabase) GetSpace(ctx context.Context, id string) (*models.Space, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	s, ok := db.spaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (db *MemoryDatabase) CreateList(ctx context.Context, list *models.List) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if list.ID == "" {
		list.ID = NewID()
	}
	if _, exists := db.lists[list.ID]; exists {
		return fmt.Errorf("list %s already exists", list.ID)
	}
	if list.Rows == nil {
		list.Rows = []models.Row{}
	}
	db.lists[list.ID] = cloneList(list)
	db.order = append(db.order, list.ID)
	return nil
}

func (db *MemoryDatabase) GetList(ctx context.Context, id string) (*models.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	l, ok := db.lists[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneList(l), nil
}

func (db *MemoryDatabase) ListListsBySpace(ctx context.Context, spaceID string) ([]models.ListSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	result := []models.ListSummary{}
	for _, id := range db.order {
		if l := db.lists[id]; l.SpaceID == spaceID {
			result = append(result, models.ListSummary{ID: l.ID, Name: l.Name})
		}
	}
	return result, nil
}

func (db *MemoryDatabase) AppendRow(ctx context.Context, listID string, row models.Row, claims []models.UniqueClaim) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.lists[listID]
	if !ok {
		return 0, ErrNotFound
	}
	if l.IsFull() {
		return 0, ErrListFull
	}
	for _, c := range claims {
		if l.HasValue(c.Column, c.Value) {
			return 0, fmt.Errorf("%w: column %q", ErrConflict, c.Column)
		}
	}
	l.Rows = append(l.Rows, cloneRow(row))
	return len(l.Rows) - 1, nil
}

func (db *MemoryDatabase) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func (db *MemoryDatabase) Close() error {
	return nil
}

// snapshot returns deep copies of every space and list, lists in creation order.
func (db *MemoryDatabase) snapshot() ([]models.Space, []*models.List) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	spaces := make([]models.Space, 0, len(db.spaces))
	for _, s := range db.spaces {
		spaces = append(spaces, s)
	}
	sort.Slice(spaces, func(i, j int) bool { return spaces[i].ID < spaces[j].ID })
	lists := make([]*models.List, 0, len(db.order))
	for _, id := range db.order {
		lists = append(lists, cloneList(db.lists[id]))
	}
	return spaces, lists
}

func cloneList(l *models.List) *models.List {
	c := *l
	c.Columns = append([]models.ColumnDefinition(nil), l.Columns...)
	if l.MaxRows != nil {
		m := *l.MaxRows
		c.MaxRows = &m
	}
	c.Rows = make([]models.Row, len(l.Rows))
	for i, r := range l.Rows {
		c.Rows[i] = cloneRow(r)
	}
	return &c
}

func cloneRow(r models.Row) models.Row {
	values := make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return models.Row{Values: values, InsertedAt: r.InsertedAt}
}
