package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"sheetcalc/internal/calc"
	"sheetcalc/internal/grid"
)

var (
	// ErrNotFound is returned for workbooks that do not exist.
	ErrNotFound = errors.New("workbook not found")
	// ErrInvalidName is returned for empty or oversized workbook names.
	ErrInvalidName = errors.New("invalid workbook name")
)

// WorkbookStore persists named cell snapshots. Cells returns an
// independent snapshot, so evaluating against it never races with writers.
type WorkbookStore interface {
	// PutCells merges cells into the workbook, creating it if needed.
	// With replace set the existing cells are dropped first.
	PutCells(ctx context.Context, name string, cells calc.Cells, replace bool) error

	// DeleteCells removes single cells from a workbook.
	DeleteCells(ctx context.Context, name string, refs ...string) error

	// Cells returns a snapshot of the workbook.
	Cells(ctx context.Context, name string) (calc.Cells, error)

	// List returns workbook names in sorted order.
	List(ctx context.Context) ([]string, error)

	// Delete removes a workbook.
	Delete(ctx context.Context, name string) error

	Close() error
}

// Config for store initialization.
type Config struct {
	// Path is the database file path. ":memory:" keeps everything in
	// process memory.
	Path string
}

// Open creates the store described by cfg.
func Open(cfg Config) (WorkbookStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Path == ":memory:" {
		return NewMemory(), nil
	}
	return NewSQLite(cfg.Path)
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > 128 {
		return fmt.Errorf("%w: name too long", ErrInvalidName)
	}
	return nil
}

func normalizeCells(cells calc.Cells) (calc.Cells, error) {
	out := make(calc.Cells, len(cells))
	for ref, v := range cells {
		r, err := grid.ParseCellRef(ref)
		if err != nil {
			return nil, err
		}
		out[r.String()] = v
	}
	return out, nil
}

// MemoryStore implements WorkbookStore with in-process maps.
type MemoryStore struct {
	mu        sync.RWMutex
	workbooks map[string]calc.Cells
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{workbooks: make(map[string]calc.Cells)}
}

func (m *MemoryStore) PutCells(_ context.Context, name string, cells calc.Cells, replace bool) error {
	if err := validName(name); err != nil {
		return err
	}
	cells, err := normalizeCells(cells)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	wb, ok := m.workbooks[name]
	if !ok || replace {
		wb = calc.Cells{}
		m.workbooks[name] = wb
	}
	for ref, v := range cells {
		wb[ref] = v
	}
	return nil
}

func (m *MemoryStore) DeleteCells(_ context.Context, name string, refs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wb, ok := m.workbooks[name]
	if !ok {
		return ErrNotFound
	}
	for _, ref := range refs {
		delete(wb, grid.Normalize(ref))
	}
	return nil
}

func (m *MemoryStore) Cells(_ context.Context, name string) (calc.Cells, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wb, ok := m.workbooks[name]
	if !ok {
		return nil, ErrNotFound
	}
	return wb.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.workbooks))
	for name := range m.workbooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workbooks[name]; !ok {
		return ErrNotFound
	}
	delete(m.workbooks, name)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
