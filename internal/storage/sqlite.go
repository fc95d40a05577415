package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"sheetcalc/internal/calc"
	"sheetcalc/internal/grid"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// SQLiteStore implements WorkbookStore on SQLite (pure Go driver).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one writer at a time; sqlite serializes them anyway
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS workbooks (
			name       TEXT PRIMARY KEY,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS cells (
			workbook   TEXT NOT NULL REFERENCES workbooks(name) ON DELETE CASCADE,
			ref        TEXT NOT NULL,
			value_json TEXT NOT NULL,
			PRIMARY KEY (workbook, ref)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) PutCells(ctx context.Context, name string, cells calc.Cells, replace bool) error {
	if err := validName(name); err != nil {
		return err
	}
	cells, err := normalizeCells(cells)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workbooks (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
	`, name)
	if err != nil {
		return fmt.Errorf("upserting workbook: %w", err)
	}
	if replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM cells WHERE workbook = ?", name); err != nil {
			return fmt.Errorf("clearing cells: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cells (workbook, ref, value_json) VALUES (?, ?, ?)
		ON CONFLICT(workbook, ref) DO UPDATE SET value_json = excluded.value_json
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for ref, v := range cells {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling cell %s: %w", ref, err)
		}
		if _, err := stmt.ExecContext(ctx, name, ref, string(data)); err != nil {
			return fmt.Errorf("inserting cell %s: %w", ref, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteCells(ctx context.Context, name string, refs ...string) error {
	if err := s.exists(ctx, name); err != nil {
		return err
	}
	for _, ref := range refs {
		_, err := s.db.ExecContext(ctx, "DELETE FROM cells WHERE workbook = ? AND ref = ?", name, grid.Normalize(ref))
		if err != nil {
			return fmt.Errorf("deleting cell %s: %w", ref, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Cells(ctx context.Context, name string) (calc.Cells, error) {
	if err := s.exists(ctx, name); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT ref, value_json FROM cells WHERE workbook = ?", name)
	if err != nil {
		return nil, fmt.Errorf("querying cells: %w", err)
	}
	defer rows.Close()

	cells := calc.Cells{}
	for rows.Next() {
		var ref, data string
		if err := rows.Scan(&ref, &data); err != nil {
			return nil, fmt.Errorf("scanning cell: %w", err)
		}
		var v calc.Value
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("unmarshaling cell %s: %w", ref, err)
		}
		cells[ref] = v
	}
	return cells, rows.Err()
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM workbooks ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying workbooks: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning workbook: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cells WHERE workbook = ?", name); err != nil {
		return fmt.Errorf("deleting cells: %w", err)
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM workbooks WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting workbook: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) exists(ctx context.Context, name string) error {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM workbooks WHERE name = ?", name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up workbook: %w", err)
	}
	return nil
}
