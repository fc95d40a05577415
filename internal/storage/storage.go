package storage

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sheetcalc/internal/calc"
	"sheetcalc/internal/grid"
)

// Extent returns the number of rows and columns needed to hold every
// parseable reference in cells.
func Extent(cells calc.Cells) (rows, cols int) {
	for ref := range cells {
		r, err := grid.ParseCellRef(ref)
		if err != nil {
			continue
		}
		rows = max(rows, r.Row+1)
		cols = max(cols, r.Col+1)
	}
	return rows, cols
}

// WriteCSV writes cells as a dense CSV grid starting at A1. Formulas are
// written as their text.
func WriteCSV(w io.Writer, cells calc.Cells) error {
	rows, cols := Extent(cells)
	out := make([][]string, rows)
	for r := 0; r < rows; r++ {
		row := make([]string, cols)
		for c := 0; c < cols; c++ {
			if v, ok := cells[grid.CellRef{Col: c, Row: r}.String()]; ok {
				row[c] = v.Input()
			}
		}
		out[r] = row
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(out); err != nil {
		return fmt.Errorf("error writing CSV: %w", err)
	}
	return nil
}

// SaveCSV writes cells to a CSV file
func SaveCSV(cells calc.Cells, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, cells); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV reads a CSV grid; the first record is row 1 and the first field
// column A. Empty fields are skipped.
func ReadCSV(r io.Reader) (calc.Cells, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	cells := calc.Cells{}
	for rIdx, row := range records {
		for cIdx, val := range row {
			if val != "" {
				cells[grid.CellRef{Col: cIdx, Row: rIdx}.String()] = calc.ParseInput(val)
			}
		}
	}
	return cells, nil
}

// LoadCSV loads a CSV file into a snapshot.
func LoadCSV(filename string) (calc.Cells, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// Load reads a snapshot from a file, choosing the format by extension:
// .csv, .xlsx, or YAML/JSON for anything else. sheet selects the xlsx
// worksheet and is ignored for the other formats.
func Load(filename, sheet string) (calc.Cells, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return LoadCSV(filename)
	case ".xlsx", ".xlsm":
		return LoadXLSX(filename, sheet)
	default:
		return LoadSnapshot(filename)
	}
}

// Save writes a snapshot, choosing the format by extension like Load.
// engine computes the cached values of xlsx formula cells and may be nil.
func Save(cells calc.Cells, filename string, engine *calc.Engine) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return SaveCSV(cells, filename)
	case ".xlsx", ".xlsm":
		return SaveXLSX(cells, filename, "", engine)
	default:
		return SaveSnapshot(cells, filename)
	}
}
