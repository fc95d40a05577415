package storage

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"sheetcalc/internal/calc"
	"sheetcalc/internal/grid"
)

// ReadWorkbook reads every worksheet of an xlsx workbook. Formula cells
// are imported as "=..." text so they are evaluated, not their cached
// results.
func ReadWorkbook(r io.Reader) (map[string]calc.Cells, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := make(map[string]calc.Cells)
	for _, name := range f.GetSheetList() {
		cells, err := readSheet(f, name)
		if err != nil {
			return nil, err
		}
		sheets[name] = cells
	}
	return sheets, nil
}

// ReadXLSX reads one worksheet; an empty sheet name selects the active one.
func ReadXLSX(r io.Reader, sheet string) (calc.Cells, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()
	return readNamedSheet(f, sheet)
}

// LoadXLSX reads one worksheet from an xlsx file.
func LoadXLSX(filename, sheet string) (calc.Cells, error) {
	f, err := excelize.OpenFile(filename)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()
	return readNamedSheet(f, sheet)
}

func readNamedSheet(f *excelize.File, sheet string) (calc.Cells, error) {
	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("worksheet %q not found", sheet)
	}
	return readSheet(f, sheet)
}

func readSheet(f *excelize.File, sheet string) (calc.Cells, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading worksheet %s: %w", sheet, err)
	}
	cells := calc.Cells{}
	for r, row := range rows {
		for c, raw := range row {
			ref := grid.CellRef{Col: c, Row: r}.String()
			formula, err := f.GetCellFormula(sheet, ref)
			if err != nil {
				return nil, fmt.Errorf("reading %s!%s: %w", sheet, ref, err)
			}
			if formula != "" {
				cells[ref] = calc.Text("=" + strings.TrimPrefix(formula, "="))
				continue
			}
			if raw == "" {
				continue
			}
			typ, err := f.GetCellType(sheet, ref)
			if err != nil {
				return nil, fmt.Errorf("reading %s!%s: %w", sheet, ref, err)
			}
			switch typ {
			case excelize.CellTypeBool:
				cells[ref] = calc.Bool(raw == "1" || strings.EqualFold(raw, "TRUE"))
			case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
				cells[ref] = calc.Text(raw)
			default:
				cells[ref] = calc.ParseInput(raw)
			}
		}
	}
	return cells, nil
}

// WriteXLSX writes cells into a new workbook with a single worksheet.
// Formula cells are evaluated with engine to give them a cached value;
// a nil engine uses the default limits.
func WriteXLSX(w io.Writer, cells calc.Cells, sheet string, engine *calc.Engine) error {
	return WriteWorkbook(w, map[string]calc.Cells{sheetName(sheet): cells}, engine)
}

// WriteWorkbook writes one worksheet per entry of sheets, in name order.
func WriteWorkbook(w io.Writer, sheets map[string]calc.Cells, engine *calc.Engine) error {
	f, err := newWorkbook(sheets, engine)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes cells to an xlsx file.
func SaveXLSX(cells calc.Cells, filename, sheet string, engine *calc.Engine) error {
	f, err := newWorkbook(map[string]calc.Cells{sheetName(sheet): cells}, engine)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func sheetName(sheet string) string {
	if sheet == "" {
		return "Sheet1"
	}
	return sheet
}

// setFormula writes the evaluated result first so the file carries a
// cached value, then the formula itself.
func setFormula(f *excelize.File, engine *calc.Engine, sheet, ref, formula string, cells calc.Cells) error {
	if res := engine.EvaluateCell(ref, cells); res.OK() && res.Value.Kind != calc.KindList {
		if err := f.SetCellValue(sheet, ref, res.Value.Native()); err != nil {
			return err
		}
	}
	return f.SetCellFormula(sheet, ref, strings.TrimPrefix(formula, "="))
}

func newWorkbook(sheets map[string]calc.Cells, engine *calc.Engine) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook needs at least one worksheet")
	}
	if engine == nil {
		engine = calc.New()
	}
	names := make([]string, 0, len(sheets))
	for name := range sheets {
		names = append(names, name)
	}
	sort.Strings(names)

	f := excelize.NewFile()
	for i, name := range names {
		var err error
		switch {
		case i == 0 && name != "Sheet1":
			err = f.SetSheetName("Sheet1", name)
		case i > 0:
			_, err = f.NewSheet(name)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("adding worksheet %q: %w", name, err)
		}
		if err := writeSheet(f, engine, name, sheets[name]); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, engine *calc.Engine, sheet string, cells calc.Cells) error {
	for _, ref := range cells.Refs() {
		if _, err := grid.ParseCellRef(ref); err != nil {
			continue
		}
		v := cells[ref]
		var err error
		switch {
		case v.IsFormula():
			err = setFormula(f, engine, sheet, ref, v.Str, cells)
		case v.Kind == calc.KindList:
			continue
		default:
			err = f.SetCellValue(sheet, ref, v.Native())
		}
		if err != nil {
			return fmt.Errorf("writing %s!%s: %w", sheet, ref, err)
		}
	}
	return nil
}
