package app

import (
	"strings"

	"sheetcalc/internal/calc"
	"sheetcalc/internal/grid"
)

// statusPrecedents caps how many precedent cells the status line lists
// before it falls back to the compact reference list.
const statusPrecedents = 32

// GetDisplayText is what a cell shows: literals as typed, formulas as
// their result and failures as #KIND.
func (a *App) GetDisplayText(r, c int) string {
	ref := grid.CellRef{Col: c, Row: r}.String()
	v, ok := a.Cells[ref]
	if !ok {
		return ""
	}
	if !v.IsFormula() {
		return v.String()
	}
	res := a.Engine.EvaluateCell(ref, a.Cells)
	if !res.OK() {
		return "#" + strings.ToUpper(string(res.Err.Kind))
	}
	return res.Value.String()
}

// RawText is the editable content of a cell.
func (a *App) RawText(r, c int) string {
	v, ok := a.Cells[grid.CellRef{Col: c, Row: r}.String()]
	if !ok {
		return ""
	}
	return v.Input()
}

func (a *App) isFormula(r, c int) bool {
	v, ok := a.Cells[grid.CellRef{Col: c, Row: r}.String()]
	return ok && v.IsFormula()
}

// StatusText describes the current cell: its raw content, the error
// message if it fails to evaluate, and the cells it reads.
func (a *App) StatusText() string {
	ref := a.CurrentRef()
	v, ok := a.Cells[ref]
	if !ok {
		return ref + ": empty"
	}
	text := ref + ": " + v.Input()
	if !v.IsFormula() {
		return text
	}
	if res := a.Engine.EvaluateCell(ref, a.Cells); !res.OK() {
		text += "  [" + string(res.Err.Kind) + ": " + res.Err.Message + "]"
	}
	refs, err := calc.Precedents(v.Str, statusPrecedents)
	if err != nil {
		refs, err = calc.Dependencies(v.Str)
	}
	if err == nil && len(refs) > 0 {
		text += "  <- " + strings.Join(refs, ", ")
	}
	return text
}
