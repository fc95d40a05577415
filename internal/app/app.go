package app

import (
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"

	"sheetcalc/internal/calc"
	"sheetcalc/internal/grid"
	"sheetcalc/internal/storage"
)

type App struct {
	// layout
	LeftGutter    int
	StatusLines   int
	DefaultWidth  int
	DefaultHeight int

	CellPadding int

	// grid data
	ColWidths  []int
	RowHeights []int
	Cells      calc.Cells
	Engine     *calc.Engine

	// file the grid was opened from; :w without an argument writes here
	FileName string
	Sheet    string

	// cursor / view
	CurRow  int
	CurCol  int
	ViewRow int
	ViewCol int

	// UI state
	Mode     string // normal | insert
	InputBuf string
	Message  string
	Quit     bool

	// editing behavior options
	EnterStartsEdit     bool
	PrintableStartsEdit bool
	MoveAfterEnter      bool
	SelectAllOnEdit     bool
	ReplaceOnNextRune   bool

	HelpVisible bool
}

// NewApp creates an empty grid evaluated by engine. A nil engine uses the
// default limits.
func NewApp(engine *calc.Engine) *App {
	if engine == nil {
		engine = calc.New()
	}
	a := &App{
		LeftGutter:          5,
		StatusLines:         2,
		DefaultWidth:        16,
		DefaultHeight:       1,
		CellPadding:         1,
		Cells:               calc.Cells{},
		Engine:              engine,
		Mode:                "normal",
		EnterStartsEdit:     true,
		PrintableStartsEdit: false,
		MoveAfterEnter:      true,
		SelectAllOnEdit:     true,
	}
	for i := 0; i < 8; i++ {
		a.ColWidths = append(a.ColWidths, a.DefaultWidth)
		a.RowHeights = append(a.RowHeights, a.DefaultHeight)
	}
	return a
}

// SetCells replaces the grid contents and grows the layout to fit them.
func (a *App) SetCells(cells calc.Cells) {
	if cells == nil {
		cells = calc.Cells{}
	}
	a.Cells = cells
	rows, cols := storage.Extent(cells)
	a.EnsureRowExists(rows - 1)
	a.EnsureColExists(cols - 1)
	a.CurRow, a.CurCol = 0, 0
	a.ViewRow, a.ViewCol = 0, 0
}

// CurrentRef is the A1 name of the cell under the cursor.
func (a *App) CurrentRef() string {
	return grid.CellRef{Col: a.CurCol, Row: a.CurRow}.String()
}

// Run draws and dispatches events until the user quits.
func (a *App) Run(s tcell.Screen) {
	for !a.Quit {
		a.EnsureCursorVisible(s)
		a.Draw(s)
		switch ev := s.PollEvent().(type) {
		case *tcell.EventKey:
			a.HandleKeyEvent(s, ev)
		case *tcell.EventResize:
			s.Sync()
		case nil:
			// screen finalized
			return
		}
	}
}

// ----------------------------- Events / Input -----------------------------

func (a *App) HandleKeyEvent(s tcell.Screen, ev *tcell.EventKey) {
	if a.Mode == "insert" {
		a.handleInsertKey(ev)
		return
	}

	if a.HelpVisible {
		if ev.Key() == tcell.KeyEsc || ev.Rune() == '?' {
			a.HelpVisible = false
		}
		return
	}

	// normal mode
	a.Message = ""
	mod := ev.Modifiers()
	switch ev.Key() {
	case tcell.KeyEsc:
		// noop
	case tcell.KeyCtrlC:
		a.Quit = true
	case tcell.KeyUp:
		if mod&tcell.ModCtrl != 0 {
			// ctrl+up -> decrease row height
			if a.CurRow < len(a.RowHeights) && a.RowHeights[a.CurRow] > 1 {
				a.RowHeights[a.CurRow]--
			}
		} else if a.CurRow > 0 {
			a.CurRow--
		}
	case tcell.KeyDown:
		if mod&tcell.ModCtrl != 0 {
			if a.CurRow < len(a.RowHeights) {
				a.RowHeights[a.CurRow]++
			}
		} else {
			a.CurRow++
			a.EnsureRowExists(a.CurRow)
		}
	case tcell.KeyLeft:
		if mod&tcell.ModCtrl != 0 {
			if a.CurCol < len(a.ColWidths) && a.ColWidths[a.CurCol] > 4 {
				a.ColWidths[a.CurCol]--
			}
		} else if a.CurCol > 0 {
			a.CurCol--
		}
	case tcell.KeyRight:
		if mod&tcell.ModCtrl != 0 {
			if a.CurCol < len(a.ColWidths) {
				a.ColWidths[a.CurCol]++
			}
		} else {
			a.CurCol++
			a.EnsureColExists(a.CurCol)
		}
	case tcell.KeyPgUp:
		vr, _ := a.ComputeVisible(s)
		a.ViewRow = max(0, a.ViewRow-vr)
	case tcell.KeyPgDn:
		vr, _ := a.ComputeVisible(s)
		a.ViewRow = min(a.ViewRow+vr, max(0, len(a.RowHeights)-1))
	case tcell.KeyHome:
		a.ViewCol = 0
		a.ViewRow = 0
	case tcell.KeyEnd:
		a.ViewCol = max(0, len(a.ColWidths)-1)
		a.ViewRow = max(0, len(a.RowHeights)-1)
	case tcell.KeyF2:
		a.InsertRow(a.CurRow + 1)
	case tcell.KeyF3:
		a.InsertCol(a.CurCol + 1)
	case tcell.KeyF4:
		a.DeleteRow(a.CurRow)
	case tcell.KeyF5:
		a.DeleteCol(a.CurCol)
	case tcell.KeyDelete:
		a.SetCellValue("")
	case tcell.KeyEnter:
		if a.EnterStartsEdit {
			a.startEdit()
		}
	default:
		a.handleNormalRune(s, ev.Rune())
	}
}

func (a *App) handleInsertKey(ev *tcell.EventKey) {
	mod := ev.Modifiers()
	switch ev.Key() {
	case tcell.KeyEsc:
		// cancel edit
		a.Mode = "normal"
		a.InputBuf = ""
		a.ReplaceOnNextRune = false
	case tcell.KeyEnter:
		// Shift+Enter or Alt+Enter -> newline inside the cell
		if mod&tcell.ModShift != 0 || mod&tcell.ModAlt != 0 {
			a.InputBuf += "\n"
			return
		}
		a.SetCellValue(a.InputBuf)
		a.Mode = "normal"
		a.InputBuf = ""
		a.ReplaceOnNextRune = false
		// move after enter unless Ctrl held
		if mod&tcell.ModCtrl == 0 && a.MoveAfterEnter {
			a.CurRow++
			a.EnsureRowExists(a.CurRow)
		}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if a.ReplaceOnNextRune {
			a.InputBuf = ""
		} else if a.InputBuf != "" {
			_, size := utf8.DecodeLastRuneInString(a.InputBuf)
			a.InputBuf = a.InputBuf[:len(a.InputBuf)-size]
		}
		a.ReplaceOnNextRune = false
	default:
		r := ev.Rune()
		if r == 0 {
			return
		}
		if a.ReplaceOnNextRune {
			a.InputBuf = string(r)
			a.ReplaceOnNextRune = false
		} else {
			a.InputBuf += string(r)
		}
	}
}

func (a *App) handleNormalRune(s tcell.Screen, r rune) {
	switch r {
	case 0:
	case 'q':
		a.Quit = true
	case 'i':
		a.startEdit()
	case ':':
		if command, ok := a.PopupInput(s, ":", ""); ok {
			a.ExecuteCommand(command)
		}
	case '=':
		if value, ok := a.PopupInput(s, "", "="); ok {
			a.SetCellValue(value)
		}
	case '?':
		a.HelpVisible = true
	default:
		if a.PrintableStartsEdit {
			a.Mode = "insert"
			a.InputBuf = string(r)
			a.ReplaceOnNextRune = false
		}
	}
}

func (a *App) startEdit() {
	a.Mode = "insert"
	a.InputBuf = a.RawText(a.CurRow, a.CurCol)
	a.ReplaceOnNextRune = a.SelectAllOnEdit
}

// SetCellValue stores typed text in the current cell. Empty text clears it.
func (a *App) SetCellValue(value string) {
	ref := a.CurrentRef()
	if value == "" {
		delete(a.Cells, ref)
		return
	}
	a.EnsureColExists(a.CurCol)
	a.EnsureRowExists(a.CurRow)
	a.Cells[ref] = calc.ParseInput(value)
}

// ----------------------------- Layout -----------------------------

func (a *App) EnsureColExists(idx int) {
	for len(a.ColWidths) <= idx {
		a.ColWidths = append(a.ColWidths, a.DefaultWidth)
	}
}

func (a *App) EnsureRowExists(idx int) {
	for len(a.RowHeights) <= idx {
		a.RowHeights = append(a.RowHeights, a.DefaultHeight)
	}
}

// InsertRow adds an empty row at idx and moves the cells below it down.
// Formula text is not rewritten.
func (a *App) InsertRow(idx int) {
	idx = min(max(idx, 0), len(a.RowHeights))
	a.RowHeights = append(a.RowHeights[:idx], append([]int{a.DefaultHeight}, a.RowHeights[idx:]...)...)
	a.shift(func(r grid.CellRef) (grid.CellRef, bool) {
		if r.Row >= idx {
			r.Row++
		}
		return r, true
	})
}

// InsertCol adds an empty column at idx and moves the cells right of it.
func (a *App) InsertCol(idx int) {
	idx = min(max(idx, 0), len(a.ColWidths))
	a.ColWidths = append(a.ColWidths[:idx], append([]int{a.DefaultWidth}, a.ColWidths[idx:]...)...)
	a.shift(func(r grid.CellRef) (grid.CellRef, bool) {
		if r.Col >= idx {
			r.Col++
		}
		return r, true
	})
}

// DeleteRow removes row idx with its cells.
func (a *App) DeleteRow(idx int) {
	if idx < 0 || idx >= len(a.RowHeights) {
		return
	}
	a.RowHeights = append(a.RowHeights[:idx], a.RowHeights[idx+1:]...)
	a.shift(func(r grid.CellRef) (grid.CellRef, bool) {
		if r.Row == idx {
			return r, false
		}
		if r.Row > idx {
			r.Row--
		}
		return r, true
	})
	if a.CurRow >= len(a.RowHeights) {
		a.CurRow = max(0, len(a.RowHeights)-1)
	}
}

// DeleteCol removes column idx with its cells.
func (a *App) DeleteCol(idx int) {
	if idx < 0 || idx >= len(a.ColWidths) {
		return
	}
	a.ColWidths = append(a.ColWidths[:idx], a.ColWidths[idx+1:]...)
	a.shift(func(r grid.CellRef) (grid.CellRef, bool) {
		if r.Col == idx {
			return r, false
		}
		if r.Col > idx {
			r.Col--
		}
		return r, true
	})
	if a.CurCol >= len(a.ColWidths) {
		a.CurCol = max(0, len(a.ColWidths)-1)
	}
}

// shift re-keys every cell through move; cells it rejects are dropped.
func (a *App) shift(move func(grid.CellRef) (grid.CellRef, bool)) {
	out := make(calc.Cells, len(a.Cells))
	for ref, v := range a.Cells {
		r, err := grid.ParseCellRef(ref)
		if err != nil {
			continue
		}
		if r, ok := move(r); ok {
			out[r.String()] = v
		}
	}
	a.Cells = out
}
