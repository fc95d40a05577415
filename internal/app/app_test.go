package app

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetcalc/internal/calc"
)

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("")
	require.NoError(t, s.Init())
	s.SetSize(80, 24)
	t.Cleanup(s.Fini)
	return s
}

func screenLines(s tcell.SimulationScreen) []string {
	cells, w, h := s.GetContents()
	lines := make([]string, h)
	for y := 0; y < h; y++ {
		var b strings.Builder
		for x := 0; x < w; x++ {
			c := cells[y*w+x]
			if len(c.Runes) > 0 {
				b.WriteRune(c.Runes[0])
			} else {
				b.WriteByte(' ')
			}
		}
		lines[y] = b.String()
	}
	return lines
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func special(k tcell.Key) *tcell.EventKey {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func typeText(a *App, s tcell.Screen, text string) {
	for _, r := range text {
		a.HandleKeyEvent(s, key(r))
	}
}

func TestGetDisplayText(t *testing.T) {
	a := NewApp(nil)
	a.SetCells(calc.Cells{
		"A1": calc.Number(1),
		"A2": calc.Number(2),
		"A3": calc.Text("=SUM(A1:A2)"),
		"B1": calc.Text("=FOO(1)"),
		"B2": calc.Text("=B2"),
		"C1": calc.Text("hi"),
		"C2": calc.Bool(true),
	})

	assert.Equal(t, "1", a.GetDisplayText(0, 0))
	assert.Equal(t, "3", a.GetDisplayText(2, 0))
	assert.Equal(t, "#UNKNOWN_FUNCTION", a.GetDisplayText(0, 1))
	assert.Equal(t, "#RECURSION", a.GetDisplayText(1, 1))
	assert.Equal(t, "hi", a.GetDisplayText(0, 2))
	assert.Equal(t, "TRUE", a.GetDisplayText(1, 2))
	assert.Equal(t, "", a.GetDisplayText(9, 9))

	assert.Equal(t, "=SUM(A1:A2)", a.RawText(2, 0))
}

func TestInsertModeCommitsCell(t *testing.T) {
	s := newScreen(t)
	a := NewApp(nil)

	a.HandleKeyEvent(s, key('i'))
	require.Equal(t, "insert", a.Mode)
	typeText(a, s, "=SUM(1,2)")
	a.HandleKeyEvent(s, special(tcell.KeyEnter))

	assert.Equal(t, "normal", a.Mode)
	assert.Equal(t, calc.Text("=SUM(1,2)"), a.Cells["A1"])
	assert.Equal(t, 1, a.CurRow)
	assert.Equal(t, "3", a.GetDisplayText(0, 0))

	a.HandleKeyEvent(s, key('i'))
	typeText(a, s, "42")
	a.HandleKeyEvent(s, special(tcell.KeyEnter))
	assert.Equal(t, calc.Number(42), a.Cells["A2"])
}

func TestInsertModeEditsExistingText(t *testing.T) {
	s := newScreen(t)
	a := NewApp(nil)
	a.SelectAllOnEdit = false
	a.SetCells(calc.Cells{"A1": calc.Number(12)})

	a.HandleKeyEvent(s, special(tcell.KeyEnter))
	assert.Equal(t, "12", a.InputBuf)
	typeText(a, s, "3ü")
	assert.Equal(t, "123ü", a.InputBuf)
	a.HandleKeyEvent(s, special(tcell.KeyBackspace2))
	assert.Equal(t, "123", a.InputBuf)

	a.HandleKeyEvent(s, special(tcell.KeyEsc))
	assert.Equal(t, "normal", a.Mode)
	assert.Equal(t, calc.Number(12), a.Cells["A1"])
}

func TestEmptyInputClearsCell(t *testing.T) {
	s := newScreen(t)
	a := NewApp(nil)
	a.SetCells(calc.Cells{"A1": calc.Number(1), "A2": calc.Number(2)})

	a.HandleKeyEvent(s, key('i'))
	a.HandleKeyEvent(s, special(tcell.KeyBackspace2))
	a.HandleKeyEvent(s, special(tcell.KeyEnter))
	assert.NotContains(t, a.Cells, "A1")

	a.HandleKeyEvent(s, special(tcell.KeyDelete))
	assert.NotContains(t, a.Cells, "A2")
}

func TestCursorMovement(t *testing.T) {
	s := newScreen(t)
	a := NewApp(nil)

	a.HandleKeyEvent(s, special(tcell.KeyRight))
	a.HandleKeyEvent(s, special(tcell.KeyDown))
	a.HandleKeyEvent(s, special(tcell.KeyDown))
	assert.Equal(t, "B3", a.CurrentRef())

	a.HandleKeyEvent(s, special(tcell.KeyUp))
	a.HandleKeyEvent(s, special(tcell.KeyLeft))
	a.HandleKeyEvent(s, special(tcell.KeyLeft))
	assert.Equal(t, "A2", a.CurrentRef())

	for i := 0; i < 40; i++ {
		a.HandleKeyEvent(s, special(tcell.KeyDown))
	}
	a.EnsureCursorVisible(s)
	assert.Equal(t, 41, a.CurRow)
	assert.Greater(t, a.ViewRow, 0)
	assert.LessOrEqual(t, a.ViewRow, a.CurRow)
}

func TestInsertAndDeleteRowsAndColumns(t *testing.T) {
	a := NewApp(nil)
	a.SetCells(calc.Cells{
		"A1": calc.Number(1),
		"B2": calc.Number(2),
		"C3": calc.Number(3),
	})

	a.InsertRow(1)
	assert.Equal(t, calc.Cells{"A1": calc.Number(1), "B3": calc.Number(2), "C4": calc.Number(3)}, a.Cells)

	a.InsertCol(0)
	assert.Equal(t, calc.Cells{"B1": calc.Number(1), "C3": calc.Number(2), "D4": calc.Number(3)}, a.Cells)

	a.DeleteRow(2)
	assert.Equal(t, calc.Cells{"B1": calc.Number(1), "D3": calc.Number(3)}, a.Cells)

	a.DeleteCol(1)
	assert.Equal(t, calc.Cells{"C3": calc.Number(3)}, a.Cells)
}

func TestExecuteCommand_WriteAndOpen(t *testing.T) {
	dir := t.TempDir()
	cells := calc.Cells{
		"A1": calc.Number(1),
		"A2": calc.Text("=A1"),
		"B1": calc.Text("note"),
	}
	for _, name := range []string{"grid.csv", "grid.yaml", "grid.xlsx"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			a := NewApp(nil)
			a.SetCells(cells.Clone())
			a.ExecuteCommand("w " + path)
			assert.Contains(t, a.Message, "saved 3 cells")
			assert.Equal(t, path, a.FileName)

			b := NewApp(nil)
			b.ExecuteCommand("o " + path)
			assert.Contains(t, b.Message, "loaded 3 cells")
			assert.Equal(t, cells, b.Cells)
			assert.Equal(t, "1", b.GetDisplayText(1, 0))
		})
	}
}

func TestExecuteCommand_Misc(t *testing.T) {
	a := NewApp(nil)

	a.ExecuteCommand("w")
	assert.Equal(t, "no file name", a.Message)

	a.ExecuteCommand("o")
	assert.Contains(t, a.Message, "usage")

	a.ExecuteCommand("o " + filepath.Join(t.TempDir(), "missing.csv"))
	assert.Contains(t, a.Message, "error loading")

	a.ExecuteCommand("frobnicate")
	assert.Equal(t, "unknown command: frobnicate", a.Message)

	a.ExecuteCommand("cw 10")
	assert.Equal(t, 10, a.ColWidths[0])
	a.ExecuteCommand("cw 2")
	assert.Equal(t, 10, a.ColWidths[0])

	a.ExecuteCommand("rh 3")
	assert.Equal(t, 3, a.RowHeights[0])

	a.ExecuteCommand("q")
	assert.True(t, a.Quit)
}

func TestDraw(t *testing.T) {
	s := newScreen(t)
	a := NewApp(nil)
	a.SetCells(calc.Cells{
		"A1": calc.Number(2),
		"A2": calc.Text("=POWER(A1,3)"),
	})

	a.Draw(s)
	lines := screenLines(s)
	assert.Equal(t, []string{"A", "B", "C", "D"}, strings.Fields(lines[0])[:4])
	assert.Equal(t, []string{"1", "2"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2", "8"}, strings.Fields(lines[2]))
	assert.Contains(t, lines[22], "Cell:A1")
	assert.True(t, strings.HasPrefix(lines[23], "A1: 2"), lines[23])

	a.HandleKeyEvent(s, special(tcell.KeyDown))
	a.Draw(s)
	lines = screenLines(s)
	assert.True(t, strings.HasPrefix(lines[23], "A2: =POWER(A1,3)  <- A1"), lines[23])
}

func TestStatusTextShowsErrors(t *testing.T) {
	a := NewApp(nil)
	a.SetCells(calc.Cells{"A1": calc.Text("=SUM(A1:B1)")})
	status := a.StatusText()
	assert.Contains(t, status, "[recursion: ")
	assert.Contains(t, status, "<- A1, B1")

	a.CurRow = 5
	assert.Equal(t, "A6: empty", a.StatusText())
}

func TestPopupInputSetsFormula(t *testing.T) {
	s := newScreen(t)
	a := NewApp(nil)

	s.InjectKey(tcell.KeyRune, '5', tcell.ModNone)
	s.InjectKey(tcell.KeyEnter, 0, tcell.ModNone)
	a.HandleKeyEvent(s, key('='))

	assert.Equal(t, calc.Text("=5"), a.Cells["A1"])
	assert.Equal(t, "5", a.GetDisplayText(0, 0))

	s.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	s.InjectKey(tcell.KeyEsc, 0, tcell.ModNone)
	a.HandleKeyEvent(s, key('='))
	assert.Equal(t, calc.Text("=5"), a.Cells["A1"])
}

func TestHelpPopup(t *testing.T) {
	s := newScreen(t)
	s.SetSize(120, 60)
	a := NewApp(nil)

	a.HandleKeyEvent(s, key('?'))
	require.True(t, a.HelpVisible)
	a.Draw(s)
	assert.Contains(t, strings.Join(screenLines(s), "\n"), "F4 - delete row")

	// keys other than Esc and ? are swallowed
	a.HandleKeyEvent(s, key('q'))
	assert.False(t, a.Quit)
	a.HandleKeyEvent(s, special(tcell.KeyEsc))
	assert.False(t, a.HelpVisible)
}

func TestRunQuits(t *testing.T) {
	s := newScreen(t)
	a := NewApp(nil)
	s.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	a.Run(s)
	assert.True(t, a.Quit)
}

func TestSplash(t *testing.T) {
	SplashDelay = 0
	s := newScreen(t)
	s.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	Splash(s, "SHEETCALC")
	assert.Contains(t, strings.Join(screenLines(s), "\n"), "SHEETCALC")
}

func TestWrapText(t *testing.T) {
	lines := wrapText("alpha beta gamma", 12)
	assert.Equal(t, []string{" alpha beta", " gamma"}, lines)

	lines = wrapText("abcdefghijkl", 6)
	for _, l := range lines {
		assert.LessOrEqual(t, len(l), 6)
	}
	assert.Equal(t, "abcdefghijkl", strings.ReplaceAll(strings.Join(lines, ""), " ", ""))
}
