package app

import "github.com/gdamore/tcell/v2"

// ComputeVisible returns how many rows and columns fit on screen starting
// at the current view origin. Both are at least 1.
func (a *App) ComputeVisible(s tcell.Screen) (visibleRows, visibleCols int) {
	w, h := s.Size()
	usableW := max(1, w-a.LeftGutter)
	usableH := max(1, h-a.StatusLines-1)
	return fitting(a.RowHeights[min(a.ViewRow, len(a.RowHeights)):], usableH),
		fitting(a.ColWidths[min(a.ViewCol, len(a.ColWidths)):], usableW)
}

func fitting(sizes []int, room int) int {
	sum, n := 0, 0
	for _, size := range sizes {
		if sum+size > room {
			break
		}
		sum += size
		n++
	}
	return max(1, n)
}

// EnsureCursorVisible scrolls the view so that the cursor cell is on screen.
func (a *App) EnsureCursorVisible(s tcell.Screen) {
	if s == nil {
		return
	}
	visibleRows, visibleCols := a.ComputeVisible(s)

	if a.CurCol < a.ViewCol {
		a.ViewCol = a.CurCol
	} else if a.CurCol >= a.ViewCol+visibleCols {
		a.ViewCol = a.CurCol - visibleCols + 1
	}
	a.ViewCol = clamp(a.ViewCol, len(a.ColWidths))

	if a.CurRow < a.ViewRow {
		a.ViewRow = a.CurRow
	} else if a.CurRow >= a.ViewRow+visibleRows {
		a.ViewRow = a.CurRow - visibleRows + 1
	}
	a.ViewRow = clamp(a.ViewRow, len(a.RowHeights))
}

func clamp(v, n int) int {
	if v >= n {
		v = n - 1
	}
	return max(0, v)
}
