package app

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"sheetcalc/internal/grid"
)

const helpText = "\n i / Enter - edit \n Ctrl+Enter - save&stay \n Shift/Alt+Enter - newline \n Del - clear cell \n : - command \n = - formula \n Ctrl←/Ctrl→ - col width \n Ctrl↑/Ctrl↓ - row height \n F2/F3 - add row/col \n F4 - delete row \n F5 - delete col \n PgUp/PgDn/Home/End - scroll \n :w [file] | :o file [sheet] | :q \n :cw N | :rh N \n "

var (
	headerStyle   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	activeStyle   = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow)
	selectedStyle = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorLightGray)
	errorStyle    = tcell.StyleDefault.Foreground(tcell.ColorRed)
	statusStyle   = tcell.StyleDefault.Background(tcell.ColorGray).Foreground(tcell.ColorWhite)
)

func (a *App) Draw(s tcell.Screen) {
	s.Clear()
	w, h := s.Size()

	// header row: column names
	x := a.LeftGutter
	for c := a.ViewCol; c < len(a.ColWidths) && x < w; c++ {
		wc := a.ColWidths[c]
		style := headerStyle
		if c == a.CurCol {
			style = activeStyle
			fill(s, x, 0, wc, 1, style)
		}
		a.printCell(s, x, 0, grid.ColToName(c), style, wc)
		x += wc
	}

	// rows
	y := 1
	for r := a.ViewRow; r < len(a.RowHeights) && y < h-a.StatusLines; r++ {
		gutter := headerStyle
		if r == a.CurRow {
			gutter = activeStyle
			fill(s, 0, y, a.LeftGutter-1, 1, gutter)
		}
		printTextFixedWidth(s, 0, y, fmt.Sprintf("%d", r+1), gutter, a.LeftGutter-1)

		x = a.LeftGutter
		hh := a.RowHeights[r]
		for c := a.ViewCol; c < len(a.ColWidths) && x < w; c++ {
			wc := a.ColWidths[c]
			text := a.GetDisplayText(r, c)
			style := tcell.StyleDefault
			if strings.HasPrefix(text, "#") && a.isFormula(r, c) {
				style = errorStyle
			}
			if r == a.CurRow && c == a.CurCol {
				style = selectedStyle
				if a.Mode == "insert" {
					text = a.InputBuf
				}
			}
			fill(s, x, y, wc, hh, style)
			for dy, line := range splitLines(text, hh) {
				a.printCell(s, x, y+dy, line, style, wc)
			}
			x += wc
		}
		y += hh
	}

	a.drawStatus(s, w, h)

	if a.HelpVisible {
		a.drawHelpPopup(s, helpText)
	}

	if a.Mode == "insert" {
		a.drawEditCursor(s, w, h)
	} else {
		s.HideCursor()
	}

	s.Show()
}

func (a *App) drawStatus(s tcell.Screen, w, h int) {
	statusY := max(0, h-a.StatusLines)

	colW, rowH := a.DefaultWidth, a.DefaultHeight
	if a.CurCol < len(a.ColWidths) {
		colW = a.ColWidths[a.CurCol]
	}
	if a.CurRow < len(a.RowHeights) {
		rowH = a.RowHeights[a.CurRow]
	}
	left := fmt.Sprintf("Mode:%s  Cell:%s  cw=%d rh=%d  View:%d,%d", a.Mode, a.CurrentRef(), colW, rowH, a.ViewRow+1, a.ViewCol+1)
	if a.FileName != "" {
		left += "  File:" + a.FileName
	}
	printTextFixedWidth(s, 0, statusY, left, statusStyle, w)

	var line string
	switch {
	case a.Mode == "insert":
		line = "EDIT: " + a.InputBuf
	case a.Message != "":
		line = a.Message
	default:
		line = a.StatusText()
	}
	printTextFixedWidth(s, 0, statusY+1, line, statusStyle, w)
}

// drawEditCursor places a bar after the last line of the edit buffer.
func (a *App) drawEditCursor(s tcell.Screen, w, h int) {
	cellX := a.LeftGutter
	for cc := a.ViewCol; cc < a.CurCol && cc < len(a.ColWidths); cc++ {
		cellX += a.ColWidths[cc]
	}
	cellY := 1
	for rr := a.ViewRow; rr < a.CurRow && rr < len(a.RowHeights); rr++ {
		cellY += a.RowHeights[rr]
	}
	if a.CurCol < a.ViewCol || a.CurRow < a.ViewRow || cellX >= w || cellY >= h-a.StatusLines {
		s.HideCursor()
		return
	}

	lines := strings.Split(a.InputBuf, "\n")
	last := len(lines) - 1
	colW, rowH := a.DefaultWidth, a.DefaultHeight
	if a.CurCol < len(a.ColWidths) {
		colW = a.ColWidths[a.CurCol]
	}
	if a.CurRow < len(a.RowHeights) {
		rowH = a.RowHeights[a.CurRow]
	}
	innerW := max(1, colW-2*a.CellPadding)
	cx := cellX + a.CellPadding + min(runewidth.StringWidth(lines[last]), innerW-1)
	cy := cellY + min(last, max(0, rowH-1))
	if cx < w && cy < h {
		s.SetContent(cx, cy, '▏', nil, tcell.StyleDefault.Foreground(tcell.ColorRed).Background(tcell.ColorLightGray))
	}
}

// printCell prints text inside a cell of width wc, honoring the padding.
func (a *App) printCell(s tcell.Screen, x, y int, text string, style tcell.Style, wc int) {
	innerW := wc - 2*a.CellPadding
	if innerW > 0 {
		printTextFixedWidth(s, x+a.CellPadding, y, text, style, innerW)
	} else {
		printTextFixedWidth(s, x, y, text, style, wc)
	}
}

func fill(s tcell.Screen, x, y, w, h int, style tcell.Style) {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			s.SetContent(x+dx, y+dy, ' ', nil, style)
		}
	}
}

// printTextFixedWidth prints str into exactly width terminal columns,
// truncating or padding as needed. Wide runes take two columns.
func printTextFixedWidth(s tcell.Screen, x, y int, str string, style tcell.Style, width int) {
	if y < 0 || width <= 0 {
		return
	}
	col := 0
	for _, ch := range str {
		cw := runewidth.RuneWidth(ch)
		if cw == 0 {
			continue
		}
		if col+cw > width {
			break
		}
		s.SetContent(x+col, y, ch, nil, style)
		col += cw
	}
	for ; col < width; col++ {
		s.SetContent(x+col, y, ' ', nil, style)
	}
}

func splitLines(text string, maxLines int) []string {
	if maxLines <= 0 {
		return nil
	}
	out := make([]string, maxLines)
	copy(out, strings.Split(text, "\n"))
	return out
}

func (a *App) drawHelpPopup(s tcell.Screen, help string) {
	w, h := s.Size()
	if w < 10 || h < 5 {
		return
	}

	padding := 4
	maxPW := w - 6
	maxPH := h - 6

	innerW := min(maxPW-padding*2, 50)
	if innerW < 30 {
		innerW = max(30, maxPW-padding*2)
	}
	innerW = min(innerW, maxPW-padding*2)

	lines := wrapText(help, innerW)
	if limit := maxPH - padding*2; limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}
	innerH := max(3, len(lines))

	pw := innerW + padding*2
	ph := innerH + padding*2
	left := (w - pw) / 2
	top := (h - ph) / 2

	style := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDefault)
	fill(s, left, top, pw, ph, style)
	box(s, left, top, pw, ph, style)

	vOffset := (ph - padding*2 - innerH) / 2
	for i, ln := range lines {
		printTextFixedWidth(s, left+padding, top+padding+vOffset+i, ln, style, innerW)
	}
}

func box(s tcell.Screen, left, top, w, h int, style tcell.Style) {
	for x := left + 1; x < left+w-1; x++ {
		s.SetContent(x, top, tcell.RuneHLine, nil, style)
		s.SetContent(x, top+h-1, tcell.RuneHLine, nil, style)
	}
	for y := top + 1; y < top+h-1; y++ {
		s.SetContent(left, y, tcell.RuneVLine, nil, style)
		s.SetContent(left+w-1, y, tcell.RuneVLine, nil, style)
	}
	s.SetContent(left, top, tcell.RuneULCorner, nil, style)
	s.SetContent(left+w-1, top, tcell.RuneURCorner, nil, style)
	s.SetContent(left, top+h-1, tcell.RuneLLCorner, nil, style)
	s.SetContent(left+w-1, top+h-1, tcell.RuneLRCorner, nil, style)
}

// wrapText breaks s into lines of at most width columns with a one column
// left margin. Words longer than a line are split.
func wrapText(s string, width int) []string {
	if width <= 2 {
		return []string{s}
	}

	var result []string
	paragraphs := strings.Split(s, "\n")
	for pi, para := range paragraphs {
		words := strings.Fields(para)
		if len(words) == 0 {
			result = append(result, "")
			continue
		}

		cur := " "
		for _, w := range words {
			if runewidth.StringWidth(w) > width-1 {
				for i, c := range chunkString(w, width-1) {
					if i == 0 && runewidth.StringWidth(cur)+1+runewidth.StringWidth(c) <= width {
						cur += " " + c
						continue
					}
					result = append(result, cur)
					cur = " " + c
				}
				continue
			}
			if runewidth.StringWidth(cur)+1+runewidth.StringWidth(w) <= width {
				if len(cur) > 1 {
					cur += " "
				}
				cur += w
			} else {
				result = append(result, cur)
				cur = " " + w
			}
		}
		result = append(result, cur)

		if pi < len(paragraphs)-1 {
			result = append(result, "")
		}
	}
	return result
}

func chunkString(s string, size int) []string {
	r := []rune(s)
	var out []string
	for i := 0; i < len(r); i += size {
		out = append(out, string(r[i:min(i+size, len(r))]))
	}
	return out
}
