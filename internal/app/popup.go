package app

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// maxPopupInput bounds the popup buffer in runes.
const maxPopupInput = 4096

// PopupInput shows a modal input box over the grid. It returns the entered
// text and true on Enter, or "" and false on Esc.
func (a *App) PopupInput(s tcell.Screen, prompt, initial string) (string, bool) {
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorReset)

	promptW := runewidth.StringWidth(prompt)
	buf := []rune(initial)
	pos := len(buf)

	w, h := s.Size()
	contentW := min(max(40, promptW+len(buf)+2), w-4)
	boxW := contentW + 4
	boxH := 3
	left := (w - boxW) / 2
	top := (h - boxH) / 2

	drawBox := func() {
		fill(s, left, top, boxW, boxH, style)
		box(s, left, top, boxW, boxH, style)

		x := left + 2
		y := top + 1
		printTextFixedWidth(s, x, y, prompt, style, promptW)
		if promptW > 0 {
			x += promptW + 1
		}

		field := max(1, boxW-4-promptW)
		start := 0
		if pos > field {
			start = pos - field
		}
		visible := buf[start:min(len(buf), start+field)]
		printTextFixedWidth(s, x, y, string(visible), style, field)
		s.ShowCursor(x+runewidth.StringWidth(string(buf[start:pos])), y)
	}

	redraw := func() {
		a.Draw(s)
		drawBox()
		s.Show()
	}
	redraw()

	for {
		switch ev := s.PollEvent().(type) {
		case nil:
			return "", false
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyEsc:
				s.HideCursor()
				a.Draw(s)
				return "", false
			case tcell.KeyEnter:
				s.HideCursor()
				a.Draw(s)
				return string(buf), true
			case tcell.KeyBackspace, tcell.KeyBackspace2:
				if pos > 0 {
					buf = append(buf[:pos-1], buf[pos:]...)
					pos--
				}
			case tcell.KeyDelete:
				if pos < len(buf) {
					buf = append(buf[:pos], buf[pos+1:]...)
				}
			case tcell.KeyLeft:
				if pos > 0 {
					pos--
				}
			case tcell.KeyRight:
				if pos < len(buf) {
					pos++
				}
			case tcell.KeyHome:
				pos = 0
			case tcell.KeyEnd:
				pos = len(buf)
			default:
				if r := ev.Rune(); r != 0 && len(buf) < maxPopupInput {
					buf = append(buf[:pos], append([]rune{r}, buf[pos:]...)...)
					pos++
				}
			}
			redraw()
		case *tcell.EventResize:
			s.Sync()
			w, h = s.Size()
			boxW = min(boxW, w-4)
			left = (w - boxW) / 2
			top = (h - boxH) / 2
			redraw()
		}
	}
}
