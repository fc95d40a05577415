package app

import (
	"time"

	"github.com/gdamore/tcell/v2"
)

// SplashDelay is the pause between revealed letters.
var SplashDelay = 80 * time.Millisecond

// Splash reveals title letter by letter and waits for a key press.
func Splash(s tcell.Screen, title string) {
	text := []rune(title)
	width, height := s.Size()
	hint := "Press any key to open the grid"

	for reveal := 1; reveal <= len(text); reveal++ {
		s.Clear()
		startX := (width - len(text)) / 2
		y := height / 2
		for i := 0; i < reveal; i++ {
			color := tcell.ColorWhite
			if i%3 == 2 {
				color = tcell.ColorYellow
			}
			s.SetContent(startX+i, y, text[i], nil, tcell.StyleDefault.Foreground(color).Bold(true))
		}
		printTextFixedWidth(s, (width-len(hint))/2, y+2, hint, headerStyle, len(hint))
		s.Show()
		time.Sleep(SplashDelay)
	}

	for {
		switch s.PollEvent().(type) {
		case *tcell.EventKey, nil:
			return
		case *tcell.EventResize:
			s.Sync()
		}
	}
}
