package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"sheetcalc/internal/app"
)

var (
	viewSheet  string
	viewSplash bool
)

var viewCmd = &cobra.Command{
	Use:   "view [file]",
	Short: "Open the terminal grid editor",
	Long: `Open a terminal grid editor. Formula cells show their evaluated value and
the status line shows the raw input, errors and precedents of the cell under
the cursor. Press ? inside the editor for key bindings.

A file that does not exist yet is created on the first :w.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func init() {
	viewCmd.Flags().StringVar(&viewSheet, "sheet", "", "Worksheet to open from an xlsx file")
	viewCmd.Flags().BoolVar(&viewSplash, "splash", false, "Show the splash screen on start")
}

func runView(cmd *cobra.Command, args []string) error {
	a := app.NewApp(newEngine())
	if len(args) == 1 {
		if err := openOrCreate(a, args[0], viewSheet); err != nil {
			return err
		}
	}

	s, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("cannot create screen: %w", err)
	}
	if err := s.Init(); err != nil {
		return fmt.Errorf("cannot init screen: %w", err)
	}
	defer s.Fini()
	s.Clear()

	if viewSplash {
		app.Splash(s, "SHEETCALC")
	}
	a.Run(s)
	return nil
}

// openOrCreate loads filename into the app, or only remembers the name
// when the file does not exist yet.
func openOrCreate(a *app.App, filename, sheet string) error {
	if _, err := os.Stat(filename); errors.Is(err, fs.ErrNotExist) {
		a.FileName = filename
		a.Sheet = sheet
		a.Message = "new file " + filename
		return nil
	}
	if err := a.Open(filename, sheet); err != nil {
		return fmt.Errorf("opening %s: %w", filename, err)
	}
	logger.Debug().Str("file", filename).Int("cells", len(a.Cells)).Msg("opened")
	return nil
}
