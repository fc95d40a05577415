package app

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"sheetcalc/internal/storage"
)

// ExecuteCommand runs a ":" command. The outcome is left in Message.
func (a *App) ExecuteCommand(cmd string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}
	switch parts[0] {
	case "q", "quit":
		a.Quit = true
	case "cw":
		if len(parts) >= 2 {
			if v, err := strconv.Atoi(parts[1]); err == nil && v >= 4 {
				for i := range a.ColWidths {
					a.ColWidths[i] = v
				}
			}
		}
	case "rh":
		if len(parts) >= 2 {
			if v, err := strconv.Atoi(parts[1]); err == nil && v >= 1 {
				for i := range a.RowHeights {
					a.RowHeights[i] = v
				}
			}
		}
	case "w", "write":
		filename := a.FileName
		if len(parts) >= 2 {
			filename = parts[1]
		}
		if filename == "" {
			a.Message = "no file name"
			return
		}
		// ":w name csv" forces CSV
		if len(parts) >= 3 && parts[2] == "csv" && filepath.Ext(filename) != ".csv" {
			filename += ".csv"
		}
		if err := a.Save(filename); err != nil {
			a.Message = fmt.Sprintf("error saving %s: %v", filename, err)
			return
		}
		a.Message = fmt.Sprintf("saved %d cells to %s", len(a.Cells), filename)
	case "o", "open":
		if len(parts) < 2 {
			a.Message = "usage: :o file [sheet]"
			return
		}
		sheet := ""
		if len(parts) >= 3 {
			sheet = parts[2]
		}
		if err := a.Open(parts[1], sheet); err != nil {
			a.Message = fmt.Sprintf("error loading %s: %v", parts[1], err)
			return
		}
		a.Message = fmt.Sprintf("loaded %d cells from %s", len(a.Cells), parts[1])
	default:
		a.Message = "unknown command: " + parts[0]
	}
}

// Open replaces the grid with the cells stored in filename.
func (a *App) Open(filename, sheet string) error {
	cells, err := storage.Load(filename, sheet)
	if err != nil {
		return err
	}
	a.SetCells(cells)
	a.FileName = filename
	a.Sheet = sheet
	return nil
}

// Save writes the grid to filename; the format follows the extension.
func (a *App) Save(filename string) error {
	if err := storage.Save(a.Cells, filename, a.Engine); err != nil {
		return err
	}
	a.FileName = filename
	return nil
}
