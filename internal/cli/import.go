package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sheetcalc/internal/storage"
)

var (
	importDB       string
	importWorkbook string
	importSheet    string
)

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Import an xlsx worksheet into the workbook database",
	Long: `Import one worksheet of an xlsx file into the workbook database, replacing
the workbook's cells. The workbook name defaults to the file name without
its extension.`,
	Example: `  sheetcalc import budget.xlsx --db sheetcalc.db
  sheetcalc import report.xlsx --sheet Q3 --workbook q3`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importDB, "db", "", "Workbook database path (default from config)")
	importCmd.Flags().StringVar(&importWorkbook, "workbook", "", "Workbook name (default: file base name)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "Worksheet to import (default: active sheet)")
}

func runImport(cmd *cobra.Command, args []string) error {
	filename := args[0]
	dbPath := cfg.Store.Path
	if importDB != "" {
		dbPath = importDB
	}
	name := importWorkbook
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	cells, err := storage.LoadXLSX(filename, importSheet)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}

	store, err := storage.Open(storage.Config{Path: dbPath})
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.PutCells(context.Background(), name, cells, true); err != nil {
		return fmt.Errorf("storing workbook %q: %w", name, err)
	}
	logger.Info().Str("workbook", name).Str("db", dbPath).Int("cells", len(cells)).Msg("imported")
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d cells into %s\n", len(cells), name)
	return nil
}
