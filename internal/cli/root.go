package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sheetcalc/internal/calc"
	"sheetcalc/internal/config"
	"sheetcalc/internal/logging"
)

var (
	configPath string
	logLevel   string
	colorMode  string
	verbose    bool
	quiet      bool

	// set up by PersistentPreRunE before any subcommand runs
	cfg    = config.Default()
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "sheetcalc",
	Short: "Spreadsheet formula evaluation engine",
	Long: `sheetcalc evaluates spreadsheet formulas such as =SUM(A1:A10) against a
snapshot of cell values. Snapshots come from YAML/JSON, CSV or xlsx files,
or from workbooks stored in a SQLite database.

The same engine is exposed as an HTTP API (serve) and as a terminal grid
editor (view).`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "Color output: auto, always, never")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads the configuration and builds the logger. Flags win over
// the environment, which wins over the file.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	switch {
	case logLevel != "":
		loaded.Log.Level = logLevel
	case verbose:
		loaded.Log.Level = "debug"
	case quiet:
		loaded.Log.Level = "error"
	}
	l, err := logging.New(loaded.Log, os.Stderr)
	if err != nil {
		return err
	}

	switch colorMode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	case "auto":
	default:
		return fmt.Errorf("invalid --color value %q", colorMode)
	}

	cfg, logger = loaded, l
	return nil
}

func newEngine() *calc.Engine {
	return calc.New(calc.WithLimits(cfg.Engine), calc.WithLogger(logger))
}
