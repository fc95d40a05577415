package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sheetcalc/internal/calc"
	"sheetcalc/internal/storage"
)

// errFailed is returned after a formula failure has already been printed.
var errFailed = errors.New("evaluation failed")

var (
	evalData  string
	evalSheet string
	evalCell  string
	evalJSON  bool
)

var evalCmd = &cobra.Command{
	Use:   "eval <formula>",
	Short: "Evaluate a formula",
	Long: `Evaluate a formula against a snapshot of cells. The snapshot is read from
--data (YAML/JSON, .csv or .xlsx); without it every referenced cell is empty.

Text that does not start with '=' is printed back unchanged.`,
	Example: `  sheetcalc eval '=SUM(1,2)'
  sheetcalc eval '=AVERAGE(A1:A10)' --data cells.yaml
  sheetcalc eval '=B2' --data book.xlsx --sheet Summary --json`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalData, "data", "", "Cell snapshot file (.yaml, .json, .csv, .xlsx)")
	evalCmd.Flags().StringVar(&evalSheet, "sheet", "", "Worksheet to read from an xlsx file (default: active sheet)")
	evalCmd.Flags().StringVar(&evalCell, "cell", "", "Cell the formula lives in, for self-reference detection")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "Print the result as JSON")
}

// styles holds the color formatters for command output.
type styles struct {
	value *color.Color
	err   *color.Color
	kind  *color.Color
	ref   *color.Color
}

func newStyles() *styles {
	return &styles{
		value: color.New(color.Bold, color.FgHiGreen),
		err:   color.New(color.FgRed),
		kind:  color.New(color.Bold, color.FgYellow),
		ref:   color.New(color.FgHiBlue),
	}
}

type evalOutput struct {
	Formula string         `json:"formula"`
	Result  *calc.Value    `json:"result"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Kind    calc.ErrorKind `json:"kind,omitempty"`
}

func runEval(cmd *cobra.Command, args []string) error {
	formula := args[0]

	cells := calc.Cells{}
	if evalData != "" {
		loaded, err := storage.Load(evalData, evalSheet)
		if err != nil {
			return fmt.Errorf("loading %s: %w", evalData, err)
		}
		cells = loaded
		logger.Debug().Str("file", evalData).Int("cells", len(cells)).Msg("snapshot loaded")
	}

	res := newEngine().EvaluateAt(formula, evalCell, cells)
	if err := printResult(cmd.OutOrStdout(), formula, res, evalJSON); err != nil {
		return err
	}
	if !res.OK() {
		return errFailed
	}
	return nil
}

func printResult(w io.Writer, formula string, res calc.Result, asJSON bool) error {
	if asJSON {
		out := evalOutput{Formula: formula, Success: res.OK()}
		if res.OK() {
			v := res.Value
			out.Result = &v
		} else {
			out.Error, out.Kind = res.Err.Message, res.Err.Kind
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	st := newStyles()
	if !res.OK() {
		st.err.Fprint(w, "error ")
		st.kind.Fprintf(w, "[%s]", res.Err.Kind)
		st.err.Fprintf(w, ": %s\n", res.Err.Message)
		return nil
	}
	st.value.Fprintln(w, res.Value.String())
	return nil
}
