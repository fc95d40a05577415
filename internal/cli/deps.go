package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sheetcalc/internal/calc"
)

var depsExpand bool

var depsCmd = &cobra.Command{
	Use:   "deps <formula>",
	Short: "List the cells a formula reads",
	Long: `List the references and ranges a formula reads, in order of first
appearance. With --expand every range is expanded into single cells.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeps,
}

func init() {
	depsCmd.Flags().BoolVar(&depsExpand, "expand", false, "Expand ranges into single cells")
}

func runDeps(cmd *cobra.Command, args []string) error {
	var (
		refs []string
		err  error
	)
	if depsExpand {
		refs, err = calc.Precedents(args[0], cfg.Engine.MaxVisits)
	} else {
		refs, err = calc.Dependencies(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading dependencies: %w", err)
	}

	st := newStyles()
	out := cmd.OutOrStdout()
	for _, ref := range refs {
		st.ref.Fprintln(out, ref)
	}
	return nil
}
