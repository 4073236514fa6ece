package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codegrip/internal/extract"
)

func newExtractCmd(a *app) *cobra.Command {
	var contextLines int

	cmd := &cobra.Command{
		Use:   "extract <file[:line|:start-end|#symbol]>",
		Short: "Print the function or class around a location",
		Long: `Extract returns the smallest complete syntactic unit around a line,
a line range or a named symbol. Files without a grammar, or lines outside
any unit, fall back to a window of surrounding lines.`,
		Example: `  codegrip extract internal/search/engine.go:120
  codegrip extract src/lib.rs:10-24
  codegrip extract internal/search/engine.go#Engine.Search`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, loc, err := extract.ParseLocation(args[0])
			if err != nil {
				return err
			}
			file, err := readFile(p)
			if err != nil {
				return err
			}
			engine, err := a.newEngine()
			if err != nil {
				return err
			}
			block, err := engine.Extract(cmd.Context(), file, loc, contextLines)
			if err != nil {
				return err
			}
			return a.writer(cmd).Block(block)
		},
	}

	cmd.Flags().IntVar(&contextLines, "context", 0, "Lines around the location when no unit encloses it (default from config)")

	return cmd
}

func newSymbolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "symbols <file>",
		Short:   "List the named units of a file",
		Example: `  codegrip symbols internal/search/engine.go`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := readFile(args[0])
			if err != nil {
				return err
			}
			engine, err := a.newEngine()
			if err != nil {
				return err
			}
			symbols, err := engine.Symbols(cmd.Context(), file)
			if err != nil {
				return err
			}
			return a.writer(cmd).Symbols(file.Path, symbols)
		},
	}
}
