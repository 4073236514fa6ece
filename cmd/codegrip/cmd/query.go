package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codegrip/internal/search"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		lang  string
		pf    pathFlags
		paths []string
		opts  search.QueryOptions
	)

	cmd := &cobra.Command{
		Use:   "query <pattern> [path...]",
		Short: "Find code matching a structural pattern",
		Long: `Query parses every file and reports the nodes that match a pattern
written in the target language. $NAME captures one node, $$$NAME any
sequence of nodes and $_ matches without binding.`,
		Example: `  codegrip query 'fn $NAME($$$PARAMS) $$$BODY' --lang rust
  codegrip query 'if err != nil { return $$$ }' internal/ --lang go`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			engine, err := a.newEngine()
			if err != nil {
				return err
			}
			files, err := a.loadFiles(ctx, append(paths, args[1:]...), pf)
			if err != nil {
				return err
			}
			resp, err := engine.Query(ctx, files, args[0], lang, opts)
			if err != nil {
				return err
			}
			return a.writer(cmd).Response(resp)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&lang, "lang", "l", "", "Pattern language (name or extension); detected from files when empty")
	flags.StringSliceVarP(&paths, "path", "p", nil, "Files or directories to search (repeatable, default .)")
	flags.StringSliceVar(&pf.include, "include", nil, "Only search paths matching these globs")
	flags.StringSliceVar(&pf.exclude, "exclude", nil, "Skip paths matching these globs")
	flags.BoolVar(&pf.noIgnore, "no-ignore", false, "Do not apply .gitignore files")
	flags.BoolVar(&opts.Nested, "nested", false, "Also report matches inside other matches")
	flags.IntVarP(&opts.MaxResults, "limit", "n", 0, "Maximum number of results")
	flags.IntVar(&opts.TokenBudget, "budget", 0, "Token budget for all snippets")
	flags.IntVar(&opts.MaxBytes, "max-bytes", 0, "Byte budget for all snippets")
	flags.BoolVar(&opts.FilesOnly, "files-only", false, "Print matching paths without snippets")
	flags.IntVarP(&opts.Workers, "workers", "j", 0, "Parallel workers")

	return cmd
}
