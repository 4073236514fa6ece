package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codegrip/internal/rank"
	"github.com/Aman-CERP/codegrip/internal/search"
)

type searchFlags struct {
	pathFlags
	paths  []string
	watch  bool
	scorer string
	opts   search.SearchOptions
}

// joinQuery requires every argument to match. Arguments that already carry
// boolean syntax are joined as written.
func joinQuery(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	for _, arg := range args {
		switch arg {
		case "AND", "OR", "NOT":
			return strings.Join(args, " ")
		}
		if strings.ContainsAny(arg, "() \t\"") {
			return strings.Join(args, " ")
		}
	}
	return strings.Join(args, " AND ")
}

func newSearchCmd(a *app) *cobra.Command {
	var f searchFlags

	cmd := &cobra.Command{
		Use:   "search <query words...>",
		Short: "Rank code blocks by keyword relevance",
		Long: `Search ranks files by saturated tf-idf over identifier-aware terms and
returns the enclosing function, method or class of each match.

Query syntax: words match stemmed, split identifiers and "quoted phrases"
match adjacent terms. +word requires a word and -word excludes files
containing it. AND, OR, NOT and parentheses build boolean groups.
Several query arguments must all match unless they use boolean syntax.
Add --pattern to keep only blocks that match a structural pattern.`,
		Example: `  codegrip search "parse config"
  codegrip search --lang go --budget 2000 -- lookup -order
  codegrip search total --pattern 'fn $NAME($$$ARGS) -> i32 $$$BODY' --lang rust
  codegrip search handler --files-only --json
  codegrip search cache invalidate --scorer tfidf --exclude-filenames`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := joinQuery(args)
			f.opts.Scorer = rank.Scorer(f.scorer)

			engine, err := a.newEngine()
			if err != nil {
				return err
			}
			run := func(ctx context.Context) error {
				files, err := a.loadFiles(ctx, f.paths, f.pathFlags)
				if err != nil {
					return err
				}
				resp, err := engine.Search(ctx, files, query, f.opts)
				if err != nil {
					return err
				}
				return a.writer(cmd).Response(resp)
			}

			if !f.watch {
				return run(ctx)
			}
			return a.watch(ctx, cmd, f.paths, f.pathFlags, run)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&f.paths, "path", "p", nil, "Files or directories to search (repeatable, default .)")
	flags.StringSliceVar(&f.include, "include", nil, "Only search paths matching these globs")
	flags.StringSliceVar(&f.exclude, "exclude", nil, "Skip paths matching these globs")
	flags.BoolVar(&f.noIgnore, "no-ignore", false, "Do not apply .gitignore files")
	flags.IntVarP(&f.opts.MaxResults, "limit", "n", 0, "Maximum number of results")
	flags.IntVar(&f.opts.TokenBudget, "budget", 0, "Token budget for all snippets")
	flags.IntVar(&f.opts.MaxBytes, "max-bytes", 0, "Byte budget for all snippets")
	flags.StringVarP(&f.opts.Language, "lang", "l", "", "Only search one language (name or extension)")
	flags.StringVar(&f.opts.Pattern, "pattern", "", "Keep only blocks matching this structural pattern")
	flags.BoolVar(&f.opts.Exact, "exact", false, "Disable stemming and identifier splitting")
	flags.BoolVar(&f.opts.CaseSensitive, "case-sensitive", false, "Match query case exactly")
	flags.BoolVar(&f.opts.AllowTests, "tests", false, "Do not down-rank test files")
	flags.BoolVar(&f.opts.ExcludeFilenames, "exclude-filenames", false, "Match query words against file content only")
	flags.StringVar(&f.scorer, "scorer", "", "Term frequency weighting: bm25, tfidf or hybrid (default from config)")
	flags.BoolVar(&f.opts.FilesOnly, "files-only", false, "Print ranked paths without snippets")
	flags.IntVar(&f.opts.MergeThreshold, "merge", 0, "Merge blocks at most this many lines apart (negative disables)")
	flags.IntVarP(&f.opts.Workers, "workers", "j", 0, "Parallel workers")
	flags.BoolVarP(&f.watch, "watch", "w", false, "Re-run the search whenever a file changes")

	return cmd
}
