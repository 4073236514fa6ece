package cmd

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/Aman-CERP/codegrip/internal/document"
	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/grammar"
	"github.com/Aman-CERP/codegrip/internal/scanner"
	"github.com/Aman-CERP/codegrip/internal/search"
	"github.com/Aman-CERP/codegrip/internal/tokens"
)

// pathFlags are the walker flags shared by search and query.
type pathFlags struct {
	include  []string
	exclude  []string
	noIgnore bool
}

// newEngine builds a search engine from the loaded configuration.
func (a *app) newEngine() (*search.Engine, error) {
	counter, err := tokens.ByName(a.cfg.Search.TokenCounter)
	if err != nil {
		return nil, cgerrors.ConfigError("unknown token counter "+a.cfg.Search.TokenCounter, err).
			WithSuggestion("Use 'estimate' or a tiktoken encoding such as cl100k_base")
	}
	return search.NewEngine(a.cfg.EngineConfig(),
		search.WithRegistry(grammar.DefaultRegistry()),
		search.WithCounter(counter),
		search.WithLogger(a.logger))
}

// loadFiles walks every root and returns the files sorted by path. Paths
// under a directory root are reported relative to the working directory.
func (a *app) loadFiles(ctx context.Context, roots []string, flags pathFlags) ([]document.File, error) {
	if len(roots) == 0 {
		roots = []string{"."}
	}
	s, err := scanner.New(grammar.DefaultRegistry(), a.logger)
	if err != nil {
		return nil, err
	}

	base := scanner.Options{
		Include:          append(append([]string(nil), a.cfg.Paths.Include...), flags.include...),
		Exclude:          append(append([]string(nil), a.cfg.Paths.Exclude...), flags.exclude...),
		MaxFileSize:      a.cfg.Paths.MaxFileSize,
		RespectGitignore: !flags.noIgnore,
		Workers:          a.cfg.Search.Workers,
	}

	seen := make(map[string]bool)
	var files []document.File
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, cgerrors.New(cgerrors.ErrCodeFileNotFound, "path not found: "+root, err)
		}
		opts := base
		opts.Root = root
		loaded, err := s.Load(ctx, opts)
		if err != nil {
			return nil, err
		}
		prefix := filepath.ToSlash(filepath.Clean(root))
		for _, f := range loaded {
			if info.IsDir() && prefix != "." {
				f.Path = path.Join(prefix, f.Path)
			}
			if seen[f.Path] {
				continue
			}
			seen[f.Path] = true
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// readFile loads one file for extraction.
func readFile(p string) (document.File, error) {
	if !fileExists(p) {
		return document.File{}, cgerrors.New(cgerrors.ErrCodeFileNotFound, "file not found: "+p, nil).
			WithDetail("path", p)
	}
	content, err := os.ReadFile(p)
	if err != nil {
		return document.File{}, cgerrors.New(cgerrors.ErrCodeFileNotFound, "failed to read "+p, err)
	}
	return document.File{Path: filepath.ToSlash(p), Content: content}, nil
}
