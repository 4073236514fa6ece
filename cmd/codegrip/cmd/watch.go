package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/codegrip/internal/watcher"
)

// watch runs fn once, then again after every batch of changes under roots
// until ctx is cancelled. Errors from a run are printed, not returned.
func (a *app) watch(ctx context.Context, cmd *cobra.Command, roots []string, flags pathFlags, fn func(context.Context) error) error {
	if len(roots) == 0 {
		roots = []string{"."}
	}
	out := a.writer(cmd)

	var mu sync.Mutex
	rerun := func(changed []string) {
		mu.Lock()
		defer mu.Unlock()
		if changed != nil && !out.JSON() {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n--- changed: %s\n", strings.Join(changed, ", "))
		}
		if err := fn(ctx); err != nil {
			out.Error(err, a.debug)
		}
	}
	rerun(nil)

	opts := watcher.Options{
		Exclude:          append(append([]string(nil), a.cfg.Paths.Exclude...), flags.exclude...),
		RespectGitignore: !flags.noIgnore,
		Logger:           a.logger,
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, root := range roots {
		g.Go(func() error {
			dir := root
			if info, err := os.Stat(root); err == nil && !info.IsDir() {
				dir = filepath.Dir(root)
			}
			a.logger.Debug("watch_started", slog.String("root", dir))
			return watcher.Watch(gctx, dir, opts, rerun)
		})
	}
	return g.Wait()
}
