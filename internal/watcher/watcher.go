package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/codegrip/internal/gitignore"
)

// Options configures a watch.
type Options struct {
	// DebounceWindow is the quiet period before a batch is emitted.
	// Default: 200ms
	DebounceWindow time.Duration

	// Exclude lists doublestar globs whose changes are ignored.
	Exclude []string

	// RespectGitignore ignores changes to paths matched by .gitignore files.
	RespectGitignore bool

	Logger *slog.Logger
}

// DefaultDebounceWindow coalesces editor save bursts.
const DefaultDebounceWindow = 200 * time.Millisecond

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = DefaultDebounceWindow
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Watch calls onChange with the sorted, slash-separated paths (relative to
// root) that changed in each debounce window. It blocks until ctx is done
// and returns nil then.
func Watch(ctx context.Context, root string, opts Options, onChange func(paths []string)) error {
	opts = opts.WithDefaults()
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	if info, err := os.Stat(absRoot); err != nil {
		return fmt.Errorf("watch root: %w", err)
	} else if !info.IsDir() {
		absRoot = filepath.Dir(absRoot)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	w := &watch{root: absRoot, opts: opts, fsw: fsw}
	w.loadGitignore()
	if err := w.addRecursive(absRoot); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	b := newBatcher(opts.DebounceWindow, onChange)
	defer b.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if rel, ok := w.handle(event); ok {
				b.add(rel)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

type watch struct {
	root string
	opts Options
	fsw  *fsnotify.Watcher

	mu      sync.RWMutex
	ignores *gitignore.Matcher
}

// handle filters one event and returns its relative path when it counts.
func (w *watch) handle(event fsnotify.Event) (string, bool) {
	if event.Op == fsnotify.Chmod {
		return "", false
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}
	if w.ignored(rel, isDir) {
		return "", false
	}

	if isDir && event.Op&fsnotify.Create != 0 {
		if err := w.addRecursive(event.Name); err != nil {
			w.opts.Logger.Debug("watch_add_failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
	}
	if filepath.Base(rel) == ".gitignore" {
		w.loadGitignore()
	}
	return rel, true
}

func (w *watch) ignored(rel string, isDir bool) bool {
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return true
	}
	if gitignore.MatchesAnyPattern(rel, w.opts.Exclude) {
		return true
	}
	if !w.opts.RespectGitignore {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ignores.Match(rel, isDir)
}

// addRecursive adds dir and every non-ignored directory below it.
func (w *watch) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.root, p)
		if rel != "." && w.ignored(filepath.ToSlash(rel), true) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

// loadGitignore reloads the root and nested .gitignore files.
func (w *watch) loadGitignore() {
	m := gitignore.New()
	_ = filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.IsDir() || d.Name() != ".gitignore" {
			return nil
		}
		base, _ := filepath.Rel(w.root, filepath.Dir(p))
		if base == "." {
			base = ""
		}
		if err := m.AddFromFile(p, filepath.ToSlash(base)); err != nil {
			w.opts.Logger.Warn("gitignore_unreadable", slog.String("path", p), slog.String("error", err.Error()))
		}
		return nil
	})

	w.mu.Lock()
	w.ignores = m
	w.mu.Unlock()
}

// batcher collects paths and flushes them once no event arrived for window.
type batcher struct {
	window  time.Duration
	flushFn func([]string)

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	stopped bool
}

func newBatcher(window time.Duration, fn func([]string)) *batcher {
	return &batcher{window: window, flushFn: fn, pending: make(map[string]struct{})}
}

func (b *batcher) add(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.pending[path] = struct{}{}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.window, b.flush)
}

func (b *batcher) flush() {
	b.mu.Lock()
	if b.stopped || len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(b.pending))
	for p := range b.pending {
		paths = append(paths, p)
	}
	b.pending = make(map[string]struct{})
	b.mu.Unlock()

	sort.Strings(paths)
	b.flushFn(paths)
}

func (b *batcher) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
}
