package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/codegrip/internal/document"
	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/gitignore"
	"github.com/Aman-CERP/codegrip/internal/grammar"
)

// gitignoreCacheSize bounds the per-directory matcher cache.
const gitignoreCacheSize = 1000

// Scanner discovers searchable files.
type Scanner struct {
	registry *grammar.LanguageRegistry
	logger   *slog.Logger

	// gitignoreCache holds one matcher per directory; nil entries mean
	// the directory has no .gitignore.
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.Mutex
}

// New creates a Scanner. A nil registry uses the default one.
func New(registry *grammar.LanguageRegistry, logger *slog.Logger) (*Scanner, error) {
	if registry == nil {
		registry = grammar.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	return &Scanner{registry: registry, logger: logger, gitignoreCache: cache}, nil
}

// Scan streams the files under opts.Root. The channel is closed when the
// walk ends or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, opts Options) (<-chan ScanResult, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, cgerrors.New(cgerrors.ErrCodeFileNotFound, "path not found: "+root, err)
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	results := make(chan ScanResult, 64)
	go func() {
		defer close(results)
		if !info.IsDir() {
			// A single named file bypasses the exclusion rules and keeps
			// the path it was given.
			fi := s.fileInfo(filepath.ToSlash(filepath.Clean(root)), absRoot, info.Size())
			select {
			case results <- ScanResult{File: fi}:
			case <-ctx.Done():
			}
			return
		}
		s.walk(ctx, absRoot, opts, results)
	}()
	return results, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot string, opts Options, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return nil // Skip entries we can't access
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.excludedDir(rel, absRoot, opts) {
				return filepath.SkipDir
			}
			return nil
		}
		symlink := d.Type()&fs.ModeSymlink != 0
		if symlink && !opts.FollowSymlinks {
			return nil
		}
		if s.excludedFile(rel, absRoot, opts) {
			return nil
		}

		var info fs.FileInfo
		if symlink {
			info, err = os.Stat(p)
		} else {
			info, err = d.Info()
		}
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
		if info.Size() > opts.MaxFileSize {
			s.logger.Debug("file_skipped",
				slog.String("path", rel),
				slog.Any("error", cgerrors.FormatForLog(fileTooLarge(rel, info.Size(), opts.MaxFileSize))))
			return nil
		}

		fi := s.fileInfo(rel, p, info.Size())
		if opts.CodeOnly && fi.Language == "" {
			return nil
		}
		if opts.SkipGenerated && fi.IsGenerated {
			return nil
		}

		select {
		case results <- ScanResult{File: fi}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

func fileTooLarge(rel string, size, limit int64) error {
	return cgerrors.New(cgerrors.ErrCodeFileTooLarge,
		fmt.Sprintf("%s is %d bytes, over the %d byte limit", rel, size, limit), nil).
		WithDetail("path", rel)
}

func (s *Scanner) fileInfo(rel, abs string, size int64) *FileInfo {
	fi := &FileInfo{Path: rel, AbsPath: abs, Size: size}
	if g, err := s.registry.ForPath(rel); err == nil {
		fi.Language = g.Name()
	}
	fi.IsGenerated = isGeneratedFile(abs)
	return fi
}

func (s *Scanner) excludedDir(rel, absRoot string, opts Options) bool {
	if matchAny(rel, defaultExcludeDirs) {
		return true
	}
	for _, pattern := range opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, rel+"/"); ok {
			return true
		}
	}
	return opts.RespectGitignore && s.isGitignored(rel, absRoot, true)
}

func (s *Scanner) excludedFile(rel, absRoot string, opts Options) bool {
	base := path.Base(rel)
	if matchAny(base, sensitiveFilePatterns) || matchAny(rel, defaultExcludeFiles) {
		return true
	}
	if gitignore.MatchesAnyPattern(rel, opts.Exclude) {
		return true
	}
	if len(opts.Include) > 0 && !gitignore.MatchesAnyPattern(rel, opts.Include) {
		return true
	}
	return opts.RespectGitignore && s.isGitignored(rel, absRoot, false)
}

func matchAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// isGitignored checks rel against the .gitignore of the root and of every
// directory between the root and rel.
func (s *Scanner) isGitignored(rel, absRoot string, isDir bool) bool {
	if m := s.gitignoreMatcher(absRoot, ""); m != nil && m.Match(rel, isDir) {
		return true
	}
	dir := path.Dir(rel)
	if dir == "." {
		return false
	}
	parts := strings.Split(dir, "/")
	for i := range parts {
		base := strings.Join(parts[:i+1], "/")
		if m := s.gitignoreMatcher(absRoot, base); m != nil && m.Match(rel, isDir) {
			return true
		}
	}
	return false
}

// gitignoreMatcher returns the cached matcher for the .gitignore in base.
func (s *Scanner) gitignoreMatcher(absRoot, base string) *gitignore.Matcher {
	dir := filepath.Join(absRoot, filepath.FromSlash(base))

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if m, ok := s.gitignoreCache.Get(dir); ok {
		return m
	}
	var m *gitignore.Matcher
	file := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(file); err == nil {
		m = gitignore.New()
		if err := m.AddFromFile(file, base); err != nil {
			s.logger.Debug("gitignore_unreadable", slog.String("path", file), slog.String("error", err.Error()))
			m = nil
		}
	}
	s.gitignoreCache.Add(dir, m)
	return m
}

// InvalidateGitignoreCache clears the gitignore matcher cache.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gitignoreCache.Purge()
}

// Load scans opts.Root and reads every file into memory, skipping binary
// files. Files are returned sorted by path.
func (s *Scanner) Load(ctx context.Context, opts Options) ([]document.File, error) {
	ch, err := s.Scan(ctx, opts)
	if err != nil {
		return nil, err
	}

	var (
		infos   []*FileInfo
		scanErr error
	)
	for r := range ch {
		if r.Error != nil {
			scanErr = r.Error
			continue
		}
		infos = append(infos, r.File)
	}
	if scanErr != nil {
		return nil, scanErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	slots := make([]*document.File, len(infos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, fi := range infos {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			content, err := os.ReadFile(fi.AbsPath)
			if err != nil {
				s.logger.Debug("file_skipped", slog.String("path", fi.Path), slog.Any("error", cgerrors.FormatForLog(err)))
				return nil
			}
			if isBinary(content) {
				return nil
			}
			slots[i] = &document.File{Path: fi.Path, Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := make([]document.File, 0, len(slots))
	for _, f := range slots {
		if f != nil {
			files = append(files, *f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	s.logger.Debug("scan_complete",
		slog.String("root", opts.Root),
		slog.Int("discovered", len(infos)),
		slog.Int("loaded", len(files)))
	return files, nil
}

// isBinary looks for a NUL byte in the first 512 bytes.
func isBinary(content []byte) bool {
	head := content
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.IndexByte(head, 0) >= 0
}

// isGeneratedFile checks the first 1KB for a generated-code marker.
func isGeneratedFile(p string) bool {
	f, err := os.Open(p)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, _ := f.Read(buf)
	for _, marker := range generatedMarkers {
		if bytes.Contains(buf[:n], []byte(marker)) {
			return true
		}
	}
	return false
}
