package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher holds compiled gitignore rules and is safe for concurrent use.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

// rule is one gitignore line translated to doublestar globs.
type rule struct {
	pattern  string // original text, for debugging
	self     string // glob matching the path itself
	below    string // glob matching anything under a matched directory
	base     string // directory of the .gitignore, slash separated
	negation bool
	dirOnly  bool
}

// New creates an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// AddPattern adds a rule relative to the matcher root.
func (m *Matcher) AddPattern(pattern string) {
	m.AddPatternWithBase(pattern, "")
}

// AddPatternWithBase adds a rule that applies under base only.
// Blank lines, comments and invalid globs are ignored.
func (m *Matcher) AddPatternWithBase(pattern, base string) {
	r, ok := compile(pattern, filepath.ToSlash(base))
	if !ok {
		return
	}
	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

func compile(pattern, base string) (rule, bool) {
	pattern = strings.TrimRight(pattern, " \t\r")
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return rule{}, false
	}

	r := rule{pattern: pattern, base: strings.Trim(base, "/")}
	switch {
	case strings.HasPrefix(pattern, `\#`), strings.HasPrefix(pattern, `\!`):
		pattern = pattern[1:]
	case strings.HasPrefix(pattern, "!"):
		r.negation = true
		pattern = pattern[1:]
	}

	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimRight(pattern, "/")
	}
	if pattern == "" {
		return rule{}, false
	}

	// A slash anywhere but at the end anchors the rule to its base.
	anchored := strings.Contains(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")
	if !anchored && !strings.HasPrefix(pattern, "**") {
		pattern = "**/" + pattern
	}

	r.self = pattern
	r.below = pattern + "/**"
	if !doublestar.ValidatePattern(r.self) {
		return rule{}, false
	}
	return r, true
}

// AddFromFile adds every rule of a .gitignore file, scoped to base.
func (m *Matcher) AddFromFile(file, base string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open gitignore: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.AddPatternWithBase(scanner.Text(), base)
	}
	return scanner.Err()
}

// Len returns the number of rules.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// Match reports whether p (relative to the matcher root) is ignored.
func (m *Matcher) Match(p string, isDir bool) bool {
	p = strings.Trim(filepath.ToSlash(p), "/")

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, r := range m.rules {
		if r.matches(p, isDir) {
			ignored = !r.negation
		}
	}
	return ignored
}

func (r rule) matches(p string, isDir bool) bool {
	if r.base != "" {
		if !strings.HasPrefix(p, r.base+"/") {
			return false
		}
		p = strings.TrimPrefix(p, r.base+"/")
	}

	if ok, _ := doublestar.Match(r.self, p); ok {
		return isDir || !r.dirOnly
	}
	if ok, _ := doublestar.Match(r.below, p); ok {
		return true
	}
	return false
}

// MatchesAnyPattern reports whether p matches any of the doublestar patterns,
// either as a whole or through its base name.
func MatchesAnyPattern(p string, patterns []string) bool {
	p = filepath.ToSlash(p)
	name := path.Base(p)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := doublestar.Match(pattern, name); ok {
				return true
			}
		}
	}
	return false
}
