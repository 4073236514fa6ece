// Package config loads codegrip's layered YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/logging"
	"github.com/Aman-CERP/codegrip/internal/rank"
	"github.com/Aman-CERP/codegrip/internal/search"
	"github.com/Aman-CERP/codegrip/internal/terms"
	"github.com/Aman-CERP/codegrip/internal/tokens"
)

// ProjectConfigName is the project configuration file name.
const ProjectConfigName = ".codegrip.yaml"

// Config is the complete codegrip configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Terms   TermsConfig   `yaml:"terms" json:"terms"`
	Extract ExtractConfig `yaml:"extract" json:"extract"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SearchConfig holds result limits and scoring constants.
type SearchConfig struct {
	MaxResults     int `yaml:"max_results" json:"max_results"`
	MaxBytes       int `yaml:"max_bytes" json:"max_bytes"`
	TokenBudget    int `yaml:"token_budget" json:"token_budget"`
	Workers        int `yaml:"workers" json:"workers"`
	MergeThreshold int `yaml:"merge_threshold" json:"merge_threshold"`

	AllowTests        bool `yaml:"allow_tests" json:"allow_tests"`
	PlainTextFallback bool `yaml:"plain_text_fallback" json:"plain_text_fallback"`
	ExcludeFilenames  bool `yaml:"exclude_filenames" json:"exclude_filenames"`

	// Scorer is bm25, tfidf or hybrid.
	Scorer string `yaml:"scorer" json:"scorer"`

	K1            float64 `yaml:"k1" json:"k1"`
	PhraseBonus   float64 `yaml:"phrase_bonus" json:"phrase_bonus"`
	FilenameBoost float64 `yaml:"filename_boost" json:"filename_boost"`

	// Timeout bounds one search, e.g. "30s". Empty means none.
	Timeout string `yaml:"timeout" json:"timeout"`

	// TokenCounter is "estimate" or a tiktoken encoding name.
	TokenCounter string `yaml:"token_counter" json:"token_counter"`
}

// TermsConfig configures term extraction.
type TermsConfig struct {
	Stemmer       string   `yaml:"stemmer" json:"stemmer"`
	MinTermLength int      `yaml:"min_term_length" json:"min_term_length"`
	StopWords     []string `yaml:"stop_words" json:"stop_words"`
}

// ExtractConfig configures block extraction.
type ExtractConfig struct {
	ContextLines int `yaml:"context_lines" json:"context_lines"`
}

// PathsConfig selects the files a search walks.
type PathsConfig struct {
	Include     []string `yaml:"include" json:"include"`
	Exclude     []string `yaml:"exclude" json:"exclude"`
	MaxFileSize int64    `yaml:"max_file_size" json:"max_file_size"`
}

// LoggingConfig configures structured logs.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/target/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// DefaultMaxFileSize skips files larger than 1 MiB.
const DefaultMaxFileSize = 1 << 20

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			MaxResults:     search.DefaultMaxResults,
			Workers:        runtime.NumCPU(),
			MergeThreshold: rank.DefaultMergeThreshold,
			K1:             rank.DefaultK1,
			PhraseBonus:    rank.DefaultPhraseBonus,
			FilenameBoost:  rank.DefaultFilenameBoost,
			Scorer:         string(rank.ScorerBM25),
			TokenCounter:   tokens.DefaultEncoding,
		},
		Terms: TermsConfig{
			Stemmer:       terms.StemmerPorter2,
			MinTermLength: terms.DefaultMinTermLength,
		},
		Extract: ExtractConfig{
			ContextLines: 10,
		},
		Paths: PathsConfig{
			Include:     []string{},
			Exclude:     append([]string(nil), defaultExcludePatterns...),
			MaxFileSize: DefaultMaxFileSize,
		},
		Logging: LoggingConfig{
			Level:     "warn",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/codegrip/config.yaml, or ~/.config/codegrip/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codegrip", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "codegrip", "config.yaml")
	}
	return filepath.Join(home, ".config", "codegrip", "config.yaml")
}

// Load loads configuration for the project in dir. Precedence, lowest first:
//  1. Hardcoded defaults
//  2. User config (~/.config/codegrip/config.yaml)
//  3. Project config (.codegrip.yaml in dir)
//  4. Environment variables (CODEGRIP_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	for _, name := range []string{ProjectConfigName, ".codegrip.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
			break
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML merges the non-zero values of a YAML file into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cgerrors.ConfigError("failed to read config file", err).WithDetail("path", path)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return cgerrors.ConfigError("failed to parse config file", err).
			WithDetail("path", path).
			WithSuggestion("Check the YAML syntax of " + filepath.Base(path))
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	s, o := &c.Search, &other.Search
	if o.MaxResults != 0 {
		s.MaxResults = o.MaxResults
	}
	if o.MaxBytes != 0 {
		s.MaxBytes = o.MaxBytes
	}
	if o.TokenBudget != 0 {
		s.TokenBudget = o.TokenBudget
	}
	if o.Workers != 0 {
		s.Workers = o.Workers
	}
	if o.MergeThreshold != 0 {
		s.MergeThreshold = o.MergeThreshold
	}
	if o.AllowTests {
		s.AllowTests = true
	}
	if o.PlainTextFallback {
		s.PlainTextFallback = true
	}
	if o.ExcludeFilenames {
		s.ExcludeFilenames = true
	}
	if o.Scorer != "" {
		s.Scorer = o.Scorer
	}
	if o.K1 != 0 {
		s.K1 = o.K1
	}
	if o.PhraseBonus != 0 {
		s.PhraseBonus = o.PhraseBonus
	}
	if o.FilenameBoost != 0 {
		s.FilenameBoost = o.FilenameBoost
	}
	if o.Timeout != "" {
		s.Timeout = o.Timeout
	}
	if o.TokenCounter != "" {
		s.TokenCounter = o.TokenCounter
	}

	if other.Terms.Stemmer != "" {
		c.Terms.Stemmer = other.Terms.Stemmer
	}
	if other.Terms.MinTermLength != 0 {
		c.Terms.MinTermLength = other.Terms.MinTermLength
	}
	if len(other.Terms.StopWords) > 0 {
		c.Terms.StopWords = other.Terms.StopWords
	}

	if other.Extract.ContextLines != 0 {
		c.Extract.ContextLines = other.Extract.ContextLines
	}

	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		// Merge with defaults rather than replace
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}
	if other.Paths.MaxFileSize != 0 {
		c.Paths.MaxFileSize = other.Paths.MaxFileSize
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies CODEGRIP_* environment variable overrides.
// Malformed values are ignored.
func (c *Config) applyEnvOverrides() {
	envInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	envInt("CODEGRIP_MAX_RESULTS", &c.Search.MaxResults)
	envInt("CODEGRIP_MAX_BYTES", &c.Search.MaxBytes)
	envInt("CODEGRIP_TOKEN_BUDGET", &c.Search.TokenBudget)
	envInt("CODEGRIP_WORKERS", &c.Search.Workers)
	envInt("CODEGRIP_CONTEXT_LINES", &c.Extract.ContextLines)

	if v := os.Getenv("CODEGRIP_STEMMER"); v != "" {
		c.Terms.Stemmer = strings.ToLower(v)
	}
	if v := os.Getenv("CODEGRIP_SCORER"); v != "" {
		c.Search.Scorer = strings.ToLower(v)
	}
	if v := os.Getenv("CODEGRIP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CODEGRIP_ALLOW_TESTS"); v != "" {
		c.Search.AllowTests = strings.ToLower(v) == "true" || v == "1"
	}
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return cgerrors.ConfigError(fmt.Sprintf(format, args...), nil).
			WithSuggestion("Fix the value in " + ProjectConfigName + " or the CODEGRIP_* environment")
	}

	s := c.Search
	if s.MaxResults < 0 {
		return invalid("search.max_results must be non-negative, got %d", s.MaxResults)
	}
	if s.MaxBytes < 0 {
		return invalid("search.max_bytes must be non-negative, got %d", s.MaxBytes)
	}
	if s.TokenBudget < 0 {
		return invalid("search.token_budget must be non-negative, got %d", s.TokenBudget)
	}
	if s.Workers < 0 {
		return invalid("search.workers must be non-negative, got %d", s.Workers)
	}
	if s.K1 < 0 || s.PhraseBonus < 0 || s.FilenameBoost < 0 {
		return invalid("search.k1, phrase_bonus and filename_boost must be non-negative")
	}
	switch rank.Scorer(s.Scorer) {
	case "", rank.ScorerBM25, rank.ScorerTFIDF, rank.ScorerHybrid:
	default:
		return invalid("search.scorer must be 'bm25', 'tfidf' or 'hybrid', got %q", s.Scorer)
	}
	if s.Timeout != "" {
		if _, err := time.ParseDuration(s.Timeout); err != nil {
			return invalid("search.timeout must be a duration such as 30s, got %q", s.Timeout)
		}
	}

	switch c.Terms.Stemmer {
	case terms.StemmerPorter2, terms.StemmerPorter, terms.StemmerNone:
	default:
		return invalid("terms.stemmer must be 'porter2', 'porter' or 'none', got %q", c.Terms.Stemmer)
	}
	if c.Terms.MinTermLength < 1 {
		return invalid("terms.min_term_length must be at least 1, got %d", c.Terms.MinTermLength)
	}

	if c.Extract.ContextLines < 0 {
		return invalid("extract.context_lines must be non-negative, got %d", c.Extract.ContextLines)
	}
	if c.Paths.MaxFileSize < 0 {
		return invalid("paths.max_file_size must be non-negative, got %d", c.Paths.MaxFileSize)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// EngineConfig converts the search, terms and extract sections.
func (c *Config) EngineConfig() search.EngineConfig {
	ec := search.DefaultConfig()

	ec.Rank.K1 = c.Search.K1
	ec.Rank.PhraseBonus = c.Search.PhraseBonus
	ec.Rank.FilenameBoost = c.Search.FilenameBoost
	ec.Rank.AllowTests = c.Search.AllowTests
	ec.Rank.PlainTextFallback = c.Search.PlainTextFallback
	ec.Rank.ExcludeFilenames = c.Search.ExcludeFilenames
	ec.Rank.Scorer = rank.Scorer(c.Search.Scorer)
	ec.Rank.MergeThreshold = c.Search.MergeThreshold
	if c.Search.Workers > 0 {
		ec.Rank.Workers = c.Search.Workers
	}

	ec.Terms.Stemmer = c.Terms.Stemmer
	ec.Terms.MinTermLength = c.Terms.MinTermLength
	ec.Terms.StopWords = c.Terms.StopWords

	ec.MaxResults = c.Search.MaxResults
	ec.MaxBytes = c.Search.MaxBytes
	ec.TokenBudget = c.Search.TokenBudget
	ec.ContextLines = c.Extract.ContextLines
	if d, err := time.ParseDuration(c.Search.Timeout); err == nil {
		ec.SearchTimeout = d
	}
	return ec
}

// LoggingConfig converts the logging section. debug forces debug level and
// a log file.
func (c *Config) LoggingConfig(debug bool) logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Logging.Level
	lc.FilePath = c.Logging.File
	lc.MaxSizeMB = c.Logging.MaxSizeMB
	lc.MaxFiles = c.Logging.MaxFiles
	if debug {
		lc.Level = "debug"
		if lc.FilePath == "" {
			lc.FilePath = logging.DefaultLogPath()
		}
	}
	return lc
}

// FindProjectRoot walks up from startDir to the first directory holding
// .git or a project config file; it returns startDir when there is none.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) ||
			fileExists(filepath.Join(currentDir, ProjectConfigName)) ||
			fileExists(filepath.Join(currentDir, ".codegrip.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
