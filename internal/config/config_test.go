package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codegrip/configs"
	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/logging"
	"github.com/Aman-CERP/codegrip/internal/rank"
)

// isolate points the user config at an empty directory and clears env overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, name := range []string{
		"CODEGRIP_MAX_RESULTS", "CODEGRIP_MAX_BYTES", "CODEGRIP_TOKEN_BUDGET", "CODEGRIP_WORKERS",
		"CODEGRIP_CONTEXT_LINES", "CODEGRIP_STEMMER", "CODEGRIP_LOG_LEVEL", "CODEGRIP_ALLOW_TESTS",
		"CODEGRIP_SCORER",
	} {
		t.Setenv(name, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	assert.Equal(t, 50, cfg.Search.MaxResults)
	assert.Equal(t, runtime.NumCPU(), cfg.Search.Workers)
	assert.Equal(t, 5, cfg.Search.MergeThreshold)
	assert.Equal(t, 1.2, cfg.Search.K1)
	assert.Equal(t, 0.25, cfg.Search.PhraseBonus)
	assert.Equal(t, 0.5, cfg.Search.FilenameBoost)
	assert.Equal(t, "bm25", cfg.Search.Scorer)
	assert.False(t, cfg.Search.ExcludeFilenames)
	assert.Equal(t, "cl100k_base", cfg.Search.TokenCounter)
	assert.Equal(t, "porter2", cfg.Terms.Stemmer)
	assert.Equal(t, 2, cfg.Terms.MinTermLength)
	assert.Equal(t, 10, cfg.Extract.ContextLines)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.Paths.MaxFileSize)
	assert.Contains(t, cfg.Paths.Exclude, "**/node_modules/**")
	assert.Contains(t, cfg.Paths.Exclude, "**/.git/**")
	assert.Equal(t, "warn", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_LayersUserProjectAndEnv(t *testing.T) {
	isolate(t)
	userDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", userDir)
	project := t.TempDir()

	// Given: a user config, a project config overriding part of it, and an env var
	writeFile(t, filepath.Join(userDir, "codegrip", "config.yaml"), `
search:
  max_results: 30
  token_budget: 4000
terms:
  stemmer: porter
`)
	writeFile(t, filepath.Join(project, ProjectConfigName), `
search:
  max_results: 15
  allow_tests: true
paths:
  exclude:
    - "**/testdata/**"
`)
	t.Setenv("CODEGRIP_TOKEN_BUDGET", "8000")

	// When: loading
	cfg, err := Load(project)
	require.NoError(t, err)

	// Then: later layers win, untouched values survive
	assert.Equal(t, 15, cfg.Search.MaxResults)
	assert.Equal(t, 8000, cfg.Search.TokenBudget)
	assert.True(t, cfg.Search.AllowTests)
	assert.Equal(t, "porter", cfg.Terms.Stemmer)
	assert.Contains(t, cfg.Paths.Exclude, "**/testdata/**")
	assert.Contains(t, cfg.Paths.Exclude, "**/.git/**")
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search.MaxResults, cfg.Search.MaxResults)
}

func TestLoad_MalformedYAML(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ProjectConfigName), "search: [unclosed")

	_, err := Load(project)

	require.Error(t, err)
	assert.Equal(t, cgerrors.ErrCodeConfigInvalid, cgerrors.GetCode(err))
}

func TestLoad_EnvIgnoresMalformedNumbers(t *testing.T) {
	isolate(t)
	t.Setenv("CODEGRIP_WORKERS", "many")
	t.Setenv("CODEGRIP_STEMMER", "NONE")
	t.Setenv("CODEGRIP_SCORER", "TFIDF")

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), cfg.Search.Workers)
	assert.Equal(t, "none", cfg.Terms.Stemmer)
	assert.Equal(t, "tfidf", cfg.Search.Scorer)
}

func TestValidate_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative max results", func(c *Config) { c.Search.MaxResults = -1 }},
		{"negative budget", func(c *Config) { c.Search.TokenBudget = -5 }},
		{"negative k1", func(c *Config) { c.Search.K1 = -1 }},
		{"bad timeout", func(c *Config) { c.Search.Timeout = "soon" }},
		{"unknown scorer", func(c *Config) { c.Search.Scorer = "cosine" }},
		{"unknown stemmer", func(c *Config) { c.Terms.Stemmer = "lancaster" }},
		{"zero min term length", func(c *Config) { c.Terms.MinTermLength = 0 }},
		{"negative context lines", func(c *Config) { c.Extract.ContextLines = -2 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Equal(t, cgerrors.ErrCodeConfigInvalid, cgerrors.GetCode(err))
		})
	}
}

func TestEngineConfig_Conversion(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.Workers = 3
	cfg.Search.TokenBudget = 2000
	cfg.Search.Timeout = "2s"
	cfg.Search.PhraseBonus = 0.5
	cfg.Search.Scorer = "hybrid"
	cfg.Search.ExcludeFilenames = true
	cfg.Terms.Stemmer = "none"
	cfg.Extract.ContextLines = 7

	ec := cfg.EngineConfig()

	assert.Equal(t, 3, ec.Rank.Workers)
	assert.Equal(t, 0.5, ec.Rank.PhraseBonus)
	assert.Equal(t, rank.ScorerHybrid, ec.Rank.Scorer)
	assert.True(t, ec.Rank.ExcludeFilenames)
	assert.Equal(t, 2000, ec.TokenBudget)
	assert.Equal(t, 2*time.Second, ec.SearchTimeout)
	assert.Equal(t, "none", ec.Terms.Stemmer)
	assert.Equal(t, 7, ec.ContextLines)
}

func TestLoggingConfig_Debug(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "warn", cfg.LoggingConfig(false).Level)
	assert.Empty(t, cfg.LoggingConfig(false).FilePath)

	debug := cfg.LoggingConfig(true)
	assert.Equal(t, "debug", debug.Level)
	assert.Equal(t, logging.DefaultLogPath(), debug.FilePath)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectConfigName), "version: 1\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Search.MaxBytes = 12345

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigName)))
	loaded, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 12345, loaded.Search.MaxBytes)
}

func TestLoad_TemplateMatchesDefaults(t *testing.T) {
	// Given: a project whose config is the shipped template
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigName), configs.ConfigTemplate)

	// When: loading it
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: it describes the built-in defaults
	assert.Equal(t, NewConfig(), cfg)
}
