// Package scanner discovers and loads the files a search runs over,
// respecting exclusion globs, .gitignore rules and sensitive file patterns.
package scanner

// FileInfo describes a discovered file.
type FileInfo struct {
	Path        string // slash separated, relative to a directory root or as given for a file root
	AbsPath     string
	Size        int64
	Language    string // empty when no grammar handles the file
	IsGenerated bool
}

// Options configures a scan.
type Options struct {
	// Root is a directory to walk or a single file. Default: ".".
	Root string

	// Include keeps only paths matching one of these doublestar globs (empty = all).
	Include []string

	// Exclude drops paths matching any of these doublestar globs.
	Exclude []string

	// RespectGitignore applies .gitignore files found while walking.
	RespectGitignore bool

	// MaxFileSize skips larger files (0 = DefaultMaxFileSize).
	MaxFileSize int64

	// FollowSymlinks includes symlinked files.
	FollowSymlinks bool

	// CodeOnly keeps only files a grammar can parse.
	CodeOnly bool

	// SkipGenerated drops files carrying a generated-code marker.
	SkipGenerated bool

	// Workers bounds parallel file reads in Load (0 = NumCPU).
	Workers int
}

// ScanResult is returned from the scanner channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// DefaultMaxFileSize is the default maximum file size (1MB).
const DefaultMaxFileSize = 1 << 20

// Default directories to exclude.
var defaultExcludeDirs = []string{
	"**/node_modules",
	"**/.git",
	"**/vendor",
	"**/target",
	"**/__pycache__",
	"**/.venv",
	"**/dist",
	"**/build",
	"**/.aws",
	"**/.ssh",
}

// Default files to exclude.
var defaultExcludeFiles = []string{
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
	"**/Cargo.lock",
}

// Sensitive file patterns that are never read, matched against base names.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	".netrc",
	".npmrc",
	".pypirc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}

// generatedMarkers appear near the top of generated files.
var generatedMarkers = []string{
	"// Code generated",
	"// DO NOT EDIT",
	"/* DO NOT EDIT",
	"# Generated by",
	"// Generated by",
	"/* Generated by",
	"@generated",
}
