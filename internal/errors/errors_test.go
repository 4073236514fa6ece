package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodegripError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with CodegripError
	ce := New(ErrCodeFileNotFound, "file not found: test.go", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, ce)
	assert.Equal(t, originalErr, errors.Unwrap(ce))
	assert.True(t, errors.Is(ce, originalErr))
}

func TestCodegripError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigInvalid,
			message:  "unknown stemmer",
			expected: "[ERR_102_CONFIG_INVALID] unknown stemmer",
		},
		{
			name:     "file error",
			code:     ErrCodeFileNotFound,
			message:  "file.go not found",
			expected: "[ERR_201_FILE_NOT_FOUND] file.go not found",
		},
		{
			name:     "query error",
			code:     ErrCodeInvalidQuery,
			message:  "unbalanced quote",
			expected: "[ERR_403_INVALID_QUERY] unbalanced quote",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestCodegripError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeParseFailed, "a.go", nil)
	err2 := New(ErrCodeParseFailed, "b.go", nil)

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, New(ErrCodeFileNotFound, "x", nil)))
}

func TestCodegripError_WithDetail_AddsContext(t *testing.T) {
	err := New(ErrCodeFileNotFound, "file not found", nil).
		WithDetail("path", "/foo/bar.go").
		WithDetail("size", "1024")

	assert.Equal(t, "/foo/bar.go", err.Details["path"])
	assert.Equal(t, "1024", err.Details["size"])
}

func TestCodegripError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileNotFound, CategoryIO},
		{ErrCodeParseFailed, CategoryIO},
		{ErrCodeInvalidQuery, CategoryValidation},
		{ErrCodeUnsupportedLanguage, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{"short", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestCodegripError_SeverityAndLocality(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
		wantLocal    bool
	}{
		{ErrCodeInvalidQuery, SeverityFatal, false},
		{ErrCodeInvalidPattern, SeverityFatal, false},
		{ErrCodeParseFailed, SeverityWarning, true},
		{ErrCodeUnsupportedLanguage, SeverityWarning, true},
		{ErrCodeFileTooLarge, SeverityWarning, true},
		{ErrCodeInternal, SeverityError, false},
		{ErrCodeSymbolNotFound, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantLocal, err.Local)
		})
	}
}

func TestWrap_CreatesCodegripErrorFromError(t *testing.T) {
	originalErr := errors.New("something went wrong")

	ce := Wrap(ErrCodeInternal, originalErr)

	require.NotNil(t, ce)
	assert.Equal(t, ErrCodeInternal, ce.Code)
	assert.Equal(t, "something went wrong", ce.Message)
	assert.Equal(t, originalErr, ce.Cause)
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestQuerySyntaxError_RecordsPosition(t *testing.T) {
	err := QuerySyntaxError("unterminated phrase", 7)

	assert.Equal(t, ErrCodeInvalidQuery, err.Code)
	assert.Equal(t, "7", err.Details["position"])
	assert.Contains(t, err.Message, "position 7")
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.False(t, IsLocal(err))
}

func TestParseError_IsLocal(t *testing.T) {
	err := ParseError("src/main.rs", errors.New("ERROR node at 3:1"))

	assert.True(t, IsLocal(err))
	assert.Equal(t, SeverityWarning, err.Severity)
	assert.Equal(t, "src/main.rs", err.Details["path"])
	assert.Contains(t, err.Error(), "ERROR node")
}

func TestHelpers_SeeThroughFmtWrapping(t *testing.T) {
	// Given: a structured error wrapped with fmt.Errorf
	inner := UnsupportedLanguage(".zig")
	wrapped := fmt.Errorf("walk: %w", inner)

	// Then: the helpers still find it
	assert.Equal(t, ErrCodeUnsupportedLanguage, GetCode(wrapped))
	assert.True(t, IsLocal(wrapped))
}

func TestHelpers_StandardError(t *testing.T) {
	err := errors.New("plain")

	assert.Empty(t, GetCode(err))
	assert.False(t, IsLocal(err))
	assert.False(t, IsLocal(nil))
}
