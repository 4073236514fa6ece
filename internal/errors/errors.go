package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
)

// CodegripError is the structured error type for codegrip.
// It provides rich context for error handling, logging, and user presentation.
type CodegripError struct {
	// Code is the unique error code (e.g., "ERR_403_INVALID_QUERY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Local marks failures confined to one input file. The batch continues.
	Local bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *CodegripError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CodegripError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with CodegripError.
func (e *CodegripError) Is(target error) bool {
	if t, ok := target.(*CodegripError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *CodegripError) WithDetail(key, value string) *CodegripError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *CodegripError) WithSuggestion(suggestion string) *CodegripError {
	e.Suggestion = suggestion
	return e
}

// New creates a new CodegripError with the given code and message.
// Category, severity, and locality are derived from the code.
func New(code string, message string, cause error) *CodegripError {
	return &CodegripError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
		Local:    isLocalCode(code),
	}
}

// Wrap creates a CodegripError from an existing error.
// The error's message becomes the CodegripError message.
func Wrap(code string, err error) *CodegripError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *CodegripError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a caller input error.
func ValidationError(message string, cause error) *CodegripError {
	return New(ErrCodeInvalidInput, message, cause)
}

// QuerySyntaxError reports a malformed boolean query at a byte position.
func QuerySyntaxError(message string, pos int) *CodegripError {
	return New(ErrCodeInvalidQuery, fmt.Sprintf("%s at position %d", message, pos), nil).
		WithDetail("position", strconv.Itoa(pos)).
		WithSuggestion("check quotes, parentheses and AND/OR/NOT operands")
}

// PatternSyntaxError reports a structural pattern that cannot be compiled.
func PatternSyntaxError(message string) *CodegripError {
	return New(ErrCodeInvalidPattern, message, nil).
		WithSuggestion("write the pattern in the target language's syntax, e.g. 'fn $NAME($$$PARAMS) $$$BODY'")
}

// UnsupportedLanguage reports a file extension or language without a grammar.
func UnsupportedLanguage(lang string) *CodegripError {
	return New(ErrCodeUnsupportedLanguage, "unsupported language: "+lang, nil).
		WithDetail("language", lang)
}

// ParseError reports a source file the grammar could not parse cleanly.
func ParseError(path string, cause error) *CodegripError {
	msg := "failed to parse " + path
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return New(ErrCodeParseFailed, msg, cause).WithDetail("path", path)
}

// IsLocal reports whether err only affects a single input file.
func IsLocal(err error) bool {
	var ce *CodegripError
	if stderrors.As(err, &ce) {
		return ce.Local
	}
	return false
}

// GetCode extracts the error code from a CodegripError.
// Returns empty string if not a CodegripError.
func GetCode(err error) string {
	var ce *CodegripError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
