// Package errors provides structured error handling for codegrip.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and source errors (file, parse)
//   - 4XX: Caller input errors (query, pattern, location)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and source errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates caller input errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal fails the whole call.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails the current operation.
	SeverityError Severity = "ERROR"
	// SeverityWarning skips one input and continues.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid = "ERR_102_CONFIG_INVALID"

	// IO and source errors (200-299)
	ErrCodeFileNotFound = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFileTooLarge = "ERR_204_FILE_TOO_LARGE"
	ErrCodeParseFailed  = "ERR_208_PARSE_FAILED"

	// Caller input errors (400-499)
	ErrCodeInvalidInput        = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidQuery        = "ERR_403_INVALID_QUERY"
	ErrCodeQueryEmpty          = "ERR_404_QUERY_EMPTY"
	ErrCodeQueryTooLong        = "ERR_405_QUERY_TOO_LONG"
	ErrCodeUnsupportedLanguage = "ERR_407_UNSUPPORTED_LANGUAGE"
	ErrCodeInvalidPattern      = "ERR_408_INVALID_PATTERN"
	ErrCodeSymbolNotFound      = "ERR_409_SYMBOL_NOT_FOUND"
	ErrCodeLineOutOfRange      = "ERR_410_LINE_OUT_OF_RANGE"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	numStr := code[4:7]

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeInvalidQuery, ErrCodeInvalidPattern, ErrCodeQueryEmpty, ErrCodeQueryTooLong:
		return SeverityFatal
	case ErrCodeParseFailed, ErrCodeUnsupportedLanguage, ErrCodeFileTooLarge:
		return SeverityWarning
	}
	return SeverityError
}

// isLocalCode reports whether an error only affects a single input file.
// Local failures are collected as diagnostics and never abort a batch.
func isLocalCode(code string) bool {
	switch code {
	case ErrCodeParseFailed, ErrCodeUnsupportedLanguage, ErrCodeFileTooLarge:
		return true
	default:
		return false
	}
}
