package errors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ParseContext locates a parse problem inside an input file.
type ParseContext struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   string `json:"column"`
	Value    string `json:"value"`
	Expected string `json:"expected,omitempty"`
}

// EnhancedParseError extends ReconcilerError with the location of a bad row.
// Recoverable errors only drop the offending row.
type EnhancedParseError struct {
	*ReconcilerError
	Location    *ParseContext `json:"location"`
	Recoverable bool          `json:"recoverable"`
	Examples    []string      `json:"examples,omitempty"`
}

// Error implements the error interface with the file location appended
func (e *EnhancedParseError) Error() string {
	parts := []string{e.ReconcilerError.Error()}

	if e.Location != nil {
		location := fmt.Sprintf("at %s", filepath.Base(e.Location.File))
		if e.Location.Line > 0 {
			location += fmt.Sprintf(":%d", e.Location.Line)
		}
		if e.Location.Column != "" {
			location += fmt.Sprintf(" column '%s'", e.Location.Column)
		}
		parts = append(parts, location)
	}

	return strings.Join(parts, " ")
}

// GetDetailedError returns a detailed multi-line error description
func (e *EnhancedParseError) GetDetailedError() string {
	lines := []string{fmt.Sprintf("ERROR: %s", e.Message)}

	if e.Location != nil {
		lines = append(lines, fmt.Sprintf("  → File: %s", e.Location.File))
		if e.Location.Line > 0 {
			lines = append(lines, fmt.Sprintf("  → Line: %d", e.Location.Line))
		}
		if e.Location.Column != "" {
			lines = append(lines, fmt.Sprintf("  → Column: %s", e.Location.Column))
		}
		if e.Location.Value != "" {
			lines = append(lines, fmt.Sprintf("  → Value: '%s'", e.Location.Value))
		}
		if e.Location.Expected != "" {
			lines = append(lines, fmt.Sprintf("  → Expected: %s", e.Location.Expected))
		}
	}

	if e.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("  → Suggestion: %s", e.Suggestion))
	}

	if len(e.Examples) > 0 {
		lines = append(lines, "  → Examples:")
		for _, example := range e.Examples {
			lines = append(lines, fmt.Sprintf("    • %s", example))
		}
	}

	return strings.Join(lines, "\n")
}

// NewEnhancedParseError creates a new enhanced parse error
func NewEnhancedParseError(code ErrorCode, location *ParseContext, message string, cause error) *EnhancedParseError {
	baseError := build(CategoryParse, code, message, cause)

	if location != nil {
		baseError.WithContext("file", location.File).
			WithContext("line", location.Line).
			WithContext("column", location.Column).
			WithContext("value", location.Value)
	}

	return &EnhancedParseError{
		ReconcilerError: baseError,
		Location:        location,
		Recoverable:     true,
	}
}

// WithExamples adds example values to help fix the error
func (e *EnhancedParseError) WithExamples(examples ...string) *EnhancedParseError {
	e.Examples = examples
	return e
}

// WithSuggestion adds a suggestion and returns the EnhancedParseError
func (e *EnhancedParseError) WithSuggestion(suggestion string) *EnhancedParseError {
	e.ReconcilerError.WithSuggestion(suggestion)
	return e
}

// InvalidAmountError creates an error for an amount that is not a decimal
func InvalidAmountError(file string, line int, column string, value string, cause error) *EnhancedParseError {
	location := &ParseContext{File: file, Line: line, Column: column, Value: value, Expected: "decimal number"}
	return NewEnhancedParseError(CodeInvalidAmount, location, "invalid amount format", cause).
		WithExamples("1234.56", "1.234,56", "-150,00").
		WithSuggestion("use '.' or ',' as the decimal separator without currency symbols")
}

// InvalidDateError creates an error for a date in none of the accepted layouts
func InvalidDateError(file string, line int, column string, value string, cause error) *EnhancedParseError {
	location := &ParseContext{File: file, Line: line, Column: column, Value: value, Expected: "calendar date"}
	return NewEnhancedParseError(CodeInvalidDate, location, "invalid date format", cause).
		WithExamples("2024-03-10", "10/03/2024", "10032024").
		WithSuggestion("use YYYY-MM-DD, DD/MM/YYYY or DDMMYYYY")
}

// MissingColumnError creates an error for missing required columns
func MissingColumnError(file string, expectedColumns []string, actualColumns []string) *EnhancedParseError {
	missing := findMissingColumns(expectedColumns, actualColumns)
	location := &ParseContext{
		File:     file,
		Line:     1,
		Expected: fmt.Sprintf("columns: %s", strings.Join(expectedColumns, ", ")),
	}

	err := NewEnhancedParseError(CodeMissingColumn, location,
		fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")), nil).
		WithSuggestion("add the missing columns to the header row")
	err.Recoverable = false
	return err
}

// EmptyValueError creates an error for empty required values
func EmptyValueError(file string, line int, column string) *EnhancedParseError {
	location := &ParseContext{File: file, Line: line, Column: column, Expected: "non-empty value"}
	return NewEnhancedParseError(CodeMissingField, location, "required field is empty", nil).
		WithSuggestion("provide a value for this required field")
}

// ParseErrorCollector collects row errors so one bad row never aborts an import
type ParseErrorCollector struct {
	errors    []*EnhancedParseError
	maxErrors int
}

// NewParseErrorCollector creates a new error collector. maxErrors <= 0 means unlimited.
func NewParseErrorCollector(maxErrors int) *ParseErrorCollector {
	return &ParseErrorCollector{
		errors:    make([]*EnhancedParseError, 0),
		maxErrors: maxErrors,
	}
}

// Add records an error and reports whether parsing should continue
func (c *ParseErrorCollector) Add(err *EnhancedParseError) bool {
	if err == nil {
		return true
	}

	c.errors = append(c.errors, err)

	if c.maxErrors > 0 && len(c.errors) >= c.maxErrors {
		return false
	}

	return err.Recoverable
}

// HasErrors returns true if any errors have been collected
func (c *ParseErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// GetErrors returns all collected errors
func (c *ParseErrorCollector) GetErrors() []*EnhancedParseError {
	return c.errors
}

// GetSummary returns an error summary for all collected errors
func (c *ParseErrorCollector) GetSummary() *ErrorSummary {
	result := make([]*ReconcilerError, len(c.errors))
	for i, err := range c.errors {
		result[i] = err.ReconcilerError
	}
	return NewErrorSummary(result)
}

func findMissingColumns(expected, actual []string) []string {
	actualSet := make(map[string]bool)
	for _, col := range actual {
		actualSet[strings.ToLower(strings.TrimSpace(col))] = true
	}

	var missing []string
	for _, col := range expected {
		if !actualSet[strings.ToLower(strings.TrimSpace(col))] {
			missing = append(missing, col)
		}
	}

	return missing
}

// FormatParseErrorsForUser formats parse errors for terminal output, in input order
func FormatParseErrorsForUser(errs []*EnhancedParseError, maxDetailed int) string {
	if len(errs) == 0 {
		return "No parse errors"
	}

	if len(errs) == 1 {
		return errs[0].GetDetailedError()
	}

	lines := []string{fmt.Sprintf("Found %d parse errors:", len(errs))}
	for i, err := range errs {
		if maxDetailed > 0 && i == maxDetailed {
			lines = append(lines, "", fmt.Sprintf("... and %d more", len(errs)-maxDetailed))
			break
		}
		lines = append(lines, "", err.GetDetailedError())
	}

	return strings.Join(lines, "\n")
}
