package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"bank-ledger-reconciler/pkg/errors"
	"bank-ledger-reconciler/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     os.Stderr,
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("command failed")

	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(reconcilerErr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleReconcilerError(err *errors.ReconcilerError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if keys := err.ContextKeys(); len(keys) > 0 {
		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose {
		if err.Cause != nil {
			fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
		}
		h.suggestRecoveryActions(err.Category)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	var pathErr *os.PathError
	if stderrors.As(err, &pathErr) && (h.isFileNotFoundError(err) || h.isPermissionError(err)) {
		fmt.Fprint(h.out, FormatFileError(pathErr.Path, pathErr.Err))
		return 2
	}

	if h.isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	// cobra flag and argument errors end up here
	fmt.Fprintf(h.out, "Error: %v\n", err)
	fmt.Fprintf(h.out, "Run 'reconciler --help' for usage.\n")

	return 1
}

func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• Check the delimiter (--delimiter) and encoding (--encoding) of the export
• Verify the column headers of the statement, ledger or registry file
• Amounts may use Brazilian (1.234,56) or dotted (1234.56) notation
• Dates may use DD/MM/YYYY or YYYY-MM-DD`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all required flags have values
• Verify date formats use YYYY-MM-DD or DD/MM/YYYY
• Check that the start date is not after the end date`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Register the primary and contra ledger accounts of every bank account
• Use 'reconciler <command> --help' to see all available options`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• Check that the registry covers the accounts on the statements
• Try the standard passes before custom tolerances
• Verify that the ledger export covers the statement period`

	case errors.CategoryProvisioning:
		return `Provisioning error help:
• Check that the analysis window is covered by the movements
• A proposal can be booked only once, run provision again for a new one
• Verify the journal export can be written`

	default:
		return `For more help:
• Use 'reconciler --help' for general help
• Use 'reconciler <command> --help' for command-specific help
• Run with --verbose for the underlying error`
	}
}

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || stderrors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) || stderrors.Is(err, os.ErrPermission) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if stderrors.Is(err, syscall.ENOSPC) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}

// FormatFileError formats file-related errors with helpful information
func FormatFileError(filePath string, err error) string {
	baseName := filepath.Base(filePath)
	dir := filepath.Dir(filePath)

	var message strings.Builder
	message.WriteString(fmt.Sprintf("Error with file '%s':\n", baseName))
	message.WriteString(fmt.Sprintf("  Path: %s\n", filePath))
	message.WriteString(fmt.Sprintf("  Error: %v\n", err))

	switch {
	case os.IsNotExist(err):
		message.WriteString("  Suggestion: Check if the file exists in the specified location\n")

		// bank exports are often renamed, offer files with the same prefix
		if entries, dirErr := os.ReadDir(dir); dirErr == nil {
			prefix := strings.ToLower(baseName[:min(len(baseName), 3)])
			var similar []string
			for _, entry := range entries {
				if !entry.IsDir() && strings.Contains(strings.ToLower(entry.Name()), prefix) {
					similar = append(similar, entry.Name())
				}
			}
			sort.Strings(similar)
			if len(similar) > 0 {
				message.WriteString("  Similar files found:\n")
				for _, name := range similar[:min(len(similar), 3)] {
					message.WriteString(fmt.Sprintf("    - %s\n", name))
				}
			}
		}
	case os.IsPermission(err):
		message.WriteString("  Suggestion: Check file permissions - you may need read access\n")
	}

	return message.String()
}

func (h *CLIErrorHandler) suggestRecoveryActions(category errors.ErrorCategory) {
	fmt.Fprintf(h.out, "\nRecovery suggestions:\n")

	switch category {
	case errors.CategoryFile:
		fmt.Fprintf(h.out, "• Verify file paths and permissions\n")
		fmt.Fprintf(h.out, "• Check available disk space for exports\n")

	case errors.CategoryParse:
		fmt.Fprintf(h.out, "• Export the file again from the bank or the accounting system\n")
		fmt.Fprintf(h.out, "• Raise input.max_errors to import the readable rows only\n")

	case errors.CategoryValidation:
		fmt.Fprintf(h.out, "• Correct the invalid flag values\n")
		fmt.Fprintf(h.out, "• Check date and amount formats\n")

	case errors.CategoryConfiguration:
		fmt.Fprintf(h.out, "• Review command-line arguments\n")
		fmt.Fprintf(h.out, "• Try with default settings first\n")

	case errors.CategoryReconciliation, errors.CategoryProvisioning:
		fmt.Fprintf(h.out, "• Review the account registry\n")
		fmt.Fprintf(h.out, "• Run ledger-check to find unbalanced batches\n")
	}
}
