package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/internal/parsers"
	"bank-ledger-reconciler/internal/reporter"
	"bank-ledger-reconciler/pkg/errors"
	"bank-ledger-reconciler/pkg/logger"
)

// maps nested keys such as input.delimiter to RECONCILER_INPUT_DELIMITER
var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// Flags shared by the commands. Only one command runs per process.
var (
	registryFile   string
	statementFiles []string
	ledgerFile     string
	defaultAccount string
	accountKeys    []string
	startDate      string
	endDate        string
	outputFormat   string
	outputFile     string
)

func addRegistryFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&registryFile, "registry", "r", "", "account registry CSV or XLSX (required)")
}

func addStatementFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&statementFiles, "statements", "s", nil, "comma-separated bank statement exports (required)")
	cmd.Flags().StringVar(&defaultAccount, "default-account", "", "account key for statement rows without agency and account columns")
}

func addLedgerFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().StringVarP(&ledgerFile, "ledger", "l", "", usage)
}

func addAccountsFlag(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&accountKeys, "accounts", nil, "restrict the run to these account keys (default: every registered account)")
}

func addPeriodFlags(cmd *cobra.Command, required bool) {
	suffix := ""
	if required {
		suffix = " (required)"
	}
	cmd.Flags().StringVar(&startDate, "start", "", "period start date (YYYY-MM-DD)"+suffix)
	cmd.Flags().StringVar(&endDate, "end", "", "period end date (YYYY-MM-DD)"+suffix)
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	cmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ValidationError(errors.CodeMissingField, description, nil, nil).
			WithSuggestion(fmt.Sprintf("Provide the %s", description))
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err).WithContext("file", description)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).WithContext("file", description)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeFileCorrupted, filePath, fmt.Errorf("%s is a directory, expected a file", description))
	}

	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).WithContext("file", description)
	}
	file.Close()

	return nil
}

func validateStatementFiles() error {
	if len(statementFiles) == 0 {
		return errors.ValidationError(errors.CodeMissingField, "statements", nil, nil).
			WithSuggestion("Provide at least one bank statement with --statements")
	}
	for i, path := range statementFiles {
		if err := validateFileExists(path, fmt.Sprintf("bank statement %d", i+1)); err != nil {
			return err
		}
	}
	return nil
}

func validateOutputFile(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, dir, err).
			WithSuggestion("Create the output directory first")
	}
	return nil
}

// parseDate reads an optional date flag. Empty returns nil.
func parseDate(flag, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := models.ParseDateWithFormats(value)
	if err != nil {
		return nil, errors.ValidationError(errors.CodeInvalidDate, flag, value, err).
			WithSuggestion("Use YYYY-MM-DD or DD/MM/YYYY")
	}
	t = models.DateOnly(t)
	return &t, nil
}

// parseWindow reads the --start and --end flags, both required
func parseWindow() (time.Time, time.Time, error) {
	start, err := parseDate("start", startDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate("end", endDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start == nil || end == nil {
		return time.Time{}, time.Time{}, errors.ValidationError(errors.CodeMissingField, "start/end", nil, nil).
			WithSuggestion("Provide the analysis window with --start and --end")
	}
	return *start, *end, nil
}

// writeReport renders report in the selected format to --output-file or stdout
func writeReport(cmd *cobra.Command, report interface{}) error {
	reportConfig, err := settings.ReportConfig(outputFormat)
	if err != nil {
		return err
	}
	generator, err := reporter.NewSafeReportGenerator(reportConfig, logger.GetGlobalLogger())
	if err != nil {
		return err
	}

	if outputFile == "" {
		return generator.GenerateReportSafely(report, cmd.OutOrStdout())
	}

	output, err := os.Create(outputFile)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, outputFile, err)
	}
	defer output.Close()
	return generator.GenerateReportSafely(report, output)
}

// writeCSVFile writes an export in the input dialect, so it can be read back
func writeCSVFile(path string, write func(*parsers.Writer, io.Writer) error) error {
	writer, err := parsers.NewWriter(parsers.Options{Delimiter: settings.Delimiter, Encoding: settings.Encoding})
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "input.delimiter", string(settings.Delimiter), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	if err := write(writer, f); err != nil {
		f.Close()
		return errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	if err := f.Close(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, path, err)
	}

	logger.GetGlobalLogger().WithComponent("cli").WithField("file", path).Info("export written")
	return nil
}

// reportSkippedRows prints the rows an import could not read to stderr
func reportSkippedRows(cmd *cobra.Command, stats []*parsers.ParseStats) {
	for _, st := range stats {
		if st == nil || !st.HasErrors() {
			continue
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d of %d rows skipped\n", st.File, st.Skipped(), st.TotalRows)
		if verbose {
			fmt.Fprintln(cmd.ErrOrStderr(), errors.FormatParseErrorsForUser(st.Errors(), 5))
		}
	}
}
