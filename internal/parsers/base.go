// Package parsers imports bank statements, ledger exports, the account
// registry and installment plans from delimited text or XLSX files into the
// normalized models.
//
// Every importer reads a whole file into a table, resolves the header row
// against a Layout and then converts row by row. A bad row is skipped and
// reported in ParseStats; it never aborts the import. Only unreadable files
// and missing required columns are fatal.
//
// The package handles the variations found in Brazilian exports:
//   - semicolon or comma delimiters
//   - UTF-8 or Latin-1 text
//   - accented and differently cased headers ("Histórico", "HISTORICO")
//   - amounts in "1.234,56" or "1234.56" notation
//   - dates as YYYY-MM-DD, DD/MM/YYYY, DDMMYYYY or Excel serial numbers
package parsers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/pkg/errors"
	"bank-ledger-reconciler/pkg/logger"
)

// ParseStats holds statistics about one import
type ParseStats struct {
	File         string
	Layout       string
	TotalRows    int
	RecordsValid int
	// Truncated is set when the import stopped at Options.MaxErrors.
	Truncated bool
	collector *errors.ParseErrorCollector
}

func newParseStats(file, layout string, maxErrors int) *ParseStats {
	return &ParseStats{
		File:      file,
		Layout:    layout,
		collector: errors.NewParseErrorCollector(maxErrors),
	}
}

// Skipped returns the number of rows dropped because of errors
func (ps *ParseStats) Skipped() int {
	return len(ps.collector.GetErrors())
}

// HasErrors returns true if any row was skipped
func (ps *ParseStats) HasErrors() bool {
	return ps.collector.HasErrors()
}

// Errors returns the row errors in file order
func (ps *ParseStats) Errors() []*errors.EnhancedParseError {
	return ps.collector.GetErrors()
}

// Summary aggregates the row errors
func (ps *ParseStats) Summary() *errors.ErrorSummary {
	return ps.collector.GetSummary()
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("%s: %d rows, %d valid, %d skipped", filepath.Base(ps.File), ps.TotalRows, ps.RecordsValid, ps.Skipped())
}

// table is a file read into memory: the header row and the data rows with
// their line numbers
type table struct {
	headers []string
	rows    [][]string
	lines   []int
}

// record is one data row bound to the resolved columns of a layout
type record struct {
	file    string
	line    int
	cells   []string
	columns map[string]int
}

// get returns the trimmed cell of a column, or "" when the column is absent
func (r record) get(name string) string {
	i, ok := r.columns[name]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r record) has(name string) bool {
	return r.get(name) != ""
}

func (r record) required(name string) (string, *errors.EnhancedParseError) {
	v := r.get(name)
	if v == "" {
		return "", errors.EmptyValueError(r.file, r.line, name)
	}
	return v, nil
}

// amount parses a required decimal column
func (r record) amount(name string) (decimal.Decimal, *errors.EnhancedParseError) {
	v, perr := r.required(name)
	if perr != nil {
		return decimal.Zero, perr
	}
	d, err := models.ParseBRLDecimal(v)
	if err != nil {
		return decimal.Zero, errors.InvalidAmountError(r.file, r.line, name, v, err)
	}
	return d, nil
}

// optionalAmount parses a decimal column that may be empty
func (r record) optionalAmount(name string) (decimal.Decimal, *errors.EnhancedParseError) {
	if !r.has(name) {
		return decimal.Zero, nil
	}
	return r.amount(name)
}

// date parses a required date column
func (r record) date(name string) (time.Time, *errors.EnhancedParseError) {
	v, perr := r.required(name)
	if perr != nil {
		return time.Time{}, perr
	}
	d, err := parseDate(v)
	if err != nil {
		return time.Time{}, errors.InvalidDateError(r.file, r.line, name, v, err)
	}
	return d, nil
}

// optionalDate parses a date column that may be empty
func (r record) optionalDate(name string) (*time.Time, *errors.EnhancedParseError) {
	if !r.has(name) {
		return nil, nil
	}
	d, perr := r.date(name)
	if perr != nil {
		return nil, perr
	}
	return &d, nil
}

func (r record) invalid(name, value string, err error) *errors.EnhancedParseError {
	location := &errors.ParseContext{File: r.file, Line: r.line, Column: name, Value: value}
	return errors.NewEnhancedParseError(errors.CodeInvalidData, location, "invalid row", err)
}

// maxExcelSerial is 9999-12-31 in the 1900 date system
const maxExcelSerial = 2958466

// parseDate accepts the text layouts of models.ParseDateWithFormats and
// Excel serial day numbers
func parseDate(s string) (time.Time, error) {
	d, err := models.ParseDateWithFormats(s)
	if err == nil {
		return d, nil
	}
	if serial, ferr := strconv.ParseFloat(s, 64); ferr == nil && serial > 0 && serial < maxExcelSerial && !strings.ContainsAny(s, "/-") {
		t, xerr := excelize.ExcelDateToTime(serial, false)
		if xerr == nil {
			return models.DateOnly(t), nil
		}
	}
	return time.Time{}, err
}

var headerFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeHeader folds accents and case and joins words with underscores
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	folded, _, err := transform.String(headerFolder, h)
	if err != nil {
		folded = h
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	return strings.Join(strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), "_")
}

// BaseParser reads files into tables and drives the per-row conversion
type BaseParser struct {
	opts   Options
	logger logger.Logger
}

// NewBaseParser creates a parser with the given options
func NewBaseParser(opts Options) (*BaseParser, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "input", err.Error(), err)
	}
	opts.Encoding = NormalizeEncoding(opts.Encoding)

	log := logger.GetGlobalLogger().WithComponent("parsers")
	log.WithFields(logger.Fields{
		"delimiter": string(opts.Delimiter),
		"encoding":  opts.Encoding,
	}).Debug("created parser")

	return &BaseParser{opts: opts, logger: log}, nil
}

// openFile opens path, mapping failures to file errors
func (bp *BaseParser) openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", path).Error("failed to open input file")
		switch {
		case os.IsNotExist(err):
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		case os.IsPermission(err):
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		default:
			return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
		}
	}
	return f, nil
}

// parseFile opens path and imports it with each
func (bp *BaseParser) parseFile(ctx context.Context, path string, layout Layout, each func(record) *errors.EnhancedParseError) (*ParseStats, error) {
	f, err := bp.openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return bp.parse(ctx, path, f, layout, each)
}

// parse reads r, resolves the layout and calls each for every data row.
// Workbooks are recognised by the extension of name.
func (bp *BaseParser) parse(ctx context.Context, name string, r io.Reader, layout Layout, each func(record) *errors.EnhancedParseError) (*ParseStats, error) {
	var (
		t   *table
		err error
	)
	if isWorkbook(name) {
		t, err = bp.readWorkbook(name, r)
	} else {
		t, err = bp.readDelimited(ctx, name, r)
	}
	if err != nil {
		return nil, err
	}

	columns, missing := layout.resolve(t.headers)
	if len(missing) > 0 {
		bp.logger.WithFields(logger.Fields{
			"file":    name,
			"missing": missing,
			"headers": t.headers,
		}).Error("required columns are missing")
		return nil, errors.MissingColumnError(name, layout.requiredNames(), t.headers)
	}

	stats := newParseStats(name, layout.Name, bp.opts.MaxErrors)
	for i, cells := range t.rows {
		if err := ctx.Err(); err != nil {
			return stats, errors.InternalError(errors.CodeUnexpectedError, "parsing "+layout.Name, err)
		}

		stats.TotalRows++
		rec := record{file: name, line: t.lines[i], cells: cells, columns: columns}
		if perr := each(rec); perr != nil {
			bp.logger.WithFields(logger.Fields{"file": name, "line": rec.line}).Debugf("skipping row: %v", perr)
			if !stats.collector.Add(perr) {
				stats.Truncated = true
				break
			}
			continue
		}
		stats.RecordsValid++
	}

	bp.logger.WithFields(logger.Fields{
		"file":    name,
		"layout":  layout.Name,
		"rows":    stats.TotalRows,
		"valid":   stats.RecordsValid,
		"skipped": stats.Skipped(),
	}).Debug("import finished")

	return stats, nil
}

func isWorkbook(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// readDelimited reads a delimited text file. The header is the first non-empty row.
func (bp *BaseParser) readDelimited(ctx context.Context, name string, r io.Reader) (*table, error) {
	if bp.opts.Encoding == EncodingLatin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}

	reader := csv.NewReader(r)
	reader.Comma = bp.opts.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	t := &table{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.InternalError(errors.CodeUnexpectedError, "reading "+name, err)
		}

		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line, _ := reader.FieldPos(0)
			return nil, errors.ParseError(errors.CodeInvalidFormat, name, line, "", "", err)
		}
		if isEmptyRow(cells) {
			continue
		}

		line, _ := reader.FieldPos(0)
		if t.headers == nil {
			t.headers = cells
			continue
		}
		t.rows = append(t.rows, cells)
		t.lines = append(t.lines, line)
	}

	if t.headers == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "file_content", "empty", nil).
			WithSuggestion("ensure the file contains a header row and data rows")
	}
	return t, nil
}

// readWorkbook reads one worksheet with raw cell values, so amounts and dates
// arrive unformatted
func (bp *BaseParser) readWorkbook(name string, r io.Reader) (*table, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, err)
	}
	defer f.Close()

	sheet := bp.opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.FileError(errors.CodeFileCorrupted, name, fmt.Errorf("workbook has no sheets"))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, err)
	}

	t := &table{}
	for i, cells := range rows {
		if isEmptyRow(cells) {
			continue
		}
		if t.headers == nil {
			t.headers = cells
			continue
		}
		t.rows = append(t.rows, cells)
		t.lines = append(t.lines, i+1)
	}

	if t.headers == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "file_content", "empty", nil).
			WithSuggestion("ensure the sheet contains a header row and data rows")
	}
	return t, nil
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
