// Package config turns viper settings into the configuration of the
// reconciler, the report generator and the logger.
//
// Recognised keys, with defaults:
//
//	input.delimiter: ";"            # ";", ",", "tab", "|"
//	input.encoding: utf-8           # utf-8 or latin1
//	input.max_errors: 0             # stop an import after that many bad rows, 0 is unlimited
//	input.sheet: ""                 # XLSX worksheet, empty is the first one
//	input.max_concurrent_files: 4
//	matching.strict: false          # only the first pass
//	passes:                         # replaces the standard passes when present
//	  - name: exact
//	    amount_tolerance: 0
//	    date_tolerance_days: 0
//	installments.value_tolerance: 0.01
//	installments.date_tolerance_days: 5
//	ledger.tolerance: 0.01
//	report.include_matched: false
//	report.max_list_items: 10
//	report.sort_by_amount: false
//	report.csv_delimiter: ";"
//	log.level: info
//	log.format: text
package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"bank-ledger-reconciler/internal/installments"
	"bank-ledger-reconciler/internal/matcher"
	"bank-ledger-reconciler/internal/parsers"
	"bank-ledger-reconciler/internal/reconciler"
	"bank-ledger-reconciler/internal/reporter"
	"bank-ledger-reconciler/pkg/errors"
	"bank-ledger-reconciler/pkg/logger"
)

// SetDefaults registers the default of every setting on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input.delimiter", ";")
	v.SetDefault("input.encoding", parsers.EncodingUTF8)
	v.SetDefault("input.max_errors", 0)
	v.SetDefault("input.sheet", "")
	v.SetDefault("input.max_concurrent_files", 4)
	v.SetDefault("matching.strict", false)
	v.SetDefault("installments.value_tolerance", "0.01")
	v.SetDefault("installments.date_tolerance_days", 5)
	v.SetDefault("ledger.tolerance", "0.01")
	v.SetDefault("report.include_matched", false)
	v.SetDefault("report.max_list_items", 10)
	v.SetDefault("report.sort_by_amount", false)
	v.SetDefault("report.csv_delimiter", ";")
	v.SetDefault("log.level", string(logger.InfoLevel))
	v.SetDefault("log.format", string(logger.TextFormat))
}

// PassSettings is one entry of the passes list
type PassSettings struct {
	Name              string `mapstructure:"name"`
	AmountTolerance   string `mapstructure:"amount_tolerance"`
	DateToleranceDays int    `mapstructure:"date_tolerance_days"`
}

// Settings is the decoded configuration
type Settings struct {
	Delimiter          rune
	Encoding           string
	MaxErrors          int
	Sheet              string
	MaxConcurrentFiles int

	Strict bool
	Passes []PassSettings

	InstallmentValueTolerance decimal.Decimal
	InstallmentDateTolerance  int
	LedgerTolerance           decimal.Decimal

	IncludeMatched bool
	MaxListItems   int
	SortByAmount   bool
	CSVDelimiter   rune

	LogLevel  string
	LogFormat string
}

// ParseDelimiter reads a delimiter setting. "tab" and "\t" name the tab character.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func decimalSetting(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.ConfigurationError(errors.CodeInvalidConfig, key, raw, err)
	}
	return d, nil
}

// Load decodes the settings held by v
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Encoding:                 v.GetString("input.encoding"),
		MaxErrors:                v.GetInt("input.max_errors"),
		Sheet:                    v.GetString("input.sheet"),
		MaxConcurrentFiles:       v.GetInt("input.max_concurrent_files"),
		Strict:                   v.GetBool("matching.strict"),
		InstallmentDateTolerance: v.GetInt("installments.date_tolerance_days"),
		IncludeMatched:           v.GetBool("report.include_matched"),
		MaxListItems:             v.GetInt("report.max_list_items"),
		SortByAmount:             v.GetBool("report.sort_by_amount"),
		LogLevel:                 v.GetString("log.level"),
		LogFormat:                v.GetString("log.format"),
	}

	var err error
	if s.Delimiter, err = ParseDelimiter(v.GetString("input.delimiter")); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "input.delimiter", v.GetString("input.delimiter"), err)
	}
	if s.CSVDelimiter, err = ParseDelimiter(v.GetString("report.csv_delimiter")); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report.csv_delimiter", v.GetString("report.csv_delimiter"), err)
	}
	if s.InstallmentValueTolerance, err = decimalSetting(v, "installments.value_tolerance"); err != nil {
		return nil, err
	}
	if s.LedgerTolerance, err = decimalSetting(v, "ledger.tolerance"); err != nil {
		return nil, err
	}

	if v.IsSet("passes") {
		if err := v.UnmarshalKey("passes", &s.Passes); err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "passes", nil, err).
				WithSuggestion("passes is a list of name, amount_tolerance and date_tolerance_days")
		}
	}

	return s, nil
}

// MatchingConfig returns the configured passes, the standard ones when none
// are configured
func (s *Settings) MatchingConfig() (*matcher.MatchingConfig, error) {
	if len(s.Passes) == 0 {
		if s.Strict {
			return matcher.StrictMatchingConfig(), nil
		}
		return matcher.DefaultMatchingConfig(), nil
	}

	cfg := &matcher.MatchingConfig{Passes: make([]matcher.Pass, 0, len(s.Passes))}
	for i, p := range s.Passes {
		tolerance := decimal.Zero
		if raw := strings.TrimSpace(p.AmountTolerance); raw != "" {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, errors.ConfigurationError(errors.CodeInvalidConfig,
					fmt.Sprintf("passes[%d].amount_tolerance", i), raw, err)
			}
			tolerance = d
		}
		cfg.Passes = append(cfg.Passes, matcher.Pass{
			Name:              p.Name,
			AmountTolerance:   tolerance,
			DateToleranceDays: p.DateToleranceDays,
		})
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "passes", nil, err)
	}
	return cfg, nil
}

// ReconcilerConfig builds the reconciliation service configuration
func (s *Settings) ReconcilerConfig() (*reconciler.Config, error) {
	matching, err := s.MatchingConfig()
	if err != nil {
		return nil, err
	}

	cfg := reconciler.DefaultConfig()
	cfg.Input = parsers.Options{
		Delimiter: s.Delimiter,
		Encoding:  s.Encoding,
		MaxErrors: s.MaxErrors,
		Sheet:     s.Sheet,
	}
	cfg.Matching = matching
	cfg.Installments = installments.MatchConfig{
		ValueTolerance:    s.InstallmentValueTolerance,
		DateToleranceDays: s.InstallmentDateTolerance,
	}
	cfg.BalanceTolerance = s.LedgerTolerance
	cfg.MaxConcurrentFiles = s.MaxConcurrentFiles

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReportConfig builds the report configuration for the given output format.
// CSV output lists matched rows as well; console and JSON output keep to the
// rows that need attention unless report.include_matched is set.
func (s *Settings) ReportConfig(format string) (*reporter.ReportConfig, error) {
	cfg := reporter.DefaultReportConfig()
	cfg.Format = reporter.OutputFormat(strings.ToLower(strings.TrimSpace(format)))
	cfg.IncludeMatched = s.IncludeMatched || cfg.Format == reporter.FormatCSV
	cfg.MaxListItems = s.MaxListItems
	cfg.SortByAmount = s.SortByAmount
	cfg.CSVDelimiter = s.CSVDelimiter

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "format", format, err).
			WithSuggestion("Valid formats: console, json, csv")
	}
	return cfg, nil
}

// LoggerConfig builds the logger configuration. verbose forces debug level.
func (s *Settings) LoggerConfig(verbose bool) *logger.Config {
	return logger.ConfigFromSettings(s.LogLevel, s.LogFormat, verbose)
}
