// Package reporter renders the results of the reconciler in console, JSON or
// CSV form.
//
// Supported reports:
//   - *matcher.ReconciliationResult: matches per pass, unmatched bank rows and ledger surplus
//   - *ProvisioningReport: proposed and committed negative-balance adjustments
//   - *InstallmentReport: installment payment proposals and plan summaries
//   - *ledger.ImbalanceReport: batches whose debits and credits differ
//   - *BalanceReport: bank against ledger closing balances
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	if err != nil {
//		return err
//	}
//	err = generator.Generate(result, os.Stdout)
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"bank-ledger-reconciler/internal/installments"
	"bank-ledger-reconciler/internal/ledger"
	"bank-ledger-reconciler/internal/matcher"
	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/internal/provisioning"
	"bank-ledger-reconciler/pkg/errors"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	// Detail level options
	IncludeMatched       bool `json:"include_matched" mapstructure:"include_matched"`
	IncludeUnmatchedBank bool `json:"include_unmatched_bank" mapstructure:"include_unmatched_bank"`
	IncludeLedgerSurplus bool `json:"include_ledger_surplus" mapstructure:"include_ledger_surplus"`

	// Console options. MaxListItems caps every console list, zero lists everything.
	MaxListItems int  `json:"max_list_items" mapstructure:"max_list_items"`
	SortByAmount bool `json:"sort_by_amount" mapstructure:"sort_by_amount"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers" mapstructure:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:               FormatConsole,
		IncludeMatched:       false,
		IncludeUnmatchedBank: true,
		IncludeLedgerSurplus: true,
		MaxListItems:         10,
		SortByAmount:         false,
		CSVDelimiter:         ';',
		CSVHeaders:           true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxListItems < 0 {
		return fmt.Errorf("max list items cannot be negative, got %d", c.MaxListItems)
	}
	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}
	return nil
}

// ProvisioningReport holds the proposals of a provisioning run and, when they
// were committed, the postings written
type ProvisioningReport struct {
	Proposals []*provisioning.Proposal     `json:"proposals"`
	Committed []*provisioning.CommitResult `json:"committed,omitempty"`
}

// Entries returns the number of proposed entries across all proposals
func (r *ProvisioningReport) Entries() int {
	n := 0
	for _, p := range r.Proposals {
		n += len(p.Entries)
	}
	return n
}

// InstallmentReport holds the payment proposals of an installment run and the
// plan summaries after they were applied
type InstallmentReport struct {
	Proposals []installments.MatchProposal `json:"proposals"`
	Unmatched []models.Installment         `json:"unmatched,omitempty"`
	Summaries []installments.PlanSummary   `json:"summaries,omitempty"`
}

// BalanceReport holds one comparison per reconciled account
type BalanceReport struct {
	Comparisons []ledger.BalanceComparison `json:"comparisons"`
}

// Unreconciled counts the comparisons whose difference exceeds the tolerance
func (r *BalanceReport) Unreconciled() int {
	n := 0
	for _, c := range r.Comparisons {
		if c.Status != ledger.StatusReconciled {
			n++
		}
	}
	return n
}

// ReportGenerator generates reports in various formats
type ReportGenerator struct {
	config *ReportConfig
	now    func() time.Time
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
		now:    time.Now,
	}, nil
}

// WithClock replaces the clock used for the generation timestamp
func (rg *ReportGenerator) WithClock(now func() time.Time) *ReportGenerator {
	rg.now = now
	return rg
}

// Generate renders report to writer. report must be one of the types listed
// in the package documentation.
func (rg *ReportGenerator) Generate(report interface{}, writer io.Writer) error {
	if report == nil {
		return errors.ValidationError(errors.CodeMissingField, "report", nil, nil)
	}

	switch r := report.(type) {
	case *matcher.ReconciliationResult:
		if r == nil {
			break
		}
		return rg.render(writer,
			func(cw *consoleWriter) { rg.consoleReconciliation(cw, r) },
			func(t *csvTable) { rg.csvReconciliation(t, r) },
			rg.jsonReconciliation(r))
	case *ProvisioningReport:
		if r == nil {
			break
		}
		return rg.render(writer,
			func(cw *consoleWriter) { rg.consoleProvisioning(cw, r) },
			func(t *csvTable) { rg.csvProvisioning(t, r) },
			r)
	case *InstallmentReport:
		if r == nil {
			break
		}
		return rg.render(writer,
			func(cw *consoleWriter) { rg.consoleInstallments(cw, r) },
			func(t *csvTable) { rg.csvInstallments(t, r) },
			r)
	case *ledger.ImbalanceReport:
		if r == nil {
			break
		}
		return rg.render(writer,
			func(cw *consoleWriter) { rg.consoleImbalance(cw, r) },
			func(t *csvTable) { rg.csvImbalance(t, r) },
			r)
	case *BalanceReport:
		if r == nil {
			break
		}
		return rg.render(writer,
			func(cw *consoleWriter) { rg.consoleBalances(cw, r) },
			func(t *csvTable) { rg.csvBalances(t, r) },
			r)
	default:
		return errors.ValidationError(errors.CodeInvalidData, "report_type", fmt.Sprintf("%T", report), nil).
			WithSuggestion("Provide a reconciliation, provisioning, installment, ledger or balance report")
	}
	return errors.ValidationError(errors.CodeMissingField, "report", fmt.Sprintf("%T", report), nil)
}

// render dispatches on the configured format
func (rg *ReportGenerator) render(writer io.Writer, console func(*consoleWriter), table func(*csvTable), jsonBody interface{}) error {
	switch rg.config.Format {
	case FormatConsole:
		cw := &consoleWriter{w: writer}
		console(cw)
		return cw.err
	case FormatJSON:
		return rg.writeJSON(writer, jsonBody)
	case FormatCSV:
		t := newCSVTable(rg.config)
		table(t)
		return t.flush(writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) writeJSON(writer io.Writer, body interface{}) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]interface{}{
		"generated_at": rg.now().UTC().Format(time.RFC3339),
		"report":       body,
	})
}

// jsonReconciliation filters the result according to the configuration
func (rg *ReportGenerator) jsonReconciliation(result *matcher.ReconciliationResult) map[string]interface{} {
	output := map[string]interface{}{
		"summary": result.Summary,
	}

	if rg.config.IncludeMatched {
		output["matches"] = result.Matches
	}
	if rg.config.IncludeUnmatchedBank {
		output["unmatched_bank_rows"] = result.UnmatchedBank()
	}
	if rg.config.IncludeLedgerSurplus {
		output["ledger_surplus"] = result.Surplus()
	}

	return output
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

func calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}
