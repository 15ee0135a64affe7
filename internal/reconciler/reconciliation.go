// Package reconciler wires the importers to the reconciliation core.
//
// ReconciliationService loads the account registry, bank statements, ledger
// exports and installment schedules from files and runs one operation on
// them:
//   - Reconcile: multi-pass matching of bank rows against ledger postings
//   - ProposeProvisioning: negative-balance adjustment proposals, optionally committed
//   - MatchInstallments: installment payments found in the statements
//   - CheckLedger: debit and credit totals per ledger batch
//   - CompareBalances: bank against ledger closing balances
//
// Example usage:
//
//	service, err := reconciler.NewReconciliationService(reconciler.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	outcome, err := service.Reconcile(ctx, &reconciler.ReconciliationRequest{
//		RegistryFile:   "contas.csv",
//		StatementFiles: []string{"extrato.csv"},
//		LedgerFile:     "razao.xlsx",
//	})
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger-reconciler/internal/history"
	"bank-ledger-reconciler/internal/installments"
	"bank-ledger-reconciler/internal/ledger"
	"bank-ledger-reconciler/internal/matcher"
	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/internal/parsers"
	"bank-ledger-reconciler/internal/provisioning"
	"bank-ledger-reconciler/pkg/errors"
	"bank-ledger-reconciler/pkg/logger"
)

// Config holds configuration options for the reconciliation service
type Config struct {
	Input        parsers.Options
	Matching     *matcher.MatchingConfig
	Installments installments.MatchConfig

	// BalanceTolerance is the largest ledger batch or closing balance
	// difference still treated as balanced
	BalanceTolerance decimal.Decimal

	// MaxConcurrentFiles bounds the statement files parsed at once
	MaxConcurrentFiles int
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		Input:              parsers.DefaultOptions(),
		Matching:           matcher.DefaultMatchingConfig(),
		Installments:       installments.DefaultMatchConfig(),
		BalanceTolerance:   ledger.DefaultTolerance,
		MaxConcurrentFiles: 4,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Input.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "input", c.Input, err)
	}
	if c.Matching == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "passes", nil, nil)
	}
	if err := c.Matching.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "passes", nil, err)
	}
	if err := c.Installments.Validate(); err != nil {
		return err
	}
	if c.BalanceTolerance.IsNegative() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "ledger.tolerance", c.BalanceTolerance.String(), nil)
	}
	if c.MaxConcurrentFiles <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "input.max_concurrent_files", c.MaxConcurrentFiles,
			fmt.Errorf("max concurrent files must be positive, got %d", c.MaxConcurrentFiles))
	}
	return nil
}

// DateRange is an inclusive range of posting dates. A nil bound is open.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Validate rejects a range whose start is after its end
func (r DateRange) Validate() error {
	if r.Start != nil && r.End != nil && r.Start.After(*r.End) {
		return errors.ValidationError(errors.CodeInvalidRange, "date_range",
			r.Start.Format(models.DateLayout)+".."+r.End.Format(models.DateLayout), nil).
			WithSuggestion("start date must be before end date")
	}
	return nil
}

// bounds returns the range as zero-is-open times
func (r DateRange) bounds() (time.Time, time.Time) {
	var from, to time.Time
	if r.Start != nil {
		from = models.DateOnly(*r.Start)
	}
	if r.End != nil {
		to = models.DateOnly(*r.End)
	}
	return from, to
}

// ReconciliationService runs reconciliation operations over input files
type ReconciliationService struct {
	config      *Config
	provisioner *provisioning.Engine
	now         func() time.Time
	logger      logger.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(config *Config) (*ReconciliationService, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &ReconciliationService{
		config:      config,
		provisioner: provisioning.NewEngine(),
		now:         time.Now,
		logger:      logger.GetGlobalLogger().WithComponent("reconciler"),
	}, nil
}

// WithClock replaces the clock used for match and proposal timestamps
func (rs *ReconciliationService) WithClock(now func() time.Time) *ReconciliationService {
	rs.now = now
	rs.provisioner.WithClock(now)
	return rs
}

// WithIDGenerator replaces the generator of proposal and entry ids
func (rs *ReconciliationService) WithIDGenerator(newID func() string) *ReconciliationService {
	rs.provisioner.WithIDGenerator(newID)
	return rs
}

// GetConfiguration returns the current configuration
func (rs *ReconciliationService) GetConfiguration() *Config {
	return rs.config
}

// ReconciliationRequest names the inputs of a matching run
type ReconciliationRequest struct {
	RegistryFile   string
	StatementFiles []string
	LedgerFile     string
	// DefaultAccount is the account of statement files without account columns
	DefaultAccount string
	DateRange      DateRange
}

// Validate validates the reconciliation request
func (r *ReconciliationRequest) Validate() error {
	if r.RegistryFile == "" {
		return errors.ValidationError(errors.CodeMissingField, "registry_file", nil, nil).
			WithSuggestion("Provide the account registry with --registry")
	}
	if len(r.StatementFiles) == 0 {
		return errors.ValidationError(errors.CodeMissingField, "statement_files", nil, nil).
			WithSuggestion("Provide at least one bank statement with --statements")
	}
	if r.LedgerFile == "" {
		return errors.ValidationError(errors.CodeMissingField, "ledger_file", nil, nil).
			WithSuggestion("Provide the ledger export with --ledger")
	}
	return r.DateRange.Validate()
}

// ReconciliationOutcome is the result of a matching run and the import statistics
type ReconciliationOutcome struct {
	Result     *matcher.ReconciliationResult `json:"result"`
	Period     DateRange                     `json:"period"`
	Statements history.InsertStats           `json:"statements"`
	ParseStats []*parsers.ParseStats         `json:"-"`
}

// Reconcile matches the statement rows of the period against the ledger
// postings of the period. Statement rows are linked to ledger accounts
// through the registry; rows of unregistered accounts stay unmatched.
func (rs *ReconciliationService) Reconcile(ctx context.Context, request *ReconciliationRequest) (*ReconciliationOutcome, error) {
	if request == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "request", nil, nil)
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}

	startTime := rs.now()
	outcome := &ReconciliationOutcome{Period: request.DateRange}

	registry, stats, err := rs.loadRegistry(ctx, request.RegistryFile)
	if err != nil {
		return nil, err
	}
	outcome.ParseStats = append(outcome.ParseStats, stats)

	statements, insert, stmtStats, err := rs.loadStatements(ctx, request.StatementFiles, request.DefaultAccount)
	if err != nil {
		return nil, err
	}
	outcome.Statements = insert
	outcome.ParseStats = append(outcome.ParseStats, stmtStats...)

	postings, stats, err := rs.loadLedger(ctx, request.LedgerFile)
	if err != nil {
		return nil, err
	}
	outcome.ParseStats = append(outcome.ParseStats, stats)

	from, to := request.DateRange.bounds()
	var bank []models.BankTransaction
	for _, key := range statements.Accounts() {
		bank = append(bank, statements.Load(key, from, to)...)
	}
	book := ledger.FilterByDate(postings, from, to)

	result, err := matcher.NewMatchingEngine(rs.config.Matching).
		WithClock(rs.now).
		Reconcile(registry.LinkStatement(bank), book)
	if err != nil {
		return nil, err
	}
	outcome.Result = result

	rs.logger.WithFields(logger.Fields{
		"bank_rows":      len(bank),
		"ledger_rows":    len(book),
		"matched":        result.Summary.MatchedBankRows,
		"unmatched_bank": result.Summary.UnmatchedBankRows,
		"surplus":        result.Summary.LedgerSurplus,
		"elapsed":        rs.now().Sub(startTime),
	}).Info("reconciliation finished")

	return outcome, nil
}
