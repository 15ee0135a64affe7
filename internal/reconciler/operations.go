package reconciler

import (
	"context"
	"fmt"
	"time"

	"bank-ledger-reconciler/internal/balance"
	"bank-ledger-reconciler/internal/history"
	"bank-ledger-reconciler/internal/installments"
	"bank-ledger-reconciler/internal/ledger"
	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/internal/parsers"
	"bank-ledger-reconciler/internal/provisioning"
	"bank-ledger-reconciler/pkg/errors"
	"bank-ledger-reconciler/pkg/logger"
)

// Movement sources for provisioning
const (
	SourceStatement = "statement"
	SourceLedger    = "ledger"
)

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return errors.ValidationError(errors.CodeMissingField, "window", nil, nil).
			WithSuggestion("Provide both --start and --end")
	}
	if end.Before(start) {
		return errors.ValidationError(errors.CodeInvalidRange, "window",
			start.Format(models.DateLayout)+".."+end.Format(models.DateLayout), nil).
			WithSuggestion("start date must be before end date")
	}
	return nil
}

// selectAccounts returns the registry entries named by keys, or all of them
// when keys is empty
func selectAccounts(registry *models.AccountRegistry, keys []string) ([]models.AccountRegistryEntry, error) {
	if len(keys) == 0 {
		return registry.Entries(), nil
	}
	out := make([]models.AccountRegistryEntry, 0, len(keys))
	for _, key := range keys {
		entry, ok := registry.Lookup(key)
		if !ok {
			return nil, errors.ValidationError(errors.CodeInvalidData, "account", key,
				fmt.Errorf("account %s is not in the registry", key))
		}
		out = append(out, entry)
	}
	return out, nil
}

// ProvisioningRequest names the inputs of a negative-balance run
type ProvisioningRequest struct {
	RegistryFile   string
	StatementFiles []string
	// LedgerFile holds the journal. It is the movement source when Source is
	// SourceLedger, and the booked adjustments otherwise. Optional for
	// statement runs.
	LedgerFile     string
	DefaultAccount string
	// Accounts restricts the run to these account keys
	Accounts []string
	Start    time.Time
	End      time.Time
	Source   string
	Commit   bool
}

// Validate validates the provisioning request
func (r *ProvisioningRequest) Validate() error {
	if r.RegistryFile == "" {
		return errors.ValidationError(errors.CodeMissingField, "registry_file", nil, nil).
			WithSuggestion("Provide the account registry with --registry")
	}
	switch r.Source {
	case SourceStatement, "":
		if len(r.StatementFiles) == 0 {
			return errors.ValidationError(errors.CodeMissingField, "statement_files", nil, nil).
				WithSuggestion("Provide at least one bank statement with --statements")
		}
	case SourceLedger:
		if r.LedgerFile == "" {
			return errors.ValidationError(errors.CodeMissingField, "ledger_file", nil, nil).
				WithSuggestion("Provide the ledger export with --ledger")
		}
	default:
		return errors.ValidationError(errors.CodeInvalidData, "source", r.Source, nil).
			WithSuggestion("Use 'statement' or 'ledger'")
	}
	return validateWindow(r.Start, r.End)
}

// ProvisioningOutcome holds one proposal per analysed account and, when the
// run committed, what was written to the journal
type ProvisioningOutcome struct {
	Proposals []*provisioning.Proposal     `json:"proposals"`
	Committed []*provisioning.CommitResult `json:"committed,omitempty"`
	// Skipped are the accounts without primary and contra ledger accounts
	Skipped    []string              `json:"skipped,omitempty"`
	Journal    *history.Journal      `json:"-"`
	ParseStats []*parsers.ParseStats `json:"-"`
}

// ProposeProvisioning proposes the adjustments that move each account's
// negative balance into its contra account over [Start, End]. With Commit
// set every non-empty proposal is booked into the journal.
func (rs *ReconciliationService) ProposeProvisioning(ctx context.Context, request *ProvisioningRequest) (*ProvisioningOutcome, error) {
	if request == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "request", nil, nil)
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}

	outcome := &ProvisioningOutcome{}

	registry, stats, err := rs.loadRegistry(ctx, request.RegistryFile)
	if err != nil {
		return nil, err
	}
	outcome.ParseStats = append(outcome.ParseStats, stats)

	accounts, err := selectAccounts(registry, request.Accounts)
	if err != nil {
		return nil, err
	}

	var postings []models.LedgerPosting
	if request.LedgerFile != "" {
		postings, stats, err = rs.loadLedger(ctx, request.LedgerFile)
		if err != nil {
			return nil, err
		}
		outcome.ParseStats = append(outcome.ParseStats, stats)
	}
	outcome.Journal = history.NewJournal(postings)

	var source provisioning.MovementSource
	if request.Source == SourceLedger {
		source = &provisioning.LedgerSource{Postings: outcome.Journal}
	} else {
		statements, _, stmtStats, err := rs.loadStatements(ctx, request.StatementFiles, request.DefaultAccount)
		if err != nil {
			return nil, err
		}
		outcome.ParseStats = append(outcome.ParseStats, stmtStats...)
		source = &provisioning.StatementSource{Statements: statements, Journal: outcome.Journal}
	}

	for _, account := range accounts {
		if !account.HasProvisioningAccounts() {
			rs.logger.WithField("account", account.Key()).Warn("account has no primary and contra ledger accounts, skipping")
			outcome.Skipped = append(outcome.Skipped, account.Key())
			continue
		}

		proposal, err := rs.provisioner.Propose(ctx, account, source, request.Start, request.End)
		if err != nil {
			return nil, err
		}
		outcome.Proposals = append(outcome.Proposals, proposal)

		if !request.Commit || proposal.IsEmpty() {
			continue
		}
		result, err := rs.provisioner.Commit(ctx, proposal, outcome.Journal)
		if err != nil {
			return nil, err
		}
		outcome.Committed = append(outcome.Committed, result)
	}

	rs.logger.WithFields(logger.Fields{
		"accounts":  len(outcome.Proposals),
		"skipped":   len(outcome.Skipped),
		"committed": len(outcome.Committed),
		"source":    request.Source,
	}).Info("provisioning finished")

	return outcome, nil
}

// InstallmentRequest names the inputs of an installment payment search
type InstallmentRequest struct {
	InstallmentFile string
	// PlanFile carries plan composition and accounts. Optional; without it
	// no summaries or payment postings are produced.
	PlanFile       string
	StatementFiles []string
	DefaultAccount string
	// Account restricts the bank rows to one account key
	Account string
	// AsOf dates the plan summaries. Zero means today.
	AsOf time.Time
	// Apply marks the matched installments as paid and books their payments
	Apply bool
}

// Validate validates the installment request
func (r *InstallmentRequest) Validate() error {
	if r.InstallmentFile == "" {
		return errors.ValidationError(errors.CodeMissingField, "installment_file", nil, nil).
			WithSuggestion("Provide the installment schedule with --installments")
	}
	if len(r.StatementFiles) == 0 {
		return errors.ValidationError(errors.CodeMissingField, "statement_files", nil, nil).
			WithSuggestion("Provide at least one bank statement with --statements")
	}
	return nil
}

// InstallmentOutcome is the result of an installment payment search.
// Installments reflects the applied matches when the request applied them.
type InstallmentOutcome struct {
	Proposals    []installments.MatchProposal `json:"proposals"`
	Installments []models.Installment         `json:"installments"`
	Unmatched    []models.Installment         `json:"unmatched"`
	Summaries    []installments.PlanSummary   `json:"summaries,omitempty"`
	Postings     []models.LedgerPosting       `json:"postings,omitempty"`
	ParseStats   []*parsers.ParseStats        `json:"-"`
}

// MatchInstallments looks for the bank debits that paid the open installments
func (rs *ReconciliationService) MatchInstallments(ctx context.Context, request *InstallmentRequest) (*InstallmentOutcome, error) {
	if request == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "request", nil, nil)
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}

	list, plans, stats, err := rs.loadInstallments(ctx, request.InstallmentFile, request.PlanFile)
	if err != nil {
		return nil, err
	}
	outcome := &InstallmentOutcome{ParseStats: stats}

	statements, _, stmtStats, err := rs.loadStatements(ctx, request.StatementFiles, request.DefaultAccount)
	if err != nil {
		return nil, err
	}
	outcome.ParseStats = append(outcome.ParseStats, stmtStats...)

	var bank []models.BankTransaction
	if request.Account != "" {
		bank = statements.ForAccount(models.NormalizeRawKey(request.Account))
	} else {
		for _, key := range statements.Accounts() {
			bank = append(bank, statements.ForAccount(key)...)
		}
	}

	outcome.Proposals, err = installments.MatchInstallments(list, bank, rs.config.Installments)
	if err != nil {
		return nil, err
	}

	current := list
	if request.Apply {
		current, err = installments.ApplyMatches(list, outcome.Proposals)
		if err != nil {
			return nil, err
		}
		outcome.Postings = rs.paymentPostings(plans, list, outcome.Proposals)
	}
	outcome.Installments = current

	matched := make(map[string]bool, len(outcome.Proposals))
	for _, p := range outcome.Proposals {
		matched[p.InstallmentID] = true
	}
	for _, inst := range current {
		if !inst.IsPaid() && !matched[inst.ID] {
			outcome.Unmatched = append(outcome.Unmatched, inst)
		}
	}

	asOf := request.AsOf
	if asOf.IsZero() {
		asOf = rs.now()
	}
	for _, plan := range plans {
		outcome.Summaries = append(outcome.Summaries, installments.Summarize(plan, current, asOf))
	}

	rs.logger.WithFields(logger.Fields{
		"installments": len(list),
		"bank_rows":    len(bank),
		"matched":      len(outcome.Proposals),
		"open":         len(outcome.Unmatched),
		"applied":      request.Apply,
	}).Info("installment matching finished")

	return outcome, nil
}

// paymentPostings books each matched payment against its plan. Payments of
// unknown plans, or of plans without ledger accounts, are logged and left out.
func (rs *ReconciliationService) paymentPostings(plans []models.InstallmentPlan, list []models.Installment,
	proposals []installments.MatchProposal) []models.LedgerPosting {

	byNumber := make(map[string]models.InstallmentPlan, len(plans))
	for _, plan := range plans {
		byNumber[plan.Number] = plan
	}
	planOf := make(map[string]string, len(list))
	for _, inst := range list {
		planOf[inst.ID] = inst.PlanNumber
	}

	var out []models.LedgerPosting
	for _, p := range proposals {
		log := rs.logger.WithField("installment", p.InstallmentID)
		plan, ok := byNumber[planOf[p.InstallmentID]]
		if !ok {
			log.Debug("no plan composition for installment, payment not booked")
			continue
		}
		entries, err := installments.PaymentEntries(plan, p.BankAmount.Abs(), p.BankDate)
		if err != nil {
			log.WithError(err).Warn("could not book installment payment")
			continue
		}
		out = append(out, entries...)
	}
	return out
}

// CheckLedger checks that every batch of the ledger export balances
// debits against credits within the configured tolerance
func (rs *ReconciliationService) CheckLedger(ctx context.Context, path string, period DateRange) (*ledger.ImbalanceReport, *parsers.ParseStats, error) {
	if path == "" {
		return nil, nil, errors.ValidationError(errors.CodeMissingField, "ledger_file", nil, nil).
			WithSuggestion("Provide the ledger export with --ledger")
	}
	if err := period.Validate(); err != nil {
		return nil, nil, err
	}

	postings, stats, err := rs.loadLedger(ctx, path)
	if err != nil {
		return nil, stats, err
	}

	from, to := period.bounds()
	report := ledger.CheckBatchBalance(ledger.FilterByDate(postings, from, to), rs.config.BalanceTolerance)

	rs.logger.WithFields(logger.Fields{
		"batches":    report.BatchesChecked,
		"unbalanced": report.Count(),
	}).Info("ledger check finished")

	return report, stats, nil
}

// BalanceRequest names the inputs of a closing balance comparison
type BalanceRequest struct {
	RegistryFile   string
	StatementFiles []string
	LedgerFile     string
	DefaultAccount string
	Accounts       []string
	Start          time.Time
	End            time.Time
}

// Validate validates the balance request
func (r *BalanceRequest) Validate() error {
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
	return validateWindow(r.Start, r.End)
}

// CompareBalances projects each registered account from its statements and
// from its primary ledger account, and compares the closing balances of
// [Start, End]. Both projections start from the registry opening balance.
// Accounts without a primary ledger account are left out.
func (rs *ReconciliationService) CompareBalances(ctx context.Context, request *BalanceRequest) ([]ledger.BalanceComparison, error) {
	if request == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "request", nil, nil)
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}

	registry, _, err := rs.loadRegistry(ctx, request.RegistryFile)
	if err != nil {
		return nil, err
	}
	accounts, err := selectAccounts(registry, request.Accounts)
	if err != nil {
		return nil, err
	}
	statements, _, _, err := rs.loadStatements(ctx, request.StatementFiles, request.DefaultAccount)
	if err != nil {
		return nil, err
	}
	postings, _, err := rs.loadLedger(ctx, request.LedgerFile)
	if err != nil {
		return nil, err
	}

	start, end := models.DateOnly(request.Start), models.DateOnly(request.End)
	bankSource := &provisioning.StatementSource{Statements: statements}
	bookSource := &provisioning.LedgerSource{Postings: history.NewJournal(postings)}

	comparisons := make([]ledger.BalanceComparison, 0, len(accounts))
	for _, account := range accounts {
		if account.PrimaryAccountCode == "" {
			rs.logger.WithField("account", account.Key()).Debug("account has no primary ledger account, skipping")
			continue
		}

		bankHistory, err := rs.project(ctx, account, bankSource, start, end)
		if err != nil {
			return nil, err
		}
		bookHistory, err := rs.project(ctx, account, bookSource, start, end)
		if err != nil {
			return nil, err
		}

		comparisons = append(comparisons, ledger.CompareBalances(account.Key(), account.PrimaryAccountCode,
			bankHistory, bookHistory, start, end, rs.config.BalanceTolerance))
	}

	return comparisons, nil
}

func (rs *ReconciliationService) project(ctx context.Context, account models.AccountRegistryEntry,
	source provisioning.MovementSource, start, end time.Time) (*balance.History, error) {

	movements, err := source.Movements(ctx, account)
	if err != nil {
		return nil, errors.ReconciliationError(errors.CodeMovementSource, "balance projection", err)
	}
	return balance.ProjectFullHistory(account.Key(), account.OpeningBalance, account.OpeningBalanceDate,
		movements, start, end)
}
