package matcher

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/pkg/errors"
	"bank-ledger-reconciler/pkg/logger"
)

// UnmatchedReason explains why a bank row ended a run unmatched
type UnmatchedReason string

const (
	UnmatchedReasonNone        UnmatchedReason = ""
	UnmatchedReasonNoAccount   UnmatchedReason = "no_linked_account"
	UnmatchedReasonNoCandidate UnmatchedReason = "no_candidate"
)

// AnnotatedBankRow is a copy of a bank row carrying its match status
type AnnotatedBankRow struct {
	models.LinkedBankTransaction
	Matched         bool            `json:"matched"`
	CounterpartID   string          `json:"counterpart_id,omitempty"`
	PassName        string          `json:"pass_name,omitempty"`
	UnmatchedReason UnmatchedReason `json:"unmatched_reason,omitempty"`
}

// AnnotatedLedgerRow is a copy of a ledger row carrying its match status
type AnnotatedLedgerRow struct {
	models.LedgerPosting
	Matched       bool   `json:"matched"`
	CounterpartID string `json:"counterpart_id,omitempty"`
	PassName      string `json:"pass_name,omitempty"`
}

// PassSummary counts what a single pass matched
type PassSummary struct {
	Name    string          `json:"name"`
	Matches int             `json:"matches"`
	Amount  decimal.Decimal `json:"amount"`
}

// ReconciliationSummary provides aggregate statistics about the reconciliation
type ReconciliationSummary struct {
	TotalBankRows        int             `json:"total_bank_rows"`
	TotalLedgerRows      int             `json:"total_ledger_rows"`
	MatchedBankRows      int             `json:"matched_bank_rows"`
	MatchedLedgerRows    int             `json:"matched_ledger_rows"`
	UnmatchedBankRows    int             `json:"unmatched_bank_rows"`
	NoAccountBankRows    int             `json:"no_account_bank_rows"`
	LedgerSurplus        int             `json:"ledger_surplus"`
	TotalAmountMatched   decimal.Decimal `json:"total_amount_matched"`
	TotalAmountUnmatched decimal.Decimal `json:"total_amount_unmatched"`
	Passes               []PassSummary   `json:"passes"`
}

// ReconciliationResult represents the complete result of a reconciliation run.
// Rows are in input order.
type ReconciliationResult struct {
	BankRows   []AnnotatedBankRow                 `json:"bank_rows"`
	LedgerRows []AnnotatedLedgerRow               `json:"ledger_rows"`
	Matches    []models.ReconciliationMatchRecord `json:"matches"`
	Summary    ReconciliationSummary              `json:"summary"`
}

// UnmatchedBank returns the bank rows no pass matched
func (r *ReconciliationResult) UnmatchedBank() []AnnotatedBankRow {
	var out []AnnotatedBankRow
	for _, row := range r.BankRows {
		if !row.Matched {
			out = append(out, row)
		}
	}
	return out
}

// Surplus returns the ledger rows with no bank counterpart
func (r *ReconciliationResult) Surplus() []AnnotatedLedgerRow {
	var out []AnnotatedLedgerRow
	for _, row := range r.LedgerRows {
		if !row.Matched {
			out = append(out, row)
		}
	}
	return out
}

// MatchingEngine runs the configured passes over one set of inputs
type MatchingEngine struct {
	Config *MatchingConfig
	log    logger.Logger
	now    func() time.Time
}

// NewMatchingEngine creates a new matching engine with the specified configuration
func NewMatchingEngine(config *MatchingConfig) *MatchingEngine {
	if config == nil {
		config = DefaultMatchingConfig()
	}

	return &MatchingEngine{
		Config: config,
		log:    logger.GetGlobalLogger().WithComponent("matcher"),
		now:    time.Now,
	}
}

// WithClock sets the clock that stamps match records
func (me *MatchingEngine) WithClock(now func() time.Time) *MatchingEngine {
	me.now = now
	return me
}

// Reconcile matches bank rows against ledger rows with the default engine
func Reconcile(bank []models.LinkedBankTransaction, ledger []models.LedgerPosting, cfg *MatchingConfig) (*ReconciliationResult, error) {
	return NewMatchingEngine(cfg).Reconcile(bank, ledger)
}

// Reconcile runs every pass in order. Bank rows drive, ledger rows are the
// candidates. The inputs are never modified.
func (me *MatchingEngine) Reconcile(bank []models.LinkedBankTransaction, ledger []models.LedgerPosting) (*ReconciliationResult, error) {
	if err := me.Config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "passes", len(me.Config.Passes), err)
	}
	if err := checkIdentities(bank, ledger); err != nil {
		return nil, err
	}

	result := &ReconciliationResult{
		BankRows:   make([]AnnotatedBankRow, len(bank)),
		LedgerRows: make([]AnnotatedLedgerRow, len(ledger)),
		Matches:    make([]models.ReconciliationMatchRecord, 0),
	}
	for i := range bank {
		result.BankRows[i] = AnnotatedBankRow{LinkedBankTransaction: bank[i]}
	}
	for i := range ledger {
		result.LedgerRows[i] = AnnotatedLedgerRow{LedgerPosting: ledger[i]}
	}

	index := NewLedgerIndex(ledger)
	ledgerTaken := make([]bool, len(ledger))
	matchedAt := me.now()

	for _, pass := range me.Config.Passes {
		summary := PassSummary{Name: pass.Name, Amount: decimal.Zero}

		for i := range result.BankRows {
			row := &result.BankRows[i]
			if row.Matched || row.LinkedAccountCode == "" {
				continue
			}

			j := bestCandidate(row, index, ledgerTaken, pass)
			if j < 0 {
				continue
			}

			ledgerTaken[j] = true
			lrow := &result.LedgerRows[j]

			row.Matched, row.CounterpartID, row.PassName = true, lrow.LedgerID, pass.Name
			lrow.Matched, lrow.CounterpartID, lrow.PassName = true, row.ID, pass.Name

			result.Matches = append(result.Matches, models.ReconciliationMatchRecord{
				BankTransactionID: row.ID,
				LedgerID:          lrow.LedgerID,
				PassName:          pass.Name,
				MatchedAt:         matchedAt,
			})

			summary.Matches++
			summary.Amount = summary.Amount.Add(row.Value.Abs())
		}

		me.log.WithFields(logger.Fields{
			"pass":    pass.Name,
			"matches": summary.Matches,
		}).Debug("pass finished")

		result.Summary.Passes = append(result.Summary.Passes, summary)
	}

	me.finish(result, index)
	return result, nil
}

// bestCandidate returns the position of the untaken ledger row closest in
// date to row that qualifies under pass, or -1. Ties keep the first row in
// input order.
func bestCandidate(row *AnnotatedBankRow, index *LedgerIndex, taken []bool, pass Pass) int {
	best, bestDays := -1, 0
	bankAmount := row.Value.Abs()

	for _, j := range index.Candidates(row.LinkedAccountCode) {
		if taken[j] {
			continue
		}

		candidate := index.Row(j)
		if !models.CompareAmountsWithTolerance(candidate.Amount.Abs(), bankAmount, pass.AmountTolerance) {
			continue
		}

		days := models.AbsDays(row.PostingDate, candidate.PostingDate)
		if days > pass.DateToleranceDays {
			continue
		}

		if best < 0 || days < bestDays {
			best, bestDays = j, days
		}
	}

	return best
}

func (me *MatchingEngine) finish(result *ReconciliationResult, index *LedgerIndex) {
	s := &result.Summary
	s.TotalBankRows = len(result.BankRows)
	s.TotalLedgerRows = len(result.LedgerRows)
	s.TotalAmountMatched = decimal.Zero
	s.TotalAmountUnmatched = decimal.Zero

	for i := range result.BankRows {
		row := &result.BankRows[i]
		switch {
		case row.Matched:
			s.MatchedBankRows++
			s.TotalAmountMatched = s.TotalAmountMatched.Add(row.Value.Abs())
		case row.LinkedAccountCode == "":
			row.UnmatchedReason = UnmatchedReasonNoAccount
			s.UnmatchedBankRows++
			s.NoAccountBankRows++
			s.TotalAmountUnmatched = s.TotalAmountUnmatched.Add(row.Value.Abs())
		default:
			row.UnmatchedReason = UnmatchedReasonNoCandidate
			s.UnmatchedBankRows++
			s.TotalAmountUnmatched = s.TotalAmountUnmatched.Add(row.Value.Abs())
		}
	}

	for i := range result.LedgerRows {
		if result.LedgerRows[i].Matched {
			s.MatchedLedgerRows++
		} else {
			s.LedgerSurplus++
		}
	}

	me.log.WithFields(logger.Fields{
		"matched":  s.MatchedBankRows,
		"surplus":  s.LedgerSurplus,
		"accounts": index.Accounts(),
	}).Debug("reconciliation finished")
}

// checkIdentities rejects rows that could not be told apart in match records
func checkIdentities(bank []models.LinkedBankTransaction, ledger []models.LedgerPosting) error {
	seen := make(map[string]bool, len(bank))
	for i := range bank {
		id := bank[i].ID
		if id == "" {
			return errors.ValidationError(errors.CodeMissingField, "bank.id", fmt.Sprintf("row %d", i+1), nil)
		}
		if seen[id] {
			return errors.ReconciliationError(errors.CodeDataInconsistent, "reconcile",
				fmt.Errorf("bank transaction id %s appears twice", id))
		}
		seen[id] = true
	}

	seen = make(map[string]bool, len(ledger))
	for i := range ledger {
		id := ledger[i].LedgerID
		if id == "" {
			return errors.ValidationError(errors.CodeMissingField, "ledger.id", fmt.Sprintf("row %d", i+1), nil)
		}
		if seen[id] {
			return errors.ReconciliationError(errors.CodeDataInconsistent, "reconcile",
				fmt.Errorf("ledger id %s appears twice", id))
		}
		seen[id] = true
	}

	return nil
}
