package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"bank-ledger-reconciler/internal/ledger"
	"bank-ledger-reconciler/internal/matcher"
	"bank-ledger-reconciler/internal/models"
)

// csvTable collects a header and records and writes them in one go
type csvTable struct {
	delimiter rune
	headers   bool
	header    []string
	records   [][]string
}

func newCSVTable(config *ReportConfig) *csvTable {
	return &csvTable{delimiter: config.CSVDelimiter, headers: config.CSVHeaders}
}

func (t *csvTable) columns(names ...string) {
	t.header = names
}

func (t *csvTable) add(record ...string) {
	t.records = append(t.records, record)
}

func (t *csvTable) flush(writer io.Writer) error {
	w := csv.NewWriter(writer)
	w.Comma = t.delimiter

	if t.headers && len(t.header) > 0 {
		if err := w.Write(t.header); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	for _, r := range t.records {
		if err := w.Write(r); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func csvDate(t time.Time) string {
	return t.Format(models.DateLayout)
}

func (rg *ReportGenerator) csvReconciliation(t *csvTable, result *matcher.ReconciliationResult) {
	t.columns("type", "id", "account", "date", "amount", "description", "counterpart_id", "pass", "reason")

	for _, row := range result.BankRows {
		if row.Matched && !rg.config.IncludeMatched {
			continue
		}
		if !row.Matched && !rg.config.IncludeUnmatchedBank {
			continue
		}
		kind := "unmatched_bank"
		if row.Matched {
			kind = "matched_bank"
		}
		t.add(kind, row.ID, row.AccountKey, csvDate(row.PostingDate), row.Value.StringFixed(2),
			row.Description, row.CounterpartID, row.PassName, string(row.UnmatchedReason))
	}

	if !rg.config.IncludeLedgerSurplus {
		return
	}
	for _, row := range result.Surplus() {
		t.add("ledger_surplus", row.LedgerID, strings.Join(row.Accounts(), "/"), csvDate(row.PostingDate),
			row.Amount.StringFixed(2), row.Narrative, "", "", "")
	}
}

func (rg *ReportGenerator) csvProvisioning(t *csvTable, report *ProvisioningReport) {
	t.columns("proposal_id", "account_key", "entry_id", "batch_id", "date", "direction", "amount",
		"debit", "credit", "narrative", "committed")

	for _, p := range report.Proposals {
		committed := strconv.FormatBool(p.CommittedAt != nil)
		for _, e := range p.Entries {
			t.add(p.ID, p.AccountKey, e.ID, e.BatchID, csvDate(e.Date), string(e.Direction), e.Amount.StringFixed(2),
				e.DebitAccount, e.CreditAccount, e.Narrative, committed)
		}
	}
}

func (rg *ReportGenerator) csvInstallments(t *csvTable, report *InstallmentReport) {
	t.columns("installment_id", "number", "due_date", "installment_amount", "bank_transaction_id",
		"bank_date", "bank_amount", "description", "score")

	for _, p := range report.Proposals {
		t.add(p.InstallmentID, strconv.Itoa(p.Number), csvDate(p.DueDate), p.InstallmentAmount.StringFixed(2),
			p.BankTransactionID, csvDate(p.BankDate), p.BankAmount.StringFixed(2), p.Description, p.Score.StringFixed(4))
	}
}

func (rg *ReportGenerator) csvImbalance(t *csvTable, report *ledger.ImbalanceReport) {
	t.columns("batch_id", "date", "narrative", "total_debit", "total_credit", "difference",
		"debit_accounts", "credit_accounts")

	for _, b := range report.Batches {
		t.add(b.BatchID, csvDate(b.Date), b.Narrative, b.TotalDebit.StringFixed(2), b.TotalCredit.StringFixed(2),
			b.Difference.StringFixed(2), strings.Join(b.DebitAccounts, ","), strings.Join(b.CreditAccounts, ","))
	}
}

func (rg *ReportGenerator) csvBalances(t *csvTable, report *BalanceReport) {
	t.columns("account_key", "ledger_account", "start", "end", "bank_opening", "bank_closing",
		"ledger_opening", "ledger_debits", "ledger_credits", "ledger_closing", "difference", "status")

	for _, c := range report.Comparisons {
		t.add(c.AccountKey, c.LedgerAccount, csvDate(c.Start), csvDate(c.End),
			c.BankOpening.StringFixed(2), c.BankClosing.StringFixed(2),
			c.LedgerOpening.StringFixed(2), c.LedgerDebits.StringFixed(2), c.LedgerCredits.StringFixed(2),
			c.LedgerClosing.StringFixed(2), c.Difference.StringFixed(2), c.Status)
	}
}
