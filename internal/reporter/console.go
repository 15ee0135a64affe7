package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"bank-ledger-reconciler/internal/installments"
	"bank-ledger-reconciler/internal/ledger"
	"bank-ledger-reconciler/internal/matcher"
	"bank-ledger-reconciler/internal/models"
)

// consoleWriter keeps the first write error so renderers can print freely
type consoleWriter struct {
	w   io.Writer
	err error
}

func (c *consoleWriter) printf(format string, args ...interface{}) {
	if c.err != nil {
		return
	}
	_, c.err = fmt.Fprintf(c.w, format, args...)
}

func (c *consoleWriter) section(title string) {
	c.printf("=== %s ===\n", strings.ToUpper(title))
}

func (rg *ReportGenerator) header(cw *consoleWriter, title string) {
	cw.printf("%s\n", title)
	cw.printf("Generated: %s\n\n", rg.now().Format(time.RFC3339))
}

// truncated reports whether item i is past the console list limit, printing
// the remainder note once
func (rg *ReportGenerator) truncated(cw *consoleWriter, i, total int) bool {
	limit := rg.config.MaxListItems
	if limit == 0 || i < limit {
		return false
	}
	if i == limit {
		cw.printf("  ... and %d more\n", total-limit)
	}
	return true
}

func displayDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(models.DisplayDateLayout)
}

func (rg *ReportGenerator) consoleReconciliation(cw *consoleWriter, result *matcher.ReconciliationResult) {
	s := result.Summary
	rg.header(cw, "RECONCILIATION REPORT")

	cw.section("summary")
	cw.printf("Bank Rows:\n")
	cw.printf("  Total:     %d\n", s.TotalBankRows)
	cw.printf("  Matched:   %d (%.1f%%)\n", s.MatchedBankRows, calculatePercentage(s.MatchedBankRows, s.TotalBankRows))
	cw.printf("  Unmatched: %d (%.1f%%)\n", s.UnmatchedBankRows, calculatePercentage(s.UnmatchedBankRows, s.TotalBankRows))
	if s.NoAccountBankRows > 0 {
		cw.printf("    without a linked ledger account: %d\n", s.NoAccountBankRows)
	}
	cw.printf("\nLedger Rows:\n")
	cw.printf("  Total:     %d\n", s.TotalLedgerRows)
	cw.printf("  Matched:   %d (%.1f%%)\n", s.MatchedLedgerRows, calculatePercentage(s.MatchedLedgerRows, s.TotalLedgerRows))
	cw.printf("  Surplus:   %d (%.1f%%)\n", s.LedgerSurplus, calculatePercentage(s.LedgerSurplus, s.TotalLedgerRows))
	cw.printf("\nAmount Matched:   %s\n", s.TotalAmountMatched.StringFixed(2))
	cw.printf("Amount Unmatched: %s\n\n", s.TotalAmountUnmatched.StringFixed(2))

	cw.section("matches by pass")
	for _, p := range s.Passes {
		cw.printf("  %-20s %6d  %14s\n", p.Name, p.Matches, p.Amount.StringFixed(2))
	}
	cw.printf("\n")

	if rg.config.IncludeMatched && len(result.Matches) > 0 {
		cw.section("matches")
		for i, m := range result.Matches {
			if rg.truncated(cw, i, len(result.Matches)) {
				break
			}
			cw.printf("  %d. Bank: %s, Ledger: %s, Pass: %s\n", i+1, m.BankTransactionID, m.LedgerID, m.PassName)
		}
		cw.printf("\n")
	}

	if unmatched := result.UnmatchedBank(); rg.config.IncludeUnmatchedBank && len(unmatched) > 0 {
		if rg.config.SortByAmount {
			sort.SliceStable(unmatched, func(i, j int) bool {
				return unmatched[i].Value.Abs().GreaterThan(unmatched[j].Value.Abs())
			})
		}
		cw.section("unmatched bank rows")
		for i, row := range unmatched {
			if rg.truncated(cw, i, len(unmatched)) {
				break
			}
			cw.printf("  %d. %s  %s  %14s  %s", i+1, row.AccountKey, displayDate(row.PostingDate), row.Value.StringFixed(2), row.Description)
			if row.UnmatchedReason == matcher.UnmatchedReasonNoAccount {
				cw.printf("  [no linked account]")
			}
			cw.printf("\n")
		}
		cw.printf("\n")
	}

	if surplus := result.Surplus(); rg.config.IncludeLedgerSurplus && len(surplus) > 0 {
		if rg.config.SortByAmount {
			sort.SliceStable(surplus, func(i, j int) bool {
				return surplus[i].Amount.GreaterThan(surplus[j].Amount)
			})
		}
		cw.section("ledger surplus")
		for i, row := range surplus {
			if rg.truncated(cw, i, len(surplus)) {
				break
			}
			cw.printf("  %d. %s  %s  %14s  D:%s C:%s  %s\n", i+1, row.LedgerID, displayDate(row.PostingDate),
				row.Amount.StringFixed(2), row.DebitAccount, row.CreditAccount, row.Narrative)
		}
		cw.printf("\n")
	}
}

func (rg *ReportGenerator) consoleProvisioning(cw *consoleWriter, report *ProvisioningReport) {
	rg.header(cw, "NEGATIVE BALANCE PROVISIONING")

	cw.printf("Accounts:  %d\n", len(report.Proposals))
	cw.printf("Entries:   %d\n", report.Entries())
	cw.printf("Committed: %d\n\n", len(report.Committed))

	for _, p := range report.Proposals {
		cw.section("account " + p.AccountKey)
		cw.printf("Window: %s to %s\n", displayDate(p.WindowStart), displayDate(p.WindowEnd))
		if p.IsEmpty() {
			cw.printf("No adjustment needed\n\n")
			continue
		}
		for i, e := range p.Entries {
			if rg.truncated(cw, i, len(p.Entries)) {
				break
			}
			cw.printf("  %s  %-9s %14s  D:%s C:%s  %s\n", displayDate(e.Date), e.Direction, e.Amount.StringFixed(2),
				e.DebitAccount, e.CreditAccount, e.Narrative)
		}
		if p.CommittedAt != nil {
			cw.printf("Committed at %s\n", p.CommittedAt.Format(time.RFC3339))
		}
		cw.printf("\n")
	}
}

func (rg *ReportGenerator) consoleInstallments(cw *consoleWriter, report *InstallmentReport) {
	rg.header(cw, "INSTALLMENT PAYMENTS")

	cw.section("proposed matches")
	if len(report.Proposals) == 0 {
		cw.printf("No installment matched a bank debit\n")
	}
	for i, p := range report.Proposals {
		if rg.truncated(cw, i, len(report.Proposals)) {
			break
		}
		cw.printf("  %d. Installment %s (#%d, due %s, %s) <- bank %s on %s, %s  score %s\n",
			i+1, p.InstallmentID, p.Number, displayDate(p.DueDate), p.InstallmentAmount.StringFixed(2),
			p.BankTransactionID, displayDate(p.BankDate), p.BankAmount.StringFixed(2), p.Score.StringFixed(4))
	}
	cw.printf("\n")

	if len(report.Unmatched) > 0 {
		cw.section("still open")
		for i, inst := range report.Unmatched {
			if rg.truncated(cw, i, len(report.Unmatched)) {
				break
			}
			cw.printf("  %d. %s  due %s  %14s  %s\n", i+1, inst.ID, displayDate(inst.DueDate), inst.Amount().StringFixed(2), inst.Status)
		}
		cw.printf("\n")
	}

	for _, s := range report.Summaries {
		rg.printPlanSummary(cw, s)
	}
}

func (rg *ReportGenerator) printPlanSummary(cw *consoleWriter, s installments.PlanSummary) {
	cw.section("plan " + s.PlanNumber)
	cw.printf("As of:       %s\n", displayDate(s.AsOf))
	cw.printf("Total:       %d\n", s.Total)
	cw.printf("Paid:        %d (%s)\n", s.Paid, s.PaidAmount.StringFixed(2))
	cw.printf("Overdue:     %d\n", s.Overdue)
	cw.printf("Pending:     %d\n", s.Pending)
	cw.printf("Outstanding: %s\n\n", s.Outstanding.StringFixed(2))
}

func (rg *ReportGenerator) consoleImbalance(cw *consoleWriter, report *ledger.ImbalanceReport) {
	rg.header(cw, "LEDGER DEBIT/CREDIT CHECK")

	cw.printf("Batches Checked:  %d\n", report.BatchesChecked)
	cw.printf("Tolerance:        %s\n", report.Tolerance.StringFixed(2))
	if report.Balanced() {
		cw.printf("All batches are balanced\n")
		return
	}
	cw.printf("Unbalanced:       %d\n", report.Count())
	cw.printf("Total Difference: %s\n", report.TotalDifference.StringFixed(2))
	if report.MostFrequentAccount != "" {
		cw.printf("Most Frequent Debit Account: %s\n", report.MostFrequentAccount)
	}
	cw.printf("\n")

	cw.section("unbalanced batches")
	for i, b := range report.Batches {
		if rg.truncated(cw, i, len(report.Batches)) {
			break
		}
		cw.printf("  %d. %s  %s  D:%s C:%s diff %s  %s\n", i+1, b.BatchID, displayDate(b.Date),
			b.TotalDebit.StringFixed(2), b.TotalCredit.StringFixed(2), b.Difference.StringFixed(2), b.Narrative)
	}
	cw.printf("\nAccounts involved: %s\n", strings.Join(report.Accounts, ", "))
}

func (rg *ReportGenerator) consoleBalances(cw *consoleWriter, report *BalanceReport) {
	rg.header(cw, "BANK VS LEDGER BALANCES")

	cw.printf("Accounts:     %d\n", len(report.Comparisons))
	cw.printf("Unreconciled: %d\n\n", report.Unreconciled())

	for _, c := range report.Comparisons {
		cw.section(fmt.Sprintf("account %s / %s", c.AccountKey, c.LedgerAccount))
		cw.printf("Period:         %s to %s\n", displayDate(c.Start), displayDate(c.End))
		cw.printf("Bank Opening:   %14s   Bank Closing:   %14s\n", c.BankOpening.StringFixed(2), c.BankClosing.StringFixed(2))
		cw.printf("Ledger Opening: %14s   Ledger Closing: %14s\n", c.LedgerOpening.StringFixed(2), c.LedgerClosing.StringFixed(2))
		cw.printf("Ledger Debits:  %14s   Ledger Credits: %14s\n", c.LedgerDebits.StringFixed(2), c.LedgerCredits.StringFixed(2))
		cw.printf("Difference:     %14s   Status: %s\n\n", c.Difference.StringFixed(2), c.Status)
	}
}
