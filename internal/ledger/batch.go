// Package ledger holds advisory checks over ledger postings. Nothing here
// blocks an import or a reconciliation run.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger-reconciler/internal/models"
)

// DefaultTolerance is the largest debit/credit difference treated as rounding
var DefaultTolerance = decimal.NewFromFloat(0.01)

// BatchImbalance is one batch whose debit and credit sides differ
type BatchImbalance struct {
	BatchID        string          `json:"batch_id"`
	Date           time.Time       `json:"date"`
	Narrative      string          `json:"narrative"`
	TotalDebit     decimal.Decimal `json:"total_debit"`
	TotalCredit    decimal.Decimal `json:"total_credit"`
	Difference     decimal.Decimal `json:"difference"`
	DebitAccounts  []string        `json:"debit_accounts"`
	CreditAccounts []string        `json:"credit_accounts"`
}

// ImbalanceReport lists the unbalanced batches of a set of postings
type ImbalanceReport struct {
	BatchesChecked      int              `json:"batches_checked"`
	Tolerance           decimal.Decimal  `json:"tolerance"`
	Batches             []BatchImbalance `json:"batches"`
	TotalDifference     decimal.Decimal  `json:"total_difference"`
	Accounts            []string         `json:"accounts"`
	MostFrequentAccount string           `json:"most_frequent_debit_account,omitempty"`
}

// Count returns the number of unbalanced batches
func (r *ImbalanceReport) Count() int {
	return len(r.Batches)
}

// Balanced reports whether every batch is within tolerance
func (r *ImbalanceReport) Balanced() bool {
	return len(r.Batches) == 0
}

type batchTotals struct {
	first   models.LedgerPosting
	debit   decimal.Decimal
	credit  decimal.Decimal
	debits  []string
	credits []string
}

// CheckBatchBalance groups postings by batch, falling back to the ledger id
// for postings without one, and reports every batch whose debit total and
// credit total differ by more than tolerance. A posting counts toward the
// debit side when it has a debit account and toward the credit side when it
// has a credit account. A zero tolerance flags any difference.
func CheckBatchBalance(postings []models.LedgerPosting, tolerance decimal.Decimal) *ImbalanceReport {
	order := make([]string, 0)
	groups := make(map[string]*batchTotals)

	for _, p := range postings {
		id := p.BatchID
		if id == "" {
			id = p.LedgerID
		}
		g, ok := groups[id]
		if !ok {
			g = &batchTotals{first: p}
			groups[id] = g
			order = append(order, id)
		}
		if p.DebitAccount != "" {
			g.debit = g.debit.Add(p.Amount)
			g.debits = appendUnique(g.debits, p.DebitAccount)
		}
		if p.CreditAccount != "" {
			g.credit = g.credit.Add(p.Amount)
			g.credits = appendUnique(g.credits, p.CreditAccount)
		}
	}

	report := &ImbalanceReport{
		BatchesChecked:  len(order),
		Tolerance:       tolerance,
		Batches:         make([]BatchImbalance, 0),
		TotalDifference: decimal.Zero,
	}

	accounts := make(map[string]bool)
	debitFrequency := make(map[string]int)

	for _, id := range order {
		g := groups[id]
		diff := g.debit.Sub(g.credit).Abs()
		if !diff.GreaterThan(tolerance) {
			continue
		}

		report.Batches = append(report.Batches, BatchImbalance{
			BatchID:        id,
			Date:           g.first.PostingDate,
			Narrative:      g.first.Narrative,
			TotalDebit:     g.debit,
			TotalCredit:    g.credit,
			Difference:     diff,
			DebitAccounts:  g.debits,
			CreditAccounts: g.credits,
		})
		report.TotalDifference = report.TotalDifference.Add(diff)

		for _, a := range g.debits {
			accounts[a] = true
		}
		for _, a := range g.credits {
			accounts[a] = true
		}
		if len(g.debits) > 0 {
			debitFrequency[g.debits[0]]++
		}
	}

	report.Accounts = make([]string, 0, len(accounts))
	for a := range accounts {
		report.Accounts = append(report.Accounts, a)
	}
	sort.Strings(report.Accounts)
	report.MostFrequentAccount = mostFrequent(debitFrequency)

	return report
}

// mostFrequent picks the highest count, breaking ties by the smallest code
func mostFrequent(counts map[string]int) string {
	best, bestCount := "", 0
	for code, n := range counts {
		if n > bestCount || (n == bestCount && code < best) {
			best, bestCount = code, n
		}
	}
	return best
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// FilterByDate returns the postings dated in [from, to]. A zero bound is open.
func FilterByDate(postings []models.LedgerPosting, from, to time.Time) []models.LedgerPosting {
	out := make([]models.LedgerPosting, 0, len(postings))
	for _, p := range postings {
		d := models.DateOnly(p.PostingDate)
		if !from.IsZero() && d.Before(models.DateOnly(from)) {
			continue
		}
		if !to.IsZero() && d.After(models.DateOnly(to)) {
			continue
		}
		out = append(out, p)
	}
	return out
}
