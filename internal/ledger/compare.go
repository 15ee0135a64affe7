package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger-reconciler/internal/balance"
)

// Comparison status values
const (
	StatusReconciled   = "reconciled"
	StatusUnreconciled = "unreconciled"
)

// BalanceComparison sets the bank closing balance of an account against the
// closing balance of its ledger account over the same period. LedgerDebits
// and LedgerCredits sum the net daily movements of each sign.
type BalanceComparison struct {
	AccountKey    string          `json:"account_key"`
	LedgerAccount string          `json:"ledger_account"`
	Start         time.Time       `json:"start"`
	End           time.Time       `json:"end"`
	BankOpening   decimal.Decimal `json:"bank_opening"`
	BankClosing   decimal.Decimal `json:"bank_closing"`
	LedgerOpening decimal.Decimal `json:"ledger_opening"`
	LedgerDebits  decimal.Decimal `json:"ledger_debits"`
	LedgerCredits decimal.Decimal `json:"ledger_credits"`
	LedgerClosing decimal.Decimal `json:"ledger_closing"`
	Difference    decimal.Decimal `json:"difference"`
	Status        string          `json:"status"`
}

// CompareBalances compares the two projected histories over [start, end].
// The difference is bank minus ledger; within tolerance the account is
// reconciled. An exact match is reconciled even with a zero tolerance.
func CompareBalances(accountKey, ledgerAccount string, bank, book *balance.History,
	start, end time.Time, tolerance decimal.Decimal) BalanceComparison {

	c := BalanceComparison{
		AccountKey:    accountKey,
		LedgerAccount: ledgerAccount,
		Start:         start,
		End:           end,
		BankOpening:   bank.ClosingBefore(start),
		BankClosing:   bank.ClosingOn(end),
		LedgerOpening: book.ClosingBefore(start),
		LedgerClosing: book.ClosingOn(end),
		LedgerDebits:  decimal.Zero,
		LedgerCredits: decimal.Zero,
	}

	for _, d := range book.Window(start, end) {
		if d.Movement.IsPositive() {
			c.LedgerDebits = c.LedgerDebits.Add(d.Movement)
		} else {
			c.LedgerCredits = c.LedgerCredits.Add(d.Movement.Abs())
		}
	}

	c.Difference = c.BankClosing.Sub(c.LedgerClosing)
	c.Status = StatusUnreconciled
	if diff := c.Difference.Abs(); diff.IsZero() || diff.LessThan(tolerance) {
		c.Status = StatusReconciled
	}
	return c
}
