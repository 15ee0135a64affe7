package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Origin tags where a ledger posting came from
type Origin string

const (
	OriginManual                    Origin = "manual"
	OriginImported                  Origin = "imported"
	OriginNegativeBalanceAdjustment Origin = "negative_balance_adjustment"
	OriginInstallment               Origin = "installment"
)

var originFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ParseOrigin maps free text to an Origin, ignoring case and accents.
// Unknown or empty text is Imported.
func ParseOrigin(s string) Origin {
	folded, _, err := transform.String(originFolder, strings.TrimSpace(s))
	if err != nil {
		folded = s
	}
	switch strings.Join(strings.Fields(strings.ToLower(folded)), " ") {
	case "manual":
		return OriginManual
	case "negative_balance_adjustment", "ajuste saldo negativo", "saldo negativo",
		"conta negativa", "conta contabil negativa":
		return OriginNegativeBalanceAdjustment
	case "installment", "parcelamento":
		return OriginInstallment
	default:
		return OriginImported
	}
}

// LedgerPosting is one double-entry ledger line. An empty account code is unset.
type LedgerPosting struct {
	LedgerID          string          `json:"ledger_id"`
	BatchID           string          `json:"batch_id"`
	PostingDate       time.Time       `json:"posting_date"`
	Narrative         string          `json:"narrative"`
	Amount            decimal.Decimal `json:"amount"`
	DebitAccount      string          `json:"debit_account,omitempty"`
	CreditAccount     string          `json:"credit_account,omitempty"`
	Origin            Origin          `json:"origin"`
	LinkedBankAccount string          `json:"linked_bank_account,omitempty"`
}

// Validate performs basic validation on the LedgerPosting
func (p *LedgerPosting) Validate() error {
	if strings.TrimSpace(p.LedgerID) == "" {
		return fmt.Errorf("ledger id cannot be empty")
	}
	if p.PostingDate.IsZero() {
		return fmt.Errorf("ledger posting date cannot be zero")
	}
	if p.DebitAccount == "" && p.CreditAccount == "" {
		return fmt.Errorf("ledger posting %s has no account", p.LedgerID)
	}
	return nil
}

// Accounts returns the distinct ledger accounts the posting is booked
// against: the debit account, then the credit account
func (p *LedgerPosting) Accounts() []string {
	out := make([]string, 0, 2)
	if p.DebitAccount != "" {
		out = append(out, p.DebitAccount)
	}
	if p.CreditAccount != "" && p.CreditAccount != p.DebitAccount {
		out = append(out, p.CreditAccount)
	}
	return out
}

// Touches reports whether code is the debit or the credit account
func (p *LedgerPosting) Touches(code string) bool {
	if code == "" {
		return false
	}
	return p.DebitAccount == code || p.CreditAccount == code
}

// String returns a string representation of the LedgerPosting
func (p *LedgerPosting) String() string {
	return fmt.Sprintf("LedgerPosting{ID: %s, Batch: %s, Amount: %s, D: %s, C: %s, Date: %s}",
		p.LedgerID, p.BatchID, p.Amount.StringFixed(2), p.DebitAccount, p.CreditAccount,
		p.PostingDate.Format(DateLayout))
}
