package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction says whether an adjustment raises or lowers the provisioned level
type Direction string

const (
	DirectionProvision Direction = "provision"
	DirectionReversal  Direction = "reversal"
)

// AdjustmentEntry is a proposed negative-balance journal entry. It is only
// persisted when the caller commits the proposal holding it.
type AdjustmentEntry struct {
	ID            string          `json:"id"`
	BatchID       string          `json:"batch_id"`
	AccountKey    string          `json:"account_key"`
	Date          time.Time       `json:"date"`
	Direction     Direction       `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	DebitAccount  string          `json:"debit_account"`
	CreditAccount string          `json:"credit_account"`
	Narrative     string          `json:"narrative"`
	Origin        Origin          `json:"origin"`
}

// SignedAmount is positive for provisions and negative for reversals
func (e *AdjustmentEntry) SignedAmount() decimal.Decimal {
	if e.Direction == DirectionReversal {
		return e.Amount.Neg()
	}
	return e.Amount
}

// ToPosting converts the entry into the ledger posting it proposes
func (e *AdjustmentEntry) ToPosting() LedgerPosting {
	return LedgerPosting{
		LedgerID:          e.ID,
		BatchID:           e.BatchID,
		PostingDate:       e.Date,
		Narrative:         e.Narrative,
		Amount:            e.Amount,
		DebitAccount:      e.DebitAccount,
		CreditAccount:     e.CreditAccount,
		Origin:            e.Origin,
		LinkedBankAccount: e.AccountKey,
	}
}

// AdjustmentFromPosting reads a booked adjustment back from the ledger.
// primary is the bank-linked account the adjustment was booked for.
func AdjustmentFromPosting(p LedgerPosting, primary string) (AdjustmentEntry, error) {
	if p.Origin != OriginNegativeBalanceAdjustment {
		return AdjustmentEntry{}, fmt.Errorf("posting %s is not a negative-balance adjustment", p.LedgerID)
	}

	direction := DirectionProvision
	switch primary {
	case p.DebitAccount:
	case p.CreditAccount:
		direction = DirectionReversal
	default:
		return AdjustmentEntry{}, fmt.Errorf("posting %s does not touch account %s", p.LedgerID, primary)
	}

	return AdjustmentEntry{
		ID:            p.LedgerID,
		BatchID:       p.BatchID,
		AccountKey:    p.LinkedBankAccount,
		Date:          DateOnly(p.PostingDate),
		Direction:     direction,
		Amount:        p.Amount.Abs(),
		DebitAccount:  p.DebitAccount,
		CreditAccount: p.CreditAccount,
		Narrative:     p.Narrative,
		Origin:        p.Origin,
	}, nil
}
