// Package installments proposes which bank debits paid which installments of
// a tax installment plan, and books plan payments into the ledger.
package installments

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/pkg/errors"
	"bank-ledger-reconciler/pkg/logger"
)

// MatchConfig bounds how far a bank debit may be from an installment.
// ValueTolerance is a ratio of the installment amount: 0.01 is 1%.
type MatchConfig struct {
	ValueTolerance    decimal.Decimal `mapstructure:"value_tolerance"`
	DateToleranceDays int             `mapstructure:"date_tolerance_days"`
}

// DefaultMatchConfig allows 1% on the amount and 5 days around the due date
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		ValueTolerance:    decimal.NewFromFloat(0.01),
		DateToleranceDays: 5,
	}
}

// Validate checks the tolerances are usable
func (c MatchConfig) Validate() error {
	if c.ValueTolerance.IsNegative() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "installments.value_tolerance", c.ValueTolerance.String(), nil)
	}
	if c.DateToleranceDays < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "installments.date_tolerance_days", c.DateToleranceDays, nil)
	}
	return nil
}

// MatchProposal pairs an installment with the bank debit that appears to pay it
type MatchProposal struct {
	InstallmentID     string          `json:"installment_id"`
	Number            int             `json:"number"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	DueDate           time.Time       `json:"due_date"`
	BankTransactionID string          `json:"bank_transaction_id"`
	BankAmount        decimal.Decimal `json:"bank_amount"`
	BankDate          time.Time       `json:"bank_date"`
	Description       string          `json:"description"`
	// Score is 1 minus the relative amount difference. It is informational
	// and does not take part in choosing the debit.
	Score decimal.Decimal `json:"score"`
}

// MatchInstallments proposes one bank debit per open installment.
//
// Installments are visited in input order. Each takes the first debit, in
// input order, whose absolute value is within the value tolerance of the
// installment amount and whose date is within the date tolerance of the due
// date. A debit taken by one installment is not offered to the next ones.
// Paid installments, installments without an amount and credits are ignored.
func MatchInstallments(pending []models.Installment, bank []models.BankTransaction, cfg MatchConfig) ([]MatchProposal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.GetGlobalLogger().WithComponent("installments")
	claimed := make(map[int]bool)
	proposals := make([]MatchProposal, 0)

	for i := range pending {
		inst := &pending[i]
		amount := inst.Amount()
		if inst.IsPaid() || !amount.IsPositive() {
			continue
		}

		for j := range bank {
			row := &bank[j]
			if claimed[j] || !row.IsDebit() {
				continue
			}

			diff := amount.Sub(row.Value.Abs()).Abs().Div(amount)
			if diff.GreaterThan(cfg.ValueTolerance) {
				continue
			}
			if models.AbsDays(inst.DueDate, row.PostingDate) > cfg.DateToleranceDays {
				continue
			}

			claimed[j] = true
			proposals = append(proposals, MatchProposal{
				InstallmentID:     inst.ID,
				Number:            inst.Number,
				InstallmentAmount: amount,
				DueDate:           inst.DueDate,
				BankTransactionID: row.ID,
				BankAmount:        row.Value,
				BankDate:          row.PostingDate,
				Description:       row.Description,
				Score:             decimal.NewFromInt(1).Sub(diff).Round(4),
			})
			break
		}
	}

	log.WithFields(logger.Fields{
		"installments": len(pending),
		"bank_rows":    len(bank),
		"proposals":    len(proposals),
	}).Debug("installment matching finished")

	return proposals, nil
}

// ApplyMatches returns copies of installments with every proposed match
// marked paid. The input is not modified. A proposal naming an unknown
// installment fails the whole call.
func ApplyMatches(installments []models.Installment, proposals []MatchProposal) ([]models.Installment, error) {
	out := make([]models.Installment, len(installments))
	copy(out, installments)

	index := make(map[string]int, len(out))
	for i := range out {
		index[out[i].ID] = i
	}

	for _, p := range proposals {
		i, ok := index[p.InstallmentID]
		if !ok {
			return nil, errors.ValidationError(errors.CodeDataInconsistent, "installment_id", p.InstallmentID,
				fmt.Errorf("installment %s not found", p.InstallmentID))
		}
		paidAt := models.DateOnly(p.BankDate)
		out[i].Status = models.InstallmentPaid
		out[i].PaidAt = &paidAt
		out[i].PaidAmount = p.BankAmount.Abs()
		out[i].BankTransactionID = p.BankTransactionID
	}

	return out, nil
}
