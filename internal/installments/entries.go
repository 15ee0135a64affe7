package installments

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/pkg/errors"
)

type component struct {
	suffix  string
	label   string
	setting string
	account string
	amount  decimal.Decimal
}

// PaymentEntries splits a plan payment into principal, fine and interest
// postings. Each part debits its plan account and credits the bank account.
//
// The split follows the plan composition; a plan without composition is
// booked fully as principal. Parts are rounded to cents and the rounding
// residue goes to principal. Parts that round to zero are not booked.
func PaymentEntries(plan models.InstallmentPlan, paidAmount decimal.Decimal, date time.Time) ([]models.LedgerPosting, error) {
	if strings.TrimSpace(plan.PrincipalAccount) == "" {
		return nil, errors.ConfigurationError(errors.CodeMissingAccountMapping, "principal_account", plan.Number, nil)
	}
	if strings.TrimSpace(plan.BankAccount) == "" {
		return nil, errors.ConfigurationError(errors.CodeMissingAccountMapping, "bank_account", plan.Number, nil)
	}
	if !paidAmount.IsPositive() {
		return nil, errors.ValidationError(errors.CodeInvalidAmount, "paid_amount", paidAmount.String(), nil)
	}

	paidAmount = paidAmount.Abs()
	total := plan.PrincipalAmount.Add(plan.FineAmount).Add(plan.InterestAmount)

	var principal, fine, interest decimal.Decimal
	if total.IsPositive() {
		principal = paidAmount.Mul(plan.PrincipalAmount).Div(total).Round(2)
		fine = paidAmount.Mul(plan.FineAmount).Div(total).Round(2)
		interest = paidAmount.Mul(plan.InterestAmount).Div(total).Round(2)
	} else {
		principal = paidAmount.Round(2)
	}
	principal = principal.Add(paidAmount.Sub(principal.Add(fine).Add(interest)))

	parts := []component{
		{"P", "Principal", "principal_account", plan.PrincipalAccount, principal},
		{"M", "Multa", "fine_account", plan.FineAccount, fine},
		{"J", "Juros", "interest_account", plan.InterestAccount, interest},
	}

	day := models.DateOnly(date)
	batch := fmt.Sprintf("PARC-%s-%s", planNumber(plan), day.Format("20060102"))
	narrative := fmt.Sprintf("Pgto Parcelamento %s - %s", plan.Number, plan.AgencyOrDefault())

	postings := make([]models.LedgerPosting, 0, len(parts))
	for _, part := range parts {
		if !part.amount.IsPositive() {
			continue
		}
		if strings.TrimSpace(part.account) == "" {
			return nil, errors.ConfigurationError(errors.CodeMissingAccountMapping, part.setting, plan.Number, nil)
		}
		postings = append(postings, models.LedgerPosting{
			LedgerID:          batch + "-" + part.suffix,
			BatchID:           batch,
			PostingDate:       day,
			Narrative:         narrative + " - " + part.label,
			Amount:            part.amount,
			DebitAccount:      part.account,
			CreditAccount:     plan.BankAccount,
			Origin:            models.OriginInstallment,
			LinkedBankAccount: plan.BankAccount,
		})
	}

	return postings, nil
}

func planNumber(plan models.InstallmentPlan) string {
	if strings.TrimSpace(plan.Number) == "" {
		return "X"
	}
	return plan.Number
}
