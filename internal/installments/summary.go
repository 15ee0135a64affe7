package installments

import (
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger-reconciler/internal/models"
)

// PlanSummary is the position of one plan on a given day
type PlanSummary struct {
	PlanNumber  string          `json:"plan_number"`
	AsOf        time.Time       `json:"as_of"`
	Total       int             `json:"total"`
	Paid        int             `json:"paid"`
	Overdue     int             `json:"overdue"`
	Pending     int             `json:"pending"`
	Outstanding decimal.Decimal `json:"outstanding"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
}

// Summarize counts the installments of a plan by situation on asOf.
// Unpaid installments due before asOf are overdue whatever their recorded
// status; the outstanding balance sums the amount of every unpaid installment.
func Summarize(plan models.InstallmentPlan, installments []models.Installment, asOf time.Time) PlanSummary {
	asOf = models.DateOnly(asOf)
	summary := PlanSummary{
		PlanNumber:  plan.Number,
		AsOf:        asOf,
		Outstanding: decimal.Zero,
		PaidAmount:  decimal.Zero,
	}

	for i := range installments {
		inst := &installments[i]
		if plan.Number != "" && inst.PlanNumber != "" && inst.PlanNumber != plan.Number {
			continue
		}
		summary.Total++

		switch {
		case inst.IsPaid():
			summary.Paid++
			summary.PaidAmount = summary.PaidAmount.Add(inst.PaidAmount)
			continue
		case inst.Status == models.InstallmentOverdue,
			models.DateOnly(inst.DueDate).Before(asOf):
			summary.Overdue++
		default:
			summary.Pending++
		}
		summary.Outstanding = summary.Outstanding.Add(inst.Amount())
	}

	return summary
}
