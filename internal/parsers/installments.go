package parsers

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/pkg/errors"
)

// InstallmentParser imports installment schedules and plan compositions
type InstallmentParser struct {
	*BaseParser
}

// NewInstallmentParser creates an installment parser
func NewInstallmentParser(opts Options) (*InstallmentParser, error) {
	base, err := NewBaseParser(opts)
	if err != nil {
		return nil, err
	}
	return &InstallmentParser{BaseParser: base}, nil
}

// ParseInstallmentsFile imports the installment schedule at path
func (p *InstallmentParser) ParseInstallmentsFile(ctx context.Context, path string) ([]models.Installment, *ParseStats, error) {
	var out []models.Installment
	stats, err := p.parseFile(ctx, path, InstallmentLayout, p.collectInstallments(&out))
	if err != nil {
		return nil, stats, err
	}
	return out, stats, nil
}

// ParseInstallments imports an installment schedule read from r
func (p *InstallmentParser) ParseInstallments(ctx context.Context, name string, r io.Reader) ([]models.Installment, *ParseStats, error) {
	var out []models.Installment
	stats, err := p.parse(ctx, name, r, InstallmentLayout, p.collectInstallments(&out))
	if err != nil {
		return nil, stats, err
	}
	return out, stats, nil
}

// ParsePlansFile imports plan compositions and ledger accounts at path
func (p *InstallmentParser) ParsePlansFile(ctx context.Context, path string) ([]models.InstallmentPlan, *ParseStats, error) {
	var out []models.InstallmentPlan
	stats, err := p.parseFile(ctx, path, PlanLayout, p.collectPlans(&out))
	if err != nil {
		return nil, stats, err
	}
	return out, stats, nil
}

// ParsePlans imports plan compositions read from r
func (p *InstallmentParser) ParsePlans(ctx context.Context, name string, r io.Reader) ([]models.InstallmentPlan, *ParseStats, error) {
	var out []models.InstallmentPlan
	stats, err := p.parse(ctx, name, r, PlanLayout, p.collectPlans(&out))
	if err != nil {
		return nil, stats, err
	}
	return out, stats, nil
}

// installmentID is the identity used when the file carries none
func installmentID(plan string, number int) string {
	return fmt.Sprintf("%s-%03d", plan, number)
}

func (p *InstallmentParser) collectInstallments(out *[]models.Installment) func(record) *errors.EnhancedParseError {
	seen := make(map[string]bool)
	return func(rec record) *errors.EnhancedParseError {
		plan, perr := rec.required("plan")
		if perr != nil {
			return perr
		}
		numberText, perr := rec.required("number")
		if perr != nil {
			return perr
		}
		number, err := strconv.Atoi(numberText)
		if err != nil || number <= 0 {
			return rec.invalid("number", numberText, fmt.Errorf("installment number must be a positive integer"))
		}

		due, perr := rec.date("due_date")
		if perr != nil {
			return perr
		}
		original, perr := rec.amount("original_amount")
		if perr != nil {
			return perr
		}
		updated, perr := rec.optionalAmount("updated_balance")
		if perr != nil {
			return perr
		}
		paidAt, perr := rec.optionalDate("paid_at")
		if perr != nil {
			return perr
		}
		paidAmount, perr := rec.optionalAmount("paid_amount")
		if perr != nil {
			return perr
		}

		inst := models.Installment{
			ID:                rec.get("id"),
			PlanNumber:        plan,
			Number:            number,
			DueDate:           due,
			OriginalAmount:    original,
			UpdatedBalance:    updated,
			Status:            models.NormalizeInstallmentStatus(rec.get("status")),
			PaidAt:            paidAt,
			PaidAmount:        paidAmount,
			BankTransactionID: rec.get("bank_transaction_id"),
		}
		if inst.ID == "" {
			inst.ID = installmentID(plan, number)
		}
		if seen[inst.ID] {
			return rec.invalid("id", inst.ID, fmt.Errorf("installment listed twice"))
		}
		if err := inst.Validate(); err != nil {
			return rec.invalid("id", inst.ID, err)
		}

		seen[inst.ID] = true
		*out = append(*out, inst)
		return nil
	}
}

func (p *InstallmentParser) collectPlans(out *[]models.InstallmentPlan) func(record) *errors.EnhancedParseError {
	return func(rec record) *errors.EnhancedParseError {
		number, perr := rec.required("plan")
		if perr != nil {
			return perr
		}

		plan := models.InstallmentPlan{
			Number:           number,
			Agency:           rec.get("agency"),
			PrincipalAccount: rec.get("principal_account"),
			FineAccount:      rec.get("fine_account"),
			InterestAccount:  rec.get("interest_account"),
			BankAccount:      rec.get("bank_account"),
		}

		var err *errors.EnhancedParseError
		if plan.PrincipalAmount, err = rec.optionalAmount("principal_amount"); err != nil {
			return err
		}
		if plan.FineAmount, err = rec.optionalAmount("fine_amount"); err != nil {
			return err
		}
		if plan.InterestAmount, err = rec.optionalAmount("interest_amount"); err != nil {
			return err
		}

		*out = append(*out, plan)
		return nil
	}
}
