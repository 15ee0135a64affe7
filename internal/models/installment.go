package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentStatus is the situation of one installment of a tax plan
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "A vencer"
	InstallmentOverdue InstallmentStatus = "Vencida"
	InstallmentDebtor  InstallmentStatus = "Devedora"
	InstallmentPaid    InstallmentStatus = "Paga"
)

// NormalizeInstallmentStatus maps the free-text situation found in plan
// statements to a status. Liquidated and settled installments count as paid.
// Unrecognized text becomes Pending.
func NormalizeInstallmentStatus(text string) InstallmentStatus {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(lower, "paga"), strings.Contains(lower, "liquidada"), strings.Contains(lower, "quitada"), lower == "paid":
		return InstallmentPaid
	case strings.Contains(lower, "vencida"), lower == "overdue":
		return InstallmentOverdue
	case strings.Contains(lower, "devedora"), lower == "debtor":
		return InstallmentDebtor
	default:
		return InstallmentPending
	}
}

// Installment is one scheduled payment of an installment plan
type Installment struct {
	ID                string            `json:"id"`
	PlanNumber        string            `json:"plan_number"`
	Number            int               `json:"number"`
	DueDate           time.Time         `json:"due_date"`
	OriginalAmount    decimal.Decimal   `json:"original_amount"`
	UpdatedBalance    decimal.Decimal   `json:"updated_balance"`
	Status            InstallmentStatus `json:"status"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
	PaidAmount        decimal.Decimal   `json:"paid_amount"`
	BankTransactionID string            `json:"bank_transaction_id,omitempty"`
}

// Amount is the value expected to leave the bank: the updated balance when
// known, otherwise the original amount.
func (i *Installment) Amount() decimal.Decimal {
	if !i.UpdatedBalance.IsZero() {
		return i.UpdatedBalance
	}
	return i.OriginalAmount
}

// IsPaid reports whether the installment has been settled
func (i *Installment) IsPaid() bool {
	return i.Status == InstallmentPaid
}

// Validate performs basic validation on the Installment
func (i *Installment) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("installment id cannot be empty")
	}
	if i.DueDate.IsZero() {
		return fmt.Errorf("installment %s has no due date", i.ID)
	}
	if i.Amount().IsNegative() {
		return fmt.Errorf("installment %s has a negative amount", i.ID)
	}
	return nil
}

// InstallmentPlan carries the composition of a plan and its ledger accounts
type InstallmentPlan struct {
	Number           string          `json:"number"`
	Agency           string          `json:"agency"`
	PrincipalAmount  decimal.Decimal `json:"principal_amount"`
	FineAmount       decimal.Decimal `json:"fine_amount"`
	InterestAmount   decimal.Decimal `json:"interest_amount"`
	PrincipalAccount string          `json:"principal_account"`
	FineAccount      string          `json:"fine_account"`
	InterestAccount  string          `json:"interest_account"`
	BankAccount      string          `json:"bank_account"`
}

// AgencyOrDefault returns the creditor agency, defaulting to the federal revenue
func (p *InstallmentPlan) AgencyOrDefault() string {
	if strings.TrimSpace(p.Agency) == "" {
		return "RFB"
	}
	return p.Agency
}
