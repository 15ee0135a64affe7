package parsers

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"bank-ledger-reconciler/internal/models"
)

// Writer emits files in the normalized layouts, so the importers of this
// package read them back unchanged
type Writer struct {
	opts Options
}

// NewWriter creates a writer. Latin-1 output is encoded as Windows-1252.
func NewWriter(opts Options) (*Writer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.Encoding = NormalizeEncoding(opts.Encoding)
	return &Writer{opts: opts}, nil
}

func (w *Writer) csvWriter(out io.Writer) (*csv.Writer, func() error) {
	closeFn := func() error { return nil }
	if w.opts.Encoding == EncodingLatin1 {
		tw := transform.NewWriter(out, charmap.Windows1252.NewEncoder())
		out = tw
		closeFn = tw.Close
	}
	cw := csv.NewWriter(out)
	cw.Comma = w.opts.Delimiter
	return cw, closeFn
}

func (w *Writer) writeAll(out io.Writer, header []string, rows [][]string) error {
	cw, closeFn := w.csvWriter(out)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return closeFn()
}

// WriteLedger writes postings in the ledger layout
func (w *Writer) WriteLedger(out io.Writer, postings []models.LedgerPosting) error {
	header := []string{"ledger_id", "batch_id", "date", "narrative", "amount", "debit", "credit", "origin", "bank_account"}
	rows := make([][]string, 0, len(postings))
	for _, p := range postings {
		rows = append(rows, []string{
			p.LedgerID,
			p.BatchID,
			p.PostingDate.Format(models.DateLayout),
			p.Narrative,
			p.Amount.StringFixed(2),
			p.DebitAccount,
			p.CreditAccount,
			string(p.Origin),
			p.LinkedBankAccount,
		})
	}
	return w.writeAll(out, header, rows)
}

// WriteInstallments writes installments in the installment layout
func (w *Writer) WriteInstallments(out io.Writer, installments []models.Installment) error {
	header := []string{"id", "plan", "number", "due_date", "original_amount", "updated_balance", "status",
		"paid_at", "paid_amount", "bank_transaction_id"}
	rows := make([][]string, 0, len(installments))
	for _, inst := range installments {
		paidAt := ""
		if inst.PaidAt != nil {
			paidAt = inst.PaidAt.Format(models.DateLayout)
		}
		rows = append(rows, []string{
			inst.ID,
			inst.PlanNumber,
			strconv.Itoa(inst.Number),
			inst.DueDate.Format(models.DateLayout),
			inst.OriginalAmount.StringFixed(2),
			optionalDecimal(inst.UpdatedBalance),
			string(inst.Status),
			paidAt,
			optionalDecimal(inst.PaidAmount),
			inst.BankTransactionID,
		})
	}
	return w.writeAll(out, header, rows)
}

func optionalDecimal(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}
