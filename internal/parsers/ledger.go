package parsers

import (
	"context"
	"fmt"
	"io"

	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/pkg/errors"
)

// LedgerParser imports ledger exports, one posting per row
type LedgerParser struct {
	*BaseParser
}

// NewLedgerParser creates a ledger parser
func NewLedgerParser(opts Options) (*LedgerParser, error) {
	base, err := NewBaseParser(opts)
	if err != nil {
		return nil, err
	}
	return &LedgerParser{BaseParser: base}, nil
}

// ParseFile imports the ledger export at path, CSV or XLSX
func (p *LedgerParser) ParseFile(ctx context.Context, path string) ([]models.LedgerPosting, *ParseStats, error) {
	var postings []models.LedgerPosting
	stats, err := p.parseFile(ctx, path, LedgerLayout, p.collect(&postings))
	if err != nil {
		return nil, stats, err
	}
	return postings, stats, nil
}

// Parse imports a ledger export read from r
func (p *LedgerParser) Parse(ctx context.Context, name string, r io.Reader) ([]models.LedgerPosting, *ParseStats, error) {
	var postings []models.LedgerPosting
	stats, err := p.parse(ctx, name, r, LedgerLayout, p.collect(&postings))
	if err != nil {
		return nil, stats, err
	}
	return postings, stats, nil
}

func (p *LedgerParser) collect(out *[]models.LedgerPosting) func(record) *errors.EnhancedParseError {
	seen := make(map[string]int)
	return func(rec record) *errors.EnhancedParseError {
		id, perr := rec.required("ledger_id")
		if perr != nil {
			return perr
		}
		if first, dup := seen[id]; dup {
			return rec.invalid("ledger_id", id, fmt.Errorf("ledger id already used on line %d", first))
		}

		date, perr := rec.date("date")
		if perr != nil {
			return perr
		}
		amount, perr := rec.amount("amount")
		if perr != nil {
			return perr
		}

		posting := models.LedgerPosting{
			LedgerID:          id,
			BatchID:           rec.get("batch_id"),
			PostingDate:       date,
			Narrative:         rec.get("narrative"),
			Amount:            amount.Abs(),
			DebitAccount:      rec.get("debit"),
			CreditAccount:     rec.get("credit"),
			Origin:            models.ParseOrigin(rec.get("origin")),
			LinkedBankAccount: models.NormalizeRawKey(rec.get("bank_account")),
		}
		if posting.BatchID == "" {
			posting.BatchID = id
		}
		if err := posting.Validate(); err != nil {
			return rec.invalid("ledger_id", id, err)
		}

		seen[id] = rec.line
		*out = append(*out, posting)
		return nil
	}
}
