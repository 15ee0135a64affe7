package parsers

import (
	"context"
	"io"

	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/pkg/errors"
)

// BankStatementParser imports normalized statement files. The account of a
// row comes from its account_key column, or from branch and account, or
// from the parser's default when the file holds a single account.
type BankStatementParser struct {
	*BaseParser
	defaultAccount string
}

// NewBankStatementParser creates a statement parser. defaultAccount may be empty.
func NewBankStatementParser(opts Options, defaultAccount string) (*BankStatementParser, error) {
	base, err := NewBaseParser(opts)
	if err != nil {
		return nil, err
	}
	return &BankStatementParser{BaseParser: base, defaultAccount: models.NormalizeRawKey(defaultAccount)}, nil
}

// ParseFile imports the statement at path
func (p *BankStatementParser) ParseFile(ctx context.Context, path string) ([]models.BankTransaction, *ParseStats, error) {
	var rows []models.BankTransaction
	stats, err := p.parseFile(ctx, path, BankStatementLayout, p.collect(&rows))
	if err != nil {
		return nil, stats, err
	}
	return models.AssignTransactionIDs(rows), stats, nil
}

// Parse imports a statement read from r. name is used in error messages
// and selects the workbook reader for .xlsx names.
func (p *BankStatementParser) Parse(ctx context.Context, name string, r io.Reader) ([]models.BankTransaction, *ParseStats, error) {
	var rows []models.BankTransaction
	stats, err := p.parse(ctx, name, r, BankStatementLayout, p.collect(&rows))
	if err != nil {
		return nil, stats, err
	}
	return models.AssignTransactionIDs(rows), stats, nil
}

func (p *BankStatementParser) collect(out *[]models.BankTransaction) func(record) *errors.EnhancedParseError {
	return func(rec record) *errors.EnhancedParseError {
		date, perr := rec.date("date")
		if perr != nil {
			return perr
		}
		value, perr := rec.amount("value")
		if perr != nil {
			return perr
		}

		key := p.accountKey(rec)
		if key == "" {
			return errors.EmptyValueError(rec.file, rec.line, "account_key").
				WithSuggestion("add account_key or branch and account columns, or pass the statement account")
		}

		*out = append(*out, models.NewBankTransaction(rec.get("id"), date, value, rec.get("description"), rec.get("bank"), key))
		return nil
	}
}

func (p *BankStatementParser) accountKey(rec record) string {
	if rec.has("account_key") {
		return models.NormalizeRawKey(rec.get("account_key"))
	}
	if key := models.NormalizeAccountKey(rec.get("branch"), rec.get("account")); key != "" {
		return key
	}
	return p.defaultAccount
}
