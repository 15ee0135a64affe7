package parsers

import (
	"context"
	"io"

	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/pkg/errors"
)

// RegistryParser imports the account registry
type RegistryParser struct {
	*BaseParser
}

// NewRegistryParser creates a registry parser
func NewRegistryParser(opts Options) (*RegistryParser, error) {
	base, err := NewBaseParser(opts)
	if err != nil {
		return nil, err
	}
	return &RegistryParser{BaseParser: base}, nil
}

// ParseFile imports the registry at path. Rows for an account already seen
// are skipped and reported.
func (p *RegistryParser) ParseFile(ctx context.Context, path string) (*models.AccountRegistry, *ParseStats, error) {
	var entries []models.AccountRegistryEntry
	stats, err := p.parseFile(ctx, path, RegistryLayout, p.collect(&entries))
	if err != nil {
		return nil, stats, err
	}
	return p.build(path, entries, stats)
}

// Parse imports a registry read from r
func (p *RegistryParser) Parse(ctx context.Context, name string, r io.Reader) (*models.AccountRegistry, *ParseStats, error) {
	var entries []models.AccountRegistryEntry
	stats, err := p.parse(ctx, name, r, RegistryLayout, p.collect(&entries))
	if err != nil {
		return nil, stats, err
	}
	return p.build(name, entries, stats)
}

func (p *RegistryParser) build(name string, entries []models.AccountRegistryEntry, stats *ParseStats) (*models.AccountRegistry, *ParseStats, error) {
	registry, err := models.NewAccountRegistry(entries)
	if err != nil {
		return nil, stats, errors.ParseError(errors.CodeInvalidData, name, 0, "account_key", "", err)
	}
	return registry, stats, nil
}

func (p *RegistryParser) collect(out *[]models.AccountRegistryEntry) func(record) *errors.EnhancedParseError {
	seen := make(map[string]bool)
	return func(rec record) *errors.EnhancedParseError {
		entry := models.AccountRegistryEntry{
			AccountKey:         rec.get("account_key"),
			BankCode:           rec.get("bank"),
			Branch:             rec.get("branch"),
			Account:            rec.get("account"),
			Description:        rec.get("description"),
			PrimaryAccountCode: rec.get("primary_account"),
			ContraAccountCode:  rec.get("contra_account"),
		}

		key := entry.Key()
		if key == "" {
			return errors.EmptyValueError(rec.file, rec.line, "account_key").
				WithSuggestion("fill account_key or both branch and account")
		}
		if seen[key] {
			return rec.invalid("account_key", key, errors.New(errors.CategoryValidation, errors.CodeDataInconsistent, "account registered twice"))
		}
		if entry.PrimaryAccountCode == "" {
			return errors.EmptyValueError(rec.file, rec.line, "primary_account")
		}

		opening, perr := rec.optionalAmount("opening_balance")
		if perr != nil {
			return perr
		}
		openingDate, perr := rec.optionalDate("opening_date")
		if perr != nil {
			return perr
		}
		entry.OpeningBalance = opening
		entry.OpeningBalanceDate = openingDate

		seen[key] = true
		*out = append(*out, entry)
		return nil
	}
}
