package provisioning

import (
	"context"

	"github.com/shopspring/decimal"

	"bank-ledger-reconciler/internal/balance"
	"bank-ledger-reconciler/internal/models"
)

// MovementSource supplies the dated movements of a bank account and the
// negative-balance adjustments already booked for it.
type MovementSource interface {
	Movements(ctx context.Context, account models.AccountRegistryEntry) ([]balance.Movement, error)
	BookedAdjustments(ctx context.Context, account models.AccountRegistryEntry) ([]models.AdjustmentEntry, error)
}

// StatementReader returns the full statement history of one bank account
type StatementReader interface {
	ForAccount(accountKey string) []models.BankTransaction
}

// PostingReader returns the ledger postings touching one ledger account
type PostingReader interface {
	ForAccount(code string) []models.LedgerPosting
}

// StatementSource derives movements from bank-statement history. Booked
// adjustments come from the journal, which may be nil.
type StatementSource struct {
	Statements StatementReader
	Journal    PostingReader
}

// Movements returns every statement line of the account as a movement
func (s *StatementSource) Movements(ctx context.Context, account models.AccountRegistryEntry) ([]balance.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := s.Statements.ForAccount(account.Key())
	out := make([]balance.Movement, 0, len(rows))
	for _, row := range rows {
		out = append(out, balance.Movement{Date: row.PostingDate, Amount: row.Value})
	}
	return out, nil
}

// BookedAdjustments returns the adjustments the journal holds for the account
func (s *StatementSource) BookedAdjustments(ctx context.Context, account models.AccountRegistryEntry) ([]models.AdjustmentEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Journal == nil {
		return nil, nil
	}
	return bookedFrom(s.Journal.ForAccount(account.PrimaryAccountCode), account.PrimaryAccountCode)
}

// LedgerSource derives movements from postings booked against the primary
// ledger account. The primary account is an asset: debits raise the balance
// and credits lower it. Negative-balance adjustments are not movements; they
// are reported as booked adjustments instead.
type LedgerSource struct {
	Postings PostingReader
}

// Movements returns the signed effect of every ordinary posting on the primary account
func (s *LedgerSource) Movements(ctx context.Context, account models.AccountRegistryEntry) ([]balance.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	primary := account.PrimaryAccountCode
	postings := s.Postings.ForAccount(primary)
	out := make([]balance.Movement, 0, len(postings))

	for _, p := range postings {
		if p.Origin == models.OriginNegativeBalanceAdjustment || !p.Touches(primary) {
			continue
		}

		amount := decimal.Zero
		if p.DebitAccount == primary {
			amount = amount.Add(p.Amount)
		}
		if p.CreditAccount == primary {
			amount = amount.Sub(p.Amount)
		}
		out = append(out, balance.Movement{Date: p.PostingDate, Amount: amount})
	}

	return out, nil
}

// BookedAdjustments returns the adjustment postings found among the account's postings
func (s *LedgerSource) BookedAdjustments(ctx context.Context, account models.AccountRegistryEntry) ([]models.AdjustmentEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return bookedFrom(s.Postings.ForAccount(account.PrimaryAccountCode), account.PrimaryAccountCode)
}

func bookedFrom(postings []models.LedgerPosting, primary string) ([]models.AdjustmentEntry, error) {
	var out []models.AdjustmentEntry
	for _, p := range postings {
		if p.Origin != models.OriginNegativeBalanceAdjustment {
			continue
		}
		entry, err := models.AdjustmentFromPosting(p, primary)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}
