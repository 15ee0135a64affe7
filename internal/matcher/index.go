package matcher

import (
	"bank-ledger-reconciler/internal/models"
)

// LedgerIndex groups ledger rows by account key. Each bucket keeps input order
// so the first-encountered tie-break survives the lookup.
type LedgerIndex struct {
	byAccount map[string][]int
	rows      []models.LedgerPosting
}

// NewLedgerIndex indexes each row under every account it debits or credits.
// Rows without an account are never candidates.
func NewLedgerIndex(rows []models.LedgerPosting) *LedgerIndex {
	idx := &LedgerIndex{
		byAccount: make(map[string][]int),
		rows:      rows,
	}
	for i := range rows {
		for _, key := range rows[i].Accounts() {
			idx.byAccount[key] = append(idx.byAccount[key], i)
		}
	}
	return idx
}

// Candidates returns the input positions of rows booked against account, in
// input order
func (idx *LedgerIndex) Candidates(account string) []int {
	if account == "" {
		return nil
	}
	return idx.byAccount[account]
}

// Row returns the ledger row at input position i
func (idx *LedgerIndex) Row(i int) *models.LedgerPosting {
	return &idx.rows[i]
}

// Accounts returns the number of distinct indexed accounts
func (idx *LedgerIndex) Accounts() int {
	return len(idx.byAccount)
}
