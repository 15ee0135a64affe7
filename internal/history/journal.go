package history

import (
	"context"
	"fmt"
	"sync"

	"bank-ledger-reconciler/internal/models"
)

// Journal is an in-memory ledger. It accepts committed postings and serves
// them back per account.
type Journal struct {
	mu       sync.RWMutex
	postings []models.LedgerPosting
	ids      map[string]bool
}

// NewJournal creates a journal holding postings, in order. Postings with an
// id already present are skipped.
func NewJournal(postings []models.LedgerPosting) *Journal {
	j := &Journal{ids: make(map[string]bool, len(postings))}
	for _, p := range postings {
		if j.ids[p.LedgerID] {
			continue
		}
		j.ids[p.LedgerID] = true
		j.postings = append(j.postings, p)
	}
	return j
}

// Append adds postings. The whole call is rejected when any ledger id
// is empty or already present.
func (j *Journal) Append(ctx context.Context, postings []models.LedgerPosting) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	incoming := make(map[string]bool, len(postings))
	for _, p := range postings {
		if p.LedgerID == "" {
			return fmt.Errorf("posting without ledger id")
		}
		if j.ids[p.LedgerID] || incoming[p.LedgerID] {
			return fmt.Errorf("ledger id %s already booked", p.LedgerID)
		}
		incoming[p.LedgerID] = true
	}

	for _, p := range postings {
		j.ids[p.LedgerID] = true
		j.postings = append(j.postings, p)
	}
	return nil
}

// All returns every posting in booking order
func (j *Journal) All() []models.LedgerPosting {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]models.LedgerPosting, len(j.postings))
	copy(out, j.postings)
	return out
}

// ForAccount returns the postings debiting or crediting code, in booking order
func (j *Journal) ForAccount(code string) []models.LedgerPosting {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []models.LedgerPosting
	for _, p := range j.postings {
		if p.Touches(code) {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of postings
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.postings)
}
