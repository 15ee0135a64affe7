// Package history keeps the append-only statement history and the ledger
// journal in memory.
package history

import (
	"sort"
	"sync"
	"time"

	"bank-ledger-reconciler/internal/models"
)

// InsertStats reports the outcome of an insert
type InsertStats struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
}

// StatementHistory is an append-only set of statement lines keyed by ID.
// Inserting a line whose ID is already present is a no-op.
type StatementHistory struct {
	mu    sync.RWMutex
	rows  []models.BankTransaction
	ids   map[string]bool
	byKey map[string][]int
}

// NewStatementHistory creates an empty history
func NewStatementHistory() *StatementHistory {
	return &StatementHistory{
		ids:   make(map[string]bool),
		byKey: make(map[string][]int),
	}
}

// Insert appends rows that are not yet present. Rows without an ID or account
// key are rejected.
func (h *StatementHistory) Insert(rows []models.BankTransaction) InsertStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	var stats InsertStats
	for _, row := range rows {
		switch {
		case row.ID == "" || row.AccountKey == "":
			stats.Rejected++
		case h.ids[row.ID]:
			stats.Duplicates++
		default:
			h.ids[row.ID] = true
			h.byKey[row.AccountKey] = append(h.byKey[row.AccountKey], len(h.rows))
			h.rows = append(h.rows, row)
			stats.Inserted++
		}
	}

	return stats
}

// Len returns the number of stored lines
func (h *StatementHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rows)
}

// ForAccount returns the full history of one account, ordered by date and
// then source id
func (h *StatementHistory) ForAccount(accountKey string) []models.BankTransaction {
	return h.Load(accountKey, time.Time{}, time.Time{})
}

// Load returns the lines of one account dated in [from, to], ordered by date
// and then source id. A zero bound is open.
func (h *StatementHistory) Load(accountKey string, from, to time.Time) []models.BankTransaction {
	h.mu.RLock()
	defer h.mu.RUnlock()

	from, to = dateOrZero(from), dateOrZero(to)
	out := make([]models.BankTransaction, 0, len(h.byKey[accountKey]))
	for _, i := range h.byKey[accountKey] {
		row := h.rows[i]
		if !from.IsZero() && row.PostingDate.Before(from) {
			continue
		}
		if !to.IsZero() && row.PostingDate.After(to) {
			continue
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PostingDate.Equal(out[j].PostingDate) {
			return out[i].PostingDate.Before(out[j].PostingDate)
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

// Accounts returns the account keys present, sorted
func (h *StatementHistory) Accounts() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	keys := make([]string, 0, len(h.byKey))
	for k := range h.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dateOrZero(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return models.DateOnly(t)
}
