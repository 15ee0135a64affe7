package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripLeadingZeros(s string) string {
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" && s != "" {
		return "0"
	}
	return trimmed
}

// NormalizeAccountKey canonicalizes a branch and account number into the
// join key: the branch zero-padded to four digits followed by the account
// without leading zeros. Non-digits are dropped. Two empty inputs yield "".
func NormalizeAccountKey(branch, account string) string {
	b := digitsOnly(branch)
	a := digitsOnly(account)
	if b == "" && a == "" {
		return ""
	}
	if len(b) < 4 {
		b = strings.Repeat("0", 4-len(b)) + b
	}
	return b + stripLeadingZeros(a)
}

// NormalizeRawKey canonicalizes a key that arrives already concatenated, as in
// statement exports: the first four digits are the branch. Keys with fewer
// than five digits are returned as digits only.
func NormalizeRawKey(raw string) string {
	d := digitsOnly(raw)
	if len(d) < 5 {
		return d
	}
	return d[:4] + stripLeadingZeros(d[4:])
}

// AccountRegistryEntry is a registered bank account and its ledger mapping
type AccountRegistryEntry struct {
	AccountKey         string          `json:"account_key"`
	BankCode           string          `json:"bank_code"`
	Branch             string          `json:"branch"`
	Account            string          `json:"account"`
	Description        string          `json:"description"`
	PrimaryAccountCode string          `json:"primary_account_code"`
	ContraAccountCode  string          `json:"contra_account_code"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	OpeningBalanceDate *time.Time      `json:"opening_balance_date,omitempty"`
}

// Key returns AccountKey, deriving it from branch and account when empty
func (e *AccountRegistryEntry) Key() string {
	if e.AccountKey != "" {
		return NormalizeRawKey(e.AccountKey)
	}
	return NormalizeAccountKey(e.Branch, e.Account)
}

// Validate checks that the entry can be joined against statement rows
func (e *AccountRegistryEntry) Validate() error {
	if e.Key() == "" {
		return fmt.Errorf("account registry entry has no branch/account")
	}
	return nil
}

// HasProvisioningAccounts reports whether both ledger codes needed to book
// negative-balance adjustments are configured
func (e *AccountRegistryEntry) HasProvisioningAccounts() bool {
	return strings.TrimSpace(e.PrimaryAccountCode) != "" && strings.TrimSpace(e.ContraAccountCode) != ""
}

// AccountRegistry indexes registry entries by normalized key, keeping load order
type AccountRegistry struct {
	entries []AccountRegistryEntry
	byKey   map[string]int
}

// NewAccountRegistry builds a registry. Keys are normalized; a key registered
// twice is an error.
func NewAccountRegistry(entries []AccountRegistryEntry) (*AccountRegistry, error) {
	r := &AccountRegistry{
		entries: make([]AccountRegistryEntry, 0, len(entries)),
		byKey:   make(map[string]int, len(entries)),
	}

	for i := range entries {
		entry := entries[i]
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("registry entry %d: %w", i+1, err)
		}
		entry.AccountKey = entry.Key()
		if _, dup := r.byKey[entry.AccountKey]; dup {
			return nil, fmt.Errorf("account %s is registered twice", entry.AccountKey)
		}
		r.byKey[entry.AccountKey] = len(r.entries)
		r.entries = append(r.entries, entry)
	}

	return r, nil
}

// Lookup returns the entry registered under key
func (r *AccountRegistry) Lookup(key string) (AccountRegistryEntry, bool) {
	if r == nil {
		return AccountRegistryEntry{}, false
	}
	i, ok := r.byKey[NormalizeRawKey(key)]
	if !ok {
		return AccountRegistryEntry{}, false
	}
	return r.entries[i], true
}

// Entries returns a copy of the entries in load order
func (r *AccountRegistry) Entries() []AccountRegistryEntry {
	if r == nil {
		return nil
	}
	out := make([]AccountRegistryEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// LinkedBankTransaction is a statement line joined with the ledger account its
// bank account is registered under. LinkedAccountCode is "" when the account
// is unregistered or has no primary ledger account.
type LinkedBankTransaction struct {
	BankTransaction
	LinkedAccountCode string `json:"linked_account_code"`
}

// LinkStatement joins statement rows with the registry. The input is not modified.
func (r *AccountRegistry) LinkStatement(rows []BankTransaction) []LinkedBankTransaction {
	out := make([]LinkedBankTransaction, len(rows))
	for i, row := range rows {
		out[i] = LinkedBankTransaction{BankTransaction: row}
		if entry, ok := r.Lookup(row.AccountKey); ok {
			out[i].LinkedAccountCode = strings.TrimSpace(entry.PrimaryAccountCode)
		}
	}
	return out
}
