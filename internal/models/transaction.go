package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction is one normalized bank-statement line.
// Value is positive for credits and negative for debits.
type BankTransaction struct {
	ID          string          `json:"id"`
	SourceID    string          `json:"source_id"`
	PostingDate time.Time       `json:"posting_date"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
	BankCode    string          `json:"bank_code"`
	AccountKey  string          `json:"account_key"`
}

// NewBankTransaction creates a statement line without an identity. Call
// AssignTransactionIDs once the whole statement is loaded.
func NewBankTransaction(sourceID string, date time.Time, value decimal.Decimal, description, bankCode, accountKey string) BankTransaction {
	return BankTransaction{
		SourceID:    strings.TrimSpace(sourceID),
		PostingDate: DateOnly(date),
		Value:       value,
		Description: strings.TrimSpace(description),
		BankCode:    strings.TrimSpace(bankCode),
		AccountKey:  accountKey,
	}
}

// Validate performs basic validation on the BankTransaction
func (t *BankTransaction) Validate() error {
	if t.PostingDate.IsZero() {
		return fmt.Errorf("bank transaction posting date cannot be zero")
	}
	if strings.TrimSpace(t.AccountKey) == "" {
		return fmt.Errorf("bank transaction account key cannot be empty")
	}
	return nil
}

// IsDebit returns true if the value represents money leaving the account
func (t *BankTransaction) IsDebit() bool {
	return t.Value.IsNegative()
}

// IsCredit returns true if the value represents money entering the account
func (t *BankTransaction) IsCredit() bool {
	return t.Value.IsPositive()
}

// String returns a string representation of the BankTransaction
func (t *BankTransaction) String() string {
	return fmt.Sprintf("BankTransaction{ID: %s, Account: %s, Value: %s, Date: %s}",
		t.ID, t.AccountKey, t.Value.StringFixed(2), t.PostingDate.Format(DateLayout))
}

func (t *BankTransaction) identityKey() string {
	return strings.Join([]string{
		t.SourceID,
		t.PostingDate.Format(DateLayout),
		t.Value.StringFixed(2),
		t.Description,
		t.AccountKey,
	}, "_")
}

func hashKey(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// AssignTransactionIDs returns copies of rows with a stable ID in each.
// Repeated source lines keep distinct identities: the n-th repetition of the
// same content hashes "<content>_DUPn" instead of "<content>".
func AssignTransactionIDs(rows []BankTransaction) []BankTransaction {
	out := make([]BankTransaction, len(rows))
	seen := make(map[string]int, len(rows))

	for i, row := range rows {
		key := row.identityKey()
		n := seen[key]
		seen[key] = n + 1
		if n > 0 {
			key = fmt.Sprintf("%s_DUP%d", key, n)
		}

		row.ID = hashKey(key)
		out[i] = row
	}

	return out
}
