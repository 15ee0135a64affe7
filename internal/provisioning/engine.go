// Package provisioning computes the journal entries that move a negative bank
// balance into a contra account, one net entry per day the provisioned level
// changes.
package provisioning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-ledger-reconciler/internal/balance"
	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/pkg/errors"
	"bank-ledger-reconciler/pkg/logger"
)

// Engine computes, proposes and commits negative-balance adjustments
type Engine struct {
	log   logger.Logger
	newID func() string
	now   func() time.Time
}

// NewEngine creates an engine with random entry ids and the system clock
func NewEngine() *Engine {
	return &Engine{
		log:   logger.GetGlobalLogger().WithComponent("provisioning"),
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// WithIDGenerator replaces the entry id generator. Used by tests.
func (e *Engine) WithIDGenerator(newID func() string) *Engine {
	e.newID = newID
	return e
}

// WithClock replaces the clock that stamps proposals and commits
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func required(closing decimal.Decimal) decimal.Decimal {
	if closing.IsNegative() {
		return closing.Abs()
	}
	return decimal.Zero
}

// ComputeAdjustments returns the entries needed in [start, end] so that the
// provisioned level equals the absolute negative closing balance of each day.
//
// The level in effect before start is the requirement of the day before
// start, or zero when the account history starts inside the window.
// Adjustments already booked on a day count toward that day, so running
// again after committing yields nothing.
func (e *Engine) ComputeAdjustments(ctx context.Context, account models.AccountRegistryEntry,
	source MovementSource, start, end time.Time) ([]models.AdjustmentEntry, error) {

	if err := checkAccounts(account); err != nil {
		return nil, err
	}

	start, end = models.DateOnly(start), models.DateOnly(end)
	key := account.Key()

	movements, err := source.Movements(ctx, account)
	if err != nil {
		return nil, errors.ProvisioningError(errors.CodeMovementSource, key, err)
	}
	booked, err := source.BookedAdjustments(ctx, account)
	if err != nil {
		return nil, errors.ProvisioningError(errors.CodeMovementSource, key, err)
	}

	history, err := balance.ProjectFullHistory(key, account.OpeningBalance, account.OpeningBalanceDate, movements, start, end)
	if err != nil {
		return nil, err
	}

	bookedByDay := make(map[time.Time]decimal.Decimal)
	for i := range booked {
		day := models.DateOnly(booked[i].Date)
		bookedByDay[day] = bookedByDay[day].Add(booked[i].SignedAmount())
	}

	previous := decimal.Zero
	if history.Start().Before(start) {
		previous = required(history.ClosingBefore(start))
	}

	entries := make([]models.AdjustmentEntry, 0)
	for _, day := range history.Window(start, end) {
		level := required(day.ClosingBalance)
		delta := level.Sub(previous).Sub(bookedByDay[day.Date]).Round(2)
		previous = level

		if delta.IsZero() {
			continue
		}
		entries = append(entries, e.entry(account, day.Date, delta))
	}

	e.log.WithFields(logger.Fields{
		"account": key,
		"start":   start.Format(models.DateLayout),
		"end":     end.Format(models.DateLayout),
		"entries": len(entries),
		"booked":  len(booked),
	}).Debug("negative balance analysis finished")

	return entries, nil
}

func (e *Engine) entry(account models.AccountRegistryEntry, day time.Time, delta decimal.Decimal) models.AdjustmentEntry {
	entry := models.AdjustmentEntry{
		ID:         e.newID(),
		BatchID:    e.newID(),
		AccountKey: account.Key(),
		Date:       day,
		Amount:     delta.Abs(),
		Origin:     models.OriginNegativeBalanceAdjustment,
	}

	if delta.IsPositive() {
		entry.Direction = models.DirectionProvision
		entry.DebitAccount = account.PrimaryAccountCode
		entry.CreditAccount = account.ContraAccountCode
		entry.Narrative = fmt.Sprintf("Provisão para cobertura de saldo negativo em %s", day.Format(models.DisplayDateLayout))
	} else {
		entry.Direction = models.DirectionReversal
		entry.DebitAccount = account.ContraAccountCode
		entry.CreditAccount = account.PrimaryAccountCode
		entry.Narrative = fmt.Sprintf("Reversão de provisão de saldo negativo em %s", day.Format(models.DisplayDateLayout))
	}

	return entry
}

func checkAccounts(account models.AccountRegistryEntry) error {
	key := account.Key()
	switch {
	case strings.TrimSpace(account.PrimaryAccountCode) == "":
		return errors.ConfigurationError(errors.CodeMissingAccountMapping, "primary_account_code", key, nil)
	case strings.TrimSpace(account.ContraAccountCode) == "":
		return errors.ConfigurationError(errors.CodeMissingAccountMapping, "contra_account_code", key, nil)
	}
	return nil
}
