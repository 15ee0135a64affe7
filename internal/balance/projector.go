// Package balance projects running daily balances from an opening balance and
// dated movements.
package balance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/pkg/errors"
)

// Movement is one dated signed amount. Positive values raise the balance.
type Movement struct {
	Date   time.Time
	Amount decimal.Decimal
}

// History is the complete daily axis of an account, from the first day of the
// axis to the last requested day.
type History struct {
	AccountKey string
	Days       []models.DailyBalance
	// Opening is the balance before the first day of the axis.
	Opening decimal.Decimal
}

// Start returns the first day of the axis
func (h *History) Start() time.Time {
	if len(h.Days) == 0 {
		return time.Time{}
	}
	return h.Days[0].Date
}

// ClosingBefore returns the closing balance of the day before d. Days before
// the axis report the opening balance.
func (h *History) ClosingBefore(d time.Time) decimal.Decimal {
	return h.ClosingOn(models.DateOnly(d).AddDate(0, 0, -1))
}

// ClosingOn returns the closing balance of day d. Days before the axis report
// the opening balance; days after it report the last closing balance.
func (h *History) ClosingOn(d time.Time) decimal.Decimal {
	d = models.DateOnly(d)
	if len(h.Days) == 0 || d.Before(h.Days[0].Date) {
		return h.Opening
	}
	i := models.DaysBetween(h.Days[0].Date, d)
	if i >= len(h.Days) {
		return h.Days[len(h.Days)-1].ClosingBalance
	}
	return h.Days[i].ClosingBalance
}

// Window returns the days of the axis inside [start, end]
func (h *History) Window(start, end time.Time) []models.DailyBalance {
	start, end = models.DateOnly(start), models.DateOnly(end)
	out := make([]models.DailyBalance, 0)
	for _, day := range h.Days {
		if day.Date.Before(start) || day.Date.After(end) {
			continue
		}
		out = append(out, day)
	}
	return out
}

// ProjectFullHistory builds the gap-free daily axis ending at windowEnd.
//
// The axis starts at the earlier of openingDate and the earliest movement.
// When openingDate is nil it starts at the earliest movement, or at
// windowStart when there are no movements. Movements after windowEnd are
// ignored. The opening balance is the balance before the first day.
func ProjectFullHistory(accountKey string, opening decimal.Decimal, openingDate *time.Time,
	movements []Movement, windowStart, windowEnd time.Time) (*History, error) {

	windowStart, windowEnd = models.DateOnly(windowStart), models.DateOnly(windowEnd)
	if windowEnd.Before(windowStart) {
		return nil, errors.ValidationError(errors.CodeInvalidRange, "window",
			windowStart.Format(models.DateLayout)+".."+windowEnd.Format(models.DateLayout), nil)
	}

	daily := aggregate(movements, windowEnd)

	start := windowStart
	switch {
	case openingDate != nil:
		start = models.DateOnly(*openingDate)
		if len(daily) > 0 && daily[0].Date.Before(start) {
			start = daily[0].Date
		}
	case len(daily) > 0:
		start = daily[0].Date
	}
	if start.After(windowEnd) {
		start = windowEnd
	}

	history := &History{
		AccountKey: accountKey,
		Opening:    opening,
		Days:       make([]models.DailyBalance, 0, models.DaysBetween(start, windowEnd)+1),
	}

	running := opening
	next := 0
	for day := start; !day.After(windowEnd); day = day.AddDate(0, 0, 1) {
		movement := decimal.Zero
		if next < len(daily) && daily[next].Date.Equal(day) {
			movement = daily[next].Amount
			next++
		}
		running = running.Add(movement)
		history.Days = append(history.Days, models.DailyBalance{
			AccountKey:     accountKey,
			Date:           day,
			Movement:       movement,
			ClosingBalance: running,
		})
	}

	return history, nil
}

// ProjectDailyBalances returns the days in [windowStart, windowEnd] with
// closing balances accumulated over the full movement history. Callers must
// pass every movement, not only the ones inside the window.
func ProjectDailyBalances(opening decimal.Decimal, openingDate *time.Time, movements []Movement,
	windowStart, windowEnd time.Time) ([]models.DailyBalance, error) {

	history, err := ProjectFullHistory("", opening, openingDate, movements, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	return history.Window(windowStart, windowEnd), nil
}

// aggregate sums movements per calendar day up to end, in date order
func aggregate(movements []Movement, end time.Time) []Movement {
	sums := make(map[time.Time]decimal.Decimal)
	for _, m := range movements {
		day := models.DateOnly(m.Date)
		if day.After(end) {
			continue
		}
		sums[day] = sums[day].Add(m.Amount)
	}

	out := make([]Movement, 0, len(sums))
	for day, amount := range sums {
		out = append(out, Movement{Date: day, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
