// Package matcher reconciles bank-statement lines against ledger postings.
//
// Reconciliation runs an ordered list of passes, strictest first. Each pass
// pairs every still-unmatched bank line with the closest unmatched ledger
// posting of the same account whose absolute amount and date fall inside the
// pass tolerances. Earlier passes claim matches first and nothing matched is
// ever offered again.
//
// Example usage:
//
//	cfg := matcher.DefaultMatchingConfig()
//	result, err := matcher.Reconcile(bankRows, ledgerRows, cfg)
package matcher

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Pass is one tolerance configuration applied to all currently unmatched rows
type Pass struct {
	Name string `json:"name" mapstructure:"name"`

	// AmountTolerance is the absolute currency difference allowed between
	// the absolute bank and ledger amounts
	AmountTolerance decimal.Decimal `json:"amount_tolerance" mapstructure:"amount_tolerance"`

	// DateToleranceDays is the symmetric day window around the bank date
	DateToleranceDays int `json:"date_tolerance_days" mapstructure:"date_tolerance_days"`
}

// Validate checks if the pass is usable
func (p *Pass) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("pass name cannot be empty")
	}
	if p.AmountTolerance.IsNegative() {
		return fmt.Errorf("pass %q: amount tolerance cannot be negative: %s", p.Name, p.AmountTolerance)
	}
	if p.DateToleranceDays < 0 {
		return fmt.Errorf("pass %q: date tolerance days cannot be negative: %d", p.Name, p.DateToleranceDays)
	}
	return nil
}

// String returns a human-readable description of the pass
func (p *Pass) String() string {
	return fmt.Sprintf("%s (amount ±%s, date ±%d days)", p.Name, p.AmountTolerance.StringFixed(2), p.DateToleranceDays)
}

// DefaultPasses returns the four standard passes, strictest first
func DefaultPasses() []Pass {
	return []Pass{
		{Name: "Pass 1: exact amount, date and account", AmountTolerance: decimal.Zero, DateToleranceDays: 0},
		{Name: "Pass 2: exact amount and account (date ±1 day)", AmountTolerance: decimal.Zero, DateToleranceDays: 1},
		{Name: "Pass 3: exact amount and account (date ±5 days)", AmountTolerance: decimal.Zero, DateToleranceDays: 5},
		{Name: "Pass 4: exact date and account (amount ±0.05)", AmountTolerance: decimal.NewFromFloat(0.05), DateToleranceDays: 0},
	}
}

// MatchingConfig holds the ordered pass list. The order is the tie-break
// policy between passes.
type MatchingConfig struct {
	Passes []Pass `json:"passes" mapstructure:"passes"`
}

// DefaultMatchingConfig returns the standard four-pass configuration
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{Passes: DefaultPasses()}
}

// StrictMatchingConfig only accepts exact amount, date and account matches
func StrictMatchingConfig() *MatchingConfig {
	return &MatchingConfig{Passes: DefaultPasses()[:1]}
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if len(mc.Passes) == 0 {
		return fmt.Errorf("at least one matching pass is required")
	}

	names := make(map[string]bool, len(mc.Passes))
	for i := range mc.Passes {
		if err := mc.Passes[i].Validate(); err != nil {
			return fmt.Errorf("pass %d: %w", i+1, err)
		}
		if names[mc.Passes[i].Name] {
			return fmt.Errorf("pass %d: duplicate pass name %q", i+1, mc.Passes[i].Name)
		}
		names[mc.Passes[i].Name] = true
	}

	return nil
}

// Clone creates a deep copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}
	passes := make([]Pass, len(mc.Passes))
	copy(passes, mc.Passes)
	return &MatchingConfig{Passes: passes}
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	parts := make([]string, len(mc.Passes))
	for i := range mc.Passes {
		parts[i] = mc.Passes[i].String()
	}
	return fmt.Sprintf("MatchingConfig{%s}", strings.Join(parts, "; "))
}
