/*
Package credit implements credit lines, credit sublines, and their
reviewable adjustments.

PURPOSE:
  A credit line carries a limit, currency, validity period, and a review
  status. Sublines sub-allocate a line's limit with their own amount,
  interest rate, and status. Every change to live values goes through an
  adjustment record reviewed under the generic lifecycle engine: proposed
  as pending_review, approved or rejected, and on approval automatically
  applied to the parent and flipped to implemented after the approving
  transaction commits.

KEY CONCEPTS IN THIS FILE (types.go):
  - CreditLine / CreditSubline: the adjustable entities
  - Input-shape guards: positive amounts, digit ceilings, rate bounds
  - Interest-rate normalization: values above 1 are percentages and are
    divided by 100 at save so the stored rate is always a fraction

SEE ALSO:
  - adjustments.go: The four adjustment record types
  - service.go: Proposal and review operations
*/
package credit

import (
	"strings"
	"time"

	"github.com/althea/credit-engine/lifecycle"
	"github.com/shopspring/decimal"
)

// =============================================================================
// CREDIT LINE
// =============================================================================

type LineStatus string

const (
	LinePending  LineStatus = "pending"
	LineApproved LineStatus = "approved"
	LineRejected LineStatus = "rejected"
)

func (s LineStatus) Valid() bool {
	switch s {
	case LinePending, LineApproved, LineRejected:
		return true
	}
	return false
}

type Currency string

const CurrencyMXN Currency = "mxn"

func (c Currency) Valid() bool { return c == CurrencyMXN }

type CreditLine struct {
	ID          string
	CreditLimit decimal.Decimal
	Currency    Currency
	StartDate   time.Time
	EndDate     *time.Time
	Status      LineStatus
	Created     time.Time
}

// =============================================================================
// CREDIT SUBLINE
// =============================================================================

type SublineStatus string

const (
	SublinePending  SublineStatus = "pending"
	SublineActive   SublineStatus = "active"
	SublineInactive SublineStatus = "inactive"
)

func (s SublineStatus) Valid() bool {
	switch s {
	case SublinePending, SublineActive, SublineInactive:
		return true
	}
	return false
}

type CreditSubline struct {
	ID                 string
	CreditLineID       string
	SublineType        string
	SublineAmount      decimal.Decimal
	AmountDisbursed    decimal.Decimal
	OutstandingBalance decimal.Decimal
	InterestRate       decimal.Decimal
	Status             SublineStatus
	Created            time.Time
	Updated            time.Time
}

// =============================================================================
// INPUT-SHAPE GUARDS
// =============================================================================

// maxCreditLimitDigits bounds the total digit count of a credit limit.
const maxCreditLimitDigits = 12

// maxAdjustedAmount caps proposed subline amounts.
var maxAdjustedAmount = decimal.RequireFromString("1000000000.00")

// ValidateCreditLimit rejects non-positive limits and limits wider than
// the digit ceiling.
func ValidateCreditLimit(limit decimal.Decimal) error {
	if limit.Sign() <= 0 {
		return &lifecycle.ValidationError{Field: "credit_limit", Message: "credit limit must be greater than 0"}
	}
	if digitCount(limit) > maxCreditLimitDigits {
		return &lifecycle.ValidationError{Field: "credit_limit", Message: "credit limit must not exceed 12 digits"}
	}
	return nil
}

// ValidateSublineAmount rejects non-positive amounts and amounts above the
// maximum allowed limit.
func ValidateSublineAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return &lifecycle.ValidationError{Field: "amount", Message: "amount must be greater than 0"}
	}
	if amount.GreaterThan(maxAdjustedAmount) {
		return &lifecycle.ValidationError{Field: "amount", Message: "amount cannot exceed 1000000000.00"}
	}
	return nil
}

// ValidateInterestRate rejects negative rates. Rates above 1 are accepted
// here and normalized to fractions at save time.
func ValidateInterestRate(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return &lifecycle.ValidationError{Field: "interest_rate", Message: "interest rate cannot be negative"}
	}
	return nil
}

// ValidatePeriod rejects an end date at or before the start date.
func ValidatePeriod(start time.Time, end *time.Time) error {
	if end != nil && !start.Before(*end) {
		return &lifecycle.ValidationError{Field: "period", Message: "start date must be before the end date"}
	}
	return nil
}

// NormalizeRate converts percentage-form rates to fractions: any value
// greater than 1 is divided by 100. The stored rate is always in [0, 1].
func NormalizeRate(rate decimal.Decimal) decimal.Decimal {
	if rate.GreaterThan(decimal.NewFromInt(1)) {
		return rate.Div(decimal.NewFromInt(100))
	}
	return rate
}

// digitCount counts digits, ignoring sign and decimal point.
func digitCount(d decimal.Decimal) int {
	s := d.String()
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, ".", "")
	return len(s)
}
