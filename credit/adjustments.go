/*
adjustments.go - Reviewable adjustment records

PURPOSE:
  One concrete record type per adjustable attribute set. Every record
  follows the same shape:
    - a parent reference (the credit line or subline it adjusts)
    - previous value(s) captured from the parent at creation, immutable
    - proposed value(s) supplied by the proposer
    - the shared lifecycle status (lifecycle.Status)
    - an effective date, set at creation and refreshed at implementation
    - a required free-text reason

  Nil proposed fields on a LineAdjustment mean "leave unchanged"; only
  non-nil fields are applied to the parent on approval.

SEE ALSO:
  - service.go: Proposal, review, and the approval commit hook
*/
package credit

import (
	"time"

	"github.com/althea/credit-engine/lifecycle"
	"github.com/shopspring/decimal"
)

// LineAdjustment proposes changes to one or more credit line fields.
type LineAdjustment struct {
	ID           string
	CreditLineID string

	// Captured from the parent at creation.
	PreviousLimit  decimal.Decimal
	PreviousStatus LineStatus

	// Proposed values; nil leaves the field unchanged.
	NewLimit    *decimal.Decimal
	NewEndDate  *time.Time
	NewStatus   *LineStatus
	NewCurrency *Currency

	AdjustmentStatus lifecycle.Status
	EffectiveDate    time.Time
	Reason           string
	Created          time.Time
}

// AmountAdjustment proposes a new subline amount.
type AmountAdjustment struct {
	ID              string
	CreditSublineID string

	InitialAmount  decimal.Decimal
	AdjustedAmount decimal.Decimal

	AdjustmentStatus lifecycle.Status
	EffectiveDate    time.Time
	Reason           string
	Created          time.Time
}

// RateAdjustment proposes a new subline interest rate. The adjusted rate
// may be supplied in percentage form; it is normalized when applied.
type RateAdjustment struct {
	ID              string
	CreditSublineID string

	InitialRate  decimal.Decimal
	AdjustedRate decimal.Decimal

	AdjustmentStatus lifecycle.Status
	EffectiveDate    time.Time
	Reason           string
	Created          time.Time
}

// StatusAdjustment proposes a new subline status. Approving a proposed
// "active" status requires the owning credit line to be approved.
type StatusAdjustment struct {
	ID              string
	CreditSublineID string

	InitialStatus  SublineStatus
	AdjustedStatus SublineStatus

	AdjustmentStatus lifecycle.Status
	EffectiveDate    time.Time
	Reason           string
	Created          time.Time
}
