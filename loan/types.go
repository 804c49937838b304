/*
Package loan implements loan terms and their scheduled payments.

PURPOSE:
  A loan term attaches repayment parameters (term length, frequency,
  payment due day, start date) to exactly one credit subline. Terms carry
  their own three-state review machine, smaller than the generic
  adjustment lifecycle: approval is terminal here, there is no
  "implemented" stage. The transition into approved materializes the
  amortization schedule as scheduled payment rows, exactly once.

KEY CONCEPTS IN THIS FILE (types.go):
  - TermStatus + TermTransitions: pending -> {approved, rejected}, both
    terminal, idempotent self-transitions allowed
  - LoanTerm: one per subline; a second term for the same subline is a
    fatal integrity error
  - ScheduledPayment: one row per real payment (the schedule's anchor row
    is never persisted), independently trackable after creation

SEE ALSO:
  - service.go: Review and materialization
  - amortization: The schedule computation
*/
package loan

import (
	"fmt"
	"time"

	"github.com/althea/credit-engine/amortization"
	"github.com/althea/credit-engine/lifecycle"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LOAN TERM
// =============================================================================

type TermStatus string

const (
	TermPending  TermStatus = "pending"
	TermApproved TermStatus = "approved"
	TermRejected TermStatus = "rejected"
)

// TermTransitions: both outcomes of review are terminal. Unlike the
// generic adjustment lifecycle there is no implemented stage.
var TermTransitions = lifecycle.Table[TermStatus]{
	TermPending:  {TermApproved, TermRejected},
	TermApproved: {},
	TermRejected: {},
}

// ErrDuplicateLoanTerm is returned when a subline already has a loan term.
// This is an integrity violation, not recoverable input.
var ErrDuplicateLoanTerm = fmt.Errorf("credit subline already has a loan term: %w", lifecycle.ErrIntegrity)

type LoanTerm struct {
	ID              string
	CreditSublineID string
	TermLength      int
	Frequency       amortization.Frequency
	PaymentDueDay   int // 1-31; 0 = unset; ignored for biweekly terms
	StartDate       time.Time
	Status          TermStatus
	Created         time.Time
	Updated         time.Time
}

// =============================================================================
// SCHEDULED PAYMENT
// =============================================================================

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentDelayed   PaymentStatus = "delayed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentDelayed:
		return true
	}
	return false
}

// ScheduledPayment is one materialized row of an approved term's
// amortization schedule. Status and actual payment date are mutable
// independently of the schedule itself.
type ScheduledPayment struct {
	ID                 string
	LoanTermID         string
	DueDate            time.Time
	AmountDue          decimal.Decimal
	PrincipalComponent decimal.Decimal
	InterestComponent  decimal.Decimal
	Status             PaymentStatus
	ActualPaymentDate  *time.Time
}
