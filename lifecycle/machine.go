/*
Package lifecycle provides the generic adjustment-lifecycle engine.

PURPOSE:
  This package contains the domain-agnostic pieces shared by every
  reviewable change in the system: the whitelist-based status transition
  machine, the before/after change capture used to gate approval side
  effects, the post-commit effect queue, and the repository-wide error
  taxonomy.

KEY CONCEPTS:
  - Table:  a transition whitelist parametrized over a status type
  - Change: the previous/current pair captured at write time
  - Queue:  effects deferred until the enclosing transaction commits

DESIGN PRINCIPLES:
  1. One machine, many instantiations: credit line adjustments, subline
     amount/rate/status adjustments, and loan terms all reuse Table with
     their own status sets.
  2. Idempotency by rule, not by table: a self-transition is always legal,
     even from a terminal state, without appearing in the whitelist.
  3. Explicit capture: "was it newly approved?" is answered by a Change
     value threaded through the commit path, never by global state.

USAGE:
  var Transitions = lifecycle.Table[Status]{
      StatusPendingReview: {StatusApproved, StatusRejected},
      StatusApproved:      {StatusImplemented},
      StatusRejected:      {},
      StatusImplemented:   {},
  }

  next, err := Transitions.Validate(current, requested)

SEE ALSO:
  - change.go: Change capture and the Entered gate
  - queue.go:  Post-commit effect queue
  - errors.go: Error taxonomy
*/
package lifecycle

// =============================================================================
// TRANSITION TABLE
// =============================================================================

// Table is a whitelist of legal status transitions. A status mapped to an
// empty slice is terminal. Statuses absent from the table have no legal
// outgoing transitions at all.
type Table[S ~string] map[S][]S

// Validate returns the requested status when the move from current is
// legal. A self-transition is always accepted, bypassing the whitelist,
// so re-saving an unchanged status stays idempotent even from terminal
// states. Illegal moves return an *InvalidTransitionError naming both
// endpoints.
func (t Table[S]) Validate(current, requested S) (S, error) {
	if current == requested {
		return requested, nil
	}
	for _, allowed := range t[current] {
		if allowed == requested {
			return requested, nil
		}
	}
	return requested, &InvalidTransitionError{
		Current:   string(current),
		Requested: string(requested),
	}
}

// Terminal reports whether s has no outgoing transitions.
func (t Table[S]) Terminal(s S) bool {
	return len(t[s]) == 0
}

// =============================================================================
// STANDARD ADJUSTMENT LIFECYCLE
// =============================================================================

// Status is the review state shared by every adjustment record. Loan terms
// use their own smaller status set (see the loan package).
type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusImplemented   Status = "implemented"
)

// AdjustmentTransitions is the lifecycle shared by all adjustment records:
// pending_review is reviewed into approved or rejected; approved records
// are implemented automatically; rejected and implemented are terminal.
var AdjustmentTransitions = Table[Status]{
	StatusPendingReview: {StatusApproved, StatusRejected},
	StatusApproved:      {StatusImplemented},
	StatusRejected:      {},
	StatusImplemented:   {},
}
