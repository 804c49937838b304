package lifecycle

// =============================================================================
// CHANGE CAPTURE
// =============================================================================

// Change is the before/after status pair captured at write time. Approval
// side effects fire on the Change, never on the stored status alone, so a
// re-save of an already approved record is distinguishable from a fresh
// approval.
type Change[S ~string] struct {
	Previous S
	Current  S
}

// NewChange captures a transition about to be persisted.
func NewChange[S ~string](previous, current S) Change[S] {
	return Change[S]{Previous: previous, Current: current}
}

// Entered reports whether this write moved the record into s from some
// other state. A self-transition (Previous == Current == s) returns false:
// the record was already there.
func (c Change[S]) Entered(s S) bool {
	return c.Current == s && c.Previous != s
}

// IsSelf reports whether the write left the status unchanged.
func (c Change[S]) IsSelf() bool {
	return c.Previous == c.Current
}
