package lifecycle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/althea/credit-engine/lifecycle"
)

// =============================================================================
// TRANSITION TABLE
// =============================================================================

func TestValidate_LegalTransitions(t *testing.T) {
	cases := []struct {
		from, to lifecycle.Status
	}{
		{lifecycle.StatusPendingReview, lifecycle.StatusApproved},
		{lifecycle.StatusPendingReview, lifecycle.StatusRejected},
		{lifecycle.StatusApproved, lifecycle.StatusImplemented},
	}

	for _, tc := range cases {
		got, err := lifecycle.AdjustmentTransitions.Validate(tc.from, tc.to)
		if err != nil {
			t.Errorf("%s -> %s: unexpected error: %v", tc.from, tc.to, err)
		}
		if got != tc.to {
			t.Errorf("%s -> %s: expected %s back, got %s", tc.from, tc.to, tc.to, got)
		}
	}
}

func TestValidate_SelfTransitionAlwaysAllowed(t *testing.T) {
	// Idempotent re-saves must be legal from every state, including
	// terminal ones, without appearing in the whitelist.
	for _, s := range []lifecycle.Status{
		lifecycle.StatusPendingReview,
		lifecycle.StatusApproved,
		lifecycle.StatusRejected,
		lifecycle.StatusImplemented,
	} {
		if _, err := lifecycle.AdjustmentTransitions.Validate(s, s); err != nil {
			t.Errorf("self-transition from %s should be allowed, got %v", s, err)
		}
	}
}

func TestValidate_IllegalTransitions(t *testing.T) {
	cases := []struct {
		from, to lifecycle.Status
	}{
		{lifecycle.StatusApproved, lifecycle.StatusPendingReview},
		{lifecycle.StatusApproved, lifecycle.StatusRejected},
		{lifecycle.StatusRejected, lifecycle.StatusApproved},
		{lifecycle.StatusRejected, lifecycle.StatusImplemented},
		{lifecycle.StatusImplemented, lifecycle.StatusPendingReview},
		{lifecycle.StatusPendingReview, lifecycle.StatusImplemented},
	}

	for _, tc := range cases {
		_, err := lifecycle.AdjustmentTransitions.Validate(tc.from, tc.to)
		if !errors.Is(err, lifecycle.ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tc.from, tc.to, err)
		}

		var ite *lifecycle.InvalidTransitionError
		if !errors.As(err, &ite) {
			t.Errorf("%s -> %s: expected *InvalidTransitionError, got %T", tc.from, tc.to, err)
			continue
		}
		if ite.Current != string(tc.from) || ite.Requested != string(tc.to) {
			t.Errorf("error should name both endpoints, got %v", ite)
		}
	}
}

func TestTerminal(t *testing.T) {
	table := lifecycle.AdjustmentTransitions
	if table.Terminal(lifecycle.StatusPendingReview) {
		t.Error("pending_review should not be terminal")
	}
	if !table.Terminal(lifecycle.StatusRejected) || !table.Terminal(lifecycle.StatusImplemented) {
		t.Error("rejected and implemented should be terminal")
	}
}

// =============================================================================
// CHANGE CAPTURE
// =============================================================================

func TestChange_EnteredDistinguishesReSaves(t *testing.T) {
	fresh := lifecycle.NewChange(lifecycle.StatusPendingReview, lifecycle.StatusApproved)
	if !fresh.Entered(lifecycle.StatusApproved) {
		t.Error("pending_review -> approved should count as entering approved")
	}

	resave := lifecycle.NewChange(lifecycle.StatusApproved, lifecycle.StatusApproved)
	if resave.Entered(lifecycle.StatusApproved) {
		t.Error("approved -> approved re-save must not count as entering approved")
	}
	if !resave.IsSelf() {
		t.Error("approved -> approved should be a self-transition")
	}
}

// =============================================================================
// EFFECT QUEUE
// =============================================================================

func TestQueue_FlushRunsEffectsInOrder(t *testing.T) {
	var q lifecycle.Queue
	var ran []int

	q.Enqueue(func(ctx context.Context) error { ran = append(ran, 1); return nil })
	q.Enqueue(func(ctx context.Context) error { ran = append(ran, 2); return nil })

	if err := q.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ran) != 2 || ran[0] != 1 || ran[1] != 2 {
		t.Errorf("expected effects in enqueue order, got %v", ran)
	}

	// A second flush must be a no-op.
	if err := q.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ran) != 2 {
		t.Errorf("effects ran twice: %v", ran)
	}
}

func TestQueue_DiscardDropsEffects(t *testing.T) {
	var q lifecycle.Queue
	ran := false

	q.Enqueue(func(ctx context.Context) error { ran = true; return nil })
	q.Discard()

	if err := q.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran {
		t.Error("discarded effect must never run")
	}
}

func TestQueue_FlushStopsOnFirstError(t *testing.T) {
	var q lifecycle.Queue
	boom := errors.New("boom")
	secondRan := false

	q.Enqueue(func(ctx context.Context) error { return boom })
	q.Enqueue(func(ctx context.Context) error { secondRan = true; return nil })

	if err := q.Flush(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if secondRan {
		t.Error("flush should stop at the first failing effect")
	}
}
