/*
queue.go - Post-commit effect queue

PURPOSE:
  Approval side effects (applying proposed values to a parent entity,
  materializing a payment schedule) must never act on a write that is later
  rolled back, and must never be visible before the triggering write is
  durable. The Queue models this as: enqueue effects while the transaction
  is open, flush them only after a successful commit, drop them on
  rollback.

ORDERING GUARANTEE:
  Effects run strictly after the enclosing transaction commits, in enqueue
  order. An effect that needs atomicity opens its own transaction.

USAGE:
  Stores hand a fresh Queue to each transaction closure:

    err := store.WithTx(ctx, func(tx Store, fx *lifecycle.Queue) error {
        ...
        if change.Entered(StatusApproved) {
            fx.Enqueue(func(ctx context.Context) error {
                return implement(ctx)
            })
        }
        return nil
    })

  WithTx calls Flush after commit and Discard on any error.
*/
package lifecycle

import "context"

// Effect is a deferred side effect of a committed write.
type Effect func(ctx context.Context) error

// Queue collects effects during a transaction. The zero value is ready to
// use. A Queue is scoped to a single transaction and is not safe for
// concurrent use.
type Queue struct {
	effects []Effect
}

// Enqueue registers an effect to run after the enclosing transaction
// commits.
func (q *Queue) Enqueue(e Effect) {
	q.effects = append(q.effects, e)
}

// Len returns the number of pending effects.
func (q *Queue) Len() int { return len(q.effects) }

// Flush runs all pending effects in enqueue order and empties the queue.
// The first effect error stops the flush and is returned; the triggering
// write itself has already committed at that point.
func (q *Queue) Flush(ctx context.Context) error {
	effects := q.effects
	q.effects = nil
	for _, e := range effects {
		if err := e(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops all pending effects. Called when the enclosing transaction
// rolls back.
func (q *Queue) Discard() {
	q.effects = nil
}
