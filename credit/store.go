package credit

import (
	"context"

	"github.com/althea/credit-engine/lifecycle"
)

// Store is the persistence boundary for credit entities. Save methods
// upsert; Get methods return lifecycle.ErrNotFound-wrapped errors for
// missing records.
type Store interface {
	GetCreditLine(ctx context.Context, id string) (*CreditLine, error)
	ListCreditLines(ctx context.Context) ([]CreditLine, error)
	SaveCreditLine(ctx context.Context, line *CreditLine) error

	GetCreditSubline(ctx context.Context, id string) (*CreditSubline, error)
	ListCreditSublines(ctx context.Context, lineID string) ([]CreditSubline, error)
	SaveCreditSubline(ctx context.Context, sub *CreditSubline) error

	GetLineAdjustment(ctx context.Context, id string) (*LineAdjustment, error)
	ListLineAdjustments(ctx context.Context, lineID string) ([]LineAdjustment, error)
	SaveLineAdjustment(ctx context.Context, adj *LineAdjustment) error

	GetAmountAdjustment(ctx context.Context, id string) (*AmountAdjustment, error)
	ListAmountAdjustments(ctx context.Context, sublineID string) ([]AmountAdjustment, error)
	SaveAmountAdjustment(ctx context.Context, adj *AmountAdjustment) error

	GetRateAdjustment(ctx context.Context, id string) (*RateAdjustment, error)
	ListRateAdjustments(ctx context.Context, sublineID string) ([]RateAdjustment, error)
	SaveRateAdjustment(ctx context.Context, adj *RateAdjustment) error

	GetStatusAdjustment(ctx context.Context, id string) (*StatusAdjustment, error)
	ListStatusAdjustments(ctx context.Context, sublineID string) ([]StatusAdjustment, error)
	SaveStatusAdjustment(ctx context.Context, adj *StatusAdjustment) error
}

// TxStore is a Store that can run a closure inside one atomic transaction.
// Effects enqueued on the queue run only after the transaction durably
// commits and are dropped on rollback.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(tx Store, fx *lifecycle.Queue) error) error
}
