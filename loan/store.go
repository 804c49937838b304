package loan

import (
	"context"

	"github.com/althea/credit-engine/credit"
	"github.com/althea/credit-engine/lifecycle"
)

// Store is the persistence boundary for loan terms and their payments.
// InsertLoanTerm must enforce the one-term-per-subline invariant and wrap
// violations in ErrDuplicateLoanTerm / lifecycle.ErrIntegrity.
type Store interface {
	GetLoanTerm(ctx context.Context, id string) (*LoanTerm, error)
	GetLoanTermBySubline(ctx context.Context, sublineID string) (*LoanTerm, error)
	InsertLoanTerm(ctx context.Context, term *LoanTerm) error
	UpdateLoanTerm(ctx context.Context, term *LoanTerm) error

	InsertScheduledPayments(ctx context.Context, payments []ScheduledPayment) error
	ListScheduledPayments(ctx context.Context, loanTermID string) ([]ScheduledPayment, error)
	GetScheduledPayment(ctx context.Context, id string) (*ScheduledPayment, error)
	UpdateScheduledPayment(ctx context.Context, p *ScheduledPayment) error

	// The materialization effect reads the parent subline's principal and
	// interest rate.
	GetCreditSubline(ctx context.Context, id string) (*credit.CreditSubline, error)
}

// TxStore is a Store that can run a closure inside one atomic transaction,
// with post-commit effect queueing (see lifecycle.Queue).
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(tx Store, fx *lifecycle.Queue) error) error
}
