/*
service.go - Loan term review and schedule materialization

PURPOSE:
  The fifth instantiation of the lifecycle pattern. A loan term moving
  from pending into approved (on an update, never on creation) enqueues a
  materialization effect: after the approving transaction commits, the
  amortization engine runs against the owning subline's amount and rate,
  the zero-value anchor row is dropped, and one pending ScheduledPayment
  per remaining record is bulk-inserted in a single transaction.

IDEMPOTENCY:
  "Approved exactly once" is guaranteed by the write-time Change capture:
  re-saving an already approved term is a self-transition, Entered()
  reports false, and no effect is enqueued. There is no separate
  existence check on the payments table; losing the capture would reopen
  the gate (a known gap, recorded in DESIGN.md).

INITIAL-STATE EXEMPTION:
  Creating a term directly with status approved does not generate a
  schedule. Only an update that moves into approved fires.
*/
package loan

import (
	"context"
	"fmt"
	"time"

	"github.com/althea/credit-engine/amortization"
	"github.com/althea/credit-engine/lifecycle"
	"github.com/google/uuid"
)

// Service coordinates loan terms and scheduled payments.
type Service struct {
	store TxStore
	now   func() time.Time
}

func NewService(store TxStore) *Service {
	return &Service{store: store, now: time.Now}
}

// =============================================================================
// LOAN TERM CREATION
// =============================================================================

type CreateTermInput struct {
	CreditSublineID string
	TermLength      int
	Frequency       amortization.Frequency
	PaymentDueDay   int
	StartDate       time.Time
	Status          TermStatus
}

func (s *Service) CreateLoanTerm(ctx context.Context, in CreateTermInput) (*LoanTerm, error) {
	if _, err := s.store.GetCreditSubline(ctx, in.CreditSublineID); err != nil {
		return nil, err
	}
	if in.TermLength <= 0 {
		return nil, &lifecycle.ValidationError{Field: "term_length", Message: "term length must be a positive integer"}
	}
	if !in.Frequency.Valid() {
		return nil, &lifecycle.ValidationError{Field: "repayment_frequency", Message: "unknown repayment frequency"}
	}
	if in.PaymentDueDay < 0 || in.PaymentDueDay > 31 {
		return nil, &lifecycle.ValidationError{Field: "payment_due_day", Message: "payment due day must be 31 or less"}
	}

	status := in.Status
	if status == "" {
		status = TermPending
	}
	switch status {
	case TermPending, TermApproved, TermRejected:
	default:
		return nil, &lifecycle.ValidationError{Field: "status", Message: "unknown loan term status"}
	}

	startDate := in.StartDate
	if startDate.IsZero() {
		startDate = s.now()
	}

	now := s.now()
	term := &LoanTerm{
		ID:              uuid.NewString(),
		CreditSublineID: in.CreditSublineID,
		TermLength:      in.TermLength,
		Frequency:       in.Frequency,
		PaymentDueDay:   in.PaymentDueDay,
		StartDate:       startDate,
		Status:          status,
		Created:         now,
		Updated:         now,
	}

	// Creation never materializes a schedule, even when the term is
	// created directly in approved status.
	if err := s.store.InsertLoanTerm(ctx, term); err != nil {
		return nil, err
	}
	return term, nil
}

func (s *Service) GetLoanTerm(ctx context.Context, id string) (*LoanTerm, error) {
	return s.store.GetLoanTerm(ctx, id)
}

func (s *Service) GetLoanTermBySubline(ctx context.Context, sublineID string) (*LoanTerm, error) {
	return s.store.GetLoanTermBySubline(ctx, sublineID)
}

// =============================================================================
// LOAN TERM REVIEW
// =============================================================================

// SetLoanTermStatus moves a term through its review machine. An update
// entering approved enqueues the one-time schedule materialization.
func (s *Service) SetLoanTermStatus(ctx context.Context, id string, requested TermStatus) (*LoanTerm, error) {
	term, err := s.store.GetLoanTerm(ctx, id)
	if err != nil {
		return nil, err
	}

	validated, err := TermTransitions.Validate(term.Status, requested)
	if err != nil {
		return nil, err
	}
	change := lifecycle.NewChange(term.Status, validated)

	term.Status = validated
	term.Updated = s.now()
	err = s.store.WithTx(ctx, func(tx Store, fx *lifecycle.Queue) error {
		if err := tx.UpdateLoanTerm(ctx, term); err != nil {
			return err
		}
		if change.Entered(TermApproved) {
			fx.Enqueue(s.materializeSchedule(term.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetLoanTerm(ctx, id)
}

// materializeSchedule generates and bulk-inserts the term's scheduled
// payments. Runs after the approving transaction durably commits.
func (s *Service) materializeSchedule(termID string) lifecycle.Effect {
	return func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx Store, fx *lifecycle.Queue) error {
			term, err := tx.GetLoanTerm(ctx, termID)
			if err != nil {
				return err
			}
			sub, err := tx.GetCreditSubline(ctx, term.CreditSublineID)
			if err != nil {
				return err
			}

			records, err := amortization.GenerateSchedule(amortization.LoanParameters{
				Principal:          sub.SublineAmount,
				AnnualInterestRate: sub.InterestRate,
				TermLength:         term.TermLength,
				Frequency:          term.Frequency,
				StartDate:          term.StartDate,
				PaymentDueDay:      term.PaymentDueDay,
			})
			if err != nil {
				return fmt.Errorf("generate schedule for loan term %s: %w", term.ID, err)
			}

			// records[0] is the anchor row, never persisted.
			payments := make([]ScheduledPayment, 0, len(records)-1)
			for _, r := range records[1:] {
				payments = append(payments, ScheduledPayment{
					ID:                 uuid.NewString(),
					LoanTermID:         term.ID,
					DueDate:            r.PaymentDate,
					AmountDue:          r.TotalPayment,
					PrincipalComponent: r.Principal,
					InterestComponent:  r.Interest,
					Status:             PaymentPending,
				})
			}
			return tx.InsertScheduledPayments(ctx, payments)
		})
	}
}

// =============================================================================
// PAYMENT TRACKING
// =============================================================================

func (s *Service) ListScheduledPayments(ctx context.Context, termID string) ([]ScheduledPayment, error) {
	return s.store.ListScheduledPayments(ctx, termID)
}

// RecordPayment updates a scheduled payment's status and, for completed or
// delayed payments, its actual payment date.
func (s *Service) RecordPayment(ctx context.Context, paymentID string, status PaymentStatus, actualDate *time.Time) (*ScheduledPayment, error) {
	if !status.Valid() {
		return nil, &lifecycle.ValidationError{Field: "payment_status", Message: "unknown payment status"}
	}

	p, err := s.store.GetScheduledPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	p.Status = status
	if actualDate != nil {
		d := *actualDate
		p.ActualPaymentDate = &d
	}
	if err := s.store.UpdateScheduledPayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// PreviewSchedule exposes the amortization engine for a subline without
// persisting anything.
func (s *Service) PreviewSchedule(ctx context.Context, sublineID string, termLength int, freq amortization.Frequency, startDate time.Time, dueDay int) ([]amortization.PaymentRecord, error) {
	sub, err := s.store.GetCreditSubline(ctx, sublineID)
	if err != nil {
		return nil, err
	}
	return amortization.GenerateSchedule(amortization.LoanParameters{
		Principal:          sub.SublineAmount,
		AnnualInterestRate: sub.InterestRate,
		TermLength:         termLength,
		Frequency:          freq,
		StartDate:          startDate,
		PaymentDueDay:      dueDay,
	})
}
