/*
service.go - Credit line / subline operations and the adjustment pipeline

PURPOSE:
  Orchestrates entity creation, adjustment proposals, and status review.
  The review path is the generic lifecycle pattern instantiated four
  times (line adjustments, subline amount / rate / status adjustments):

  1. Validate the transition against lifecycle.AdjustmentTransitions.
  2. Capture the before/after Change at write time.
  3. Persist the new status in one transaction; when the Change entered
     "approved", enqueue the implementation effect on the post-commit
     queue.
  4. After the commit is durable, the effect runs in its own transaction:
     apply the proposed value(s) to the parent, flip the adjustment to
     implemented, refresh its effective date. Both writes commit together
     or not at all.

  Approving a subline status adjustment that proposes "active" is guarded:
  the owning credit line must already be approved, checked before any
  mutation.

SEE ALSO:
  - lifecycle: Table, Change, Queue
  - loan: the fifth instantiation, with schedule materialization
*/
package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/althea/credit-engine/lifecycle"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service coordinates credit entities and their adjustments.
type Service struct {
	store TxStore
	now   func() time.Time
}

func NewService(store TxStore) *Service {
	return &Service{store: store, now: time.Now}
}

// =============================================================================
// CREDIT LINES
// =============================================================================

type CreateLineInput struct {
	CreditLimit decimal.Decimal
	Currency    Currency
	StartDate   time.Time
	EndDate     *time.Time
}

func (s *Service) CreateCreditLine(ctx context.Context, in CreateLineInput) (*CreditLine, error) {
	if err := ValidateCreditLimit(in.CreditLimit); err != nil {
		return nil, err
	}
	if err := ValidatePeriod(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	currency := in.Currency
	if currency == "" {
		currency = CurrencyMXN
	}
	if !currency.Valid() {
		return nil, &lifecycle.ValidationError{Field: "currency", Message: "unsupported currency"}
	}

	line := &CreditLine{
		ID:          uuid.NewString(),
		CreditLimit: in.CreditLimit,
		Currency:    currency,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      LinePending,
		Created:     s.now(),
	}
	if err := s.store.SaveCreditLine(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

func (s *Service) GetCreditLine(ctx context.Context, id string) (*CreditLine, error) {
	return s.store.GetCreditLine(ctx, id)
}

func (s *Service) ListCreditLines(ctx context.Context) ([]CreditLine, error) {
	return s.store.ListCreditLines(ctx)
}

// =============================================================================
// CREDIT SUBLINES
// =============================================================================

type CreateSublineInput struct {
	CreditLineID  string
	SublineType   string
	SublineAmount decimal.Decimal
	InterestRate  decimal.Decimal
	Status        SublineStatus
}

func (s *Service) CreateCreditSubline(ctx context.Context, in CreateSublineInput) (*CreditSubline, error) {
	line, err := s.store.GetCreditLine(ctx, in.CreditLineID)
	if err != nil {
		return nil, err
	}
	if err := ValidateSublineAmount(in.SublineAmount); err != nil {
		return nil, err
	}
	if err := ValidateInterestRate(in.InterestRate); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = SublinePending
	}
	if !status.Valid() {
		return nil, &lifecycle.ValidationError{Field: "status", Message: "unknown subline status"}
	}
	if status == SublineActive && line.Status != LineApproved {
		return nil, &lifecycle.ValidationError{
			Field:   "status",
			Message: "the credit subline can only be active if the credit line status is approved",
		}
	}

	now := s.now()
	sub := &CreditSubline{
		ID:                 uuid.NewString(),
		CreditLineID:       line.ID,
		SublineType:        in.SublineType,
		SublineAmount:      in.SublineAmount,
		AmountDisbursed:    decimal.Zero,
		OutstandingBalance: decimal.Zero,
		InterestRate:       NormalizeRate(in.InterestRate),
		Status:             status,
		Created:            now,
		Updated:            now,
	}
	if err := s.store.SaveCreditSubline(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) GetCreditSubline(ctx context.Context, id string) (*CreditSubline, error) {
	return s.store.GetCreditSubline(ctx, id)
}

func (s *Service) ListCreditSublines(ctx context.Context, lineID string) ([]CreditSubline, error) {
	return s.store.ListCreditSublines(ctx, lineID)
}

// =============================================================================
// ADJUSTMENT PROPOSALS
// =============================================================================

type LineProposal struct {
	NewLimit    *decimal.Decimal
	NewEndDate  *time.Time
	NewStatus   *LineStatus
	NewCurrency *Currency
	Reason      string
}

func (s *Service) ProposeLineAdjustment(ctx context.Context, lineID string, p LineProposal) (*LineAdjustment, error) {
	line, err := s.store.GetCreditLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if p.Reason == "" {
		return nil, &lifecycle.ValidationError{Field: "reason", Message: "reason is required"}
	}
	if p.NewLimit == nil && p.NewEndDate == nil && p.NewStatus == nil && p.NewCurrency == nil {
		return nil, &lifecycle.ValidationError{Field: "adjustment", Message: "at least one proposed field is required"}
	}
	if p.NewLimit != nil {
		if err := ValidateCreditLimit(*p.NewLimit); err != nil {
			return nil, err
		}
	}
	if p.NewStatus != nil && !p.NewStatus.Valid() {
		return nil, &lifecycle.ValidationError{Field: "status", Message: "unknown credit line status"}
	}
	if p.NewCurrency != nil && !p.NewCurrency.Valid() {
		return nil, &lifecycle.ValidationError{Field: "currency", Message: "unsupported currency"}
	}
	if p.NewEndDate != nil {
		if err := ValidatePeriod(line.StartDate, p.NewEndDate); err != nil {
			return nil, err
		}
	}

	adj := &LineAdjustment{
		ID:               uuid.NewString(),
		CreditLineID:     line.ID,
		PreviousLimit:    line.CreditLimit,
		PreviousStatus:   line.Status,
		NewLimit:         p.NewLimit,
		NewEndDate:       p.NewEndDate,
		NewStatus:        p.NewStatus,
		NewCurrency:      p.NewCurrency,
		AdjustmentStatus: lifecycle.StatusPendingReview,
		EffectiveDate:    s.now(),
		Reason:           p.Reason,
		Created:          s.now(),
	}
	if err := s.store.SaveLineAdjustment(ctx, adj); err != nil {
		return nil, err
	}
	return adj, nil
}

func (s *Service) ProposeAmountAdjustment(ctx context.Context, sublineID string, amount decimal.Decimal, reason string) (*AmountAdjustment, error) {
	sub, err := s.store.GetCreditSubline(ctx, sublineID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, &lifecycle.ValidationError{Field: "reason", Message: "reason is required"}
	}
	if err := ValidateSublineAmount(amount); err != nil {
		return nil, err
	}

	adj := &AmountAdjustment{
		ID:               uuid.NewString(),
		CreditSublineID:  sub.ID,
		InitialAmount:    sub.SublineAmount,
		AdjustedAmount:   amount,
		AdjustmentStatus: lifecycle.StatusPendingReview,
		EffectiveDate:    s.now(),
		Reason:           reason,
		Created:          s.now(),
	}
	if err := s.store.SaveAmountAdjustment(ctx, adj); err != nil {
		return nil, err
	}
	return adj, nil
}

func (s *Service) ProposeRateAdjustment(ctx context.Context, sublineID string, rate decimal.Decimal, reason string) (*RateAdjustment, error) {
	sub, err := s.store.GetCreditSubline(ctx, sublineID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, &lifecycle.ValidationError{Field: "reason", Message: "reason is required"}
	}
	if rate.Sign() <= 0 {
		return nil, &lifecycle.ValidationError{Field: "interest_rate", Message: "interest rate must be greater than 0"}
	}

	adj := &RateAdjustment{
		ID:               uuid.NewString(),
		CreditSublineID:  sub.ID,
		InitialRate:      sub.InterestRate,
		AdjustedRate:     rate,
		AdjustmentStatus: lifecycle.StatusPendingReview,
		EffectiveDate:    s.now(),
		Reason:           reason,
		Created:          s.now(),
	}
	if err := s.store.SaveRateAdjustment(ctx, adj); err != nil {
		return nil, err
	}
	return adj, nil
}

func (s *Service) ProposeStatusAdjustment(ctx context.Context, sublineID string, status SublineStatus, reason string) (*StatusAdjustment, error) {
	sub, err := s.store.GetCreditSubline(ctx, sublineID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, &lifecycle.ValidationError{Field: "reason", Message: "reason is required"}
	}
	if !status.Valid() {
		return nil, &lifecycle.ValidationError{Field: "status", Message: "unknown subline status"}
	}

	adj := &StatusAdjustment{
		ID:               uuid.NewString(),
		CreditSublineID:  sub.ID,
		InitialStatus:    sub.Status,
		AdjustedStatus:   status,
		AdjustmentStatus: lifecycle.StatusPendingReview,
		EffectiveDate:    s.now(),
		Reason:           reason,
		Created:          s.now(),
	}
	if err := s.store.SaveStatusAdjustment(ctx, adj); err != nil {
		return nil, err
	}
	return adj, nil
}

// =============================================================================
// ADJUSTMENT REVIEW - the generic pipeline, instantiated per record type
// =============================================================================

func (s *Service) SetLineAdjustmentStatus(ctx context.Context, id string, requested lifecycle.Status) (*LineAdjustment, error) {
	adj, err := s.store.GetLineAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}
	change, err := s.transition(adj.AdjustmentStatus, requested)
	if err != nil {
		return nil, err
	}

	adj.AdjustmentStatus = change.Current
	err = s.store.WithTx(ctx, func(tx Store, fx *lifecycle.Queue) error {
		if err := tx.SaveLineAdjustment(ctx, adj); err != nil {
			return err
		}
		if change.Entered(lifecycle.StatusApproved) {
			fx.Enqueue(s.implementLineAdjustment(adj.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetLineAdjustment(ctx, id)
}

func (s *Service) SetAmountAdjustmentStatus(ctx context.Context, id string, requested lifecycle.Status) (*AmountAdjustment, error) {
	adj, err := s.store.GetAmountAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}
	change, err := s.transition(adj.AdjustmentStatus, requested)
	if err != nil {
		return nil, err
	}

	adj.AdjustmentStatus = change.Current
	err = s.store.WithTx(ctx, func(tx Store, fx *lifecycle.Queue) error {
		if err := tx.SaveAmountAdjustment(ctx, adj); err != nil {
			return err
		}
		if change.Entered(lifecycle.StatusApproved) {
			fx.Enqueue(s.implementAmountAdjustment(adj.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetAmountAdjustment(ctx, id)
}

func (s *Service) SetRateAdjustmentStatus(ctx context.Context, id string, requested lifecycle.Status) (*RateAdjustment, error) {
	adj, err := s.store.GetRateAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}
	change, err := s.transition(adj.AdjustmentStatus, requested)
	if err != nil {
		return nil, err
	}

	adj.AdjustmentStatus = change.Current
	err = s.store.WithTx(ctx, func(tx Store, fx *lifecycle.Queue) error {
		if err := tx.SaveRateAdjustment(ctx, adj); err != nil {
			return err
		}
		if change.Entered(lifecycle.StatusApproved) {
			fx.Enqueue(s.implementRateAdjustment(adj.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetRateAdjustment(ctx, id)
}

// SetStatusAdjustmentStatus reviews a subline status adjustment. Approving
// a proposed "active" status first verifies the owning credit line is
// approved; the approval fails before any mutation otherwise.
func (s *Service) SetStatusAdjustmentStatus(ctx context.Context, id string, requested lifecycle.Status) (*StatusAdjustment, error) {
	adj, err := s.store.GetStatusAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}
	change, err := s.transition(adj.AdjustmentStatus, requested)
	if err != nil {
		return nil, err
	}

	if change.Entered(lifecycle.StatusApproved) && adj.AdjustedStatus == SublineActive {
		sub, err := s.store.GetCreditSubline(ctx, adj.CreditSublineID)
		if err != nil {
			return nil, err
		}
		line, err := s.store.GetCreditLine(ctx, sub.CreditLineID)
		if err != nil {
			return nil, err
		}
		if line.Status != LineApproved {
			return nil, &lifecycle.ValidationError{
				Field:   "status",
				Message: "the credit subline can only be active if the credit line status is approved",
			}
		}
	}

	adj.AdjustmentStatus = change.Current
	err = s.store.WithTx(ctx, func(tx Store, fx *lifecycle.Queue) error {
		if err := tx.SaveStatusAdjustment(ctx, adj); err != nil {
			return err
		}
		if change.Entered(lifecycle.StatusApproved) {
			fx.Enqueue(s.implementStatusAdjustment(adj.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetStatusAdjustment(ctx, id)
}

// transition validates the move and captures the write-time Change.
func (s *Service) transition(current, requested lifecycle.Status) (lifecycle.Change[lifecycle.Status], error) {
	validated, err := lifecycle.AdjustmentTransitions.Validate(current, requested)
	if err != nil {
		return lifecycle.Change[lifecycle.Status]{}, err
	}
	return lifecycle.NewChange(current, validated), nil
}

// =============================================================================
// IMPLEMENTATION EFFECTS - run after the approving transaction commits
// =============================================================================

func (s *Service) implementLineAdjustment(id string) lifecycle.Effect {
	return func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx Store, fx *lifecycle.Queue) error {
			adj, err := tx.GetLineAdjustment(ctx, id)
			if err != nil {
				return err
			}
			line, err := tx.GetCreditLine(ctx, adj.CreditLineID)
			if err != nil {
				return err
			}

			if adj.NewLimit != nil {
				line.CreditLimit = *adj.NewLimit
			}
			if adj.NewEndDate != nil {
				end := *adj.NewEndDate
				line.EndDate = &end
			}
			if adj.NewStatus != nil {
				line.Status = *adj.NewStatus
			}
			if adj.NewCurrency != nil {
				line.Currency = *adj.NewCurrency
			}
			if err := tx.SaveCreditLine(ctx, line); err != nil {
				return fmt.Errorf("apply line adjustment %s: %w", adj.ID, err)
			}

			adj.AdjustmentStatus = lifecycle.StatusImplemented
			adj.EffectiveDate = s.now()
			return tx.SaveLineAdjustment(ctx, adj)
		})
	}
}

func (s *Service) implementAmountAdjustment(id string) lifecycle.Effect {
	return func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx Store, fx *lifecycle.Queue) error {
			adj, err := tx.GetAmountAdjustment(ctx, id)
			if err != nil {
				return err
			}
			sub, err := tx.GetCreditSubline(ctx, adj.CreditSublineID)
			if err != nil {
				return err
			}

			sub.SublineAmount = adj.AdjustedAmount
			sub.Updated = s.now()
			if err := tx.SaveCreditSubline(ctx, sub); err != nil {
				return fmt.Errorf("apply amount adjustment %s: %w", adj.ID, err)
			}

			adj.AdjustmentStatus = lifecycle.StatusImplemented
			adj.EffectiveDate = s.now()
			return tx.SaveAmountAdjustment(ctx, adj)
		})
	}
}

func (s *Service) implementRateAdjustment(id string) lifecycle.Effect {
	return func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx Store, fx *lifecycle.Queue) error {
			adj, err := tx.GetRateAdjustment(ctx, id)
			if err != nil {
				return err
			}
			sub, err := tx.GetCreditSubline(ctx, adj.CreditSublineID)
			if err != nil {
				return err
			}

			sub.InterestRate = NormalizeRate(adj.AdjustedRate)
			sub.Updated = s.now()
			if err := tx.SaveCreditSubline(ctx, sub); err != nil {
				return fmt.Errorf("apply rate adjustment %s: %w", adj.ID, err)
			}

			adj.AdjustmentStatus = lifecycle.StatusImplemented
			adj.EffectiveDate = s.now()
			return tx.SaveRateAdjustment(ctx, adj)
		})
	}
}

func (s *Service) implementStatusAdjustment(id string) lifecycle.Effect {
	return func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx Store, fx *lifecycle.Queue) error {
			adj, err := tx.GetStatusAdjustment(ctx, id)
			if err != nil {
				return err
			}
			sub, err := tx.GetCreditSubline(ctx, adj.CreditSublineID)
			if err != nil {
				return err
			}

			sub.Status = adj.AdjustedStatus
			sub.Updated = s.now()
			if err := tx.SaveCreditSubline(ctx, sub); err != nil {
				return fmt.Errorf("apply status adjustment %s: %w", adj.ID, err)
			}

			adj.AdjustmentStatus = lifecycle.StatusImplemented
			adj.EffectiveDate = s.now()
			return tx.SaveStatusAdjustment(ctx, adj)
		})
	}
}

// Adjustment listings.

func (s *Service) ListLineAdjustments(ctx context.Context, lineID string) ([]LineAdjustment, error) {
	return s.store.ListLineAdjustments(ctx, lineID)
}

func (s *Service) ListAmountAdjustments(ctx context.Context, sublineID string) ([]AmountAdjustment, error) {
	return s.store.ListAmountAdjustments(ctx, sublineID)
}

func (s *Service) ListRateAdjustments(ctx context.Context, sublineID string) ([]RateAdjustment, error) {
	return s.store.ListRateAdjustments(ctx, sublineID)
}

func (s *Service) ListStatusAdjustments(ctx context.Context, sublineID string) ([]StatusAdjustment, error) {
	return s.store.ListStatusAdjustments(ctx, sublineID)
}

func (s *Service) GetStatusAdjustment(ctx context.Context, id string) (*StatusAdjustment, error) {
	return s.store.GetStatusAdjustment(ctx, id)
}
