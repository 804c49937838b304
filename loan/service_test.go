package loan_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/althea/credit-engine/amortization"
	"github.com/althea/credit-engine/credit"
	"github.com/althea/credit-engine/lifecycle"
	"github.com/althea/credit-engine/loan"
	"github.com/althea/credit-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// newTestServices wires loan and credit services over one in-memory
// database so loan terms can reference real sublines.
func newTestServices(t *testing.T) (*loan.Service, *credit.Service) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return loan.NewService(store.Loan()), credit.NewService(store.Credit())
}

// newSubline creates a credit line with one subline: 10000 at 12% annual.
func newSubline(t *testing.T, creditSvc *credit.Service) *credit.CreditSubline {
	t.Helper()
	ctx := context.Background()

	line, err := creditSvc.CreateCreditLine(ctx, credit.CreateLineInput{
		CreditLimit: decimal.RequireFromString("500000"),
		StartDate:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	sub, err := creditSvc.CreateCreditSubline(ctx, credit.CreateSublineInput{
		CreditLineID:  line.ID,
		SublineType:   "working_capital",
		SublineAmount: decimal.RequireFromString("10000"),
		InterestRate:  decimal.RequireFromString("0.12"),
	})
	require.NoError(t, err)
	return sub
}

func monthlyTerm(sublineID string) loan.CreateTermInput {
	return loan.CreateTermInput{
		CreditSublineID: sublineID,
		TermLength:      12,
		Frequency:       amortization.Monthly,
		PaymentDueDay:   15,
		StartDate:       time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// LOAN TERM CREATION
// =============================================================================

func TestCreateLoanTerm_StartsPending(t *testing.T) {
	loanSvc, creditSvc := newTestServices(t)
	sub := newSubline(t, creditSvc)

	term, err := loanSvc.CreateLoanTerm(context.Background(), monthlyTerm(sub.ID))
	require.NoError(t, err)

	assert.Equal(t, loan.TermPending, term.Status)
	assert.Equal(t, sub.ID, term.CreditSublineID)
}

func TestCreateLoanTerm_RejectsBadInput(t *testing.T) {
	loanSvc, creditSvc := newTestServices(t)
	sub := newSubline(t, creditSvc)
	ctx := context.Background()

	in := monthlyTerm(sub.ID)
	in.TermLength = 0
	_, err := loanSvc.CreateLoanTerm(ctx, in)
	assert.True(t, lifecycle.IsClientError(err), "zero term length should be rejected")

	in = monthlyTerm(sub.ID)
	in.Frequency = "weekly"
	_, err = loanSvc.CreateLoanTerm(ctx, in)
	assert.True(t, lifecycle.IsClientError(err), "unknown frequency should be rejected")

	in = monthlyTerm(sub.ID)
	in.PaymentDueDay = 32
	_, err = loanSvc.CreateLoanTerm(ctx, in)
	assert.True(t, lifecycle.IsClientError(err), "due day above 31 should be rejected")

	_, err = loanSvc.CreateLoanTerm(ctx, monthlyTerm("no-such-subline"))
	assert.True(t, lifecycle.IsNotFound(err))
}

func TestCreateLoanTerm_SecondTermForSublineIsIntegrityError(t *testing.T) {
	loanSvc, creditSvc := newTestServices(t)
	sub := newSubline(t, creditSvc)
	ctx := context.Background()

	_, err := loanSvc.CreateLoanTerm(ctx, monthlyTerm(sub.ID))
	require.NoError(t, err)

	_, err = loanSvc.CreateLoanTerm(ctx, monthlyTerm(sub.ID))
	require.Error(t, err)
	assert.True(t, errors.Is(err, loan.ErrDuplicateLoanTerm))
	assert.True(t, lifecycle.IsFatal(err), "duplicate term is an integrity violation, not client input")
}

// =============================================================================
// MATERIALIZATION
// =============================================================================

func TestApproval_MaterializesSchedule(t *testing.T) {
	// GIVEN: A pending 12-month term on a 10000 @ 12% subline
	// WHEN: The term is approved
	// THEN: Exactly 12 pending payments exist, summing back to the
	//       principal

	loanSvc, creditSvc := newTestServices(t)
	sub := newSubline(t, creditSvc)
	ctx := context.Background()

	term, err := loanSvc.CreateLoanTerm(ctx, monthlyTerm(sub.ID))
	require.NoError(t, err)

	got, err := loanSvc.SetLoanTermStatus(ctx, term.ID, loan.TermApproved)
	require.NoError(t, err)
	assert.Equal(t, loan.TermApproved, got.Status)

	payments, err := loanSvc.ListScheduledPayments(ctx, term.ID)
	require.NoError(t, err)
	require.Len(t, payments, 12)

	totalPrincipal := decimal.Zero
	for _, p := range payments {
		assert.Equal(t, loan.PaymentPending, p.Status)
		assert.Nil(t, p.ActualPaymentDate)
		totalPrincipal = totalPrincipal.Add(p.PrincipalComponent)
	}
	diff := totalPrincipal.Sub(sub.SublineAmount).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.01")),
		"principal components should sum to the subline amount, got %s", totalPrincipal)

	// Due dates fall on the requested day of month (or its business-day
	// rollback) and stay in order
	for i := 1; i < len(payments); i++ {
		assert.True(t, payments[i-1].DueDate.Before(payments[i].DueDate))
	}
}

func TestApproval_ReSaveCreatesNoExtraRows(t *testing.T) {
	loanSvc, creditSvc := newTestServices(t)
	sub := newSubline(t, creditSvc)
	ctx := context.Background()

	term, err := loanSvc.CreateLoanTerm(ctx, monthlyTerm(sub.ID))
	require.NoError(t, err)

	_, err = loanSvc.SetLoanTermStatus(ctx, term.ID, loan.TermApproved)
	require.NoError(t, err)

	// Idempotent self-transition: accepted, but materialization must not
	// fire again
	_, err = loanSvc.SetLoanTermStatus(ctx, term.ID, loan.TermApproved)
	require.NoError(t, err)

	payments, err := loanSvc.ListScheduledPayments(ctx, term.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 12)
}

func TestCreateLoanTerm_DirectlyApprovedDoesNotMaterialize(t *testing.T) {
	// Only the update entering approved fires materialization; a term
	// born approved has no schedule until something moves it.

	loanSvc, creditSvc := newTestServices(t)
	sub := newSubline(t, creditSvc)
	ctx := context.Background()

	in := monthlyTerm(sub.ID)
	in.Status = loan.TermApproved
	term, err := loanSvc.CreateLoanTerm(ctx, in)
	require.NoError(t, err)

	payments, err := loanSvc.ListScheduledPayments(ctx, term.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestSetLoanTermStatus_ReviewOutcomesAreTerminal(t *testing.T) {
	loanSvc, creditSvc := newTestServices(t)
	ctx := context.Background()

	subA := newSubline(t, creditSvc)
	rejected, err := loanSvc.CreateLoanTerm(ctx, monthlyTerm(subA.ID))
	require.NoError(t, err)
	_, err = loanSvc.SetLoanTermStatus(ctx, rejected.ID, loan.TermRejected)
	require.NoError(t, err)

	_, err = loanSvc.SetLoanTermStatus(ctx, rejected.ID, loan.TermApproved)
	require.Error(t, err)
	var transErr *lifecycle.InvalidTransitionError
	assert.ErrorAs(t, err, &transErr)

	subB := newSubline(t, creditSvc)
	approved, err := loanSvc.CreateLoanTerm(ctx, monthlyTerm(subB.ID))
	require.NoError(t, err)
	_, err = loanSvc.SetLoanTermStatus(ctx, approved.ID, loan.TermApproved)
	require.NoError(t, err)

	_, err = loanSvc.SetLoanTermStatus(ctx, approved.ID, loan.TermRejected)
	require.Error(t, err)
	assert.True(t, lifecycle.IsClientError(err))
}

// =============================================================================
// PAYMENT TRACKING
// =============================================================================

func TestRecordPayment_CompletesWithActualDate(t *testing.T) {
	loanSvc, creditSvc := newTestServices(t)
	sub := newSubline(t, creditSvc)
	ctx := context.Background()

	term, err := loanSvc.CreateLoanTerm(ctx, monthlyTerm(sub.ID))
	require.NoError(t, err)
	_, err = loanSvc.SetLoanTermStatus(ctx, term.ID, loan.TermApproved)
	require.NoError(t, err)

	payments, err := loanSvc.ListScheduledPayments(ctx, term.ID)
	require.NoError(t, err)
	require.NotEmpty(t, payments)

	paid := time.Date(2024, time.April, 16, 0, 0, 0, 0, time.UTC)
	got, err := loanSvc.RecordPayment(ctx, payments[0].ID, loan.PaymentCompleted, &paid)
	require.NoError(t, err)
	assert.Equal(t, loan.PaymentCompleted, got.Status)
	require.NotNil(t, got.ActualPaymentDate)
	assert.True(t, got.ActualPaymentDate.Equal(paid))

	// Siblings untouched
	after, err := loanSvc.ListScheduledPayments(ctx, term.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.PaymentPending, after[1].Status)
}

func TestRecordPayment_RejectsUnknownStatus(t *testing.T) {
	loanSvc, _ := newTestServices(t)

	_, err := loanSvc.RecordPayment(context.Background(), "any", "settled", nil)
	require.Error(t, err)
	assert.True(t, lifecycle.IsClientError(err))
}

// =============================================================================
// PREVIEW
// =============================================================================

func TestPreviewSchedule_IncludesAnchorAndPersistsNothing(t *testing.T) {
	loanSvc, creditSvc := newTestServices(t)
	sub := newSubline(t, creditSvc)
	ctx := context.Background()

	records, err := loanSvc.PreviewSchedule(ctx, sub.ID, 12,
		amortization.Monthly,
		time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), 15)
	require.NoError(t, err)

	// Anchor row plus one record per period
	require.Len(t, records, 13)
	assert.True(t, records[0].RemainingBalance.Equal(sub.SublineAmount))
	assert.True(t, records[len(records)-1].RemainingBalance.IsZero())
}
