package credit_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/althea/credit-engine/credit"
	"github.com/althea/credit-engine/lifecycle"
	"github.com/althea/credit-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) *credit.Service {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return credit.NewService(store.Credit())
}

func newLine(t *testing.T, svc *credit.Service) *credit.CreditLine {
	t.Helper()
	line, err := svc.CreateCreditLine(context.Background(), credit.CreateLineInput{
		CreditLimit: decimal.RequireFromString("500000"),
		StartDate:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return line
}

// approveLine moves a fresh line to approved through a line adjustment.
func approveLine(t *testing.T, svc *credit.Service, lineID string) {
	t.Helper()
	ctx := context.Background()

	approved := credit.LineApproved
	adj, err := svc.ProposeLineAdjustment(ctx, lineID, credit.LineProposal{
		NewStatus: &approved,
		Reason:    "initial underwriting approval",
	})
	require.NoError(t, err)

	_, err = svc.SetLineAdjustmentStatus(ctx, adj.ID, lifecycle.StatusApproved)
	require.NoError(t, err)
}

func newSubline(t *testing.T, svc *credit.Service, lineID string) *credit.CreditSubline {
	t.Helper()
	sub, err := svc.CreateCreditSubline(context.Background(), credit.CreateSublineInput{
		CreditLineID:  lineID,
		SublineType:   "working_capital",
		SublineAmount: decimal.RequireFromString("10000"),
		InterestRate:  decimal.RequireFromString("0.12"),
	})
	require.NoError(t, err)
	return sub
}

// =============================================================================
// CREDIT LINE CREATION
// =============================================================================

func TestCreateCreditLine_StartsPending(t *testing.T) {
	svc := newTestService(t)

	line := newLine(t, svc)

	assert.Equal(t, credit.LinePending, line.Status)
	assert.Equal(t, credit.CurrencyMXN, line.Currency, "currency should default to mxn")
	assert.NotEmpty(t, line.ID)
}

func TestCreateCreditLine_RejectsBadInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	// Non-positive limit
	_, err := svc.CreateCreditLine(ctx, credit.CreateLineInput{
		CreditLimit: decimal.Zero,
		StartDate:   start,
	})
	assert.True(t, lifecycle.IsClientError(err), "zero limit should be a validation error")

	// Limit wider than 12 digits
	_, err = svc.CreateCreditLine(ctx, credit.CreateLineInput{
		CreditLimit: decimal.RequireFromString("1234567890123"),
		StartDate:   start,
	})
	assert.True(t, lifecycle.IsClientError(err), "13-digit limit should be rejected")

	// End date before start date
	end := start.AddDate(0, -1, 0)
	_, err = svc.CreateCreditLine(ctx, credit.CreateLineInput{
		CreditLimit: decimal.RequireFromString("500000"),
		StartDate:   start,
		EndDate:     &end,
	})
	assert.True(t, lifecycle.IsClientError(err), "inverted period should be rejected")
}

// =============================================================================
// CREDIT SUBLINE CREATION
// =============================================================================

func TestCreateCreditSubline_ActiveRequiresApprovedLine(t *testing.T) {
	// GIVEN: A credit line still pending review
	// WHEN: Creating a subline directly in active status
	// THEN: The request is rejected; approving the line first makes it pass

	svc := newTestService(t)
	ctx := context.Background()
	line := newLine(t, svc)

	in := credit.CreateSublineInput{
		CreditLineID:  line.ID,
		SublineAmount: decimal.RequireFromString("10000"),
		InterestRate:  decimal.RequireFromString("0.12"),
		Status:        credit.SublineActive,
	}

	_, err := svc.CreateCreditSubline(ctx, in)
	require.Error(t, err)
	assert.True(t, lifecycle.IsClientError(err))

	approveLine(t, svc, line.ID)

	sub, err := svc.CreateCreditSubline(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, credit.SublineActive, sub.Status)
}

func TestCreateCreditSubline_NormalizesPercentageRates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	line := newLine(t, svc)

	// Percentage form is divided by 100
	sub, err := svc.CreateCreditSubline(ctx, credit.CreateSublineInput{
		CreditLineID:  line.ID,
		SublineAmount: decimal.RequireFromString("10000"),
		InterestRate:  decimal.RequireFromString("35.5"),
	})
	require.NoError(t, err)
	assert.True(t, sub.InterestRate.Equal(decimal.RequireFromString("0.355")),
		"35.5 should normalize to 0.355, got %s", sub.InterestRate)

	// Fraction form is stored as-is
	sub, err = svc.CreateCreditSubline(ctx, credit.CreateSublineInput{
		CreditLineID:  line.ID,
		SublineAmount: decimal.RequireFromString("10000"),
		InterestRate:  decimal.RequireFromString("0.355"),
	})
	require.NoError(t, err)
	assert.True(t, sub.InterestRate.Equal(decimal.RequireFromString("0.355")))
}

func TestCreateCreditSubline_RejectsOversizedAmount(t *testing.T) {
	svc := newTestService(t)
	line := newLine(t, svc)

	_, err := svc.CreateCreditSubline(context.Background(), credit.CreateSublineInput{
		CreditLineID:  line.ID,
		SublineAmount: decimal.RequireFromString("1000000000.01"),
		InterestRate:  decimal.RequireFromString("0.12"),
	})
	require.Error(t, err)
	assert.True(t, lifecycle.IsClientError(err))
}

// =============================================================================
// LINE ADJUSTMENT LIFECYCLE
// =============================================================================

func TestLineAdjustment_ApprovalAppliesAndImplements(t *testing.T) {
	// GIVEN: A pending line adjustment raising the limit
	// WHEN: The adjustment is approved
	// THEN: The new limit lands on the line and the record flips to
	//       implemented once the approving transaction commits

	svc := newTestService(t)
	ctx := context.Background()
	line := newLine(t, svc)

	newLimit := decimal.RequireFromString("750000")
	adj, err := svc.ProposeLineAdjustment(ctx, line.ID, credit.LineProposal{
		NewLimit: &newLimit,
		Reason:   "seasonal limit increase",
	})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPendingReview, adj.AdjustmentStatus)
	assert.True(t, adj.PreviousLimit.Equal(line.CreditLimit),
		"proposal should capture the current limit")

	got, err := svc.SetLineAdjustmentStatus(ctx, adj.ID, lifecycle.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusImplemented, got.AdjustmentStatus)

	updated, err := svc.GetCreditLine(ctx, line.ID)
	require.NoError(t, err)
	assert.True(t, updated.CreditLimit.Equal(newLimit))
}

func TestLineAdjustment_NilFieldsLeaveParentUnchanged(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	line := newLine(t, svc)

	approved := credit.LineApproved
	adj, err := svc.ProposeLineAdjustment(ctx, line.ID, credit.LineProposal{
		NewStatus: &approved,
		Reason:    "underwriting sign-off",
	})
	require.NoError(t, err)

	_, err = svc.SetLineAdjustmentStatus(ctx, adj.ID, lifecycle.StatusApproved)
	require.NoError(t, err)

	updated, err := svc.GetCreditLine(ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, credit.LineApproved, updated.Status)
	assert.True(t, updated.CreditLimit.Equal(line.CreditLimit),
		"limit was not proposed and must not change")
}

func TestLineAdjustment_ReasonRequired(t *testing.T) {
	svc := newTestService(t)
	line := newLine(t, svc)

	newLimit := decimal.RequireFromString("750000")
	_, err := svc.ProposeLineAdjustment(context.Background(), line.ID, credit.LineProposal{
		NewLimit: &newLimit,
	})
	require.Error(t, err)
	assert.True(t, lifecycle.IsClientError(err))
}

func TestLineAdjustment_IllegalAndIdempotentTransitions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	line := newLine(t, svc)

	newLimit := decimal.RequireFromString("750000")
	adj, err := svc.ProposeLineAdjustment(ctx, line.ID, credit.LineProposal{
		NewLimit: &newLimit,
		Reason:   "limit review",
	})
	require.NoError(t, err)

	// pending_review -> implemented skips review
	_, err = svc.SetLineAdjustmentStatus(ctx, adj.ID, lifecycle.StatusImplemented)
	require.Error(t, err)
	var transErr *lifecycle.InvalidTransitionError
	assert.ErrorAs(t, err, &transErr)

	got, err := svc.SetLineAdjustmentStatus(ctx, adj.ID, lifecycle.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusImplemented, got.AdjustmentStatus)

	// Re-sending the terminal status is an accepted no-op
	again, err := svc.SetLineAdjustmentStatus(ctx, adj.ID, lifecycle.StatusImplemented)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusImplemented, again.AdjustmentStatus)

	// Walking back to pending_review is not
	_, err = svc.SetLineAdjustmentStatus(ctx, adj.ID, lifecycle.StatusPendingReview)
	require.Error(t, err)
	assert.True(t, lifecycle.IsClientError(err))
}

func TestLineAdjustment_RejectionIsTerminal(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	line := newLine(t, svc)

	newLimit := decimal.RequireFromString("750000")
	adj, err := svc.ProposeLineAdjustment(ctx, line.ID, credit.LineProposal{
		NewLimit: &newLimit,
		Reason:   "limit review",
	})
	require.NoError(t, err)

	got, err := svc.SetLineAdjustmentStatus(ctx, adj.ID, lifecycle.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusRejected, got.AdjustmentStatus)

	_, err = svc.SetLineAdjustmentStatus(ctx, adj.ID, lifecycle.StatusApproved)
	require.Error(t, err)

	// Rejection never touches the parent
	updated, err := svc.GetCreditLine(ctx, line.ID)
	require.NoError(t, err)
	assert.True(t, updated.CreditLimit.Equal(line.CreditLimit))
}

// =============================================================================
// SUBLINE ADJUSTMENT LIFECYCLE
// =============================================================================

func TestAmountAdjustment_ApprovalAppliesAmount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	line := newLine(t, svc)
	sub := newSubline(t, svc, line.ID)

	adj, err := svc.ProposeAmountAdjustment(ctx, sub.ID,
		decimal.RequireFromString("25000"), "disbursement tranche increase")
	require.NoError(t, err)
	assert.True(t, adj.InitialAmount.Equal(sub.SublineAmount))

	got, err := svc.SetAmountAdjustmentStatus(ctx, adj.ID, lifecycle.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusImplemented, got.AdjustmentStatus)

	updated, err := svc.GetCreditSubline(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, updated.SublineAmount.Equal(decimal.RequireFromString("25000")))
}

func TestRateAdjustment_ApprovalNormalizesRate(t *testing.T) {
	// Percentage-form proposals are stored verbatim on the record and
	// normalized only when applied to the subline.

	svc := newTestService(t)
	ctx := context.Background()
	line := newLine(t, svc)
	sub := newSubline(t, svc, line.ID)

	adj, err := svc.ProposeRateAdjustment(ctx, sub.ID,
		decimal.RequireFromString("18.5"), "repricing after review")
	require.NoError(t, err)
	assert.True(t, adj.AdjustedRate.Equal(decimal.RequireFromString("18.5")))

	_, err = svc.SetRateAdjustmentStatus(ctx, adj.ID, lifecycle.StatusApproved)
	require.NoError(t, err)

	updated, err := svc.GetCreditSubline(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, updated.InterestRate.Equal(decimal.RequireFromString("0.185")),
		"applied rate should be the fraction form, got %s", updated.InterestRate)
}

func TestRateAdjustment_RequiresPositiveRate(t *testing.T) {
	svc := newTestService(t)
	line := newLine(t, svc)
	sub := newSubline(t, svc, line.ID)

	_, err := svc.ProposeRateAdjustment(context.Background(), sub.ID,
		decimal.Zero, "zeroing out")
	require.Error(t, err)
	assert.True(t, lifecycle.IsClientError(err))
}

func TestStatusAdjustment_ActiveGuardBlocksBeforeMutation(t *testing.T) {
	// GIVEN: A pending credit line and a proposed subline activation
	// WHEN: The activation is approved while the line is still pending
	// THEN: The approval fails and neither the adjustment nor the subline
	//       moves

	svc := newTestService(t)
	ctx := context.Background()
	line := newLine(t, svc)
	sub := newSubline(t, svc, line.ID)

	adj, err := svc.ProposeStatusAdjustment(ctx, sub.ID, credit.SublineActive, "go live")
	require.NoError(t, err)

	_, err = svc.SetStatusAdjustmentStatus(ctx, adj.ID, lifecycle.StatusApproved)
	require.Error(t, err)
	assert.True(t, lifecycle.IsClientError(err))

	unchanged, err := svc.GetStatusAdjustment(ctx, adj.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPendingReview, unchanged.AdjustmentStatus,
		"failed guard must leave the adjustment untouched")

	subAfter, err := svc.GetCreditSubline(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, credit.SublinePending, subAfter.Status)
}

func TestStatusAdjustment_ActivationAfterLineApproval(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	line := newLine(t, svc)
	sub := newSubline(t, svc, line.ID)
	approveLine(t, svc, line.ID)

	adj, err := svc.ProposeStatusAdjustment(ctx, sub.ID, credit.SublineActive, "go live")
	require.NoError(t, err)

	got, err := svc.SetStatusAdjustmentStatus(ctx, adj.ID, lifecycle.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusImplemented, got.AdjustmentStatus)

	updated, err := svc.GetCreditSubline(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, credit.SublineActive, updated.Status)
}

// =============================================================================
// LOOKUPS
// =============================================================================

func TestAdjustmentListings(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	line := newLine(t, svc)
	sub := newSubline(t, svc, line.ID)

	_, err := svc.ProposeAmountAdjustment(ctx, sub.ID,
		decimal.RequireFromString("15000"), "first tranche")
	require.NoError(t, err)
	_, err = svc.ProposeAmountAdjustment(ctx, sub.ID,
		decimal.RequireFromString("20000"), "second tranche")
	require.NoError(t, err)

	adjs, err := svc.ListAmountAdjustments(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, adjs, 2)
}

func TestGetCreditLine_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetCreditLine(context.Background(), "no-such-line")
	require.Error(t, err)
	assert.True(t, lifecycle.IsNotFound(err))
}
