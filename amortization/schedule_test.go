package amortization_test

import (
	"errors"
	"testing"
	"time"

	"github.com/althea/credit-engine/amortization"
	"github.com/shopspring/decimal"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func standardParams() amortization.LoanParameters {
	return amortization.LoanParameters{
		Principal:          dec("10000"),
		AnnualInterestRate: dec("0.12"),
		TermLength:         12,
		Frequency:          amortization.Monthly,
		StartDate:          date(2024, time.January, 1),
	}
}

// =============================================================================
// SCHEDULE SHAPE
// =============================================================================

func TestGenerateSchedule_Monthly_TwelvePaymentsPlusAnchor(t *testing.T) {
	// GIVEN: 10,000 at 12% annual over 12 monthly payments
	// WHEN: Generating the schedule
	// THEN: 13 records (anchor + 12), final balance exactly zero

	records, err := amortization.GenerateSchedule(standardParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 13 {
		t.Fatalf("expected 13 records, got %d", len(records))
	}

	anchor := records[0]
	if !anchor.Principal.IsZero() || !anchor.Interest.IsZero() || !anchor.TotalPayment.IsZero() {
		t.Errorf("anchor record should be all-zero, got %+v", anchor)
	}
	if !anchor.RemainingBalance.Equal(dec("10000")) {
		t.Errorf("anchor balance should equal principal, got %v", anchor.RemainingBalance)
	}
	if !anchor.PaymentDate.Equal(date(2024, time.January, 1)) {
		t.Errorf("anchor date should be the start date, got %v", anchor.PaymentDate)
	}

	final := records[len(records)-1]
	if !final.RemainingBalance.IsZero() {
		t.Errorf("final balance should be zero, got %v", final.RemainingBalance)
	}
}

func TestGenerateSchedule_Biweekly_TwentySixPaymentsPlusAnchor(t *testing.T) {
	// GIVEN: 10,000 at 12% annual over 26 biweekly payments
	// WHEN: Generating the schedule
	// THEN: 27 records, dates advancing 14 days before adjustment

	p := standardParams()
	p.TermLength = 26
	p.Frequency = amortization.Biweekly

	records, err := amortization.GenerateSchedule(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 27 {
		t.Fatalf("expected 27 records, got %d", len(records))
	}
	if !records[len(records)-1].RemainingBalance.IsZero() {
		t.Errorf("final balance should be zero, got %v", records[len(records)-1].RemainingBalance)
	}
}

func TestGenerateSchedule_BalanceMonotonicallyNonIncreasing(t *testing.T) {
	for _, freq := range []amortization.Frequency{
		amortization.Monthly, amortization.Biweekly,
		amortization.Bimonthly, amortization.Quarterly,
	} {
		p := standardParams()
		p.Frequency = freq

		records, err := amortization.GenerateSchedule(p)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", freq, err)
		}

		prev := records[0].RemainingBalance
		for i, r := range records[1:] {
			if r.RemainingBalance.GreaterThan(prev) {
				t.Errorf("%s: balance increased at record %d: %v -> %v",
					freq, i+1, prev, r.RemainingBalance)
			}
			prev = r.RemainingBalance
		}
		if !records[len(records)-1].RemainingBalance.IsZero() {
			t.Errorf("%s: final balance should be zero, got %v",
				freq, records[len(records)-1].RemainingBalance)
		}
	}
}

func TestGenerateSchedule_ComponentsSumToPayment(t *testing.T) {
	records, err := amortization.GenerateSchedule(standardParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, r := range records {
		if !r.TotalPayment.Equal(r.Principal.Add(r.Interest)) {
			t.Errorf("record %d: total %v != principal %v + interest %v",
				i, r.TotalPayment, r.Principal, r.Interest)
		}
	}

	// Level payment on 10,000 @ 1%/period over 12 periods is 888.49.
	if !records[1].TotalPayment.Equal(dec("888.49")) {
		t.Errorf("expected first payment 888.49, got %v", records[1].TotalPayment)
	}
	// First period interest is exactly 1% of principal.
	if !records[1].Interest.Equal(dec("100")) {
		t.Errorf("expected first interest 100, got %v", records[1].Interest)
	}
}

// =============================================================================
// DATE HANDLING
// =============================================================================

func TestGenerateSchedule_NewYearRollsBackAcrossWeekend(t *testing.T) {
	// GIVEN: A monthly schedule whose first payment lands on Jan 1 2024
	// WHEN: Generating the schedule
	// THEN: The date rolls back past the holiday and weekend to Dec 29 2023

	p := standardParams()
	p.StartDate = date(2023, time.December, 1)
	p.PaymentDueDay = 1

	records, err := amortization.GenerateSchedule(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !records[1].PaymentDate.Equal(date(2023, time.December, 29)) {
		t.Errorf("expected first payment on 2023-12-29, got %v", records[1].PaymentDate)
	}
}

func TestGenerateSchedule_DueDayClampedToMonthEnd(t *testing.T) {
	// GIVEN: Payment due day 31 with schedules crossing short months
	// WHEN: Generating a monthly schedule from mid-January
	// THEN: February's date clamps to month end before business-day rollback

	p := standardParams()
	p.StartDate = date(2024, time.January, 15)
	p.PaymentDueDay = 31

	records, err := amortization.GenerateSchedule(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Feb 29 2024 is a Thursday, so the clamped date stands as-is.
	if !records[1].PaymentDate.Equal(date(2024, time.February, 29)) {
		t.Errorf("expected 2024-02-29, got %v", records[1].PaymentDate)
	}
}

func TestGenerateSchedule_BiweeklyIgnoresDueDay(t *testing.T) {
	p := standardParams()
	p.Frequency = amortization.Biweekly
	p.TermLength = 4
	p.StartDate = date(2024, time.March, 4) // Monday
	p.PaymentDueDay = 15

	records, err := amortization.GenerateSchedule(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []time.Time{
		date(2024, time.March, 18),
		date(2024, time.April, 1),
		date(2024, time.April, 15),
		date(2024, time.April, 29),
	}
	for i, w := range want {
		if !records[i+1].PaymentDate.Equal(w) {
			t.Errorf("payment %d: expected %v, got %v", i+1, w, records[i+1].PaymentDate)
		}
	}
}

// =============================================================================
// EDGE CASES
// =============================================================================

func TestGenerateSchedule_ZeroRate(t *testing.T) {
	// GIVEN: A zero interest rate
	// THEN: Each payment is pure principal, P/n

	p := standardParams()
	p.AnnualInterestRate = decimal.Zero

	records, err := amortization.GenerateSchedule(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 13 {
		t.Fatalf("expected 13 records, got %d", len(records))
	}
	for i, r := range records[1:] {
		if !r.Interest.IsZero() {
			t.Errorf("payment %d: expected zero interest, got %v", i+1, r.Interest)
		}
	}
	if !records[1].Principal.Equal(dec("833.33")) {
		t.Errorf("expected principal 833.33, got %v", records[1].Principal)
	}
	if !records[12].RemainingBalance.IsZero() {
		t.Errorf("final balance should snap to zero, got %v", records[12].RemainingBalance)
	}
}

func TestGenerateSchedule_ZeroPrincipal(t *testing.T) {
	p := standardParams()
	p.Principal = decimal.Zero

	records, err := amortization.GenerateSchedule(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, r := range records {
		if !r.Principal.IsZero() || !r.Interest.IsZero() || !r.RemainingBalance.IsZero() {
			t.Errorf("record %d: expected all-zero record, got %+v", i, r)
		}
	}
}

func TestGenerateSchedule_NegativePrincipalPropagates(t *testing.T) {
	// Negative principal is accepted arithmetically rather than rejected:
	// the anchor carries the negative balance and the first payment's
	// principal caps to the full (negative) balance.
	p := standardParams()
	p.Principal = dec("-1000")

	records, err := amortization.GenerateSchedule(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !records[0].RemainingBalance.Equal(dec("-1000")) {
		t.Errorf("expected anchor balance -1000, got %v", records[0].RemainingBalance)
	}
	if len(records) != 2 {
		t.Fatalf("expected anchor plus one capped payment, got %d records", len(records))
	}
	if !records[1].Principal.Equal(dec("-1000")) {
		t.Errorf("expected capped principal -1000, got %v", records[1].Principal)
	}
}

func TestGenerateSchedule_InvalidRate(t *testing.T) {
	for _, rate := range []string{"-0.01", "1.5", "35.5"} {
		p := standardParams()
		p.AnnualInterestRate = dec(rate)

		_, err := amortization.GenerateSchedule(p)
		if !errors.Is(err, amortization.ErrInvalidRate) {
			t.Errorf("rate %s: expected ErrInvalidRate, got %v", rate, err)
		}
	}
}

func TestGenerateSchedule_UnknownFrequency(t *testing.T) {
	p := standardParams()
	p.Frequency = "weekly"

	_, err := amortization.GenerateSchedule(p)
	if !errors.Is(err, amortization.ErrUnknownFrequency) {
		t.Errorf("expected ErrUnknownFrequency, got %v", err)
	}
}

func TestGenerateSchedule_DateRangeOverflowStops(t *testing.T) {
	// GIVEN: A term long enough to run past the supported date range
	// THEN: Generation stops early instead of erroring

	p := standardParams()
	p.Frequency = amortization.Quarterly
	p.TermLength = 40000 // 10,000 years of quarters

	records, err := amortization.GenerateSchedule(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) == 0 || len(records) > p.TermLength {
		t.Errorf("expected truncated schedule, got %d records", len(records))
	}
}
