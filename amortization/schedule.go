/*
Package amortization computes loan amortization schedules.

PURPOSE:
  Given a principal amount, an annual interest rate, a term length, a
  repayment frequency, and a start date, GenerateSchedule deterministically
  produces the full payment schedule: one anchor record at the start date
  followed by up to term-length payment records, each splitting the level
  periodic payment into principal and interest.

KEY CONCEPTS:
  - Periodic rate: annual rate divided by the frequency's periods per year
  - Level payment: the standard annuity payment (end-of-period timing)
  - Anchor record: zero-value entry at the start date, not a real payment
  - Business-day adjustment: dates rolled back around weekends and the
    fixed holiday calendar (calendar.go)

DESIGN PRINCIPLES:
  1. Pure computation: no I/O, no shared state, safe for concurrent use
  2. Precision: decimal.Decimal throughout; the running balance keeps full
     precision, outputs are rounded to cents in a final pass
  3. Deterministic termination: the loop stops at term length, at zero
     balance, or at the supported date range limit

SEE ALSO:
  - calendar.go: Holiday observance and rollback rules
  - loan package: Materializes schedules into scheduled payments
*/
package amortization

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPAYMENT FREQUENCY
// =============================================================================

type Frequency string

const (
	Biweekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
	Bimonthly Frequency = "bimonthly"
	Quarterly Frequency = "quarterly"
)

// periodsPerYear maps each frequency to its payment count per year.
var periodsPerYear = map[Frequency]int{
	Monthly:   12,
	Biweekly:  26,
	Bimonthly: 6,
	Quarterly: 4,
}

// monthsPerPeriod maps month-based frequencies to their calendar-month step.
var monthsPerPeriod = map[Frequency]int{
	Monthly:   1,
	Bimonthly: 2,
	Quarterly: 3,
}

// PeriodsPerYear returns how many payments the frequency yields per year.
// An unrecognized frequency is a configuration error, not user input.
func (f Frequency) PeriodsPerYear() (int, error) {
	n, ok := periodsPerYear[f]
	if !ok {
		return 0, &UnknownFrequencyError{Frequency: f}
	}
	return n, nil
}

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	_, ok := periodsPerYear[f]
	return ok
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidRate is returned when the annual interest rate is outside
	// [0, 1]. Rates are fractions, e.g. 0.12 for 12%.
	ErrInvalidRate = errors.New("invalid annual interest rate")

	// ErrUnknownFrequency is returned for an unrecognized repayment
	// frequency key. Treated as a programmer/config error.
	ErrUnknownFrequency = errors.New("unknown repayment frequency")
)

type InvalidRateError struct {
	Rate decimal.Decimal
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("annual interest rate should be between 0 and 1 (e.g., 0.05 for 5%%), got %s", e.Rate)
}

func (e *InvalidRateError) Unwrap() error { return ErrInvalidRate }

type UnknownFrequencyError struct {
	Frequency Frequency
}

func (e *UnknownFrequencyError) Error() string {
	return fmt.Sprintf("unknown repayment frequency %q", e.Frequency)
}

func (e *UnknownFrequencyError) Unwrap() error { return ErrUnknownFrequency }

// =============================================================================
// PARAMETERS & RECORDS
// =============================================================================

// LoanParameters is the immutable input to schedule generation.
type LoanParameters struct {
	Principal          decimal.Decimal
	AnnualInterestRate decimal.Decimal // fraction in [0, 1]
	TermLength         int             // number of periods
	Frequency          Frequency
	StartDate          time.Time
	PaymentDueDay      int // 1-31; 0 = unset; ignored for biweekly
}

// PaymentRecord is one row of the amortization schedule. The first record
// is always the zero-value anchor at the start date.
type PaymentRecord struct {
	PaymentDate      time.Time
	Principal        decimal.Decimal
	Interest         decimal.Decimal
	TotalPayment     decimal.Decimal
	RemainingBalance decimal.Decimal
}

// Schedule generation stops once dates pass this year rather than erroring.
const maxScheduleYear = 9999

// balances within a cent of zero snap to exactly zero
var centTolerance = decimal.NewFromFloat(0.01)

// =============================================================================
// SCHEDULE GENERATION
// =============================================================================

// PeriodicInterestRate converts an annual rate to a per-period rate for the
// given frequency. The annual rate must be a fraction in [0, 1].
func PeriodicInterestRate(annualRate decimal.Decimal, frequency Frequency) (decimal.Decimal, error) {
	if annualRate.IsNegative() || annualRate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, &InvalidRateError{Rate: annualRate}
	}
	periods, err := frequency.PeriodsPerYear()
	if err != nil {
		return decimal.Zero, err
	}
	return annualRate.Div(decimal.NewFromInt(int64(periods))), nil
}

// periodicPayment computes the level annuity payment for an ordinary
// (end-of-period) annuity: P*r*(1+r)^n / ((1+r)^n - 1), or P/n at r=0.
func periodicPayment(principal, rate decimal.Decimal, term int) decimal.Decimal {
	n := decimal.NewFromInt(int64(term))
	if rate.IsZero() {
		return principal.Div(n)
	}
	growth := decimal.NewFromInt(1).Add(rate).Pow(n)
	return principal.Mul(rate).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1)))
}

// GenerateSchedule produces the ordered payment schedule for the given
// parameters. The result always starts with the anchor record; payment
// records follow until the term is exhausted, the balance reaches zero, or
// the date range runs out. All monetary fields are rounded to 2 decimals.
func GenerateSchedule(p LoanParameters) ([]PaymentRecord, error) {
	rate, err := PeriodicInterestRate(p.AnnualInterestRate, p.Frequency)
	if err != nil {
		return nil, err
	}

	payment := periodicPayment(p.Principal, rate, p.TermLength)
	balance := p.Principal
	start := truncateToDay(p.StartDate)

	records := []PaymentRecord{{
		PaymentDate:      start,
		Principal:        decimal.Zero,
		Interest:         decimal.Zero,
		TotalPayment:     decimal.Zero,
		RemainingBalance: balance,
	}}

	cursor := start
	for i := 0; i < p.TermLength; i++ {
		var payDate time.Time
		if p.Frequency == Biweekly {
			// The biweekly cursor accumulates unadjusted 14-day steps so
			// business-day rollbacks never compound period to period.
			cursor = cursor.AddDate(0, 0, 14)
			if cursor.Year() > maxScheduleYear {
				break
			}
			payDate = AdjustPaymentDate(cursor)
		} else {
			next := addMonthsClamped(cursor, monthsPerPeriod[p.Frequency])
			if next.Year() > maxScheduleYear {
				break
			}
			if p.PaymentDueDay > 0 {
				next = clampDayOfMonth(next, p.PaymentDueDay)
			}
			next = AdjustPaymentDate(next)
			cursor = next
			payDate = next
		}

		interest := balance.Mul(rate)
		principal := payment.Sub(interest)
		if principal.GreaterThan(balance) {
			principal = balance
		}
		balance = balance.Sub(principal)
		if balance.Abs().LessThan(centTolerance) {
			balance = decimal.Zero
		}

		records = append(records, PaymentRecord{
			PaymentDate:      payDate,
			Principal:        principal,
			Interest:         interest,
			TotalPayment:     principal.Add(interest),
			RemainingBalance: balance,
		})

		if balance.Sign() <= 0 {
			break
		}
	}

	for i := range records {
		records[i].Principal = records[i].Principal.Round(2)
		records[i].Interest = records[i].Interest.Round(2)
		records[i].TotalPayment = records[i].TotalPayment.Round(2)
		records[i].RemainingBalance = records[i].RemainingBalance.Round(2)
	}

	return records, nil
}

// =============================================================================
// DATE ARITHMETIC
// =============================================================================

// addMonthsClamped advances t by n calendar months, clamping the day to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29, never Mar 3).
func addMonthsClamped(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := t.Day()
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// clampDayOfMonth sets the day of month to min(day, days in that month).
func clampDayOfMonth(t time.Time, day int) time.Time {
	if last := daysInMonth(t.Year(), t.Month()); day > last {
		day = last
	}
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
