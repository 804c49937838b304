/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY & RATES:
  Decimal values travel as JSON strings ("10000.00", "0.125") so clients
  never round them through float64. Dates travel as "2006-01-02"; full
  timestamps as RFC3339.

VALIDATION:
  Shape parsing (decimals, dates) happens here; business validation lives
  in the domain services. DTOs are otherwise pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/althea/credit-engine/amortization"
	"github.com/althea/credit-engine/credit"
	"github.com/althea/credit-engine/loan"
)

const dateLayout = "2006-01-02"

// =============================================================================
// CREDIT LINES
// =============================================================================

// CreditLineDTO represents a credit line in API responses.
type CreditLineDTO struct {
	ID          string  `json:"id"`
	CreditLimit string  `json:"credit_limit"`
	Currency    string  `json:"currency"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date,omitempty"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// CreateCreditLineRequest is the request to open a credit line.
type CreateCreditLineRequest struct {
	CreditLimit string  `json:"credit_limit"`
	Currency    string  `json:"currency,omitempty"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date,omitempty"`
}

func toCreditLineDTO(l *credit.CreditLine) CreditLineDTO {
	return CreditLineDTO{
		ID:          l.ID,
		CreditLimit: l.CreditLimit.String(),
		Currency:    string(l.Currency),
		StartDate:   l.StartDate.Format(dateLayout),
		EndDate:     formatDatePtr(l.EndDate),
		Status:      string(l.Status),
		CreatedAt:   l.Created.Format(time.RFC3339),
	}
}

// =============================================================================
// CREDIT SUBLINES
// =============================================================================

// CreditSublineDTO represents a credit subline in API responses.
type CreditSublineDTO struct {
	ID                 string `json:"id"`
	CreditLineID       string `json:"credit_line_id"`
	SublineType        string `json:"subline_type,omitempty"`
	SublineAmount      string `json:"subline_amount"`
	AmountDisbursed    string `json:"amount_disbursed"`
	OutstandingBalance string `json:"outstanding_balance"`
	InterestRate       string `json:"interest_rate"`
	Status             string `json:"status"`
	CreatedAt          string `json:"created_at,omitempty"`
}

// CreateCreditSublineRequest is the request to open a subline under a line.
type CreateCreditSublineRequest struct {
	CreditLineID  string `json:"credit_line_id"`
	SublineType   string `json:"subline_type,omitempty"`
	SublineAmount string `json:"subline_amount"`
	InterestRate  string `json:"interest_rate"`
	Status        string `json:"status,omitempty"`
}

func toCreditSublineDTO(s *credit.CreditSubline) CreditSublineDTO {
	return CreditSublineDTO{
		ID:                 s.ID,
		CreditLineID:       s.CreditLineID,
		SublineType:        s.SublineType,
		SublineAmount:      s.SublineAmount.String(),
		AmountDisbursed:    s.AmountDisbursed.String(),
		OutstandingBalance: s.OutstandingBalance.String(),
		InterestRate:       s.InterestRate.String(),
		Status:             string(s.Status),
		CreatedAt:          s.Created.Format(time.RFC3339),
	}
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

// LineAdjustmentDTO represents a credit line adjustment record.
type LineAdjustmentDTO struct {
	ID               string  `json:"id"`
	CreditLineID     string  `json:"credit_line_id"`
	PreviousLimit    string  `json:"previous_limit"`
	PreviousStatus   string  `json:"previous_status"`
	NewLimit         *string `json:"new_limit,omitempty"`
	NewEndDate       *string `json:"new_end_date,omitempty"`
	NewStatus        *string `json:"new_status,omitempty"`
	NewCurrency      *string `json:"new_currency,omitempty"`
	AdjustmentStatus string  `json:"adjustment_status"`
	EffectiveDate    string  `json:"effective_date"`
	Reason           string  `json:"reason"`
	CreatedAt        string  `json:"created_at,omitempty"`
}

// ProposeLineAdjustmentRequest proposes changes to a credit line. Omitted
// fields are left unchanged on approval.
type ProposeLineAdjustmentRequest struct {
	NewLimit    *string `json:"new_limit,omitempty"`
	NewEndDate  *string `json:"new_end_date,omitempty"`
	NewStatus   *string `json:"new_status,omitempty"`
	NewCurrency *string `json:"new_currency,omitempty"`
	Reason      string  `json:"reason"`
}

func toLineAdjustmentDTO(a *credit.LineAdjustment) LineAdjustmentDTO {
	dto := LineAdjustmentDTO{
		ID:               a.ID,
		CreditLineID:     a.CreditLineID,
		PreviousLimit:    a.PreviousLimit.String(),
		PreviousStatus:   string(a.PreviousStatus),
		NewEndDate:       formatDatePtr(a.NewEndDate),
		AdjustmentStatus: string(a.AdjustmentStatus),
		EffectiveDate:    a.EffectiveDate.Format(time.RFC3339),
		Reason:           a.Reason,
		CreatedAt:        a.Created.Format(time.RFC3339),
	}
	if a.NewLimit != nil {
		dto.NewLimit = strPtr(a.NewLimit.String())
	}
	if a.NewStatus != nil {
		dto.NewStatus = strPtr(string(*a.NewStatus))
	}
	if a.NewCurrency != nil {
		dto.NewCurrency = strPtr(string(*a.NewCurrency))
	}
	return dto
}

// SublineAdjustmentDTO is the shared response shape for amount, rate, and
// status adjustments: one initial value, one adjusted value.
type SublineAdjustmentDTO struct {
	ID               string `json:"id"`
	CreditSublineID  string `json:"credit_subline_id"`
	InitialValue     string `json:"initial_value"`
	AdjustedValue    string `json:"adjusted_value"`
	AdjustmentStatus string `json:"adjustment_status"`
	EffectiveDate    string `json:"effective_date"`
	Reason           string `json:"reason"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// ProposeSublineAdjustmentRequest carries the proposed value and reason
// for any of the three subline adjustment kinds.
type ProposeSublineAdjustmentRequest struct {
	AdjustedValue string `json:"adjusted_value"`
	Reason        string `json:"reason"`
}

// SetAdjustmentStatusRequest moves an adjustment through review.
type SetAdjustmentStatusRequest struct {
	Status string `json:"status"`
}

func toAmountAdjustmentDTO(a *credit.AmountAdjustment) SublineAdjustmentDTO {
	return SublineAdjustmentDTO{
		ID:               a.ID,
		CreditSublineID:  a.CreditSublineID,
		InitialValue:     a.InitialAmount.String(),
		AdjustedValue:    a.AdjustedAmount.String(),
		AdjustmentStatus: string(a.AdjustmentStatus),
		EffectiveDate:    a.EffectiveDate.Format(time.RFC3339),
		Reason:           a.Reason,
		CreatedAt:        a.Created.Format(time.RFC3339),
	}
}

func toRateAdjustmentDTO(a *credit.RateAdjustment) SublineAdjustmentDTO {
	return SublineAdjustmentDTO{
		ID:               a.ID,
		CreditSublineID:  a.CreditSublineID,
		InitialValue:     a.InitialRate.String(),
		AdjustedValue:    a.AdjustedRate.String(),
		AdjustmentStatus: string(a.AdjustmentStatus),
		EffectiveDate:    a.EffectiveDate.Format(time.RFC3339),
		Reason:           a.Reason,
		CreatedAt:        a.Created.Format(time.RFC3339),
	}
}

func toStatusAdjustmentDTO(a *credit.StatusAdjustment) SublineAdjustmentDTO {
	return SublineAdjustmentDTO{
		ID:               a.ID,
		CreditSublineID:  a.CreditSublineID,
		InitialValue:     string(a.InitialStatus),
		AdjustedValue:    string(a.AdjustedStatus),
		AdjustmentStatus: string(a.AdjustmentStatus),
		EffectiveDate:    a.EffectiveDate.Format(time.RFC3339),
		Reason:           a.Reason,
		CreatedAt:        a.Created.Format(time.RFC3339),
	}
}

// =============================================================================
// LOAN TERMS & PAYMENTS
// =============================================================================

// LoanTermDTO represents a loan term in API responses.
type LoanTermDTO struct {
	ID                 string `json:"id"`
	CreditSublineID    string `json:"credit_subline_id"`
	TermLength         int    `json:"term_length"`
	RepaymentFrequency string `json:"repayment_frequency"`
	PaymentDueDay      int    `json:"payment_due_day,omitempty"`
	StartDate          string `json:"start_date"`
	Status             string `json:"status"`
	CreatedAt          string `json:"created_at,omitempty"`
}

// CreateLoanTermRequest is the request to attach repayment terms to a
// subline.
type CreateLoanTermRequest struct {
	CreditSublineID    string `json:"credit_subline_id"`
	TermLength         int    `json:"term_length"`
	RepaymentFrequency string `json:"repayment_frequency"`
	PaymentDueDay      int    `json:"payment_due_day,omitempty"`
	StartDate          string `json:"start_date,omitempty"`
	Status             string `json:"status,omitempty"`
}

// SetLoanTermStatusRequest moves a term through review.
type SetLoanTermStatusRequest struct {
	Status string `json:"status"`
}

func toLoanTermDTO(t *loan.LoanTerm) LoanTermDTO {
	return LoanTermDTO{
		ID:                 t.ID,
		CreditSublineID:    t.CreditSublineID,
		TermLength:         t.TermLength,
		RepaymentFrequency: string(t.Frequency),
		PaymentDueDay:      t.PaymentDueDay,
		StartDate:          t.StartDate.Format(dateLayout),
		Status:             string(t.Status),
		CreatedAt:          t.Created.Format(time.RFC3339),
	}
}

// ScheduledPaymentDTO represents one materialized schedule row.
type ScheduledPaymentDTO struct {
	ID                 string  `json:"id"`
	LoanTermID         string  `json:"loan_term_id"`
	DueDate            string  `json:"due_date"`
	AmountDue          string  `json:"amount_due"`
	PrincipalComponent string  `json:"principal_component"`
	InterestComponent  string  `json:"interest_component"`
	Status             string  `json:"status"`
	ActualPaymentDate  *string `json:"actual_payment_date,omitempty"`
}

// RecordPaymentRequest updates a scheduled payment's tracking fields.
type RecordPaymentRequest struct {
	Status            string  `json:"status"`
	ActualPaymentDate *string `json:"actual_payment_date,omitempty"`
}

func toScheduledPaymentDTO(p *loan.ScheduledPayment) ScheduledPaymentDTO {
	return ScheduledPaymentDTO{
		ID:                 p.ID,
		LoanTermID:         p.LoanTermID,
		DueDate:            p.DueDate.Format(dateLayout),
		AmountDue:          p.AmountDue.String(),
		PrincipalComponent: p.PrincipalComponent.String(),
		InterestComponent:  p.InterestComponent.String(),
		Status:             string(p.Status),
		ActualPaymentDate:  formatDatePtr(p.ActualPaymentDate),
	}
}

// =============================================================================
// SCHEDULE PREVIEW
// =============================================================================

// PreviewScheduleRequest computes a schedule without persisting it.
type PreviewScheduleRequest struct {
	TermLength         int    `json:"term_length"`
	RepaymentFrequency string `json:"repayment_frequency"`
	PaymentDueDay      int    `json:"payment_due_day,omitempty"`
	StartDate          string `json:"start_date"`
}

// PaymentRecordDTO is one computed schedule row, anchor included.
type PaymentRecordDTO struct {
	PaymentDate      string `json:"payment_date"`
	Principal        string `json:"principal"`
	Interest         string `json:"interest"`
	TotalPayment     string `json:"total_payment"`
	RemainingBalance string `json:"remaining_balance"`
}

func toPaymentRecordDTOs(records []amortization.PaymentRecord) []PaymentRecordDTO {
	dtos := make([]PaymentRecordDTO, len(records))
	for i, r := range records {
		dtos[i] = PaymentRecordDTO{
			PaymentDate:      r.PaymentDate.Format(dateLayout),
			Principal:        r.Principal.String(),
			Interest:         r.Interest.String(),
			TotalPayment:     r.TotalPayment.String(),
			RemainingBalance: r.RemainingBalance.String(),
		}
	}
	return dtos
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseDecimal(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Decimal{}, fmt.Errorf("%s is required", field)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s must be a decimal number", field)
	}
	return d, nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a date in YYYY-MM-DD form", field)
	}
	return t, nil
}

func parseDatePtr(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := parseDate(field, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return strPtr(t.Format(dateLayout))
}

func strPtr(s string) *string { return &s }
