/*
handlers.go - HTTP API handlers for the credit engine

PURPOSE:
  Exposes credit lines, sublines, adjustments, loan terms, and scheduled
  payments via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Credit lines:
    GET    /api/credit-lines                  List credit lines
    POST   /api/credit-lines                  Open a credit line
    GET    /api/credit-lines/{id}             Get credit line
    GET    /api/credit-lines/{id}/sublines    List its sublines
    POST   /api/credit-lines/{id}/adjustments Propose a line adjustment
    GET    /api/credit-lines/{id}/adjustments List its adjustments

  Credit sublines:
    POST   /api/credit-sublines               Open a subline
    GET    /api/credit-sublines/{id}          Get subline
    POST   /api/credit-sublines/{id}/amount-adjustments
    GET    /api/credit-sublines/{id}/amount-adjustments
    POST   /api/credit-sublines/{id}/rate-adjustments
    GET    /api/credit-sublines/{id}/rate-adjustments
    POST   /api/credit-sublines/{id}/status-adjustments
    GET    /api/credit-sublines/{id}/status-adjustments
    POST   /api/credit-sublines/{id}/schedule-preview

  Adjustment review:
    POST   /api/line-adjustments/{id}/status
    POST   /api/amount-adjustments/{id}/status
    POST   /api/rate-adjustments/{id}/status
    POST   /api/status-adjustments/{id}/status

  Loan terms:
    POST   /api/loan-terms                    Attach terms to a subline
    GET    /api/loan-terms/{id}               Get term
    POST   /api/loan-terms/{id}/status        Review a term
    GET    /api/loan-terms/{id}/payments      List its schedule
    POST   /api/payments/{id}                 Record a payment

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, illegal lifecycle transitions
  - 404: Resource not found
  - 500: Integrity violations and internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/althea/credit-engine/amortization"
	"github.com/althea/credit-engine/credit"
	"github.com/althea/credit-engine/lifecycle"
	"github.com/althea/credit-engine/loan"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Credit *credit.Service
	Loan   *loan.Service
}

// NewHandler creates a new handler over the domain services.
func NewHandler(creditSvc *credit.Service, loanSvc *loan.Service) *Handler {
	return &Handler{Credit: creditSvc, Loan: loanSvc}
}

// =============================================================================
// CREDIT LINE HANDLERS
// =============================================================================

// ListCreditLines returns all credit lines.
// GET /api/credit-lines
func (h *Handler) ListCreditLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Credit.ListCreditLines(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list credit lines", err)
		return
	}

	dtos := make([]CreditLineDTO, len(lines))
	for i := range lines {
		dtos[i] = toCreditLineDTO(&lines[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCreditLine opens a new credit line in pending status.
// POST /api/credit-lines
func (h *Handler) CreateCreditLine(w http.ResponseWriter, r *http.Request) {
	var req CreateCreditLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	limit, err := parseDecimal("credit_limit", req.CreditLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	end, err := parseDatePtr("end_date", req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	line, err := h.Credit.CreateCreditLine(r.Context(), credit.CreateLineInput{
		CreditLimit: limit,
		Currency:    credit.Currency(req.Currency),
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		writeDomainError(w, "Failed to create credit line", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCreditLineDTO(line))
}

// GetCreditLine returns one credit line.
// GET /api/credit-lines/{id}
func (h *Handler) GetCreditLine(w http.ResponseWriter, r *http.Request) {
	line, err := h.Credit.GetCreditLine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get credit line", err)
		return
	}
	writeJSON(w, http.StatusOK, toCreditLineDTO(line))
}

// ListLineSublines returns the sublines under a credit line.
// GET /api/credit-lines/{id}/sublines
func (h *Handler) ListLineSublines(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Credit.ListCreditSublines(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to list sublines", err)
		return
	}

	dtos := make([]CreditSublineDTO, len(subs))
	for i := range subs {
		dtos[i] = toCreditSublineDTO(&subs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CREDIT SUBLINE HANDLERS
// =============================================================================

// CreateCreditSubline opens a subline under an existing line.
// POST /api/credit-sublines
func (h *Handler) CreateCreditSubline(w http.ResponseWriter, r *http.Request) {
	var req CreateCreditSublineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseDecimal("subline_amount", req.SublineAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	rate, err := parseDecimal("interest_rate", req.InterestRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	sub, err := h.Credit.CreateCreditSubline(r.Context(), credit.CreateSublineInput{
		CreditLineID:  req.CreditLineID,
		SublineType:   req.SublineType,
		SublineAmount: amount,
		InterestRate:  rate,
		Status:        credit.SublineStatus(req.Status),
	})
	if err != nil {
		writeDomainError(w, "Failed to create credit subline", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCreditSublineDTO(sub))
}

// GetCreditSubline returns one subline.
// GET /api/credit-sublines/{id}
func (h *Handler) GetCreditSubline(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Credit.GetCreditSubline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get credit subline", err)
		return
	}
	writeJSON(w, http.StatusOK, toCreditSublineDTO(sub))
}

// =============================================================================
// LINE ADJUSTMENT HANDLERS
// =============================================================================

// ProposeLineAdjustment proposes changes to a credit line.
// POST /api/credit-lines/{id}/adjustments
func (h *Handler) ProposeLineAdjustment(w http.ResponseWriter, r *http.Request) {
	var req ProposeLineAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	proposal := credit.LineProposal{Reason: req.Reason}
	if req.NewLimit != nil {
		limit, err := parseDecimal("new_limit", *req.NewLimit)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", err)
			return
		}
		proposal.NewLimit = &limit
	}
	var err error
	if proposal.NewEndDate, err = parseDatePtr("new_end_date", req.NewEndDate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	if req.NewStatus != nil {
		st := credit.LineStatus(*req.NewStatus)
		proposal.NewStatus = &st
	}
	if req.NewCurrency != nil {
		cur := credit.Currency(*req.NewCurrency)
		proposal.NewCurrency = &cur
	}

	adj, err := h.Credit.ProposeLineAdjustment(r.Context(), chi.URLParam(r, "id"), proposal)
	if err != nil {
		writeDomainError(w, "Failed to propose line adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLineAdjustmentDTO(adj))
}

// ListLineAdjustments returns a line's adjustment history.
// GET /api/credit-lines/{id}/adjustments
func (h *Handler) ListLineAdjustments(w http.ResponseWriter, r *http.Request) {
	adjs, err := h.Credit.ListLineAdjustments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to list line adjustments", err)
		return
	}

	dtos := make([]LineAdjustmentDTO, len(adjs))
	for i := range adjs {
		dtos[i] = toLineAdjustmentDTO(&adjs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetLineAdjustmentStatus reviews a line adjustment.
// POST /api/line-adjustments/{id}/status
func (h *Handler) SetLineAdjustmentStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := decodeStatusRequest(w, r)
	if !ok {
		return
	}
	adj, err := h.Credit.SetLineAdjustmentStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		writeDomainError(w, "Failed to update line adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, toLineAdjustmentDTO(adj))
}

// =============================================================================
// SUBLINE ADJUSTMENT HANDLERS
// =============================================================================

// ProposeAmountAdjustment proposes a new subline amount.
// POST /api/credit-sublines/{id}/amount-adjustments
func (h *Handler) ProposeAmountAdjustment(w http.ResponseWriter, r *http.Request) {
	var req ProposeSublineAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseDecimal("adjusted_value", req.AdjustedValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	adj, err := h.Credit.ProposeAmountAdjustment(r.Context(), chi.URLParam(r, "id"), amount, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to propose amount adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAmountAdjustmentDTO(adj))
}

// ListAmountAdjustments returns a subline's amount adjustment history.
// GET /api/credit-sublines/{id}/amount-adjustments
func (h *Handler) ListAmountAdjustments(w http.ResponseWriter, r *http.Request) {
	adjs, err := h.Credit.ListAmountAdjustments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to list amount adjustments", err)
		return
	}

	dtos := make([]SublineAdjustmentDTO, len(adjs))
	for i := range adjs {
		dtos[i] = toAmountAdjustmentDTO(&adjs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetAmountAdjustmentStatus reviews an amount adjustment.
// POST /api/amount-adjustments/{id}/status
func (h *Handler) SetAmountAdjustmentStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := decodeStatusRequest(w, r)
	if !ok {
		return
	}
	adj, err := h.Credit.SetAmountAdjustmentStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		writeDomainError(w, "Failed to update amount adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAmountAdjustmentDTO(adj))
}

// ProposeRateAdjustment proposes a new subline interest rate.
// POST /api/credit-sublines/{id}/rate-adjustments
func (h *Handler) ProposeRateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req ProposeSublineAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rate, err := parseDecimal("adjusted_value", req.AdjustedValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	adj, err := h.Credit.ProposeRateAdjustment(r.Context(), chi.URLParam(r, "id"), rate, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to propose rate adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRateAdjustmentDTO(adj))
}

// ListRateAdjustments returns a subline's rate adjustment history.
// GET /api/credit-sublines/{id}/rate-adjustments
func (h *Handler) ListRateAdjustments(w http.ResponseWriter, r *http.Request) {
	adjs, err := h.Credit.ListRateAdjustments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to list rate adjustments", err)
		return
	}

	dtos := make([]SublineAdjustmentDTO, len(adjs))
	for i := range adjs {
		dtos[i] = toRateAdjustmentDTO(&adjs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetRateAdjustmentStatus reviews a rate adjustment.
// POST /api/rate-adjustments/{id}/status
func (h *Handler) SetRateAdjustmentStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := decodeStatusRequest(w, r)
	if !ok {
		return
	}
	adj, err := h.Credit.SetRateAdjustmentStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		writeDomainError(w, "Failed to update rate adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, toRateAdjustmentDTO(adj))
}

// ProposeStatusAdjustment proposes a new subline status.
// POST /api/credit-sublines/{id}/status-adjustments
func (h *Handler) ProposeStatusAdjustment(w http.ResponseWriter, r *http.Request) {
	var req ProposeSublineAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	adj, err := h.Credit.ProposeStatusAdjustment(r.Context(), chi.URLParam(r, "id"),
		credit.SublineStatus(req.AdjustedValue), req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to propose status adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStatusAdjustmentDTO(adj))
}

// ListStatusAdjustments returns a subline's status adjustment history.
// GET /api/credit-sublines/{id}/status-adjustments
func (h *Handler) ListStatusAdjustments(w http.ResponseWriter, r *http.Request) {
	adjs, err := h.Credit.ListStatusAdjustments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to list status adjustments", err)
		return
	}

	dtos := make([]SublineAdjustmentDTO, len(adjs))
	for i := range adjs {
		dtos[i] = toStatusAdjustmentDTO(&adjs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetStatusAdjustmentStatus reviews a status adjustment.
// POST /api/status-adjustments/{id}/status
func (h *Handler) SetStatusAdjustmentStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := decodeStatusRequest(w, r)
	if !ok {
		return
	}
	adj, err := h.Credit.SetStatusAdjustmentStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		writeDomainError(w, "Failed to update status adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusAdjustmentDTO(adj))
}

// =============================================================================
// LOAN TERM HANDLERS
// =============================================================================

// CreateLoanTerm attaches repayment terms to a subline.
// POST /api/loan-terms
func (h *Handler) CreateLoanTerm(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanTermRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := loan.CreateTermInput{
		CreditSublineID: req.CreditSublineID,
		TermLength:      req.TermLength,
		Frequency:       amortization.Frequency(req.RepaymentFrequency),
		PaymentDueDay:   req.PaymentDueDay,
		Status:          loan.TermStatus(req.Status),
	}
	if req.StartDate != "" {
		start, err := parseDate("start_date", req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", err)
			return
		}
		in.StartDate = start
	}

	term, err := h.Loan.CreateLoanTerm(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to create loan term", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanTermDTO(term))
}

// GetLoanTerm returns one loan term.
// GET /api/loan-terms/{id}
func (h *Handler) GetLoanTerm(w http.ResponseWriter, r *http.Request) {
	term, err := h.Loan.GetLoanTerm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get loan term", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanTermDTO(term))
}

// SetLoanTermStatus reviews a loan term. Approval materializes the
// amortization schedule.
// POST /api/loan-terms/{id}/status
func (h *Handler) SetLoanTermStatus(w http.ResponseWriter, r *http.Request) {
	var req SetLoanTermStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	term, err := h.Loan.SetLoanTermStatus(r.Context(), chi.URLParam(r, "id"), loan.TermStatus(req.Status))
	if err != nil {
		writeDomainError(w, "Failed to update loan term", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanTermDTO(term))
}

// ListScheduledPayments returns a term's materialized schedule.
// GET /api/loan-terms/{id}/payments
func (h *Handler) ListScheduledPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Loan.ListScheduledPayments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to list scheduled payments", err)
		return
	}

	dtos := make([]ScheduledPaymentDTO, len(payments))
	for i := range payments {
		dtos[i] = toScheduledPaymentDTO(&payments[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordPayment updates a scheduled payment's status and actual date.
// POST /api/payments/{id}
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	actual, err := parseDatePtr("actual_payment_date", req.ActualPaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	p, err := h.Loan.RecordPayment(r.Context(), chi.URLParam(r, "id"), loan.PaymentStatus(req.Status), actual)
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduledPaymentDTO(p))
}

// PreviewSchedule computes a schedule for a subline without persisting.
// POST /api/credit-sublines/{id}/schedule-preview
func (h *Handler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var req PreviewScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	records, err := h.Loan.PreviewSchedule(r.Context(), chi.URLParam(r, "id"),
		req.TermLength, amortization.Frequency(req.RepaymentFrequency), start, req.PaymentDueDay)
	if err != nil {
		writeDomainError(w, "Failed to compute schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentRecordDTOs(records))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func decodeStatusRequest(w http.ResponseWriter, r *http.Request) (lifecycle.Status, bool) {
	var req SetAdjustmentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return "", false
	}
	return lifecycle.Status(req.Status), true
}

// writeDomainError maps the error taxonomy to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case lifecycle.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case lifecycle.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
