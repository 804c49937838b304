/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/credit-lines/*        Credit line management and adjustments
  /api/credit-sublines/*     Subline management, adjustments, previews
  /api/*-adjustments/*       Adjustment review
  /api/loan-terms/*          Loan terms and schedules
  /api/payments/*            Payment tracking
  /health                    Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Credit line routes
		r.Route("/credit-lines", func(r chi.Router) {
			r.Get("/", h.ListCreditLines)
			r.Post("/", h.CreateCreditLine)
			r.Get("/{id}", h.GetCreditLine)
			r.Get("/{id}/sublines", h.ListLineSublines)
			r.Post("/{id}/adjustments", h.ProposeLineAdjustment)
			r.Get("/{id}/adjustments", h.ListLineAdjustments)
		})

		// Credit subline routes
		r.Route("/credit-sublines", func(r chi.Router) {
			r.Post("/", h.CreateCreditSubline)
			r.Get("/{id}", h.GetCreditSubline)
			r.Post("/{id}/amount-adjustments", h.ProposeAmountAdjustment)
			r.Get("/{id}/amount-adjustments", h.ListAmountAdjustments)
			r.Post("/{id}/rate-adjustments", h.ProposeRateAdjustment)
			r.Get("/{id}/rate-adjustments", h.ListRateAdjustments)
			r.Post("/{id}/status-adjustments", h.ProposeStatusAdjustment)
			r.Get("/{id}/status-adjustments", h.ListStatusAdjustments)
			r.Post("/{id}/schedule-preview", h.PreviewSchedule)
		})

		// Adjustment review routes
		r.Post("/line-adjustments/{id}/status", h.SetLineAdjustmentStatus)
		r.Post("/amount-adjustments/{id}/status", h.SetAmountAdjustmentStatus)
		r.Post("/rate-adjustments/{id}/status", h.SetRateAdjustmentStatus)
		r.Post("/status-adjustments/{id}/status", h.SetStatusAdjustmentStatus)

		// Loan term routes
		r.Route("/loan-terms", func(r chi.Router) {
			r.Post("/", h.CreateLoanTerm)
			r.Get("/{id}", h.GetLoanTerm)
			r.Post("/{id}/status", h.SetLoanTermStatus)
			r.Get("/{id}/payments", h.ListScheduledPayments)
		})

		// Payment tracking
		r.Post("/payments/{id}", h.RecordPayment)
	})

	return r
}
