package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/rupeeflow/loan-engine/internal/domain"
	customError "github.com/rupeeflow/loan-engine/pkg/errors"
	"github.com/rupeeflow/loan-engine/pkg/response"
)

// LoanService is the ledger surface the HTTP layer needs.
type LoanService interface {
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, []*domain.Installment, error)
	RecordPayment(ctx context.Context, loanID string, request *domain.RecordPaymentRequest) (*domain.Loan, *domain.Payment, error)
	GetLoan(ctx context.Context, loanID string) (*domain.Loan, error)
	GetSchedule(ctx context.Context, loanID string) ([]*domain.Installment, error)
	GetPayments(ctx context.Context, loanID string) ([]*domain.Payment, error)
	GetOverdueInstallments(ctx context.Context, loanID string) ([]*domain.Installment, error)
	CalculateEMI(ctx context.Context, request *domain.CalculateEMIRequest) (*domain.CalculateEMIResponse, error)
}

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
}

func NewLoanHandler(service LoanService) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: newValidator(),
	}
}

// CreateLoan handles POST /loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Invalid loan terms", err)
		return
	}

	loan, schedule, err := h.service.CreateLoan(r.Context(), &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Created(w, domain.CreateLoanResponse{Loan: loan, Schedule: schedule})
}

// GetLoan handles GET /loans/{loanId}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	loan, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, loan)
}

// RecordPayment handles POST /loans/{loanId}/payments
func (h *LoanHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	var request domain.RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Invalid payment request", err)
		return
	}

	loan, payment, err := h.service.RecordPayment(r.Context(), loanID, &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, domain.RecordPaymentResponse{Loan: loan, Payment: payment})
}

// GetSchedule handles GET /loans/{loanId}/emi-schedule
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	schedule, err := h.service.GetSchedule(r.Context(), loanID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, domain.ScheduleResponse{LoanID: loanID, Schedule: schedule})
}

// GetPayments handles GET /loans/{loanId}/payments
func (h *LoanHandler) GetPayments(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	payments, err := h.service.GetPayments(r.Context(), loanID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, domain.PaymentsResponse{LoanID: loanID, Payments: payments})
}

// GetOverdue handles GET /loans/{loanId}/overdue
func (h *LoanHandler) GetOverdue(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	installments, err := h.service.GetOverdueInstallments(r.Context(), loanID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, domain.ScheduleResponse{LoanID: loanID, Schedule: installments})
}

// CalculateEMI handles POST /loans/calculate-emi
func (h *LoanHandler) CalculateEMI(w http.ResponseWriter, r *http.Request) {
	var request domain.CalculateEMIRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Invalid calculation request", err)
		return
	}

	quote, err := h.service.CalculateEMI(r.Context(), &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, quote)
}

func writeBusinessError(w http.ResponseWriter, err error) {
	switch customError.CodeOf(err) {
	case customError.ErrCodeLoanNotFound, customError.ErrCodeInstallmentNotFound:
		response.ErrorWithCode(w, http.StatusNotFound, customError.CodeOf(err), "Not found", err)
	case customError.ErrCodeValidation, customError.ErrCodeArithmeticDegenerate:
		response.ErrorWithCode(w, http.StatusBadRequest, customError.CodeOf(err), "Invalid request", err)
	case customError.ErrCodeLoanAlreadyExists:
		response.ErrorWithCode(w, http.StatusConflict, customError.CodeOf(err), "Conflict", err)
	default:
		response.InternalServerError(w, "Internal server error", err)
	}
}
