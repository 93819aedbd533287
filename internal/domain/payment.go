package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is an append-only record of one payment event. Records are never
// mutated or removed, even when the same installment is paid again.
type Payment struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	LoanID            string          `json:"loan_id" db:"loan_id"`
	InstallmentNumber int             `json:"installment_number" db:"installment_number"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	PrincipalPaid     decimal.Decimal `json:"principal_paid" db:"principal_paid"`
	InterestPaid      decimal.Decimal `json:"interest_paid" db:"interest_paid"`
	LateFee           decimal.Decimal `json:"late_fee" db:"late_fee"`
	PaymentDate       time.Time       `json:"payment_date" db:"payment_date"`
	PaymentMethod     string          `json:"payment_method" db:"payment_method"`
	Notes             string          `json:"notes" db:"notes"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	LoanID             string          `json:"loan_id" validate:"required"`
	UserID             string          `json:"user_id"`
	Principal          decimal.Decimal `json:"principal" validate:"required,decimal_gt=0"`
	AnnualInterestRate decimal.Decimal `json:"annual_interest_rate" validate:"decimal_gte=0"`
	TenureInstallments int             `json:"tenure_installments" validate:"required,gt=0,lte=600"`
	PaymentFrequency   string          `json:"payment_frequency" validate:"omitempty,oneof=monthly quarterly yearly"`
	StartDate          *time.Time      `json:"start_date,omitempty"`
	InstallmentDueDay  int             `json:"installment_due_day" validate:"omitempty,gte=1,lte=31"`
}

type CreateLoanResponse struct {
	Loan     *Loan          `json:"loan"`
	Schedule []*Installment `json:"schedule"`
}

type RecordPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount" validate:"required,decimal_gt=0"`
	EMINumber     int             `json:"emi_number" validate:"required,gt=0"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	LateFee       decimal.Decimal `json:"late_fee" validate:"decimal_gte=0"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes"`
}

type RecordPaymentResponse struct {
	Loan    *Loan    `json:"loan"`
	Payment *Payment `json:"payment"`
}

type PaymentsResponse struct {
	LoanID   string     `json:"loan_id"`
	Payments []*Payment `json:"payments"`
}

type CalculateEMIRequest struct {
	PrincipalAmount decimal.Decimal `json:"principal_amount" validate:"required,decimal_gt=0"`
	InterestRate    decimal.Decimal `json:"interest_rate" validate:"decimal_gte=0"`
	TenureMonths    int             `json:"tenure_months" validate:"required,gt=0,lte=600"`
}

type CalculateEMIResponse struct {
	EMIAmount     decimal.Decimal `json:"emi_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalInterest decimal.Decimal `json:"total_interest"`
}

// UpcomingDue is one entry of the cross-loan "upcoming EMIs" read model built
// by the scheduler for the notification collaborator.
type UpcomingDue struct {
	LoanID    string          `json:"loan_id"`
	UserID    string          `json:"user_id"`
	DueDate   time.Time       `json:"due_date"`
	DueAmount decimal.Decimal `json:"due_amount"`
}
