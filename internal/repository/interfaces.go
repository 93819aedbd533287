package repository

import (
	"context"
	"time"

	"github.com/rupeeflow/loan-engine/internal/domain"
)

// LoanRepository defines the interface for loan and schedule data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByLoanID retrieves a loan by its loan ID
	GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error)

	// Update updates a loan's aggregates and status
	Update(ctx context.Context, loan *domain.Loan) error

	// GetActiveLoans retrieves all loans that are not completed
	GetActiveLoans(ctx context.Context) ([]*domain.Loan, error)

	// CreateSchedule creates installment schedule entries
	CreateSchedule(ctx context.Context, installments []*domain.Installment) error

	// GetScheduleByLoanID retrieves the installment schedule by loan ID
	GetScheduleByLoanID(ctx context.Context, loanID string) ([]*domain.Installment, error)

	// GetOverdueInstallments gets installments past due and still pending
	GetOverdueInstallments(ctx context.Context, loanID string, asOf time.Time) ([]*domain.Installment, error)

	// MarkOverdue persists the overdue projection for all pending installments
	// past due, returning the number of rows updated
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)

	// ApplyPayment persists one payment application atomically: the mutated
	// installment, the appended payment record and the updated loan aggregates
	// commit in a single transaction or not at all
	ApplyPayment(ctx context.Context, loan *domain.Loan, installment *domain.Installment, payment *domain.Payment) error
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// Create creates a new payment record
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByLoanID retrieves all payments for a loan in recorded order
	GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error)

	// GetLatestPayment gets the most recently recorded payment for a loan
	GetLatestPayment(ctx context.Context, loanID string) (*domain.Payment, error)
}
