package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/rupeeflow/loan-engine/internal/domain"
)

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = `
	id, loan_id, installment_number, amount, principal_paid, interest_paid,
	late_fee, payment_date, payment_method, notes, created_at
`

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.LoanID,
		payment.InstallmentNumber,
		payment.Amount,
		payment.PrincipalPaid,
		payment.InterestPaid,
		payment.LateFee,
		payment.PaymentDate,
		payment.PaymentMethod,
		payment.Notes,
		payment.CreatedAt,
	)

	return err
}

// GetByLoanID returns payments in recording order, which is insertion order
// rather than payment-date order.
func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE loan_id = $1
		ORDER BY created_at, id
	`

	var payments []*domain.Payment
	if err := r.db.SelectContext(ctx, &payments, query, loanID); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepository) GetLatestPayment(ctx context.Context, loanID string) (*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE loan_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var payment domain.Payment
	if err := r.db.GetContext(ctx, &payment, query, loanID); err != nil {
		return nil, err
	}

	return &payment, nil
}
