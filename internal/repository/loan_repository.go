package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rupeeflow/loan-engine/internal/domain"
)

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

const loanColumns = `
	id, loan_id, user_id, principal, annual_interest_rate, tenure_installments,
	payment_frequency, start_date, installment_due_day, installment_amount,
	total_paid, principal_paid, interest_paid, remaining_balance,
	next_due_date, next_due_amount, status, created_at, updated_at
`

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.LoanID,
		loan.UserID,
		loan.Principal,
		loan.AnnualInterestRate,
		loan.TenureInstallments,
		loan.PaymentFrequency,
		loan.StartDate,
		loan.InstallmentDueDay,
		loan.InstallmentAmount,
		loan.TotalPaid,
		loan.PrincipalPaid,
		loan.InterestPaid,
		loan.RemainingBalance,
		loan.NextDueDate,
		loan.NextDueAmount,
		loan.Status,
		loan.CreatedAt,
		loan.UpdatedAt,
	)

	return err
}

func (r *loanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE loan_id = $1`

	var loan domain.Loan
	if err := r.db.GetContext(ctx, &loan, query, loanID); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	_, err := r.db.ExecContext(ctx, updateLoanQuery, updateLoanArgs(loan)...)
	return err
}

func (r *loanRepository) GetActiveLoans(ctx context.Context) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE status = $1 ORDER BY created_at`

	var loans []*domain.Loan
	if err := r.db.SelectContext(ctx, &loans, query, domain.LoanStatusActive); err != nil {
		return nil, err
	}

	return loans, nil
}

const installmentColumns = `
	id, loan_id, installment_number, due_date, due_date_day, installment_amount,
	interest_component, principal_component, status, paid_date, paid_amount,
	late_fee, created_at
`

func (r *loanRepository) CreateSchedule(ctx context.Context, installments []*domain.Installment) error {
	query := `
		INSERT INTO installments (` + installmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, inst := range installments {
		_, err = tx.ExecContext(ctx, query,
			inst.ID,
			inst.LoanID,
			inst.InstallmentNumber,
			inst.DueDate,
			inst.DueDateDay,
			inst.InstallmentAmount,
			inst.InterestComponent,
			inst.PrincipalComponent,
			inst.Status,
			inst.PaidDate,
			inst.PaidAmount,
			inst.LateFee,
			inst.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *loanRepository) GetScheduleByLoanID(ctx context.Context, loanID string) ([]*domain.Installment, error) {
	query := `
		SELECT ` + installmentColumns + `
		FROM installments
		WHERE loan_id = $1
		ORDER BY installment_number
	`

	var installments []*domain.Installment
	if err := r.db.SelectContext(ctx, &installments, query, loanID); err != nil {
		return nil, err
	}

	return installments, nil
}

func (r *loanRepository) GetOverdueInstallments(ctx context.Context, loanID string, asOf time.Time) ([]*domain.Installment, error) {
	query := `
		SELECT ` + installmentColumns + `
		FROM installments
		WHERE loan_id = $1 AND status IN ('pending', 'overdue') AND due_date < $2
		ORDER BY installment_number
	`

	var installments []*domain.Installment
	if err := r.db.SelectContext(ctx, &installments, query, loanID, asOf); err != nil {
		return nil, err
	}

	return installments, nil
}

func (r *loanRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	query := `
		UPDATE installments
		SET status = 'overdue'
		WHERE status = 'pending' AND due_date < $1
	`

	res, err := r.db.ExecContext(ctx, query, asOf)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ApplyPayment commits the read-modify-write of a payment application in one
// transaction so the ledger is never partially updated.
func (r *loanRepository) ApplyPayment(ctx context.Context, loan *domain.Loan, installment *domain.Installment, payment *domain.Payment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	installmentQuery := `
		UPDATE installments
		SET status = $3, paid_date = $4, paid_amount = $5, late_fee = $6
		WHERE loan_id = $1 AND installment_number = $2
	`
	if _, err = tx.ExecContext(ctx, installmentQuery,
		installment.LoanID,
		installment.InstallmentNumber,
		installment.Status,
		installment.PaidDate,
		installment.PaidAmount,
		installment.LateFee,
	); err != nil {
		return err
	}

	paymentQuery := `
		INSERT INTO payments (id, loan_id, installment_number, amount, principal_paid,
			interest_paid, late_fee, payment_date, payment_method, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err = tx.ExecContext(ctx, paymentQuery,
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
	); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, updateLoanQuery, updateLoanArgs(loan)...); err != nil {
		return err
	}

	return tx.Commit()
}

const updateLoanQuery = `
	UPDATE loans
	SET total_paid = $2, principal_paid = $3, interest_paid = $4,
		remaining_balance = $5, next_due_date = $6, next_due_amount = $7,
		status = $8, updated_at = $9
	WHERE loan_id = $1
`

func updateLoanArgs(loan *domain.Loan) []interface{} {
	return []interface{}{
		loan.LoanID,
		loan.TotalPaid,
		loan.PrincipalPaid,
		loan.InterestPaid,
		loan.RemainingBalance,
		loan.NextDueDate,
		loan.NextDueAmount,
		loan.Status,
		time.Now(),
	}
}
