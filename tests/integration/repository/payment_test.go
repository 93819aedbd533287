package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rupeeflow/loan-engine/internal/domain"
	"github.com/rupeeflow/loan-engine/internal/repository"
)

func seedPayment(t *testing.T, repo repository.PaymentRepository, loanID string, installmentNumber int, amount int64) *domain.Payment {
	t.Helper()

	now := time.Now()
	payment := &domain.Payment{
		ID:                uuid.New(),
		LoanID:            loanID,
		InstallmentNumber: installmentNumber,
		Amount:            decimal.NewFromInt(amount),
		PrincipalPaid:     decimal.NewFromInt(amount - 3542),
		InterestPaid:      decimal.NewFromInt(3542),
		LateFee:           decimal.Zero,
		PaymentDate:       now,
		PaymentMethod:     "upi",
		CreatedAt:         now,
	}

	require.NoError(t, repo.Create(context.Background(), payment))
	return payment
}

func TestPaymentRepository_Create(t *testing.T) {
	db := setupTestDB(t)

	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	seedLoan(t, loanRepo, "LOAN-101")
	seedPayment(t, paymentRepo, "LOAN-101", 1, 10258)
}

func TestPaymentRepository_GetByLoanID_RecordedOrder(t *testing.T) {
	db := setupTestDB(t)

	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	ctx := context.Background()

	seedLoan(t, loanRepo, "LOAN-102")

	// Installment 3 is paid before installment 1: the ledger keeps the
	// recording order, not the schedule order.
	first := seedPayment(t, paymentRepo, "LOAN-102", 3, 10258)
	time.Sleep(time.Millisecond)
	second := seedPayment(t, paymentRepo, "LOAN-102", 1, 10258)

	result, err := paymentRepo.GetByLoanID(ctx, "LOAN-102")
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, first.ID, result[0].ID)
	assert.Equal(t, 3, result[0].InstallmentNumber)
	assert.Equal(t, second.ID, result[1].ID)
}

func TestPaymentRepository_GetByLoanID_Empty(t *testing.T) {
	db := setupTestDB(t)

	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	seedLoan(t, loanRepo, "LOAN-103")

	result, err := paymentRepo.GetByLoanID(context.Background(), "LOAN-103")
	require.NoError(t, err)
	assert.Len(t, result, 0)
}

func TestPaymentRepository_GetLatestPayment(t *testing.T) {
	db := setupTestDB(t)

	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	ctx := context.Background()

	seedLoan(t, loanRepo, "LOAN-104")
	seedPayment(t, paymentRepo, "LOAN-104", 1, 10258)
	time.Sleep(time.Millisecond)
	latest := seedPayment(t, paymentRepo, "LOAN-104", 2, 10258)

	result, err := paymentRepo.GetLatestPayment(ctx, "LOAN-104")
	require.NoError(t, err)
	assert.Equal(t, latest.ID, result.ID)
	assert.Equal(t, 2, result.InstallmentNumber)
}

func TestPaymentRepository_RepayRecordedTwice(t *testing.T) {
	db := setupTestDB(t)

	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	ctx := context.Background()

	seedLoan(t, loanRepo, "LOAN-105")

	// Paying the same installment twice appends a second record; nothing
	// is overwritten.
	seedPayment(t, paymentRepo, "LOAN-105", 1, 10258)
	seedPayment(t, paymentRepo, "LOAN-105", 1, 10258)

	result, err := paymentRepo.GetByLoanID(ctx, "LOAN-105")
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.NotEqual(t, result[0].ID, result[1].ID)
	assert.Equal(t, result[0].InstallmentNumber, result[1].InstallmentNumber)
}
