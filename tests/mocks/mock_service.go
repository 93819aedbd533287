package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rupeeflow/loan-engine/internal/domain"
)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, []*domain.Installment, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Loan), args.Get(1).([]*domain.Installment), args.Error(2)
}

func (m *MockLoanService) RecordPayment(ctx context.Context, loanID string, request *domain.RecordPaymentRequest) (*domain.Loan, *domain.Payment, error) {
	args := m.Called(ctx, loanID, request)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Loan), args.Get(1).(*domain.Payment), args.Error(2)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanService) GetSchedule(ctx context.Context, loanID string) ([]*domain.Installment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

func (m *MockLoanService) GetPayments(ctx context.Context, loanID string) ([]*domain.Payment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockLoanService) GetOverdueInstallments(ctx context.Context, loanID string) ([]*domain.Installment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

func (m *MockLoanService) CalculateEMI(ctx context.Context, request *domain.CalculateEMIRequest) (*domain.CalculateEMIResponse, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CalculateEMIResponse), args.Error(1)
}

// NewMockLoanService creates a new mock loan service instance
func NewMockLoanService() *MockLoanService {
	return &MockLoanService{}
}
