package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrLoanNotFound         = errors.New("loan not found")
	ErrInstallmentNotFound  = errors.New("installment not found")
	ErrLoanAlreadyExists    = errors.New("loan already exists")
	ErrValidation           = errors.New("validation failed")
	ErrArithmeticDegenerate = errors.New("degenerate loan terms")
	ErrConsistencyViolation = errors.New("ledger consistency violation")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeLoanNotFound         = "LOAN_NOT_FOUND"
	ErrCodeInstallmentNotFound  = "INSTALLMENT_NOT_FOUND"
	ErrCodeLoanAlreadyExists    = "LOAN_ALREADY_EXISTS"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeArithmeticDegenerate = "ARITHMETIC_DEGENERATE"
	ErrCodeConsistencyViolation = "CONSISTENCY_VIOLATION"
	ErrCodeDatabaseError        = "DATABASE_ERROR"
	ErrCodeCacheError           = "CACHE_ERROR"
)

// Wrap common errors with business context

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapInstallmentNotFound(loanID string, installmentNumber int) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentNotFound,
		fmt.Sprintf("Installment %d not found for loan %s", installmentNumber, loanID),
		ErrInstallmentNotFound,
	)
}

func WrapLoanAlreadyExists(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAlreadyExists,
		fmt.Sprintf("Loan with ID %s already exists", loanID),
		ErrLoanAlreadyExists,
	)
}

func WrapValidation(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeValidation,
		err.Error(),
		ErrValidation,
	)
}

func WrapArithmeticDegenerate(message string) *BusinessError {
	return NewBusinessError(
		ErrCodeArithmeticDegenerate,
		message,
		ErrArithmeticDegenerate,
	)
}

// WrapConsistencyViolation marks a broken ledger invariant. This is a bug
// condition: the mutation that produced it must be rejected wholesale and
// never persisted.
func WrapConsistencyViolation(loanID string, err error) *BusinessError {
	return NewBusinessError(
		ErrCodeConsistencyViolation,
		fmt.Sprintf("Ledger invariant violated for loan %s", loanID),
		err,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"Database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

// CodeOf extracts the business error code, or empty string.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
