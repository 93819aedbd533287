package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	LoanStatusActive    = "active"
	LoanStatusCompleted = "completed"
	LoanStatusDefaulted = "defaulted"
	LoanStatusPrepaid   = "prepaid"
)

const (
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyYearly    = "yearly"
)

const MaxTenureInstallments = 600

var (
	ErrLoanNotFound         = errors.New("loan not found")
	ErrInstallmentNotFound  = errors.New("installment not found")
	ErrInvalidPrincipal     = errors.New("principal must be positive")
	ErrInvalidInterestRate  = errors.New("annual interest rate must be between 0 and 100")
	ErrInvalidTenure        = errors.New("tenure must be between 1 and 600 installments")
	ErrInvalidFrequency     = errors.New("payment frequency must be monthly, quarterly or yearly")
	ErrInvalidDueDay        = errors.New("installment due day must be between 1 and 31")
	ErrInvalidPaymentAmount = errors.New("payment amount must be positive")
	ErrInvalidInstallmentNo = errors.New("installment number must be positive")
	ErrConsistencyViolation = errors.New("ledger consistency violation")
	ErrArithmeticDegenerate = errors.New("degenerate loan terms reached the calculator")
)

// Loan is the aggregate root for a single loan: immutable terms, derived
// repayment aggregates and the lifecycle status. The installment schedule and
// payment history live in their own tables and are loaded alongside it.
//
// All mutation goes through ApplyPayment; callers never write the aggregate
// fields directly.
type Loan struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	LoanID             string          `json:"loan_id" db:"loan_id"`
	UserID             string          `json:"user_id" db:"user_id"`
	Principal          decimal.Decimal `json:"principal" db:"principal"`
	AnnualInterestRate decimal.Decimal `json:"annual_interest_rate" db:"annual_interest_rate"`
	TenureInstallments int             `json:"tenure_installments" db:"tenure_installments"`
	PaymentFrequency   string          `json:"payment_frequency" db:"payment_frequency"`
	StartDate          time.Time       `json:"start_date" db:"start_date"`
	InstallmentDueDay  int             `json:"installment_due_day" db:"installment_due_day"`
	InstallmentAmount  decimal.Decimal `json:"installment_amount" db:"installment_amount"`

	TotalPaid        decimal.Decimal `json:"total_paid" db:"total_paid"`
	PrincipalPaid    decimal.Decimal `json:"principal_paid" db:"principal_paid"`
	InterestPaid     decimal.Decimal `json:"interest_paid" db:"interest_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance" db:"remaining_balance"`
	NextDueDate      *time.Time      `json:"next_due_date,omitempty" db:"next_due_date"`
	NextDueAmount    decimal.Decimal `json:"next_due_amount" db:"next_due_amount"`

	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks the loan terms before any schedule is generated.
func (l *Loan) Validate() error {
	if l.Principal.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidPrincipal
	}
	if l.AnnualInterestRate.IsNegative() || l.AnnualInterestRate.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidInterestRate
	}
	if l.TenureInstallments < 1 || l.TenureInstallments > MaxTenureInstallments {
		return ErrInvalidTenure
	}
	switch l.PaymentFrequency {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
	default:
		return ErrInvalidFrequency
	}
	if l.InstallmentDueDay < 1 || l.InstallmentDueDay > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

// ApplyPayment records one payment event against the schedule and updates the
// derived aggregates, the next-due pointer and the loan status.
//
// The split follows the originally scheduled breakdown: the installment's full
// interest component is attributed as interest regardless of the amount paid,
// and principalPaid = amount - interest - lateFee. An underpayment therefore
// produces a negative principal contribution; the signed value is kept so the
// shortfall stays visible in the ledger, and only RemainingBalance is clamped
// at zero. Re-paying an installment that is already paid is accepted as an
// adjustment event: the payment is appended and the installment's paid fields
// are overwritten with the latest event.
func (l *Loan) ApplyPayment(schedule []*Installment, amount decimal.Decimal, installmentNumber int, paymentDate time.Time, lateFee decimal.Decimal, method, notes string) (*Payment, error) {
	var target *Installment
	for _, inst := range schedule {
		if inst.InstallmentNumber == installmentNumber {
			target = inst
			break
		}
	}
	if target == nil {
		return nil, ErrInstallmentNotFound
	}

	interestPaid := target.InterestComponent
	principalPaid := amount.Sub(interestPaid).Sub(lateFee)

	payment := &Payment{
		ID:                uuid.New(),
		LoanID:            l.LoanID,
		InstallmentNumber: installmentNumber,
		Amount:            amount,
		PrincipalPaid:     principalPaid,
		InterestPaid:      interestPaid,
		LateFee:           lateFee,
		PaymentDate:       paymentDate,
		PaymentMethod:     method,
		Notes:             notes,
		CreatedAt:         time.Now(),
	}

	target.Status = InstallmentStatusPaid
	paid := paymentDate
	target.PaidDate = &paid
	target.PaidAmount = amount
	target.LateFee = lateFee

	l.TotalPaid = l.TotalPaid.Add(amount)
	l.PrincipalPaid = l.PrincipalPaid.Add(principalPaid)
	l.InterestPaid = l.InterestPaid.Add(interestPaid)
	// The balance is recomputed from the running total rather than decremented
	// in place, so a shortfall after an earlier clamp cannot resurrect balance
	// that was already written off.
	l.RemainingBalance = l.Principal.Sub(l.PrincipalPaid)
	if l.RemainingBalance.IsNegative() {
		l.RemainingBalance = decimal.Zero
	}

	l.RecomputeNextDue(schedule)
	l.UpdatedAt = time.Now()

	if err := l.CheckInvariants(schedule); err != nil {
		return nil, err
	}

	return payment, nil
}

// RecomputeNextDue points NextDueDate/NextDueAmount at the earliest
// installment not yet paid, scanning in installment-number order. When none
// remain the pointer is cleared and the loan completes.
func (l *Loan) RecomputeNextDue(schedule []*Installment) {
	var next *Installment
	for _, inst := range schedule {
		if inst.Status == InstallmentStatusPaid {
			continue
		}
		if next == nil || inst.InstallmentNumber < next.InstallmentNumber {
			next = inst
		}
	}

	if next == nil {
		l.NextDueDate = nil
		l.NextDueAmount = decimal.Zero
		l.Status = LoanStatusCompleted
		return
	}

	due := next.DueDate
	l.NextDueDate = &due
	l.NextDueAmount = next.InstallmentAmount
	if l.Status == LoanStatusCompleted {
		l.Status = LoanStatusActive
	}
}

// ResolveStatus derives the lifecycle status from the schedule: completed when
// every installment is paid, active otherwise. Defaulted/prepaid are external
// business decisions and never derived here.
func (l *Loan) ResolveStatus(schedule []*Installment) string {
	for _, inst := range schedule {
		if inst.Status != InstallmentStatusPaid {
			return LoanStatusActive
		}
	}
	return LoanStatusCompleted
}

// RefreshOverdue is the read-time overdue projection: any pending installment
// whose due date is strictly before now is shown as overdue. It only mutates
// the in-memory copy; persisting the projection is a reporting concern.
func (l *Loan) RefreshOverdue(schedule []*Installment, now time.Time) {
	for _, inst := range schedule {
		if inst.Status == InstallmentStatusPending && inst.DueDate.Before(now) {
			inst.Status = InstallmentStatusOverdue
		}
	}
}

// CheckInvariants verifies the ledger invariants after a mutation. A failure
// here is a bug, not a user error; callers must reject the whole mutation.
func (l *Loan) CheckInvariants(schedule []*Installment) error {
	if len(schedule) != l.TenureInstallments {
		return ErrConsistencyViolation
	}
	if l.RemainingBalance.IsNegative() {
		return ErrConsistencyViolation
	}
	// Balance reconciles with recovered principal, clamped at zero.
	expected := l.Principal.Sub(l.PrincipalPaid)
	if expected.IsNegative() {
		expected = decimal.Zero
	}
	if !l.RemainingBalance.Equal(expected) {
		return ErrConsistencyViolation
	}
	// Non-final installments split exactly into interest + principal.
	for _, inst := range schedule {
		if inst.InstallmentNumber == l.TenureInstallments {
			continue
		}
		if !inst.InterestComponent.Add(inst.PrincipalComponent).Equal(inst.InstallmentAmount) {
			return ErrConsistencyViolation
		}
	}
	return nil
}
