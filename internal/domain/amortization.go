package domain

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/rupeeflow/loan-engine/pkg/utils"
)

// EMIQuote is the result of the stateless EMI calculation.
type EMIQuote struct {
	InstallmentAmount decimal.Decimal
	TotalAmount       decimal.Decimal
	TotalInterest     decimal.Decimal
}

// ComputeInstallmentAmount computes the fixed per-period installment using the
// reducing-balance annuity formula:
//
//	periodRate = annualRatePercent / (100 * periodsPerYear)
//	emi        = P * r * (1+r)^n / ((1+r)^n - 1)
//
// A zero rate falls back to a straight-line split. The rate factor is raised
// with float64 math, then everything monetary is carried in decimal and
// rounded half-up to the whole currency unit.
func ComputeInstallmentAmount(principal, annualRatePercent decimal.Decimal, tenure int, frequency string) (EMIQuote, error) {
	if tenure <= 0 || principal.IsNegative() {
		return EMIQuote{}, ErrArithmeticDegenerate
	}
	periodsPerYear := utils.PeriodsPerYear(frequency)
	if periodsPerYear == 0 {
		return EMIQuote{}, ErrInvalidFrequency
	}

	rate := annualRatePercent.InexactFloat64() / (100 * float64(periodsPerYear))

	var emi decimal.Decimal
	if rate == 0 {
		emi = principal.Div(decimal.NewFromInt(int64(tenure))).Round(0)
	} else {
		factor := math.Pow(1+rate, float64(tenure))
		payment := principal.InexactFloat64() * rate * factor / (factor - 1)
		emi = decimal.NewFromFloat(payment).Round(0)
	}

	totalAmount := emi.Mul(decimal.NewFromInt(int64(tenure)))
	return EMIQuote{
		InstallmentAmount: emi,
		TotalAmount:       totalAmount,
		TotalInterest:     totalAmount.Sub(principal),
	}, nil
}

// PeriodRate returns the per-period rate as a decimal for component math.
func PeriodRate(annualRatePercent decimal.Decimal, frequency string) decimal.Decimal {
	periodsPerYear := utils.PeriodsPerYear(frequency)
	if periodsPerYear == 0 {
		return decimal.Zero
	}
	return annualRatePercent.Div(decimal.NewFromInt(int64(100 * periodsPerYear)))
}

// GenerateSchedule produces the full installment sequence for the loan terms.
// It is a pure function of the terms: identical terms always yield identical
// schedules.
//
// Each period's interest is computed on the principal remaining before that
// period. The final installment's principal component is forced to whatever
// principal remains, so the principal components sum to the principal exactly
// and rounding drift never accumulates.
func GenerateSchedule(loan *Loan) ([]*Installment, error) {
	quote, err := ComputeInstallmentAmount(loan.Principal, loan.AnnualInterestRate, loan.TenureInstallments, loan.PaymentFrequency)
	if err != nil {
		return nil, err
	}

	periodRate := PeriodRate(loan.AnnualInterestRate, loan.PaymentFrequency)
	remaining := loan.Principal

	schedule := make([]*Installment, 0, loan.TenureInstallments)
	for i := 1; i <= loan.TenureInstallments; i++ {
		dueDate := utils.AddPeriods(loan.StartDate, loan.InstallmentDueDay, i, loan.PaymentFrequency)

		interest := remaining.Mul(periodRate).Round(0)
		principalPart := quote.InstallmentAmount.Sub(interest)
		amount := quote.InstallmentAmount

		if i == loan.TenureInstallments {
			// Absorb rounding drift so the balance lands on exactly zero.
			principalPart = remaining
			amount = interest.Add(principalPart)
		}

		remaining = remaining.Sub(principalPart)

		schedule = append(schedule, &Installment{
			LoanID:             loan.LoanID,
			InstallmentNumber:  i,
			DueDate:            dueDate,
			DueDateDay:         dueDate.Day(),
			InstallmentAmount:  amount,
			InterestComponent:  interest,
			PrincipalComponent: principalPart,
			Status:             InstallmentStatusPending,
			PaidAmount:         decimal.Zero,
			LateFee:            decimal.Zero,
		})
	}

	return schedule, nil
}
