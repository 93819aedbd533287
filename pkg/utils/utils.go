package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodsPerYear maps a payment frequency to the number of periods per year.
// Returns 0 for an unknown frequency.
func PeriodsPerYear(frequency string) int {
	switch frequency {
	case "monthly":
		return 12
	case "quarterly":
		return 4
	case "yearly":
		return 1
	default:
		return 0
	}
}

// MonthsPerPeriod maps a payment frequency to months per period.
func MonthsPerPeriod(frequency string) int {
	switch frequency {
	case "monthly":
		return 1
	case "quarterly":
		return 3
	case "yearly":
		return 12
	default:
		return 0
	}
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddPeriods advances start by the given number of payment periods and anchors
// the result to dueDay. When the target month is shorter than dueDay the date
// clamps to the month's last day, so Jan 31 + 1 month lands on Feb 28/29
// rather than spilling into March.
func AddPeriods(start time.Time, dueDay, periods int, frequency string) time.Time {
	months := periods * MonthsPerPeriod(frequency)

	total := int(start.Month()) - 1 + months
	year := start.Year() + total/12
	month := time.Month(total%12 + 1)

	day := dueDay
	if max := DaysInMonth(year, month); day > max {
		day = max
	}

	return time.Date(year, month, day, 0, 0, 0, 0, start.Location())
}

// IsDateOverdue reports whether due is strictly before asOf.
func IsDateOverdue(due, asOf time.Time) bool {
	return due.Before(asOf)
}

// RoundCurrency rounds half-up to the whole currency unit.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// DecimalFromString converts string to decimal.Decimal.
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
