package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPeriodsPerYear(t *testing.T) {
	assert.Equal(t, 12, PeriodsPerYear("monthly"))
	assert.Equal(t, 4, PeriodsPerYear("quarterly"))
	assert.Equal(t, 1, PeriodsPerYear("yearly"))
	assert.Equal(t, 0, PeriodsPerYear("weekly"))
}

func TestAddPeriods(t *testing.T) {
	tests := []struct {
		name      string
		start     time.Time
		dueDay    int
		periods   int
		frequency string
		expected  time.Time
	}{
		{
			name:      "one month forward",
			start:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			dueDay:    15,
			periods:   1,
			frequency: "monthly",
			expected:  time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "clamps to february leap year",
			start:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			dueDay:    31,
			periods:   1,
			frequency: "monthly",
			expected:  time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "clamps to february non leap year",
			start:     time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			dueDay:    31,
			periods:   1,
			frequency: "monthly",
			expected:  time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "does not stick to clamped day",
			start:     time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			dueDay:    31,
			periods:   2,
			frequency: "monthly",
			expected:  time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "year rollover",
			start:     time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC),
			dueDay:    10,
			periods:   3,
			frequency: "monthly",
			expected:  time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "quarterly",
			start:     time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			dueDay:    15,
			periods:   2,
			frequency: "quarterly",
			expected:  time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "yearly",
			start:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			dueDay:    1,
			periods:   2,
			frequency: "yearly",
			expected:  time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AddPeriods(tt.start, tt.dueDay, tt.periods, tt.frequency)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, DaysInMonth(2025, time.January))
	assert.Equal(t, 28, DaysInMonth(2025, time.February))
	assert.Equal(t, 29, DaysInMonth(2024, time.February))
	assert.Equal(t, 30, DaysInMonth(2025, time.April))
	assert.Equal(t, 31, DaysInMonth(2025, time.December))
}

func TestIsDateOverdue(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsDateOverdue(now.AddDate(0, 0, -1), now))
	assert.False(t, IsDateOverdue(now, now))
	assert.False(t, IsDateOverdue(now.AddDate(0, 0, 1), now))
}

func TestRoundCurrency(t *testing.T) {
	assert.True(t, RoundCurrency(decimal.NewFromFloat(10258.5)).Equal(decimal.NewFromInt(10259)))
	assert.True(t, RoundCurrency(decimal.NewFromFloat(10258.49)).Equal(decimal.NewFromInt(10258)))
	assert.True(t, RoundCurrency(decimal.NewFromFloat(10000)).Equal(decimal.NewFromInt(10000)))
}
